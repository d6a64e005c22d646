package scope

import "slices"

// Predicate は呼び出し元に見えるデータの範囲です。
// 無制限、テナント集合、単一ワーカーのいずれかを表します。
// テナント集合が空の場合は何にも一致しません。
type Predicate struct {
	unrestricted bool
	tenants      []string
	workerID     string
}

// Unrestricted は制限なしの述語を返します。
func Unrestricted() Predicate {
	return Predicate{unrestricted: true}
}

// ForTenants は指定テナントのいずれかに一致する述語を返します。
func ForTenants(tenants ...string) Predicate {
	return Predicate{tenants: dedupe(tenants)}
}

// ForWorker は単一ワーカーに限定する述語を返します。
func ForWorker(workerID string) Predicate {
	return Predicate{workerID: workerID}
}

// Unrestricted は制限がない場合に true を返します。
func (p Predicate) Unrestricted() bool {
	return p.unrestricted
}

// Tenants はテナント集合のコピーを返します。テナント制限でない場合は nil です。
func (p Predicate) Tenants() []string {
	if p.unrestricted || p.workerID != "" {
		return nil
	}
	return slices.Clone(p.tenants)
}

// WorkerID はワーカー限定の場合にその ID を返します。
func (p Predicate) WorkerID() (string, bool) {
	return p.workerID, p.workerID != ""
}

// SelfScoped はワーカー限定かどうかを返します。
func (p Predicate) SelfScoped() bool {
	return p.workerID != ""
}

// AllowsTenant はテナント制限の述語が tenant を含むかどうかを返します。
// ワーカー限定の述語はテナントでは判定できないため false を返します。
func (p Predicate) AllowsTenant(tenant string) bool {
	if p.unrestricted {
		return true
	}
	if p.workerID != "" {
		return false
	}
	return slices.Contains(p.tenants, tenant)
}

// AllowsWorker は所属テナント tenants を持つワーカー id が見えるかどうかを返します。
func (p Predicate) AllowsWorker(id string, tenants []string) bool {
	switch {
	case p.unrestricted:
		return true
	case p.workerID != "":
		return id == p.workerID
	}
	for _, t := range tenants {
		if slices.Contains(p.tenants, t) {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
