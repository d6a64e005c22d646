package scope

import (
	"slices"
	"strings"
)

// Strategy はロールごとの可視範囲の決定方法です。
type Strategy interface {
	Resolve(filter *string) Predicate
}

type globalAdmin struct{}

func (globalAdmin) Resolve(filter *string) Predicate {
	if f, ok := normalizeFilter(filter); ok {
		return ForTenants(f)
	}
	return Unrestricted()
}

// tenantAdmin は許可テナント外のフィルタを黙って許可テナント全体に丸めます。
type tenantAdmin struct {
	tenants []string
}

func (s tenantAdmin) Resolve(filter *string) Predicate {
	if f, ok := normalizeFilter(filter); ok && slices.Contains(s.tenants, f) {
		return ForTenants(f)
	}
	return ForTenants(s.tenants...)
}

type selfWorker struct {
	id string
}

func (s selfWorker) Resolve(*string) Predicate {
	return ForWorker(s.id)
}

var strategies = map[Role]func(Identity) Strategy{
	RoleGlobalAdmin: func(Identity) Strategy { return globalAdmin{} },
	RoleTenantAdmin: func(id Identity) Strategy { return tenantAdmin{tenants: dedupe(id.Tenants)} },
	RoleSelfWorker:  func(id Identity) Strategy { return selfWorker{id: id.ID} },
}

// StrategyFor は Identity のロールに対応する Strategy を返します。
// 未知のロールは自分自身のみを参照できる扱いになります。
func StrategyFor(id Identity) Strategy {
	if build, ok := strategies[id.Role]; ok {
		return build(id)
	}
	return selfWorker{id: id.ID}
}

// Resolve は呼び出し元と任意のテナントフィルタから可視範囲を決定します。
func Resolve(id Identity, filter *string) Predicate {
	return StrategyFor(id).Resolve(filter)
}

func normalizeFilter(filter *string) (string, bool) {
	if filter == nil {
		return "", false
	}
	f := strings.TrimSpace(*filter)
	return f, f != ""
}
