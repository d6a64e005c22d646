package postgres

import (
	"fmt"
	"strconv"

	"github.com/ogurasousui/masters-service/internal/core/scope"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
)

// scopeTarget は述語をどの列に適用するかを表します。
type scopeTarget struct {
	tenantFormat string
	workerColumn string
}

var (
	// 作業員は所属都市のいずれかが述語に含まれれば見えます。
	masterScopeTarget = scopeTarget{tenantFormat: "m.cities && %s::text[]", workerColumn: "m.id"}
	orderScopeTarget  = scopeTarget{tenantFormat: "o.city = ANY(%s::text[])", workerColumn: "o.master_id"}
)

// scopeClause は述語を WHERE 句の条件へ変換し、必要な引数を args に追加します。
// 無制限の場合は空文字を返します。
func scopeClause(p scope.Predicate, target scopeTarget, args []any) (string, []any) {
	if p.Unrestricted() {
		return "", args
	}
	if id, ok := p.WorkerID(); ok {
		args = append(args, id)
		return target.workerColumn + " = " + placeholder(len(args)), args
	}

	tenants := p.Tenants()
	if tenants == nil {
		tenants = []string{}
	}
	args = append(args, tenants)
	return fmt.Sprintf(target.tenantFormat, placeholder(len(args))), args
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func andClause(conditions []string) string {
	out := ""
	for _, c := range conditions {
		if c == "" {
			continue
		}
		out += "\n           AND " + c
	}
	return out
}
