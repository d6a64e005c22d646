package scope

import (
	"context"
	"strings"
)

// Role は呼び出し元の権限種別です。
type Role string

const (
	RoleGlobalAdmin Role = "callcentre_admin"
	RoleTenantAdmin Role = "director"
	RoleSelfWorker  Role = "master"
)

// ParseRole はトークンに含まれるロール文字列を Role に変換します。
// 未知の値は空の Role となり、最も制限の強い扱いを受けます。
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "callcentre_admin", "admin":
		return RoleGlobalAdmin
	case "director":
		return RoleTenantAdmin
	case "master":
		return RoleSelfWorker
	default:
		return ""
	}
}

// Identity は認証済みの呼び出し元です。リクエスト中は変更されません。
type Identity struct {
	ID      string
	Role    Role
	Tenants []string
}

// IsAdmin はグローバル管理者またはテナント管理者かどうかを返します。
func (i Identity) IsAdmin() bool {
	return i.Role == RoleGlobalAdmin || i.Role == RoleTenantAdmin
}

// SelfScoped は呼び出し元が自分自身のデータのみ参照できるかどうかを返します。
func (i Identity) SelfScoped() bool {
	return !i.IsAdmin()
}

type identityKey struct{}

// WithIdentity はコンテキストに Identity を格納します。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext はコンテキストから Identity を取り出します。
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
