package master

import (
	"context"
	"time"

	"github.com/ogurasousui/masters-service/internal/core/scope"
)

// Repository は作業員永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, m *Master, passwordHash *string) (*Master, error)
	FindByID(ctx context.Context, id string, p scope.Predicate) (*Master, error)
	FindByLogin(ctx context.Context, login string) (*Master, error)
	List(ctx context.Context, filter ListFilter) ([]*Master, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time, p scope.Predicate) (*Master, error)
	CountOrders(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
	OrderStats(ctx context.Context, id string, r StatsRange) (*OrderStats, error)
}

// ListFilter は一覧取得用フィルタです。Limit が 0 の場合は件数制限なしです。
type ListFilter struct {
	Predicate scope.Predicate
	Status    *Status
	ByName    bool
	Limit     int
	Offset    int
}
