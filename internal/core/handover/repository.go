package handover

import (
	"context"

	"github.com/ogurasousui/masters-service/internal/core/scope"
)

// Repository は現金受け渡しに関する永続化の抽象です。
type Repository interface {
	FindOrderByID(ctx context.Context, id string) (*Order, error)
	// TransitionCashStatus は現在の状態が From のいずれかである場合に限り更新します。
	// 一致しない場合は ErrAlreadyDecided を返します。
	TransitionCashStatus(ctx context.Context, in Transition) (*Order, error)
	SummarizeOutstanding(ctx context.Context, p scope.Predicate) ([]MasterTotal, error)
	FindMaster(ctx context.Context, id string, p scope.Predicate) (*MasterRef, error)
	ListOutstanding(ctx context.Context, masterID string, p scope.Predicate) ([]*Order, error)
}
