package schedule

import (
	"context"

	"github.com/ogurasousui/masters-service/internal/core/scope"
)

// Repository はスケジュール永続化の抽象です。
type Repository interface {
	// LockMaster は作業員の行をロックし、同一作業員への置き換えを直列化します。
	LockMaster(ctx context.Context, masterID string, p scope.Predicate) error
	MasterExists(ctx context.Context, masterID string, p scope.Predicate) error
	// ReplaceDays は days に含まれる日付の既存行を削除し、新しい行を一括挿入します。
	ReplaceDays(ctx context.Context, masterID string, days []Day) (int, error)
	ListDays(ctx context.Context, masterID string, r Range) ([]Day, error)
	// ListActiveMasters は可視範囲内の解雇済みでない作業員を返します。Days は空です。
	ListActiveMasters(ctx context.Context, p scope.Predicate) ([]MasterSchedule, error)
	ListDaysForMasters(ctx context.Context, masterIDs []string, r Range) (map[string][]Day, error)
}
