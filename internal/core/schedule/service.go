package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/masters-service/internal/core/scope"
)

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// UseCase はスケジュールユースケースの公開インターフェースです。
type UseCase interface {
	Replace(ctx context.Context, identity scope.Identity, masterID string, days []Day) (*ReplaceResult, error)
	Read(ctx context.Context, identity scope.Identity, masterID string, r Range) ([]Day, error)
	ReadAll(ctx context.Context, identity scope.Identity, cityFilter *string, r Range) ([]MasterSchedule, error)
}

// Service は作業員の勤務スケジュールを扱います。
type Service struct {
	repo   Repository
	tx     TransactionManager
	logger *slog.Logger
}

// NewService は Service を生成します。
func NewService(repo Repository, tx TransactionManager, logger *slog.Logger) *Service {
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tx: tx, logger: logger}
}

// Replace は days に含まれる日付だけを 1 トランザクションで置き換えます。
// 含まれない日付は変更されません。
func (s *Service) Replace(ctx context.Context, identity scope.Identity, masterID string, days []Day) (*ReplaceResult, error) {
	id, err := normalizeID(masterID)
	if err != nil {
		return nil, err
	}

	predicate := scope.Resolve(identity, nil)
	if err := checkSelf(predicate, id); err != nil {
		return nil, err
	}

	normalized, err := normalizeDays(days)
	if err != nil {
		return nil, err
	}

	var updated int
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockMaster(txCtx, id, predicate); err != nil {
			return err
		}
		if len(normalized) == 0 {
			return nil
		}

		n, err := s.repo.ReplaceDays(txCtx, id, normalized)
		if err != nil {
			return err
		}
		updated = n
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "schedule replaced",
		slog.String("action", "SCHEDULE_UPDATED"),
		slog.String("master_id", id),
		slog.String("by", identity.ID),
		slog.Int("days", updated),
	)

	return &ReplaceResult{UpdatedCount: updated}, nil
}

// Read は作業員 1 名分のスケジュールを日付昇順で返します。
func (s *Service) Read(ctx context.Context, identity scope.Identity, masterID string, r Range) ([]Day, error) {
	id, err := normalizeID(masterID)
	if err != nil {
		return nil, err
	}
	if err := validateRange(r); err != nil {
		return nil, err
	}

	predicate := scope.Resolve(identity, nil)
	if err := checkSelf(predicate, id); err != nil {
		return nil, err
	}

	var days []Day
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		if err := s.repo.MasterExists(txCtx, id, predicate); err != nil {
			return err
		}
		found, err := s.repo.ListDays(txCtx, id, r)
		if err != nil {
			return err
		}
		days = found
		return nil
	}); err != nil {
		return nil, err
	}

	if days == nil {
		days = []Day{}
	}
	return days, nil
}

// ReadAll は可視範囲内の在籍中の作業員全員のスケジュールを 1 回の一括取得で返します。
func (s *Service) ReadAll(ctx context.Context, identity scope.Identity, cityFilter *string, r Range) ([]MasterSchedule, error) {
	if !r.Bounded() {
		return nil, ErrRangeRequired
	}
	if err := validateRange(r); err != nil {
		return nil, err
	}

	predicate := scope.Resolve(identity, cityFilter)

	var out []MasterSchedule
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		masters, err := s.repo.ListActiveMasters(txCtx, predicate)
		if err != nil {
			return err
		}
		if len(masters) == 0 {
			out = []MasterSchedule{}
			return nil
		}

		ids := make([]string, 0, len(masters))
		for _, m := range masters {
			ids = append(ids, m.MasterID)
		}

		byMaster, err := s.repo.ListDaysForMasters(txCtx, ids, r)
		if err != nil {
			return err
		}

		for i := range masters {
			days := byMaster[masters[i].MasterID]
			if days == nil {
				days = []Day{}
			}
			masters[i].Days = days
		}
		out = masters
		return nil
	}); err != nil {
		return nil, err
	}

	return out, nil
}

func checkSelf(p scope.Predicate, masterID string) error {
	if self, ok := p.WorkerID(); ok && self != masterID {
		return ErrForbidden
	}
	return nil
}

func validateRange(r Range) error {
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return ErrInvalidRange
	}
	return nil
}

func normalizeDays(days []Day) ([]Day, error) {
	seen := make(map[time.Time]struct{}, len(days))
	out := make([]Day, 0, len(days))
	for _, d := range days {
		if d.Date.IsZero() {
			return nil, ErrInvalidDate
		}
		date := truncateDay(d.Date)
		if _, dup := seen[date]; dup {
			return nil, fmt.Errorf("%s: %w", date.Format(DateLayout), ErrDuplicateDate)
		}
		seen[date] = struct{}{}
		out = append(out, Day{Date: date, IsWorkDay: d.IsWorkDay})
	}
	return out, nil
}

func normalizeID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidID)
	}
	return parsed.String(), nil
}
