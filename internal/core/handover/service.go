package handover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/masters-service/internal/core/scope"
	"github.com/shopspring/decimal"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

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

// DecisionObserver は判定結果の記録先です。
type DecisionObserver interface {
	ObserveDecision(decision, outcome string)
}

// UseCase は現金受け渡しユースケースの公開インターフェースです。
type UseCase interface {
	Approve(ctx context.Context, orderID string, actor scope.Identity) (*Order, error)
	Reject(ctx context.Context, orderID string, actor scope.Identity) (*Order, error)
	Summarize(ctx context.Context, identity scope.Identity, cityFilter *string) (*Summary, error)
	Details(ctx context.Context, identity scope.Identity, masterID string) (*Detail, error)
}

// Service は現金受け渡しの判定と集計を担います。
type Service struct {
	repo     Repository
	clock    Clock
	tx       TransactionManager
	logger   *slog.Logger
	observer DecisionObserver
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithLogger は監査ログの出力先を設定します。
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver は判定結果のメトリクス記録先を設定します。
func WithObserver(o DecisionObserver) Option {
	return func(s *Service) { s.observer = o }
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{repo: repo, clock: clock, tx: tx, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Approve は未精算の注文を承認します。
func (s *Service) Approve(ctx context.Context, orderID string, actor scope.Identity) (*Order, error) {
	return s.decide(ctx, DecisionApprove, orderID, actor)
}

// Reject は未精算の注文を却下します。
func (s *Service) Reject(ctx context.Context, orderID string, actor scope.Identity) (*Order, error) {
	return s.decide(ctx, DecisionReject, orderID, actor)
}

func (s *Service) decide(ctx context.Context, d Decision, orderID string, actor scope.Identity) (*Order, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, ErrMissingActor
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	id, err := normalizeID(orderID)
	if err != nil {
		return nil, err
	}

	var decided *Order
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		order, err := s.repo.FindOrderByID(txCtx, id)
		if err != nil {
			return err
		}

		next, err := order.CashStatus.Apply(d)
		if err != nil {
			return err
		}

		updated, err := s.repo.TransitionCashStatus(txCtx, Transition{
			OrderID: id,
			From:    DecidableStatuses(),
			To:      next,
			ActorID: actor.ID,
			At:      s.clock.Now(),
		})
		if err != nil {
			return err
		}

		decided = updated
		return nil
	})

	s.record(ctx, d, id, actor, err)
	if err != nil {
		return nil, err
	}
	return decided, nil
}

func (s *Service) record(ctx context.Context, d Decision, orderID string, actor scope.Identity, err error) {
	outcome := outcomeOf(err)
	if s.observer != nil {
		s.observer.ObserveDecision(string(d), outcome)
	}

	attrs := []slog.Attr{
		slog.String("order_id", orderID),
		slog.String("by", actor.ID),
		slog.String("role", string(actor.Role)),
	}
	switch outcome {
	case "ok":
		action := "HANDOVER_APPROVED"
		if d == DecisionReject {
			action = "HANDOVER_REJECTED"
		}
		s.logger.LogAttrs(ctx, slog.LevelInfo, "cash handover decided", append(attrs, slog.String("action", action))...)
	case "conflict":
		s.logger.LogAttrs(ctx, slog.LevelWarn, "cash handover already decided", append(attrs, slog.String("decision", string(d)))...)
	case "error":
		s.logger.LogAttrs(ctx, slog.LevelError, "cash handover decision failed", append(attrs, slog.String("decision", string(d)), slog.Any("error", err))...)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyDecided):
		return "conflict"
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Summarize は呼び出し元の可視範囲内で、作業員ごとの未精算額を集計します。
func (s *Service) Summarize(ctx context.Context, identity scope.Identity, cityFilter *string) (*Summary, error) {
	predicate := scope.Resolve(identity, cityFilter)

	rows, err := s.repo.SummarizeOutstanding(ctx, predicate)
	if err != nil {
		return nil, err
	}

	masters := make([]MasterTotal, 0, len(rows))
	total := decimal.Zero
	for _, row := range rows {
		row.Total = row.Total.Round(2)
		total = total.Add(row.Total)
		masters = append(masters, row)
	}

	slices.SortStableFunc(masters, func(a, b MasterTotal) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return &Summary{Masters: masters, Total: total.Round(2)}, nil
}

// Details は作業員 1 名分の未精算注文を返します。
func (s *Service) Details(ctx context.Context, identity scope.Identity, masterID string) (*Detail, error) {
	id, err := normalizeID(masterID)
	if err != nil {
		return nil, err
	}

	predicate := scope.Resolve(identity, nil)
	if self, ok := predicate.WorkerID(); ok && self != id {
		return nil, ErrForbidden
	}

	var detail *Detail
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		master, err := s.repo.FindMaster(txCtx, id, predicate)
		if err != nil {
			return err
		}

		orders, err := s.repo.ListOutstanding(txCtx, id, predicate)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, o := range orders {
			o.MasterName = master.Name
			total = total.Add(o.Clean)
		}

		detail = &Detail{Master: *master, Orders: orders, Total: total.Round(2)}
		return nil
	}); err != nil {
		return nil, err
	}

	return detail, nil
}

func normalizeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidID)
	}
	return parsed.String(), nil
}
