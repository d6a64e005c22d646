package master

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
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
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

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
	defaultHashCost     = 12

	filterAll = "all"
)

// UseCase は作業員ユースケースの公開インターフェースです。
type UseCase interface {
	List(ctx context.Context, identity scope.Identity, in ListInput) (*ListResult, error)
	Get(ctx context.Context, identity scope.Identity, id string) (*Master, error)
	ByCity(ctx context.Context, identity scope.Identity, city string) ([]*Master, error)
	Profile(ctx context.Context, identity scope.Identity) (*Master, error)
	Create(ctx context.Context, identity scope.Identity, in CreateInput) (*Master, error)
	UpdateStatus(ctx context.Context, identity scope.Identity, id string, status Status) (*Master, error)
	Delete(ctx context.Context, identity scope.Identity, id string) error
	OrderStats(ctx context.Context, identity scope.Identity, id string, r StatsRange) (*OrderStats, error)
}

// Service は作業員に関するユースケースをまとめます。
type Service struct {
	repo     Repository
	clock    Clock
	tx       TransactionManager
	logger   *slog.Logger
	hashCost int
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

// WithHashCost は bcrypt のコストを変更します。
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{repo: repo, clock: clock, tx: tx, logger: slog.Default(), hashCost: defaultHashCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListInput は一覧取得時の入力です。City と Status の "all" は指定なしと同じです。
type ListInput struct {
	City   string
	Status string
	Page   int
	Limit  int
}

// ListResult は一覧取得結果を表します。
type ListResult struct {
	Masters []*Master
	Total   int
	Page    int
	Limit   int
}

// CreateInput は作業員作成時の入力です。
type CreateInput struct {
	Name        string
	Login       *string
	Password    *string
	Cities      []string
	Status      *Status
	Note        *string
	TelegramID  *string
	ChatID      *string
	PassportDoc *string
	ContractDoc *string
}

// List は可視範囲内の作業員をページ単位で返します。
// ページと総件数は互いに独立しているため並行に取得します。トランザクションは張りません。
func (s *Service) List(ctx context.Context, identity scope.Identity, in ListInput) (*ListResult, error) {
	page, limit, err := normalizePage(in.Page, in.Limit)
	if err != nil {
		return nil, err
	}

	var status *Status
	if raw := strings.TrimSpace(in.Status); raw != "" && raw != filterAll {
		st := Status(raw)
		if !isValidStatus(st) {
			return nil, ErrInvalidStatus
		}
		status = &st
	}

	filter := ListFilter{
		Predicate: scope.Resolve(identity, cityFilter(in.City)),
		Status:    status,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}

	var (
		masters []*Master
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.repo.List(gctx, filter)
		if err != nil {
			return err
		}
		masters = found
		return nil
	})
	g.Go(func() error {
		n, err := s.repo.Count(gctx, filter)
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if masters == nil {
		masters = []*Master{}
	}
	return &ListResult{Masters: masters, Total: total, Page: page, Limit: limit}, nil
}

// Get は作業員を取得します。
func (s *Service) Get(ctx context.Context, identity scope.Identity, id string) (*Master, error) {
	masterID, err := normalizeID(id)
	if err != nil {
		return nil, err
	}

	predicate := scope.Resolve(identity, nil)
	if self, ok := predicate.WorkerID(); ok && self != masterID {
		return nil, ErrForbidden
	}

	var result *Master
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, masterID, predicate)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ByCity は都市に所属する稼働中の作業員を名前順で返します。
func (s *Service) ByCity(ctx context.Context, identity scope.Identity, city string) ([]*Master, error) {
	active := StatusActive
	masters, err := s.repo.List(ctx, ListFilter{
		Predicate: scope.Resolve(identity, cityFilter(city)),
		Status:    &active,
		ByName:    true,
	})
	if err != nil {
		return nil, err
	}
	if masters == nil {
		masters = []*Master{}
	}
	return masters, nil
}

// Profile は呼び出し元自身の作業員情報を返します。
func (s *Service) Profile(ctx context.Context, identity scope.Identity) (*Master, error) {
	if identity.IsAdmin() {
		return nil, ErrForbidden
	}
	id, err := normalizeID(identity.ID)
	if err != nil {
		return nil, err
	}

	m, err := s.repo.FindByID(ctx, id, scope.ForWorker(id))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "profile accessed", slog.String("action", "PROFILE_ACCESSED"), slog.String("master_id", m.ID))
	return m, nil
}

// Create は新しい作業員を作成します。
func (s *Service) Create(ctx context.Context, identity scope.Identity, in CreateInput) (*Master, error) {
	if !identity.IsAdmin() {
		return nil, ErrForbidden
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	cities := normalizeCities(in.Cities)
	if len(cities) == 0 {
		return nil, ErrInvalidCities
	}
	predicate := scope.Resolve(identity, nil)
	for _, c := range cities {
		if !predicate.AllowsTenant(c) {
			return nil, fmt.Errorf("city %q: %w", c, ErrForbidden)
		}
	}

	status := StatusActive
	if in.Status != nil {
		if !isValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		status = *in.Status
	}

	login, err := normalizeLogin(in.Login)
	if err != nil {
		return nil, err
	}

	var hash *string
	if in.Password != nil && *in.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.hashCost)
		if err != nil {
			return nil, fmt.Errorf("master: hash password: %w", err)
		}
		h := string(b)
		hash = &h
	}

	var created *Master
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if login != nil {
			if err := s.ensureLoginNotTaken(txCtx, *login); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		result, err := s.repo.Create(txCtx, &Master{
			Name:        name,
			Login:       login,
			Cities:      cities,
			Status:      status,
			Note:        trimOptional(in.Note),
			TelegramID:  trimOptional(in.TelegramID),
			ChatID:      trimOptional(in.ChatID),
			PassportDoc: trimOptional(in.PassportDoc),
			ContractDoc: trimOptional(in.ContractDoc),
			HiredAt:     now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, hash)
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "master created",
		slog.String("action", "MASTER_CREATED"),
		slog.String("master_id", created.ID),
		slog.String("name", created.Name),
		slog.String("by", identity.ID),
	)
	return created, nil
}

// UpdateStatus は作業員の雇用状態を変更します。雇用状態を変える唯一の操作です。
func (s *Service) UpdateStatus(ctx context.Context, identity scope.Identity, id string, status Status) (*Master, error) {
	masterID, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if !isValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	if !identity.IsAdmin() {
		return nil, ErrForbidden
	}

	var updated *Master
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		result, err := s.repo.UpdateStatus(txCtx, masterID, status, s.clock.Now(), scope.Resolve(identity, nil))
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "master status updated",
		slog.String("action", "MASTER_STATUS_UPDATED"),
		slog.String("master_id", updated.ID),
		slog.String("status", string(status)),
		slog.String("by", identity.ID),
	)
	return updated, nil
}

// Delete は注文を持たない作業員を削除します。
func (s *Service) Delete(ctx context.Context, identity scope.Identity, id string) error {
	masterID, err := normalizeID(id)
	if err != nil {
		return err
	}
	if !identity.IsAdmin() {
		return ErrForbidden
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindByID(txCtx, masterID, scope.Resolve(identity, nil)); err != nil {
			return err
		}

		n, err := s.repo.CountOrders(txCtx, masterID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%d orders reference master %s: %w", n, masterID, ErrHasOrders)
		}

		return s.repo.Delete(txCtx, masterID)
	}); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "master deleted",
		slog.String("action", "MASTER_DELETED"),
		slog.String("master_id", masterID),
		slog.String("by", identity.ID),
	)
	return nil
}

// OrderStats は作業員の注文件数と売上を集計します。
func (s *Service) OrderStats(ctx context.Context, identity scope.Identity, id string, r StatsRange) (*OrderStats, error) {
	masterID, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return nil, ErrInvalidRange
	}

	predicate := scope.Resolve(identity, nil)
	if self, ok := predicate.WorkerID(); ok && self != masterID {
		return nil, ErrForbidden
	}

	var stats *OrderStats
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		m, err := s.repo.FindByID(txCtx, masterID, predicate)
		if err != nil {
			return err
		}

		result, err := s.repo.OrderStats(txCtx, masterID, r)
		if err != nil {
			return err
		}
		result.Master = m
		stats = result
		return nil
	}); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Service) ensureLoginNotTaken(ctx context.Context, login string) error {
	m, err := s.repo.FindByLogin(ctx, login)
	if err != nil && !errors.Is(err, ErrMasterNotFound) {
		return err
	}
	if m != nil {
		return ErrLoginTaken
	}
	return nil
}

func cityFilter(raw string) *string {
	city := strings.TrimSpace(raw)
	if city == "" || city == filterAll {
		return nil
	}
	return &city
}

func normalizeID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidID)
	}
	return parsed.String(), nil
}

func normalizeLogin(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	login := strings.TrimSpace(*raw)
	if login == "" {
		return nil, nil
	}
	if strings.ContainsAny(login, " \t\n") {
		return nil, ErrInvalidLogin
	}
	return &login, nil
}

func normalizeCities(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isValidStatus(status Status) bool {
	switch status {
	case StatusActive, StatusTerminated, StatusOnLeave, StatusSickLeave:
		return true
	default:
		return false
	}
}

func normalizePage(page, limit int) (int, int, error) {
	if page < 0 || limit < 0 {
		return 0, 0, ErrInvalidPage
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultListPageSize
	}
	if limit > maxListPageSize {
		limit = maxListPageSize
	}
	return page, limit, nil
}
