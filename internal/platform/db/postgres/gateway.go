package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTimeout はストレージ呼び出しが上限時間を超えた場合に返却されます。
var ErrTimeout = errors.New("postgres: storage call timed out")

// Pool は Gateway が包む接続プールです。pgxpool.Pool と pgxmock のプールが満たします。
type Pool interface {
	Queryer
	txStarter
	Ping(ctx context.Context) error
	Close()
}

// QueryObserver はストレージ呼び出しの所要時間を受け取ります。
type QueryObserver interface {
	ObserveQuery(op string, d time.Duration, err error)
}

// Gateway はリポジトリが共有するストレージゲートウェイです。
// すべての呼び出しをコンテキスト内のトランザクションへ振り分け、タイムアウトで上限を設けます。
type Gateway struct {
	pool     Pool
	timeout  time.Duration
	slow     time.Duration
	logger   *slog.Logger
	observer QueryObserver
}

// GatewayOption は Gateway の設定を変更します。
type GatewayOption func(*Gateway)

// WithQueryTimeout は 1 回のストレージ呼び出しの上限時間を設定します。0 は無制限です。
func WithQueryTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithSlowQueryThreshold は警告ログを出す閾値を設定します。
func WithSlowQueryThreshold(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.slow = d }
}

// WithLogger はロガーを設定します。
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver はメトリクス記録先を設定します。
func WithObserver(o QueryObserver) GatewayOption {
	return func(g *Gateway) { g.observer = o }
}

// NewGateway は既存のプールから Gateway を生成します。
func NewGateway(pool Pool, opts ...GatewayOption) *Gateway {
	g := &Gateway{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Close は接続プールを閉じます。
func (g *Gateway) Close() {
	g.pool.Close()
}

// Ping は疎通確認を行います。
func (g *Gateway) Ping(ctx context.Context) error {
	callCtx, cancel := g.bound(ctx)
	defer cancel()
	return g.classify(callCtx, g.pool.Ping(callCtx))
}

// BeginTx はトランザクションを開始します。TransactionManager から利用されます。
// 返却されるトランザクション上の呼び出しにも Gateway と同じ上限時間が適用されます。
func (g *Gateway) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	callCtx, cancel := g.bound(ctx)
	defer cancel()
	start := time.Now()

	tx, err := g.pool.BeginTx(callCtx, opts)
	err = g.classify(callCtx, err)
	g.observe("begin", start, err)
	if err != nil {
		return nil, err
	}
	return &boundedTx{Tx: tx, gw: g}, nil
}

// Query は行を返すクエリを実行します。返却された行を Close した時点で時間計測を終えます。
func (g *Gateway) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return g.query(ctx, g.target(ctx), sql, args...)
}

// QueryRow は 1 行を返すクエリを実行します。
func (g *Gateway) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return g.queryRow(ctx, g.target(ctx), sql, args...)
}

// Exec は行を返さない文を実行します。
func (g *Gateway) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return g.exec(ctx, g.target(ctx), sql, args...)
}

// target はコンテキスト内のトランザクション、なければプールを返します。
// 境界付きトランザクションは二重に計測しないよう内側の pgx.Tx を返します。
func (g *Gateway) target(ctx context.Context) Queryer {
	tx, ok := txFromContext(ctx)
	if !ok {
		return g.pool
	}
	if b, ok := tx.(*boundedTx); ok {
		return b.Tx
	}
	return tx
}

func (g *Gateway) query(ctx context.Context, q Queryer, sql string, args ...any) (pgx.Rows, error) {
	callCtx, cancel := g.bound(ctx)
	start := time.Now()

	rows, err := q.Query(callCtx, sql, args...)
	if err != nil {
		cancel()
		err = g.classify(callCtx, err)
		g.observe("query", start, err)
		return nil, err
	}

	return &boundedRows{Rows: rows, gw: g, ctx: callCtx, cancel: cancel, start: start}, nil
}

func (g *Gateway) queryRow(ctx context.Context, q Queryer, sql string, args ...any) pgx.Row {
	callCtx, cancel := g.bound(ctx)
	start := time.Now()

	row := q.QueryRow(callCtx, sql, args...)
	return &boundedRow{row: row, gw: g, ctx: callCtx, cancel: cancel, start: start}
}

func (g *Gateway) exec(ctx context.Context, q Queryer, sql string, args ...any) (pgconn.CommandTag, error) {
	callCtx, cancel := g.bound(ctx)
	defer cancel()
	start := time.Now()

	tag, err := q.Exec(callCtx, sql, args...)
	err = g.classify(callCtx, err)
	g.observe("exec", start, err)
	return tag, err
}

func (g *Gateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) classify(callCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if pgconn.Timeout(err) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func (g *Gateway) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if g.observer != nil {
		g.observer.ObserveQuery(op, elapsed, err)
	}

	switch {
	case errors.Is(err, ErrTimeout):
		g.logger.Error("storage call timed out", slog.String("op", op), slog.Duration("elapsed", elapsed))
	case g.slow > 0 && elapsed > g.slow:
		g.logger.Warn("slow storage call", slog.String("op", op), slog.Duration("elapsed", elapsed))
	}
}

type boundedRows struct {
	pgx.Rows
	gw     *Gateway
	ctx    context.Context
	cancel context.CancelFunc
	start  time.Time
	once   sync.Once
}

func (r *boundedRows) Err() error {
	return r.gw.classify(r.ctx, r.Rows.Err())
}

func (r *boundedRows) Close() {
	r.Rows.Close()
	r.once.Do(func() {
		err := r.Err()
		r.cancel()
		r.gw.observe("query", r.start, err)
	})
}

type boundedRow struct {
	row    pgx.Row
	gw     *Gateway
	ctx    context.Context
	cancel context.CancelFunc
	start  time.Time
}

func (r *boundedRow) Scan(dest ...any) error {
	defer r.cancel()

	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		r.gw.observe("query_row", r.start, nil)
		return err
	}
	err = r.gw.classify(r.ctx, err)
	r.gw.observe("query_row", r.start, err)
	return err
}

// boundedTx は Gateway が開始したトランザクションです。
// クエリ、コミット、ロールバックのそれぞれに Gateway の上限時間を適用します。
type boundedTx struct {
	pgx.Tx
	gw *Gateway
}

func (t *boundedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.gw.query(ctx, t.Tx, sql, args...)
}

func (t *boundedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.gw.queryRow(ctx, t.Tx, sql, args...)
}

func (t *boundedTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.gw.exec(ctx, t.Tx, sql, args...)
}

func (t *boundedTx) Commit(ctx context.Context) error {
	callCtx, cancel := t.gw.bound(ctx)
	defer cancel()
	start := time.Now()

	err := t.gw.classify(callCtx, t.Tx.Commit(callCtx))
	t.gw.observe("commit", start, err)
	return err
}

func (t *boundedTx) Rollback(ctx context.Context) error {
	callCtx, cancel := t.gw.bound(ctx)
	defer cancel()

	return t.gw.classify(callCtx, t.Tx.Rollback(callCtx))
}
