package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/masters-service/internal/core/handover"
	"github.com/ogurasousui/masters-service/internal/core/scope"
	pgdb "github.com/ogurasousui/masters-service/internal/platform/db/postgres"
	"github.com/shopspring/decimal"
)

const orderColumns = `o.id,
               o.master_id,
               COALESCE(m.name, ''),
               o.city,
               o.address,
               o.problem,
               o.status,
               COALESCE(o.result, 0)::text,
               COALESCE(o.clean, 0)::text,
               COALESCE(o.master_change, 0)::text,
               o.cash_submission_status,
               o.cash_receipt_doc,
               o.closed_at,
               o.cash_approved_by,
               o.cash_approved_at,
               o.created_at`

// OrderRepository は現金受け渡しに関する注文の永続化実装です。
type OrderRepository struct {
	pool pgdb.Queryer
}

// NewOrderRepository は OrderRepository を生成します。
func NewOrderRepository(pool pgdb.Queryer) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// FindOrderByID は ID で注文を取得します。
func (r *OrderRepository) FindOrderByID(ctx context.Context, id string) (*handover.Order, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+orderColumns+`
          FROM orders o
          LEFT JOIN masters m ON m.id = o.master_id
         WHERE o.id = $1
    `, id)

	order, err := scanOrder(row)
	if err != nil {
		return nil, wrapOrderError(id, "find", err)
	}
	return order, nil
}

// TransitionCashStatus は現在の状態が in.From に含まれる場合に限り状態を更新します。
// 2 つの判定が競合した場合、後から来た側は 0 行更新となり ErrAlreadyDecided を受け取ります。
func (r *OrderRepository) TransitionCashStatus(ctx context.Context, in handover.Transition) (*handover.Order, error) {
	from := make([]string, 0, len(in.From))
	for _, s := range in.From {
		from = append(from, string(s))
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        WITH o AS (
            UPDATE orders
               SET cash_submission_status = $1,
                   cash_approved_by = $2,
                   cash_approved_at = $3
             WHERE id = $4
               AND cash_submission_status = ANY($5::text[])
            RETURNING *
        )
        SELECT `+orderColumns+`
          FROM o
          LEFT JOIN masters m ON m.id = o.master_id
    `,
		string(in.To),
		in.ActorID,
		in.At,
		in.OrderID,
		from,
	)

	order, err := scanOrder(row)
	if errors.Is(err, handover.ErrOrderNotFound) {
		return nil, wrapOrderError(in.OrderID, "update cash status", handover.ErrAlreadyDecided)
	}
	if err != nil {
		return nil, wrapOrderError(in.OrderID, "update cash status", err)
	}
	return order, nil
}

// SummarizeOutstanding は未精算の注文を作業員単位で 1 回の集計クエリにまとめます。
func (r *OrderRepository) SummarizeOutstanding(ctx context.Context, p scope.Predicate) ([]handover.MasterTotal, error) {
	args := []any{handover.ReadyLifecycleStatus, outstandingStatuses()}
	cond, args := scopeClause(p, orderScopeTarget, args)

	query := `
        SELECT m.id,
               m.name,
               m.cities,
               COUNT(o.id),
               COALESCE(SUM(o.clean), 0)::text
          FROM orders o
          JOIN masters m ON m.id = o.master_id
         WHERE o.status = $1
           AND o.cash_submission_status = ANY($2::text[])` + andClause([]string{cond}) + `
         GROUP BY m.id, m.name, m.cities
         ORDER BY m.name, m.id
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orders: summarize outstanding: %w", err)
	}
	defer rows.Close()

	totals := make([]handover.MasterTotal, 0)
	for rows.Next() {
		var (
			row   handover.MasterTotal
			count int64
			sum   string
		)
		if err := rows.Scan(&row.ID, &row.Name, &row.Cities, &count, &sum); err != nil {
			return nil, fmt.Errorf("orders: summarize outstanding: %w", err)
		}
		total, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("orders: summarize outstanding: parse total %q: %w", sum, err)
		}
		row.Total = total
		row.OrdersCount = int(count)
		totals = append(totals, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: summarize outstanding: %w", err)
	}

	return totals, nil
}

// FindMaster は可視範囲内の作業員を取得します。
func (r *OrderRepository) FindMaster(ctx context.Context, id string, p scope.Predicate) (*handover.MasterRef, error) {
	args := []any{id}
	cond, args := scopeClause(p, masterScopeTarget, args)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT m.id, m.name, m.cities
          FROM masters m
         WHERE m.id = $1`+andClause([]string{cond})+`
    `, args...)

	var ref handover.MasterRef
	if err := row.Scan(&ref.ID, &ref.Name, &ref.Cities); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, handover.ErrMasterNotFound
		}
		return nil, fmt.Errorf("master %s: find: %w", id, err)
	}
	return &ref, nil
}

// ListOutstanding は作業員 1 名分の未精算注文を可視範囲で絞り込んで返します。
func (r *OrderRepository) ListOutstanding(ctx context.Context, masterID string, p scope.Predicate) ([]*handover.Order, error) {
	args := []any{masterID, handover.ReadyLifecycleStatus, outstandingStatuses()}
	cond, args := scopeClause(p, orderScopeTarget, args)

	query := `
        SELECT ` + orderColumns + `
          FROM orders o
          LEFT JOIN masters m ON m.id = o.master_id
         WHERE o.master_id = $1
           AND o.status = $2
           AND o.cash_submission_status = ANY($3::text[])` + andClause([]string{cond}) + `
         ORDER BY o.created_at, o.id
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("master %s: list outstanding orders: %w", masterID, err)
	}
	defer rows.Close()

	orders := make([]*handover.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("master %s: list outstanding orders: %w", masterID, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("master %s: list outstanding orders: %w", masterID, err)
	}

	return orders, nil
}

func outstandingStatuses() []string {
	statuses := handover.DecidableStatuses()
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func scanOrder(row pgx.Row) (*handover.Order, error) {
	var (
		o            handover.Order
		masterID     sql.NullString
		result       string
		clean        string
		masterChange string
		cashStatus   string
		receipt      sql.NullString
		closedAt     sql.NullTime
		approvedBy   sql.NullString
		approvedAt   sql.NullTime
		createdAt    time.Time
	)

	if err := row.Scan(
		&o.ID,
		&masterID,
		&o.MasterName,
		&o.City,
		&o.Address,
		&o.Problem,
		&o.Status,
		&result,
		&clean,
		&masterChange,
		&cashStatus,
		&receipt,
		&closedAt,
		&approvedBy,
		&approvedAt,
		&createdAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, handover.ErrOrderNotFound
		}
		return nil, err
	}

	var err error
	if o.Result, err = decimal.NewFromString(result); err != nil {
		return nil, fmt.Errorf("parse result %q: %w", result, err)
	}
	if o.Clean, err = decimal.NewFromString(clean); err != nil {
		return nil, fmt.Errorf("parse clean %q: %w", clean, err)
	}
	if o.MasterChange, err = decimal.NewFromString(masterChange); err != nil {
		return nil, fmt.Errorf("parse master change %q: %w", masterChange, err)
	}

	o.MasterID = masterID.String
	o.CashStatus = handover.CashStatus(cashStatus)
	o.ReceiptDoc = nullableString(receipt)
	o.ClosedAt = nullableTimestamp(closedAt)
	o.ApprovedBy = nullableString(approvedBy)
	o.ApprovedAt = nullableTimestamp(approvedAt)
	o.CreatedAt = createdAt.UTC()
	return &o, nil
}

func wrapOrderError(id, action string, err error) error {
	if errors.Is(err, handover.ErrOrderNotFound) || errors.Is(err, handover.ErrAlreadyDecided) {
		return fmt.Errorf("order %s: %s: %w", id, action, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == checkViolationCode {
		return fmt.Errorf("order %s: %s: %w", id, action, handover.ErrInvalidStatus)
	}
	return fmt.Errorf("order %s: %s: %w", id, action, err)
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableTimestamp(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
