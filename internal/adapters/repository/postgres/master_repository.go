package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/masters-service/internal/core/master"
	"github.com/ogurasousui/masters-service/internal/core/scope"
	pgdb "github.com/ogurasousui/masters-service/internal/platform/db/postgres"
	"github.com/shopspring/decimal"
)

const masterColumns = `m.id,
               m.name,
               m.login,
               m.cities,
               m.status,
               m.note,
               m.telegram_id,
               m.chat_id,
               m.passport_doc,
               m.contract_doc,
               m.hired_at,
               m.created_at,
               m.updated_at`

// 統計で完了および進行中とみなす注文の状態です。
var (
	completedOrderStatus    = "closed"
	inProgressOrderStatuses = []string{"in_work", "master_assigned", "master_en_route"}
)

// MasterRepository は PostgreSQL を利用した作業員永続化の実装です。
type MasterRepository struct {
	pool pgdb.Queryer
}

// NewMasterRepository は MasterRepository を生成します。
func NewMasterRepository(pool pgdb.Queryer) *MasterRepository {
	return &MasterRepository{pool: pool}
}

// Create は作業員を新規作成します。
func (r *MasterRepository) Create(ctx context.Context, m *master.Master, passwordHash *string) (*master.Master, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO masters AS m (name, login, password_hash, cities, status, note, telegram_id, chat_id, passport_doc, contract_doc, hired_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING `+masterColumns,
		m.Name,
		m.Login,
		passwordHash,
		m.Cities,
		string(m.Status),
		m.Note,
		m.TelegramID,
		m.ChatID,
		m.PassportDoc,
		m.ContractDoc,
		m.HiredAt,
		m.CreatedAt,
		m.UpdatedAt,
	)

	created, err := scanMaster(row)
	if err != nil {
		return nil, translateMasterPgError(err)
	}
	return created, nil
}

// FindByID は可視範囲内の作業員を ID で取得します。
func (r *MasterRepository) FindByID(ctx context.Context, id string, p scope.Predicate) (*master.Master, error) {
	args := []any{id}
	cond, args := scopeClause(p, masterScopeTarget, args)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+masterColumns+`
          FROM masters m
         WHERE m.id = $1`+andClause([]string{cond})+`
    `, args...)

	found, err := scanMaster(row)
	if err != nil {
		return nil, wrapMasterError(id, "find", err)
	}
	return found, nil
}

// FindByLogin はログイン名で作業員を取得します。
func (r *MasterRepository) FindByLogin(ctx context.Context, login string) (*master.Master, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+masterColumns+`
          FROM masters m
         WHERE m.login = $1
    `, login)

	found, err := scanMaster(row)
	if err != nil {
		return nil, translateMasterPgError(err)
	}
	return found, nil
}

func listConditions(filter master.ListFilter) (string, []any) {
	args := make([]any, 0, 4)
	cond, args := scopeClause(filter.Predicate, masterScopeTarget, args)
	conditions := []string{cond}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, "m.status = "+placeholder(len(args)))
	}

	where := make([]string, 0, len(conditions))
	for _, c := range conditions {
		if c != "" {
			where = append(where, c)
		}
	}
	if len(where) == 0 {
		return "", args
	}
	return "\n         WHERE " + strings.Join(where, "\n           AND "), args
}

// List は作業員の一覧を取得します。
func (r *MasterRepository) List(ctx context.Context, filter master.ListFilter) ([]*master.Master, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, master.ErrInvalidPage
	}

	whereClause, args := listConditions(filter)

	orderBy := "m.status, m.hired_at DESC, m.id"
	if filter.ByName {
		orderBy = "m.name, m.id"
	}

	query := `
        SELECT ` + masterColumns + `
          FROM masters m` + whereClause + `
         ORDER BY ` + orderBy
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += "\n         LIMIT " + placeholder(len(args))
		args = append(args, filter.Offset)
		query += "\n        OFFSET " + placeholder(len(args))
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("masters: list: %w", err)
	}
	defer rows.Close()

	masters := make([]*master.Master, 0, filter.Limit)
	for rows.Next() {
		m, err := scanMaster(rows)
		if err != nil {
			return nil, fmt.Errorf("masters: list: %w", err)
		}
		masters = append(masters, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("masters: list: %w", err)
	}

	return masters, nil
}

// Count はフィルタに一致する作業員数を返します。
func (r *MasterRepository) Count(ctx context.Context, filter master.ListFilter) (int, error) {
	whereClause, args := listConditions(filter)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int64
	if err := exec.QueryRow(ctx, `
        SELECT COUNT(*)
          FROM masters m`+whereClause+`
    `, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("masters: count: %w", err)
	}
	return int(n), nil
}

// UpdateStatus は可視範囲内の作業員の雇用状態を更新します。
func (r *MasterRepository) UpdateStatus(ctx context.Context, id string, status master.Status, at time.Time, p scope.Predicate) (*master.Master, error) {
	args := []any{string(status), at, id}
	cond, args := scopeClause(p, masterScopeTarget, args)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE masters AS m
           SET status = $1,
               updated_at = $2
         WHERE m.id = $3`+andClause([]string{cond})+`
        RETURNING `+masterColumns,
		args...,
	)

	updated, err := scanMaster(row)
	if err != nil {
		return nil, wrapMasterError(id, "update status", err)
	}
	return updated, nil
}

// CountOrders は作業員を参照している注文数を返します。
func (r *MasterRepository) CountOrders(ctx context.Context, id string) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int64
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE master_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("master %s: count orders: %w", id, err)
	}
	return int(n), nil
}

// Delete は作業員を削除します。
func (r *MasterRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM masters WHERE id = $1`, id)
	if err != nil {
		return wrapMasterError(id, "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return master.ErrMasterNotFound
	}
	return nil
}

// OrderStats は作業員の注文件数と売上を 1 回の集計クエリで取得します。
func (r *MasterRepository) OrderStats(ctx context.Context, id string, rg master.StatsRange) (*master.OrderStats, error) {
	args := []any{id, completedOrderStatus, inProgressOrderStatuses}
	conditions := make([]string, 0, 2)
	if rg.From != nil {
		args = append(args, *rg.From)
		conditions = append(conditions, "created_at >= "+placeholder(len(args)))
	}
	if rg.To != nil {
		// 終了日はその日の終わりまで含めます。
		args = append(args, rg.To.AddDate(0, 0, 1))
		conditions = append(conditions, "created_at < "+placeholder(len(args)))
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = $2),
               COUNT(*) FILTER (WHERE status = ANY($3::text[])),
               COALESCE(SUM(result), 0)::text,
               COALESCE(SUM(clean), 0)::text,
               COALESCE(SUM(master_change), 0)::text
          FROM orders
         WHERE master_id = $1`+andClause(conditions)+`
    `, args...)

	var (
		total, completed, inProgress int64
		revenue, clean, change       string
	)
	if err := row.Scan(&total, &completed, &inProgress, &revenue, &clean, &change); err != nil {
		return nil, fmt.Errorf("master %s: order stats: %w", id, err)
	}

	stats := &master.OrderStats{
		Total:      int(total),
		Completed:  int(completed),
		InProgress: int(inProgress),
	}
	var err error
	if stats.Revenue, err = decimal.NewFromString(revenue); err != nil {
		return nil, fmt.Errorf("master %s: order stats: %w", id, err)
	}
	if stats.Clean, err = decimal.NewFromString(clean); err != nil {
		return nil, fmt.Errorf("master %s: order stats: %w", id, err)
	}
	if stats.MasterChange, err = decimal.NewFromString(change); err != nil {
		return nil, fmt.Errorf("master %s: order stats: %w", id, err)
	}
	return stats, nil
}

func scanMaster(row pgx.Row) (*master.Master, error) {
	var (
		m           master.Master
		login       sql.NullString
		status      string
		note        sql.NullString
		telegramID  sql.NullString
		chatID      sql.NullString
		passportDoc sql.NullString
		contractDoc sql.NullString
	)

	if err := row.Scan(
		&m.ID,
		&m.Name,
		&login,
		&m.Cities,
		&status,
		&note,
		&telegramID,
		&chatID,
		&passportDoc,
		&contractDoc,
		&m.HiredAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, master.ErrMasterNotFound
		}
		return nil, err
	}

	m.Login = nullableString(login)
	m.Status = master.Status(status)
	m.Note = nullableString(note)
	m.TelegramID = nullableString(telegramID)
	m.ChatID = nullableString(chatID)
	m.PassportDoc = nullableString(passportDoc)
	m.ContractDoc = nullableString(contractDoc)
	if m.Cities == nil {
		m.Cities = []string{}
	}
	return &m, nil
}

func translateMasterPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return master.ErrMasterNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return master.ErrLoginTaken
		case foreignKeyViolationCode:
			return master.ErrHasOrders
		case checkViolationCode:
			return master.ErrInvalidStatus
		}
	}

	return err
}

func wrapMasterError(id, action string, err error) error {
	translated := translateMasterPgError(err)
	if errors.Is(translated, master.ErrMasterNotFound) {
		return translated
	}
	return fmt.Errorf("master %s: %s: %w", id, action, translated)
}
