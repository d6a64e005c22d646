package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/masters-service/internal/core/schedule"
	"github.com/ogurasousui/masters-service/internal/core/scope"
	pgdb "github.com/ogurasousui/masters-service/internal/platform/db/postgres"
)

// ScheduleRepository は作業員スケジュールの永続化実装です。
type ScheduleRepository struct {
	pool pgdb.Queryer
}

// NewScheduleRepository は ScheduleRepository を生成します。
func NewScheduleRepository(pool pgdb.Queryer) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// LockMaster は作業員の行を FOR UPDATE でロックします。トランザクション内で呼び出します。
func (r *ScheduleRepository) LockMaster(ctx context.Context, masterID string, p scope.Predicate) error {
	return r.findMaster(ctx, masterID, p, " FOR UPDATE OF m")
}

// MasterExists は可視範囲内に作業員が存在するかを確認します。
func (r *ScheduleRepository) MasterExists(ctx context.Context, masterID string, p scope.Predicate) error {
	return r.findMaster(ctx, masterID, p, "")
}

func (r *ScheduleRepository) findMaster(ctx context.Context, masterID string, p scope.Predicate, suffix string) error {
	args := []any{masterID}
	cond, args := scopeClause(p, masterScopeTarget, args)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var id string
	err := exec.QueryRow(ctx, `
        SELECT m.id
          FROM masters m
         WHERE m.id = $1`+andClause([]string{cond})+suffix+`
    `, args...).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schedule.ErrMasterNotFound
		}
		return fmt.Errorf("master %s: find for schedule: %w", masterID, err)
	}
	return nil
}

// ReplaceDays は指定日付の既存行を削除し、新しい行を 1 文で一括挿入します。
func (r *ScheduleRepository) ReplaceDays(ctx context.Context, masterID string, days []schedule.Day) (int, error) {
	dates := make([]time.Time, 0, len(days))
	flags := make([]bool, 0, len(days))
	for _, d := range days {
		dates = append(dates, d.Date)
		flags = append(flags, d.IsWorkDay)
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `
        DELETE FROM master_schedules
         WHERE master_id = $1
           AND work_date = ANY($2::date[])
    `, masterID, dates); err != nil {
		return 0, fmt.Errorf("master %s: delete schedule days: %w", masterID, err)
	}

	tag, err := exec.Exec(ctx, `
        INSERT INTO master_schedules (master_id, work_date, is_work_day)
        SELECT $1::uuid, d.work_date, d.is_work_day
          FROM unnest($2::date[], $3::boolean[]) AS d(work_date, is_work_day)
    `, masterID, dates, flags)
	if err != nil {
		return 0, fmt.Errorf("master %s: insert schedule days: %w", masterID, err)
	}

	return int(tag.RowsAffected()), nil
}

func rangeConditions(rg schedule.Range, column string, args []any) ([]string, []any) {
	conditions := make([]string, 0, 2)
	if rg.Start != nil {
		args = append(args, *rg.Start)
		conditions = append(conditions, column+" >= "+placeholder(len(args)))
	}
	if rg.End != nil {
		args = append(args, *rg.End)
		conditions = append(conditions, column+" <= "+placeholder(len(args)))
	}
	return conditions, args
}

// ListDays は作業員 1 名分のスケジュールを日付昇順で返します。
func (r *ScheduleRepository) ListDays(ctx context.Context, masterID string, rg schedule.Range) ([]schedule.Day, error) {
	conditions, args := rangeConditions(rg, "work_date", []any{masterID})

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT work_date, is_work_day
          FROM master_schedules
         WHERE master_id = $1`+andClause(conditions)+`
         ORDER BY work_date
    `, args...)
	if err != nil {
		return nil, fmt.Errorf("master %s: list schedule: %w", masterID, err)
	}
	defer rows.Close()

	days := make([]schedule.Day, 0)
	for rows.Next() {
		var d schedule.Day
		if err := rows.Scan(&d.Date, &d.IsWorkDay); err != nil {
			return nil, fmt.Errorf("master %s: list schedule: %w", masterID, err)
		}
		d.Date = d.Date.UTC()
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("master %s: list schedule: %w", masterID, err)
	}
	return days, nil
}

// ListActiveMasters は可視範囲内の解雇済みでない作業員を名前順で返します。
func (r *ScheduleRepository) ListActiveMasters(ctx context.Context, p scope.Predicate) ([]schedule.MasterSchedule, error) {
	args := []any{"terminated"}
	cond, args := scopeClause(p, masterScopeTarget, args)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT m.id, m.name, m.cities
          FROM masters m
         WHERE m.status <> $1`+andClause([]string{cond})+`
         ORDER BY m.name, m.id
    `, args...)
	if err != nil {
		return nil, fmt.Errorf("masters: list for schedules: %w", err)
	}
	defer rows.Close()

	masters := make([]schedule.MasterSchedule, 0)
	for rows.Next() {
		var m schedule.MasterSchedule
		if err := rows.Scan(&m.MasterID, &m.Name, &m.Cities); err != nil {
			return nil, fmt.Errorf("masters: list for schedules: %w", err)
		}
		masters = append(masters, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("masters: list for schedules: %w", err)
	}
	return masters, nil
}

// ListDaysForMasters は複数の作業員のスケジュールを 1 回のクエリで取得し、作業員ごとにまとめます。
func (r *ScheduleRepository) ListDaysForMasters(ctx context.Context, masterIDs []string, rg schedule.Range) (map[string][]schedule.Day, error) {
	conditions, args := rangeConditions(rg, "work_date", []any{masterIDs})

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT master_id, work_date, is_work_day
          FROM master_schedules
         WHERE master_id = ANY($1::uuid[])`+andClause(conditions)+`
         ORDER BY master_id, work_date
    `, args...)
	if err != nil {
		return nil, fmt.Errorf("masters: bulk list schedules: %w", err)
	}
	defer rows.Close()

	byMaster := make(map[string][]schedule.Day, len(masterIDs))
	for rows.Next() {
		var (
			masterID string
			d        schedule.Day
		)
		if err := rows.Scan(&masterID, &d.Date, &d.IsWorkDay); err != nil {
			return nil, fmt.Errorf("masters: bulk list schedules: %w", err)
		}
		d.Date = d.Date.UTC()
		byMaster[masterID] = append(byMaster[masterID], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("masters: bulk list schedules: %w", err)
	}
	return byMaster, nil
}
