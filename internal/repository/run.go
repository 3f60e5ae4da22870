package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/pharmashift/pkg/model"
)

// RunRepository 排班结果仓储
type RunRepository struct {
	db DB
}

// NewRunRepository 创建排班结果仓储
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun 在一个事务中写入运行记录、班次、冲突和员工统计，任一步失败则全部回滚
func (r *RunRepository) SaveRun(ctx context.Context, run *model.RunResult) error {
	breakdownJSON, err := json.Marshal(run.Breakdown)
	if err != nil {
		return fmt.Errorf("序列化得分明细失败: %w", err)
	}
	metadataJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("序列化运行元数据失败: %w", err)
	}

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_runs (
				id, site_id, start_date, end_date, global_score,
				breakdown, metadata, execution_time_ns, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			run.RunID, run.SiteID, run.Horizon.StartDate, run.Horizon.EndDate, run.GlobalScore,
			breakdownJSON, metadataJSON, run.ExecutionTime.Nanoseconds(), run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("创建运行记录失败: %w", err)
		}

		if err := insertShifts(ctx, tx, run.RunID, run.Shifts); err != nil {
			return err
		}
		if err := insertConflicts(ctx, tx, run.RunID, run.Conflicts); err != nil {
			return err
		}
		return insertEmployeeStats(ctx, tx, run.RunID, run.EmployeeStats)
	})
}

// PriorShifts 读取门店最近一次与排班周期有交集的运行中、落在周期内的班次
func (r *RunRepository) PriorShifts(ctx context.Context, siteID uuid.UUID, horizon model.Horizon) ([]model.Shift, error) {
	query := `
		SELECT s.id, s.employee_id, s.date, s.end_date, s.start_at, s.end_at,
			s.duration_minutes, s.kind, s.status, s.slot_ids, s.guard_id
		FROM run_shifts s
		WHERE s.run_id = (
			SELECT id FROM schedule_runs
			WHERE site_id = $1 AND start_date <= $3 AND end_date >= $2
			ORDER BY created_at DESC
			LIMIT 1
		)
		AND s.date BETWEEN $2 AND $3
		ORDER BY s.start_at ASC, s.employee_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, siteID, horizon.StartDate, horizon.EndDate)
	if err != nil {
		return nil, fmt.Errorf("查询上期班次失败: %w", err)
	}
	defer rows.Close()

	shifts := make([]model.Shift, 0)
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历上期班次失败: %w", err)
	}
	return shifts, nil
}

func scanShift(row Scanner) (model.Shift, error) {
	var (
		s             model.Shift
		date, endDate time.Time
		slotIDs       pq.StringArray
	)
	if err := row.Scan(
		&s.ID, &s.EmployeeID, &date, &endDate, &s.Start, &s.End,
		&s.DurationMinutes, &s.Kind, &s.Status, &slotIDs, &s.GuardID,
	); err != nil {
		return s, fmt.Errorf("扫描班次失败: %w", err)
	}
	s.Date = model.FormatDate(date)
	s.EndDate = model.FormatDate(endDate)
	s.Start = s.Start.UTC()
	s.End = s.End.UTC()
	s.SlotIDs = []string(slotIDs)
	return s, nil
}

func insertShifts(ctx context.Context, tx *sql.Tx, runID uuid.UUID, shifts []model.Shift) error {
	rows := make([][]interface{}, 0, len(shifts))
	for _, s := range shifts {
		rows = append(rows, []interface{}{
			runID, s.ID, s.EmployeeID, s.Date, s.EndDate, s.Start, s.End,
			s.DurationMinutes, string(s.Kind), string(s.Status), pq.Array(s.SlotIDs), s.GuardID,
		})
	}
	err := insertBatch(ctx, tx, "run_shifts", []string{
		"run_id", "id", "employee_id", "date", "end_date", "start_at", "end_at",
		"duration_minutes", "kind", "status", "slot_ids", "guard_id",
	}, rows)
	if err != nil {
		return fmt.Errorf("写入班次失败: %w", err)
	}
	return nil
}

func insertConflicts(ctx context.Context, tx *sql.Tx, runID uuid.UUID, conflicts []model.Conflict) error {
	rows := make([][]interface{}, 0, len(conflicts))
	for _, c := range conflicts {
		rows = append(rows, []interface{}{
			runID, c.ID, string(c.Kind), string(c.Severity), c.Date,
			nullUUID(c.EmployeeID), nullUUID(c.ShiftID), c.SlotID, c.Message, pq.Array(c.Suggestions),
		})
	}
	err := insertBatch(ctx, tx, "run_conflicts", []string{
		"run_id", "id", "kind", "severity", "date",
		"employee_id", "shift_id", "slot_id", "message", "suggestions",
	}, rows)
	if err != nil {
		return fmt.Errorf("写入冲突失败: %w", err)
	}
	return nil
}

func insertEmployeeStats(ctx context.Context, tx *sql.Tx, runID uuid.UUID, stats []model.EmployeeStats) error {
	rows := make([][]interface{}, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []interface{}{
			runID, s.EmployeeID, s.Name, s.TotalHours, s.RegularHours, s.GuardHours, s.HolidayHours,
			s.Shifts, s.Guards, s.Holidays, s.DaysWorked, s.WithinCaps,
		})
	}
	err := insertBatch(ctx, tx, "run_employee_stats", []string{
		"run_id", "employee_id", "name", "total_hours", "regular_hours", "guard_hours", "holiday_hours",
		"shifts", "guards", "holidays", "days_worked", "within_caps",
	}, rows)
	if err != nil {
		return fmt.Errorf("写入员工统计失败: %w", err)
	}
	return nil
}

// insertBatch 按 batchSize 分批执行多行 INSERT
func insertBatch(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]interface{}) error {
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))

		var values []string
		var args []interface{}
		argIndex := 1
		for _, row := range rows[start:end] {
			placeholders := make([]string, len(row))
			for i := range row {
				placeholders[i] = fmt.Sprintf("$%d", argIndex)
				argIndex++
			}
			values = append(values, "("+strings.Join(placeholders, ", ")+")")
			args = append(args, row...)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			table, strings.Join(columns, ", "), strings.Join(values, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}
