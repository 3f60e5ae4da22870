package model

import (
	"time"

	"github.com/google/uuid"
)

// ConflictKind 冲突类型
type ConflictKind string

const (
	ConflictInsufficientCoverage ConflictKind = "insufficient_coverage"
	ConflictHourOverrun          ConflictKind = "hour_overrun"
	ConflictInsufficientRest     ConflictKind = "insufficient_rest"
	ConflictConsecutiveWorkdays  ConflictKind = "too_many_consecutive_workdays"
)

// Severity 严重程度
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank 严重程度排序值，越大越严重
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Conflict 排班冲突
type Conflict struct {
	ID          uuid.UUID    `json:"id"`
	Kind        ConflictKind `json:"kind"`
	Severity    Severity     `json:"severity"`
	Date        string       `json:"date"`
	EmployeeID  *uuid.UUID   `json:"employee_id,omitempty"`
	ShiftID     *uuid.UUID   `json:"shift_id,omitempty"`
	SlotID      string       `json:"slot_id,omitempty"`
	Message     string       `json:"message"`
	Suggestions []string     `json:"suggestions"`
}

// EmployeeStats 员工排班统计
type EmployeeStats struct {
	EmployeeID   uuid.UUID `json:"employee_id"`
	Name         string    `json:"name"`
	TotalHours   float64   `json:"total_hours"`
	RegularHours float64   `json:"regular_hours"`
	GuardHours   float64   `json:"guard_hours"`
	HolidayHours float64   `json:"holiday_hours"`
	Shifts       int       `json:"shifts"`
	Guards       int       `json:"guards"`   // 值班次数（跨午夜拆分的值班计一次）
	Holidays     int       `json:"holidays"` // 节假日出勤天数
	DaysWorked   int       `json:"days_worked"`
	WithinCaps   bool      `json:"within_caps"`
}

// ScoreBreakdown 全局得分各分项，均在 [0,1]
type ScoreBreakdown struct {
	Coverage        float64  `json:"coverage"`
	CapAdherence    float64  `json:"cap_adherence"`
	GuardEvenness   float64  `json:"guard_evenness"`
	HolidayEvenness float64  `json:"holiday_evenness"`
	Stability       *float64 `json:"stability,omitempty"` // 仅在提供上期排班时计算
}

// RunMetadata 执行元数据
type RunMetadata struct {
	Strategy        Strategy   `json:"strategy"`
	Preference      Preference `json:"preference"`
	Iterations      int        `json:"iterations"`
	SlotsTotal      int        `json:"slots_total"`
	SlotsProcessed  int        `json:"slots_processed"`
	SlotsUnfilled   int        `json:"slots_unfilled"`
	BudgetExhausted bool       `json:"budget_exhausted"`
}

// RunResult 一次排班运行的结果
type RunResult struct {
	RunID         uuid.UUID       `json:"run_id"`
	SiteID        uuid.UUID       `json:"site_id"`
	Horizon       Horizon         `json:"horizon"`
	Shifts        []Shift         `json:"shifts"`
	Conflicts     []Conflict      `json:"conflicts"`
	EmployeeStats []EmployeeStats `json:"employee_stats"`
	GlobalScore   float64         `json:"global_score"`
	Breakdown     ScoreBreakdown  `json:"breakdown"`
	ExecutionTime time.Duration   `json:"execution_time_ns"`
	Metadata      RunMetadata     `json:"metadata"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CountConflicts 按类型统计冲突数
func (r *RunResult) CountConflicts(kind ConflictKind) int {
	n := 0
	for _, c := range r.Conflicts {
		if c.Kind == kind {
			n++
		}
	}
	return n
}
