package model

import (
	"time"

	"github.com/google/uuid"
)

// ShiftKind 班次类型
type ShiftKind string

const (
	KindRegular ShiftKind = "regular" // 常规营业
	KindGuard   ShiftKind = "guard"   // 值班
	KindHoliday ShiftKind = "holiday" // 节假日
)

// ShiftStatus 班次状态
type ShiftStatus string

const (
	StatusConfirmed ShiftStatus = "confirmed"
	StatusPending   ShiftStatus = "pending"
	StatusConflict  ShiftStatus = "conflict"
)

// DemandSlot 需求时段：某日某时段需要的在岗人数
type DemandSlot struct {
	ID       string    `json:"id"`
	Date     string    `json:"date"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Kind     ShiftKind `json:"kind"`
	Required int       `json:"required"`
	GuardID  string    `json:"guard_id,omitempty"` // 跨午夜拆分的值班共享同一 GuardID
}

// Minutes 时段长度（分钟）
func (s *DemandSlot) Minutes() int {
	return int(s.End.Sub(s.Start).Minutes())
}

// Range 时段时间范围
func (s *DemandSlot) Range() TimeRange {
	return TimeRange{Start: s.Start, End: s.End}
}

// Shift 排班结果中的一个班次
type Shift struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	EmployeeID      uuid.UUID   `json:"employee_id" db:"employee_id"`
	Date            string      `json:"date" db:"date"`
	EndDate         string      `json:"end_date" db:"end_date"`
	Start           time.Time   `json:"start" db:"start_time"`
	End             time.Time   `json:"end" db:"end_time"`
	DurationMinutes int         `json:"duration_minutes" db:"duration_minutes"`
	Kind            ShiftKind   `json:"kind" db:"kind"`
	Status          ShiftStatus `json:"status" db:"status"`
	SlotIDs         []string    `json:"slot_ids" db:"-"`
	GuardID         string      `json:"guard_id,omitempty" db:"guard_id"`
}

// NewShift 根据需求时段创建班次
func NewShift(emp uuid.UUID, slot *DemandSlot) Shift {
	return Shift{
		ID:              StableID("shift", emp.String(), slot.ID),
		EmployeeID:      emp,
		Date:            slot.Date,
		EndDate:         FormatDate(slot.End.Add(-time.Nanosecond)),
		Start:           slot.Start,
		End:             slot.End,
		DurationMinutes: slot.Minutes(),
		Kind:            slot.Kind,
		Status:          StatusConfirmed,
		SlotIDs:         []string{slot.ID},
		GuardID:         slot.GuardID,
	}
}

// Hours 班次时长（小时）
func (s *Shift) Hours() float64 {
	return float64(s.DurationMinutes) / 60.0
}

// Range 班次时间范围
func (s *Shift) Range() TimeRange {
	return TimeRange{Start: s.Start, End: s.End}
}

// CoversSlot 检查班次是否覆盖某需求时段
func (s *Shift) CoversSlot(slotID string) bool {
	for _, id := range s.SlotIDs {
		if id == slotID {
			return true
		}
	}
	return false
}
