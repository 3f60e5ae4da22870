package constraint

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/pharmashift/pkg/model"
)

func newTestTracker(caps model.HourCaps) (*Tracker, *model.Employee) {
	emp := &model.Employee{
		ID:       uuid.New(),
		Name:     "张三",
		Role:     model.RoleEmployee,
		Active:   true,
		Caps:     caps,
		Holidays: []string{"2026-01-07"},
	}
	tracker := NewTracker(uuid.New(), []*model.Employee{emp}, Settings{MinRest: 12 * time.Hour, MaxConsecutiveDays: 3})
	return tracker, emp
}

func slotAt(day, startHour, endHour int, kind model.ShiftKind) *model.DemandSlot {
	start := time.Date(2026, 1, day, startHour, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC).Add(time.Duration(endHour) * time.Hour)
	return &model.DemandSlot{
		ID:       fmt.Sprintf("2026-01-%02d/%s/%d-%d", day, kind, startHour, endHour),
		Date:     model.FormatDate(start),
		Start:    start,
		End:      end,
		Kind:     kind,
		Required: 1,
	}
}

func TestTracker_RemainingCapacity(t *testing.T) {
	tracker, emp := newTestTracker(model.HourCaps{Daily: 8, Weekly: 20, Monthly: 80, Annual: 960})

	mon := slotAt(5, 9, 14, model.KindRegular)
	assert.Equal(t, 8*time.Hour, tracker.RemainingCapacity(emp.ID, model.PeriodDay, mon))
	assert.Equal(t, 20*time.Hour, tracker.RemainingCapacity(emp.ID, model.PeriodWeek, mon))

	tracker.Commit(emp.ID, mon)
	assert.Equal(t, 3*time.Hour, tracker.RemainingCapacity(emp.ID, model.PeriodDay, mon))
	assert.Equal(t, 15*time.Hour, tracker.RemainingCapacity(emp.ID, model.PeriodWeek, mon))
	assert.Equal(t, 75*time.Hour, tracker.RemainingCapacity(emp.ID, model.PeriodMonth, mon))

	// 下周一重置周累计
	nextMon := slotAt(12, 9, 14, model.KindRegular)
	assert.Equal(t, 20*time.Hour, tracker.RemainingCapacity(emp.ID, model.PeriodWeek, nextMon))
	assert.Equal(t, 75*time.Hour, tracker.RemainingCapacity(emp.ID, model.PeriodMonth, nextMon))

	assert.Equal(t, time.Duration(0), tracker.RemainingCapacity(uuid.New(), model.PeriodDay, mon), "未知员工没有容量")
}

func TestTracker_FitsCaps(t *testing.T) {
	tracker, emp := newTestTracker(model.HourCaps{Daily: 8, Weekly: 20, Monthly: 80, Annual: 960})

	for day := 5; day <= 8; day++ {
		s := slotAt(day, 9, 14, model.KindRegular)
		ok, _ := tracker.FitsCaps(emp.ID, s)
		require.True(t, ok, "第 %d 天应可分配", day)
		tracker.Commit(emp.ID, s)
	}

	ok, period := tracker.FitsCaps(emp.ID, slotAt(9, 9, 14, model.KindRegular))
	assert.False(t, ok)
	assert.Equal(t, model.PeriodWeek, period)

	zero, zeroEmp := newTestTracker(model.HourCaps{})
	ok, period = zero.FitsCaps(zeroEmp.ID, slotAt(5, 9, 10, model.KindRegular))
	assert.False(t, ok, "上限为 0 表示该周期不能排班")
	assert.Equal(t, model.PeriodDay, period)
}

func TestTracker_Headroom(t *testing.T) {
	tracker, emp := newTestTracker(model.HourCaps{Daily: 10, Weekly: 40, Monthly: 160, Annual: 1920})

	s := slotAt(5, 9, 14, model.KindRegular)
	assert.InDelta(t, 1.0, tracker.Headroom(emp.ID, s), 1e-9)

	tracker.Commit(emp.ID, s)
	assert.InDelta(t, 0.5, tracker.Headroom(emp.ID, slotAt(5, 14, 18, model.KindRegular)), 1e-9, "日剩余 5/10")
	assert.InDelta(t, 35.0/40.0, tracker.Headroom(emp.ID, slotAt(6, 9, 14, model.KindRegular)), 1e-9, "周剩余 35/40")
}

func TestTracker_RestSatisfied(t *testing.T) {
	tracker, emp := newTestTracker(model.HourCaps{Daily: 24, Weekly: 60, Monthly: 240, Annual: 2880})

	assert.True(t, tracker.RestSatisfied(emp.ID, slotAt(5, 9, 14, model.KindRegular)), "首个班次")
	tracker.Commit(emp.ID, slotAt(5, 9, 14, model.KindRegular))

	tests := []struct {
		name     string
		slot     *model.DemandSlot
		expected bool
	}{
		{"紧接上一班", slotAt(5, 14, 18, model.KindRegular), true},
		{"重叠", slotAt(5, 13, 18, model.KindRegular), false},
		{"间隔不足", slotAt(5, 20, 24, model.KindGuard), false},
		{"间隔恰好12小时", slotAt(6, 2, 8, model.KindRegular), true},
		{"次日同一时间", slotAt(6, 9, 14, model.KindRegular), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tracker.RestSatisfied(emp.ID, tt.slot))
		})
	}

	assert.True(t, tracker.Extends(emp.ID, slotAt(5, 14, 18, model.KindRegular)))
	assert.False(t, tracker.Extends(emp.ID, slotAt(6, 9, 14, model.KindRegular)))
}

func TestTracker_ConsecutiveDays(t *testing.T) {
	tracker, emp := newTestTracker(model.HourCaps{Daily: 8, Weekly: 40, Monthly: 160, Annual: 1920})

	for day := 5; day <= 7; day++ {
		require.True(t, tracker.ConsecutiveDaysOk(emp.ID, fmt.Sprintf("2026-01-%02d", day)))
		tracker.Commit(emp.ID, slotAt(day, 9, 14, model.KindRegular))
	}

	assert.True(t, tracker.ConsecutiveDaysOk(emp.ID, "2026-01-07"), "同一天不增加连续天数")
	assert.False(t, tracker.ConsecutiveDaysOk(emp.ID, "2026-01-08"), "第 4 天超过上限 3")
	assert.True(t, tracker.ConsecutiveDaysOk(emp.ID, "2026-01-09"), "中断后重新计数")
	assert.False(t, tracker.ConsecutiveDaysOk(emp.ID, "invalid"))
}

func TestTracker_PersonalHolidayAndFairness(t *testing.T) {
	tracker, emp := newTestTracker(model.HourCaps{Daily: 24, Weekly: 60, Monthly: 240, Annual: 2880})

	assert.True(t, tracker.IsOnPersonalHoliday(emp.ID, "2026-01-07"))
	assert.False(t, tracker.IsOnPersonalHoliday(emp.ID, "2026-01-08"))

	tracker.Commit(emp.ID, slotAt(5, 20, 24, model.KindGuard))
	tracker.Commit(emp.ID, slotAt(6, 0, 9, model.KindGuard))
	assert.Equal(t, 13*60, tracker.GuardMinutes(emp.ID))
	assert.InDelta(t, 13*60, tracker.MeanGuardMinutes(), 1e-9)
	assert.Equal(t, 0, tracker.HolidayMinutes(emp.ID))
}
