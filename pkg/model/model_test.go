package model

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmployee_IsSchedulable(t *testing.T) {
	site := uuid.New()
	other := uuid.New()

	tests := []struct {
		name     string
		emp      Employee
		expected bool
	}{
		{"普通员工", Employee{Role: RoleEmployee, Active: true, SiteID: &site}, true},
		{"店长", Employee{Role: RoleManager, Active: true, SiteID: &site}, true},
		{"管理员未显示日历", Employee{Role: RoleAdmin, Active: true, SiteID: &site}, false},
		{"管理员显示日历", Employee{Role: RoleAdmin, Active: true, ShowInCalendar: true, SiteID: &site}, true},
		{"已停用", Employee{Role: RoleEmployee, SiteID: &site}, false},
		{"其他门店", Employee{Role: RoleEmployee, Active: true, SiteID: &other}, false},
		{"机动人员", Employee{Role: RoleEmployee, Active: true}, true},
		{"未知角色", Employee{Role: Role("guest"), Active: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.emp.IsSchedulable(site))
		})
	}
}

func TestHourCaps_Validate(t *testing.T) {
	tests := []struct {
		name    string
		caps    HourCaps
		reasons int
	}{
		{"合法", HourCaps{Daily: 8, Weekly: 40, Monthly: 160, Annual: 1920}, 0},
		{"全为零", HourCaps{}, 0},
		{"月上限过小", HourCaps{Daily: 8, Weekly: 40, Monthly: 150, Annual: 1920}, 1},
		{"年上限过小", HourCaps{Daily: 8, Weekly: 40, Monthly: 160, Annual: 1000}, 1},
		{"负数", HourCaps{Daily: -1, Weekly: 0, Monthly: 0, Annual: 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.caps.Validate(), tt.reasons)
		})
	}
}

func TestPeriodKey(t *testing.T) {
	// 2026-01-04 是周日，属于 2026 年第 1 个 ISO 周
	sunday := time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-W01", PeriodKey(PeriodWeek, sunday))
	assert.Equal(t, "2026-W02", PeriodKey(PeriodWeek, monday))
	assert.Equal(t, "2026-01-05", PeriodKey(PeriodDay, monday))
	assert.Equal(t, "2026-01", PeriodKey(PeriodMonth, monday))
	assert.Equal(t, "2026", PeriodKey(PeriodYear, monday))
}

func TestTimeRange_MinutesByDate(t *testing.T) {
	tr := TimeRange{
		Start: time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC),
	}

	got := tr.MinutesByDate()
	assert.Equal(t, map[string]int{"2026-01-05": 240, "2026-01-06": 540}, got)
}

func TestHorizon(t *testing.T) {
	h := Horizon{StartDate: "2026-01-30", EndDate: "2026-02-02"}
	assert.Equal(t, []string{"2026-01-30", "2026-01-31", "2026-02-01", "2026-02-02"}, h.Dates())
	assert.True(t, h.Contains("2026-02-01"))
	assert.False(t, h.Contains("2026-02-03"))

	_, _, err := Horizon{StartDate: "2026-02-02", EndDate: "2026-02-01"}.Bounds()
	assert.Error(t, err)

	_, _, err = Horizon{StartDate: "2026-13-01", EndDate: "2026-12-01"}.Bounds()
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", At(9, 0), false},
		{"14:30", At(14, 30), false},
		{"24:00", EndOfDay, false},
		{"24:30", 0, true},
		{"9:75", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestNewShift(t *testing.T) {
	emp := uuid.New()
	slot := &DemandSlot{
		ID:       "2026-01-05/guard/g1/0",
		Date:     "2026-01-05",
		Start:    time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		Kind:     KindGuard,
		Required: 1,
		GuardID:  "g1",
	}

	s := NewShift(emp, slot)
	assert.Equal(t, 240, s.DurationMinutes)
	assert.Equal(t, "2026-01-05", s.EndDate, "以午夜结束的时段仍属于当天")
	assert.Equal(t, StatusConfirmed, s.Status)
	assert.True(t, s.CoversSlot(slot.ID))
	assert.Equal(t, s.ID, NewShift(emp, slot).ID, "班次 ID 应确定")
}

func TestAlgorithmConfig_Validate(t *testing.T) {
	def := DefaultAlgorithmConfig()
	require.NoError(t, def.Validate())

	tests := []struct {
		name   string
		mutate func(c *AlgorithmConfig)
		field  string
	}{
		{"权重超过100", func(c *AlgorithmConfig) { c.Weights.HourLimits.Value = 150 }, "Value"},
		{"权重为负", func(c *AlgorithmConfig) { c.Weights.GuardFairness.Value = -1 }, "Value"},
		{"未知策略", func(c *AlgorithmConfig) { c.Strategy = "random" }, "Strategy"},
		{"未知偏好", func(c *AlgorithmConfig) { c.Preference = "" }, "Preference"},
		{"迭代次数为零", func(c *AlgorithmConfig) { c.MaxIterations = 0 }, "MaxIterations"},
		{"阈值超出范围", func(c *AlgorithmConfig) { c.AcceptanceThreshold = 1.5 }, "AcceptanceThreshold"},
		{"连续天数为零", func(c *AlgorithmConfig) { c.MaxConsecutiveDays = 0 }, "MaxConsecutiveDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAlgorithmConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}
