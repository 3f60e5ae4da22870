package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/pharmashift/pkg/errors"
	"github.com/paiban/pharmashift/pkg/logger"
	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/stats"
)

var (
	site     = model.Site{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Name: "中心药房", Code: "C01"}
	week     = model.Horizon{StartDate: "2026-01-05", EndDate: "2026-01-11"}
	fullTime = model.HourCaps{Daily: 8, Weekly: 40, Monthly: 160, Annual: 1920}
	weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
)

func newEmployee(n int, caps model.HourCaps) *model.Employee {
	return &model.Employee{
		ID:     uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-4000000000%02d", n)),
		Name:   fmt.Sprintf("员工%d", n),
		SiteID: &site.ID,
		Role:   model.RoleEmployee,
		Active: true,
		Caps:   caps,
	}
}

func openingHours(staff int) []model.CoverageRule {
	return []model.CoverageRule{
		model.RecurringRule{Weekdays: weekdays, Start: model.At(9, 0), End: model.At(14, 0), MinStaff: staff},
	}
}

func newEngine() *Engine {
	e := NewEngine()
	e.SetLogger(logger.NewSchedulerLoggerFrom(zerolog.Nop()))
	return e
}

func generate(t *testing.T, req Request) *model.RunResult {
	t.Helper()
	result, err := newEngine().Generate(req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestGenerate_TwoEmployeesFullCoverage(t *testing.T) {
	a, b := newEmployee(1, fullTime), newEmployee(2, fullTime)

	result := generate(t, Request{
		Site:    site,
		Horizon: week,
		Roster:  []*model.Employee{a, b},
		Rules:   openingHours(1),
		Config:  model.DefaultAlgorithmConfig(),
	})

	require.Len(t, result.Shifts, 5)
	for _, s := range result.Shifts {
		assert.Equal(t, 300, s.DurationMinutes)
		assert.Equal(t, model.StatusConfirmed, s.Status)
	}
	assert.Empty(t, result.Conflicts)
	assert.InDelta(t, 1.0, result.GlobalScore, 1e-9)
	assert.Equal(t, site.ID, result.SiteID)
	assert.Equal(t, 5, result.Metadata.SlotsTotal)
	assert.False(t, result.Metadata.BudgetExhausted)

	require.Len(t, result.EmployeeStats, 2)
	assert.InDelta(t, 25.0, result.EmployeeStats[0].TotalHours+result.EmployeeStats[1].TotalHours, 1e-9)
}

func TestGenerate_WeeklyCapExhausted(t *testing.T) {
	emp := newEmployee(1, model.HourCaps{Daily: 8, Weekly: 20, Monthly: 80, Annual: 960})

	result := generate(t, Request{
		Site:    site,
		Horizon: week,
		Roster:  []*model.Employee{emp},
		Rules:   openingHours(1),
		Config:  model.DefaultAlgorithmConfig(),
	})

	require.Len(t, result.Shifts, 4)
	require.Len(t, result.Conflicts, 1)
	c := result.Conflicts[0]
	assert.Equal(t, model.ConflictInsufficientCoverage, c.Kind)
	assert.Equal(t, model.SeverityCritical, c.Severity)
	assert.Equal(t, "2026-01-09", c.Date)
	assert.InDelta(t, 0.8, result.Breakdown.Coverage, 1e-9)
	assert.InDelta(t, 260.0/280.0, result.GlobalScore, 1e-9)
	assert.True(t, result.EmployeeStats[0].WithinCaps)
}

func TestGenerate_OvernightGuard(t *testing.T) {
	emp := newEmployee(1, model.HourCaps{Daily: 12, Weekly: 40, Monthly: 160, Annual: 1920})
	other := newEmployee(2, model.HourCaps{Daily: 12, Weekly: 40, Monthly: 160, Annual: 1920})
	rules := []model.CoverageRule{
		model.GuardPeriod{
			ID:       "night",
			Start:    time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC),
			End:      time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC),
			MinStaff: 1,
		},
	}
	horizon := model.Horizon{StartDate: "2026-01-05", EndDate: "2026-01-06"}

	tests := []struct {
		name     string
		strategy model.Strategy
		roster   []*model.Employee
		minutes  []int
	}{
		{name: "按时段分配", strategy: model.StrategyPerSlot, roster: []*model.Employee{emp}, minutes: []int{240, 540}},
		{name: "整班分配", strategy: model.StrategyWholeShift, roster: []*model.Employee{emp}, minutes: []int{780}},
		// 后半段仍由前半段的员工承担，而不是交给工时更少的同事
		{name: "两人整班分配", strategy: model.StrategyWholeShift, roster: []*model.Employee{other, emp}, minutes: []int{780}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.DefaultAlgorithmConfig()
			cfg.Strategy = tt.strategy

			result := generate(t, Request{Site: site, Horizon: horizon, Roster: tt.roster, Rules: rules, Config: cfg})

			require.Len(t, result.Shifts, len(tt.minutes))
			total := 0
			for i, s := range result.Shifts {
				assert.Equal(t, tt.minutes[i], s.DurationMinutes)
				assert.Equal(t, model.KindGuard, s.Kind)
				assert.Equal(t, emp.ID, s.EmployeeID)
				total += s.DurationMinutes
			}
			assert.Equal(t, 780, total)
			assert.Equal(t, 0, result.CountConflicts(model.ConflictInsufficientRest))
			assert.Empty(t, result.Conflicts)
			for _, st := range result.EmployeeStats {
				if st.EmployeeID == emp.ID {
					assert.Equal(t, 1, st.Guards)
				}
			}
		})
	}
}

func TestGenerate_PersonalHoliday(t *testing.T) {
	onLeave := newEmployee(1, fullTime)
	onLeave.Holidays = []string{"2026-01-07"}

	t.Run("无人替补时报告缺员", func(t *testing.T) {
		result := generate(t, Request{
			Site: site, Horizon: week, Roster: []*model.Employee{onLeave},
			Rules: openingHours(1), Config: model.DefaultAlgorithmConfig(),
		})

		for _, s := range result.Shifts {
			assert.NotEqual(t, "2026-01-07", s.Date)
		}
		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, model.ConflictInsufficientCoverage, result.Conflicts[0].Kind)
		assert.Equal(t, "2026-01-07", result.Conflicts[0].Date)
	})

	t.Run("由其他员工替补", func(t *testing.T) {
		other := newEmployee(2, fullTime)
		result := generate(t, Request{
			Site: site, Horizon: week, Roster: []*model.Employee{onLeave, other},
			Rules: openingHours(1), Config: model.DefaultAlgorithmConfig(),
		})

		assert.Empty(t, result.Conflicts)
		for _, s := range result.Shifts {
			if s.Date == "2026-01-07" {
				assert.Equal(t, other.ID, s.EmployeeID)
			}
		}
	})
}

func TestGenerate_Idempotent(t *testing.T) {
	roster := []*model.Employee{newEmployee(1, fullTime), newEmployee(2, fullTime), newEmployee(3, fullTime)}
	rules := []model.CoverageRule{
		model.RecurringRule{Weekdays: weekdays, Start: model.At(8, 0), End: model.At(20, 0), MinStaff: 1},
		model.RecurringRule{Weekdays: weekdays, Start: model.At(11, 0), End: model.At(15, 0), MinStaff: 2},
		model.Holiday{Date: "2026-01-06", Name: "主显节"},
	}
	req := Request{Site: site, Horizon: week, Roster: roster, Rules: rules, Config: model.DefaultAlgorithmConfig()}

	first := generate(t, req)
	second := generate(t, req)

	assert.Equal(t, first.Shifts, second.Shifts)
	assert.Equal(t, first.Conflicts, second.Conflicts)
	assert.Equal(t, first.GlobalScore, second.GlobalScore)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestGenerate_CoverageConflictsOnePerUnderstaffedSlot(t *testing.T) {
	roster := []*model.Employee{
		newEmployee(1, model.HourCaps{Daily: 8, Weekly: 16, Monthly: 64, Annual: 768}),
		newEmployee(2, fullTime),
	}
	rules := []model.CoverageRule{
		model.RecurringRule{Weekdays: weekdays, Start: model.At(8, 0), End: model.At(20, 0), MinStaff: 1},
		model.RecurringRule{Weekdays: weekdays, Start: model.At(12, 0), End: model.At(14, 0), MinStaff: 3},
		model.GuardPeriod{Start: time.Date(2026, 1, 9, 20, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC), MinStaff: 1},
	}

	for _, strategy := range []model.Strategy{model.StrategyPerSlot, model.StrategyWholeShift} {
		t.Run(string(strategy), func(t *testing.T) {
			cfg := model.DefaultAlgorithmConfig()
			cfg.Strategy = strategy
			result := generate(t, Request{Site: site, Horizon: week, Roster: roster, Rules: rules, Config: cfg})

			assigned := stats.AssignedBySlot(result.Shifts)
			understaffed := make(map[string]bool)
			for _, c := range result.Conflicts {
				if c.Kind == model.ConflictInsufficientCoverage {
					assert.False(t, understaffed[c.SlotID], "时段 %s 重复报告", c.SlotID)
					understaffed[c.SlotID] = true
				}
			}
			assert.Equal(t, result.Metadata.SlotsUnfilled, len(understaffed))
			assert.Positive(t, len(understaffed))
			for slotID := range understaffed {
				assert.Less(t, assigned[slotID], 3)
			}
		})
	}
}

func TestGenerate_HonoursCapsAndRest(t *testing.T) {
	roster := []*model.Employee{newEmployee(1, fullTime), newEmployee(2, fullTime)}
	rules := []model.CoverageRule{
		model.RecurringRule{Weekdays: weekdays, Start: model.At(7, 0), End: model.At(14, 0), MinStaff: 1},
		model.RecurringRule{Weekdays: weekdays, Start: model.At(14, 0), End: model.At(21, 0), MinStaff: 2},
		model.GuardPeriod{Start: time.Date(2026, 1, 7, 22, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 8, 7, 0, 0, 0, time.UTC), MinStaff: 1},
	}

	result := generate(t, Request{Site: site, Horizon: week, Roster: roster, Rules: rules, Config: model.DefaultAlgorithmConfig()})

	assert.NotEmpty(t, result.Shifts)
	for _, s := range result.EmployeeStats {
		assert.True(t, s.WithinCaps, "%s 超出工时上限", s.Name)
	}
	assert.Zero(t, result.CountConflicts(model.ConflictHourOverrun))
	assert.Zero(t, result.CountConflicts(model.ConflictInsufficientRest))
}

func TestGenerate_AllowOvertimeReportsOverrun(t *testing.T) {
	emp := newEmployee(1, model.HourCaps{Daily: 8, Weekly: 20, Monthly: 80, Annual: 960})
	cfg := model.DefaultAlgorithmConfig()
	cfg.AllowOvertime = true

	result := generate(t, Request{Site: site, Horizon: week, Roster: []*model.Employee{emp}, Rules: openingHours(1), Config: cfg})

	assert.Len(t, result.Shifts, 5)
	assert.Zero(t, result.CountConflicts(model.ConflictInsufficientCoverage))
	assert.Equal(t, 1, result.CountConflicts(model.ConflictHourOverrun))
	assert.False(t, result.EmployeeStats[0].WithinCaps)
	assert.InDelta(t, 0.0, result.Breakdown.CapAdherence, 1e-9)
}

func TestGenerate_BudgetExhausted(t *testing.T) {
	cfg := model.DefaultAlgorithmConfig()
	cfg.MaxIterations = 2

	result := generate(t, Request{
		Site: site, Horizon: week, Roster: []*model.Employee{newEmployee(1, fullTime)},
		Rules: openingHours(1), Config: cfg,
	})

	assert.Len(t, result.Shifts, 2)
	assert.True(t, result.Metadata.BudgetExhausted)
	assert.Equal(t, 3, result.CountConflicts(model.ConflictInsufficientCoverage))
	for _, c := range result.Conflicts {
		assert.Equal(t, model.SeverityCritical, c.Severity, "跳过的时段完全缺员")
	}
}

func TestGenerate_PriorScheduleStability(t *testing.T) {
	roster := []*model.Employee{newEmployee(1, fullTime), newEmployee(2, fullTime)}
	req := Request{Site: site, Horizon: week, Roster: roster, Rules: openingHours(1), Config: model.DefaultAlgorithmConfig()}

	prior := generate(t, req)
	require.Nil(t, prior.Breakdown.Stability)

	req.Prior = prior.Shifts
	next := generate(t, req)

	require.NotNil(t, next.Breakdown.Stability)
	assert.InDelta(t, 1.0, *next.Breakdown.Stability, 1e-9)
	assert.Equal(t, prior.Shifts, next.Shifts)
}

func TestGenerate_ValidationErrors(t *testing.T) {
	good := newEmployee(1, fullTime)

	tests := []struct {
		name   string
		mutate func(*Request)
		code   errors.Code
	}{
		{
			name:   "权重超出范围",
			mutate: func(r *Request) { r.Config.Weights.MinCoverage.Value = 150 },
			code:   errors.CodeInvalidConfig,
		},
		{
			name:   "未知策略",
			mutate: func(r *Request) { r.Config.Strategy = "random" },
			code:   errors.CodeInvalidConfig,
		},
		{
			name:   "员工 ID 重复",
			mutate: func(r *Request) { r.Roster = []*model.Employee{good, good} },
			code:   errors.CodeInvalidRoster,
		},
		{
			name: "工时上限关系不成立",
			mutate: func(r *Request) {
				r.Roster = []*model.Employee{newEmployee(2, model.HourCaps{Daily: 8, Weekly: 40, Monthly: 100, Annual: 1920})}
			},
			code: errors.CodeInvalidRoster,
		},
		{
			name:   "周期结束早于开始",
			mutate: func(r *Request) { r.Horizon = model.Horizon{StartDate: "2026-01-11", EndDate: "2026-01-05"} },
			code:   errors.CodeInvalidTimeRange,
		},
		{
			name: "营业时间倒置",
			mutate: func(r *Request) {
				r.Rules = []model.CoverageRule{model.RecurringRule{Weekdays: weekdays, Start: model.At(14, 0), End: model.At(9, 0), MinStaff: 1}}
			},
			code: errors.CodeInvalidRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Site: site, Horizon: week, Roster: []*model.Employee{good}, Rules: openingHours(1), Config: model.DefaultAlgorithmConfig()}
			tt.mutate(&req)

			result, err := newEngine().Generate(req)

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.NotEmpty(t, errors.As(err).Details)
		})
	}
}

func TestGenerate_ConcurrentRuns(t *testing.T) {
	engine := newEngine()
	build := func(n int) Request {
		s := model.Site{ID: uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-0000000001%02d", n)), Name: fmt.Sprintf("门店%d", n)}
		var roster []*model.Employee
		for i := 0; i < 3; i++ {
			emp := newEmployee(n*10+i, fullTime)
			emp.SiteID = &s.ID
			roster = append(roster, emp)
		}
		return Request{Site: s, Horizon: week, Roster: roster, Rules: openingHours(n%3 + 1), Config: model.DefaultAlgorithmConfig()}
	}

	reqs := make([]Request, 6)
	sequential := make([]*model.RunResult, len(reqs))
	for i := range reqs {
		reqs[i] = build(i)
		res, err := engine.Generate(reqs[i])
		require.NoError(t, err)
		sequential[i] = res
	}

	var wg sync.WaitGroup
	parallel := make([]*model.RunResult, len(reqs))
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			parallel[i], _ = engine.Generate(reqs[i])
		}(i)
	}
	wg.Wait()

	batch := engine.GenerateBatch(context.Background(), reqs, 3)
	require.Len(t, batch, len(reqs))

	for i := range reqs {
		require.NotNil(t, parallel[i])
		assert.Equal(t, sequential[i].Shifts, parallel[i].Shifts)
		assert.Equal(t, sequential[i].GlobalScore, parallel[i].GlobalScore)

		require.NoError(t, batch[i].Err)
		assert.Equal(t, i, batch[i].Index)
		assert.Equal(t, sequential[i].Shifts, batch[i].Result.Shifts)
	}
}

func TestGenerateBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := Request{Site: site, Horizon: week, Roster: []*model.Employee{newEmployee(1, fullTime)}, Rules: openingHours(1), Config: model.DefaultAlgorithmConfig()}
	results := newEngine().GenerateBatch(ctx, []Request{req, req}, 1)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Nil(t, r.Result)
	}
}

func TestEvaluate_ExistingSchedule(t *testing.T) {
	emp := newEmployee(1, model.HourCaps{Daily: 8, Weekly: 20, Monthly: 80, Annual: 960})
	req := Request{
		Site:    site,
		Horizon: week,
		Roster:  []*model.Employee{emp},
		Rules:   openingHours(1),
		Config:  model.DefaultAlgorithmConfig(),
	}

	var shifts []model.Shift
	for d := 5; d <= 9; d++ {
		shifts = append(shifts, model.Shift{
			EmployeeID: emp.ID,
			Start:      time.Date(2026, 1, d, 9, 0, 0, 0, time.UTC),
			End:        time.Date(2026, 1, d, 14, 0, 0, 0, time.UTC),
		})
	}

	result, err := newEngine().Evaluate(req, shifts)
	require.NoError(t, err)

	require.Len(t, result.Shifts, 5)
	assert.Equal(t, "2026-01-05", result.Shifts[0].Date)
	assert.Len(t, result.Shifts[0].SlotIDs, 1)
	assert.Equal(t, model.KindRegular, result.Shifts[0].Kind)
	assert.InDelta(t, 1.0, result.Breakdown.Coverage, 1e-9)
	assert.Zero(t, result.Metadata.SlotsUnfilled)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, model.ConflictHourOverrun, result.Conflicts[0].Kind)
	assert.Equal(t, model.SeverityCritical, result.Conflicts[0].Severity)
	assert.Equal(t, "2026-01-09", result.Conflicts[0].Date)
	assert.False(t, result.EmployeeStats[0].WithinCaps)

	// 入参不被修改
	assert.Empty(t, shifts[0].SlotIDs)
}

func TestEvaluate_UnknownEmployee(t *testing.T) {
	emp := newEmployee(1, fullTime)
	req := Request{
		Site:    site,
		Horizon: week,
		Roster:  []*model.Employee{emp},
		Rules:   openingHours(1),
		Config:  model.DefaultAlgorithmConfig(),
	}
	shifts := []model.Shift{{
		EmployeeID: uuid.New(),
		Start:      time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC),
	}}

	_, err := newEngine().Evaluate(req, shifts)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
