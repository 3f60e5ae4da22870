package solver

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/pharmashift/pkg/logger"
	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/scheduler/constraint/builtin"
)

var site = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func newEmployee(n int, caps model.HourCaps) *model.Employee {
	return &model.Employee{
		ID:     uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-1000000000%02d", n)),
		Name:   fmt.Sprintf("员工%d", n),
		SiteID: &site,
		Role:   model.RoleEmployee,
		Active: true,
		Caps:   caps,
	}
}

var fullTime = model.HourCaps{Daily: 8, Weekly: 40, Monthly: 160, Annual: 1920}

func regularSlot(day, startHour, endHour, required int) model.DemandSlot {
	d := time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC)
	return model.DemandSlot{
		ID:       fmt.Sprintf("%s/regular/%02d-%02d", model.FormatDate(d), startHour, endHour),
		Date:     model.FormatDate(d),
		Start:    d.Add(time.Duration(startHour) * time.Hour),
		End:      d.Add(time.Duration(endHour) * time.Hour),
		Kind:     model.KindRegular,
		Required: required,
	}
}

func newSolver(cfg model.AlgorithmConfig) *GreedySolver {
	s := NewGreedySolver(builtin.NewManager(cfg, nil), cfg)
	s.SetLogger(logger.NewSchedulerLoggerFrom(zerolog.Nop()))
	return s
}

func TestGreedySolver_EqualHoursAlternates(t *testing.T) {
	a, b := newEmployee(1, fullTime), newEmployee(2, fullTime)
	var slots []model.DemandSlot
	for day := 5; day <= 9; day++ {
		slots = append(slots, regularSlot(day, 9, 14, 1))
	}

	result := newSolver(model.DefaultAlgorithmConfig()).Solve(Input{SiteID: site, Roster: []*model.Employee{b, a}, Slots: slots})

	require.Len(t, result.Shifts, 5)
	assert.Equal(t, 0, result.Statistics.SlotsUnfilled)
	// ID 较小的员工先得到第一个时段，之后按剩余工时交替
	want := []uuid.UUID{a.ID, b.ID, a.ID, b.ID, a.ID}
	for i, s := range result.Shifts {
		assert.Equal(t, want[i], s.EmployeeID, "第 %d 个班次", i)
		assert.Equal(t, 300, s.DurationMinutes)
		assert.Equal(t, model.StatusConfirmed, s.Status)
	}
}

func TestGreedySolver_CapExhausted(t *testing.T) {
	emp := newEmployee(1, model.HourCaps{Daily: 8, Weekly: 20, Monthly: 80, Annual: 960})
	var slots []model.DemandSlot
	for day := 5; day <= 9; day++ {
		slots = append(slots, regularSlot(day, 9, 14, 1))
	}

	result := newSolver(model.DefaultAlgorithmConfig()).Solve(Input{SiteID: site, Roster: []*model.Employee{emp}, Slots: slots})

	assert.Len(t, result.Shifts, 4)
	assert.Equal(t, 1, result.Statistics.SlotsUnfilled)
	assert.Equal(t, 0, result.Filled[slots[4].ID])
}

func TestGreedySolver_AllowOvertime(t *testing.T) {
	emp := newEmployee(1, model.HourCaps{Daily: 8, Weekly: 20, Monthly: 80, Annual: 960})
	var slots []model.DemandSlot
	for day := 5; day <= 9; day++ {
		slots = append(slots, regularSlot(day, 9, 14, 1))
	}

	cfg := model.DefaultAlgorithmConfig()
	cfg.AllowOvertime = true
	result := newSolver(cfg).Solve(Input{SiteID: site, Roster: []*model.Employee{emp}, Slots: slots})

	assert.Len(t, result.Shifts, 5)
	assert.Equal(t, 0, result.Statistics.SlotsUnfilled)
}

func TestGreedySolver_PartialFill(t *testing.T) {
	a, b := newEmployee(1, fullTime), newEmployee(2, fullTime)
	slots := []model.DemandSlot{regularSlot(5, 9, 14, 3)}

	result := newSolver(model.DefaultAlgorithmConfig()).Solve(Input{SiteID: site, Roster: []*model.Employee{a, b}, Slots: slots})

	assert.Len(t, result.Shifts, 2)
	assert.Equal(t, 2, result.Filled[slots[0].ID])
	assert.Equal(t, 1, result.Statistics.SlotsUnfilled)
}

func TestGreedySolver_IterationBudget(t *testing.T) {
	emp := newEmployee(1, fullTime)
	var slots []model.DemandSlot
	for day := 5; day <= 9; day++ {
		slots = append(slots, regularSlot(day, 9, 14, 1))
	}

	cfg := model.DefaultAlgorithmConfig()
	cfg.MaxIterations = 2
	result := newSolver(cfg).Solve(Input{SiteID: site, Roster: []*model.Employee{emp}, Slots: slots})

	assert.Len(t, result.Shifts, 2, "已提交的班次保留")
	assert.True(t, result.Statistics.BudgetExhausted)
	assert.Equal(t, 2, result.Statistics.SlotsProcessed)
	assert.Equal(t, 2, result.Statistics.Iterations)
	assert.Equal(t, 3, result.Statistics.SlotsUnfilled)
}

func TestGreedySolver_AcceptanceThreshold(t *testing.T) {
	busy := newEmployee(1, fullTime)
	slots := []model.DemandSlot{regularSlot(5, 9, 13, 1), regularSlot(5, 13, 16, 1)}

	cfg := model.DefaultAlgorithmConfig()
	cfg.Weights.GuardFairness.Enabled = false
	cfg.Weights.HolidayFairness.Enabled = false
	cfg.AcceptanceThreshold = 0.6
	result := newSolver(cfg).Solve(Input{SiteID: site, Roster: []*model.Employee{busy}, Slots: slots})

	// 第二个时段时日剩余 4/8=0.5，低于阈值
	assert.Len(t, result.Shifts, 1)
	assert.Equal(t, 1, result.Statistics.SlotsUnfilled)
}

func TestGreedySolver_ContiguousPreference(t *testing.T) {
	a, b := newEmployee(1, fullTime), newEmployee(2, fullTime)
	slots := []model.DemandSlot{regularSlot(5, 9, 12, 1), regularSlot(5, 12, 15, 1)}

	cfg := model.DefaultAlgorithmConfig()
	cfg.Preference = model.PreferContiguousHours
	result := newSolver(cfg).Solve(Input{SiteID: site, Roster: []*model.Employee{a, b}, Slots: slots})

	require.Len(t, result.Shifts, 2)
	assert.Equal(t, a.ID, result.Shifts[0].EmployeeID)
	assert.Equal(t, a.ID, result.Shifts[1].EmployeeID, "延续同一员工的班次")

	cfg.Preference = model.PreferEqualHours
	result = newSolver(cfg).Solve(Input{SiteID: site, Roster: []*model.Employee{a, b}, Slots: slots})
	require.Len(t, result.Shifts, 2)
	assert.Equal(t, b.ID, result.Shifts[1].EmployeeID, "均衡工时时交给另一名员工")
}

func TestGreedySolver_WholeShiftMerge(t *testing.T) {
	a := newEmployee(1, fullTime)
	slots := []model.DemandSlot{regularSlot(5, 9, 12, 1), regularSlot(5, 12, 15, 1)}

	cfg := model.DefaultAlgorithmConfig()
	cfg.Strategy = model.StrategyWholeShift
	result := newSolver(cfg).Solve(Input{SiteID: site, Roster: []*model.Employee{a}, Slots: slots})

	require.Len(t, result.Shifts, 1)
	s := result.Shifts[0]
	assert.Equal(t, 360, s.DurationMinutes)
	assert.Equal(t, 9, s.Start.Hour())
	assert.Equal(t, 15, s.End.Hour())
	assert.Equal(t, []string{slots[0].ID, slots[1].ID}, s.SlotIDs)
}

func guardSlots() []model.DemandSlot {
	evening := time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	return []model.DemandSlot{
		{ID: "2026-01-05/guard/night", Date: "2026-01-05", Start: evening, End: midnight, Kind: model.KindGuard, GuardID: "night", Required: 1},
		{ID: "2026-01-06/guard/night", Date: "2026-01-06", Start: midnight, End: midnight.Add(9 * time.Hour), Kind: model.KindGuard, GuardID: "night", Required: 1},
	}
}

func TestGreedySolver_GuardContinuation(t *testing.T) {
	caps := model.HourCaps{Daily: 12, Weekly: 40, Monthly: 160, Annual: 1920}
	a, b := newEmployee(1, caps), newEmployee(2, caps)

	tests := []struct {
		name     string
		strategy model.Strategy
		owners   []uuid.UUID
	}{
		{"整班策略由同一人值完", model.StrategyWholeShift, []uuid.UUID{a.ID}},
		{"按时段策略按值班公平轮换", model.StrategyPerSlot, []uuid.UUID{a.ID, b.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.DefaultAlgorithmConfig()
			cfg.Strategy = tt.strategy
			result := newSolver(cfg).Solve(Input{SiteID: site, Roster: []*model.Employee{b, a}, Slots: guardSlots()})

			require.Len(t, result.Shifts, len(tt.owners))
			for i, s := range result.Shifts {
				assert.Equal(t, tt.owners[i], s.EmployeeID, "第 %d 个班次", i)
			}
			assert.Equal(t, 0, result.Statistics.SlotsUnfilled)
		})
	}
}

func TestGreedySolver_GuardContinuationRespectsHardConstraints(t *testing.T) {
	// 员工1日上限 8 小时，无法接后半段 9 小时，由员工2补上
	a := newEmployee(1, fullTime)
	b := newEmployee(2, model.HourCaps{Daily: 12, Weekly: 40, Monthly: 160, Annual: 1920})

	cfg := model.DefaultAlgorithmConfig()
	cfg.Strategy = model.StrategyWholeShift
	result := newSolver(cfg).Solve(Input{SiteID: site, Roster: []*model.Employee{a, b}, Slots: guardSlots()})

	require.Len(t, result.Shifts, 2)
	assert.Equal(t, a.ID, result.Shifts[0].EmployeeID)
	assert.Equal(t, b.ID, result.Shifts[1].EmployeeID)
}

func TestGreedySolver_LogsSolverStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewGreedySolver(builtin.NewManager(model.DefaultAlgorithmConfig(), nil), model.DefaultAlgorithmConfig())
	s.SetLogger(logger.NewSchedulerLoggerFrom(zerolog.New(&buf)))

	s.Solve(Input{RunID: "run-1", SiteID: site, Roster: []*model.Employee{newEmployee(1, fullTime)}, Slots: []model.DemandSlot{regularSlot(5, 9, 14, 1)}})

	assert.Contains(t, buf.String(), `"solver":"GreedySolver"`)
	assert.Contains(t, buf.String(), `"run_id":"run-1"`)
	assert.Contains(t, buf.String(), "工时上限")
}

func TestGreedySolver_PersonalHolidayAndIneligible(t *testing.T) {
	onLeave := newEmployee(1, fullTime)
	onLeave.Holidays = []string{"2026-01-05"}
	inactive := newEmployee(2, fullTime)
	inactive.Active = false
	other := uuid.New()
	elsewhere := newEmployee(3, fullTime)
	elsewhere.SiteID = &other

	slots := []model.DemandSlot{regularSlot(5, 9, 14, 1)}
	result := newSolver(model.DefaultAlgorithmConfig()).Solve(Input{
		SiteID: site,
		Roster: []*model.Employee{onLeave, inactive, elsewhere},
		Slots:  slots,
	})

	assert.Empty(t, result.Shifts)
	assert.Equal(t, 1, result.Statistics.SlotsUnfilled)
}

func TestGreedySolver_Deterministic(t *testing.T) {
	roster := []*model.Employee{newEmployee(3, fullTime), newEmployee(1, fullTime), newEmployee(2, fullTime)}
	var slots []model.DemandSlot
	for day := 5; day <= 11; day++ {
		slots = append(slots, regularSlot(day, 8, 13, 2), regularSlot(day, 13, 20, 1))
	}

	first := newSolver(model.DefaultAlgorithmConfig()).Solve(Input{SiteID: site, Roster: roster, Slots: slots})
	reversed := []*model.Employee{roster[2], roster[1], roster[0]}
	second := newSolver(model.DefaultAlgorithmConfig()).Solve(Input{SiteID: site, Roster: reversed, Slots: slots})

	assert.Equal(t, first.Shifts, second.Shifts)
}
