// Package solver 提供排班求解器
package solver

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/pharmashift/pkg/logger"
	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/scheduler/constraint"
)

// Input 求解输入，Slots 须已按时间排序
type Input struct {
	RunID  string
	SiteID uuid.UUID
	Roster []*model.Employee
	Slots  []model.DemandSlot
}

// Result 求解结果
type Result struct {
	Shifts     []model.Shift  `json:"shifts"`
	Filled     map[string]int `json:"filled"` // 时段 ID -> 已分配人数
	Statistics *Statistics    `json:"statistics"`
	Duration   time.Duration  `json:"duration"`
}

// Statistics 求解统计
type Statistics struct {
	TotalAssignments int  `json:"total_assignments"`
	SlotsTotal       int  `json:"slots_total"`
	SlotsProcessed   int  `json:"slots_processed"`
	SlotsUnfilled    int  `json:"slots_unfilled"`
	Iterations       int  `json:"iterations"`
	BudgetExhausted  bool `json:"budget_exhausted"`
}

// candidate 候选员工及其得分
type candidate struct {
	emp       *model.Employee
	score     float64
	continues bool // 延续同一值班的前一段
}

// GreedySolver 按时间顺序逐个时段分配的贪心求解器，不回溯
type GreedySolver struct {
	constraintManager *constraint.Manager
	logger            *logger.SchedulerLogger
	cfg               model.AlgorithmConfig
}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver(cm *constraint.Manager, cfg model.AlgorithmConfig) *GreedySolver {
	return &GreedySolver{
		constraintManager: cm,
		logger:            logger.NewSchedulerLogger(),
		cfg:               cfg,
	}
}

// SetLogger 替换日志器
func (s *GreedySolver) SetLogger(l *logger.SchedulerLogger) {
	s.logger = l
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string {
	return "GreedySolver"
}

// Solve 生成排班。每处理一个时段消耗一次迭代；预算用尽后剩余时段保持未分配。
func (s *GreedySolver) Solve(in Input) *Result {
	startTime := time.Now()

	tracker := constraint.NewTracker(in.SiteID, in.Roster, constraint.SettingsFrom(s.cfg))
	roster := sortedRoster(in.Roster)
	s.logger.SolverStart(in.RunID, s.Name(), s.constraintNames())

	// 值班 ID -> 员工 -> 已分配部分的结束时间
	guardEnds := make(map[string]map[uuid.UUID]time.Time)

	result := &Result{
		Shifts:     make([]model.Shift, 0),
		Filled:     make(map[string]int, len(in.Slots)),
		Statistics: &Statistics{SlotsTotal: len(in.Slots)},
	}

	for i := range in.Slots {
		slot := &in.Slots[i]

		if result.Statistics.Iterations >= s.cfg.MaxIterations {
			result.Statistics.BudgetExhausted = true
			s.logger.BudgetExhausted(in.RunID, result.Statistics.SlotsProcessed, len(in.Slots))
			break
		}
		result.Statistics.Iterations++
		result.Statistics.SlotsProcessed++

		for _, c := range s.getCandidates(tracker, roster, slot, guardEnds[slot.GuardID]) {
			if result.Filled[slot.ID] >= slot.Required {
				break
			}
			tracker.Commit(c.emp.ID, slot)
			result.Shifts = append(result.Shifts, model.NewShift(c.emp.ID, slot))
			result.Filled[slot.ID]++
			if slot.GuardID != "" {
				if guardEnds[slot.GuardID] == nil {
					guardEnds[slot.GuardID] = make(map[uuid.UUID]time.Time)
				}
				guardEnds[slot.GuardID][c.emp.ID] = slot.End
			}
		}

		if result.Filled[slot.ID] < slot.Required {
			s.logger.SlotUnderstaffed(slot.ID, slot.Required, result.Filled[slot.ID])
		}
	}

	for i := range in.Slots {
		if result.Filled[in.Slots[i].ID] < in.Slots[i].Required {
			result.Statistics.SlotsUnfilled++
		}
	}

	if s.cfg.Strategy == model.StrategyWholeShift {
		result.Shifts = MergeContiguous(result.Shifts)
	}
	SortShifts(result.Shifts)

	result.Statistics.TotalAssignments = len(result.Shifts)
	result.Duration = time.Since(startTime)
	return result
}

// getCandidates 返回满足所有硬约束且得分不低于阈值的员工，按得分降序、ID 升序。
// 整班策略下，已承担同一值班前一段且恰好在本时段开始时结束的员工排在最前，不受阈值限制。
func (s *GreedySolver) getCandidates(t *constraint.Tracker, roster []*model.Employee, slot *model.DemandSlot, guardEnds map[uuid.UUID]time.Time) []candidate {
	candidates := make([]candidate, 0, len(roster))
	for _, emp := range roster {
		if ok, _ := s.constraintManager.CanAssign(t, emp, slot); !ok {
			continue
		}
		score := s.constraintManager.Score(t, emp, slot)
		c := candidate{emp: emp, score: score, continues: s.continuesGuard(guardEnds, emp.ID, slot)}
		if score < s.cfg.AcceptanceThreshold && !c.continues {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].continues != candidates[j].continues {
			return candidates[i].continues
		}
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].emp.ID.String() < candidates[j].emp.ID.String()
	})
	return candidates
}

// continuesGuard 员工是否承担了同一值班紧邻的前一段
func (s *GreedySolver) continuesGuard(guardEnds map[uuid.UUID]time.Time, id uuid.UUID, slot *model.DemandSlot) bool {
	if s.cfg.Strategy != model.StrategyWholeShift || slot.GuardID == "" {
		return false
	}
	end, ok := guardEnds[id]
	return ok && end.Equal(slot.Start)
}

// constraintNames 已注册约束的名称，硬约束在前
func (s *GreedySolver) constraintNames() []string {
	all := s.constraintManager.GetAll()
	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name())
	}
	return names
}

// sortedRoster 按员工 ID 排序，保证遍历顺序与输入顺序无关
func sortedRoster(roster []*model.Employee) []*model.Employee {
	sorted := make([]*model.Employee, len(roster))
	copy(sorted, roster)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

// SortShifts 按开始时间、员工 ID 排序
func SortShifts(shifts []model.Shift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		if !shifts[i].Start.Equal(shifts[j].Start) {
			return shifts[i].Start.Before(shifts[j].Start)
		}
		return shifts[i].EmployeeID.String() < shifts[j].EmployeeID.String()
	})
}
