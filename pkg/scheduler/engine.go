// Package scheduler 提供排班引擎入口：校验输入、展开需求、分配员工、分析冲突并汇总结果
package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/pharmashift/pkg/errors"
	"github.com/paiban/pharmashift/pkg/logger"
	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/scheduler/constraint/builtin"
	"github.com/paiban/pharmashift/pkg/scheduler/demand"
	"github.com/paiban/pharmashift/pkg/scheduler/solver"
	"github.com/paiban/pharmashift/pkg/stats"
	"github.com/paiban/pharmashift/pkg/validator"
)

// Request 一次排班运行的全部输入，运行期间只读
type Request struct {
	Site    model.Site
	Horizon model.Horizon
	Roster  []*model.Employee
	Rules   []model.CoverageRule
	Config  model.AlgorithmConfig
	Prior   []model.Shift // 上期排班，用于变动最小化，可为空
}

// Engine 排班引擎。引擎本身无状态，可被多个协程同时使用。
type Engine struct {
	logger *logger.SchedulerLogger
}

// NewEngine 创建排班引擎
func NewEngine() *Engine {
	return &Engine{logger: logger.NewSchedulerLogger()}
}

// SetLogger 替换日志器
func (e *Engine) SetLogger(l *logger.SchedulerLogger) {
	e.logger = l
}

// GenerateSchedule 使用默认引擎生成排班
func GenerateSchedule(site model.Site, horizon model.Horizon, roster []*model.Employee,
	rules []model.CoverageRule, cfg model.AlgorithmConfig, prior []model.Shift) (*model.RunResult, error) {
	return NewEngine().Generate(Request{
		Site:    site,
		Horizon: horizon,
		Roster:  roster,
		Rules:   rules,
		Config:  cfg,
		Prior:   prior,
	})
}

// Generate 生成排班。输入无效时在分配前返回 *errors.AppError；
// 人手不足和迭代预算耗尽不报错，只体现在冲突列表中。
func (e *Engine) Generate(req Request) (*model.RunResult, error) {
	startTime := time.Now()
	runID := uuid.New()
	runKey := runID.String()

	if err := validateRequest(&req); err != nil {
		e.logger.ValidationFailed(runKey, err)
		return nil, err
	}

	slots, err := demand.Build(req.Rules, req.Horizon)
	if err != nil {
		e.logger.ValidationFailed(runKey, err)
		return nil, err
	}

	e.logger.StartSchedule(runKey, req.Site.ID.String(), len(req.Roster), len(req.Horizon.Dates()))
	e.logger.DemandBuilt(runKey, len(slots))

	s := solver.NewGreedySolver(builtin.NewManager(req.Config, req.Prior), req.Config)
	s.SetLogger(e.logger)
	solved := s.Solve(solver.Input{
		RunID:  runKey,
		SiteID: req.Site.ID,
		Roster: req.Roster,
		Slots:  slots,
	})

	st := solved.Statistics
	result := analyze(runID, &req, slots, solved.Shifts, model.RunMetadata{
		Strategy:        req.Config.Strategy,
		Preference:      req.Config.Preference,
		Iterations:      st.Iterations,
		SlotsTotal:      st.SlotsTotal,
		SlotsProcessed:  st.SlotsProcessed,
		SlotsUnfilled:   st.SlotsUnfilled,
		BudgetExhausted: st.BudgetExhausted,
	})
	result.CreatedAt = startTime.UTC()
	result.ExecutionTime = time.Since(startTime)

	e.logger.ScheduleComplete(runKey, result.ExecutionTime, len(result.Shifts), len(result.Conflicts), result.GlobalScore)
	return result, nil
}

// Evaluate 对已有排班做冲突分析和评分，不重新分配。
// 班次状态会被重新计算；员工必须在名单内。
func (e *Engine) Evaluate(req Request, shifts []model.Shift) (*model.RunResult, error) {
	startTime := time.Now()
	runID := uuid.New()
	runKey := runID.String()

	if err := validateRequest(&req); err != nil {
		e.logger.ValidationFailed(runKey, err)
		return nil, err
	}
	if err := validateShifts(req.Roster, shifts); err != nil {
		e.logger.ValidationFailed(runKey, err)
		return nil, err
	}

	slots, err := demand.Build(req.Rules, req.Horizon)
	if err != nil {
		e.logger.ValidationFailed(runKey, err)
		return nil, err
	}

	own := make([]model.Shift, len(shifts))
	copy(own, shifts)
	for i := range own {
		own[i].Status = model.StatusConfirmed
		own[i].DurationMinutes = int(own[i].End.Sub(own[i].Start).Minutes())
		own[i].Start = own[i].Start.UTC()
		own[i].End = own[i].End.UTC()
		if own[i].Date == "" {
			own[i].Date = model.FormatDate(own[i].Start)
		}
		if own[i].EndDate == "" {
			own[i].EndDate = model.FormatDate(own[i].End.Add(-time.Nanosecond))
		}
		attachSlots(&own[i], slots)
	}
	solver.SortShifts(own)

	unfilled := 0
	assigned := stats.AssignedBySlot(own)
	for _, slot := range slots {
		if assigned[slot.ID] < slot.Required {
			unfilled++
		}
	}

	result := analyze(runID, &req, slots, own, model.RunMetadata{
		Strategy:       req.Config.Strategy,
		Preference:     req.Config.Preference,
		SlotsTotal:     len(slots),
		SlotsProcessed: len(slots),
		SlotsUnfilled:  unfilled,
	})
	result.CreatedAt = startTime.UTC()
	result.ExecutionTime = time.Since(startTime)

	e.logger.ScheduleComplete(runKey, result.ExecutionTime, len(result.Shifts), len(result.Conflicts), result.GlobalScore)
	return result, nil
}

// analyze 冲突检测与评分，两种入口共用
func analyze(runID uuid.UUID, req *Request, slots []model.DemandSlot, shifts []model.Shift, meta model.RunMetadata) *model.RunResult {
	detector := validator.NewConflictDetector(validator.ConfigFrom(req.Site.ID, req.Config))
	conflicts := detector.DetectAll(shifts, slots, req.Roster)

	summary := stats.NewAggregator(req.Config).Summarize(stats.ScoreInput{
		SiteID:  req.Site.ID,
		Horizon: req.Horizon,
		Roster:  req.Roster,
		Slots:   slots,
		Shifts:  shifts,
		Prior:   req.Prior,
	})

	return &model.RunResult{
		RunID:         runID,
		SiteID:        req.Site.ID,
		Horizon:       req.Horizon,
		Shifts:        shifts,
		Conflicts:     conflicts,
		EmployeeStats: summary.EmployeeStats,
		GlobalScore:   summary.GlobalScore,
		Breakdown:     summary.Breakdown,
		Metadata:      meta,
	}
}

// attachSlots 按时间重新计算班次覆盖的需求时段；班次类型为空时取第一个时段的类型
func attachSlots(s *model.Shift, slots []model.DemandSlot) {
	s.SlotIDs = s.SlotIDs[:0:0]
	for i := range slots {
		slot := &slots[i]
		if !slot.Start.Before(s.Start) && !slot.End.After(s.End) {
			s.SlotIDs = append(s.SlotIDs, slot.ID)
			if s.Kind == "" {
				s.Kind = slot.Kind
			}
			if s.GuardID == "" {
				s.GuardID = slot.GuardID
			}
		}
	}
	if s.Kind == "" {
		s.Kind = model.KindRegular
	}
	if s.ID == uuid.Nil {
		s.ID = model.StableID("shift", s.EmployeeID.String(), s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
}

// validateShifts 校验外部提供的班次
func validateShifts(roster []*model.Employee, shifts []model.Shift) error {
	known := make(map[uuid.UUID]bool, len(roster))
	for _, emp := range roster {
		known[emp.ID] = true
	}

	verrs := &errors.ValidationErrors{Code: errors.CodeInvalidInput}
	for i, s := range shifts {
		field := fmt.Sprintf("shifts[%d]", i)
		if !known[s.EmployeeID] {
			verrs.Add(field+".employee_id", fmt.Sprintf("员工 %s 不在名单中", s.EmployeeID))
		}
		if !s.End.After(s.Start) {
			verrs.Add(field, "结束时间必须晚于开始时间")
		}
	}
	if verrs.HasErrors() {
		return verrs.ToAppError()
	}
	return nil
}

// validateRequest 校验算法配置和员工名单，覆盖规则与排班周期由 demand 包校验
func validateRequest(req *Request) error {
	if err := req.Config.Validate(); err != nil {
		verrs := &errors.ValidationErrors{Code: errors.CodeInvalidConfig}
		verrs.AddValidator("config", err)
		return verrs.ToAppError()
	}

	if req.Site.ID == uuid.Nil {
		return errors.InvalidInput("site.id", "门店 ID 不能为空")
	}

	verrs := &errors.ValidationErrors{Code: errors.CodeInvalidRoster}
	seen := make(map[uuid.UUID]bool, len(req.Roster))
	for i, emp := range req.Roster {
		field := fmt.Sprintf("roster[%d]", i)
		if emp == nil {
			verrs.Add(field, "员工不能为空")
			continue
		}
		if emp.ID == uuid.Nil {
			verrs.Add(field+".id", "员工 ID 不能为空")
		} else if seen[emp.ID] {
			verrs.Add(field+".id", fmt.Sprintf("员工 ID %s 重复", emp.ID))
		}
		seen[emp.ID] = true

		for _, reason := range emp.Caps.Validate() {
			verrs.Add(field+".caps", reason)
		}
		for _, date := range emp.Holidays {
			if _, err := model.ParseDate(date); err != nil {
				verrs.Add(field+".holidays", fmt.Sprintf("日期 %q 格式无效", date))
			}
		}
	}
	if verrs.HasErrors() {
		return verrs.ToAppError()
	}
	return nil
}
