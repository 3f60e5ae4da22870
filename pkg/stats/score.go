package stats

import (
	"math"

	"github.com/google/uuid"

	"github.com/paiban/pharmashift/pkg/model"
)

// ScoreInput 计算全局得分所需的数据
type ScoreInput struct {
	SiteID  uuid.UUID
	Horizon model.Horizon
	Roster  []*model.Employee
	Slots   []model.DemandSlot
	Shifts  []model.Shift
	Prior   []model.Shift // 上期排班，可为空
}

// Aggregator 汇总员工统计与全局得分
type Aggregator struct {
	weights model.Weights
}

// NewAggregator 创建汇总器
func NewAggregator(cfg model.AlgorithmConfig) *Aggregator {
	return &Aggregator{weights: cfg.Weights}
}

// Summary 汇总结果
type Summary struct {
	EmployeeStats []model.EmployeeStats
	Breakdown     model.ScoreBreakdown
	GlobalScore   float64
	Coverage      *CoverageMetrics
}

// Summarize 计算员工统计、各分项得分与全局得分。
// 全局得分为启用分项的加权平均；所有权重为 0 时取覆盖率。
func (a *Aggregator) Summarize(in ScoreInput) *Summary {
	coverage := NewCoverageAnalyzer().Analyze(in.Slots, in.Shifts)
	fairness := NewFairnessAnalyzer(in.SiteID).Analyze(in.Shifts, in.Roster)

	breakdown := model.ScoreBreakdown{
		Coverage:        coverage.OverallCoverage,
		CapAdherence:    fairness.CapAdherence,
		GuardEvenness:   fairness.GuardEvenness,
		HolidayEvenness: fairness.HolidayEvenness,
	}
	if stability, ok := Stability(in.Horizon, in.Shifts, in.Prior); ok {
		breakdown.Stability = &stability
	}

	return &Summary{
		EmployeeStats: fairness.EmployeeStats,
		Breakdown:     breakdown,
		GlobalScore:   a.GlobalScore(breakdown),
		Coverage:      coverage,
	}
}

// GlobalScore 按权重组合各分项
func (a *Aggregator) GlobalScore(b model.ScoreBreakdown) float64 {
	type term struct {
		weight float64
		value  float64
	}
	terms := []term{
		{a.weights.MinCoverage.Effective(), b.Coverage},
		{a.weights.HourLimits.Effective(), b.CapAdherence},
		{a.weights.GuardFairness.Effective(), b.GuardEvenness},
		{a.weights.HolidayFairness.Effective(), b.HolidayEvenness},
	}
	if b.Stability != nil {
		terms = append(terms, term{a.weights.MinimizeChanges.Effective(), *b.Stability})
	}

	var sum, total float64
	for _, t := range terms {
		if t.weight <= 0 {
			continue
		}
		sum += t.weight * t.value
		total += t.weight
	}
	if total == 0 {
		return clamp01(b.Coverage)
	}
	return clamp01(sum / total)
}

// Stability 1 减（员工, 日期）对的对称差与并集之比。
// 只比较排班周期内的上期班次；周期内没有上期班次时返回 false。
func Stability(horizon model.Horizon, shifts, prior []model.Shift) (float64, bool) {
	before := make(map[string]bool)
	for i := range prior {
		if horizon.Contains(prior[i].Date) {
			before[pairKey(&prior[i])] = true
		}
	}
	if len(before) == 0 {
		return 0, false
	}

	after := make(map[string]bool)
	for i := range shifts {
		after[pairKey(&shifts[i])] = true
	}

	union := len(before)
	diff := 0
	for k := range after {
		if !before[k] {
			union++
			diff++
		}
	}
	for k := range before {
		if !after[k] {
			diff++
		}
	}
	return 1 - float64(diff)/float64(union), true
}

func pairKey(s *model.Shift) string {
	return s.EmployeeID.String() + "/" + s.Date
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
