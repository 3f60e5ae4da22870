package model

import (
	"github.com/go-playground/validator/v10"
)

// Strategy 分配策略
type Strategy string

const (
	StrategyPerSlot    Strategy = "per_slot"    // 每个需求时段独立成班
	StrategyWholeShift Strategy = "whole_shift" // 同一员工连续时段合并为一个班次
)

// Preference 工时偏好
type Preference string

const (
	PreferEqualHours      Preference = "equal_hours"      // 优先分配给离上限最远的员工
	PreferContiguousHours Preference = "contiguous_hours" // 优先延续员工已有的连续班次
)

// Weight 单项优化目标的权重
type Weight struct {
	Value   int  `json:"value" yaml:"value" validate:"min=0,max=100"`
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Effective 返回生效的权重，禁用时为 0
func (w Weight) Effective() float64 {
	if !w.Enabled || w.Value <= 0 {
		return 0
	}
	return float64(w.Value)
}

// Weights 五项优化目标的权重
type Weights struct {
	MinCoverage     Weight `json:"min_coverage" yaml:"min_coverage"`
	HourLimits      Weight `json:"hour_limits" yaml:"hour_limits"`
	GuardFairness   Weight `json:"guard_fairness" yaml:"guard_fairness"`
	HolidayFairness Weight `json:"holiday_fairness" yaml:"holiday_fairness"`
	MinimizeChanges Weight `json:"minimize_changes" yaml:"minimize_changes"`
}

// AlgorithmConfig 排班算法配置
type AlgorithmConfig struct {
	Weights             Weights    `json:"weights" yaml:"weights"`
	Strategy            Strategy   `json:"strategy" yaml:"strategy" validate:"required,oneof=per_slot whole_shift"`
	Preference          Preference `json:"preference" yaml:"preference" validate:"required,oneof=equal_hours contiguous_hours"`
	MaxIterations       int        `json:"max_iterations" yaml:"max_iterations" validate:"min=1"`
	AcceptanceThreshold float64    `json:"acceptance_threshold" yaml:"acceptance_threshold" validate:"min=0,max=1"`
	MinRestHours        int        `json:"min_rest_hours" yaml:"min_rest_hours" validate:"min=0,max=48"`
	MaxConsecutiveDays  int        `json:"max_consecutive_days" yaml:"max_consecutive_days" validate:"min=1,max=31"`
	AllowOvertime       bool       `json:"allow_overtime" yaml:"allow_overtime"`
}

// DefaultAlgorithmConfig 返回默认算法配置
func DefaultAlgorithmConfig() AlgorithmConfig {
	return AlgorithmConfig{
		Weights: Weights{
			MinCoverage:     Weight{Value: 100, Enabled: true},
			HourLimits:      Weight{Value: 80, Enabled: true},
			GuardFairness:   Weight{Value: 50, Enabled: true},
			HolidayFairness: Weight{Value: 50, Enabled: true},
			MinimizeChanges: Weight{Value: 30, Enabled: true},
		},
		Strategy:            StrategyPerSlot,
		Preference:          PreferEqualHours,
		MaxIterations:       10000,
		AcceptanceThreshold: 0,
		MinRestHours:        12,
		MaxConsecutiveDays:  6,
	}
}

var validate = validator.New()

// Validate 校验配置；返回 validator.ValidationErrors
func (c *AlgorithmConfig) Validate() error {
	return validate.Struct(c)
}
