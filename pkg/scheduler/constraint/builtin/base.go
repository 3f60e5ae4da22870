// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/scheduler/constraint"
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	typ      constraint.Type
	category constraint.Category
	weight   int
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, typ constraint.Type, cat constraint.Category, weight int) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Type 返回约束类型
func (c *BaseConstraint) Type() constraint.Type { return c.typ }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// Weight 返回约束权重
func (c *BaseConstraint) Weight() int { return c.weight }

// NewManager 按算法配置注册全部内置约束。
// 工时上限默认为硬约束，允许加班时不再注册；prior 为空时不注册变动最小化约束。
func NewManager(cfg model.AlgorithmConfig, prior []model.Shift) *constraint.Manager {
	m := constraint.NewManager()

	m.Register(NewEligibilityConstraint())
	m.Register(NewPersonalHolidayConstraint())
	m.Register(NewMinRestConstraint())
	m.Register(NewMaxConsecutiveDaysConstraint())
	if !cfg.AllowOvertime {
		m.Register(NewHourCapsConstraint())
	}

	w := cfg.Weights
	if w.HourLimits.Effective() > 0 {
		m.Register(NewWorkloadBalanceConstraint(w.HourLimits.Value, cfg.Preference))
	}
	if w.GuardFairness.Effective() > 0 {
		m.Register(NewGuardFairnessConstraint(w.GuardFairness.Value))
	}
	if w.HolidayFairness.Effective() > 0 {
		m.Register(NewHolidayFairnessConstraint(w.HolidayFairness.Value))
	}
	if w.MinimizeChanges.Effective() > 0 && len(prior) > 0 {
		m.Register(NewMinimizeChangesConstraint(w.MinimizeChanges.Value, prior))
	}
	return m
}
