// Package constraint 定义约束接口、管理器以及单次运行内的工时累加器
package constraint

import (
	"github.com/paiban/pharmashift/pkg/model"
)

// Type 约束类型标识
type Type string

const (
	// 硬约束类型
	TypeEligibility        Type = "eligibility"
	TypePersonalHoliday    Type = "personal_holiday"
	TypeMinRest            Type = "min_rest_between_shifts"
	TypeMaxConsecutiveDays Type = "max_consecutive_days"
	TypeHourCaps           Type = "hour_caps"

	// 软约束类型
	TypeWorkloadBalance Type = "workload_balance"
	TypeGuardFairness   Type = "guard_fairness"
	TypeHolidayFairness Type = "holiday_fairness"
	TypeMinimizeChanges Type = "minimize_changes"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（参与候选人打分）
)

// NotApplicable 软约束对当前时段不适用时返回的得分
const NotApplicable = -1.0

// Constraint 约束接口
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Weight 返回约束权重 (0-100)
	Weight() int

	// Evaluate 评估将 slot 分配给 emp
	// 硬约束只看 ok；软约束返回 [0,1] 的满足度，不适用时返回 NotApplicable
	Evaluate(t *Tracker, emp *model.Employee, slot *model.DemandSlot) (ok bool, score float64)
}
