package builtin

import (
	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/scheduler/constraint"
)

// EligibilityConstraint 角色与门店资格：在职、角色可排班、属于本门店或为机动人员
type EligibilityConstraint struct {
	*BaseConstraint
}

// NewEligibilityConstraint 创建排班资格约束
func NewEligibilityConstraint() *EligibilityConstraint {
	return &EligibilityConstraint{
		BaseConstraint: NewBaseConstraint("排班资格", constraint.TypeEligibility, constraint.CategoryHard, 100),
	}
}

// Evaluate 评估单个分配
func (c *EligibilityConstraint) Evaluate(t *constraint.Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, float64) {
	return emp.IsSchedulable(t.SiteID()), 1
}

// PersonalHolidayConstraint 个人休假日不排班
type PersonalHolidayConstraint struct {
	*BaseConstraint
}

// NewPersonalHolidayConstraint 创建个人休假约束
func NewPersonalHolidayConstraint() *PersonalHolidayConstraint {
	return &PersonalHolidayConstraint{
		BaseConstraint: NewBaseConstraint("个人休假", constraint.TypePersonalHoliday, constraint.CategoryHard, 100),
	}
}

// Evaluate 评估单个分配
func (c *PersonalHolidayConstraint) Evaluate(t *constraint.Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, float64) {
	return !t.IsOnPersonalHoliday(emp.ID, slot.Date), 1
}

// MinRestConstraint 班次间最小休息时间
type MinRestConstraint struct {
	*BaseConstraint
}

// NewMinRestConstraint 创建最小休息约束
func NewMinRestConstraint() *MinRestConstraint {
	return &MinRestConstraint{
		BaseConstraint: NewBaseConstraint("班次间最小休息", constraint.TypeMinRest, constraint.CategoryHard, 100),
	}
}

// Evaluate 评估单个分配
func (c *MinRestConstraint) Evaluate(t *constraint.Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, float64) {
	return t.RestSatisfied(emp.ID, slot), 1
}

// MaxConsecutiveDaysConstraint 最大连续工作天数
type MaxConsecutiveDaysConstraint struct {
	*BaseConstraint
}

// NewMaxConsecutiveDaysConstraint 创建最大连续工作天数约束
func NewMaxConsecutiveDaysConstraint() *MaxConsecutiveDaysConstraint {
	return &MaxConsecutiveDaysConstraint{
		BaseConstraint: NewBaseConstraint("最大连续工作天数", constraint.TypeMaxConsecutiveDays, constraint.CategoryHard, 90),
	}
}

// Evaluate 评估单个分配
func (c *MaxConsecutiveDaysConstraint) Evaluate(t *constraint.Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, float64) {
	return t.ConsecutiveDaysOk(emp.ID, slot.Date), 1
}

// HourCapsConstraint 日/周/月/年工时上限
type HourCapsConstraint struct {
	*BaseConstraint
}

// NewHourCapsConstraint 创建工时上限约束
func NewHourCapsConstraint() *HourCapsConstraint {
	return &HourCapsConstraint{
		BaseConstraint: NewBaseConstraint("工时上限", constraint.TypeHourCaps, constraint.CategoryHard, 100),
	}
}

// Evaluate 评估单个分配
func (c *HourCapsConstraint) Evaluate(t *constraint.Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, float64) {
	ok, _ := t.FitsCaps(emp.ID, slot)
	return ok, 1
}
