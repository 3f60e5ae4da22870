package builtin

import (
	"github.com/google/uuid"

	"github.com/paiban/pharmashift/pkg/model"
	"github.com/paiban/pharmashift/pkg/scheduler/constraint"
)

// WorkloadBalanceConstraint 工时分配偏好。
// equal_hours 偏向离上限最远的员工；contiguous_hours 偏向能延续上一班的员工。
type WorkloadBalanceConstraint struct {
	*BaseConstraint
	preference model.Preference
}

// NewWorkloadBalanceConstraint 创建工时偏好约束
func NewWorkloadBalanceConstraint(weight int, preference model.Preference) *WorkloadBalanceConstraint {
	return &WorkloadBalanceConstraint{
		BaseConstraint: NewBaseConstraint("工时均衡", constraint.TypeWorkloadBalance, constraint.CategorySoft, weight),
		preference:     preference,
	}
}

// Evaluate 评估单个分配
func (c *WorkloadBalanceConstraint) Evaluate(t *constraint.Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, float64) {
	headroom := t.Headroom(emp.ID, slot)
	if c.preference == model.PreferContiguousHours {
		if t.Extends(emp.ID, slot) {
			return true, 1
		}
		return true, 0.5 * headroom
	}
	return true, headroom
}

// dutyFairness 值班或节假日负担的公平性：
// 员工已承担的时长高于平均值越多，得分越低
func dutyFairness(mine int, mean float64, slotMinutes int) float64 {
	excess := float64(mine) - mean
	if excess <= 0 {
		return 1
	}
	ratio := excess / (mean + float64(slotMinutes))
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}

// GuardFairnessConstraint 值班公平性，仅作用于值班时段
type GuardFairnessConstraint struct {
	*BaseConstraint
}

// NewGuardFairnessConstraint 创建值班公平约束
func NewGuardFairnessConstraint(weight int) *GuardFairnessConstraint {
	return &GuardFairnessConstraint{
		BaseConstraint: NewBaseConstraint("值班公平", constraint.TypeGuardFairness, constraint.CategorySoft, weight),
	}
}

// Evaluate 评估单个分配
func (c *GuardFairnessConstraint) Evaluate(t *constraint.Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, float64) {
	if slot.Kind != model.KindGuard {
		return true, constraint.NotApplicable
	}
	return true, dutyFairness(t.GuardMinutes(emp.ID), t.MeanGuardMinutes(), slot.Minutes())
}

// HolidayFairnessConstraint 节假日出勤公平性，仅作用于节假日时段
type HolidayFairnessConstraint struct {
	*BaseConstraint
}

// NewHolidayFairnessConstraint 创建节假日公平约束
func NewHolidayFairnessConstraint(weight int) *HolidayFairnessConstraint {
	return &HolidayFairnessConstraint{
		BaseConstraint: NewBaseConstraint("节假日公平", constraint.TypeHolidayFairness, constraint.CategorySoft, weight),
	}
}

// Evaluate 评估单个分配
func (c *HolidayFairnessConstraint) Evaluate(t *constraint.Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, float64) {
	if slot.Kind != model.KindHoliday {
		return true, constraint.NotApplicable
	}
	return true, dutyFairness(t.HolidayMinutes(emp.ID), t.MeanHolidayMinutes(), slot.Minutes())
}

// MinimizeChangesConstraint 尽量保持与上期排班一致
type MinimizeChangesConstraint struct {
	*BaseConstraint
	prior map[uuid.UUID][]model.TimeRange
}

// NewMinimizeChangesConstraint 创建变动最小化约束
func NewMinimizeChangesConstraint(weight int, prior []model.Shift) *MinimizeChangesConstraint {
	index := make(map[uuid.UUID][]model.TimeRange)
	for i := range prior {
		index[prior[i].EmployeeID] = append(index[prior[i].EmployeeID], prior[i].Range())
	}
	return &MinimizeChangesConstraint{
		BaseConstraint: NewBaseConstraint("减少变动", constraint.TypeMinimizeChanges, constraint.CategorySoft, weight),
		prior:          index,
	}
}

// Evaluate 上期在该时段上班的员工得 1 分，否则 0 分
func (c *MinimizeChangesConstraint) Evaluate(t *constraint.Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, float64) {
	r := slot.Range()
	for _, p := range c.prior[emp.ID] {
		if p.Overlaps(r) {
			return true, 1
		}
	}
	return true, 0
}
