package solver

import (
	"sort"

	"github.com/google/uuid"

	"github.com/paiban/pharmashift/pkg/model"
)

// MergeContiguous 将同一员工首尾相接、类型相同的班次合并为一个班次。
// 只合并同一日期内的班次，值班则可沿同一 GuardID 跨越午夜。
// 每个子时段在合并前都已单独通过可行性检查。
func MergeContiguous(shifts []model.Shift) []model.Shift {
	byEmp := make(map[uuid.UUID][]model.Shift)
	order := make([]uuid.UUID, 0)
	for _, s := range shifts {
		if _, ok := byEmp[s.EmployeeID]; !ok {
			order = append(order, s.EmployeeID)
		}
		byEmp[s.EmployeeID] = append(byEmp[s.EmployeeID], s)
	}

	merged := make([]model.Shift, 0, len(shifts))
	for _, empID := range order {
		list := byEmp[empID]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })

		cur := list[0]
		for _, next := range list[1:] {
			if canMerge(&cur, &next) {
				cur = join(cur, next)
				continue
			}
			merged = append(merged, cur)
			cur = next
		}
		merged = append(merged, cur)
	}
	return merged
}

func canMerge(a, b *model.Shift) bool {
	if !a.End.Equal(b.Start) || a.Kind != b.Kind {
		return false
	}
	if a.Kind == model.KindGuard {
		return a.GuardID != "" && a.GuardID == b.GuardID
	}
	return a.Date == b.Date
}

func join(a, b model.Shift) model.Shift {
	slotIDs := make([]string, 0, len(a.SlotIDs)+len(b.SlotIDs))
	slotIDs = append(slotIDs, a.SlotIDs...)
	slotIDs = append(slotIDs, b.SlotIDs...)

	a.End = b.End
	a.EndDate = b.EndDate
	a.DurationMinutes += b.DurationMinutes
	a.SlotIDs = slotIDs
	return a
}
