package constraint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/paiban/pharmashift/pkg/model"
)

// Manager 约束管理器
type Manager struct {
	constraints []Constraint
	mu          sync.RWMutex
}

// NewManager 创建约束管理器
func NewManager() *Manager {
	return &Manager{
		constraints: make([]Constraint, 0),
	}
}

// Register 注册约束，同类型约束会被替换
func (m *Manager) Register(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.constraints {
		if existing.Type() == c.Type() {
			m.constraints[i] = c
			return
		}
	}

	m.constraints = append(m.constraints, c)

	// 硬约束在前，权重高的在前
	sort.SliceStable(m.constraints, func(i, j int) bool {
		ci, cj := m.constraints[i], m.constraints[j]
		if ci.Category() != cj.Category() {
			return ci.Category() == CategoryHard
		}
		return ci.Weight() > cj.Weight()
	})
}

// GetAll 获取所有约束，硬约束在前
func (m *Manager) GetAll() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Constraint, len(m.constraints))
	copy(result, m.constraints)
	return result
}

// GetByCategory 按类别获取约束
func (m *Manager) GetByCategory(cat Category) []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Constraint
	for _, c := range m.constraints {
		if c.Category() == cat {
			result = append(result, c)
		}
	}
	return result
}

// CanAssign 检查所有硬约束，不满足时返回原因
func (m *Manager) CanAssign(t *Tracker, emp *model.Employee, slot *model.DemandSlot) (bool, string) {
	for _, c := range m.GetByCategory(CategoryHard) {
		if ok, _ := c.Evaluate(t, emp, slot); !ok {
			return false, fmt.Sprintf("违反硬约束: %s", c.Name())
		}
	}
	return true, ""
}

// Score 软约束加权平均得分，范围 [0,1]。
// 权重为 0 或不适用的约束不参与；没有参与的约束时得分为 1。
func (m *Manager) Score(t *Tracker, emp *model.Employee, slot *model.DemandSlot) float64 {
	var weighted, total float64
	for _, c := range m.GetByCategory(CategorySoft) {
		w := float64(c.Weight())
		if w <= 0 {
			continue
		}
		_, score := c.Evaluate(t, emp, slot)
		if score < 0 {
			continue
		}
		if score > 1 {
			score = 1
		}
		weighted += w * score
		total += w
	}
	if total == 0 {
		return 1
	}
	return weighted / total
}
