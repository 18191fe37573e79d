package solver

import (
	"sort"
	"sync"

	"github.com/bpp/sloty/pkg/errors"
)

// Factory 求解器构造函数，每次运行创建新实例
type Factory func() Solver

// Registry 策略名称到构造函数的映射
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry 创建注册表，内置顺序准入与按作者贪心策略
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(NameSequential, func() Solver { return NewSequentialSolver() })
	r.Register(NameGreedy, func() Solver { return NewGreedySolver() })
	return r
}

// Register 注册策略，同名覆盖
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New 按名称创建求解器
func (r *Registry) New(name string) (Solver, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Configuration("未知的分配策略 '%s'", name)
	}
	return f(), nil
}

// Names 已注册的策略名称（字典序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
