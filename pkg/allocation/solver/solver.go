// Package solver 提供槽位分配求解策略
package solver

import (
	"context"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/model"
)

// Solver 求解器接口
type Solver interface {
	// Solve 生成分配结果
	Solve(ctx context.Context, run *constraint.Context) (*model.SelectionResult, error)

	// Name 返回求解器名称
	Name() string
}

// Admit 按给定顺序将候选依次送入准入引擎，返回入选分值总和。
// 引擎会先被清空，相同顺序在新状态下总是得到相同结果
func Admit(e *constraint.Engine, order []int) model.Fixed {
	e.Reset()
	for _, i := range order {
		if e.CanAdmit(i) {
			e.Admit(i)
		}
	}
	return e.Points()
}

// Fitness 顺序准入评估器，独占一份准入状态，不能并发使用
type Fitness struct {
	engine      *constraint.Engine
	evaluations int
}

// NewFitness 创建评估器
func NewFitness(run *constraint.Context) *Fitness {
	return &Fitness{engine: constraint.NewEngine(run)}
}

// Evaluate 计算顺序的准入总分
func (f *Fitness) Evaluate(order []int) model.Fixed {
	f.evaluations++
	return Admit(f.engine, order)
}

// IsSelected 最近一次评估中候选是否入选
func (f *Fitness) IsSelected(i int) bool {
	return f.engine.IsSelected(i)
}

// Evaluations 累计评估次数
func (f *Fitness) Evaluations() int {
	return f.evaluations
}

// Engine 底层准入引擎
func (f *Fitness) Engine() *constraint.Engine {
	return f.engine
}
