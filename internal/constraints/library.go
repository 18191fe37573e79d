// Package constraints 分配规则与策略参数目录
package constraints

import (
	"strconv"

	"github.com/bpp/sloty/internal/config"
	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/optimizer"
	"github.com/bpp/sloty/pkg/allocation/solver"
)

// ParamDefinition 策略参数定义
type ParamDefinition struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, bool, duration
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// RuleDefinition 准入规则定义
type RuleDefinition struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Order       int    `json:"order"` // 检查顺序，从 1 开始
	Scope       string `json:"scope"` // 生效范围
	Description string `json:"description"`
}

// StrategyDefinition 分配策略定义
type StrategyDefinition struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Category    string            `json:"category"` // heuristic 或 metaheuristic
	Description string            `json:"description"`
	Params      []ParamDefinition `json:"params,omitempty"`
}

// LibraryResponse 规则库响应
type LibraryResponse struct {
	Rules      []RuleDefinition     `json:"rules"`
	Strategies []StrategyDefinition `json:"strategies"`
}

var ruleDocs = map[constraint.Type]struct {
	scope       string
	description string
}{
	constraint.TypeDuplicate: {
		scope:       "全部",
		description: "同一候选只能入选一次。",
	},
	constraint.TypeInstitution: {
		scope:       "配置了机构配额的学科",
		description: "入选候选的名额总和不得超过机构配额池，恰好用满视为可行。",
	},
	constraint.TypeAuthorCap: {
		scope:       "全部",
		description: "作者入选名额之和不得超过其总配额。",
	},
	constraint.TypeMonographCap: {
		scope:       "专著候选",
		description: "作者入选专著名额之和不得超过其专著配额。",
	},
}

// GetLibrary 获取完整的规则库，策略参数默认值取自引擎配置
func GetLibrary(engine config.EngineConfig) LibraryResponse {
	rules := constraint.DefaultRules()
	resp := LibraryResponse{Rules: make([]RuleDefinition, 0, len(rules))}
	for i, r := range rules {
		doc := ruleDocs[r.Type()]
		resp.Rules = append(resp.Rules, RuleDefinition{
			Name:        string(r.Type()),
			DisplayName: r.Name(),
			Order:       i + 1,
			Scope:       doc.scope,
			Description: doc.description,
		})
	}
	resp.Strategies = strategies(engine)
	return resp
}

func strategies(engine config.EngineConfig) []StrategyDefinition {
	ro, ga := engine.Reorder, engine.Genetic
	return []StrategyDefinition{
		{
			Name:        solver.NameSequential,
			DisplayName: "顺序选取",
			Category:    "heuristic",
			Description: "按候选输入顺序逐个尝试准入，不做任何优化，作为基线。",
		},
		{
			Name:        solver.NameGreedy,
			DisplayName: "作者背包",
			Category:    "heuristic",
			Description: "对每位作者做精确背包，再按分值密度合并，受机构配额池约束。",
			Params: []ParamDefinition{
				{Name: "workers", Type: "int", Description: "并行规划的作者数", Default: itoa(engine.Workers), Min: "1"},
				{Name: "max_cells", Type: "int", Description: "背包动态规划表规模上限", Default: strconv.FormatInt(engine.MaxCells, 10), Min: "1"},
			},
		},
		{
			Name:        optimizer.NameReorder,
			DisplayName: "窗口重排",
			Category:    "metaheuristic",
			Description: "在排序后的候选序列上滑动窗口并随机重排，保留更优的顺序。",
			Params: []ParamDefinition{
				{Name: "min_window", Type: "int", Description: "最小窗口宽度", Default: itoa(ro.MinWindow), Min: "2"},
				{Name: "max_window", Type: "int", Description: "最大窗口宽度", Default: itoa(ro.MaxWindow), Min: "2"},
				{Name: "window_step", Type: "int", Description: "宽度步长", Default: itoa(ro.WindowStep), Min: "1"},
				{Name: "start_step", Type: "int", Description: "起始位置步长", Default: itoa(ro.StartStep), Min: "1"},
				{Name: "repeats", Type: "int", Description: "每个窗口的重排次数", Default: itoa(ro.Repeats), Min: "1"},
			},
		},
		{
			Name:        optimizer.NameGenetic,
			DisplayName: "遗传算法",
			Category:    "metaheuristic",
			Description: "以候选排列为个体，锦标赛选择、顺序交叉与交换变异，达到上界或连续无改进时停止。",
			Params: []ParamDefinition{
				{Name: "population_size", Type: "int", Description: "种群规模", Default: itoa(ga.PopulationSize), Min: "2"},
				{Name: "tournament_size", Type: "int", Description: "锦标赛规模", Default: itoa(ga.TournamentSize), Min: "1"},
				{Name: "crossover_rate", Type: "float", Description: "交叉概率", Default: ftoa(ga.CrossoverRate), Min: "0", Max: "1"},
				{Name: "mutation_rate", Type: "float", Description: "变异概率", Default: ftoa(ga.MutationRate), Min: "0", Max: "1"},
				{Name: "max_generations", Type: "int", Description: "最大代数", Default: itoa(ga.MaxGenerations), Min: "1"},
				{Name: "saturation_generations", Type: "int", Description: "连续无改进代数上限", Default: itoa(ga.SaturationGenerations), Min: "1"},
				{Name: "random_window", Type: "bool", Description: "结束前做随机窗口搜索", Default: strconv.FormatBool(ga.RandomWindow)},
				{Name: "random_window_budget", Type: "duration", Description: "随机窗口搜索时间预算", Default: ga.RandomWindowBudget.String()},
			},
		},
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
