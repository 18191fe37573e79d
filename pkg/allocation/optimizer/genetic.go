package optimizer

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/logger"
	"github.com/bpp/sloty/pkg/model"
)

// NameGenetic 遗传搜索策略名称
const NameGenetic = "genetic"

// GeneticConfig 遗传搜索配置
type GeneticConfig struct {
	PopulationSize        int     `koanf:"population_size" json:"population_size"`
	BestFirstCopies       int     `koanf:"best_first_copies" json:"best_first_copies"` // 密度排序个体的份数
	RandomSeeds           int     `koanf:"random_seeds" json:"random_seeds"`           // 随机排列个体数
	PartialShuffles       int     `koanf:"partial_shuffles" json:"partial_shuffles"`   // 局部打乱的密度排序个体数
	TournamentSize        int     `koanf:"tournament_size" json:"tournament_size"`
	CrossoverRate         float64 `koanf:"crossover_rate" json:"crossover_rate"`
	MutationRate          float64 `koanf:"mutation_rate" json:"mutation_rate"` // 每个子代发生变异的概率
	MutationSwaps         int     `koanf:"mutation_swaps" json:"mutation_swaps"`
	MaxGenerations        int     `koanf:"max_generations" json:"max_generations"`
	SaturationGenerations int     `koanf:"saturation_generations" json:"saturation_generations"` // 连续无改进代数上限
	Workers               int     `koanf:"workers" json:"workers"`
	Seed                  int64   `koanf:"seed" json:"seed"`

	Bubble               bool          `koanf:"bubble" json:"bubble"`
	Swap                 bool          `koanf:"swap" json:"swap"`
	SwapMaxN             int           `koanf:"swap_max_n" json:"swap_max_n"` // 候选数超过该值时跳过两两交换
	RandomWindow         bool          `koanf:"random_window" json:"random_window"`
	RandomWindowWidth    int           `koanf:"random_window_width" json:"random_window_width"`
	RandomWindowBudget   time.Duration `koanf:"random_window_budget" json:"random_window_budget"`
	RandomWindowAttempts int           `koanf:"random_window_attempts" json:"random_window_attempts"`
}

// DefaultGeneticConfig 默认遗传搜索配置
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize:        60,
		BestFirstCopies:       5,
		RandomSeeds:           20,
		PartialShuffles:       20,
		TournamentSize:        3,
		CrossoverRate:         0.9,
		MutationRate:          0.3,
		MutationSwaps:         2,
		MaxGenerations:        500,
		SaturationGenerations: 60,
		Bubble:                true,
		Swap:                  false,
		SwapMaxN:              150,
		RandomWindow:          true,
		RandomWindowWidth:     8,
		RandomWindowBudget:    2 * time.Second,
		RandomWindowAttempts:  20000,
	}
}

// individual 种群个体
type individual struct {
	order   []int
	fitness model.Fixed
}

// GeneticOptimizer 遗传搜索：个体为候选下标的全排列，适应度为顺序准入总分
type GeneticOptimizer struct {
	config    GeneticConfig
	rng       *rand.Rand
	initial   []model.CandidateID
	onImprove ImproveFunc
	logger    *logger.AllocationLogger
}

// NewGeneticOptimizer 创建遗传搜索优化器
func NewGeneticOptimizer(cfg GeneticConfig) *GeneticOptimizer {
	if cfg.PopulationSize < 2 {
		cfg.PopulationSize = 2
	}
	if cfg.TournamentSize < 1 {
		cfg.TournamentSize = 1
	}
	return &GeneticOptimizer{
		config: cfg,
		rng:    newRand(cfg.Seed),
		logger: logger.NewAllocationLogger(NameGenetic),
	}
}

// Name 返回求解器名称
func (o *GeneticOptimizer) Name() string {
	return NameGenetic
}

// SetRand 注入随机源
func (o *GeneticOptimizer) SetRand(rng *rand.Rand) {
	o.rng = rng
}

// SetInitialOrder 设置种子顺序（断点续跑）
func (o *GeneticOptimizer) SetInitialOrder(order []model.CandidateID) {
	o.initial = order
}

// OnImprove 设置更优顺序回调
func (o *GeneticOptimizer) OnImprove(fn ImproveFunc) {
	o.onImprove = fn
}

// Solve 运行遗传搜索并生成结果
func (o *GeneticOptimizer) Solve(ctx context.Context, run *constraint.Context) (*model.SelectionResult, error) {
	var initial []int
	if len(o.initial) > 0 {
		initial = solver.ResolveOrder(run, o.initial)
	}
	return solve(ctx, o, o.logger, run, initial)
}

// Optimize 进化种群直到达到理论最大值、饱和或代数上限，然后执行细化
func (o *GeneticOptimizer) Optimize(ctx context.Context, run *constraint.Context, initial []int) (*Best, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runID := run.RunID.String()
	o.logger.StartRun(runID, int64(run.Discipline.ID), run.Len(), run.AuthorCount())

	ceiling := run.TotalValue()
	evaluator := NewParallelEvaluator(run, o.config.Workers)

	population, err := o.evaluate(ctx, evaluator, o.seed(run, initial))
	if err != nil {
		o.logger.RunFailed(runID, err)
		return nil, err
	}
	rank(population)
	best := &Best{Order: cloneOrder(population[0].order), Points: population[0].fitness}
	o.improved(best, 0)

	generation, lastImprovement := 0, 0
	reason := "max_generations"
	for generation < o.config.MaxGenerations {
		if best.Points >= ceiling {
			best.Stats.ReachedMaximum = true
			reason = "maximum"
			break
		}
		if o.config.SaturationGenerations > 0 && generation-lastImprovement >= o.config.SaturationGenerations {
			best.Stats.Saturated = true
			reason = "saturated"
			break
		}
		if err := ctx.Err(); err != nil {
			o.logger.RunFailed(runID, err)
			return nil, err
		}

		generation++
		children, err := o.evaluate(ctx, evaluator, o.breed(population))
		if err != nil {
			o.logger.RunFailed(runID, err)
			return nil, err
		}
		population = o.replace(population, children)

		if population[0].fitness > best.Points {
			best.Order = cloneOrder(population[0].order)
			best.Points = population[0].fitness
			lastImprovement = generation
			o.improved(best, generation)
		}
	}
	if best.Points >= ceiling {
		best.Stats.ReachedMaximum = true
		reason = "maximum"
	}

	best.Stats.Generations = generation
	best.Stats.Evaluations = evaluator.Evaluations()
	o.logger.Stopped(reason, generation, best.Points.Float64(), ceiling.Float64())

	if !best.Stats.ReachedMaximum {
		if err := o.refine(ctx, run, best); err != nil {
			o.logger.RunFailed(runID, err)
			return nil, err
		}
	}
	best.Stats.ReachedMaximum = best.Points >= ceiling
	return best, nil
}

// seed 初始种群：密度排序副本、随机排列、密度排序的局部打乱，不足部分以随机排列补齐
func (o *GeneticOptimizer) seed(run *constraint.Context, initial []int) [][]int {
	n := run.Len()
	size := o.config.PopulationSize
	bestFirst := DensityOrder(run)

	orders := make([][]int, 0, size)
	if len(initial) == n {
		orders = append(orders, cloneOrder(initial))
	}
	for i := 0; i < o.config.BestFirstCopies && len(orders) < size; i++ {
		orders = append(orders, cloneOrder(bestFirst))
	}
	for i := 0; i < o.config.RandomSeeds && len(orders) < size; i++ {
		orders = append(orders, o.rng.Perm(n))
	}
	base := bestFirst
	if len(initial) == n {
		base = initial
	}
	for i := 0; i < o.config.PartialShuffles && len(orders) < size; i++ {
		orders = append(orders, o.partialShuffle(base))
	}
	for len(orders) < size {
		orders = append(orders, o.rng.Perm(n))
	}
	return orders
}

// partialShuffle 打乱顺序中随机的一段，长度约为总长的四分之一
func (o *GeneticOptimizer) partialShuffle(base []int) []int {
	order := cloneOrder(base)
	n := len(order)
	if n < 2 {
		return order
	}
	width := max(n/4, 2)
	start := o.rng.Intn(n - width + 1)
	shuffleWindow(o.rng, order, start, width)
	return order
}

// evaluate 并行计算适应度
func (o *GeneticOptimizer) evaluate(ctx context.Context, p *ParallelEvaluator, orders [][]int) ([]individual, error) {
	scores, err := p.EvaluateBatch(ctx, orders)
	if err != nil {
		return nil, err
	}
	out := make([]individual, len(orders))
	for i := range orders {
		out[i] = individual{order: orders[i], fitness: scores[i]}
	}
	return out, nil
}

// breed 锦标赛选择父代，两点顺序交叉并交换变异，产生与种群等量的子代
func (o *GeneticOptimizer) breed(population []individual) [][]int {
	children := make([][]int, 0, len(population))
	for len(children) < len(population) {
		p1 := o.tournament(population)
		p2 := o.tournament(population)

		var c1, c2 []int
		if o.rng.Float64() < o.config.CrossoverRate {
			c1, c2 = o.crossover(p1.order, p2.order), o.crossover(p2.order, p1.order)
		} else {
			c1, c2 = cloneOrder(p1.order), cloneOrder(p2.order)
		}
		o.mutate(c1)
		o.mutate(c2)

		children = append(children, c1)
		if len(children) < len(population) {
			children = append(children, c2)
		}
	}
	return children
}

// tournament 随机抽取若干个体，返回适应度最高者
func (o *GeneticOptimizer) tournament(population []individual) *individual {
	best := &population[o.rng.Intn(len(population))]
	for i := 1; i < o.config.TournamentSize; i++ {
		c := &population[o.rng.Intn(len(population))]
		if c.fitness > best.fitness {
			best = c
		}
	}
	return best
}

// crossover 两点顺序交叉：保留 a 的一段，其余位置按 b 中出现的顺序填充
func (o *GeneticOptimizer) crossover(a, b []int) []int {
	n := len(a)
	child := make([]int, n)
	if n < 2 {
		copy(child, a)
		return child
	}
	lo, hi := o.rng.Intn(n), o.rng.Intn(n)
	if lo > hi {
		lo, hi = hi, lo
	}
	hi++

	used := make([]bool, n)
	for i := lo; i < hi; i++ {
		child[i] = a[i]
		used[a[i]] = true
	}
	pos := hi % n
	for k := 0; k < n; k++ {
		gene := b[(hi+k)%n]
		if used[gene] {
			continue
		}
		child[pos] = gene
		used[gene] = true
		pos = (pos + 1) % n
	}
	return child
}

// mutate 以配置概率做若干次随机交换
func (o *GeneticOptimizer) mutate(order []int) {
	if len(order) < 2 || o.rng.Float64() >= o.config.MutationRate {
		return
	}
	for k := 0; k < max(o.config.MutationSwaps, 1); k++ {
		i, j := o.rng.Intn(len(order)), o.rng.Intn(len(order))
		order[i], order[j] = order[j], order[i]
	}
}

// replace 精英代际替换：父代与子代合并后保留适应度最高的个体，同分父代优先
func (o *GeneticOptimizer) replace(parents, children []individual) []individual {
	merged := make([]individual, 0, len(parents)+len(children))
	merged = append(merged, parents...)
	merged = append(merged, children...)
	rank(merged)
	return merged[:len(parents)]
}

// refine 对最优顺序依次执行已启用的细化
func (o *GeneticOptimizer) refine(ctx context.Context, run *constraint.Context, best *Best) error {
	fitness := solver.NewFitness(run)
	ceiling := run.TotalValue()
	before := best.Points

	if o.config.Bubble && best.Points < ceiling {
		order, points, err := Bubble(ctx, fitness, best.Order)
		if err != nil {
			return err
		}
		best.Order, best.Points = order, points
	}
	if o.config.Swap && run.Len() <= o.config.SwapMaxN && best.Points < ceiling {
		order, points, err := SwapPass(ctx, fitness, best.Order)
		if err != nil {
			return err
		}
		best.Order, best.Points = order, points
	}
	if o.config.RandomWindow && best.Points < ceiling {
		order, points, err := RandomWindow(ctx, fitness, o.rng, best.Order, WindowBudget{
			Width:    o.config.RandomWindowWidth,
			Duration: o.config.RandomWindowBudget,
			Attempts: o.config.RandomWindowAttempts,
		})
		if err != nil {
			return err
		}
		best.Order, best.Points = order, points
	}

	best.Stats.Evaluations += fitness.Evaluations()
	if best.Points > before {
		o.improved(best, best.Stats.Generations)
	}
	return nil
}

// improved 记录更优顺序
func (o *GeneticOptimizer) improved(best *Best, generation int) {
	o.logger.Improvement(generation, best.Points.Float64())
	if o.onImprove != nil {
		o.onImprove(best.Order, best.Points, generation)
	}
}

// rank 按适应度降序稳定排序
func rank(population []individual) {
	sort.SliceStable(population, func(i, j int) bool {
		return population[i].fitness > population[j].fitness
	})
}
