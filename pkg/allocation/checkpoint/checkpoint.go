// Package checkpoint 保存与恢复优化过程中的最优候选顺序，用于断点续跑
package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/allocation/optimizer"
	"github.com/bpp/sloty/pkg/allocation/solver"
	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/logger"
	"github.com/bpp/sloty/pkg/model"
)

// Checkpoint 一次保存的最优顺序
type Checkpoint struct {
	ID           uuid.UUID           `json:"id"`
	RunID        uuid.UUID           `json:"run_id"`
	DisciplineID model.DisciplineID  `json:"discipline_id"`
	Strategy     string              `json:"strategy"`
	Order        []model.CandidateID `json:"order"`
	Points       model.Fixed         `json:"points"`
	Generation   int                 `json:"generation"`
	SavedAt      time.Time           `json:"saved_at"`
}

// Store 断点存储
type Store interface {
	// Save 保存断点
	Save(ctx context.Context, cp *Checkpoint) error

	// Latest 返回学科与策略最近一次保存的断点，不存在时返回 NOT_FOUND
	Latest(ctx context.Context, disciplineID model.DisciplineID, strategy string) (*Checkpoint, error)
}

// New 根据候选下标顺序创建断点
func New(run *constraint.Context, strategy string, order []int, points model.Fixed, generation int) *Checkpoint {
	ids := make([]model.CandidateID, len(order))
	for k, i := range order {
		ids[k] = run.Candidates[i].ID
	}
	return &Checkpoint{
		ID:           uuid.New(),
		RunID:        run.RunID,
		DisciplineID: run.Discipline.ID,
		Strategy:     strategy,
		Order:        ids,
		Points:       points,
		Generation:   generation,
		SavedAt:      time.Now().UTC(),
	}
}

// Order 将断点中的候选ID映射回当前上下文的下标顺序：
// 已不存在的候选被忽略，新增候选按输入顺序追加在后
func Order(run *constraint.Context, cp *Checkpoint) []int {
	if cp == nil {
		return nil
	}
	return solver.ResolveOrder(run, cp.Order)
}

// Recorder 返回把更优顺序写入存储的回调，两次保存至少间隔 interval。
// 保存失败只记录日志，不中断优化
func Recorder(ctx context.Context, store Store, run *constraint.Context, strategy string, interval time.Duration) optimizer.ImproveFunc {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func(order []int, points model.Fixed, step int) {
		mu.Lock()
		defer mu.Unlock()
		if !last.IsZero() && time.Since(last) < interval {
			return
		}
		cp := New(run, strategy, order, points, step)
		if err := store.Save(ctx, cp); err != nil {
			logger.WithContext(ctx).Warn().
				Err(err).
				Int64("discipline_id", int64(cp.DisciplineID)).
				Str("strategy", strategy).
				Msg("保存断点失败")
			return
		}
		last = time.Now()
	}
}

func notFound(disciplineID model.DisciplineID, strategy string) error {
	return errors.NotFound("checkpoint", fmt.Sprintf("%d/%s", disciplineID, strategy))
}

// MemoryStore 内存断点存储
type MemoryStore struct {
	mu     sync.RWMutex
	latest map[string]*Checkpoint
	saves  int
}

// NewMemoryStore 创建内存断点存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{latest: make(map[string]*Checkpoint)}
}

// Save 保存断点
func (s *MemoryStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cp
	c.Order = append([]model.CandidateID(nil), cp.Order...)
	s.latest[key(cp.DisciplineID, cp.Strategy)] = &c
	s.saves++
	return nil
}

// Latest 返回最近一次保存的断点
func (s *MemoryStore) Latest(ctx context.Context, disciplineID model.DisciplineID, strategy string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.latest[key(disciplineID, strategy)]
	if !ok {
		return nil, notFound(disciplineID, strategy)
	}
	c := *cp
	return &c, nil
}

// Saves 累计保存次数
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func key(disciplineID model.DisciplineID, strategy string) string {
	return fmt.Sprintf("d%d_%s", disciplineID, strategy)
}
