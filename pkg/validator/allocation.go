// Package validator 重放分配结果并检测违反配额的冲突
package validator

import (
	"fmt"

	"github.com/bpp/sloty/pkg/allocation/constraint"
	"github.com/bpp/sloty/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictDuplicate     ConflictType = "duplicate"      // 候选重复入选
	ConflictUnknown       ConflictType = "unknown"        // 候选不在上下文中
	ConflictAuthorCap     ConflictType = "author_cap"     // 超过作者总配额
	ConflictMonographCap  ConflictType = "monograph_cap"  // 超过作者专著配额
	ConflictPoolCap       ConflictType = "pool_cap"       // 超过机构配额池
	ConflictTotalMismatch ConflictType = "total_mismatch" // 汇总值与重放结果不一致
)

// Conflict 冲突信息
type Conflict struct {
	Type       ConflictType        `json:"type"`
	Severity   string              `json:"severity"` // error/warning
	AuthorID   model.AuthorID      `json:"author_id,omitempty"`
	Pool       string              `json:"pool,omitempty"`
	Message    string              `json:"message"`
	Candidates []model.CandidateID `json:"candidates,omitempty"`
}

// Validate 按入选顺序重放结果，返回全部冲突；结果合法时返回空
func Validate(run *constraint.Context, res *model.SelectionResult) []Conflict {
	var conflicts []Conflict

	seen := make(map[model.CandidateID]bool, len(res.Selected))
	authorTotal := make([]model.Fixed, run.AuthorCount())
	authorMono := make([]model.Fixed, run.AuthorCount())
	pools := run.Pools()
	poolTotal := make([]model.Fixed, len(pools))
	var points, slots model.Fixed

	for _, id := range res.Selected {
		if seen[id] {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictDuplicate,
				Severity:   "error",
				Message:    fmt.Sprintf("候选 %d 重复入选", id),
				Candidates: []model.CandidateID{id},
			})
			continue
		}
		seen[id] = true

		i, ok := run.CandidateIndex(id)
		if !ok {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictUnknown,
				Severity:   "error",
				Message:    fmt.Sprintf("候选 %d 不在学科 %d 的候选集中", id, run.Discipline.ID),
				Candidates: []model.CandidateID{id},
			})
			continue
		}

		c := run.Candidate(i)
		a := run.AuthorOf(i)
		authorTotal[a] += c.SlotCost
		if c.IsMonograph {
			authorMono[a] += c.SlotCost
		}
		for _, p := range run.PoolsOf(i) {
			poolTotal[p] += c.SlotCost
		}
		points += c.PointValue
		slots += c.SlotCost
	}

	for a := range authorTotal {
		b := run.Budget(a)
		if authorTotal[a] > b.TotalCap {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictAuthorCap,
				Severity: "error",
				AuthorID: b.AuthorID,
				Message:  fmt.Sprintf("作者 %d 已用槽位 %s 超过总配额 %s", b.AuthorID, authorTotal[a], b.TotalCap),
			})
		}
		if authorMono[a] > b.MonographCap {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictMonographCap,
				Severity: "error",
				AuthorID: b.AuthorID,
				Message:  fmt.Sprintf("作者 %d 专著槽位 %s 超过专著配额 %s", b.AuthorID, authorMono[a], b.MonographCap),
			})
		}
	}

	// 宽松池允许在阈值以下无条件准入，超出只作为提示
	for p, pool := range pools {
		if poolTotal[p] <= pool.Cap {
			continue
		}
		severity := "error"
		if pool.Lenient {
			severity = "warning"
		}
		conflicts = append(conflicts, Conflict{
			Type:     ConflictPoolCap,
			Severity: severity,
			Pool:     pool.Name,
			Message:  fmt.Sprintf("配额池 %s 已用 %s 超过上限 %s", pool.Name, poolTotal[p], pool.Cap),
		})
	}

	if points != res.TotalPoints || slots != res.TotalSlots {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictTotalMismatch,
			Severity: "error",
			Message:  fmt.Sprintf("汇总 %s 分/%s 槽位，重放得到 %s 分/%s 槽位", res.TotalPoints, res.TotalSlots, points, slots),
		})
	}

	return conflicts
}

// HasErrors 是否存在 error 级别的冲突
func HasErrors(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == "error" {
			return true
		}
	}
	return false
}
