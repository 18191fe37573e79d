package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/bpp/sloty/pkg/allocation/checkpoint"
	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
)

// Transactor 支持事务的数据库，*database.DB 满足该接口
type Transactor interface {
	DB
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// CheckpointRepository 将断点保存到 allocation_checkpoints 表
type CheckpointRepository struct {
	db   DB
	keep int
}

var _ checkpoint.Store = (*CheckpointRepository)(nil)

// NewCheckpointRepository 创建断点仓储。keep > 0 时每次保存后只保留
// 该学科与策略最近的 keep 条断点
func NewCheckpointRepository(db DB, keep int) *CheckpointRepository {
	return &CheckpointRepository{db: db, keep: keep}
}

// Save 保存断点。需要清理时，写入与清理在同一事务内完成
func (r *CheckpointRepository) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	if r.keep <= 0 {
		return insertCheckpoint(ctx, r.db, cp)
	}

	save := func(db DB) error {
		if err := insertCheckpoint(ctx, db, cp); err != nil {
			return err
		}
		_, err := pruneSeries(ctx, db, cp.DisciplineID, cp.Strategy, r.keep)
		return err
	}
	if t, ok := r.db.(Transactor); ok {
		return t.Transaction(ctx, func(tx *sql.Tx) error { return save(tx) })
	}
	return save(r.db)
}

func insertCheckpoint(ctx context.Context, db DB, cp *checkpoint.Checkpoint) error {
	query := `
		INSERT INTO allocation_checkpoints (
			id, run_id, discipline_id, strategy, candidate_ids, points, generation, saved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := db.ExecContext(ctx, query,
		cp.ID, cp.RunID, cp.DisciplineID, cp.Strategy,
		pq.Array(candidateIDs(cp.Order)), cp.Points.String(), cp.Generation, cp.SavedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "保存断点失败")
	}
	return nil
}

// pruneSeries 删除单个学科与策略中较旧的断点
func pruneSeries(ctx context.Context, db DB, disciplineID model.DisciplineID, strategy string, keep int) (int64, error) {
	query := `
		DELETE FROM allocation_checkpoints
		WHERE discipline_id = $1 AND strategy = $2
		  AND id NOT IN (
			SELECT id FROM allocation_checkpoints
			WHERE discipline_id = $1 AND strategy = $2
			ORDER BY saved_at DESC
			LIMIT $3
		  )
	`

	res, err := db.ExecContext(ctx, query, disciplineID, strategy, keep)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "清理断点失败")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Latest 返回学科与策略最近一次保存的断点
func (r *CheckpointRepository) Latest(ctx context.Context, disciplineID model.DisciplineID, strategy string) (*checkpoint.Checkpoint, error) {
	query := `
		SELECT id, run_id, discipline_id, strategy, candidate_ids, points::text, generation, saved_at
		FROM allocation_checkpoints
		WHERE discipline_id = $1 AND strategy = $2
		ORDER BY saved_at DESC
		LIMIT 1
	`

	var cp checkpoint.Checkpoint
	var ids pq.Int64Array
	var points string
	err := r.db.QueryRowContext(ctx, query, disciplineID, strategy).Scan(
		&cp.ID, &cp.RunID, &cp.DisciplineID, &cp.Strategy, &ids, &points, &cp.Generation, &cp.SavedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("断点", fmt.Sprintf("d%d/%s", disciplineID, strategy))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询断点失败")
	}

	if cp.Points, err = scanFixed(points, "allocation_checkpoints.points"); err != nil {
		return nil, err
	}
	cp.Order = make([]model.CandidateID, len(ids))
	for k, id := range ids {
		cp.Order[k] = model.CandidateID(id)
	}
	return &cp, nil
}

// Prune 只保留每个学科与策略最近的 keep 条断点，keep <= 0 时不做任何清理
func (r *CheckpointRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	query := `
		DELETE FROM allocation_checkpoints
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY discipline_id, strategy ORDER BY saved_at DESC
				) AS rn
				FROM allocation_checkpoints
			) ranked
			WHERE rn > $1
		)
	`

	res, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDatabaseError, "清理断点失败")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func candidateIDs(order []model.CandidateID) []int64 {
	ids := make([]int64, len(order))
	for k, id := range order {
		ids[k] = int64(id)
	}
	return ids
}
