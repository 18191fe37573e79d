package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
)

// SnapshotRepository 从 PostgreSQL 加载学科快照
type SnapshotRepository struct {
	db DB
}

// NewSnapshotRepository 创建快照仓储
func NewSnapshotRepository(db DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Load 加载学科在评估窗口内的候选、作者、配额与机构 N 值
func (r *SnapshotRepository) Load(ctx context.Context, disciplineID model.DisciplineID, window model.Window) (*model.Snapshot, error) {
	snap := &model.Snapshot{Window: window}

	inst, err := r.loadDiscipline(ctx, disciplineID, &snap.Discipline)
	if err != nil {
		return nil, err
	}
	snap.Institution = inst

	if err := r.loadAuthors(ctx, disciplineID, snap); err != nil {
		return nil, err
	}
	if err := r.loadCandidates(ctx, disciplineID, window, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *SnapshotRepository) loadDiscipline(ctx context.Context, id model.DisciplineID, d *model.Discipline) (*model.InstitutionSpec, error) {
	query := `
		SELECT id, code, name, hst, COALESCE(scheme, ''), COALESCE(n::text, ''), split_year
		FROM disciplines
		WHERE id = $1
	`

	var scheme, n string
	var splitYear int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Code, &d.Name, &d.HST, &scheme, &n, &splitYear)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("学科", strconv.FormatInt(int64(id), 10))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询学科失败")
	}

	if scheme == "" {
		return nil, nil
	}
	nv, err := scanFixed(n, "disciplines.n")
	if err != nil {
		return nil, err
	}
	return &model.InstitutionSpec{
		Scheme:    model.BudgetScheme(strings.ToLower(scheme)),
		N:         nv,
		SplitYear: splitYear,
	}, nil
}

// loadAuthors 加载有配额或在本学科有候选的作者。没有配额行的作者只加入 Authors，
// 由运行上下文报告配置错误
func (r *SnapshotRepository) loadAuthors(ctx context.Context, disciplineID model.DisciplineID, snap *model.Snapshot) error {
	query := `
		SELECT a.id, a.name, b.rank::text, b.total_cap::text, b.monograph_cap::text
		FROM authors a
		LEFT JOIN author_budgets b ON b.author_id = a.id AND b.discipline_id = $1
		WHERE b.author_id IS NOT NULL
		   OR EXISTS (SELECT 1 FROM candidates c WHERE c.author_id = a.id AND c.discipline_id = $1)
		ORDER BY a.id
	`

	rows, err := r.db.QueryContext(ctx, query, disciplineID)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "查询作者配额失败")
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Author
		var rank, total, mono sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &rank, &total, &mono); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "扫描作者配额失败")
		}
		if rank.Valid {
			if a.Rank, err = scanFixed(rank.String, "author_budgets.rank"); err != nil {
				return err
			}
		}
		snap.Authors = append(snap.Authors, a)
		if !total.Valid {
			continue
		}

		b := model.AuthorBudget{AuthorID: a.ID}
		if b.TotalCap, err = scanFixed(total.String, "author_budgets.total_cap"); err != nil {
			return err
		}
		if b.MonographCap, err = scanFixed(mono.String, "author_budgets.monograph_cap"); err != nil {
			return err
		}
		snap.Budgets = append(snap.Budgets, b)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "遍历作者配额失败")
	}
	return nil
}

func (r *SnapshotRepository) loadCandidates(ctx context.Context, disciplineID model.DisciplineID, window model.Window, snap *model.Snapshot) error {
	query, args := candidateQuery(disciplineID, window)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "查询候选失败")
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Candidate
		var cost, points string
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.DisciplineID, &c.Year, &cost, &points, &c.IsMonograph, &c.Title); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "扫描候选失败")
		}
		if c.SlotCost, err = scanFixed(cost, "candidates.slot_cost"); err != nil {
			return err
		}
		if c.PointValue, err = scanFixed(points, "candidates.point_value"); err != nil {
			return err
		}
		snap.Candidates = append(snap.Candidates, c)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "遍历候选失败")
	}
	return nil
}

// candidateQuery 构建候选查询，窗口边界为 0 时不限制
func candidateQuery(disciplineID model.DisciplineID, window model.Window) (string, []interface{}) {
	conditions := []string{"discipline_id = $1"}
	args := []interface{}{disciplineID}
	argNum := 2

	if window.From != 0 {
		conditions = append(conditions, fmt.Sprintf("year >= $%d", argNum))
		args = append(args, window.From)
		argNum++
	}
	if window.To != 0 {
		conditions = append(conditions, fmt.Sprintf("year <= $%d", argNum))
		args = append(args, window.To)
	}

	query := `
		SELECT id, author_id, discipline_id, year, slot_cost::text, point_value::text, is_monograph, title
		FROM candidates
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY id
	`
	return query, args
}
