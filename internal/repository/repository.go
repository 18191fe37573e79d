// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"

	"github.com/bpp/sloty/pkg/errors"
	"github.com/bpp/sloty/pkg/model"
)

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Schema 引擎读取与写入的表结构。评估数据由外部系统维护，这里只声明依赖的列
const Schema = `
CREATE TABLE IF NOT EXISTS disciplines (
	id         BIGINT PRIMARY KEY,
	code       TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	hst        BOOLEAN NOT NULL DEFAULT FALSE,
	scheme     TEXT,
	n          NUMERIC(12,4),
	split_year INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS authors (
	id   BIGINT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS author_budgets (
	author_id     BIGINT NOT NULL REFERENCES authors(id),
	discipline_id BIGINT NOT NULL REFERENCES disciplines(id),
	total_cap     NUMERIC(12,4) NOT NULL,
	monograph_cap NUMERIC(12,4) NOT NULL,
	rank          NUMERIC(14,4) NOT NULL DEFAULT 0,
	PRIMARY KEY (author_id, discipline_id)
);

CREATE TABLE IF NOT EXISTS candidates (
	id            BIGINT PRIMARY KEY,
	author_id     BIGINT NOT NULL REFERENCES authors(id),
	discipline_id BIGINT NOT NULL REFERENCES disciplines(id),
	year          INTEGER NOT NULL,
	slot_cost     NUMERIC(12,4) NOT NULL,
	point_value   NUMERIC(14,4) NOT NULL,
	is_monograph  BOOLEAN NOT NULL DEFAULT FALSE,
	title         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_candidates_discipline_year ON candidates (discipline_id, year);

CREATE TABLE IF NOT EXISTS allocation_checkpoints (
	id            UUID PRIMARY KEY,
	run_id        UUID NOT NULL,
	discipline_id BIGINT NOT NULL,
	strategy      TEXT NOT NULL,
	candidate_ids BIGINT[] NOT NULL,
	points        NUMERIC(14,4) NOT NULL,
	generation    INTEGER NOT NULL DEFAULT 0,
	saved_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_latest ON allocation_checkpoints (discipline_id, strategy, saved_at DESC);
`

// EnsureSchema 创建缺失的表
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "创建表结构失败")
	}
	return nil
}

// scanFixed 解析 NUMERIC 列
func scanFixed(raw string, column string) (model.Fixed, error) {
	f, err := model.ParseFixed(raw)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeDataIntegrity, "数值列解析失败").WithField("column", column)
	}
	return f, nil
}
