// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/paiban/pharmashift/pkg/model"
)

// RunStore 排班结果存储。一次运行的班次、冲突和员工统计作为整体写入。
type RunStore interface {
	SaveRun(ctx context.Context, run *model.RunResult) error
	PriorShifts(ctx context.Context, siteID uuid.UUID, horizon model.Horizon) ([]model.Shift, error)
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}

// batchSize 单条 INSERT 语句的最大行数
const batchSize = 500
