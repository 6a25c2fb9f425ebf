package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier pgxpool.Pool 与 pgx.Tx 的公共查询接口
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateBranches,
		migrationCreateCars,
		migrationCreateDistances,
		migrationCreateCarBranchLog,
		migrationCreateReservations,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateBranches = `
CREATE TABLE IF NOT EXISTS branches (
    id BIGSERIAL PRIMARY KEY,
    city VARCHAR(100) NOT NULL UNIQUE
);
`

const migrationCreateCars = `
CREATE TABLE IF NOT EXISTS cars (
    id BIGSERIAL PRIMARY KEY,
    car_number VARCHAR(254) NOT NULL UNIQUE CHECK (car_number ~ '^C[0-9]+$'),
    make VARCHAR(100) NOT NULL,
    model VARCHAR(100) NOT NULL
);
`

const migrationCreateDistances = `
CREATE TABLE IF NOT EXISTS distances (
    id BIGSERIAL PRIMARY KEY,
    from_branch BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
    to_branch BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
    distance_km INT NOT NULL CHECK (distance_km >= 0),
    UNIQUE (from_branch, to_branch),
    CHECK (from_branch <> to_branch)
);
`

const migrationCreateCarBranchLog = `
CREATE TABLE IF NOT EXISTS car_branch_log (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES cars(id) ON DELETE CASCADE,
    branch_id BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
    timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (car_id, branch_id, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_car_branch_log_car_ts ON car_branch_log(car_id, timestamp DESC);
`

const migrationCreateReservations = `
CREATE TABLE IF NOT EXISTS reservations (
    id BIGSERIAL PRIMARY KEY,
    car_id BIGINT NOT NULL REFERENCES cars(id) ON DELETE CASCADE,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE NOT NULL,
    pickup_branch BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
    return_branch BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
    UNIQUE (car_id, start_time, end_time),
    CHECK (start_time < end_time)
);
CREATE INDEX IF NOT EXISTS idx_reservations_car_start ON reservations(car_id, start_time);
CREATE INDEX IF NOT EXISTS idx_reservations_interval ON reservations(start_time, end_time);
`
