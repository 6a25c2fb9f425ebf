package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate 唯一约束冲突
	ErrDuplicate = errors.New("duplicate record")

	// ErrSerialization 串行化冲突，事务需要重试
	ErrSerialization = errors.New("serialization conflict")
)

// classify 将 pgx 错误映射为仓库层哨兵错误
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrDuplicate
		case "40001": // serialization_failure
			return ErrSerialization
		}
	}
	return err
}
