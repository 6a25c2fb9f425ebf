package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleetgazer/internal/models"
)

// MovementLogRepository 车辆位置日志仓库。日志只追加：
// 车辆入库时写一条初始记录，每次成功预订写取车/还车两条。
type MovementLogRepository struct {
	q Querier
}

// NewMovementLogRepository 创建位置日志仓库
func NewMovementLogRepository(db *DB) *MovementLogRepository {
	return &MovementLogRepository{q: db.Pool}
}

func (r *MovementLogRepository) withQuerier(q Querier) *MovementLogRepository {
	return &MovementLogRepository{q: q}
}

// Append 追加日志条目。(car, branch, timestamp) 重复时返回 ErrDuplicate。
func (r *MovementLogRepository) Append(ctx context.Context, carID, branchID int64, timestamp time.Time) error {
	query := `INSERT INTO car_branch_log (car_id, branch_id, timestamp) VALUES ($1, $2, $3)`
	if _, err := r.q.Exec(ctx, query, carID, branchID, timestamp); err != nil {
		return fmt.Errorf("append car branch log: %w", classify(err))
	}
	return nil
}

// LatestBranchBefore 车辆在 t 之前（严格小于）最后一次记录的门店。
// t 时刻恰好写入的条目表示移动发生在 t，不算已经在店。
// 没有任何记录时返回 ErrNotFound。
func (r *MovementLogRepository) LatestBranchBefore(ctx context.Context, carID int64, t time.Time) (int64, error) {
	query := `
		SELECT branch_id FROM car_branch_log
		WHERE car_id = $1 AND timestamp < $2
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var branchID int64
	if err := r.q.QueryRow(ctx, query, carID, t).Scan(&branchID); err != nil {
		return 0, fmt.Errorf("latest branch before: %w", classify(err))
	}
	return branchID, nil
}

// ListByCar 车辆的全部日志，按时间升序
func (r *MovementLogRepository) ListByCar(ctx context.Context, carID int64) ([]models.CarBranchLog, error) {
	query := `
		SELECT id, car_id, branch_id, timestamp FROM car_branch_log
		WHERE car_id = $1
		ORDER BY timestamp
	`
	rows, err := r.q.Query(ctx, query, carID)
	if err != nil {
		return nil, fmt.Errorf("list car branch log: %w", err)
	}
	defer rows.Close()

	var entries []models.CarBranchLog
	for rows.Next() {
		var e models.CarBranchLog
		if err := rows.Scan(&e.ID, &e.CarID, &e.BranchID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan car branch log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete 删除指定条目，仅用于预订取消时的日志清理
func (r *MovementLogRepository) Delete(ctx context.Context, carID, branchID int64, timestamp time.Time) error {
	query := `DELETE FROM car_branch_log WHERE car_id = $1 AND branch_id = $2 AND timestamp = $3`
	tag, err := r.q.Exec(ctx, query, carID, branchID, timestamp)
	if err != nil {
		return fmt.Errorf("delete car branch log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
