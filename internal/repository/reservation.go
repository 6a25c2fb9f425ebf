package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleetgazer/internal/models"
)

// ReservationRepository 预订数据仓库
type ReservationRepository struct {
	q Querier
}

// NewReservationRepository 创建预订仓库
func NewReservationRepository(db *DB) *ReservationRepository {
	return &ReservationRepository{q: db.Pool}
}

func (r *ReservationRepository) withQuerier(q Querier) *ReservationRepository {
	return &ReservationRepository{q: q}
}

const reservationColumns = `id, car_id, start_time, end_time, pickup_branch, return_branch`

// Insert 插入预订记录
func (r *ReservationRepository) Insert(ctx context.Context, res *models.Reservation) error {
	query := `
		INSERT INTO reservations (car_id, start_time, end_time, pickup_branch, return_branch)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		res.CarID,
		res.StartTime,
		res.EndTime,
		res.PickupBranch,
		res.ReturnBranch,
	).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", classify(err))
	}
	return nil
}

// GetByID 获取预订
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res := &models.Reservation{}
	err := r.q.QueryRow(ctx, query, id).Scan(
		&res.ID, &res.CarID, &res.StartTime, &res.EndTime, &res.PickupBranch, &res.ReturnBranch,
	)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", classify(err))
	}
	return res, nil
}

// Delete 删除预订
func (r *ReservationRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Overlapping 与 [start, end] 闭区间重叠的全部预订
func (r *ReservationRepository) Overlapping(ctx context.Context, start, end time.Time) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + ` FROM reservations
		WHERE start_time <= $2 AND end_time >= $1
		ORDER BY start_time, id
	`
	return r.queryReservations(ctx, query, start, end)
}

// NextAfter 车辆在 t 之后最早开始的预订，没有则返回 (nil, nil)
func (r *ReservationRepository) NextAfter(ctx context.Context, carID int64, t time.Time) (*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + ` FROM reservations
		WHERE car_id = $1 AND start_time > $2
		ORDER BY start_time, id
		LIMIT 1
	`
	return r.queryOne(ctx, query, carID, t)
}

// PreviousBefore 车辆在 t 之前最晚结束的预订，没有则返回 (nil, nil)
func (r *ReservationRepository) PreviousBefore(ctx context.Context, carID int64, t time.Time) (*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + ` FROM reservations
		WHERE car_id = $1 AND end_time < $2
		ORDER BY end_time DESC, id
		LIMIT 1
	`
	return r.queryOne(ctx, query, carID, t)
}

// ActiveAt 车辆在 t 时刻生效的预订
func (r *ReservationRepository) ActiveAt(ctx context.Context, carID int64, t time.Time) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + ` FROM reservations
		WHERE car_id = $1 AND start_time <= $2 AND end_time >= $2
		ORDER BY start_time
	`
	return r.queryReservations(ctx, query, carID, t)
}

// Upcoming 尚未开始的预订，按开始时间升序
func (r *ReservationRepository) Upcoming(ctx context.Context) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + ` FROM reservations
		WHERE start_time > NOW()
		ORDER BY start_time, id
	`
	return r.queryReservations(ctx, query)
}

func (r *ReservationRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Reservation, error) {
	res := &models.Reservation{}
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&res.ID, &res.CarID, &res.StartTime, &res.EndTime, &res.PickupBranch, &res.ReturnBranch,
	)
	if err != nil {
		if classify(err) == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("query reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) queryReservations(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", classify(err))
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		var res models.Reservation
		err := rows.Scan(&res.ID, &res.CarID, &res.StartTime, &res.EndTime, &res.PickupBranch, &res.ReturnBranch)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}
