package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleetgazer/internal/models"
)

// CarRepository 车辆数据仓库
type CarRepository struct {
	q Querier
}

// NewCarRepository 创建车辆仓库
func NewCarRepository(db *DB) *CarRepository {
	return &CarRepository{q: db.Pool}
}

func (r *CarRepository) withQuerier(q Querier) *CarRepository {
	return &CarRepository{q: q}
}

// Create 创建车辆
func (r *CarRepository) Create(ctx context.Context, car *models.Car) error {
	if !models.CarNumberPattern.MatchString(car.CarNumber) {
		return fmt.Errorf("car_number %q must be in the format C<number>", car.CarNumber)
	}

	query := `INSERT INTO cars (car_number, make, model) VALUES ($1, $2, $3) RETURNING id`
	if err := r.q.QueryRow(ctx, query, car.CarNumber, car.Make, car.Model).Scan(&car.ID); err != nil {
		return fmt.Errorf("insert car: %w", classify(err))
	}
	return nil
}

// GetByCarNumber 通过车牌编号获取车辆
func (r *CarRepository) GetByCarNumber(ctx context.Context, carNumber string) (*models.Car, error) {
	query := `SELECT id, car_number, make, model FROM cars WHERE car_number = $1`
	car := &models.Car{}
	err := r.q.QueryRow(ctx, query, carNumber).Scan(&car.ID, &car.CarNumber, &car.Make, &car.Model)
	if err != nil {
		return nil, fmt.Errorf("get car by car_number: %w", classify(err))
	}
	return car, nil
}

// GetByID 通过 ID 获取车辆
func (r *CarRepository) GetByID(ctx context.Context, id int64) (*models.Car, error) {
	query := `SELECT id, car_number, make, model FROM cars WHERE id = $1`
	car := &models.Car{}
	err := r.q.QueryRow(ctx, query, id).Scan(&car.ID, &car.CarNumber, &car.Make, &car.Model)
	if err != nil {
		return nil, fmt.Errorf("get car by id: %w", classify(err))
	}
	return car, nil
}

// List 获取所有车辆
func (r *CarRepository) List(ctx context.Context) ([]models.Car, error) {
	query := `SELECT id, car_number, make, model FROM cars ORDER BY id`
	return r.queryCars(ctx, query)
}

// Update 更新车辆品牌与型号
func (r *CarRepository) Update(ctx context.Context, car *models.Car) error {
	query := `UPDATE cars SET make = $1, model = $2 WHERE car_number = $3 RETURNING id`
	if err := r.q.QueryRow(ctx, query, car.Make, car.Model, car.CarNumber).Scan(&car.ID); err != nil {
		return fmt.Errorf("update car: %w", classify(err))
	}
	return nil
}

// Delete 通过车牌编号删除车辆，级联删除其日志与预订
func (r *CarRepository) Delete(ctx context.Context, carNumber string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM cars WHERE car_number = $1`, carNumber)
	if err != nil {
		return fmt.Errorf("delete car: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AvailableBetween 区间排除：在 [start, end] 内没有重叠预订的车辆
// 闭区间重叠：r.start_time <= end AND r.end_time >= start
func (r *CarRepository) AvailableBetween(ctx context.Context, start, end time.Time) ([]models.Car, error) {
	query := `
		SELECT c.id, c.car_number, c.make, c.model
		FROM cars c
		WHERE NOT EXISTS (
			SELECT 1 FROM reservations r
			WHERE r.car_id = c.id AND r.start_time <= $2 AND r.end_time >= $1
		)
		ORDER BY c.id
	`
	return r.queryCars(ctx, query, start, end)
}

func (r *CarRepository) queryCars(ctx context.Context, query string, args ...any) ([]models.Car, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cars: %w", classify(err))
	}
	defer rows.Close()

	var cars []models.Car
	for rows.Next() {
		var car models.Car
		if err := rows.Scan(&car.ID, &car.CarNumber, &car.Make, &car.Model); err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, car)
	}
	return cars, rows.Err()
}
