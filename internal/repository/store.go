package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/fleetgazer/internal/models"
)

// Store 调度核心依赖的存储面。预订、位置日志与车辆的读写
// 都要经过它，这样同一事务里的一组查询才能绑定同一个 pgx.Tx。
type Store interface {
	// AvailableCars 在 [start, end] 内没有重叠预订的车辆
	AvailableCars(ctx context.Context, start, end time.Time) ([]models.Car, error)
	// LatestBranchBefore 车辆在 t 之前最后记录的门店，无记录返回 ErrNotFound
	LatestBranchBefore(ctx context.Context, carID int64, t time.Time) (int64, error)
	// NextAfter 车辆在 t 之后最早开始的预订，没有返回 (nil, nil)
	NextAfter(ctx context.Context, carID int64, t time.Time) (*models.Reservation, error)
	// PreviousBefore 车辆在 t 之前最晚结束的预订，没有返回 (nil, nil)
	PreviousBefore(ctx context.Context, carID int64, t time.Time) (*models.Reservation, error)
	// ActiveAt 车辆在 t 时刻生效的预订
	ActiveAt(ctx context.Context, carID int64, t time.Time) ([]models.Reservation, error)
	// Upcoming 尚未开始的预订，按开始时间升序
	Upcoming(ctx context.Context) ([]models.Reservation, error)
	// CreateReservation 插入预订并写入取车/还车两条位置日志
	CreateReservation(ctx context.Context, res *models.Reservation) error
	// CancelReservation 删除预订并清理其两条位置日志
	CancelReservation(ctx context.Context, id int64) error
	// BranchByCity 通过城市查找门店
	BranchByCity(ctx context.Context, city string) (*models.Branch, error)
	// ProvisionCar 创建车辆并写入它的初始位置日志
	ProvisionCar(ctx context.Context, car *models.Car, branchID int64, at time.Time) error
}

// TxStore 带串行化事务的存储面
type TxStore interface {
	Store
	// InTx 在 SERIALIZABLE 事务中执行 fn，fn 收到绑定该事务的 Store。
	// 串行化冲突以 ErrSerialization 返回，是否重试由调用方决定。
	InTx(ctx context.Context, fn func(Store) error) error
}

// FleetStore 各仓库的聚合，实现 TxStore
type FleetStore struct {
	db *DB

	Branches     *BranchRepository
	Cars         *CarRepository
	Distances    *DistanceRepository
	Movements    *MovementLogRepository
	Reservations *ReservationRepository
}

// NewFleetStore 创建聚合仓库
func NewFleetStore(db *DB, distanceCacheTTL time.Duration) *FleetStore {
	return &FleetStore{
		db:           db,
		Branches:     NewBranchRepository(db),
		Cars:         NewCarRepository(db),
		Distances:    NewDistanceRepository(db, distanceCacheTTL),
		Movements:    NewMovementLogRepository(db),
		Reservations: NewReservationRepository(db),
	}
}

// InTx 在 SERIALIZABLE 事务中执行 fn。距离矩阵只读且带缓存，
// 不参与事务绑定。
func (s *FleetStore) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	bound := &FleetStore{
		db:           s.db,
		Branches:     s.Branches.withQuerier(tx),
		Cars:         s.Cars.withQuerier(tx),
		Distances:    s.Distances,
		Movements:    s.Movements.withQuerier(tx),
		Reservations: s.Reservations.withQuerier(tx),
	}

	if err := fn(bound); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", classify(err))
	}
	return nil
}

func (s *FleetStore) AvailableCars(ctx context.Context, start, end time.Time) ([]models.Car, error) {
	return s.Cars.AvailableBetween(ctx, start, end)
}

func (s *FleetStore) LatestBranchBefore(ctx context.Context, carID int64, t time.Time) (int64, error) {
	return s.Movements.LatestBranchBefore(ctx, carID, t)
}

func (s *FleetStore) NextAfter(ctx context.Context, carID int64, t time.Time) (*models.Reservation, error) {
	return s.Reservations.NextAfter(ctx, carID, t)
}

func (s *FleetStore) PreviousBefore(ctx context.Context, carID int64, t time.Time) (*models.Reservation, error) {
	return s.Reservations.PreviousBefore(ctx, carID, t)
}

func (s *FleetStore) ActiveAt(ctx context.Context, carID int64, t time.Time) ([]models.Reservation, error) {
	return s.Reservations.ActiveAt(ctx, carID, t)
}

func (s *FleetStore) Upcoming(ctx context.Context) ([]models.Reservation, error) {
	return s.Reservations.Upcoming(ctx)
}

func (s *FleetStore) BranchByCity(ctx context.Context, city string) (*models.Branch, error) {
	return s.Branches.GetByCity(ctx, city)
}

// CreateReservation 插入预订并追加取车/还车日志。
// 必须在 InTx 内调用，三次写入才是原子的。
func (s *FleetStore) CreateReservation(ctx context.Context, res *models.Reservation) error {
	if err := s.Reservations.Insert(ctx, res); err != nil {
		return err
	}
	if err := s.Movements.Append(ctx, res.CarID, res.PickupBranch, res.StartTime); err != nil {
		return err
	}
	return s.Movements.Append(ctx, res.CarID, res.ReturnBranch, res.EndTime)
}

// ProvisionCar 创建车辆并写入初始位置日志。必须在 InTx 内调用。
func (s *FleetStore) ProvisionCar(ctx context.Context, car *models.Car, branchID int64, at time.Time) error {
	if err := s.Cars.Create(ctx, car); err != nil {
		return err
	}
	return s.Movements.Append(ctx, car.ID, branchID, at)
}

// CancelReservation 删除预订并清理它写下的两条位置日志，
// 否则位置推导会失真。必须在 InTx 内调用。
func (s *FleetStore) CancelReservation(ctx context.Context, id int64) error {
	res, err := s.Reservations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Reservations.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.Movements.Delete(ctx, res.CarID, res.PickupBranch, res.StartTime); err != nil {
		return err
	}
	return s.Movements.Delete(ctx, res.CarID, res.ReturnBranch, res.EndTime)
}
