package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/repository"
)

// ReserveRequest 预订请求，门店在边界处以城市标识
type ReserveRequest struct {
	StartTime       time.Time `json:"start_time" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required"`
	PickupCity      string    `json:"pickup_city" binding:"required"`
	ReturnCity      string    `json:"return_city" binding:"required"`
}

// EndTime 预订结束时间
func (r ReserveRequest) EndTime() time.Time {
	return r.StartTime.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// Dispatcher 调度器：在 SERIALIZABLE 事务内选车并落库。
// 并发预订同一辆车时只有一个事务能提交，冲突方按重试预算
// 重跑整个事务，用尽后以 ErrConflict 上抛。
type Dispatcher struct {
	store      repository.TxStore
	engine     *AvailabilityEngine
	oracle     *DistanceOracle
	logger     *zap.Logger
	maxRetries int
	now        func() time.Time
}

// NewDispatcher 创建调度器
func NewDispatcher(store repository.TxStore, engine *AvailabilityEngine, oracle *DistanceOracle, logger *zap.Logger, maxRetries int) *Dispatcher {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Dispatcher{
		store:      store,
		engine:     engine,
		oracle:     oracle,
		logger:     logger,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// ReserveOne 处理单个预订请求：校验、选第一辆可接受的车、落库
func (d *Dispatcher) ReserveOne(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	var reservation *models.Reservation

	err := d.withRetry(ctx, func() error {
		return d.store.InTx(ctx, func(s repository.Store) error {
			w, err := d.validate(ctx, s, req)
			if err != nil {
				return err
			}

			cand, err := d.engine.FirstAvailable(ctx, s, *w)
			if err != nil {
				return err
			}
			if cand == nil {
				return ErrNoCarAvailable
			}

			res := &models.Reservation{
				CarID:        cand.Car.ID,
				StartTime:    w.StartTime,
				EndTime:      w.EndTime,
				PickupBranch: w.PickupBranch,
				ReturnBranch: w.ReturnBranch,
			}
			if err := s.CreateReservation(ctx, res); err != nil {
				return err
			}
			reservation = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("reservation created",
		zap.Int64("reservation_id", reservation.ID),
		zap.Int64("car_id", reservation.CarID),
		zap.Time("start_time", reservation.StartTime),
		zap.Time("end_time", reservation.EndTime),
	)
	return reservation, nil
}

// ReserveBatch 原子处理一组预订请求：按开始时间升序逐个选车，
// 任何一个请求满足不了就整体回滚并返回空结果。
func (d *Dispatcher) ReserveBatch(ctx context.Context, reqs []ReserveRequest) ([]models.Reservation, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	// 最早的预订最先约束车队的地理分布，先处理决策更稳定
	sorted := make([]ReserveRequest, len(reqs))
	copy(sorted, reqs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	var reservations []models.Reservation

	err := d.withRetry(ctx, func() error {
		reservations = nil
		return d.store.InTx(ctx, func(s repository.Store) error {
			for _, req := range sorted {
				w, err := d.validate(ctx, s, req)
				if err != nil {
					return err
				}

				cands, err := d.engine.AllAvailable(ctx, s, *w)
				if err != nil {
					return err
				}
				if len(cands) == 0 {
					return ErrNoCarAvailable
				}

				cand, err := d.engine.Nearest(ctx, w.PickupBranch, cands)
				if err != nil {
					return err
				}

				res := &models.Reservation{
					CarID:        cand.Car.ID,
					StartTime:    w.StartTime,
					EndTime:      w.EndTime,
					PickupBranch: w.PickupBranch,
					ReturnBranch: w.ReturnBranch,
				}
				if err := s.CreateReservation(ctx, res); err != nil {
					return err
				}
				reservations = append(reservations, *res)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("batch reserved", zap.Int("count", len(reservations)))
	return reservations, nil
}

// UpcomingReservations 尚未开始的预订，按开始时间升序
func (d *Dispatcher) UpcomingReservations(ctx context.Context) ([]models.Reservation, error) {
	return d.store.Upcoming(ctx)
}

// CurrentBranchOf 车辆在 at 时刻所在的门店，无已知位置返回 ErrNotFound
func (d *Dispatcher) CurrentBranchOf(ctx context.Context, carID int64, at time.Time) (int64, error) {
	return d.store.LatestBranchBefore(ctx, carID, at)
}

// validate 解析城市并校验时间与取还车门店间的调拨可行性。
// 全部失败都发生在任何写入之前。
func (d *Dispatcher) validate(ctx context.Context, s repository.Store, req ReserveRequest) (*Window, error) {
	pickup, err := s.BranchByCity(ctx, req.PickupCity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownBranch
		}
		return nil, err
	}
	ret, err := s.BranchByCity(ctx, req.ReturnCity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownBranch
		}
		return nil, err
	}

	endTime := req.EndTime()
	if !req.StartTime.After(d.now()) || !endTime.After(req.StartTime) {
		return nil, ErrInvalidTime
	}

	transfer, known, err := d.oracle.TransferTime(ctx, pickup.ID, ret.ID)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, ErrNoRoute
	}
	if transfer > endTime.Sub(req.StartTime) {
		return nil, ErrInsufficientDuration
	}

	return &Window{
		StartTime:    req.StartTime,
		EndTime:      endTime,
		PickupBranch: pickup.ID,
		ReturnBranch: ret.ID,
	}, nil
}

// withRetry 对串行化/唯一冲突重跑整个事务，静默丢请求是被禁止的：
// 预算用尽后以 ErrConflict 上抛，截止时间到则以 ErrTimeout 上抛。
func (d *Dispatcher) withRetry(ctx context.Context, attempt func() error) error {
	var err error
	for i := 0; i < d.maxRetries; i++ {
		err = attempt()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ErrTimeout
		}
		if !errors.Is(err, repository.ErrSerialization) && !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		d.logger.Warn("reservation transaction conflicted, retrying",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
	}
	return ErrConflict
}
