package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/repository"
	"github.com/langchou/fleetgazer/internal/state"
	"github.com/langchou/fleetgazer/pkg/ws"
)

// Board 调度看板：周期性地从预订表推导每辆车的租赁状态，
// 驱动状态机并把变化推送给 WebSocket 客户端。只读，不参与调度决策。
type Board struct {
	logger   *zap.Logger
	store    *repository.FleetStore
	hub      *ws.Hub
	machines *state.Manager
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBoard 创建调度看板
func NewBoard(logger *zap.Logger, store *repository.FleetStore, hub *ws.Hub, interval time.Duration) *Board {
	b := &Board{
		logger:   logger,
		store:    store,
		hub:      hub,
		interval: interval,
	}
	b.machines = state.NewManager(func(carID int64, from, to string) {
		logger.Info("car state changed",
			zap.Int64("car_id", carID),
			zap.String("from", from),
			zap.String("to", to),
		)
		if machine, ok := b.machines.Get(carID); ok {
			// 回调发生在 Trigger 持有状态机锁期间，GetState 要等锁释放后再读
			go func() {
				hub.BroadcastMessage(ws.MsgTypeCarStateUpdate, machine.GetState())
			}()
		}
	})
	return b
}

// Start 启动看板刷新循环
func (b *Board) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		b.refresh(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				b.refresh(loopCtx)
			}
		}
	}()

	b.logger.Info("dispatch board started", zap.Duration("interval", b.interval))
}

// Stop 停止看板
func (b *Board) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		b.wg.Wait()
	}
}

// GetAllStates 获取所有车辆的看板状态
func (b *Board) GetAllStates() map[int64]*state.CarState {
	return b.machines.GetAllStates()
}

// NotifyReservationCreated 新预订落库后推送并立即刷新
func (b *Board) NotifyReservationCreated(ctx context.Context, res *models.Reservation) {
	b.hub.BroadcastMessage(ws.MsgTypeReservationCreated, res)
	b.refresh(ctx)
}

// NotifyReservationCancelled 预订取消后推送并立即刷新
func (b *Board) NotifyReservationCancelled(ctx context.Context, id int64) {
	b.hub.BroadcastMessage(ws.MsgTypeReservationCancelled, map[string]int64{"reservation_id": id})
	b.refresh(ctx)
}

// refresh 从预订表推导每辆车的状态并驱动状态机
func (b *Board) refresh(ctx context.Context) {
	now := time.Now()

	cars, err := b.store.Cars.List(ctx)
	if err != nil {
		b.logger.Error("Failed to list cars for board", zap.Error(err))
		return
	}

	for _, car := range cars {
		active, err := b.store.Reservations.ActiveAt(ctx, car.ID, now)
		if err != nil {
			b.logger.Error("Failed to load active reservations", zap.Int64("car_id", car.ID), zap.Error(err))
			continue
		}
		next, err := b.store.Reservations.NextAfter(ctx, car.ID, now)
		if err != nil {
			b.logger.Error("Failed to load next reservation", zap.Int64("car_id", car.ID), zap.Error(err))
			continue
		}

		desired := state.StateIdle
		if len(active) > 0 {
			desired = state.StateOnRent
		} else if next != nil {
			desired = state.StateReserved
		}

		machine := b.machines.GetOrCreate(car.ID, desired)
		machine.UpdateState(func(s *state.CarState) {
			s.CarNumber = car.CarNumber
			if next != nil {
				pickup := next.StartTime
				s.NextPickup = &pickup
			} else {
				s.NextPickup = nil
			}
		})

		branchID, err := b.store.Movements.LatestBranchBefore(ctx, car.ID, now)
		if err == nil {
			machine.UpdateState(func(s *state.CarState) { s.BranchID = branchID })
		} else if !errors.Is(err, repository.ErrNotFound) {
			b.logger.Error("Failed to locate car", zap.Int64("car_id", car.ID), zap.Error(err))
		}

		b.advance(machine, desired)
	}
}

// advance 把状态机推进到目标状态
func (b *Board) advance(machine *state.Machine, desired string) {
	current := machine.CurrentState()
	if current == desired {
		return
	}

	var event string
	switch desired {
	case state.StateOnRent:
		event = state.EventPickup
	case state.StateReserved:
		event = state.EventAssign
	case state.StateIdle:
		if current == state.StateOnRent {
			event = state.EventDropoff
		} else {
			event = state.EventRelease
		}
	}

	if err := machine.Trigger(event); err != nil {
		b.logger.Warn("Failed to advance car state",
			zap.String("event", event),
			zap.String("from", current),
			zap.String("to", desired),
			zap.Error(err),
		)
	}
}
