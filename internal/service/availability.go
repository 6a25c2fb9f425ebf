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

// Window 候选车搜索条件，门店已解析为 ID
type Window struct {
	StartTime    time.Time
	EndTime      time.Time
	PickupBranch int64
	ReturnBranch int64
}

// Candidate 候选车及其在 StartTime 时刻所在的门店
type Candidate struct {
	Car           models.Car
	CurrentBranch int64
}

// AvailabilityEngine 可用性引擎：找出在时间与空间上都能承接
// 请求的车辆。先区间排除，再推导每辆车届时所在门店，最后按
// 调拨时间校验与前后预订的衔接。
type AvailabilityEngine struct {
	oracle *DistanceOracle
	logger *zap.Logger
}

// NewAvailabilityEngine 创建可用性引擎
func NewAvailabilityEngine(oracle *DistanceOracle, logger *zap.Logger) *AvailabilityEngine {
	return &AvailabilityEngine{oracle: oracle, logger: logger}
}

// FirstAvailable 按选择顺序返回第一辆可接受的车，没有则返回 nil
func (e *AvailabilityEngine) FirstAvailable(ctx context.Context, s repository.Store, w Window) (*Candidate, error) {
	var found *Candidate
	err := e.enumerate(ctx, s, w, func(c Candidate) bool {
		found = &c
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// AllAvailable 按选择顺序返回全部可接受的车
func (e *AvailabilityEngine) AllAvailable(ctx context.Context, s repository.Store, w Window) ([]Candidate, error) {
	var all []Candidate
	err := e.enumerate(ctx, s, w, func(c Candidate) bool {
		all = append(all, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// enumerate 按选择顺序枚举可接受的候选车。yield 返回 false 时提前停止，
// 这样 FirstAvailable 不会为用不到的候选做分类查询。
func (e *AvailabilityEngine) enumerate(ctx context.Context, s repository.Store, w Window, yield func(Candidate) bool) error {
	cars, err := s.AvailableCars(ctx, w.StartTime, w.EndTime)
	if err != nil {
		return err
	}

	// 推导每辆候选车在 StartTime 时刻所在的门店，无已知位置的车辆跳过
	branchToCars := make(map[int64][]Candidate)
	for _, car := range cars {
		branchID, err := s.LatestBranchBefore(ctx, car.ID, w.StartTime)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return err
		}
		branchToCars[branchID] = append(branchToCars[branchID], Candidate{Car: car, CurrentBranch: branchID})
	}

	e.logger.Debug("classified candidates by branch",
		zap.Int("cars", len(cars)),
		zap.Int("branches", len(branchToCars)),
	)

	// 第一轮：已经在取车门店的车，只需校验与下一个预订的衔接。
	// 这类车的上一个预订必然把它还到了取车门店（当前门店就是
	// 由最后一条日志推导的），下界无需再查。
	for _, cand := range branchToCars[w.PickupBranch] {
		ok, err := e.passesUpperBound(ctx, s, cand, w)
		if err != nil {
			return err
		}
		if ok && !yield(cand) {
			return nil
		}
	}

	// 第二轮：其余门店的车，上下界都要过，按门店 ID 保证顺序确定
	branchIDs := make([]int64, 0, len(branchToCars))
	for branchID := range branchToCars {
		if branchID != w.PickupBranch {
			branchIDs = append(branchIDs, branchID)
		}
	}
	sort.Slice(branchIDs, func(i, j int) bool { return branchIDs[i] < branchIDs[j] })

	for _, branchID := range branchIDs {
		for _, cand := range branchToCars[branchID] {
			ok, err := e.passesUpperBound(ctx, s, cand, w)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			ok, err = e.passesLowerBound(ctx, s, cand, w)
			if err != nil {
				return err
			}
			if ok && !yield(cand) {
				return nil
			}
		}
	}

	return nil
}

// passesUpperBound 校验候选车还车后能否赶上它的下一个预订
func (e *AvailabilityEngine) passesUpperBound(ctx context.Context, s repository.Store, cand Candidate, w Window) (bool, error) {
	next, err := s.NextAfter(ctx, cand.Car.ID, w.EndTime)
	if err != nil {
		return false, err
	}
	if next == nil {
		return true, nil
	}
	if next.PickupBranch == w.ReturnBranch && next.StartTime.After(w.EndTime) {
		return true, nil
	}

	transfer, known, err := e.oracle.TransferTime(ctx, w.ReturnBranch, next.PickupBranch)
	if err != nil {
		return false, err
	}
	if known && !w.EndTime.Add(transfer).After(next.StartTime) {
		return true, nil
	}
	return false, nil
}

// passesLowerBound 校验候选车能否在开始时间前从当前门店赶到取车门店
func (e *AvailabilityEngine) passesLowerBound(ctx context.Context, s repository.Store, cand Candidate, w Window) (bool, error) {
	prev, err := s.PreviousBefore(ctx, cand.Car.ID, w.StartTime)
	if err != nil {
		return false, err
	}
	if prev == nil {
		// 没有历史预订也必须存在从当前门店到取车门店的路线
		_, known, err := e.oracle.TransferTime(ctx, cand.CurrentBranch, w.PickupBranch)
		if err != nil {
			return false, err
		}
		return known, nil
	}

	if prev.ReturnBranch == w.PickupBranch && prev.EndTime.Before(w.StartTime) {
		return true, nil
	}

	transfer, known, err := e.oracle.TransferTime(ctx, prev.ReturnBranch, w.PickupBranch)
	if err != nil {
		return false, err
	}
	if known && !w.StartTime.Add(-transfer).Before(prev.EndTime) {
		return true, nil
	}
	return false, nil
}

// Nearest 批量调度的就近规则：取当前门店距取车门店最近的候选车。
// 任一候选的距离未知时返回 ErrNoRoute。
func (e *AvailabilityEngine) Nearest(ctx context.Context, pickupBranch int64, cands []Candidate) (*Candidate, error) {
	var nearest *Candidate
	nearestKm := -1

	for i := range cands {
		km, known, err := e.oracle.DistanceKm(ctx, cands[i].CurrentBranch, pickupBranch)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, ErrNoRoute
		}
		if nearest == nil || km < nearestKm {
			nearest = &cands[i]
			nearestKm = km
		}
	}
	return nearest, nil
}
