package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	boston  = int64(1)
	newYork = int64(2)
	chicago = int64(3)
)

// newFixture 三城车队：Boston-NewYork 300km，Boston-Chicago 1000km，
// NewYork-Chicago 800km，车速 80km/h
func newFixture() (*mockStore, *mockDistances, *AvailabilityEngine) {
	st := newMockStore()
	st.addBranch(boston, "Boston")
	st.addBranch(newYork, "New_York")
	st.addBranch(chicago, "Chicago")

	d := newMockDistances()
	d.set(boston, newYork, 300)
	d.set(boston, chicago, 1000)
	d.set(newYork, chicago, 800)

	oracle := NewDistanceOracle(d, 80)
	engine := NewAvailabilityEngine(oracle, zap.NewNop())
	return st, d, engine
}

func TestFirstAvailableSameBranch(t *testing.T) {
	st, _, engine := newFixture()
	now := time.Now()

	car := st.addCar(10, "C123456789")
	st.addLog(car.ID, boston, now.Add(-24*time.Hour))

	w := Window{
		StartTime:    now.Add(10 * time.Minute),
		EndTime:      now.Add(410 * time.Minute),
		PickupBranch: boston,
		ReturnBranch: newYork,
	}

	cand, err := engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.Equal(t, car.ID, cand.Car.ID)
	assert.Equal(t, boston, cand.CurrentBranch)
}

func TestOverlappingReservationExcludesCar(t *testing.T) {
	st, _, engine := newFixture()
	now := time.Now()

	car := st.addCar(10, "C1")
	st.addLog(car.ID, boston, now.Add(-24*time.Hour))
	st.addReservation(car.ID, now.Add(1*time.Hour), now.Add(5*time.Hour), boston, boston)

	w := Window{
		StartTime:    now.Add(2 * time.Hour),
		EndTime:      now.Add(3 * time.Hour),
		PickupBranch: boston,
		ReturnBranch: boston,
	}

	cand, err := engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestCarWithoutKnownLocationDropped(t *testing.T) {
	st, _, engine := newFixture()
	now := time.Now()

	st.addCar(10, "C1") // 没有任何位置日志

	w := Window{
		StartTime:    now.Add(1 * time.Hour),
		EndTime:      now.Add(2 * time.Hour),
		PickupBranch: boston,
		ReturnBranch: boston,
	}

	cand, err := engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestLowerBoundTransferFeasible(t *testing.T) {
	// 车辆的上一个预订在 T 时刻还到 Boston，新请求 T+4h 在 New_York
	// 取车：调拨 300km/80 = 3.75h，来得及
	st, _, engine := newFixture()
	T := time.Now().Add(24 * time.Hour)

	car := st.addCar(10, "C1")
	st.addLog(car.ID, newYork, T.Add(-48*time.Hour))
	st.addReservation(car.ID, T.Add(-4*time.Hour), T, newYork, boston)

	w := Window{
		StartTime:    T.Add(4 * time.Hour),
		EndTime:      T.Add(6 * time.Hour),
		PickupBranch: newYork,
		ReturnBranch: boston,
	}

	cand, err := engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.Equal(t, car.ID, cand.Car.ID)
	assert.Equal(t, boston, cand.CurrentBranch)
}

func TestLowerBoundTransferInfeasible(t *testing.T) {
	// 同上，但新请求开始于 T+3h：3h < 3.75h，赶不到
	st, _, engine := newFixture()
	T := time.Now().Add(24 * time.Hour)

	car := st.addCar(10, "C1")
	st.addLog(car.ID, newYork, T.Add(-48*time.Hour))
	st.addReservation(car.ID, T.Add(-4*time.Hour), T, newYork, boston)

	w := Window{
		StartTime:    T.Add(3 * time.Hour),
		EndTime:      T.Add(5 * time.Hour),
		PickupBranch: newYork,
		ReturnBranch: boston,
	}

	cand, err := engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	assert.Nil(t, cand)
}

func TestUpperBoundNextReservation(t *testing.T) {
	st, _, engine := newFixture()
	now := time.Now()

	car := st.addCar(10, "C1")
	st.addLog(car.ID, boston, now.Add(-24*time.Hour))

	w := Window{
		StartTime:    now.Add(1 * time.Hour),
		EndTime:      now.Add(2 * time.Hour),
		PickupBranch: boston,
		ReturnBranch: boston,
	}

	// 下一个预订 1h 后从 Chicago 取车：还车后 12.5h 的调拨赶不上
	next := st.addReservation(car.ID, now.Add(3*time.Hour), now.Add(5*time.Hour), chicago, chicago)

	cand, err := engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	assert.Nil(t, cand)

	// 改成从还车门店取车且晚于还车时间，则无需调拨
	require.NoError(t, st.CancelReservation(context.Background(), next.ID))
	st.addReservation(car.ID, now.Add(3*time.Hour), now.Add(5*time.Hour), boston, boston)

	cand, err = engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.Equal(t, car.ID, cand.Car.ID)
}

func TestSameBranchYieldedBeforeOtherBranches(t *testing.T) {
	st, _, engine := newFixture()
	now := time.Now()

	// ID 较小的车在别的门店，取车门店的车必须排在前面
	other := st.addCar(1, "C1")
	st.addLog(other.ID, boston, now.Add(-24*time.Hour))
	local := st.addCar(2, "C2")
	st.addLog(local.ID, newYork, now.Add(-24*time.Hour))

	w := Window{
		StartTime:    now.Add(5 * time.Hour),
		EndTime:      now.Add(12 * time.Hour),
		PickupBranch: newYork,
		ReturnBranch: boston,
	}

	all, err := engine.AllAvailable(context.Background(), st, w)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, local.ID, all[0].Car.ID)
	assert.Equal(t, other.ID, all[1].Car.ID)

	first, err := engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, local.ID, first.Car.ID)
}

func TestOtherBranchRequiresRoute(t *testing.T) {
	st, d, engine := newFixture()
	now := time.Now()

	// 第 4 个门店与取车门店之间没有任何距离记录
	isolated := int64(4)
	st.addBranch(isolated, "Denver")
	car := st.addCar(10, "C1")
	st.addLog(car.ID, isolated, now.Add(-24*time.Hour))

	w := Window{
		StartTime:    now.Add(24 * time.Hour),
		EndTime:      now.Add(30 * time.Hour),
		PickupBranch: boston,
		ReturnBranch: boston,
	}

	cand, err := engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	assert.Nil(t, cand)

	// 补上路线后可用
	d.set(isolated, boston, 160)
	cand, err = engine.FirstAvailable(context.Background(), st, w)
	require.NoError(t, err)
	require.NotNil(t, cand)
	assert.Equal(t, car.ID, cand.Car.ID)
}

func TestNearestPrefersClosestBranch(t *testing.T) {
	_, _, engine := newFixture()

	cands := []Candidate{
		{CurrentBranch: boston},
		{CurrentBranch: newYork},
	}
	cands[0].Car.ID = 1
	cands[1].Car.ID = 2

	nearest, err := engine.Nearest(context.Background(), newYork, cands)
	require.NoError(t, err)
	require.NotNil(t, nearest)
	assert.Equal(t, int64(2), nearest.Car.ID) // 距离 0 优先于 300

	// 任一候选的距离未知时整个选择失败
	cands = append(cands, Candidate{CurrentBranch: int64(9)})
	_, err = engine.Nearest(context.Background(), newYork, cands)
	assert.ErrorIs(t, err, ErrNoRoute)
}
