package service

import (
	"context"
	"sync"
	"time"

	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/repository"
)

// mockStore 内存版 TxStore，用于不依赖数据库的引擎与调度器测试。
// InTx 用互斥锁串行执行并在 fn 出错时回滚快照，近似串行化语义。
type mockStore struct {
	mu sync.Mutex

	branches     map[string]models.Branch
	cars         []models.Car
	logs         []models.CarBranchLog
	reservations []models.Reservation

	nextID int64

	// failSerialization 前 N 次 InTx 直接返回串行化冲突
	failSerialization int
	txCount           int
}

func newMockStore() *mockStore {
	return &mockStore{branches: make(map[string]models.Branch)}
}

func (m *mockStore) addBranch(id int64, city string) models.Branch {
	b := models.Branch{ID: id, City: city}
	m.branches[city] = b
	return b
}

func (m *mockStore) addCar(id int64, carNumber string) models.Car {
	c := models.Car{ID: id, CarNumber: carNumber, Make: "Toyota", Model: "Corolla"}
	m.cars = append(m.cars, c)
	return c
}

func (m *mockStore) addLog(carID, branchID int64, ts time.Time) {
	m.nextID++
	m.logs = append(m.logs, models.CarBranchLog{ID: m.nextID, CarID: carID, BranchID: branchID, Timestamp: ts})
}

func (m *mockStore) addReservation(carID int64, start, end time.Time, pickup, ret int64) models.Reservation {
	m.nextID++
	res := models.Reservation{ID: m.nextID, CarID: carID, StartTime: start, EndTime: end, PickupBranch: pickup, ReturnBranch: ret}
	m.reservations = append(m.reservations, res)
	m.addLog(carID, pickup, start)
	m.addLog(carID, ret, end)
	return res
}

func (m *mockStore) AvailableCars(_ context.Context, start, end time.Time) ([]models.Car, error) {
	var out []models.Car
	for _, car := range m.cars {
		blocked := false
		for i := range m.reservations {
			if m.reservations[i].CarID == car.ID && m.reservations[i].Overlaps(start, end) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, car)
		}
	}
	return out, nil
}

func (m *mockStore) LatestBranchBefore(_ context.Context, carID int64, t time.Time) (int64, error) {
	var best *models.CarBranchLog
	for i := range m.logs {
		e := &m.logs[i]
		if e.CarID != carID || !e.Timestamp.Before(t) {
			continue
		}
		if best == nil || e.Timestamp.After(best.Timestamp) {
			best = e
		}
	}
	if best == nil {
		return 0, repository.ErrNotFound
	}
	return best.BranchID, nil
}

func (m *mockStore) NextAfter(_ context.Context, carID int64, t time.Time) (*models.Reservation, error) {
	var best *models.Reservation
	for i := range m.reservations {
		r := m.reservations[i]
		if r.CarID != carID || !r.StartTime.After(t) {
			continue
		}
		if best == nil || r.StartTime.Before(best.StartTime) || (r.StartTime.Equal(best.StartTime) && r.ID < best.ID) {
			best = &r
		}
	}
	return best, nil
}

func (m *mockStore) PreviousBefore(_ context.Context, carID int64, t time.Time) (*models.Reservation, error) {
	var best *models.Reservation
	for i := range m.reservations {
		r := m.reservations[i]
		if r.CarID != carID || !r.EndTime.Before(t) {
			continue
		}
		if best == nil || r.EndTime.After(best.EndTime) || (r.EndTime.Equal(best.EndTime) && r.ID < best.ID) {
			best = &r
		}
	}
	return best, nil
}

func (m *mockStore) ActiveAt(_ context.Context, carID int64, t time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.CarID == carID && !r.StartTime.After(t) && !r.EndTime.Before(t) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) Upcoming(_ context.Context) ([]models.Reservation, error) {
	now := time.Now()
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.StartTime.After(now) {
			out = append(out, r)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].StartTime.Before(out[j-1].StartTime); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (m *mockStore) CreateReservation(_ context.Context, res *models.Reservation) error {
	for _, r := range m.reservations {
		if r.CarID == res.CarID && r.StartTime.Equal(res.StartTime) && r.EndTime.Equal(res.EndTime) {
			return repository.ErrDuplicate
		}
	}
	m.nextID++
	res.ID = m.nextID
	m.reservations = append(m.reservations, *res)
	m.addLog(res.CarID, res.PickupBranch, res.StartTime)
	m.addLog(res.CarID, res.ReturnBranch, res.EndTime)
	return nil
}

func (m *mockStore) CancelReservation(_ context.Context, id int64) error {
	for i, r := range m.reservations {
		if r.ID != id {
			continue
		}
		m.reservations = append(m.reservations[:i], m.reservations[i+1:]...)
		m.removeLog(r.CarID, r.PickupBranch, r.StartTime)
		m.removeLog(r.CarID, r.ReturnBranch, r.EndTime)
		return nil
	}
	return repository.ErrNotFound
}

func (m *mockStore) removeLog(carID, branchID int64, ts time.Time) {
	for i, e := range m.logs {
		if e.CarID == carID && e.BranchID == branchID && e.Timestamp.Equal(ts) {
			m.logs = append(m.logs[:i], m.logs[i+1:]...)
			return
		}
	}
}

func (m *mockStore) BranchByCity(_ context.Context, city string) (*models.Branch, error) {
	b, ok := m.branches[city]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (m *mockStore) ProvisionCar(_ context.Context, car *models.Car, branchID int64, at time.Time) error {
	m.nextID++
	car.ID = m.nextID
	m.cars = append(m.cars, *car)
	m.addLog(car.ID, branchID, at)
	return nil
}

func (m *mockStore) InTx(_ context.Context, fn func(repository.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txCount++
	if m.failSerialization > 0 {
		m.failSerialization--
		return repository.ErrSerialization
	}

	logs := append([]models.CarBranchLog(nil), m.logs...)
	reservations := append([]models.Reservation(nil), m.reservations...)
	cars := append([]models.Car(nil), m.cars...)
	nextID := m.nextID

	if err := fn(m); err != nil {
		m.logs = logs
		m.reservations = reservations
		m.cars = cars
		m.nextID = nextID
		return err
	}
	return nil
}

// mockDistances 内存距离矩阵，实现 DistanceSource
type mockDistances struct {
	distances map[[2]int64]int
}

func newMockDistances() *mockDistances {
	return &mockDistances{distances: make(map[[2]int64]int)}
}

// set 写入双向距离
func (m *mockDistances) set(a, b int64, km int) {
	m.distances[[2]int64{a, b}] = km
	m.distances[[2]int64{b, a}] = km
}

func (m *mockDistances) setOneWay(a, b int64, km int) {
	m.distances[[2]int64{a, b}] = km
}

func (m *mockDistances) DistanceKm(_ context.Context, from, to int64) (int, bool, error) {
	km, ok := m.distances[[2]int64{from, to}]
	return km, ok, nil
}
