package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 车辆租赁状态常量
const (
	StateIdle     = "idle"     // 在店待租
	StateReserved = "reserved" // 有未开始的预订
	StateOnRent   = "onrent"   // 预订进行中
)

// 事件常量
const (
	EventAssign  = "assign"  // 分配到预订
	EventPickup  = "pickup"  // 客户取车
	EventDropoff = "dropoff" // 客户还车
	EventRelease = "release" // 预订取消，回到待租
)

// CarState 车辆看板状态
type CarState struct {
	CarID        int64      `json:"car_id"`
	CarNumber    string     `json:"car_number"`
	CurrentState string     `json:"state"`
	BranchID     int64      `json:"branch_id"`
	Since        time.Time  `json:"since"`
	NextPickup   *time.Time `json:"next_pickup,omitempty"`
}

// Machine 车辆租赁状态机
type Machine struct {
	mu            sync.RWMutex
	carID         int64
	fsm           *fsm.FSM
	state         *CarState
	onStateChange func(carID int64, from, to string)
}

// NewMachine 创建状态机
func NewMachine(carID int64, initialState string, onStateChange func(carID int64, from, to string)) *Machine {
	if initialState == "" {
		initialState = StateIdle
	}

	m := &Machine{
		carID:         carID,
		onStateChange: onStateChange,
		state: &CarState{
			CarID:        carID,
			CurrentState: initialState,
			Since:        time.Now(),
		},
	}

	m.fsm = fsm.NewFSM(
		initialState,
		fsm.Events{
			{Name: EventAssign, Src: []string{StateIdle, StateOnRent}, Dst: StateReserved},
			{Name: EventPickup, Src: []string{StateReserved, StateIdle}, Dst: StateOnRent},
			{Name: EventDropoff, Src: []string{StateOnRent}, Dst: StateIdle},
			{Name: EventRelease, Src: []string{StateReserved}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.carID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// GetState 获取完整状态
func (m *Machine) GetState() *CarState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// 返回副本
	stateCopy := *m.state
	stateCopy.CurrentState = m.fsm.Current()
	return &stateCopy
}

// UpdateState 更新状态数据
func (m *Machine) UpdateState(update func(s *CarState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	update(m.state)
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.state.CurrentState = m.fsm.Current()
	m.state.Since = time.Now()
	return nil
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// Manager 状态机管理器
type Manager struct {
	mu       sync.RWMutex
	machines map[int64]*Machine
	onChange func(carID int64, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(carID int64, from, to string)) *Manager {
	return &Manager{
		machines: make(map[int64]*Machine),
		onChange: onChange,
	}
}

// GetOrCreate 获取或创建状态机
func (m *Manager) GetOrCreate(carID int64, initialState string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[carID]; ok {
		return machine
	}

	machine := NewMachine(carID, initialState, m.onChange)
	m.machines[carID] = machine
	return machine
}

// Get 获取状态机
func (m *Manager) Get(carID int64) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[carID]
	return machine, ok
}

// GetAllStates 获取所有车辆状态
func (m *Manager) GetAllStates() map[int64]*CarState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[int64]*CarState)
	for carID, machine := range m.machines {
		states[carID] = machine.GetState()
	}
	return states
}
