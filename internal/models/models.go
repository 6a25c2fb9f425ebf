package models

import (
	"regexp"
	"time"
)

// CarNumberPattern 车牌编号格式
var CarNumberPattern = regexp.MustCompile(`^C[0-9]+$`)

// Branch 门店（唯一城市）
type Branch struct {
	ID   int64  `json:"id" db:"id"`
	City string `json:"city" db:"city"`
}

// Car 车辆信息
type Car struct {
	ID        int64  `json:"id" db:"id"`
	CarNumber string `json:"car_number" db:"car_number"`
	Make      string `json:"make" db:"make"`
	Model     string `json:"model" db:"model"`
}

// Distance 门店间有向距离
type Distance struct {
	ID         int64 `json:"id" db:"id"`
	FromBranch int64 `json:"from_branch" db:"from_branch"`
	ToBranch   int64 `json:"to_branch" db:"to_branch"`
	DistanceKm int   `json:"distance_km" db:"distance_km"`
}

// CarBranchLog 车辆位置日志：车辆从 timestamp 起位于 branch
type CarBranchLog struct {
	ID        int64     `json:"id" db:"id"`
	CarID     int64     `json:"car_id" db:"car_id"`
	BranchID  int64     `json:"branch_id" db:"branch_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// Reservation 预订记录
type Reservation struct {
	ID           int64     `json:"id" db:"id"`
	CarID        int64     `json:"car_id" db:"car_id"`
	StartTime    time.Time `json:"start_time" db:"start_time"`
	EndTime      time.Time `json:"end_time" db:"end_time"`
	PickupBranch int64     `json:"pickup_branch" db:"pickup_branch"`
	ReturnBranch int64     `json:"return_branch" db:"return_branch"`
}

// Overlaps 闭区间重叠判断：[start, end] 与预订区间有交集
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return !r.StartTime.After(end) && !r.EndTime.Before(start)
}
