package service

import "errors"

// 预订边界错误
var (
	// ErrInvalidTime 开始时间不在未来，或结束时间不晚于开始时间
	ErrInvalidTime = errors.New("invalid reservation time")

	// ErrUnknownBranch 取车或还车城市不存在
	ErrUnknownBranch = errors.New("unknown branch")

	// ErrNoRoute 算法所需的两店之间没有已知距离
	ErrNoRoute = errors.New("no distance between the branches")

	// ErrInsufficientDuration 取还车门店间的调拨时间超过预订时长
	ErrInsufficientDuration = errors.New("transfer time exceeds reservation duration")

	// ErrNoCarAvailable 没有可接受的候选车
	ErrNoCarAvailable = errors.New("no car available")

	// ErrConflict 唯一约束或串行化冲突导致回滚，调用方可重试
	ErrConflict = errors.New("reservation conflict")

	// ErrTimeout 截止时间先于提交到达
	ErrTimeout = errors.New("reservation deadline exceeded")
)
