package service

import (
	"context"
	"time"
)

// DistanceSource 有向距离查询，第二个返回值为 false 表示无已知路线
type DistanceSource interface {
	DistanceKm(ctx context.Context, fromBranch, toBranch int64) (int, bool, error)
}

// DistanceOracle 距离与调拨时间推算。距离未知视为"两店之间不可调拨"，
// 调度器据此拒绝而不是猜测。
type DistanceOracle struct {
	source   DistanceSource
	speedKmh int
}

// NewDistanceOracle 创建距离推算器
func NewDistanceOracle(source DistanceSource, speedKmh int) *DistanceOracle {
	return &DistanceOracle{source: source, speedKmh: speedKmh}
}

// DistanceKm 两店距离。同一门店为 0。
func (o *DistanceOracle) DistanceKm(ctx context.Context, fromBranch, toBranch int64) (int, bool, error) {
	if fromBranch == toBranch {
		return 0, true, nil
	}
	return o.source.DistanceKm(ctx, fromBranch, toBranch)
}

// TransferTime 调拨时长 = distance_km / speed。同一门店为 0。
func (o *DistanceOracle) TransferTime(ctx context.Context, fromBranch, toBranch int64) (time.Duration, bool, error) {
	km, known, err := o.DistanceKm(ctx, fromBranch, toBranch)
	if err != nil || !known {
		return 0, known, err
	}
	hours := float64(km) / float64(o.speedKmh)
	return time.Duration(hours * float64(time.Hour)), true, nil
}
