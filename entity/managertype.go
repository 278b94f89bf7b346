package entity

import (
	"context"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/congestion"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/input"
)

// congestion/estimator.go的依赖倒置
type IEstimator interface {
	// 计算拥堵估计，任何失败都回退为静态估计
	Estimate(ctx context.Context, counts map[lane.ID]int, hour, weekday int) congestion.Estimate
}

// entity/junction/junction.go的依赖倒置
type IJunction interface {
	ID() int32                        // 路口ID
	Register(sidecar *syncer.Sidecar) // 注册到Sidecar

	// 推进一个tick，sample中缺失的车道按0处理
	Tick(sample input.Sample) trafficlight.Transition
	// 进入紧急模式，lane非法时返回lane.ErrInvalidLane且不修改状态
	ActivateEmergency(id lane.ID) (Ack, error)

	State() State                          // 当前状态的拷贝
	Snapshot(ctx context.Context) Snapshot // 当前状态与实时拥堵估计
}
