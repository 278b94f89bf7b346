package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/congestion"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
)

// State 控制器状态的只读拷贝
type State struct {
	ActiveLane      lane.ID         // 当前绿灯车道
	RemainingTime   int32           // 当前绿灯剩余时间（秒）
	EmergencyActive bool            // 是否处于紧急模式
	Lanes           []lane.Lane     // 各车道状态（按固定顺序）
	LastCounts      map[lane.ID]int // 最近一次车辆检测结果
}

// Lane 按ID获取车道状态
func (s State) Lane(id lane.ID) lane.Lane {
	for _, l := range s.Lanes {
		if l.ID == id {
			return l
		}
	}
	return lane.Lane{ID: id}
}

// Snapshot 状态快照
// 功能：控制器状态加上查询时刻计算的拥堵估计
type Snapshot struct {
	State
	Congestion congestion.Estimate
	Timestamp  time.Time
}

// Ack 紧急模式激活回执
type Ack struct {
	Status string
	Lane   lane.ID
	ID     uuid.UUID // 本次激活的唯一标识
}
