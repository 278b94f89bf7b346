package junction

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
)

// 依赖倒置，表达junction对信号灯实现的接口需求

// 给快照与RPC提供的信控读取接口
type ITrafficLightGetter interface {
	Mode() trafficlight.Mode // 当前控制模式
	Active() lane.ID         // 当前绿灯车道
	RemainingTime() int32    // 当前绿灯剩余时间
}

// 信号灯接口
type ITrafficLight interface {
	ITrafficLightGetter
	Update(densities map[lane.ID]int) trafficlight.Transition // 推进一个tick
	Activate(id lane.ID)                                      // 进入紧急模式
}
