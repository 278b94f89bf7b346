package junction

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	mapv2connect "git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"git.fiblab.net/sim/syncer/v3"
)

// Register 将路口的信号灯服务注册到sidecar
// 功能：对外提供TrafficLightService，供仿真中的其他服务读取信号灯状态
// 参数：sidecar-同步器侧车实例
// 说明：路口自身持有互斥锁，不需要sidecar按step加锁
func (j *Junction) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		mapv2connect.TrafficLightServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return mapv2connect.NewTrafficLightServiceHandler(j, opts...)
		},
		syncer.WithNoLock(),
	)
}

func (j *Junction) checkID(id int32) error {
	if id != j.id {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("junction id does not exist"))
	}
	return nil
}

// GetTrafficLight RPC接口：获取信号灯状态
// 功能：以单相位信控程序的形式返回当前四条车道的灯色（按车道固定顺序）
// 返回：信号灯状态响应，相位时长与剩余时间均为当前绿灯剩余时间
func (j *Junction) GetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.GetTrafficLightRequest],
) (*connect.Response[mapv2.GetTrafficLightResponse], error) {
	if err := j.checkID(in.Msg.JunctionId); err != nil {
		return nil, err
	}
	j.mtx.Lock()
	states := j.lanes.Lights()
	remaining := float64(j.trafficLight.RemainingTime())
	j.mtx.Unlock()

	return connect.NewResponse(&mapv2.GetTrafficLightResponse{
		TrafficLight: &mapv2.TrafficLight{
			JunctionId: j.id,
			Phases: []*mapv2.Phase{{
				Duration: remaining,
				States:   states,
			}},
		},
		PhaseIndex:    0,
		TimeRemaining: remaining,
	}), nil
}

// SetTrafficLight RPC接口：设置信控程序
// 说明：绿灯车道只由密度选择与紧急模式决定，不接受外部信控程序
func (j *Junction) SetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightRequest],
) (*connect.Response[mapv2.SetTrafficLightResponse], error) {
	if in.Msg.TrafficLight == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("traffic light is required"))
	}
	if err := j.checkID(in.Msg.TrafficLight.JunctionId); err != nil {
		return nil, err
	}
	return nil, connect.NewError(connect.CodeInvalidArgument, ErrDisabledTrafficLight)
}

// SetTrafficLightPhase RPC接口：设置信控相位
// 说明：同SetTrafficLight，不接受外部修改
func (j *Junction) SetTrafficLightPhase(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightPhaseRequest],
) (*connect.Response[mapv2.SetTrafficLightPhaseResponse], error) {
	if err := j.checkID(in.Msg.JunctionId); err != nil {
		return nil, err
	}
	return nil, connect.NewError(connect.CodeInvalidArgument, ErrDisabledTrafficLight)
}

// SetTrafficLightStatus RPC接口：设置信号灯开关状态
// 功能：ok=true时为空操作；ok=false（信控失效、全绿）会破坏唯一绿灯约束，直接拒绝
func (j *Junction) SetTrafficLightStatus(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightStatusRequest],
) (*connect.Response[mapv2.SetTrafficLightStatusResponse], error) {
	if err := j.checkID(in.Msg.JunctionId); err != nil {
		return nil, err
	}
	if !in.Msg.Ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, ErrDisabledTrafficLight)
	}
	return connect.NewResponse(&mapv2.SetTrafficLightStatusResponse{}), nil
}
