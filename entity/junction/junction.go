package junction

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	mapv2connect "git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/metrics"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/input"
)

var (
	ErrDisabledTrafficLight = errors.New("manual traffic light control is disabled for the junction")
)

// StatusEmergencyActivated 紧急模式激活回执中的状态
const StatusEmergencyActivated = "EMERGENCY ACTIVATED"

var laneNames = lo.Map(lane.All, func(id lane.ID, _ int) string { return id.String() })

// Junction 四向路口
// 功能：持有车道注册表、信号灯控制器与最近一次车辆检测结果，是全部可变状态的唯一所有者
// 说明：tick、快照与紧急模式均通过同一把互斥锁串行化，保证任意时刻恰有一条车道为绿灯
type Junction struct {
	mapv2connect.UnimplementedTrafficLightServiceHandler

	ctx entity.ITaskContext
	id  int32

	mtx          sync.Mutex
	lanes        *lane.Registry  // 车道注册表
	trafficLight ITrafficLight   // 信号灯模块
	lastCounts   map[lane.ID]int // 最近一次车辆检测结果
}

// New 创建路口
// 功能：按配置初始化车道采样与控制参数，以NORTH为初始绿灯车道、NORMAL模式启动
// 参数：ctx-任务上下文
// 返回：初始化完成的Junction实例
func New(ctx entity.ITaskContext) *Junction {
	c := ctx.RuntimeConfig().C
	densities := parseInitial("initial_densities", c.InitialDensities)
	counts := parseInitial("initial_counts", c.InitialCounts)

	lanes := lane.NewRegistry(lane.NORTH, densities, counts)
	j := &Junction{
		ctx:        ctx,
		id:         c.JunctionID,
		lanes:      lanes,
		lastCounts: lanes.Counts(),
	}
	j.trafficLight = trafficlight.NewDensityTrafficLight(trafficlight.Params{
		DefaultCycle:      c.DefaultCycle,
		EmergencyDuration: c.EmergencyDuration,
		BaseGreen:         c.BaseGreen,
		DensityFactor:     c.DensityFactor,
	}, lanes, lane.NORTH)
	return j
}

// parseInitial 解析配置中以车道名为键的初始采样，非法车道名或负值视为配置错误
func parseInitial(field string, values map[string]int) map[lane.ID]int {
	out := make(map[lane.ID]int, len(values))
	for k, v := range values {
		id, err := lane.Parse(k)
		if err != nil {
			log.Panicf("invalid control.%s: %v", field, err)
		}
		if v < 0 {
			log.Panicf("invalid control.%s: negative value %d for %v", field, v, id)
		}
		out[id] = v
	}
	return out
}

// ID 获取Junction的唯一标识符
func (j *Junction) ID() int32 {
	if j == nil {
		return -1
	}
	return j.id
}

// Tick 推进一个tick
// 功能：先用采样更新各车道车辆数（两种模式均更新），再推进控制状态机
// 参数：sample-本tick的采样，缺失或为负的车道按0处理并记录告警
// 返回：本tick产生的状态变化
func (j *Junction) Tick(sample input.Sample) trafficlight.Transition {
	s, fixed := sample.Normalize()
	if len(fixed) > 0 {
		metrics.RecordSampleError("missing_lane")
		log.Warnf("sample missing or negative for lanes %v, treated as 0", fixed)
	}

	j.mtx.Lock()
	defer j.mtx.Unlock()

	for _, id := range lane.All {
		j.lanes.Get(id).VehicleCount = s.Counts[id]
	}
	j.lastCounts = s.Counts

	t := j.trafficLight.Update(s.Densities)
	if t.Switched {
		metrics.RecordLaneSwitch(t.From.String(), t.To.String())
	}
	if t.EmergencyCleared {
		log.Infof("emergency override on %v expired, back to NORMAL", t.To)
	}
	j.recordState(true)
	return t
}

// ActivateEmergency 进入紧急模式
// 功能：将指定车道强制置为绿灯，暂停按密度选择，直到倒计时结束
// 返回：激活回执；车道非法时返回lane.ErrInvalidLane且不修改任何状态
func (j *Junction) ActivateEmergency(id lane.ID) (entity.Ack, error) {
	if !id.Valid() {
		return entity.Ack{}, fmt.Errorf("%w: %v", lane.ErrInvalidLane, id)
	}

	j.mtx.Lock()
	j.trafficLight.Activate(id)
	j.recordState(false)
	j.mtx.Unlock()

	metrics.RecordEmergency(id.String())
	ack := entity.Ack{
		Status: StatusEmergencyActivated,
		Lane:   id,
		ID:     uuid.New(),
	}
	log.Infof("emergency override activated on %v (%v)", id, ack.ID)
	return ack, nil
}

// State 获取当前状态的拷贝
func (j *Junction) State() entity.State {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	return j.state()
}

func (j *Junction) state() entity.State {
	return entity.State{
		ActiveLane:      j.trafficLight.Active(),
		RemainingTime:   j.trafficLight.RemainingTime(),
		EmergencyActive: j.trafficLight.Mode() == trafficlight.ModeEmergency,
		Lanes:           j.lanes.Lanes(),
		LastCounts:      maps.Clone(j.lastCounts),
	}
}

// Snapshot 获取状态快照
// 功能：拷贝最新提交的状态，并在锁外按当前小时、星期与最近车辆数计算拥堵估计
// 说明：拥堵估计不持有锁，预测超时不会阻塞tick
func (j *Junction) Snapshot(ctx context.Context) entity.Snapshot {
	s := j.State()
	clock := j.ctx.Clock()
	hour, weekday := clock.HourWeekday()
	return entity.Snapshot{
		State:      s,
		Congestion: j.ctx.Estimator().Estimate(ctx, s.LastCounts, hour, weekday),
		Timestamp:  clock.Now(),
	}
}

// recordState 更新状态类指标，调用方需持有锁
func (j *Junction) recordState(tick bool) {
	active := j.trafficLight.Active().String()
	remaining := j.trafficLight.RemainingTime()
	emergency := j.trafficLight.Mode() == trafficlight.ModeEmergency
	if tick {
		metrics.RecordTick(active, laneNames, remaining, emergency)
	} else {
		metrics.RecordState(active, laneNames, remaining, emergency)
	}
}
