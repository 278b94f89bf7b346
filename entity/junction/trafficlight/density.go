// 提供按密度选择绿灯车道的信号灯控制算法
// 每个tick在全部车道中选取密度最大的车道放行，并支持紧急模式强制指定绿灯车道
package trafficlight

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/container"
)

// Mode 控制模式
type Mode int

const (
	ModeNormal    Mode = iota // 按密度自动选择绿灯车道
	ModeEmergency             // 紧急模式，绿灯车道被强制指定，暂停自动选择
)

func (m Mode) String() string {
	return [...]string{"NORMAL", "EMERGENCY"}[m]
}

// Params 控制参数（秒）
type Params struct {
	DefaultCycle      int32 // 周期重置时长
	EmergencyDuration int32 // 紧急模式时长
	BaseGreen         int32 // 基础绿灯时长
	DensityFactor     int32 // 每单位密度增加的绿灯时长
}

// Transition 单次tick产生的状态变化
type Transition struct {
	Switched         bool    // 是否按密度切换了绿灯车道
	From             lane.ID // 切换前的绿灯车道
	To               lane.ID // 切换后的绿灯车道
	Rearmed          bool    // 倒计时归零后是否重置了周期
	EmergencyCleared bool    // 紧急模式是否在本tick结束
}

// DensityTrafficLight 按密度选择的信号灯控制器
// 功能：维护当前绿灯车道、倒计时与控制模式，每个tick推进一次
// 说明：非线程安全，由持有者统一互斥；车道注册表由持有者共享
type DensityTrafficLight struct {
	params    Params
	lanes     *lane.Registry
	mode      Mode
	active    lane.ID
	remaining int32
}

// NewDensityTrafficLight 创建按密度选择的信号灯控制器
// 功能：以NORMAL模式启动，initial为初始绿灯车道，倒计时为默认周期
// 参数：params-控制参数，lanes-车道注册表，initial-初始绿灯车道
func NewDensityTrafficLight(params Params, lanes *lane.Registry, initial lane.ID) *DensityTrafficLight {
	l := &DensityTrafficLight{
		params:    params,
		lanes:     lanes,
		mode:      ModeNormal,
		active:    initial,
		remaining: params.DefaultCycle,
	}
	lanes.SetGreen(initial)
	return l
}

// Update 推进一个tick
// 功能：执行控制状态机的一次状态转移
// 参数：densities-本tick的规范化密度采样（四条车道齐全）
// 算法说明：
// 1. NORMAL：选取密度最大的车道，若不同于当前绿灯车道则切换，
//    倒计时设为 base_green + density_factor * density
// 2. 倒计时减1，归零时重置为默认周期（即使没有切换车道）
// 3. NORMAL下将本次采样写入各车道密度
// 4. EMERGENCY：跳过自动选择，仅倒计时减1；归零时回到NORMAL并重置为默认周期，
//    绿灯车道保持为紧急车道，由后续tick重新按密度选择
func (l *DensityTrafficLight) Update(densities map[lane.ID]int) Transition {
	t := Transition{From: l.active, To: l.active}
	normal := l.mode == ModeNormal

	if normal {
		maxLane := SelectMaxLane(densities, l.active)
		if maxLane != l.active {
			l.active = maxLane
			l.lanes.SetGreen(maxLane)
			l.remaining = l.params.BaseGreen + l.params.DensityFactor*int32(densities[maxLane])
			t.Switched = true
			t.To = maxLane
			log.Debugf("switch green lane %v -> %v (density %d)", t.From, t.To, densities[maxLane])
		}
	}

	l.remaining--
	if l.remaining <= 0 {
		l.remaining = l.params.DefaultCycle
		t.Rearmed = true
		if !normal {
			l.mode = ModeNormal
			t.EmergencyCleared = true
		}
	}

	if normal {
		for _, id := range lane.All {
			l.lanes.Get(id).Density = densities[id]
		}
	}
	return t
}

// Activate 进入紧急模式
// 功能：强制指定绿灯车道，倒计时设为紧急时长；已在紧急模式时按新车道重新计时
func (l *DensityTrafficLight) Activate(id lane.ID) {
	l.mode = ModeEmergency
	l.active = id
	l.lanes.SetGreen(id)
	l.remaining = l.params.EmergencyDuration
}

// Mode 当前控制模式
func (l *DensityTrafficLight) Mode() Mode {
	return l.mode
}

// Active 当前绿灯车道
func (l *DensityTrafficLight) Active() lane.ID {
	return l.active
}

// RemainingTime 当前绿灯剩余时间（秒）
func (l *DensityTrafficLight) RemainingTime() int32 {
	return l.remaining
}

// SelectMaxLane 选取密度最大的车道
// 功能：在四条车道中选取密度最大者
// 参数：densities-各车道密度（缺失按0处理），current-当前绿灯车道
// 返回：密度最大的车道；并列时若当前车道在其中则保持当前车道，否则按NORTH、SOUTH、EAST、WEST顺序取第一个
// 说明：当前车道最先入队，其余车道按固定顺序入队，依赖优先队列在优先级相同时的先入先出
func SelectMaxLane(densities map[lane.ID]int, current lane.ID) lane.ID {
	q := container.NewPriorityQueue[lane.ID]()
	if current.Valid() {
		q.Push(current, -float64(densities[current]))
	}
	for _, id := range lane.All {
		if id != current {
			q.Push(id, -float64(densities[id])) // 小顶堆，密度越大越靠前
		}
	}
	q.Heapify()
	id, _ := q.HeapPop()
	return id
}
