package lane

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
)

// Registry 车道注册表
// 功能：持有路口四条进口道的可变状态，车道集合固定，不可增删
// 说明：本身不加锁，由持有者（junction）统一互斥
type Registry struct {
	lanes [4]Lane
}

// NewRegistry 创建车道注册表
// 功能：初始化四条车道，green为绿灯车道，其余为红灯
// 参数：green-初始绿灯车道，densities/counts-初始采样（缺省为0）
func NewRegistry(green ID, densities, counts map[ID]int) *Registry {
	r := &Registry{}
	for _, id := range All {
		r.lanes[id] = Lane{
			ID:           id,
			Light:        mapv2.LightState_LIGHT_STATE_RED,
			Density:      densities[id],
			VehicleCount: counts[id],
		}
	}
	r.SetGreen(green)
	return r
}

// Get 根据ID获取车道，ID非法时panic
func (r *Registry) Get(id ID) *Lane {
	if !id.Valid() {
		log.Panicf("no lane %v in registry", id)
	}
	return &r.lanes[id]
}

// SetGreen 设置唯一绿灯车道
// 功能：将指定车道置为绿灯，其余车道全部置为红灯
func (r *Registry) SetGreen(id ID) {
	for i := range r.lanes {
		if r.lanes[i].ID == id {
			r.lanes[i].Light = mapv2.LightState_LIGHT_STATE_GREEN
		} else {
			r.lanes[i].Light = mapv2.LightState_LIGHT_STATE_RED
		}
	}
}

// Green 返回所有绿灯车道
func (r *Registry) Green() []ID {
	return lo.FilterMap(r.lanes[:], func(l Lane, _ int) (ID, bool) {
		return l.ID, l.Light == mapv2.LightState_LIGHT_STATE_GREEN
	})
}

// Lanes 返回车道状态的拷贝（按固定顺序）
func (r *Registry) Lanes() []Lane {
	out := make([]Lane, len(r.lanes))
	copy(out, r.lanes[:])
	return out
}

// Lights 按固定顺序返回各车道信号灯
func (r *Registry) Lights() []mapv2.LightState {
	return lo.Map(r.lanes[:], func(l Lane, _ int) mapv2.LightState {
		return l.Light
	})
}

// Densities 返回各车道当前密度
func (r *Registry) Densities() map[ID]int {
	return lo.SliceToMap(r.lanes[:], func(l Lane) (ID, int) {
		return l.ID, l.Density
	})
}

// Counts 返回各车道当前车辆数
func (r *Registry) Counts() map[ID]int {
	return lo.SliceToMap(r.lanes[:], func(l Lane) (ID, int) {
		return l.ID, l.VehicleCount
	})
}
