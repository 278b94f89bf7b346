package lane

import (
	"errors"
	"fmt"
	"strings"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

var (
	ErrInvalidLane = errors.New("invalid lane identity")
)

// ID 路口进口道标识
// 功能：四个固定方向，取值顺序即平局时的优先顺序（NORTH最先）
type ID int32

const (
	NORTH ID = iota
	SOUTH
	EAST
	WEST
)

// All 按固定顺序排列的全部车道
var All = []ID{NORTH, SOUTH, EAST, WEST}

var names = [...]string{"NORTH", "SOUTH", "EAST", "WEST"}

// Valid 判断是否为四个合法方向之一
func (id ID) Valid() bool {
	return id >= NORTH && id <= WEST
}

func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("ID(%d)", int32(id))
	}
	return names[id]
}

// Short 单字母缩写（N/S/E/W）
func (id ID) Short() string {
	return id.String()[:1]
}

// Parse 解析车道标识
// 功能：将字符串解析为车道ID，忽略首尾空白与大小写
// 返回：非法输入返回包装了ErrInvalidLane的错误
func Parse(s string) (ID, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range names {
		if name == v {
			return ID(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLane, s)
}

func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLane, int32(id))
	}
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Lane 车道实体
// 功能：保存单条进口道的信号灯状态与最近一次采样
type Lane struct {
	ID           ID
	Light        mapv2.LightState // 信号灯状态，仅GREEN与RED两种取值
	Density      int              // 最近一次采样的密度
	VehicleCount int              // 最近一次检测的车辆数
}

// LightName 信号灯状态的简短名称（GREEN/RED/YELLOW）
func LightName(state mapv2.LightState) string {
	switch state {
	case mapv2.LightState_LIGHT_STATE_GREEN:
		return "GREEN"
	case mapv2.LightState_LIGHT_STATE_RED:
		return "RED"
	case mapv2.LightState_LIGHT_STATE_YELLOW:
		return "YELLOW"
	default:
		return "UNSPECIFIED"
	}
}
