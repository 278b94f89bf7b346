package input

import (
	"context"

	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/randengine"
)

const (
	MaxDensity = 5  // 模拟密度上限（含）
	MaxCount   = 12 // 模拟车辆数上限（含）
)

// RandomFeed 随机采样来源
// 功能：代替真实传感器，密度与车辆数独立均匀采样
// 说明：dropout大于0时以该概率丢弃单条车道的采样，用于模拟传感器掉线
type RandomFeed struct {
	generator *randengine.Engine
	dropout   float64
}

// NewRandomFeed 创建随机采样来源
// 参数：seed-随机种子，dropout-单车道丢失概率
func NewRandomFeed(seed uint64, dropout float64) *RandomFeed {
	return &RandomFeed{
		generator: randengine.New(seed),
		dropout:   dropout,
	}
}

func (f *RandomFeed) Sample(ctx context.Context) (Sample, error) {
	s := Sample{
		Densities: make(map[lane.ID]int, len(lane.All)),
		Counts:    make(map[lane.ID]int, len(lane.All)),
	}
	for _, id := range lane.All {
		if f.generator.PTrue(f.dropout) {
			continue
		}
		s.Densities[id] = f.generator.IntRange(0, MaxDensity)
		s.Counts[id] = f.generator.IntRange(0, MaxCount)
	}
	return s, nil
}
