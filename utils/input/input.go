// 控制循环的采样输入：每个tick为四条车道提供一次密度与车辆数采样
package input

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
)

var (
	ErrSampleFeed = errors.New("sample feed error")
)

// Sample 单个tick的采样数据
// 功能：保存各车道的密度与车辆数，二者为相互独立的采样
type Sample struct {
	Densities map[lane.ID]int `json:"densities"`
	Counts    map[lane.ID]int `json:"counts"`
}

// Feed 采样来源
// 说明：真实部署中由传感器实现，模拟环境下使用随机采样
type Feed interface {
	Sample(ctx context.Context) (Sample, error)
}

// Normalize 规范化采样
// 功能：缺失或为负的车道按0处理
// 返回：规范化后的采样，以及被修正的车道列表（按固定顺序）
func (s Sample) Normalize() (Sample, []lane.ID) {
	out := Sample{
		Densities: make(map[lane.ID]int, len(lane.All)),
		Counts:    make(map[lane.ID]int, len(lane.All)),
	}
	fixed := make([]lane.ID, 0)
	for _, id := range lane.All {
		d, okD := s.Densities[id]
		c, okC := s.Counts[id]
		if !okD || !okC || d < 0 || c < 0 {
			fixed = append(fixed, id)
		}
		d = max(d, 0)
		c = max(c, 0)
		out.Densities[id] = d
		out.Counts[id] = c
	}
	return out, fixed
}

// MeanCount 各车道车辆数的平均值
func MeanCount(counts map[lane.ID]int) float64 {
	if len(counts) == 0 {
		return 0
	}
	return float64(lo.Sum(lo.Values(counts))) / float64(len(counts))
}

// SequenceFeed 按顺序回放的采样来源
// 功能：依次返回给定的采样，用尽后返回ErrSampleFeed
// 说明：用于回放录制数据与确定性测试
type SequenceFeed struct {
	mtx     sync.Mutex
	samples []Sample
	next    int
}

// NewSequenceFeed 创建回放采样来源
func NewSequenceFeed(samples ...Sample) *SequenceFeed {
	return &SequenceFeed{samples: samples}
}

func (f *SequenceFeed) Sample(ctx context.Context) (Sample, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if err := ctx.Err(); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrSampleFeed, err)
	}
	if f.next >= len(f.samples) {
		return Sample{}, fmt.Errorf("%w: sequence exhausted after %d samples", ErrSampleFeed, len(f.samples))
	}
	s := f.samples[f.next]
	f.next++
	return s, nil
}

// Append 追加采样
func (f *SequenceFeed) Append(samples ...Sample) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.samples = append(f.samples, samples...)
}
