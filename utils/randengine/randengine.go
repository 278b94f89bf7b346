// 随机数引擎，包装了golang.org/x/exp/rand，为模拟采样提供线程安全的随机数
package randengine

import (
	"flag"
	"sync"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供可复现的随机数生成功能，所有导出方法均为线程安全
// 说明：基于golang.org/x/exp/rand库，同一种子产生相同的采样序列
type Engine struct {
	r   *rand.Rand // 底层随机数生成器
	mtx sync.Mutex // 互斥锁
}

// New 创建随机数引擎
// 功能：使用种子与全局种子偏移量初始化随机数引擎
// 参数：seed-随机数种子
// 返回：随机数引擎指针
func New(seed uint64) *Engine {
	return &Engine{r: rand.New(rand.NewSource(seed + *seedOffset))}
}

// IntRange 随机生成闭区间[low, high]内的整数
// 功能：模拟传感器读数，high不大于low时直接返回low
func (e *Engine) IntRange(low, high int) int {
	if high <= low {
		return low
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return low + e.r.Intn(high-low+1)
}

// PTrue 以指定概率返回true
// 参数：p-返回true的概率（0.0到1.0之间）
func (e *Engine) PTrue(p float64) bool {
	if p <= 0 {
		return false
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.r.Float64() < p
}
