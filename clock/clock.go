package clock

import (
	"fmt"
	"sync/atomic"
	"time"

	k8sclock "k8s.io/utils/clock"
)

// Clock 控制循环时钟
// 功能：封装墙上时钟与tick计数，为控制循环提供定时器，为拥堵估计提供小时与星期
// 说明：底层时钟可注入，测试中使用FakeClock驱动
type Clock struct {
	k8sclock.WithTicker

	DT    time.Duration // 每个tick的时间间隔
	start time.Time     // 启动时刻
	ticks atomic.Int64  // 已完成的tick数
}

// New 创建时钟
// 参数：dt-tick间隔，c-底层时钟（nil表示使用真实时钟）
func New(dt time.Duration, c k8sclock.WithTicker) *Clock {
	if c == nil {
		c = k8sclock.RealClock{}
	}
	return &Clock{
		WithTicker: c,
		DT:         dt,
		start:      c.Now(),
	}
}

// Advance 记录完成一次tick，返回累计tick数
func (c *Clock) Advance() int64 {
	return c.ticks.Add(1)
}

// Ticks 已完成的tick数
func (c *Clock) Ticks() int64 {
	return c.ticks.Load()
}

// T 按tick数折算的运行时间（秒）
func (c *Clock) T() float64 {
	return float64(c.Ticks()) * c.DT.Seconds()
}

// HourWeekday 当前小时（0..23）与星期（0..6，周一为0）
// 说明：星期编号与拥堵模型训练数据保持一致，周一为0、周日为6
func (c *Clock) HourWeekday() (int, int) {
	now := c.Now()
	return now.Hour(), (int(now.Weekday()) + 6) % 7
}

// Uptime 自启动以来经过的墙上时间
func (c *Clock) Uptime() time.Duration {
	return c.Since(c.start)
}

// String 获取时钟的字符串表示（tick数与运行时间）
func (c *Clock) String() string {
	t := int(c.T())
	h := t / 3600
	m := t % 3600 / 60
	s := t % 60
	return fmt.Sprintf("#%d %02d:%02d:%02d", c.Ticks(), h, m, s)
}
