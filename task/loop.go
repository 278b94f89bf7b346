package task

import (
	"context"
	"flag"

	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/metrics"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/input"
)

const (
	SelfName = "signal" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 30, "心跳日志间隔tick数（0表示关闭）")
)

// Step 执行一个tick
// 功能：读取采样并推进路口状态机，之后通知观察者
// 算法说明：
// 1. 从采样来源读取本tick的采样，失败时以空采样代替（全部车道按0处理）
// 2. 推进路口：更新车辆数，执行控制状态机
// 3. 时钟计数+1，按间隔输出心跳日志
// 4. 通知观察者
//
// 说明：任何错误（包括panic）都在本tick内吸收，不会终止控制循环
func (ctx *Context) Step(runCtx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("tick %d failed: %v", ctx.clock.Ticks()+1, r)
		}
	}()

	sample, err := ctx.feed.Sample(runCtx)
	if err != nil {
		metrics.RecordSampleError("feed")
		log.Warnf("sample feed failed, all lanes treated as 0: %v", err)
		sample = input.Sample{}
	}
	ctx.junction.Tick(sample)
	n := ctx.clock.Advance()

	state := ctx.junction.State()
	if *heartBeatInterval > 0 && n%int64(*heartBeatInterval) == 0 {
		log.Infof(
			"TICK: %d active=%v remaining=%d emergency=%v",
			n, state.ActiveLane, state.RemainingTime, state.EmergencyActive,
		)
	}
	ctx.notify(func(o Observer) { o.OnTick(n, state) })
}

// Run 运行控制循环
// 功能：按tick间隔周期性执行Step，直到runCtx结束
func (ctx *Context) Run(runCtx context.Context) {
	ticker := ctx.clock.NewTicker(ctx.clock.DT)
	defer ticker.Stop()
	log.Infof("control loop started, tick interval %v", ctx.clock.DT)
	for {
		select {
		case <-runCtx.Done():
			log.Infof("control loop stopped after %d ticks", ctx.clock.Ticks())
			return
		case <-ticker.C():
			ctx.Step(runCtx)
		}
	}
}
