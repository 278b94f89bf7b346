package task

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/congestion"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/input"
	k8sclock "k8s.io/utils/clock"
)

var log = logrus.WithField("module", "task")

// Observer 控制循环观察者
// 说明：在tick协程中同步调用，实现方不得阻塞
type Observer interface {
	OnTick(tick int64, state entity.State)
	OnEmergency(ack entity.Ack, state entity.State)
}

// Context 信号控制任务上下文
// 功能：持有一次运行的全部组件，替代全局变量，由main创建并交给控制循环与HTTP接口使用
// 说明：路口状态只能通过junction的方法访问
type Context struct {
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，对外提供TrafficLightService与ClockService
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}

	// 运行时配置
	runtimeConfig *config.RuntimeConfig

	// 路口
	junction entity.IJunction
	// 拥堵估计
	estimator *congestion.Estimator
	// 本地模型文件（未配置时为nil）
	model *congestion.ModelFile
	// 停止模型文件监听
	stopWatch context.CancelFunc
	// 采样来源
	feed input.Feed

	observerMtx sync.RWMutex
	observers   []Observer
}

// NewContext 创建信号控制任务上下文
// 功能：初始化时钟、拥堵估计、路口，并将RPC服务注册到sidecar
// 参数：
//   - c: 配置对象
//   - sidecar: sidecar实例，nil表示不对外提供RPC服务
//   - feed: 采样来源
//   - base: 底层时钟，nil表示使用真实时钟
//   - startSidecarServe: 是否启动sidecar服务
//
// 返回：初始化完成的Context实例
func NewContext(
	c config.Config,
	sidecar *syncer.Sidecar,
	feed input.Feed,
	base k8sclock.WithTicker,
	startSidecarServe bool,
) *Context {
	ctx := &Context{
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		runtimeConfig:  config.NewRuntimeConfig(c),
		feed:           feed,
		stopWatch:      func() {},
	}
	rc := ctx.runtimeConfig
	ctx.clock = clock.New(rc.C.TickInterval, base)

	var predictor congestion.Predictor
	predictor, ctx.model = newPredictor(rc.E)
	ctx.estimator = congestion.NewEstimator(predictor, rc.E.Timeout, rc.E.CacheTTL)
	if ctx.model != nil && rc.E.Watch {
		watchCtx, cancel := context.WithCancel(context.Background())
		if err := ctx.model.Watch(watchCtx, ctx.estimator.Invalidate); err != nil {
			log.Warnf("congestion model hot reload disabled: %v", err)
			cancel()
		} else {
			ctx.stopWatch = cancel
		}
	}

	ctx.junction = junction.New(ctx)

	if ctx.sidecar != nil {
		clock.NewService(ctx.clock).Register(ctx.sidecar)
		ctx.junction.Register(ctx.sidecar)
		// sidecar协程，用于提供gRPC服务
		if startSidecarServe {
			go func() {
				err := ctx.sidecar.Serve()
				if err != nil {
					log.Panicf("failed to serve: %v", err)
				}
				ctx.sidecarCloseCh <- struct{}{}
			}()
		}
	}
	if ctx.sidecar == nil || !startSidecarServe {
		close(ctx.sidecarCloseCh)
	}
	return ctx
}

// newPredictor 按配置选择拥堵分类器，远程服务优先于本地模型，均未配置时返回nil
func newPredictor(e config.Congestion) (congestion.Predictor, *congestion.ModelFile) {
	switch {
	case e.PredictorURL != "":
		log.Infof("congestion predictor: %s", e.PredictorURL)
		return congestion.NewRemotePredictor(e.PredictorURL, &http.Client{Timeout: e.Timeout}), nil
	case e.ModelFile != "":
		m := congestion.OpenModelFile(e.ModelFile)
		return m, m
	default:
		log.Infof("no congestion predictor configured, fallback estimate in use")
		return nil, nil
	}
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Estimator() entity.IEstimator {
	return ctx.estimator
}

func (ctx *Context) Junction() entity.IJunction {
	return ctx.junction
}

// AddObserver 添加控制循环观察者
func (ctx *Context) AddObserver(o Observer) {
	ctx.observerMtx.Lock()
	defer ctx.observerMtx.Unlock()
	ctx.observers = append(ctx.observers, o)
}

func (ctx *Context) notify(fn func(o Observer)) {
	ctx.observerMtx.RLock()
	defer ctx.observerMtx.RUnlock()
	for _, o := range ctx.observers {
		fn(o)
	}
}

// Snapshot 获取状态快照
func (ctx *Context) Snapshot(c context.Context) entity.Snapshot {
	return ctx.junction.Snapshot(c)
}

// ActivateEmergency 进入紧急模式并通知观察者
func (ctx *Context) ActivateEmergency(id lane.ID) (entity.Ack, error) {
	ack, err := ctx.junction.ActivateEmergency(id)
	if err != nil {
		return ack, err
	}
	state := ctx.junction.State()
	ctx.notify(func(o Observer) { o.OnEmergency(ack, state) })
	return ack, nil
}

// Close 停止sidecar与模型文件监听，可重复调用
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	ctx.stopWatch()
	if ctx.sidecar != nil {
		ctx.sidecar.Close()
	}
	// wait for graceful stop
	<-ctx.sidecarCloseCh
}
