// 信号控制服务的Prometheus指标
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "signal"

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "ticks_total",
			Help:      "Count of control loop ticks.",
		},
	)
	laneSwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "lane_switches_total",
			Help:      "Count of density driven green lane switches.",
		},
		[]string{"from", "to"},
	)
	emergencyActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "emergency_activations_total",
			Help:      "Count of emergency override activations per lane.",
		},
		[]string{"lane"},
	)
	sampleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "sample_errors_total",
			Help:      "Count of ticks with a failed feed or a lane missing from the sample.",
		},
		[]string{"kind"},
	)
	estimatorFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "congestion_fallbacks_total",
			Help:      "Count of congestion estimates that fell back to the static default.",
		},
		[]string{"reason"},
	)
	remainingSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "remaining_seconds",
			Help:      "Remaining seconds of the current green phase.",
		},
	)
	activeLane = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "active_lane",
			Help:      "1 for the lane that is currently green, 0 otherwise.",
		},
		[]string{"lane"},
	)
	emergencyActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "emergency_active",
			Help:      "1 while an emergency override is in effect.",
		},
	)
)

var registerMetrics sync.Once

// Register 注册全部指标
// 参数：registerer-指标注册器，nil表示使用prometheus默认注册器
func Register(registerer prometheus.Registerer) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerMetrics.Do(func() {
		registerer.MustRegister(
			ticksTotal,
			laneSwitchesTotal,
			emergencyActivationsTotal,
			sampleErrorsTotal,
			estimatorFallbacksTotal,
			remainingSeconds,
			activeLane,
			emergencyActive,
		)
	})
}

// RecordTick 记录一次tick之后的控制状态
// 参数：active-当前绿灯车道，lanes-全部车道名，remaining-剩余时间，emergency-是否处于紧急模式
func RecordTick(active string, lanes []string, remaining int32, emergency bool) {
	ticksTotal.Inc()
	RecordState(active, lanes, remaining, emergency)
}

// RecordState 更新状态类指标
func RecordState(active string, lanes []string, remaining int32, emergency bool) {
	remainingSeconds.Set(float64(remaining))
	for _, l := range lanes {
		if l == active {
			activeLane.WithLabelValues(l).Set(1)
		} else {
			activeLane.WithLabelValues(l).Set(0)
		}
	}
	if emergency {
		emergencyActive.Set(1)
	} else {
		emergencyActive.Set(0)
	}
}

// RecordLaneSwitch 记录一次按密度切换绿灯车道
func RecordLaneSwitch(from, to string) {
	laneSwitchesTotal.WithLabelValues(from, to).Inc()
}

// RecordEmergency 记录一次紧急模式激活
func RecordEmergency(lane string) {
	emergencyActivationsTotal.WithLabelValues(lane).Inc()
}

// RecordSampleError 记录采样异常，kind为feed或missing_lane
func RecordSampleError(kind string) {
	sampleErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordEstimatorFallback 记录一次拥堵估计回退
func RecordEstimatorFallback(reason string) {
	estimatorFallbacksTotal.WithLabelValues(reason).Inc()
}
