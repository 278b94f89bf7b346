package entity

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/config"
)

type ITaskContext interface {
	Clock() *clock.Clock
	RuntimeConfig() *config.RuntimeConfig
	Estimator() IEstimator
}
