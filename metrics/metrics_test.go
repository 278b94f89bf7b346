package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordState(t *testing.T) {
	Register(prometheus.NewRegistry())

	before := testutil.ToFloat64(ticksTotal)
	RecordTick("SOUTH", []string{"NORTH", "SOUTH"}, 24, false)
	assert.Equal(t, before+1, testutil.ToFloat64(ticksTotal))
	assert.Equal(t, 24.0, testutil.ToFloat64(remainingSeconds))
	assert.Equal(t, 1.0, testutil.ToFloat64(activeLane.WithLabelValues("SOUTH")))
	assert.Equal(t, 0.0, testutil.ToFloat64(activeLane.WithLabelValues("NORTH")))
	assert.Equal(t, 0.0, testutil.ToFloat64(emergencyActive))

	RecordState("EAST", []string{"NORTH", "EAST"}, 20, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(emergencyActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(activeLane.WithLabelValues("EAST")))
}

func TestCounters(t *testing.T) {
	RecordEmergency("WEST")
	RecordEmergency("WEST")
	assert.Equal(t, 2.0, testutil.ToFloat64(emergencyActivationsTotal.WithLabelValues("WEST")))

	RecordLaneSwitch("NORTH", "SOUTH")
	assert.Equal(t, 1.0, testutil.ToFloat64(laneSwitchesTotal.WithLabelValues("NORTH", "SOUTH")))

	RecordSampleError("missing_lane")
	assert.Equal(t, 1.0, testutil.ToFloat64(sampleErrorsTotal.WithLabelValues("missing_lane")))

	RecordEstimatorFallback("unavailable")
	assert.Equal(t, 1.0, testutil.ToFloat64(estimatorFallbacksTotal.WithLabelValues("unavailable")))
}
