package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/config"
)

func TestParseAndDefaults(t *testing.T) {
	c, err := config.Parse([]byte(`
control:
  tick_interval: 1s
  emergency_duration: 15
congestion:
  model_file: model.json
server:
  http: ":8080"
`))
	require.NoError(t, err)

	rc := config.NewRuntimeConfig(c)
	assert.Equal(t, time.Second, rc.C.TickInterval)
	assert.Equal(t, int32(15), rc.C.EmergencyDuration)
	assert.Equal(t, int32(config.DefaultCycle), rc.C.DefaultCycle)
	assert.Equal(t, int32(config.DefaultBaseGreen), rc.C.BaseGreen)
	assert.Equal(t, int32(config.DefaultDensityFactor), rc.C.DensityFactor)
	assert.Equal(t, "model.json", rc.E.ModelFile)
	assert.Equal(t, config.DefaultPredictTimeout, rc.E.Timeout)
	assert.Equal(t, ":8080", rc.S.HTTP)
	assert.Equal(t, []string{"*"}, rc.S.CorsOrigins)
	assert.Equal(t, "GEMINI_API_KEY", rc.A.APIKeyEnv)
	assert.Equal(t, 300, rc.A.MaxOutputTokens)
	assert.Equal(t, "ticks", rc.O.Col)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := config.Parse([]byte("control:\n  unknown_field: 1\n"))
	assert.Error(t, err)
}

func TestEmptyConfig(t *testing.T) {
	rc := config.NewRuntimeConfig(config.Config{})
	assert.Equal(t, config.DefaultTickInterval, rc.C.TickInterval)
	assert.Equal(t, config.DefaultHTTPAddr, rc.S.HTTP)
	assert.Empty(t, rc.E.ModelFile)
	assert.Empty(t, rc.O.URI)
}

func TestInitialSampleDefaults(t *testing.T) {
	rc := config.NewRuntimeConfig(config.Config{})
	assert.Equal(t, map[string]int{"NORTH": 4, "SOUTH": 1, "EAST": 0, "WEST": 2}, rc.C.InitialDensities)
	assert.Equal(t, map[string]int{"NORTH": 7, "SOUTH": 3, "EAST": 1, "WEST": 5}, rc.C.InitialCounts)

	c, err := config.Parse([]byte("control:\n  initial_counts: {north: 1}\n"))
	require.NoError(t, err)
	rc = config.NewRuntimeConfig(c)
	assert.Equal(t, map[string]int{"north": 1}, rc.C.InitialCounts)
}
