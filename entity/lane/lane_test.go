package lane_test

import (
	"encoding/json"
	"errors"
	"testing"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
)

func TestParse(t *testing.T) {
	id, err := lane.Parse("EAST")
	require.NoError(t, err)
	assert.Equal(t, lane.EAST, id)

	id, err = lane.Parse(" west ")
	require.NoError(t, err)
	assert.Equal(t, lane.WEST, id)

	_, err = lane.Parse("NORTHWEST")
	assert.True(t, errors.Is(err, lane.ErrInvalidLane))
	_, err = lane.Parse("")
	assert.True(t, errors.Is(err, lane.ErrInvalidLane))
}

func TestOrderingAndNames(t *testing.T) {
	assert.Equal(t, []lane.ID{lane.NORTH, lane.SOUTH, lane.EAST, lane.WEST}, lane.All)
	assert.Equal(t, "SOUTH", lane.SOUTH.String())
	assert.Equal(t, "W", lane.WEST.Short())
	assert.False(t, lane.ID(9).Valid())
	assert.Equal(t, "ID(9)", lane.ID(9).String())
}

func TestJSONKeys(t *testing.T) {
	data, err := json.Marshal(map[lane.ID]int{lane.NORTH: 7, lane.EAST: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"NORTH":7,"EAST":1}`, string(data))

	var back map[lane.ID]int
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 7, back[lane.NORTH])

	assert.Error(t, json.Unmarshal([]byte(`{"UP":1}`), &back))
}

func TestRegistryExactlyOneGreen(t *testing.T) {
	r := lane.NewRegistry(lane.NORTH, map[lane.ID]int{lane.NORTH: 4}, nil)
	assert.Equal(t, []lane.ID{lane.NORTH}, r.Green())
	assert.Equal(t, 4, r.Get(lane.NORTH).Density)
	assert.Equal(t, 0, r.Get(lane.WEST).VehicleCount)

	for _, id := range lane.All {
		r.SetGreen(id)
		assert.Equal(t, []lane.ID{id}, r.Green())
	}
	assert.Equal(t, []mapv2.LightState{
		mapv2.LightState_LIGHT_STATE_RED,
		mapv2.LightState_LIGHT_STATE_RED,
		mapv2.LightState_LIGHT_STATE_RED,
		mapv2.LightState_LIGHT_STATE_GREEN,
	}, r.Lights())
}

func TestRegistryCopies(t *testing.T) {
	r := lane.NewRegistry(lane.SOUTH, nil, map[lane.ID]int{lane.SOUTH: 3})
	lanes := r.Lanes()
	lanes[0].Density = 99
	assert.Equal(t, 0, r.Get(lane.NORTH).Density)
	assert.Equal(t, 3, r.Counts()[lane.SOUTH])
	assert.Len(t, r.Densities(), 4)
	assert.Equal(t, "GREEN", lane.LightName(r.Get(lane.SOUTH).Light))
	assert.Equal(t, "RED", lane.LightName(r.Get(lane.EAST).Light))
}

func TestRegistryGetInvalidPanics(t *testing.T) {
	r := lane.NewRegistry(lane.NORTH, nil, nil)
	assert.Panics(t, func() { r.Get(lane.ID(-1)) })
}
