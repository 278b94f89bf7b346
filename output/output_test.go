package output_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/output"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	testclock "k8s.io/utils/clock/testing"
)

type fakeCollection struct {
	mtx  sync.Mutex
	docs []any
	err  error
}

func (c *fakeCollection) InsertOne(ctx context.Context, doc interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.docs = append(c.docs, doc)
	return &mongo.InsertOneResult{}, nil
}

var now = time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)

var state = entity.State{
	ActiveLane:    lane.SOUTH,
	RemainingTime: 24,
	Lanes: []lane.Lane{
		{ID: lane.NORTH, Light: mapv2.LightState_LIGHT_STATE_RED, Density: 2, VehicleCount: 2},
		{ID: lane.SOUTH, Light: mapv2.LightState_LIGHT_STATE_GREEN, Density: 5, VehicleCount: 6},
		{ID: lane.EAST, Light: mapv2.LightState_LIGHT_STATE_RED, Density: 1, VehicleCount: 1},
		{ID: lane.WEST, Light: mapv2.LightState_LIGHT_STATE_RED, Density: 0, VehicleCount: 0},
	},
}

func TestDisabled(t *testing.T) {
	assert.Nil(t, output.New(config.Output{}, testclock.NewFakeClock(now)))
}

func TestRecorder(t *testing.T) {
	col := &fakeCollection{}
	r := output.NewWithInserter(col, testclock.NewFakeClock(now))

	r.OnTick(1, state)
	ack := entity.Ack{Status: "EMERGENCY ACTIVATED", Lane: lane.EAST, ID: uuid.New()}
	r.OnEmergency(ack, state)
	r.Close()
	r.Close()

	require.Len(t, col.docs, 2)
	assert.Equal(t, output.TickDoc{
		Kind:          "tick",
		Tick:          1,
		Time:          now,
		ActiveLane:    "SOUTH",
		RemainingTime: 24,
		Lanes: []output.LaneDoc{
			{Lane: "NORTH", Light: "RED", Density: 2, Count: 2},
			{Lane: "SOUTH", Light: "GREEN", Density: 5, Count: 6},
			{Lane: "EAST", Light: "RED", Density: 1, Count: 1},
			{Lane: "WEST", Light: "RED", Density: 0, Count: 0},
		},
	}, col.docs[0])
	assert.Equal(t, output.EmergencyDoc{
		Kind: "emergency",
		ID:   ack.ID.String(),
		Time: now,
		Lane: "EAST",
	}, col.docs[1])
}

func TestWriteFailureIsLogged(t *testing.T) {
	col := &fakeCollection{err: errors.New("connection refused")}
	r := output.NewWithInserter(col, testclock.NewFakeClock(now))
	for i := int64(1); i <= 3; i++ {
		r.OnTick(i, state)
	}
	r.Close()
	assert.Empty(t, col.docs)
}
