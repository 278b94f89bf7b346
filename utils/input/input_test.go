package input_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/input"
)

func TestNormalizeFillsMissingLanes(t *testing.T) {
	s := input.Sample{
		Densities: map[lane.ID]int{lane.NORTH: 2, lane.SOUTH: -1, lane.EAST: 3},
		Counts:    map[lane.ID]int{lane.NORTH: 1, lane.SOUTH: 4, lane.EAST: 5},
	}
	out, fixed := s.Normalize()
	assert.Equal(t, []lane.ID{lane.SOUTH, lane.WEST}, fixed)
	assert.Equal(t, map[lane.ID]int{lane.NORTH: 2, lane.SOUTH: 0, lane.EAST: 3, lane.WEST: 0}, out.Densities)
	assert.Equal(t, map[lane.ID]int{lane.NORTH: 1, lane.SOUTH: 4, lane.EAST: 5, lane.WEST: 0}, out.Counts)

	empty, fixed := input.Sample{}.Normalize()
	assert.Equal(t, lane.All, fixed)
	assert.Len(t, empty.Densities, 4)
}

func TestMeanCount(t *testing.T) {
	assert.Equal(t, 4.0, input.MeanCount(map[lane.ID]int{lane.NORTH: 7, lane.SOUTH: 3, lane.EAST: 1, lane.WEST: 5}))
	assert.Equal(t, 0.0, input.MeanCount(nil))
}

func TestSequenceFeed(t *testing.T) {
	a := input.Sample{Densities: map[lane.ID]int{lane.NORTH: 1}}
	b := input.Sample{Densities: map[lane.ID]int{lane.EAST: 2}}
	f := input.NewSequenceFeed(a)
	f.Append(b)

	got, err := f.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, got)
	got, err = f.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = f.Sample(context.Background())
	assert.True(t, errors.Is(err, input.ErrSampleFeed))
}

func TestRandomFeedRanges(t *testing.T) {
	f := input.NewRandomFeed(3, 0)
	for i := 0; i < 200; i++ {
		s, err := f.Sample(context.Background())
		require.NoError(t, err)
		require.Len(t, s.Densities, 4)
		require.Len(t, s.Counts, 4)
		for _, id := range lane.All {
			assert.GreaterOrEqual(t, s.Densities[id], 0)
			assert.LessOrEqual(t, s.Densities[id], input.MaxDensity)
			assert.GreaterOrEqual(t, s.Counts[id], 0)
			assert.LessOrEqual(t, s.Counts[id], input.MaxCount)
		}
	}
}

func TestRandomFeedDropout(t *testing.T) {
	f := input.NewRandomFeed(3, 1)
	s, err := f.Sample(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Densities)
	_, fixed := s.Normalize()
	assert.Equal(t, lane.All, fixed)
}
