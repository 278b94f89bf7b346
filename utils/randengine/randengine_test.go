package randengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/randengine"
)

func TestIntRangeBounds(t *testing.T) {
	e := randengine.New(7)
	for i := 0; i < 1000; i++ {
		v := e.IntRange(0, 5)
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 5)
	}
	assert.Equal(t, 3, e.IntRange(3, 3))
	assert.Equal(t, 4, e.IntRange(4, 1))
}

func TestSameSeedSameSequence(t *testing.T) {
	a := randengine.New(42)
	b := randengine.New(42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.IntRange(0, 12), b.IntRange(0, 12))
	}
}

func TestPTrue(t *testing.T) {
	e := randengine.New(1)
	for i := 0; i < 100; i++ {
		assert.False(t, e.PTrue(0))
		assert.True(t, e.PTrue(1))
	}
}
