package filter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMedianWindow_SizeValidation(t *testing.T) {
	_, err := NewMedianWindow(0)
	assert.Error(t, err)

	_, err = NewMedianWindow(-5)
	assert.Error(t, err)

	_, err = NewMedianWindow(16)
	assert.Error(t, err, "even window sizes are a configuration error")

	w, err := NewMedianWindow(21)
	require.NoError(t, err)
	assert.Equal(t, 21, w.Cap())
}

func TestMedianWindow_EmptyReturnsZero(t *testing.T) {
	w, err := NewMedianWindow(5)
	require.NoError(t, err)
	assert.Equal(t, int32(0), w.Median())
	assert.Equal(t, 0, w.Len())
}

func TestMedianWindow_Median(t *testing.T) {
	w, err := NewMedianWindow(5)
	require.NoError(t, err)

	w.Add(10)
	assert.Equal(t, int32(10), w.Median())

	w.Add(30)
	w.Add(20)
	assert.Equal(t, int32(20), w.Median())

	// Isolated spike is rejected once the window has context.
	w.Add(1000000)
	w.Add(25)
	assert.Equal(t, int32(25), w.Median())
}

func TestMedianWindow_EvictsOldest(t *testing.T) {
	w, err := NewMedianWindow(3)
	require.NoError(t, err)

	w.Add(1)
	w.Add(2)
	w.Add(3)
	w.Add(100)
	w.Add(100)

	// Only {3, 100, 100} remain.
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, int32(100), w.Median())
}

func TestMedianWindow_BoundedByHeldSamples(t *testing.T) {
	// Property: the median never leaves the min/max of held samples.
	w, err := NewMedianWindow(15)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	held := make([]int32, 0, 15)
	for i := 0; i < 500; i++ {
		v := int32(rng.Intn(1<<24) - 1<<23)
		w.Add(v)
		held = append(held, v)
		if len(held) > 15 {
			held = held[1:]
		}

		lo, hi := held[0], held[0]
		for _, h := range held {
			if h < lo {
				lo = h
			}
			if h > hi {
				hi = h
			}
		}
		m := w.Median()
		assert.GreaterOrEqual(t, m, lo)
		assert.LessOrEqual(t, m, hi)
	}
}

func TestMedianWindow_SnapshotDoesNotDisturbOrder(t *testing.T) {
	w, err := NewMedianWindow(5)
	require.NoError(t, err)

	for _, v := range []int32{5, 1, 4, 2, 3} {
		w.Add(v)
	}
	assert.Equal(t, int32(3), w.Median())
	assert.Equal(t, int32(3), w.Median(), "repeated calls must agree")

	// Evict 5 and 1; held set is {4, 2, 3, 9, 9}.
	w.Add(9)
	w.Add(9)
	assert.Equal(t, int32(4), w.Median())
}

func TestNewSmoother_AlphaValidation(t *testing.T) {
	_, err := NewSmoother(0)
	assert.Error(t, err)

	_, err = NewSmoother(-0.1)
	assert.Error(t, err)

	_, err = NewSmoother(1.1)
	assert.Error(t, err)

	s, err := NewSmoother(1)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSmoother_SeedsOnFirstValue(t *testing.T) {
	s, err := NewSmoother(0.1)
	require.NoError(t, err)

	assert.False(t, s.Seeded())
	out := s.Update(100)
	assert.True(t, s.Seeded())
	assert.Equal(t, float32(100), out, "first value seeds directly, no blend from zero")
}

func TestSmoother_Converges(t *testing.T) {
	s, err := NewSmoother(0.08)
	require.NoError(t, err)

	s.Update(0)
	var out float32
	for i := 0; i < 200; i++ {
		out = s.Update(50)
	}
	assert.InDelta(t, 50, out, 0.01)
}

func TestSmoother_SingleStep(t *testing.T) {
	s, err := NewSmoother(0.25)
	require.NoError(t, err)

	s.Update(100)
	out := s.Update(200)
	// 0.75*100 + 0.25*200
	assert.InDelta(t, 125, out, 1e-4)
	assert.InDelta(t, 125, s.Value(), 1e-4)
}

func TestStatWindow_MeanAndStdDev(t *testing.T) {
	w, err := NewStatWindow(4)
	require.NoError(t, err)

	assert.Equal(t, float32(0), w.Mean())
	assert.Equal(t, float32(0), w.StdDev())

	for _, v := range []float32{2, 4, 4, 4} {
		w.Add(v)
	}
	assert.InDelta(t, 3.5, float64(w.Mean()), 1e-5)
	// Population sigma of {2,4,4,4} is sqrt(0.75).
	assert.InDelta(t, 0.8660254, float64(w.StdDev()), 1e-5)
}

func TestStatWindow_ConstantInputHasZeroSigma(t *testing.T) {
	w, err := NewStatWindow(25)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		w.Add(123.45)
	}
	assert.Equal(t, 25, w.Len())
	assert.InDelta(t, 0, float64(w.StdDev()), 1e-4)
}

func TestStatWindow_Eviction(t *testing.T) {
	w, err := NewStatWindow(3)
	require.NoError(t, err)

	w.Add(1000)
	w.Add(1)
	w.Add(1)
	w.Add(1)

	// The 1000 has been evicted.
	assert.InDelta(t, 1, float64(w.Mean()), 1e-6)
	assert.InDelta(t, 0, float64(w.StdDev()), 1e-6)
}
