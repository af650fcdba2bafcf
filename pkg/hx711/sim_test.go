package hx711

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goscale/pkg/config"
)

func newTestSim(loadGrams float64) *Sim {
	cfg := config.Default().Sim
	cfg.ZeroOffset = 8400
	cfg.CountsPerKg = 1000000
	cfg.NoiseCounts = 0
	cfg.SettleLag = 10 * time.Millisecond
	cfg.Conversion = time.Millisecond
	cfg.LoadGrams = loadGrams
	return NewSim(&cfg)
}

func TestSim_UnloadedReadsZeroOffset(t *testing.T) {
	s := newTestSim(0)

	raw, err := s.Read()
	require.NoError(t, err)
	assert.InDelta(t, 8400, float64(raw), 1)
}

func TestSim_SettlesTowardLoad(t *testing.T) {
	s := newTestSim(0)
	s.SetLoad(500) // 500 g = 500000 counts above the zero offset

	var raw int32
	for i := 0; i < 60; i++ {
		var err error
		raw, err = s.Read()
		require.NoError(t, err)
	}
	assert.InDelta(t, 508400, float64(raw), 2500)
}

func TestSim_SettleIsGradual(t *testing.T) {
	s := newTestSim(0)
	first, err := s.Read()
	require.NoError(t, err)

	s.SetLoad(1000)
	next, err := s.Read()
	require.NoError(t, err)

	assert.Greater(t, next, first, "reading moves toward the new load")
	assert.Less(t, next, int32(1008400), "but not instantaneously")
}

func TestSim_DeterministicNoiseIsBounded(t *testing.T) {
	cfg := config.Default().Sim
	cfg.NoiseCounts = 100
	cfg.SettleLag = 0
	cfg.Conversion = 100 * time.Microsecond
	cfg.LoadGrams = 0
	s := NewSim(&cfg)

	for i := 0; i < 50; i++ {
		raw, err := s.Read()
		require.NoError(t, err)
		assert.InDelta(t, float64(cfg.ZeroOffset), float64(raw), 101)
	}
}
