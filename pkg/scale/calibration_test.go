package scale

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCalibration_Defaults(t *testing.T) {
	c, err := LoadCalibration(NewMemStore())
	require.NoError(t, err)

	assert.Equal(t, float32(1.0), c.ScaleFactor())
	assert.Equal(t, int32(0), c.TareOffset())
	// Uncalibrated conversion still yields raw-unit-scaled output.
	assert.Equal(t, float32(12345), c.Grams(12345))
}

func TestCalibration_Grams(t *testing.T) {
	store := NewMemStore()
	c, err := LoadCalibration(store)
	require.NoError(t, err)

	require.NoError(t, c.Tare(50000))
	_, err = c.Calibrate(500, 100000) // net 50000 -> 0.01 g per count
	require.NoError(t, err)

	assert.InDelta(t, 0.01, float64(c.ScaleFactor()), 1e-9)
	assert.InDelta(t, 100, float64(c.Grams(60000)), 1e-3)
	assert.InDelta(t, -100, float64(c.Grams(40000)), 1e-3)
}

func TestCalibration_TarePersistsImmediately(t *testing.T) {
	store := NewMemStore()
	c, err := LoadCalibration(store)
	require.NoError(t, err)

	require.NoError(t, c.Tare(84210))
	assert.Equal(t, int32(84210), c.TareOffset())
	// A grams computation on the same raw reading is exactly zero.
	assert.Equal(t, float32(0), c.Grams(84210))

	// A restart observes the persisted value.
	c2, err := LoadCalibration(store)
	require.NoError(t, err)
	assert.Equal(t, int32(84210), c2.TareOffset())
}

func TestCalibration_RejectsBadWeight(t *testing.T) {
	c, err := LoadCalibration(NewMemStore())
	require.NoError(t, err)

	for _, w := range []float32{0, -1, -500} {
		_, err := c.Calibrate(w, 100000)
		assert.ErrorIs(t, err, ErrBadWeight)
	}
	// State untouched.
	assert.Equal(t, float32(1.0), c.ScaleFactor())
	assert.Equal(t, int32(0), c.TareOffset())
}

func TestCalibration_RejectsZeroNet(t *testing.T) {
	c, err := LoadCalibration(NewMemStore())
	require.NoError(t, err)

	require.NoError(t, c.Tare(30000))
	_, err = c.Calibrate(500, 30000)
	assert.ErrorIs(t, err, ErrZeroNet)

	assert.Equal(t, float32(1.0), c.ScaleFactor())
	assert.Equal(t, int32(30000), c.TareOffset())
}

func TestCalibration_Factor(t *testing.T) {
	c, err := LoadCalibration(NewMemStore())
	require.NoError(t, err)

	factor, err := c.Calibrate(500, 50000)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, float64(factor), 1e-9)
	assert.Equal(t, factor, c.ScaleFactor())
}

func TestCalibration_NegativeNet(t *testing.T) {
	// An inverted cell produces a negative net; calibration still works
	// and yields a negative factor.
	c, err := LoadCalibration(NewMemStore())
	require.NoError(t, err)

	require.NoError(t, c.Tare(100000))
	factor, err := c.Calibrate(500, 50000)
	require.NoError(t, err)
	assert.InDelta(t, -0.01, float64(factor), 1e-9)
}

func TestCalibration_PersistFailureKeepsSessionValue(t *testing.T) {
	store := NewMemStore()
	store.FailSaves = true
	c, err := LoadCalibration(store)
	require.NoError(t, err)

	err = c.Tare(1234)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadWeight)
	assert.Equal(t, int32(1234), c.TareOffset(), "in-memory value takes effect")

	factor, err := c.Calibrate(100, 11234)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrZeroNet)
	assert.InDelta(t, 0.01, float64(factor), 1e-9)
	assert.Equal(t, factor, c.ScaleFactor())
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	s := NewFileStore(path)

	// Absent keys resolve to defaults.
	f, err := s.LoadFloat(KeyScaleFactor, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)
	i, err := s.LoadInt(KeyTareOffset, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), i)

	require.NoError(t, s.SaveFloat(KeyScaleFactor, 0.00123456))
	require.NoError(t, s.SaveInt(KeyTareOffset, -84210))

	// A fresh store on the same file observes the written values.
	s2 := NewFileStore(path)
	f, err = s2.LoadFloat(KeyScaleFactor, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.00123456, f, 1e-12)
	i, err = s2.LoadInt(KeyTareOffset, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-84210), i)
}

func TestFileStore_SurvivesCalibrationCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")

	c, err := LoadCalibration(NewFileStore(path))
	require.NoError(t, err)
	require.NoError(t, c.Tare(50000))
	_, err = c.Calibrate(500, 100000)
	require.NoError(t, err)

	// Simulated power cycle.
	c2, err := LoadCalibration(NewFileStore(path))
	require.NoError(t, err)
	assert.Equal(t, int32(50000), c2.TareOffset())
	assert.InDelta(t, 0.01, float64(c2.ScaleFactor()), 1e-7)
}
