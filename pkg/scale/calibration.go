package scale

import (
	"errors"
	"fmt"
)

// Store keys, matching the NVS namespace layout of the original firmware.
const (
	KeyScaleFactor = "cal_factor"
	KeyTareOffset  = "tare_offset"

	// DefaultScaleFactor leaves readings in raw units until the device is
	// calibrated; the device still emits something useful before that.
	DefaultScaleFactor = 1.0
	// DefaultTareOffset assumes an unloaded cell until the first tare.
	DefaultTareOffset = 0
)

var (
	// ErrBadWeight reports a calibration request with a non-positive
	// reference weight.
	ErrBadWeight = errors.New("reference weight must be positive")
	// ErrZeroNet reports a calibration whose averaged raw reading equals
	// the tare offset, meaning tare was not applied or the load did not
	// register.
	ErrZeroNet = errors.New("zero net raw delta")
)

// Calibration converts raw load-cell counts to grams. Both parameters are
// durable: they are loaded once at boot and written back immediately on
// change. Only a successful tare or calibrate mutates them.
type Calibration struct {
	store Store

	scaleFactor float32 // grams per raw unit
	tareOffset  int32   // raw units
}

// LoadCalibration reads the persisted parameters, falling back to the
// documented defaults (1.0, 0) when the store holds no values.
func LoadCalibration(store Store) (*Calibration, error) {
	factor, err := store.LoadFloat(KeyScaleFactor, DefaultScaleFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to load scale factor: %w", err)
	}
	tare, err := store.LoadInt(KeyTareOffset, DefaultTareOffset)
	if err != nil {
		return nil, fmt.Errorf("failed to load tare offset: %w", err)
	}
	return &Calibration{
		store:       store,
		scaleFactor: float32(factor),
		tareOffset:  int32(tare),
	}, nil
}

// ScaleFactor returns the current grams-per-raw-unit multiplier.
func (c *Calibration) ScaleFactor() float32 {
	return c.scaleFactor
}

// TareOffset returns the current zero baseline in raw units.
func (c *Calibration) TareOffset() int32 {
	return c.tareOffset
}

// Grams converts a raw reading to grams. Pure function of the calibration
// parameters; defined even at the uninitialized default factor.
func (c *Calibration) Grams(raw int32) float32 {
	return float32(raw-c.tareOffset) * c.scaleFactor
}

// Tare records raw as the new zero baseline and persists it. The offset
// takes effect for the session even when persistence fails; the returned
// error then reports the lost durability.
func (c *Calibration) Tare(raw int32) error {
	c.tareOffset = raw
	if err := c.store.SaveInt(KeyTareOffset, int64(raw)); err != nil {
		return fmt.Errorf("tare offset not persisted: %w", err)
	}
	return nil
}

// Calibrate derives a new scale factor from a reference weight and the
// averaged raw reading taken with that weight on the cell. It rejects a
// non-positive reference (ErrBadWeight) and an averaged reading equal to
// the tare offset (ErrZeroNet) without touching state. Like Tare, the new
// factor takes effect for the session even when persistence fails.
func (c *Calibration) Calibrate(refGrams float32, meanRaw int32) (float32, error) {
	if refGrams <= 0 {
		return 0, ErrBadWeight
	}
	net := meanRaw - c.tareOffset
	if net == 0 {
		return 0, ErrZeroNet
	}
	c.scaleFactor = refGrams / float32(net)
	if err := c.store.SaveFloat(KeyScaleFactor, float64(c.scaleFactor)); err != nil {
		return c.scaleFactor, fmt.Errorf("scale factor not persisted: %w", err)
	}
	return c.scaleFactor, nil
}
