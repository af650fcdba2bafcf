//go:build linux

package hx711

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// HX711 drives the 24-bit delta-sigma load-cell amplifier over two GPIO
// lines of a Linux gpiochip: a data-out line pulled low by the chip when a
// conversion is ready, and a clock line used to shift the bits out. Gain
// is fixed at 128 (one extra clock pulse after the 24 data bits).
type HX711 struct {
	dout *gpiocdev.Line
	sck  *gpiocdev.Line

	readyTimeout time.Duration
}

// Open requests the two GPIO lines from the named chip (e.g. "gpiochip0").
func Open(chip string, doutPin, sckPin int) (*HX711, error) {
	dout, err := gpiocdev.RequestLine(chip, doutPin, gpiocdev.AsInput, gpiocdev.WithConsumer("goscale-hx711"))
	if err != nil {
		return nil, fmt.Errorf("failed to request dout line %d: %w", doutPin, err)
	}
	sck, err := gpiocdev.RequestLine(chip, sckPin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("goscale-hx711"))
	if err != nil {
		_ = dout.Close()
		return nil, fmt.Errorf("failed to request sck line %d: %w", sckPin, err)
	}
	return &HX711{
		dout:         dout,
		sck:          sck,
		readyTimeout: 500 * time.Millisecond,
	}, nil
}

// Read blocks until the next conversion is ready, then shifts out one
// signed 24-bit sample. At the chip's 10-80 SPS output rates the wait is
// short relative to the sampling tick.
func (h *HX711) Read() (int32, error) {
	if err := h.waitReady(); err != nil {
		return 0, err
	}

	var raw int32
	for bit := 0; bit < 24; bit++ {
		if err := h.sck.SetValue(1); err != nil {
			return 0, fmt.Errorf("sck high: %w", err)
		}
		v, err := h.dout.Value()
		if err != nil {
			return 0, fmt.Errorf("dout read: %w", err)
		}
		if err := h.sck.SetValue(0); err != nil {
			return 0, fmt.Errorf("sck low: %w", err)
		}
		raw <<= 1
		if v != 0 {
			raw |= 1
		}
	}

	// 25th pulse selects channel A, gain 128 for the next conversion.
	if err := h.sck.SetValue(1); err != nil {
		return 0, fmt.Errorf("sck high: %w", err)
	}
	if err := h.sck.SetValue(0); err != nil {
		return 0, fmt.Errorf("sck low: %w", err)
	}

	// Sign-extend the 24-bit two's complement value.
	raw <<= 8
	raw >>= 8
	return raw, nil
}

// waitReady polls dout until the chip pulls it low.
func (h *HX711) waitReady() error {
	deadline := time.Now().Add(h.readyTimeout)
	for {
		v, err := h.dout.Value()
		if err != nil {
			return fmt.Errorf("dout read: %w", err)
		}
		if v == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("conversion not ready after %v", h.readyTimeout)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// Close releases both GPIO lines.
func (h *HX711) Close() error {
	err1 := h.dout.Close()
	err2 := h.sck.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
