//go:build !linux

package hx711

import "fmt"

// HX711 is only available on Linux (gpiochip character device).
type HX711 struct{}

// Open fails on non-Linux platforms; use the simulator instead.
func Open(chip string, doutPin, sckPin int) (*HX711, error) {
	return nil, fmt.Errorf("hx711 gpio not supported on this platform")
}

func (h *HX711) Read() (int32, error) {
	return 0, fmt.Errorf("hx711 gpio not supported on this platform")
}

func (h *HX711) Close() error { return nil }
