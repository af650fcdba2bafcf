package filter

import (
	"fmt"

	"github.com/chewxy/math32"
)

// StatWindow is a fixed-capacity ring buffer of filtered grams values used
// by the stability detector's dispersion gate.
type StatWindow struct {
	buf   []float32
	idx   int
	count int
}

// NewStatWindow creates a window holding up to n values.
func NewStatWindow(n int) (*StatWindow, error) {
	if n <= 0 {
		return nil, fmt.Errorf("stat window size must be positive, got %d", n)
	}
	return &StatWindow{buf: make([]float32, n)}, nil
}

// Add appends a value, evicting the oldest once the window is full.
func (w *StatWindow) Add(v float32) {
	w.buf[w.idx] = v
	w.idx = (w.idx + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Len returns the number of values currently held.
func (w *StatWindow) Len() int {
	return w.count
}

// Cap returns the configured window size.
func (w *StatWindow) Cap() int {
	return len(w.buf)
}

// Mean returns the arithmetic mean of the held values, 0 when empty.
func (w *StatWindow) Mean() float32 {
	if w.count == 0 {
		return 0
	}
	var acc float64
	for _, v := range w.buf[:w.count] {
		acc += float64(v)
	}
	return float32(acc / float64(w.count))
}

// StdDev returns the population standard deviation of the held values,
// 0 when empty.
func (w *StatWindow) StdDev() float32 {
	if w.count == 0 {
		return 0
	}
	mu := w.Mean()
	var acc float64
	for _, v := range w.buf[:w.count] {
		d := float64(v - mu)
		acc += d * d
	}
	return math32.Sqrt(float32(acc / float64(w.count)))
}
