package filter

import (
	"fmt"
	"sort"
)

// MedianWindow is a fixed-capacity ring buffer of raw ADC samples that
// rejects isolated spikes by reporting the median of the samples it holds.
// It never allocates after construction: Median sorts a scratch snapshot so
// arrival order in the ring is never disturbed.
type MedianWindow struct {
	buf     []int32
	scratch []int32
	idx     int
	count   int
}

// NewMedianWindow creates a window holding up to n samples. The size must be
// odd so the median is always a single middle element.
func NewMedianWindow(n int) (*MedianWindow, error) {
	if n <= 0 {
		return nil, fmt.Errorf("median window size must be positive, got %d", n)
	}
	if n%2 == 0 {
		return nil, fmt.Errorf("median window size must be odd, got %d", n)
	}
	return &MedianWindow{
		buf:     make([]int32, n),
		scratch: make([]int32, n),
	}, nil
}

// Add appends a sample, evicting the oldest once the window is full.
func (w *MedianWindow) Add(v int32) {
	w.buf[w.idx] = v
	w.idx = (w.idx + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// Len returns the number of samples currently held.
func (w *MedianWindow) Len() int {
	return w.count
}

// Cap returns the configured window size.
func (w *MedianWindow) Cap() int {
	return len(w.buf)
}

// Median returns the middle element of a sorted snapshot of the held
// samples. An empty window returns 0; callers treat the first tick after
// boot as a defined cold-start case.
func (w *MedianWindow) Median() int32 {
	if w.count == 0 {
		return 0
	}
	tmp := w.scratch[:w.count]
	copy(tmp, w.buf[:w.count])
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
	return tmp[w.count/2]
}
