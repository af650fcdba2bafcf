package filter

import "fmt"

// Smoother is a single-pole IIR low-pass filter over the grams-converted
// signal. Smaller alpha means heavier smoothing and slower tracking of
// real weight changes.
type Smoother struct {
	alpha  float32
	value  float32
	seeded bool
}

// NewSmoother creates a smoother with the given coefficient, 0 < alpha <= 1.
func NewSmoother(alpha float32) (*Smoother, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("iir alpha must be in (0, 1], got %g", alpha)
	}
	return &Smoother{alpha: alpha}, nil
}

// Update feeds one value and returns the filtered output. The first value
// seeds the filter directly instead of blending from zero, which would
// otherwise produce a multi-second ramp artifact at boot.
func (s *Smoother) Update(v float32) float32 {
	if !s.seeded {
		s.value = v
		s.seeded = true
		return s.value
	}
	s.value = (1-s.alpha)*s.value + s.alpha*v
	return s.value
}

// Value returns the current filtered output.
func (s *Smoother) Value() float32 {
	return s.value
}

// Seeded reports whether the filter has received its first value.
func (s *Smoother) Seeded() bool {
	return s.seeded
}
