package stability

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/goscale/pkg/filter"
)

// Detector classifies the filtered weight signal as stable or unstable.
// The signal is stable once its variation against a reference value has
// stayed within DeltaGrams continuously for HoldFor, optionally AND-gated
// on the standard deviation of the recent filtered values staying below
// StdDevGrams. A pure delta test is fooled by slow drift; requiring
// sustained low variation plus bounded dispersion gives a stronger
// guarantee with HoldFor as the worst-case settle latency.
type Detector struct {
	deltaGrams  float32
	holdFor     time.Duration
	stddevGrams float32
	window      *filter.StatWindow // nil when the dispersion gate is off

	stable   bool
	seeded   bool
	refValue float32
	refAt    time.Time
}

// Options configures a Detector.
type Options struct {
	DeltaGrams  float32
	HoldFor     time.Duration
	UseStdDev   bool
	StdDevSize  int
	StdDevGrams float32
}

// NewDetector creates a detector in the unstable state.
func NewDetector(opts Options) (*Detector, error) {
	d := &Detector{
		deltaGrams:  opts.DeltaGrams,
		holdFor:     opts.HoldFor,
		stddevGrams: opts.StdDevGrams,
	}
	if opts.UseStdDev {
		w, err := filter.NewStatWindow(opts.StdDevSize)
		if err != nil {
			return nil, err
		}
		d.window = w
	}
	return d, nil
}

// Update feeds one filtered grams value and returns the resulting
// classification. The first value seeds the reference; the detector never
// reports stable before HoldFor has elapsed since seeding or since the
// last break.
func (d *Detector) Update(grams float32, now time.Time) bool {
	if d.window != nil {
		d.window.Add(grams)
	}

	if !d.seeded {
		d.seeded = true
		d.refValue = grams
		d.refAt = now
		return false
	}

	delta := math32.Abs(grams - d.refValue)
	holds := delta <= d.deltaGrams

	// The dispersion gate only speaks once it has seen enough samples,
	// avoiding false negatives at cold start.
	if holds && d.window != nil && d.window.Len() >= d.window.Cap()/2 {
		holds = d.window.StdDev() <= d.stddevGrams
	}

	if !holds {
		// The reference restarts from the newest break, not the old one,
		// so a noisy tick cannot be waited out forever.
		d.stable = false
		d.refValue = grams
		d.refAt = now
		return false
	}

	if now.Sub(d.refAt) >= d.holdFor {
		d.stable = true
	}
	return d.stable
}

// Stable returns the current classification.
func (d *Detector) Stable() bool {
	return d.stable
}

// Deadband freezes the emitted value while the signal is stable and the
// change stays below the threshold, suppressing residual micro-jitter so
// the host sees a constant number while truly settled. Presentation only;
// it never feeds back into the filter state.
type Deadband struct {
	threshold float32
	last      float32
}

// NewDeadband creates a deadband with the given threshold. A zero
// threshold passes every value through.
func NewDeadband(threshold float32) *Deadband {
	return &Deadband{threshold: threshold}
}

// Emit returns the value to present for this tick and records it.
func (d *Deadband) Emit(grams float32, stable bool) float32 {
	if stable && math32.Abs(grams-d.last) < d.threshold {
		return d.last
	}
	d.last = grams
	return grams
}

// Last returns the most recently emitted value.
func (d *Deadband) Last() float32 {
	return d.last
}
