package hx711

import (
	"math"
	"sync"
	"time"

	"github.com/itohio/goscale/pkg/config"
)

// Sim simulates a load cell for development and tests: raw counts follow
// the applied load with a first-order settle lag plus deterministic noise
// (a sin/cos blend, so runs are reproducible without seeding an RNG).
type Sim struct {
	cfg *config.SimConfig

	mu        sync.Mutex
	loadGrams float64 // target load on the cell
	counts    float64 // current settled raw counts
	start     time.Time
	last      time.Time
}

// NewSim creates a simulated cell with the configured initial load.
func NewSim(cfg *config.SimConfig) *Sim {
	now := time.Now()
	s := &Sim{
		cfg:       cfg,
		loadGrams: cfg.LoadGrams,
		start:     now,
		last:      now,
	}
	s.counts = s.targetCounts()
	return s
}

// SetLoad changes the simulated load; the reading settles toward it over
// the configured lag.
func (s *Sim) SetLoad(grams float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadGrams = grams
}

func (s *Sim) targetCounts() float64 {
	return float64(s.cfg.ZeroOffset) + s.loadGrams/1000.0*s.cfg.CountsPerKg
}

// Read blocks for one conversion period and returns the next raw sample.
func (s *Sim) Read() (int32, error) {
	time.Sleep(s.cfg.Conversion)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	dt := now.Sub(s.last).Seconds()
	s.last = now

	// First-order approach to the target, like a real cell settling
	// after a load change.
	tau := s.cfg.SettleLag.Seconds()
	if tau <= 0 {
		s.counts = s.targetCounts()
	} else {
		alpha := dt / tau
		if alpha > 1 {
			alpha = 1
		}
		s.counts += alpha * (s.targetCounts() - s.counts)
	}

	elapsed := now.Sub(s.start)
	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		s.cfg.NoiseCounts * 0.5

	return int32(s.counts + noise), nil
}

// Close is a no-op; it exists so Sim satisfies the same surface as the
// hardware driver.
func (s *Sim) Close() error { return nil }
