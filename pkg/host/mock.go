package host

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/goscale/pkg/config"
	"github.com/itohio/goscale/pkg/proto"
)

// Mock simulates a connected scale for testing and development: readings
// settle toward the applied load with deterministic noise, and tare and
// calibrate answer with the same protocol lines as the device.
type Mock struct {
	cfg *config.SimConfig

	readings  chan Reading
	responses chan Response
	done      chan struct{}
	mu        sync.RWMutex
	connected bool

	period time.Duration

	// Simulation state
	startTime  time.Time
	loadGrams  float64
	grams      float64 // settled displayed value
	tared      bool
	calibrated bool
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.SimConfig) *Mock {
	if cfg == nil {
		def := config.Default().Sim
		cfg = &def
	}

	return &Mock{
		cfg:       cfg,
		readings:  make(chan Reading, DefaultBufferSize),
		responses: make(chan Response, DefaultBufferSize),
		done:      make(chan struct{}),
		period:    20 * time.Millisecond,
		loadGrams: cfg.LoadGrams,
	}
}

// SetLoad changes the simulated load on the cell.
func (m *Mock) SetLoad(grams float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadGrams = grams
}

// Connect starts generating readings.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = time.Now()
	m.grams = m.loadGrams

	m.emitResponse(proto.Hello("GOSCALE-MOCK"))

	go m.generate()

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	close(m.done)
	m.connected = false
	close(m.readings)
	close(m.responses)

	return nil
}

// Readings returns the channel of simulated telemetry frames.
func (m *Mock) Readings() <-chan Reading {
	return m.readings
}

// Responses returns the channel of simulated protocol responses.
func (m *Mock) Responses() <-chan Response {
	return m.responses
}

// Tare acknowledges immediately and zeroes the displayed value.
func (m *Mock) Tare() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("not connected")
	}

	m.tared = true
	m.loadGrams = 0
	m.grams = 0
	m.emitResponse(proto.AckTare)
	return nil
}

// Calibrate validates the reference weight the way the device does.
func (m *Mock) Calibrate(refGrams float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("not connected")
	}

	if refGrams <= 0 {
		m.emitResponse(proto.ErrCalWeight)
		return nil
	}
	if m.grams == 0 && !m.tared {
		m.emitResponse(proto.ErrCalZero)
		return nil
	}
	m.calibrated = true
	// The factor a real cell would derive: grams per raw count.
	factor := 1000.0 / m.cfg.CountsPerKg
	m.emitResponse(proto.AckCalibrate(float32(factor)))
	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// emitResponse queues a response line; callers hold m.mu.
func (m *Mock) emitResponse(line string) {
	select {
	case m.responses <- Response{Timestamp: time.Now(), Line: line}:
	default:
	}
}

// generate produces simulated readings at the device cadence.
func (m *Mock) generate() {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			r := m.nextReading()
			select {
			case m.readings <- r:
			case <-m.done:
				return
			default:
				// Channel full, skip
			}
		}
	}
}

// nextReading advances the settle model by one period.
func (m *Mock) nextReading() Reading {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(m.startTime)

	tau := m.cfg.SettleLag.Seconds()
	if tau <= 0 {
		m.grams = m.loadGrams
	} else {
		alpha := m.period.Seconds() / tau
		if alpha > 1 {
			alpha = 1
		}
		m.grams += alpha * (m.loadGrams - m.grams)
	}

	noiseGrams := 0.0
	if m.cfg.CountsPerKg > 0 {
		noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
			math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
			m.cfg.NoiseCounts * 0.5
		noiseGrams = noise / m.cfg.CountsPerKg * 1000.0
	}

	stable := math.Abs(m.grams-m.loadGrams) < 0.05 && now.Sub(m.startTime) > time.Second

	return Reading{
		Timestamp: now,
		Grams:     m.grams + noiseGrams,
		Stable:    stable,
	}
}
