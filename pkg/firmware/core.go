// Package firmware implements the weight-sensing core: a single-threaded,
// fixed-rate loop that samples a load-cell ADC, filters the signal into a
// calibrated weight, classifies stability, and exchanges the line protocol
// with a host over a serial transport.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/itohio/goscale/pkg/config"
	"github.com/itohio/goscale/pkg/filter"
	"github.com/itohio/goscale/pkg/proto"
	"github.com/itohio/goscale/pkg/scale"
	"github.com/itohio/goscale/pkg/stability"
)

// Source yields one signed raw ADC reading per call, blocking briefly
// until the converter is ready.
type Source interface {
	Read() (int32, error)
}

// Core owns the whole pipeline state. Everything executes on the one loop:
// no locking is required, and no operation may panic or halt it — every
// error path returns control to the next tick. Introducing a second
// execution context would require explicit synchronization around the
// calibration state and the ring buffers.
type Core struct {
	cfg  *config.Config
	src  Source
	conn io.ReadWriter // Read must not block: (0, nil) when no bytes are available

	calib    *scale.Calibration
	median   *filter.MedianWindow
	smoother *filter.Smoother
	detector *stability.Detector
	deadband *stability.Deadband
	interp   *proto.Interpreter

	// Injectable for tests.
	now   func() time.Time
	sleep func(time.Duration)

	readBuf []byte
}

// New builds a core, loading the persisted calibration so the durable
// parameters are in effect before the first tick.
func New(cfg *config.Config, src Source, store scale.Store, conn io.ReadWriter) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	calib, err := scale.LoadCalibration(store)
	if err != nil {
		return nil, fmt.Errorf("failed to load calibration: %w", err)
	}
	log.Printf("Calibration loaded: factor=%.8f tare=%d", calib.ScaleFactor(), calib.TareOffset())

	median, err := filter.NewMedianWindow(cfg.Filter.MedianWindow)
	if err != nil {
		return nil, err
	}
	smoother, err := filter.NewSmoother(float32(cfg.Filter.IIRAlpha))
	if err != nil {
		return nil, err
	}
	detector, err := stability.NewDetector(stability.Options{
		DeltaGrams:  float32(cfg.Stability.DeltaGrams),
		HoldFor:     cfg.Stability.HoldFor,
		UseStdDev:   cfg.Stability.UseStdDev,
		StdDevSize:  cfg.Stability.StdDevWindow,
		StdDevGrams: float32(cfg.Stability.StdDevGrams),
	})
	if err != nil {
		return nil, err
	}

	return &Core{
		cfg:      cfg,
		src:      src,
		conn:     conn,
		calib:    calib,
		median:   median,
		smoother: smoother,
		detector: detector,
		deadband: stability.NewDeadband(float32(cfg.Stability.Deadband)),
		interp:   proto.NewInterpreter(cfg.Command.MaxLineLen),
		now:      time.Now,
		sleep:    time.Sleep,
		readBuf:  make([]byte, 64),
	}, nil
}

// Calibration exposes the live calibration state.
func (c *Core) Calibration() *scale.Calibration {
	return c.calib
}

// Run announces the device and executes ticks at the configured cadence
// until the context is cancelled.
func (c *Core) Run(ctx context.Context) error {
	c.writeLine(proto.Hello(c.cfg.Device.ID))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		c.Tick()
		c.sleep(c.cfg.Device.LoopPeriod)
	}
}

// Tick performs one loop iteration: sample, filter, classify, emit one
// telemetry line, then drain whatever inbound bytes are available.
func (c *Core) Tick() {
	raw, err := c.src.Read()
	if err != nil {
		// Sensor anomalies are not specially handled; a failed read just
		// skips this tick's telemetry.
		log.Printf("Sample read failed: %v", err)
		c.drainInput()
		return
	}

	c.median.Add(raw)

	// Until the window has context the raw reading passes through
	// unfiltered; the first median-derived value seeds the smoother.
	var grams float32
	if c.median.Len() >= 3 {
		grams = c.smoother.Update(c.calib.Grams(c.median.Median()))
	} else {
		grams = c.calib.Grams(raw)
	}

	stable := c.detector.Update(grams, c.now())
	out := c.deadband.Emit(grams, stable)

	c.writeLine(proto.Telemetry(out, stable))
	c.drainInput()
}

// drainInput consumes the inbound bytes available right now and dispatches
// any completed command lines.
func (c *Core) drainInput() {
	for {
		n, err := c.conn.Read(c.readBuf)
		for _, b := range c.readBuf[:n] {
			line, done, overflowed := c.interp.Feed(b)
			if !done {
				continue
			}
			if overflowed {
				c.writeLine(proto.ErrCmdLen)
				continue
			}
			if line != "" {
				c.dispatch(line)
			}
		}
		if err != nil || n == 0 {
			return
		}
	}
}

// dispatch executes one command line to completion. Commands are never
// interrupted: the calibration average in particular must finish, since a
// partial average would corrupt the result.
func (c *Core) dispatch(line string) {
	cmd, err := proto.ParseCommand(line)
	if err != nil {
		c.writeLine(proto.ErrUnknownCmd)
		return
	}

	switch cmd.Kind {
	case proto.CmdTare:
		c.tare()
	case proto.CmdCalibrate:
		c.calibrate(cmd.RefGrams)
	}
}

// tare zeroes the scale against one instantaneous raw reading.
func (c *Core) tare() {
	raw, err := c.src.Read()
	if err != nil {
		log.Printf("Tare read failed: %v", err)
		return
	}
	if err := c.calib.Tare(raw); err != nil {
		// The in-memory offset is in effect for this session anyway.
		log.Printf("Tare saved in memory only: %v", err)
	} else {
		log.Printf("Tare saved: offset=%d", c.calib.TareOffset())
	}
	c.writeLine(proto.AckTare)
}

// calibrate averages a short burst of raw readings against a reference
// weight. This is the one deliberate stall in the loop: a bounded number
// of delayed reads, tens of milliseconds total.
func (c *Core) calibrate(refGrams float32) {
	if refGrams <= 0 {
		c.writeLine(proto.ErrCalWeight)
		return
	}

	var acc int64
	n := c.cfg.Calibrate.Samples
	for i := 0; i < n; i++ {
		raw, err := c.src.Read()
		if err != nil {
			log.Printf("Calibration read failed: %v", err)
			return
		}
		acc += int64(raw)
		c.sleep(c.cfg.Calibrate.SampleDelay)
	}
	mean := int32(acc / int64(n))

	factor, err := c.calib.Calibrate(refGrams, mean)
	switch {
	case errors.Is(err, scale.ErrBadWeight):
		c.writeLine(proto.ErrCalWeight)
		return
	case errors.Is(err, scale.ErrZeroNet):
		c.writeLine(proto.ErrCalZero)
		return
	case err != nil:
		log.Printf("Calibration saved in memory only: %v", err)
	default:
		log.Printf("Calibration saved: factor=%.8f", factor)
	}
	c.writeLine(proto.AckCalibrate(factor))
}

// writeLine emits one protocol line. A failed write is logged and dropped;
// the loop carries on.
func (c *Core) writeLine(line string) {
	if _, err := io.WriteString(c.conn, line+"\r\n"); err != nil {
		log.Printf("Transport write failed: %v", err)
	}
}
