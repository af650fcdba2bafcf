// Package host implements the host side of the scale's serial protocol:
// a line reader that turns the telemetry stream into typed readings and
// command writers for tare and calibrate.
package host

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/goscale/pkg/proto"
)

const (
	// DefaultBaudRate matches the device's fixed UART rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the readings channel buffer.
	DefaultBufferSize = 100
	// reconnectDelay is the pause before reopening a dropped port.
	reconnectDelay = 500 * time.Millisecond
)

// Reading is one parsed telemetry frame.
type Reading struct {
	Timestamp time.Time
	Grams     float64
	Stable    bool
}

// Response is one non-telemetry line (HELLO, ACK, ERR).
type Response struct {
	Timestamp time.Time
	Line      string
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the scale over a serial port. The
// reader goroutine keeps the last good reading and reconnects if the port
// drops.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	readings  chan Reading
	responses chan Response
	done      chan struct{}
	mu        sync.RWMutex
	connected bool

	last    Reading
	hasLast bool
}

// New creates a new Serial instance with the specified port, baud rate,
// and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	return &Serial{
		port:      port,
		baudRate:  baudRate,
		bufSize:   bufSize,
		readings:  make(chan Reading, bufSize),
		responses: make(chan Response, bufSize),
		done:      make(chan struct{}),
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port and starts the reader goroutine.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	port, err := d.open()
	if err != nil {
		return err
	}

	d.conn = port
	d.connected = true

	go d.readLines()

	return nil
}

func (d *Serial) open() (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}
	port, err := serial.Open(d.port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	return port, nil
}

// Close closes the connection and stops the reader.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	close(d.done)

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false

	close(d.readings)
	close(d.responses)

	return nil
}

// Readings returns the channel of parsed telemetry frames.
func (d *Serial) Readings() <-chan Reading {
	return d.readings
}

// Responses returns the channel of HELLO/ACK/ERR lines.
func (d *Serial) Responses() <-chan Response {
	return d.responses
}

// Latest returns the most recent reading if one arrived within maxAge.
// It does not consume the reading; the channel consumers are unaffected.
func (d *Serial) Latest(maxAge time.Duration) (Reading, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.hasLast || time.Since(d.last.Timestamp) > maxAge {
		return Reading{}, false
	}
	return d.last, true
}

// Tare sends the tare command.
func (d *Serial) Tare() error {
	return d.send("T\n")
}

// Calibrate sends the calibrate command with the reference weight in grams.
func (d *Serial) Calibrate(refGrams float64) error {
	return d.send(fmt.Sprintf("C:%g\n", refGrams))
}

func (d *Serial) send(cmd string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}

	if _, err := d.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readLines reads lines from the serial port, dispatching telemetry and
// responses. On a port error it reconnects until Close is called.
func (d *Serial) readLines() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readLines: %v", r)
		}
	}()

	for {
		d.mu.RLock()
		conn := d.conn
		d.mu.RUnlock()
		if conn == nil {
			return
		}

		d.scan(conn)

		select {
		case <-d.done:
			return
		case <-time.After(reconnectDelay):
		}

		port, err := d.open()
		if err != nil {
			log.Printf("Reconnect failed: %v", err)
			continue
		}
		d.mu.Lock()
		if !d.connected {
			d.mu.Unlock()
			port.Close()
			return
		}
		d.conn = port
		d.mu.Unlock()
		log.Printf("Reconnected to %s", d.port)
	}
}

// scan consumes lines until the reader fails or the device is closed.
func (d *Serial) scan(conn serial.Port) {
	scanner := bufio.NewScanner(conn)
	for {
		select {
		case <-d.done:
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil && err != io.EOF {
					log.Printf("Error reading from serial port: %v", err)
				}
				return
			}
			d.handleLine(scanner.Text())
		}
	}
}

func (d *Serial) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	now := time.Now()

	if grams, stable, err := proto.ParseTelemetry(line); err == nil {
		r := Reading{Timestamp: now, Grams: grams, Stable: stable}
		d.mu.Lock()
		d.last = r
		d.hasLast = true
		d.mu.Unlock()
		select {
		case d.readings <- r:
		case <-d.done:
		default:
			// Channel full, drop; Latest still tracks the newest frame.
		}
		return
	}

	select {
	case d.responses <- Response{Timestamp: now, Line: line}:
	case <-d.done:
	default:
		log.Printf("Responses channel full, dropping %q", line)
	}
}
