// Package proto implements the line-oriented serial protocol between the
// weight-sensing core and its host.
//
// Outbound, once per sampling tick:
//
//	G:<grams>,S:<0|1>
//
// where <grams> has two decimal places and S indicates stable/unstable.
// Command acknowledgements and errors share the same stream:
//
//	ACK:T            tare succeeded
//	ACK:C:<factor>   calibration succeeded, new factor at high precision
//	ERR:CAL:weight   non-positive reference weight
//	ERR:CAL:zero     zero net raw delta
//	ERR:UNKNOWN_CMD  unrecognized command line
//	ERR:CMDLEN       inbound line exceeded the command buffer
//	HELLO:<id>       emitted once at boot, before the first telemetry line
//
// Inbound commands are "T" (tare) and "C:<number>" (calibrate), case
// insensitive, tolerant of surrounding whitespace.
package proto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Fixed response lines.
const (
	AckTare       = "ACK:T"
	ErrCalWeight  = "ERR:CAL:weight"
	ErrCalZero    = "ERR:CAL:zero"
	ErrUnknownCmd = "ERR:UNKNOWN_CMD"
	ErrCmdLen     = "ERR:CMDLEN"
	helloPrefix   = "HELLO:"
	ackCalPrefix  = "ACK:C:"
	telemetryG    = "G:"
	telemetryS    = ",S:"
)

var (
	// ErrUnknownCommand reports an inbound line matching no known command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotTelemetry reports a line that is not a telemetry frame.
	ErrNotTelemetry = errors.New("not a telemetry line")
)

// Telemetry formats the per-tick output line.
func Telemetry(grams float32, stable bool) string {
	s := 0
	if stable {
		s = 1
	}
	return fmt.Sprintf("G:%.2f,S:%d", grams, s)
}

// Hello formats the boot announcement.
func Hello(deviceID string) string {
	return helloPrefix + deviceID
}

// AckCalibrate formats the calibration acknowledgement, echoing the new
// scale factor at high precision for auditability.
func AckCalibrate(factor float32) string {
	return fmt.Sprintf("ACK:C:%.8f", factor)
}

// CommandKind enumerates the recognized host commands.
type CommandKind int

const (
	// CmdTare zeroes the scale against the current load.
	CmdTare CommandKind = iota
	// CmdCalibrate derives a new scale factor from a reference weight.
	CmdCalibrate
)

// Command is one parsed host command.
type Command struct {
	Kind     CommandKind
	RefGrams float32 // calibrate only
}

// ParseCommand parses a trimmed, non-empty command line. The reference
// weight is not validated here; range checks belong to the calibration
// operation so the weight error is reported on the wire, not swallowed.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "T") {
		return Command{Kind: CmdTare}, nil
	}
	if len(line) >= 2 && strings.EqualFold(line[:2], "C:") {
		arg := strings.TrimSpace(line[2:])
		w, err := strconv.ParseFloat(arg, 32)
		if err != nil {
			// A malformed number is still a calibrate request; the zero
			// weight fails validation downstream, mirroring the original
			// firmware's lenient numeric parse.
			w = 0
		}
		return Command{Kind: CmdCalibrate, RefGrams: float32(w)}, nil
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, line)
}

// ParseTelemetry parses a "G:<grams>,S:<0|1>" line.
func ParseTelemetry(line string) (grams float64, stable bool, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, telemetryG) {
		return 0, false, fmt.Errorf("%w: %q", ErrNotTelemetry, line)
	}
	rest := line[len(telemetryG):]
	i := strings.Index(rest, telemetryS)
	if i < 0 {
		return 0, false, fmt.Errorf("%w: %q", ErrNotTelemetry, line)
	}
	grams, err = strconv.ParseFloat(rest[:i], 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid grams field: %w", err)
	}
	switch rest[i+len(telemetryS):] {
	case "0":
		stable = false
	case "1":
		stable = true
	default:
		return 0, false, fmt.Errorf("%w: %q", ErrNotTelemetry, line)
	}
	return grams, stable, nil
}

// ParseHello extracts the device id from a boot announcement, or ok=false.
func ParseHello(line string) (id string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, helloPrefix) {
		return "", false
	}
	return line[len(helloPrefix):], true
}

// ParseAckCalibrate extracts the echoed scale factor from an ACK:C line,
// or ok=false.
func ParseAckCalibrate(line string) (factor float64, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ackCalPrefix) {
		return 0, false
	}
	f, err := strconv.ParseFloat(line[len(ackCalPrefix):], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
