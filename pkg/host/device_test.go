package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	d := New("/dev/ttyUSB0", 0, 0)

	assert.Equal(t, DefaultBaudRate, d.baudRate)
	assert.Equal(t, DefaultBufferSize, d.bufSize)
	assert.False(t, d.IsConnected())
}

func TestSerial_CommandsWhenDisconnected(t *testing.T) {
	d := New("/dev/ttyUSB0", 0, 0)

	assert.Error(t, d.Tare())
	assert.Error(t, d.Calibrate(500))
}

func TestSerial_CloseWithoutConnect(t *testing.T) {
	d := New("/dev/ttyUSB0", 0, 0)
	assert.NoError(t, d.Close())
}

func TestHandleLine_Telemetry(t *testing.T) {
	d := New("/dev/ttyUSB0", 0, 0)

	d.handleLine("G:100.00,S:1")

	select {
	case r := <-d.readings:
		assert.Equal(t, 100.0, r.Grams)
		assert.True(t, r.Stable)
	default:
		t.Fatal("no reading queued")
	}

	last, ok := d.Latest(time.Second)
	require.True(t, ok)
	assert.Equal(t, 100.0, last.Grams)
}

func TestHandleLine_Responses(t *testing.T) {
	d := New("/dev/ttyUSB0", 0, 0)

	for _, line := range []string{"HELLO:GOSCALE-HX711", "ACK:T", "ACK:C:0.01000000", "ERR:CMDLEN"} {
		d.handleLine(line)
	}

	for _, want := range []string{"HELLO:GOSCALE-HX711", "ACK:T", "ACK:C:0.01000000", "ERR:CMDLEN"} {
		select {
		case resp := <-d.responses:
			assert.Equal(t, want, resp.Line)
		default:
			t.Fatalf("missing response %q", want)
		}
	}
}

func TestHandleLine_IgnoresBlank(t *testing.T) {
	d := New("/dev/ttyUSB0", 0, 0)

	d.handleLine("")
	d.handleLine("   ")

	select {
	case r := <-d.readings:
		t.Fatalf("unexpected reading %+v", r)
	case resp := <-d.responses:
		t.Fatalf("unexpected response %+v", resp)
	default:
	}
}

func TestLatest_Staleness(t *testing.T) {
	d := New("/dev/ttyUSB0", 0, 0)

	_, ok := d.Latest(time.Second)
	assert.False(t, ok, "no reading yet")

	d.handleLine("G:42.00,S:0")
	d.mu.Lock()
	d.last.Timestamp = time.Now().Add(-2 * time.Second)
	d.mu.Unlock()

	_, ok = d.Latest(time.Second)
	assert.False(t, ok, "stale reading is withheld")

	_, ok = d.Latest(5 * time.Second)
	assert.True(t, ok)
}
