// Command scaled runs the weight-sensing core: it samples the load cell,
// streams telemetry over the serial port, and answers tare/calibrate
// commands from the host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/goscale/pkg/config"
	"github.com/itohio/goscale/pkg/firmware"
	"github.com/itohio/goscale/pkg/hx711"
	"github.com/itohio/goscale/pkg/scale"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., /dev/serial0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		simFlag    = flag.Bool("sim", false, "Use a simulated load cell instead of the HX711")
		stdioFlag  = flag.Bool("stdio", false, "Use stdin/stdout instead of a serial port")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	var src firmware.Source
	if *simFlag {
		sim := hx711.NewSim(&cfg.Sim)
		defer sim.Close()
		src = sim
		log.Printf("Using simulated load cell")
	} else {
		adc, err := hx711.Open(cfg.HX711.Chip, cfg.HX711.Dout, cfg.HX711.Sck)
		if err != nil {
			log.Fatalf("Failed to open HX711 on %s (dout=%d sck=%d): %v",
				cfg.HX711.Chip, cfg.HX711.Dout, cfg.HX711.Sck, err)
		}
		defer adc.Close()
		src = adc
	}

	var conn io.ReadWriter
	if *stdioFlag {
		conn = stdioConn{}
	} else {
		port, err := serial.Open(cfg.Serial.Port, &serial.Mode{BaudRate: cfg.Serial.Baud})
		if err != nil {
			log.Fatalf("Failed to open serial port %s: %v", cfg.Serial.Port, err)
		}
		defer port.Close()
		// The core drains input opportunistically within the tick; a short
		// timeout makes port reads return empty instead of blocking.
		if err := port.SetReadTimeout(time.Millisecond); err != nil {
			log.Fatalf("Failed to set serial read timeout: %v", err)
		}
		conn = port
		fmt.Printf("Serving on %s @ %d baud\n", cfg.Serial.Port, cfg.Serial.Baud)
	}

	store := scale.NewFileStore(cfg.Storage.Path)
	core, err := firmware.New(cfg, src, store, conn)
	if err != nil {
		log.Fatalf("Failed to initialize core: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := core.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Core loop failed: %v", err)
	}
}

// stdioConn exposes stdin/stdout as the transport, for bench testing the
// protocol without wiring a UART. Stdin reads block, which stalls the tick
// until a line arrives; acceptable for interactive use only.
type stdioConn struct{}

func (stdioConn) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioConn) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
