// Command scalectl talks to a running scale from the host side: it watches
// the telemetry stream and sends tare/calibrate commands.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/itohio/goscale/pkg/config"
	"github.com/itohio/goscale/pkg/host"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., /dev/ttyUSB0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a mocked device instead of a serial port")
		listFlag   = flag.Bool("list", false, "List available serial ports and exit")
		tareFlag   = flag.Bool("tare", false, "Send a tare command")
		calFlag    = flag.Float64("calibrate", 0, "Send a calibrate command with this reference weight in grams")
		watchFlag  = flag.Duration("watch", 0, "Print telemetry for this long (0 = until interrupted)")
	)
	flag.Parse()

	if *listFlag {
		ports, err := host.Ports()
		if err != nil {
			log.Fatalf("Failed to list ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	var device host.Device
	if *mockFlag {
		device = host.NewMock(&cfg.Sim)
		fmt.Println("Using mocked device")
	} else {
		device = host.New(cfg.Serial.Port, cfg.Serial.Baud, host.DefaultBufferSize)
	}

	if err := device.Connect(); err != nil {
		log.Fatalf("Failed to connect to %s: %v", cfg.Serial.Port, err)
	}
	defer device.Close()

	// Surface acknowledgements and errors as they arrive.
	go func() {
		for resp := range device.Responses() {
			fmt.Printf("< %s\n", resp.Line)
		}
	}()

	if *tareFlag {
		if err := device.Tare(); err != nil {
			log.Fatalf("Tare failed: %v", err)
		}
		fmt.Println("> T")
	}

	if *calFlag != 0 {
		if err := device.Calibrate(*calFlag); err != nil {
			log.Fatalf("Calibrate failed: %v", err)
		}
		fmt.Printf("> C:%g\n", *calFlag)
	}

	if !*tareFlag && *calFlag == 0 || *watchFlag != 0 {
		watch(device, *watchFlag)
		return
	}

	// Give the device a moment to answer the command.
	time.Sleep(500 * time.Millisecond)
}

// watch prints readings until the duration elapses or the user interrupts.
func watch(device host.Device, d time.Duration) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	var timeout <-chan time.Time
	if d > 0 {
		timeout = time.After(d)
	}

	for {
		select {
		case r, ok := <-device.Readings():
			if !ok {
				return
			}
			state := "unstable"
			if r.Stable {
				state = "stable"
			}
			fmt.Printf("%s  %8.2f g  %s\n", r.Timestamp.Format("15:04:05.000"), r.Grams, state)
		case <-interrupt:
			return
		case <-timeout:
			return
		}
	}
}
