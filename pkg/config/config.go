package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Device    DeviceConfig    `yaml:"device"`
	HX711     HX711Config     `yaml:"hx711"`
	Filter    FilterConfig    `yaml:"filter"`
	Stability StabilityConfig `yaml:"stability"`
	Command   CommandConfig   `yaml:"command"`
	Calibrate CalibrateConfig `yaml:"calibrate"`
	Storage   StorageConfig   `yaml:"storage"`
	Sim       SimConfig       `yaml:"sim"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// DeviceConfig identifies the device and sets the loop cadence.
type DeviceConfig struct {
	ID         string        `yaml:"id"`          // announced in the HELLO line
	LoopPeriod time.Duration `yaml:"loop_period"` // fixed sleep between ticks
}

// HX711Config contains the load-cell ADC wiring (Linux gpiochip lines).
type HX711Config struct {
	Chip string `yaml:"chip"`
	Dout int    `yaml:"dout"`
	Sck  int    `yaml:"sck"`
}

// FilterConfig contains the raw-signal filtering parameters.
type FilterConfig struct {
	MedianWindow int     `yaml:"median_window"` // must be odd
	IIRAlpha     float64 `yaml:"iir_alpha"`     // 0 < alpha <= 1
}

// StabilityConfig contains the stability detector and deadband parameters.
type StabilityConfig struct {
	DeltaGrams   float64       `yaml:"delta_grams"`   // variation tolerance against the reference
	HoldFor      time.Duration `yaml:"hold_for"`      // how long variation must stay low
	UseStdDev    bool          `yaml:"use_stddev"`    // enable the dispersion gate
	StdDevWindow int           `yaml:"stddev_window"` // filtered samples used for sigma
	StdDevGrams  float64       `yaml:"stddev_grams"`  // sigma threshold
	Deadband     float64       `yaml:"deadband"`      // output hysteresis, 0 disables
}

// CommandConfig contains inbound command handling limits.
type CommandConfig struct {
	MaxLineLen int `yaml:"max_line_len"`
}

// CalibrateConfig contains the calibration averaging parameters.
type CalibrateConfig struct {
	Samples     int           `yaml:"samples"`
	SampleDelay time.Duration `yaml:"sample_delay"`
}

// StorageConfig locates the persistent calibration store.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// SimConfig contains simulated load-cell configuration.
type SimConfig struct {
	ZeroOffset  int64         `yaml:"zero_offset"`   // raw counts with no load
	CountsPerKg float64       `yaml:"counts_per_kg"` // raw counts per kilogram
	NoiseCounts float64       `yaml:"noise_counts"`  // peak deterministic noise
	SettleLag   time.Duration `yaml:"settle_lag"`    // first-order settle constant
	LoadGrams   float64       `yaml:"load_grams"`    // initial simulated load
	Conversion  time.Duration `yaml:"conversion"`    // time per ADC conversion
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port: "/dev/serial0",
			Baud: 115200,
		},
		Device: DeviceConfig{
			ID:         "GOSCALE-HX711",
			LoopPeriod: 20 * time.Millisecond, // 50 Hz
		},
		HX711: HX711Config{
			Chip: "gpiochip0",
			Dout: 4,
			Sck:  5,
		},
		Filter: FilterConfig{
			MedianWindow: 21,
			IIRAlpha:     0.08,
		},
		Stability: StabilityConfig{
			DeltaGrams:   3.0,
			HoldFor:      1500 * time.Millisecond,
			UseStdDev:    true,
			StdDevWindow: 25,
			StdDevGrams:  1.5,
			Deadband:     0.20,
		},
		Command: CommandConfig{
			MaxLineLen: 80,
		},
		Calibrate: CalibrateConfig{
			Samples:     20,
			SampleDelay: 5 * time.Millisecond,
		},
		Storage: StorageConfig{
			Path: "calibration.yaml",
		},
		Sim: SimConfig{
			ZeroOffset:  8400,
			CountsPerKg: 1000000,
			NoiseCounts: 120,
			SettleLag:   400 * time.Millisecond,
			LoadGrams:   0,
			Conversion:  12500 * time.Microsecond, // ~80 SPS
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects configurations the measurement pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Filter.MedianWindow <= 0 || c.Filter.MedianWindow%2 == 0 {
		return fmt.Errorf("filter.median_window must be positive and odd, got %d", c.Filter.MedianWindow)
	}
	if c.Filter.IIRAlpha <= 0 || c.Filter.IIRAlpha > 1 {
		return fmt.Errorf("filter.iir_alpha must be in (0, 1], got %g", c.Filter.IIRAlpha)
	}
	if c.Stability.UseStdDev && c.Stability.StdDevWindow <= 0 {
		return fmt.Errorf("stability.stddev_window must be positive, got %d", c.Stability.StdDevWindow)
	}
	if c.Device.LoopPeriod <= 0 {
		return fmt.Errorf("device.loop_period must be positive, got %v", c.Device.LoopPeriod)
	}
	if c.Command.MaxLineLen <= 0 {
		return fmt.Errorf("command.max_line_len must be positive, got %d", c.Command.MaxLineLen)
	}
	if c.Calibrate.Samples <= 0 {
		return fmt.Errorf("calibrate.samples must be positive, got %d", c.Calibrate.Samples)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}

	if c.Device.ID == "" {
		c.Device.ID = def.Device.ID
	}
	if c.Device.LoopPeriod == 0 {
		c.Device.LoopPeriod = def.Device.LoopPeriod
	}

	if c.HX711.Chip == "" {
		c.HX711.Chip = def.HX711.Chip
	}

	if c.Filter.MedianWindow == 0 {
		c.Filter.MedianWindow = def.Filter.MedianWindow
	}
	if c.Filter.IIRAlpha == 0 {
		c.Filter.IIRAlpha = def.Filter.IIRAlpha
	}

	if c.Stability.DeltaGrams == 0 {
		c.Stability.DeltaGrams = def.Stability.DeltaGrams
	}
	if c.Stability.HoldFor == 0 {
		c.Stability.HoldFor = def.Stability.HoldFor
	}
	if c.Stability.StdDevWindow == 0 {
		c.Stability.StdDevWindow = def.Stability.StdDevWindow
	}
	if c.Stability.StdDevGrams == 0 {
		c.Stability.StdDevGrams = def.Stability.StdDevGrams
	}

	if c.Command.MaxLineLen == 0 {
		c.Command.MaxLineLen = def.Command.MaxLineLen
	}

	if c.Calibrate.Samples == 0 {
		c.Calibrate.Samples = def.Calibrate.Samples
	}
	if c.Calibrate.SampleDelay == 0 {
		c.Calibrate.SampleDelay = def.Calibrate.SampleDelay
	}

	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}

	if c.Sim.CountsPerKg == 0 {
		c.Sim.CountsPerKg = def.Sim.CountsPerKg
	}
	if c.Sim.SettleLag == 0 {
		c.Sim.SettleLag = def.Sim.SettleLag
	}
	if c.Sim.Conversion == 0 {
		c.Sim.Conversion = def.Sim.Conversion
	}
}
