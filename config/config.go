// Package config loads the host-side settings for the simulated EEPROM bus:
// controller bring-up, engine policy, the part being read and the simulator
// image.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"eepromcode-go/drivers/at24"
	"eepromcode-go/usci"
	"eepromcode-go/usci/usim"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Bus    BusConfig    `yaml:"bus"`
	Engine EngineConfig `yaml:"engine"`
	Device DeviceConfig `yaml:"device"`
	Sim    SimConfig    `yaml:"sim"`
}

// BusConfig holds the one-time controller bring-up.
type BusConfig struct {
	Target  uint16 `yaml:"target"`  // 7-bit device address of block 0
	Divisor uint16 `yaml:"divisor"` // bit clock prescaler
	Clock   string `yaml:"clock"`   // "aclk" or "smclk"
}

// EngineConfig mirrors at24.Config.
type EngineConfig struct {
	PollBudget uint32 `yaml:"poll_budget"` // 0 = unbounded
	Timeout    string `yaml:"timeout"`     // duration string, e.g. "5ms"; empty = unbounded
	CheckNACK  bool   `yaml:"check_nack"`
}

// DeviceConfig selects the 24Cxx part.
type DeviceConfig struct {
	Part     string `yaml:"part"` // at24c02 .. at24c16
	MaxBurst int    `yaml:"max_burst"`
}

// SimConfig describes the simulated target.
type SimConfig struct {
	Timing TimingConfig `yaml:"timing"`
	Strict bool         `yaml:"strict"`
	Fill   *uint8       `yaml:"fill"` // erased value, default 0xFF
	Image  []Segment    `yaml:"image"`
}

// TimingConfig is usim.Timing in polls.
type TimingConfig struct {
	Address uint `yaml:"address"`
	Byte    uint `yaml:"byte"`
	Stop    uint `yaml:"stop"`
}

// Segment preloads Data (hex, whitespace allowed) at Offset.
type Segment struct {
	Offset int    `yaml:"offset"`
	Data   string `yaml:"data"`
}

var parts = map[string]at24.Part{
	"at24c02": at24.AT24C02,
	"at24c04": at24.AT24C04,
	"at24c08": at24.AT24C08,
	"at24c16": at24.AT24C16,
}

// Default returns the configuration used when no file is given: an AT24C16
// at 0x50 whose 0xE0..0xE2 hold 11 22 33.
func Default() Config {
	return Config{
		Bus:    BusConfig{Target: usci.DefaultTarget, Divisor: usci.DefaultDivisor, Clock: "smclk"},
		Device: DeviceConfig{Part: "at24c16", MaxBurst: 255},
		Sim: SimConfig{
			Image: []Segment{{Offset: 0xE0, Data: "11 22 33"}},
		},
	}
}

// Load reads a YAML file over Default. Environment variables referenced as
// ${VAR} or $VAR are expanded before parsing.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv loads a .env file into the process environment. A missing file is
// not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Bus.Target > 0x7F {
		return fmt.Errorf("config: bus: target 0x%X is not a 7-bit address", c.Bus.Target)
	}
	if _, err := c.clock(); err != nil {
		return err
	}
	if _, err := c.timeout(); err != nil {
		return err
	}
	p, ok := parts[strings.ToLower(c.Device.Part)]
	if !ok {
		return fmt.Errorf("config: device: unknown part %q", c.Device.Part)
	}
	if c.Device.MaxBurst < 0 || c.Device.MaxBurst > 256 {
		return fmt.Errorf("config: device: max_burst %d out of range 0..256 (0 = default)", c.Device.MaxBurst)
	}
	if blocks := p.Size / 256; int(c.Bus.Target)+blocks-1 > 0x7F {
		return fmt.Errorf("config: bus: %d blocks from target 0x%X exceed the 7-bit range", blocks, c.Bus.Target)
	}
	for i, s := range c.Sim.Image {
		b, err := s.bytes()
		if err != nil {
			return fmt.Errorf("config: sim: image[%d]: %w", i, err)
		}
		if s.Offset < 0 || s.Offset+len(b) > p.Size {
			return fmt.Errorf("config: sim: image[%d]: %d bytes at 0x%X do not fit a %d-byte part", i, len(b), s.Offset, p.Size)
		}
	}
	return nil
}

// BringUp returns the controller configuration.
func (c Config) BringUp() usci.BringUp {
	clk, _ := c.clock()
	return usci.BringUp{Clock: clk, Divisor: c.Bus.Divisor, Target: c.Bus.Target}
}

// EngineConfig returns the transaction engine configuration.
func (c Config) EngineConfig() at24.Config {
	d, _ := c.timeout()
	return at24.Config{
		Target:     uint8(c.Bus.Target),
		PollBudget: c.Engine.PollBudget,
		Timeout:    d,
		CheckNACK:  c.Engine.CheckNACK,
	}
}

// DeviceConfig returns the array reader configuration. The part's base
// address follows the bus target.
func (c Config) DeviceConfig() at24.DeviceConfig {
	p := parts[strings.ToLower(c.Device.Part)]
	if c.Bus.Target != 0 {
		p.Base = uint8(c.Bus.Target)
	}
	return at24.DeviceConfig{Part: p, MaxBurst: c.Device.MaxBurst}
}

// NewTarget builds the simulated EEPROM with the configured image.
func (c Config) NewTarget() *usim.EEPROM {
	dc := c.DeviceConfig()
	dev := usim.NewEEPROM(dc.Part.Base, dc.Part.Size)
	if c.Sim.Fill != nil {
		for i := range dev.Mem {
			dev.Mem[i] = *c.Sim.Fill
		}
	}
	for _, s := range c.Sim.Image {
		b, _ := s.bytes()
		dev.Load(s.Offset, b)
	}
	return dev
}

// Timing returns the simulator latencies.
func (c Config) Timing() usim.Timing {
	t := c.Sim.Timing
	return usim.Timing{Address: t.Address, Byte: t.Byte, Stop: t.Stop}
}

func (c Config) clock() (uint8, error) {
	switch strings.ToLower(c.Bus.Clock) {
	case "", "smclk":
		return usci.UCSSEL_2, nil
	case "aclk":
		return usci.UCSSEL_1, nil
	}
	return 0, fmt.Errorf("config: bus: unknown clock %q", c.Bus.Clock)
}

func (c Config) timeout() (time.Duration, error) {
	if c.Engine.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Engine.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config: engine: timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: engine: negative timeout %s", d)
	}
	return d, nil
}

func (s Segment) bytes() ([]byte, error) {
	return hex.DecodeString(strings.Join(strings.Fields(s.Data), ""))
}
