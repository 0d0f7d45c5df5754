package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so intervals read naturally in YAML ("45m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the daemon's runtime wiring. Algorithm thresholds are not
// configurable; this only covers where state lives and when cycles run.
type Config struct {
	StatePath     string     `yaml:"state_path"`
	CycleInterval Duration   `yaml:"cycle_interval"`
	Idle          IdleConfig `yaml:"idle"`
}

// IdleConfig controls the CPU gate that defers cycles on a busy host
type IdleConfig struct {
	Enabled       bool     `yaml:"enabled"`
	BusyThreshold float64  `yaml:"busy_threshold"`
	IdleDuration  Duration `yaml:"idle_duration"`
}

// Default returns the daemon defaults, honoring DREAM_STATE_PATH
func Default() *Config {
	statePath := os.Getenv("DREAM_STATE_PATH")
	if statePath == "" {
		statePath = "./state"
	}
	return &Config{
		StatePath:     statePath,
		CycleInterval: Duration(30 * time.Minute),
		Idle: IdleConfig{
			Enabled:       true,
			BusyThreshold: 30.0,
			IdleDuration:  Duration(30 * time.Second),
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[config] %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.StatePath == "" {
		cfg.StatePath = Default().StatePath
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = Default().CycleInterval
	}
	return cfg, nil
}
