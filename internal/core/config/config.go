package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full application configuration. Durations are strings in
// extended Go syntax ("90m", "1h", "2d") and validated at load time.
type Config struct {
	Input      InputConfig      `koanf:"input"`
	Processing ProcessingConfig `koanf:"processing"`
	Profiles   ProfilesConfig   `koanf:"profiles"`
	Output     OutputConfig     `koanf:"output"`
	Watch      WatchConfig      `koanf:"watch"`
}

type InputConfig struct {
	Dir             string   `koanf:"dir"`
	Extensions      []string `koanf:"extensions"`
	NominalDuration string   `koanf:"nominal_duration"` // capture window per file
	TimestampColumn string   `koanf:"timestamp_column"`
}

type ProcessingConfig struct {
	// GapTolerance, when empty, defaults to nominal_duration x 1.5.
	GapTolerance      string `koanf:"gap_tolerance"`
	ResampleInterval  string `koanf:"resample_interval"`
	MinSequenceLength int    `koanf:"min_sequence_length"`
	ZeroInvalid       bool   `koanf:"zero_invalid"`
	WorkerCount       int    `koanf:"worker_count"`
}

type ProfilesConfig struct {
	ConfigDir string `koanf:"config_dir"`
}

type OutputConfig struct {
	Dir           string `koanf:"dir"`
	WriteCombined bool   `koanf:"write_combined"`
	WriteCharts   bool   `koanf:"write_charts"`
}

type WatchConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Debounce   string `koanf:"debounce"`
	ServerAddr string `koanf:"server_addr"`
	Mode       string `koanf:"mode"` // debug | release
}

// ParseDurationSpec parses Go duration syntax plus an "Xd" day suffix.
func ParseDurationSpec(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration must not be empty")
	}
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("duration must be positive, got %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", s)
	}
	return d, nil
}

// NominalDurationValue returns the parsed per-file capture window.
func (c InputConfig) NominalDurationValue() time.Duration {
	d, _ := ParseDurationSpec(c.NominalDuration)
	return d
}

// EffectiveGapTolerance resolves the gap tolerance: the configured value, or
// nominal file duration x 1.5 when unset.
func (c *Config) EffectiveGapTolerance() time.Duration {
	if c.Processing.GapTolerance != "" {
		d, _ := ParseDurationSpec(c.Processing.GapTolerance)
		return d
	}
	return c.Input.NominalDurationValue() * 3 / 2
}

// ResampleInterval returns the parsed bucket width.
func (c *Config) ResampleInterval() time.Duration {
	d, _ := ParseDurationSpec(c.Processing.ResampleInterval)
	return d
}

// DebounceInterval returns the parsed watch debounce.
func (c *Config) DebounceInterval() time.Duration {
	d, _ := ParseDurationSpec(c.Watch.Debounce)
	return d
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Input.Dir) == "" {
		return fmt.Errorf("input.dir is required")
	}
	if len(c.Input.Extensions) == 0 {
		return fmt.Errorf("input.extensions must not be empty")
	}
	for _, ext := range c.Input.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("input extension %q must start with a dot", ext)
		}
	}
	if _, err := ParseDurationSpec(c.Input.NominalDuration); err != nil {
		return fmt.Errorf("input.nominal_duration: %w", err)
	}
	if strings.TrimSpace(c.Input.TimestampColumn) == "" {
		return fmt.Errorf("input.timestamp_column is required")
	}

	if c.Processing.GapTolerance != "" {
		if _, err := ParseDurationSpec(c.Processing.GapTolerance); err != nil {
			return fmt.Errorf("processing.gap_tolerance: %w", err)
		}
	}
	if _, err := ParseDurationSpec(c.Processing.ResampleInterval); err != nil {
		return fmt.Errorf("processing.resample_interval: %w", err)
	}
	if c.Processing.MinSequenceLength < 1 {
		return fmt.Errorf("processing.min_sequence_length must be >= 1")
	}
	if c.Processing.WorkerCount < 1 {
		return fmt.Errorf("processing.worker_count must be >= 1")
	}

	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir is required")
	}
	if !c.Output.WriteCombined && !c.Output.WriteCharts {
		return fmt.Errorf("at least one of output.write_combined and output.write_charts must be enabled")
	}

	if c.Watch.Enabled {
		if _, err := ParseDurationSpec(c.Watch.Debounce); err != nil {
			return fmt.Errorf("watch.debounce: %w", err)
		}
		if strings.TrimSpace(c.Watch.ServerAddr) == "" {
			return fmt.Errorf("watch.server_addr is required when watch is enabled")
		}
	}
	if c.Watch.Mode != "debug" && c.Watch.Mode != "release" {
		return fmt.Errorf("invalid watch.mode %q (must be debug or release)", c.Watch.Mode)
	}

	return nil
}

// Load parses config from defaults + optional YAML file + CELLTRACE_ env
// overrides, then validates.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"input.dir":                      "./captures",
		"input.extensions":               []string{".xlsx", ".xls"},
		"input.nominal_duration":         "1h",
		"input.timestamp_column":         "Time",
		"processing.gap_tolerance":       "",
		"processing.resample_interval":   "1m",
		"processing.min_sequence_length": 1,
		"processing.zero_invalid":        true,
		"processing.worker_count":        4,
		"profiles.config_dir":            "./config/profiles",
		"output.dir":                     "./processed",
		"output.write_combined":          true,
		"output.write_charts":            true,
		"watch.enabled":                  false,
		"watch.debounce":                 "2s",
		"watch.server_addr":              "127.0.0.1:8080",
		"watch.mode":                     "release",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("CELLTRACE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CELLTRACE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
