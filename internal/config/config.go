// Package config loads the console configuration: built-in defaults, then a
// YAML file, then environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/cezmen/chronos/internal/radio"
	"github.com/cezmen/chronos/internal/radio/sim"
)

// DefaultPath is read when no file is named explicitly.
const DefaultPath = "config/default.yaml"

// Environment overrides.
const (
	EnvConfig       = "CHRONOS_CONFIG"
	EnvPort         = "CHRONOS_PORT"
	EnvLogLevel     = "CHRONOS_LOG_LEVEL"
	EnvRadioBackend = "CHRONOS_RADIO_BACKEND"
)

// Radio backends.
const (
	BackendSim     = "sim"
	BackendNL80211 = "nl80211"
)

// Config represents the complete configuration.
type Config struct {
	Console ConsoleConfig `yaml:"console"`
	Output  OutputConfig  `yaml:"output"`
	Radio   RadioConfig   `yaml:"radio"`
	Logging LoggingConfig `yaml:"logging"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ConsoleConfig holds the TCP console settings.
type ConsoleConfig struct {
	BindAddr      string          `yaml:"bindAddr"`
	Port          int             `yaml:"port"`
	AllowedCIDRs  []string        `yaml:"allowedCidrs"`
	RxBufferLen   int             `yaml:"rxBufferLen"`
	TxChunkLen    int             `yaml:"txChunkLen"`
	FIFOSize      int             `yaml:"fifoSize"`
	FrameCapacity int             `yaml:"frameCapacity"`
	KeepAlive     KeepAliveConfig `yaml:"keepAlive"`
}

// KeepAliveConfig holds TCP keep-alive probing settings.
type KeepAliveConfig struct {
	Enabled     bool `yaml:"enabled"`
	IdleSec     int  `yaml:"idleSec"`
	IntervalSec int  `yaml:"intervalSec"`
	Count       int  `yaml:"count"`
}

// OutputConfig holds the output pump cadence.
type OutputConfig struct {
	TickMs int `yaml:"tickMs"`
}

// RadioConfig selects and configures the radio backend.
type RadioConfig struct {
	Backend           string       `yaml:"backend"`
	Interface         string       `yaml:"interface"`
	RangingTimeoutSec int          `yaml:"rangingTimeoutSec"`
	Report            ReportConfig `yaml:"report"`
	Sim               SimConfig    `yaml:"sim"`
}

// ReportConfig selects the FTM report table columns.
type ReportConfig struct {
	ShowDiag bool `yaml:"showDiag"`
	ShowRTT  bool `yaml:"showRtt"`
	ShowT1T4 bool `yaml:"showT1T4"`
	ShowRSSI bool `yaml:"showRssi"`
}

// SimConfig describes the simulated radio environment.
type SimConfig struct {
	AccessPoints []sim.Responder `yaml:"accessPoints"`
	LatencyMs    int             `yaml:"latencyMs"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	Enabled    bool   `yaml:"enabled"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load builds the configuration. A non-empty path must exist; otherwise
// $CHRONOS_CONFIG must exist when set, and DefaultPath is read if present.
func Load(path string) (*Config, error) {
	cfg := getDefaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if err := loadFromFile(cfg, DefaultPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config from %s: %w", DefaultPath, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Console: ConsoleConfig{
			BindAddr:      "0.0.0.0",
			Port:          3333,
			AllowedCIDRs:  nil,
			RxBufferLen:   1024,
			TxChunkLen:    1024,
			FIFOSize:      16384,
			FrameCapacity: 4096,
			KeepAlive: KeepAliveConfig{
				Enabled:     true,
				IdleSec:     5,
				IntervalSec: 5,
				Count:       3,
			},
		},
		Output: OutputConfig{
			TickMs: 100,
		},
		Radio: RadioConfig{
			Backend:           BackendSim,
			RangingTimeoutSec: 30,
			Report: ReportConfig{
				ShowDiag: true,
				ShowRTT:  true,
				ShowRSSI: true,
			},
			Sim: SimConfig{
				AccessPoints: []sim.Responder{
					{
						AccessPoint: radio.AccessPoint{
							SSID:         "ftm-responder",
							BSSID:        radio.MAC{0x24, 0x0a, 0xc4, 0x00, 0x00, 0x01},
							Channel:      6,
							RSSI:         -45,
							FTMResponder: true,
						},
						DistanceCm: 350,
					},
					{
						AccessPoint: radio.AccessPoint{
							SSID:    "office",
							BSSID:   radio.MAC{0x24, 0x0a, 0xc4, 0x00, 0x00, 0x02},
							Channel: 11,
							RSSI:    -71,
						},
						DistanceCm: 1800,
					},
				},
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Audit: AuditConfig{
			Enabled:    false,
			File:       "logs/audit.jsonl",
			MaxSizeMB:  50,
			MaxBackups: 10,
			MaxAgeDays: 90,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9333",
		},
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) error {
	if port := os.Getenv(EnvPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, port, err)
		}
		cfg.Console.Port = p
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Logging.Level = level
	}

	if backend := os.Getenv(EnvRadioBackend); backend != "" {
		cfg.Radio.Backend = backend
	}
	return nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	c := cfg.Console
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("console port %d is outside range [1, 65535]", c.Port)
	}
	if c.FIFOSize < 2 {
		return fmt.Errorf("fifoSize %d must be at least 2", c.FIFOSize)
	}
	if c.FrameCapacity < 2 {
		return fmt.Errorf("frameCapacity %d must be at least 2", c.FrameCapacity)
	}
	if c.RxBufferLen < 1 || c.TxChunkLen < 1 {
		return fmt.Errorf("rxBufferLen %d and txChunkLen %d must be positive", c.RxBufferLen, c.TxChunkLen)
	}
	if c.KeepAlive.Enabled && (c.KeepAlive.IdleSec < 1 || c.KeepAlive.IntervalSec < 1 || c.KeepAlive.Count < 1) {
		return fmt.Errorf("keepAlive idleSec, intervalSec and count must be positive when enabled")
	}
	for _, cidr := range c.AllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid allowed CIDR %q: %w", cidr, err)
		}
	}

	if cfg.Output.TickMs < 1 {
		return fmt.Errorf("output tickMs %d must be positive", cfg.Output.TickMs)
	}

	r := cfg.Radio
	if r.RangingTimeoutSec < 1 || r.RangingTimeoutSec > 120 {
		return fmt.Errorf("rangingTimeoutSec %d is outside range [1, 120]", r.RangingTimeoutSec)
	}
	switch r.Backend {
	case BackendSim:
		seen := make(map[radio.MAC]bool)
		for _, ap := range r.Sim.AccessPoints {
			if ap.BSSID.IsZero() {
				return fmt.Errorf("sim access point %q has no bssid", ap.SSID)
			}
			if seen[ap.BSSID] {
				return fmt.Errorf("sim access point bssid %s is duplicated", ap.BSSID)
			}
			seen[ap.BSSID] = true
		}
		if r.Sim.LatencyMs < 0 {
			return fmt.Errorf("sim latencyMs %d must not be negative", r.Sim.LatencyMs)
		}
	case BackendNL80211:
	default:
		return fmt.Errorf("invalid radio backend %q, must be one of: %v", r.Backend, []string{BackendSim, BackendNL80211})
	}

	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q, must be json or console", cfg.Logging.Format)
	}

	if cfg.Audit.Enabled && cfg.Audit.File == "" {
		return fmt.Errorf("audit file is required when audit is enabled")
	}
	if cfg.Audit.MaxSizeMB < 0 || cfg.Audit.MaxBackups < 0 || cfg.Audit.MaxAgeDays < 0 {
		return fmt.Errorf("audit rotation limits must not be negative")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics addr is required when metrics are enabled")
	}

	return nil
}

// ListenAddr returns the console listen address.
func (c ConsoleConfig) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, strconv.Itoa(c.Port))
}

// Tick returns the output pump period.
func (c OutputConfig) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// RangingTimeout returns the FTM wait bound.
func (c RadioConfig) RangingTimeout() time.Duration {
	return time.Duration(c.RangingTimeoutSec) * time.Second
}

// Columns converts the report settings to radio.ReportColumns.
func (c ReportConfig) Columns() radio.ReportColumns {
	return radio.ReportColumns{
		Diag:       c.ShowDiag,
		RTT:        c.ShowRTT,
		Timestamps: c.ShowT1T4,
		RSSI:       c.ShowRSSI,
	}
}

// Latency returns the simulated per-call latency.
func (c SimConfig) Latency() time.Duration {
	return time.Duration(c.LatencyMs) * time.Millisecond
}
