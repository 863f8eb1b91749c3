// Package config loads the station binary's settings from defaults, an
// optional TOML file and STATION_* environment variables, in that order of
// increasing priority.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/merliot/station"
)

const EnvPrefix = "STATION_"

type Config struct {
	WiFi        station.Config `koanf:"wifi"`
	Sim         SimConfig      `koanf:"sim"`
	Report      ReportConfig   `koanf:"report"`
	Server      ServerConfig   `koanf:"server"`
	Log         LogConfig      `koanf:"log"`
	WaitTimeout time.Duration  `koanf:"wait_timeout"`
}

// SimConfig shapes the simulated access point the host binary joins
type SimConfig struct {
	Failures int    `koanf:"failures"`
	Addr     string `koanf:"addr"`
}

type ReportConfig struct {
	MQTTBroker string        `koanf:"mqtt_broker"`
	Topic      string        `koanf:"topic"`
	WebSocket  string        `koanf:"websocket"`
	User       string        `koanf:"user"`
	Passwd     string        `koanf:"passwd"`
	Timeout    time.Duration `koanf:"timeout"`
}

// ServerConfig enables the status server when Addr or TLSHost is set
type ServerConfig struct {
	Addr    string `koanf:"addr"`
	User    string `koanf:"user"`
	Passwd  string `koanf:"passwd"`
	TLSHost string `koanf:"tls_host"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Default returns the settings used when nothing overrides them
func Default() *Config {
	return &Config{
		WiFi: station.DefaultConfig(),
		Sim: SimConfig{
			Failures: 2,
			Addr:     "192.168.4.2",
		},
		Report: ReportConfig{
			Topic:   "station/outcome",
			Timeout: 5 * time.Second,
		},
		Log:         LogConfig{Level: "info"},
		WaitTimeout: 30 * time.Second,
	}
}

// Load reads configPath (skipped when empty) and the environment over the
// defaults, then validates the result
func Load(configPath string) (*Config, error) {
	cfg := Default()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// envKey maps STATION_WIFI_MAX__RETRIES to wifi.max_retries.  The network
// credentials also have short names, STATION_SSID and STATION_PASSPHRASE.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	switch s {
	case "ssid", "passphrase":
		return "wifi." + s
	}
	s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "%UNDERSCORE%", "_")
}

func (c *Config) Validate() error {
	if err := c.WiFi.Validate(); err != nil {
		return err
	}
	if c.Sim.Failures < 0 {
		return fmt.Errorf("%w: sim failures %d is negative", station.ErrInvalidConfig, c.Sim.Failures)
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("%w: wait timeout must be positive", station.ErrInvalidConfig)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.Join(station.ErrInvalidConfig, err)
	}
	return level, nil
}
