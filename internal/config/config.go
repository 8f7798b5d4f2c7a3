// Package config loads and validates the bridge's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrNotFound reports that no config file exists at the given path. Callers
// that treat a missing config as "decide by probing" branch on this.
var ErrNotFound = errors.New("config: file not found")

// HardwareConfig points at an Ultimate-style device. Host and Hostname are
// aliases; BaseURL wins over both when set.
type HardwareConfig struct {
	Host     string `toml:"host"`
	Hostname string `toml:"hostname"`
	BaseURL  string `toml:"base_url"`
	Port     int    `toml:"port"`
}

// EmulatorConfig points at (or describes how to launch) a VICE instance.
type EmulatorConfig struct {
	Exe  string `toml:"exe"`
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ServeConfig tunes the bridge's own HTTP surface.
type ServeConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

type Config struct {
	Hardware HardwareConfig `toml:"hardware"`
	Emulator EmulatorConfig `toml:"emulator"`
	Serve    ServeConfig    `toml:"serve"`
}

// HasHardware reports whether the file declares a hardware endpoint.
func (c Config) HasHardware() bool {
	return c.Hardware.BaseURL != "" || c.Hardware.Host != "" || c.Hardware.Hostname != ""
}

// HasEmulator reports whether the file declares an emulator endpoint.
func (c Config) HasEmulator() bool {
	return c.Emulator.Exe != "" || c.Emulator.Host != "" || c.Emulator.Port != 0
}

// HardwareBaseURL resolves the device root URL: explicit base_url first, then
// host/hostname with the optional port.
func (c Config) HardwareBaseURL() string {
	if c.Hardware.BaseURL != "" {
		return strings.TrimRight(c.Hardware.BaseURL, "/")
	}
	host := c.Hardware.Host
	if host == "" {
		host = c.Hardware.Hostname
	}
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	if c.Hardware.Port > 0 && c.Hardware.Port != 80 {
		host = fmt.Sprintf("%s:%d", host, c.Hardware.Port)
	}
	return strings.TrimRight(host, "/")
}

// Load reads and validates the config file at path, filling defaults.
// A missing file returns ErrNotFound with the path wrapped in.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg = cfg.WithDefaults()
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefaults fills unset fields with the standard endpoints.
func (c Config) WithDefaults() Config {
	if c.HasEmulator() {
		if c.Emulator.Host == "" {
			c.Emulator.Host = "127.0.0.1"
		}
		if c.Emulator.Port == 0 {
			c.Emulator.Port = 6502
		}
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8064"
	}
	return c
}

func Validate(cfg Config) error {
	if cfg.Hardware.Port < 0 || cfg.Hardware.Port > 65535 {
		return fmt.Errorf("config: hardware port %d out of range", cfg.Hardware.Port)
	}
	if cfg.Emulator.Port < 0 || cfg.Emulator.Port > 65535 {
		return fmt.Errorf("config: emulator port %d out of range", cfg.Emulator.Port)
	}
	if cfg.Hardware.BaseURL != "" && !strings.Contains(cfg.Hardware.BaseURL, "://") {
		return fmt.Errorf("config: hardware base_url %q missing scheme", cfg.Hardware.BaseURL)
	}
	return nil
}
