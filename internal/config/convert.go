package config

import (
	"github.com/retrolab/c64bridge/internal/supervise"
	"github.com/retrolab/c64bridge/internal/ultimate"
)

// SpawnSpec maps the emulator section onto the supervisor's launch spec.
// Environment-level overrides (VICE_BINARY, VICE_ARGS) are applied later by
// the supervisor's own resolution, not here.
func SpawnSpec(cfg EmulatorConfig) supervise.SpawnSpec {
	return supervise.SpawnSpec{
		Binary: cfg.Exe,
		Host:   cfg.Host,
		Port:   cfg.Port,
	}
}

// UltimateConfig maps the hardware section onto the REST client config.
func UltimateConfig(cfg Config) ultimate.Config {
	return ultimate.Config{BaseURL: cfg.HardwareBaseURL()}
}
