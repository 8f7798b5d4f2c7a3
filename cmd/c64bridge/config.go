package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/retrolab/c64bridge/internal/server"
)

type serveFileConfig struct {
	Serve struct {
		Addr        string   `toml:"addr"`
		CorsOrigins []string `toml:"cors_origins"`
	} `toml:"serve"`
}

// loadServeConfig reads only the [serve] section, applying file values over
// the built-in defaults field by field so an absent key never clobbers a
// default with a zero value.
func loadServeConfig(path string) (server.Config, error) {
	cfg := server.Config{}.WithDefaults()

	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}

	var raw serveFileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.Config{}, fmt.Errorf("load serve config: %w", err)
	}

	if meta.IsDefined("serve", "addr") {
		if addr := strings.TrimSpace(raw.Serve.Addr); addr != "" {
			cfg.Addr = addr
		}
	}
	if meta.IsDefined("serve", "cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.Serve.CorsOrigins)
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, strings.TrimRight(v, "/"))
	}
	return out
}
