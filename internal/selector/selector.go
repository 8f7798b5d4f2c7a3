// Package selector decides once, with explicit precedence, which backend the
// bridge talks to: real hardware over REST or a supervised VICE emulator.
package selector

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/retrolab/c64bridge/internal/config"
	"github.com/retrolab/c64bridge/internal/facade"
	"github.com/retrolab/c64bridge/internal/supervise"
	"github.com/retrolab/c64bridge/internal/ultimate"
	"github.com/retrolab/c64bridge/internal/vice"
)

// Environment knobs consumed during selection.
const (
	EnvMode    = "C64BRIDGE_MODE"
	EnvHost    = "VICE_HOST"
	EnvPort    = "VICE_PORT"
	EnvVisible = "VICE_VISIBLE"
	EnvArgs    = "VICE_ARGS"
)

// DefaultHardwareURL is probed when nothing else names a target.
const DefaultHardwareURL = "http://c64u"

const probeTimeout = 2 * time.Second

// Selection is the one-time decision handed to the composition root.
type Selection struct {
	Backend facade.Backend
	Kind    facade.Kind
	Reason  string
	Details string
}

// ProbeFunc reports whether a hardware device answers at baseURL. Injectable
// for tests; the default does one short GET and treats any non-5xx reply as a
// live device.
type ProbeFunc func(ctx context.Context, baseURL string) bool

// Options carries the selection inputs. Nil Config means "no config file";
// empty Mode falls back to the C64BRIDGE_MODE environment variable.
type Options struct {
	// ForceURL is a caller-supplied hardware base URL; it wins over
	// everything else.
	ForceURL string
	Mode     string
	Config   *config.Config
	Probe    ProbeFunc
	// Supervisor backs any emulator selection. Required unless the inputs
	// can only resolve to hardware.
	Supervisor *supervise.Supervisor
}

// Select evaluates the precedence chain, first match wins:
//
//  1. caller-forced hardware URL
//  2. explicit mode (option or C64BRIDGE_MODE)
//  3. config with only a hardware endpoint
//  4. config with only an emulator endpoint
//  5. config with both (hardware preferred)
//  6. no config: probe the default hardware URL, fall back to the emulator
//
// It is stateless; callers cache the Selection themselves. "No config" is
// never an error, an unrecognized explicit mode is.
func Select(ctx context.Context, opts Options) (Selection, error) {
	if url := strings.TrimSpace(opts.ForceURL); url != "" {
		return hardwareSelection(url, "caller-forced hardware URL"), nil
	}

	mode := strings.TrimSpace(opts.Mode)
	if mode == "" {
		mode = strings.TrimSpace(os.Getenv(EnvMode))
	}
	switch strings.ToLower(mode) {
	case "":
	case "hardware":
		url := DefaultHardwareURL
		if opts.Config != nil && opts.Config.HasHardware() {
			url = opts.Config.HardwareBaseURL()
		}
		return hardwareSelection(url, "mode override: hardware"), nil
	case "emulator":
		return emulatorSelection(opts, "mode override: emulator"), nil
	default:
		return Selection{}, fmt.Errorf("selector: unrecognized mode %q", mode)
	}

	if cfg := opts.Config; cfg != nil {
		switch {
		case cfg.HasHardware() && cfg.HasEmulator():
			return hardwareSelection(cfg.HardwareBaseURL(), "config declares both endpoints, hardware preferred"), nil
		case cfg.HasHardware():
			return hardwareSelection(cfg.HardwareBaseURL(), "config declares a hardware endpoint"), nil
		case cfg.HasEmulator():
			return emulatorSelection(opts, "config declares an emulator endpoint"), nil
		}
	}

	probe := opts.Probe
	if probe == nil {
		probe = defaultProbe
	}
	if probe(ctx, DefaultHardwareURL) {
		return hardwareSelection(DefaultHardwareURL, "no config, default hardware URL answered"), nil
	}
	return emulatorSelection(opts, "no config, default hardware URL unreachable"), nil
}

func hardwareSelection(baseURL, reason string) Selection {
	backend := ultimate.New(ultimate.Config{BaseURL: baseURL})
	sel := Selection{
		Backend: backend,
		Kind:    facade.KindHardware,
		Reason:  reason,
		Details: backend.BaseURL(),
	}
	logSelection(sel)
	return sel
}

func emulatorSelection(opts Options, reason string) Selection {
	spec := emulatorSpec(opts.Config)
	sel := Selection{
		Backend: vice.New(spec, opts.Supervisor),
		Kind:    facade.KindEmulator,
		Reason:  reason,
		Details: spec.Key(),
	}
	logSelection(sel)
	return sel
}

// emulatorSpec assembles the spawn spec: config values first, then the
// VICE_* environment overrides.
func emulatorSpec(cfg *config.Config) supervise.SpawnSpec {
	var spec supervise.SpawnSpec
	if cfg != nil {
		spec = config.SpawnSpec(cfg.Emulator)
	}
	if host := strings.TrimSpace(os.Getenv(EnvHost)); host != "" {
		spec.Host = host
	}
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 && port <= 65535 {
			spec.Port = port
		} else {
			log.Warn().Str("value", raw).Msg("ignoring unparseable VICE_PORT")
		}
	}
	if spec.Port == 0 {
		spec.Port = 6502
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvVisible))) {
	case "1", "true", "yes", "on":
		spec.Visible = true
	}
	if args := os.Getenv(EnvArgs); args != "" {
		spec.ExtraArgs = args
	}
	return spec
}

func defaultProbe(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/version", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func logSelection(sel Selection) {
	log.Info().
		Str("component", "selector").
		Str("kind", string(sel.Kind)).
		Str("details", sel.Details).
		Msg(sel.Reason)
}
