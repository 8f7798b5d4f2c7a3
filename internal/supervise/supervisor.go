package supervise

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/retrolab/c64bridge/internal/facade"
	"github.com/retrolab/c64bridge/internal/monitor"
	"github.com/retrolab/c64bridge/internal/observability"
)

// SpawnError marks a failure to locate or start the emulator binary.
type SpawnError struct {
	Binary   string
	Searched []string
	Err      error
}

func (e *SpawnError) Error() string {
	if e.Binary != "" {
		return fmt.Sprintf("supervise: spawn %q failed: %v", e.Binary, e.Err)
	}
	return fmt.Sprintf("supervise: no emulator binary found (searched %s): %v",
		strings.Join(e.Searched, ", "), e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Config bounds the spawn-then-listen window.
type Config struct {
	SpawnTimeout  time.Duration
	ProbeInterval time.Duration
	StopGrace     time.Duration
}

func DefaultConfig() Config {
	return Config{
		SpawnTimeout:  10 * time.Second,
		ProbeInterval: 250 * time.Millisecond,
		StopGrace:     2 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.SpawnTimeout <= 0 {
		c.SpawnTimeout = def.SpawnTimeout
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = def.ProbeInterval
	}
	if c.StopGrace <= 0 {
		c.StopGrace = def.StopGrace
	}
	return c
}

// handle is one registry entry. It is inserted before the probe/spawn
// decision runs so concurrent EnsureProcess calls for the same key await the
// in-flight attempt instead of racing into duplicate spawns.
type handle struct {
	ready    chan struct{}
	err      error
	external bool
	cmd      *exec.Cmd
	exited   chan struct{}
}

func (h *handle) alive() bool {
	if h.cmd == nil {
		return false
	}
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

// probeFunc checks whether a monitor endpoint is already accepting commands.
type probeFunc func(ctx context.Context, addr string) error

// launchFunc starts the resolved binary; split out so tests can count spawns.
type launchFunc func(spec SpawnSpec, binary string, args []string) (*exec.Cmd, error)

// Supervisor owns zero-or-one live emulator subprocess per endpoint key.
// It is constructed once by the composition root and threaded into the
// emulator backend; the registry is its only cross-operation shared state.
type Supervisor struct {
	cfg      Config
	testMode bool
	logger   zerolog.Logger

	mu    sync.Mutex
	procs map[string]*handle

	probe  probeFunc
	launch launchFunc
}

func New(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:      cfg.WithDefaults(),
		testMode: strings.TrimSpace(os.Getenv(EnvTest)) != "",
		logger:   log.With().Str("component", "supervise").Logger(),
		procs:    make(map[string]*handle),
		probe:    monitorProbe,
		launch:   launchProcess,
	}
}

// EnsureProcess guarantees a monitor endpoint is listening for spec's key:
// a live supervised subprocess, an external instance that answered the probe,
// or a freshly spawned one. Remote and test-mode targets are a no-op.
func (s *Supervisor) EnsureProcess(ctx context.Context, spec SpawnSpec) error {
	if s.testMode || !spec.Local() {
		return nil
	}
	key := spec.Key()

	for {
		s.mu.Lock()
		h, exists := s.procs[key]
		if !exists {
			h = &handle{ready: make(chan struct{})}
			s.procs[key] = h
			s.mu.Unlock()
			return s.materialize(ctx, key, h, spec)
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.ready:
		}
		if h.err != nil {
			return h.err
		}
		if h.external || h.alive() {
			return nil
		}
		// The process died since it was registered: clean up and retry,
		// which respawns under a fresh registry entry.
		s.reap(key, h)
	}
}

// materialize resolves one freshly inserted registry entry: probe first, and
// only spawn when nothing is listening.
func (s *Supervisor) materialize(ctx context.Context, key string, h *handle, spec SpawnSpec) (err error) {
	defer func() {
		h.err = err
		if err != nil || h.external {
			s.remove(key, h)
		}
		close(h.ready)
	}()

	probeCtx, cancel := context.WithTimeout(ctx, time.Second)
	probeErr := s.probe(probeCtx, key)
	cancel()
	if probeErr == nil {
		// An external or previously-started instance is already listening;
		// nothing to supervise.
		h.external = true
		s.logger.Debug().Str("key", key).Msg("external monitor endpoint detected")
		return nil
	}

	binary, searched, err := spec.ResolveBinary()
	if err != nil {
		observability.RecordSpawn(err)
		return err
	}
	args, err := spec.Argv()
	if err != nil {
		observability.RecordSpawn(err)
		return err
	}

	cmd, err := s.launch(spec, binary, args)
	observability.RecordSpawn(err)
	if err != nil {
		return &SpawnError{Binary: binary, Searched: searched, Err: err}
	}
	h.cmd = cmd
	h.exited = make(chan struct{})
	s.logger.Info().Str("key", key).Str("binary", binary).Int("pid", cmd.Process.Pid).Msg("emulator spawned")

	go func() {
		waitErr := cmd.Wait()
		close(h.exited)
		s.remove(key, h)
		s.logger.Warn().Str("key", key).AnErr("exit", waitErr).Msg("emulator exited")
	}()

	return s.awaitListening(ctx, key, h)
}

// awaitListening polls the monitor port until the spawned emulator accepts
// commands, its process dies, or the spawn budget elapses.
func (s *Supervisor) awaitListening(ctx context.Context, key string, h *handle) error {
	deadline := time.Now().Add(s.cfg.SpawnTimeout)
	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeInterval)
		err := s.probe(probeCtx, key)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			s.reap(key, h)
			return &facade.TimeoutError{Stage: "emulator spawn", Budget: s.cfg.SpawnTimeout}
		}
		select {
		case <-ctx.Done():
			s.reap(key, h)
			return ctx.Err()
		case <-h.exited:
			return &SpawnError{Binary: h.cmd.Path, Err: errors.New("process exited before listening")}
		case <-ticker.C:
		}
	}
}

// StopAll terminates every still-registered subprocess. The composition root
// installs this once as the process exit hook.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	handles := make(map[string]*handle, len(s.procs))
	for key, h := range s.procs {
		handles[key] = h
	}
	s.mu.Unlock()

	for key, h := range handles {
		s.reap(key, h)
	}
}

// reap gracefully stops a handle's process (if any) and drops its registry
// entry, enabling respawn on the next EnsureProcess.
func (s *Supervisor) reap(key string, h *handle) {
	s.remove(key, h)
	if h.cmd == nil || h.cmd.Process == nil {
		return
	}
	select {
	case <-h.exited:
		return
	default:
	}
	_ = h.cmd.Process.Signal(os.Interrupt)
	select {
	case <-h.exited:
	case <-time.After(s.cfg.StopGrace):
		_ = h.cmd.Process.Kill()
	}
}

// remove drops the registry entry iff it still maps to h.
func (s *Supervisor) remove(key string, h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.procs[key] == h {
		delete(s.procs, key)
	}
}

func (s *Supervisor) registered(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[key]
	return ok
}

// monitorProbe opens a short-lived protocol connection and issues one info
// command; success means an instance is already answering on the endpoint.
func monitorProbe(ctx context.Context, addr string) error {
	client, err := monitor.Dial(ctx, addr, monitor.Config{
		ConnectTimeout: 500 * time.Millisecond,
		RequestTimeout: time.Second,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	_, err = client.Info(ctx)
	return err
}

// launchProcess starts the emulator with stdio piped for log capture.
func launchProcess(spec SpawnSpec, binary string, args []string) (*exec.Cmd, error) {
	cmd := exec.Command(binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	logger := log.With().Str("component", "emulator").Str("key", spec.Key()).Logger()
	go pipeLogs(logger, "stdout", stdout)
	go pipeLogs(logger, "stderr", stderr)
	return cmd, nil
}

func pipeLogs(logger zerolog.Logger, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Debug().Str("stream", stream).Msg(scanner.Text())
	}
}
