package supervise

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Environment knobs consumed when building a spawn.
const (
	EnvBinary = "VICE_BINARY"
	EnvTest   = "C64BRIDGE_TEST"
)

// wellKnownBinaries are searched on PATH when no explicit binary is given.
// exec.LookPath applies platform executable-extension conventions.
var wellKnownBinaries = []string{"x64sc", "x64"}

// SpawnSpec describes one emulator endpoint and how to launch it.
type SpawnSpec struct {
	Binary    string
	Host      string
	Port      int
	Visible   bool
	ExtraArgs string
}

// Key is the registry identity for this endpoint.
func (s SpawnSpec) Key() string {
	return net.JoinHostPort(s.host(), strconv.Itoa(s.Port))
}

func (s SpawnSpec) host() string {
	if h := strings.TrimSpace(s.Host); h != "" {
		return h
	}
	return "127.0.0.1"
}

// Local reports whether the endpoint is a locally-managed target; remote
// hosts are someone else's process and are never spawned here.
func (s SpawnSpec) Local() bool {
	switch s.host() {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return false
}

// ResolveBinary picks the executable: explicit override, then the VICE_BINARY
// environment variable, then well-known names on the search path.
func (s SpawnSpec) ResolveBinary() (string, []string, error) {
	if bin := strings.TrimSpace(s.Binary); bin != "" {
		return bin, nil, nil
	}
	if bin := strings.TrimSpace(os.Getenv(EnvBinary)); bin != "" {
		return bin, nil, nil
	}
	var searched []string
	for _, name := range wellKnownBinaries {
		path, err := exec.LookPath(name)
		if err == nil {
			return path, searched, nil
		}
		searched = append(searched, name)
	}
	return "", searched, &SpawnError{Searched: searched, Err: exec.ErrNotFound}
}

// Argv builds the emulator argument list: binary-monitor bind target,
// headless toggles, then user-supplied extra arguments.
func (s SpawnSpec) Argv() ([]string, error) {
	args := []string{
		"-binarymonitor",
		"-binarymonitoraddress", s.Key(),
		"-sounddev", "dummy",
		"-config", "/dev/null",
	}
	if !s.Visible {
		args = append(args, "-warp", "-console")
	}
	extra, err := SplitArgs(s.ExtraArgs)
	if err != nil {
		return nil, err
	}
	return append(args, extra...), nil
}

// SplitArgs splits a shell-like argument string, honoring single and double
// quotes and backslash escapes outside single quotes.
func SplitArgs(raw string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)
	for _, r := range raw {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote == '\'' && r != '\'':
			current.WriteRune(r)
		case r == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case r == quote:
			quote = 0
		case (r == '\'' || r == '"') && quote == 0:
			quote = r
			inArg = true
		case quote == 0 && (r == ' ' || r == '\t' || r == '\n'):
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if escaped || quote != 0 {
		return nil, fmt.Errorf("supervise: unterminated quoting in extra args: %q", raw)
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
