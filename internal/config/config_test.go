package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "c64bridge.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFillsEmulatorDefaults(t *testing.T) {
	path := writeConfig(t, "[emulator]\nexe = \"/opt/vice/x64sc\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.HasEmulator() || cfg.HasHardware() {
		t.Fatalf("section detection: %+v", cfg)
	}
	if cfg.Emulator.Host != "127.0.0.1" || cfg.Emulator.Port != 6502 {
		t.Fatalf("emulator defaults: %+v", cfg.Emulator)
	}
	if cfg.Serve.Addr != ":8064" {
		t.Fatalf("serve default: %q", cfg.Serve.Addr)
	}
}

func TestLoadMissingFileIsErrNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	path := writeConfig(t, "[hardware\nhost=")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []Config{
		{Hardware: HardwareConfig{Port: 70000}},
		{Emulator: EmulatorConfig{Port: -1}},
		{Hardware: HardwareConfig{BaseURL: "c64u.local"}},
	}
	for i, cfg := range cases {
		if err := Validate(cfg); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestHardwareBaseURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  HardwareConfig
		want string
	}{
		{"base url wins", HardwareConfig{BaseURL: "http://10.0.0.5/", Host: "ignored"}, "http://10.0.0.5"},
		{"host gets scheme", HardwareConfig{Host: "c64u"}, "http://c64u"},
		{"hostname alias", HardwareConfig{Hostname: "u64.lan"}, "http://u64.lan"},
		{"nonstandard port appended", HardwareConfig{Host: "c64u", Port: 8080}, "http://c64u:8080"},
		{"port 80 elided", HardwareConfig{Host: "c64u", Port: 80}, "http://c64u"},
		{"empty", HardwareConfig{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Config{Hardware: tc.cfg}.HardwareBaseURL()
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestTemplatesLoadCleanly(t *testing.T) {
	for _, kind := range []string{"hardware", "emulator", "full"} {
		body, err := Template(kind)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		path := writeConfig(t, body)
		if _, err := Load(path); err != nil {
			t.Fatalf("%s template does not load: %v", kind, err)
		}
	}
	if _, err := Template("bogus"); err == nil {
		t.Fatal("expected unknown-kind error")
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := writeConfig(t, "# existing\n")
	if err := WriteTemplate(path, "full", false); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "full", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}
