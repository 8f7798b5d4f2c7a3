package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeServeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "c64bridge.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServeConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := loadServeConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8064" {
		t.Fatalf("default addr: %q", cfg.Addr)
	}
}

func TestLoadServeConfigOverrides(t *testing.T) {
	path := writeServeConfig(t, `
[serve]
addr = ":9064"
cors_origins = ["http://localhost:3000/", " ", "https://ops.example"]

[hardware]
host = "c64u"
`)
	cfg, err := loadServeConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9064" {
		t.Fatalf("addr override: %q", cfg.Addr)
	}
	want := []string{"http://localhost:3000", "https://ops.example"}
	if len(cfg.CorsOrigins) != len(want) {
		t.Fatalf("origins: %+v", cfg.CorsOrigins)
	}
	for i := range want {
		if cfg.CorsOrigins[i] != want[i] {
			t.Fatalf("origin %d: %q", i, cfg.CorsOrigins[i])
		}
	}
}

func TestLoadServeConfigPartialFileKeepsDefaults(t *testing.T) {
	path := writeServeConfig(t, "[serve]\ncors_origins = [\"http://localhost:5173\"]\n")
	cfg, err := loadServeConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8064" {
		t.Fatalf("absent addr must keep default: %q", cfg.Addr)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://localhost:5173" {
		t.Fatalf("origins: %+v", cfg.CorsOrigins)
	}
}

func TestLoadServeConfigRejectsMalformedFile(t *testing.T) {
	path := writeServeConfig(t, "[serve\naddr=")
	if _, err := loadServeConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigMissingDefaultIsNil(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config, got %+v", cfg)
	}
}

func TestLoadConfigExplicitMissingFileErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for explicitly named missing file")
	}
}
