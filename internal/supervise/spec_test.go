package supervise

import (
	"reflect"
	"testing"
)

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "plain", raw: "-autostart demo.prg", want: []string{"-autostart", "demo.prg"}},
		{name: "double quoted", raw: `-autostart "my demo.prg"`, want: []string{"-autostart", "my demo.prg"}},
		{name: "single quoted", raw: `-moncommands 'a b'`, want: []string{"-moncommands", "a b"}},
		{name: "escaped space", raw: `a\ b c`, want: []string{"a b", "c"}},
		{name: "collapsed whitespace", raw: "  a \t b  ", want: []string{"a", "b"}},
		{name: "empty quoted arg", raw: `a '' b`, want: []string{"a", "", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitArgs(tc.raw)
			if err != nil {
				t.Fatalf("split %q: %v", tc.raw, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("split %q: got %q want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestSplitArgsUnterminatedQuote(t *testing.T) {
	if _, err := SplitArgs(`-autostart "demo`); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestArgvHeadlessDefaults(t *testing.T) {
	spec := SpawnSpec{Port: 6502}
	args, err := spec.Argv()
	if err != nil {
		t.Fatalf("argv: %v", err)
	}
	want := []string{
		"-binarymonitor",
		"-binarymonitoraddress", "127.0.0.1:6502",
		"-sounddev", "dummy",
		"-config", "/dev/null",
		"-warp", "-console",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("argv mismatch:\ngot  %q\nwant %q", args, want)
	}
}

func TestArgvVisibleDropsWarp(t *testing.T) {
	spec := SpawnSpec{Port: 6510, Visible: true, ExtraArgs: "-autostart demo.prg"}
	args, err := spec.Argv()
	if err != nil {
		t.Fatalf("argv: %v", err)
	}
	for _, a := range args {
		if a == "-warp" {
			t.Fatal("visible mode must not pass -warp")
		}
	}
	if args[len(args)-2] != "-autostart" || args[len(args)-1] != "demo.prg" {
		t.Fatalf("extra args not appended: %q", args)
	}
}

func TestResolveBinaryPrecedence(t *testing.T) {
	t.Setenv(EnvBinary, "/opt/vice/bin/x64sc")

	spec := SpawnSpec{Binary: "/usr/local/bin/x64"}
	bin, _, err := spec.ResolveBinary()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if bin != "/usr/local/bin/x64" {
		t.Fatalf("explicit override lost: %q", bin)
	}

	spec.Binary = ""
	bin, _, err = spec.ResolveBinary()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if bin != "/opt/vice/bin/x64sc" {
		t.Fatalf("environment override lost: %q", bin)
	}
}

func TestResolveBinarySearchFailureNamesCandidates(t *testing.T) {
	t.Setenv(EnvBinary, "")
	t.Setenv("PATH", t.TempDir())

	_, searched, err := SpawnSpec{}.ResolveBinary()
	if err == nil {
		t.Fatal("expected lookup failure on empty PATH")
	}
	if len(searched) != len(wellKnownBinaries) {
		t.Fatalf("searched %q, want all of %q", searched, wellKnownBinaries)
	}
}

func TestSpawnSpecKeyAndLocality(t *testing.T) {
	if key := (SpawnSpec{Port: 6502}).Key(); key != "127.0.0.1:6502" {
		t.Fatalf("default key: %q", key)
	}
	if !(SpawnSpec{Host: "localhost", Port: 1}).Local() {
		t.Fatal("localhost must be local")
	}
	if (SpawnSpec{Host: "c64.example.net", Port: 6502}).Local() {
		t.Fatal("remote host must not be local")
	}
}
