package vice

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retrolab/c64bridge/internal/facade"
	"github.com/retrolab/c64bridge/internal/monitor"
	"github.com/retrolab/c64bridge/internal/supervise"
	"github.com/retrolab/c64bridge/internal/testutil/monitortest"
	"github.com/retrolab/c64bridge/internal/testutil/testlog"
)

func newTestBackend(t *testing.T) (*Backend, *monitortest.Server) {
	t.Helper()
	testlog.Start(t)
	t.Setenv(supervise.EnvTest, "1")
	srv := monitortest.Start(t)
	b := New(supervise.SpawnSpec{Port: srv.Port()}, supervise.New(supervise.Config{}))
	b.readyCfg.Interval = time.Millisecond
	b.readyCfg.Timeout = time.Second
	return b, srv
}

// commandOps filters out readiness probes and info pings, leaving the
// state-changing sequence for order assertions.
func commandOps(srv *monitortest.Server) []monitortest.Op {
	var out []monitortest.Op
	for _, op := range srv.Ops() {
		if op.Cmd == monitor.CmdMemGet && op.Addr == 0x00CC {
			continue
		}
		out = append(out, op)
	}
	return out
}

func TestRunPrgInjectionSequence(t *testing.T) {
	b, srv := newTestBackend(t)

	// Load address $0801, body LDA #$00; RTS.
	prg := []byte{0x01, 0x08, 0xA9, 0x00, 0x60}
	if err := b.RunPrg(context.Background(), prg); err != nil {
		t.Fatalf("run prg: %v", err)
	}

	ops := commandOps(srv)
	if len(ops) != 5 {
		t.Fatalf("expected 5 commands, got %d: %+v", len(ops), ops)
	}
	if ops[0].Cmd != monitor.CmdReset {
		t.Fatalf("step 1 not reset: %+v", ops[0])
	}
	if ops[1].Cmd != monitor.CmdMemSet || ops[1].Addr != 0x0801 || !bytes.Equal(ops[1].Data, []byte{0xA9, 0x00, 0x60}) {
		t.Fatalf("step 2 not body write: %+v", ops[1])
	}
	if ops[2].Cmd != monitor.CmdMemSet || ops[2].Addr != basicPointersAddr {
		t.Fatalf("step 3 not pointer patch: %+v", ops[2])
	}
	// programEnd = $0801 + 3 = $0804, written three times.
	if !bytes.Equal(ops[2].Data, []byte{0x04, 0x08, 0x04, 0x08, 0x04, 0x08}) {
		t.Fatalf("pointer patch bytes: %v", ops[2].Data)
	}
	if ops[3].Cmd != monitor.CmdKeyboardFeed || ops[3].Text != "RUN\r" {
		t.Fatalf("step 4 not RUN feed: %+v", ops[3])
	}
	if ops[4].Cmd != monitor.CmdExitMonitor {
		t.Fatalf("step 5 not exit monitor: %+v", ops[4])
	}
}

func TestRunPrgEmptyBodySkipsBodyWrite(t *testing.T) {
	b, srv := newTestBackend(t)

	if err := b.RunPrg(context.Background(), []byte{0x01, 0x08}); err != nil {
		t.Fatalf("run prg: %v", err)
	}

	ops := commandOps(srv)
	if len(ops) != 4 {
		t.Fatalf("expected 4 commands (no body write), got %d: %+v", len(ops), ops)
	}
	if ops[1].Cmd != monitor.CmdMemSet || ops[1].Addr != basicPointersAddr {
		t.Fatalf("pointer patch missing: %+v", ops[1])
	}
	if !bytes.Equal(ops[1].Data, []byte{0x01, 0x08, 0x01, 0x08, 0x01, 0x08}) {
		t.Fatalf("programEnd must be $0801: %v", ops[1].Data)
	}
	if ops[2].Cmd != monitor.CmdKeyboardFeed || ops[2].Text != "RUN\r" {
		t.Fatalf("RUN feed missing: %+v", ops[2])
	}
}

func TestLoadPrgDoesNotRun(t *testing.T) {
	b, srv := newTestBackend(t)

	if err := b.LoadPrg(context.Background(), []byte{0x01, 0x08, 0xEA}); err != nil {
		t.Fatalf("load prg: %v", err)
	}
	for _, op := range srv.Ops() {
		if op.Cmd == monitor.CmdKeyboardFeed {
			t.Fatalf("load must not type RUN: %+v", op)
		}
	}
}

func TestRunPrgTooShortIsValidationErrorWithoutTraffic(t *testing.T) {
	b, srv := newTestBackend(t)

	err := b.RunPrg(context.Background(), []byte{0x01})
	var verr *facade.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(srv.Ops()) != 0 {
		t.Fatalf("validation failure reached the wire: %+v", srv.Ops())
	}
}

func TestMemoryRoundTripThroughBackend(t *testing.T) {
	b, srv := newTestBackend(t)
	ctx := context.Background()

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := b.WriteMemory(ctx, 0xC000, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := b.ReadMemory(ctx, 0xC000, len(payload))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: %v", got)
	}
	if mem := srv.Mem(0xC000, 4); !bytes.Equal(mem, payload) {
		t.Fatalf("server memory mismatch: %v", mem)
	}
}

func TestMemoryValidationRejectsBeforeNetwork(t *testing.T) {
	b, srv := newTestBackend(t)
	ctx := context.Background()

	cases := []func() error{
		func() error { _, err := b.ReadMemory(ctx, 0x10000, 1); return err },
		func() error { _, err := b.ReadMemory(ctx, -1, 1); return err },
		func() error { _, err := b.ReadMemory(ctx, 0x0400, 0); return err },
		func() error { _, err := b.ReadMemory(ctx, 0xFFFF, 2); return err },
		func() error { return b.WriteMemory(ctx, 0x10000, []byte{1}) },
		func() error { return b.WriteMemory(ctx, 0x0400, nil) },
		func() error { return b.WriteMemory(ctx, 0xFFFF, []byte{1, 2}) },
	}
	for i, call := range cases {
		err := call()
		var verr *facade.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
	if len(srv.Ops()) != 0 {
		t.Fatalf("invalid input reached the wire: %+v", srv.Ops())
	}
}

func TestRebootAliasesReset(t *testing.T) {
	b, srv := newTestBackend(t)

	if err := b.Reboot(context.Background()); err != nil {
		t.Fatalf("reboot: %v", err)
	}
	ops := commandOps(srv)
	if len(ops) != 2 || ops[0].Cmd != monitor.CmdReset || ops[1].Cmd != monitor.CmdExitMonitor {
		t.Fatalf("reboot must be reset+exit: %+v", ops)
	}
}

func TestPauseResumeReportSuccessWithoutTraffic(t *testing.T) {
	b, srv := newTestBackend(t)
	ctx := context.Background()

	if err := b.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := b.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(srv.Ops()) != 0 {
		t.Fatalf("pause/resume issued protocol calls: %+v", srv.Ops())
	}
}

func TestUnsupportedSurfaceIsTagged(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	calls := map[facade.Op]func() error{
		facade.OpPoweroff:    func() error { return b.Poweroff(ctx) },
		facade.OpMenuButton:  func() error { return b.MenuButton(ctx) },
		facade.OpRunCrt:      func() error { return b.RunCrtFile(ctx, "demo.crt") },
		facade.OpSidplay:     func() error { return b.SidplayFile(ctx, "tune.sid", 0) },
		facade.OpDrivesList:  func() error { _, err := b.DrivesList(ctx); return err },
		facade.OpStreamStart: func() error { return b.StreamStart(ctx, "video", "") },
		facade.OpConfigsList: func() error { _, err := b.ConfigsList(ctx); return err },
	}
	for op, call := range calls {
		err := call()
		var unsupported *facade.UnsupportedOperationError
		if !errors.As(err, &unsupported) {
			t.Fatalf("%s: expected UnsupportedOperationError, got %v", op, err)
		}
		if unsupported.Op != op || unsupported.Backend != facade.KindEmulator {
			t.Fatalf("%s: wrong tag: %+v", op, unsupported)
		}
		if !facade.IsUnsupported(err) {
			t.Fatalf("%s: IsUnsupported must match", op)
		}
	}
}

func TestVersionParsesInfoBody(t *testing.T) {
	b, _ := newTestBackend(t)

	v, err := b.Version(context.Background())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v.Version != "3.8" {
		t.Fatalf("version parse: %q", v.Version)
	}
}
