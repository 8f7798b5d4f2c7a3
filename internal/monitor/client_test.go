package monitor

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/retrolab/c64bridge/internal/testutil/monitortest"
	"github.com/retrolab/c64bridge/internal/testutil/testlog"
)

func dialTest(t *testing.T, srv *monitortest.Server) *Client {
	t.Helper()
	client, err := Dial(context.Background(), srv.Addr(), Config{RequestTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRequestIDsStrictlyIncreasingFromOne(t *testing.T) {
	testlog.Start(t)
	srv := monitortest.Start(t)
	client := dialTest(t, srv)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := client.Info(ctx); err != nil {
			t.Fatalf("info %d: %v", i, err)
		}
	}
	ops := srv.Ops()
	if len(ops) != 5 {
		t.Fatalf("expected 5 ops, got %d", len(ops))
	}
	for i, op := range ops {
		if op.ID != uint32(i+1) {
			t.Fatalf("op %d: request id %d, want %d", i, op.ID, i+1)
		}
	}
}

func TestMemRoundTripRandomPayloads(t *testing.T) {
	testlog.Start(t)
	srv := monitortest.Start(t)
	client := dialTest(t, srv)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(0x64))

	for i := 0; i < 16; i++ {
		length := 1 + rng.Intn(256)
		addr := uint16(rng.Intn(0x10000 - length))
		payload := make([]byte, length)
		rng.Read(payload)

		if err := client.MemSet(ctx, addr, payload); err != nil {
			t.Fatalf("mem set at $%04X: %v", addr, err)
		}
		got, err := client.MemGet(ctx, addr, addr+uint16(length)-1)
		if err != nil {
			t.Fatalf("mem get at $%04X: %v", addr, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("round trip mismatch at $%04X: got %d bytes", addr, len(got))
		}
	}
}

func TestUnsolicitedEventNeverResolvesARequest(t *testing.T) {
	testlog.Start(t)
	srv := monitortest.Start(t)
	srv.GreetWith(monitortest.EventFrame(0x62, []byte{0x00, 0x10}))
	client := dialTest(t, srv)

	// The event arrives before any request exists; the next call must still
	// correlate to its own response.
	frame, err := client.Info(context.Background())
	if err != nil {
		t.Fatalf("info after event: %v", err)
	}
	if frame.Type != CmdInfo {
		t.Fatalf("resolved with wrong frame type 0x%02X", frame.Type)
	}
}

func TestProtocolErrorCarriesCode(t *testing.T) {
	testlog.Start(t)
	srv := monitortest.Start(t)
	srv.FailWith(CmdReset, 0x02)
	client := dialTest(t, srv)

	err := client.Reset(context.Background(), ResetSoft)
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if protoErr.Code != 0x02 || protoErr.Command != CmdReset {
		t.Fatalf("wrong error detail: %+v", protoErr)
	}
}

func TestTypeMismatchRejectsAndRemovesPending(t *testing.T) {
	testlog.Start(t)
	srv := monitortest.Start(t)
	srv.RespondWithType(CmdInfo, 0x77)
	client := dialTest(t, srv)

	_, err := client.Info(context.Background())
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
	if mismatch.Expected != CmdInfo || mismatch.Got != 0x77 {
		t.Fatalf("wrong mismatch detail: %+v", mismatch)
	}
	if client.pending.size() != 0 {
		t.Fatalf("pending entry leaked: %d", client.pending.size())
	}
}

func TestCloseRejectsPendingAndBlocksNewSends(t *testing.T) {
	testlog.Start(t)
	srv := monitortest.Start(t)
	client := dialTest(t, srv)

	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := client.Info(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestKeyboardFeedEncoding(t *testing.T) {
	testlog.Start(t)
	srv := monitortest.Start(t)
	client := dialTest(t, srv)

	if err := client.KeyboardFeed(context.Background(), "RUN\r"); err != nil {
		t.Fatalf("keyboard feed: %v", err)
	}
	ops := srv.Ops()
	if len(ops) != 1 || ops[0].Text != "RUN\r" {
		t.Fatalf("keyboard feed not recorded as typed text: %+v", ops)
	}
}

func TestMemGetClampsToDeclaredLength(t *testing.T) {
	testlog.Start(t)
	srv := monitortest.Start(t)
	srv.SetMem(0x0400, []byte{1, 2, 3, 4})
	client := dialTest(t, srv)

	got, err := client.MemGet(context.Background(), 0x0400, 0x0402)
	if err != nil {
		t.Fatalf("mem get: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("clamp mismatch: %v", got)
	}
}
