package vice

import (
	"context"
	"encoding/binary"

	"github.com/retrolab/c64bridge/internal/facade"
	"github.com/retrolab/c64bridge/internal/monitor"
	"github.com/retrolab/c64bridge/internal/ready"
)

// basicPointersAddr is the zero-page location of the interpreter's
// end-of-program pointer (VARTAB); ARYTAB and STREND follow as consecutive
// 16-bit words. Writing the program end there tells BASIC the program's
// extent without going through its own file loader.
const basicPointersAddr = 0x002D

const basicPointerCount = 3

// RunPrg injects a PRG image into memory and synthesizes RUN: reset to a
// known clean state, write the body at its load address, patch the BASIC
// pointers, type RUN, and leave the monitor so execution resumes.
func (b *Backend) RunPrg(ctx context.Context, prg []byte) error {
	return b.inject(ctx, prg, true)
}

// LoadPrg injects a PRG image without starting it.
func (b *Backend) LoadPrg(ctx context.Context, prg []byte) error {
	return b.inject(ctx, prg, false)
}

func (b *Backend) inject(ctx context.Context, prg []byte, run bool) error {
	if len(prg) < 2 {
		return &facade.ValidationError{Field: "prg", Reason: "shorter than the 2-byte load address"}
	}
	loadAddr := binary.LittleEndian.Uint16(prg[0:2])
	body := prg[2:]
	programEnd := int(loadAddr) + len(body)
	if programEnd > facade.MaxAddress+1 {
		return &facade.ValidationError{Field: "prg", Reason: "image extends past 0xFFFF"}
	}

	client, err := b.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Reset(ctx, monitor.ResetSoft); err != nil {
		return err
	}
	readyCfg := b.readyCfg
	readyCfg.EnsurePrompt = true
	if err := ready.WaitUntilReady(ctx, client, readyCfg); err != nil {
		return err
	}

	if len(body) > 0 {
		if err := client.MemSet(ctx, loadAddr, body); err != nil {
			return err
		}
	}
	if err := client.MemSet(ctx, basicPointersAddr, basicPointerPatch(uint16(programEnd))); err != nil {
		return err
	}

	if run {
		if err := client.KeyboardFeed(ctx, "RUN\r"); err != nil {
			return err
		}
	}

	b.logger.Info().
		Uint16("load_addr", loadAddr).
		Int("body_len", len(body)).
		Bool("run", run).
		Msg("prg injected")
	return client.ExitMonitor(ctx)
}

// basicPointerPatch encodes the program end into the three consecutive
// interpreter pointers in one write.
func basicPointerPatch(programEnd uint16) []byte {
	patch := make([]byte, 2*basicPointerCount)
	for i := 0; i < basicPointerCount; i++ {
		binary.LittleEndian.PutUint16(patch[2*i:], programEnd)
	}
	return patch
}
