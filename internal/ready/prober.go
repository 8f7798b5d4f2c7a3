// Package ready blocks until the target's BASIC interpreter is confirmed
// idle, so synthetic input is never raced against boot or reset.
package ready

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/retrolab/c64bridge/internal/facade"
)

// MemoryReader is the slice of the protocol client the prober needs.
type MemoryReader interface {
	MemGet(ctx context.Context, start, end uint16) ([]byte, error)
}

// cursorFlashAddr is the zero-page cursor-blink-enable flag: zero while the
// interpreter sits at the READY prompt with a flashing cursor, nonzero while
// a program is running or the machine is still booting.
const cursorFlashAddr = 0x00CC

// Options bounds and tunes one readiness wait.
type Options struct {
	Timeout      time.Duration
	Interval     time.Duration
	EnsurePrompt bool
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Interval <= 0 {
		o.Interval = 100 * time.Millisecond
	}
	return o
}

// WaitUntilReady polls the readiness flag at a fixed interval until the
// interpreter is idle or the timeout elapses. Probe errors during the boot
// transient count as not-ready. With EnsurePrompt set, one confirming probe
// after the first positive reading guards against false positives while the
// machine is still settling.
func WaitUntilReady(ctx context.Context, mem MemoryReader, opts Options) error {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)
	confirmed := 0
	needed := 1
	if opts.EnsurePrompt {
		needed = 2
	}

	for {
		idle, err := probeIdle(ctx, mem)
		if err != nil {
			log.Trace().Err(err).Msg("readiness probe failed, retrying")
			confirmed = 0
		} else if idle {
			confirmed++
			if confirmed >= needed {
				return nil
			}
		} else {
			confirmed = 0
		}

		if time.Now().After(deadline) {
			return &facade.TimeoutError{Stage: "interpreter readiness", Budget: opts.Timeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

func probeIdle(ctx context.Context, mem MemoryReader) (bool, error) {
	b, err := mem.MemGet(ctx, cursorFlashAddr, cursorFlashAddr)
	if err != nil {
		return false, err
	}
	return len(b) == 1 && b[0] == 0x00, nil
}
