package monitor

import (
	"context"
	"encoding/binary"
	"fmt"
)

const (
	memspaceMain = 0x00
	bankDefault  = 0x0000
)

// memBodyLen is the fixed mem-get/mem-set request header:
// sidefx(1) + start(2) + end(2) + memspace(1) + bank(2).
const memBodyLen = 8

func encodeMemHeader(sidefx byte, start, end uint16) []byte {
	body := make([]byte, memBodyLen)
	body[0] = sidefx
	binary.LittleEndian.PutUint16(body[1:3], start)
	binary.LittleEndian.PutUint16(body[3:5], end)
	body[5] = memspaceMain
	binary.LittleEndian.PutUint16(body[6:8], bankDefault)
	return body
}

// MemGet reads the inclusive range start..end from main memory.
func (c *Client) MemGet(ctx context.Context, start, end uint16) ([]byte, error) {
	resp, err := c.Send(ctx, CmdMemGet, encodeMemHeader(0, start, end))
	if err != nil {
		return nil, err
	}
	if len(resp.Body) < 2 {
		return nil, ErrShortResponse
	}
	length := int(binary.LittleEndian.Uint16(resp.Body[0:2]))
	data := resp.Body[2:]
	if length > len(data) {
		return nil, fmt.Errorf("%w: declared %d bytes, carried %d", ErrShortResponse, length, len(data))
	}
	out := make([]byte, length)
	copy(out, data[:length])
	return out, nil
}

// MemSet writes payload to main memory starting at start, with side effects
// enabled so I/O-mapped regions behave as on a real write.
func (c *Client) MemSet(ctx context.Context, start uint16, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("monitor: empty mem-set payload")
	}
	end := start + uint16(len(payload)) - 1
	body := append(encodeMemHeader(1, start, end), payload...)
	_, err := c.Send(ctx, CmdMemSet, body)
	return err
}

// KeyboardFeed types text into the emulated keyboard buffer.
func (c *Client) KeyboardFeed(ctx context.Context, text string) error {
	if len(text) == 0 || len(text) > 0xFF {
		return fmt.Errorf("monitor: keyboard feed length %d outside 1..255", len(text))
	}
	body := make([]byte, 1+len(text))
	body[0] = byte(len(text))
	copy(body[1:], text)
	_, err := c.Send(ctx, CmdKeyboardFeed, body)
	return err
}

// Reset resets the emulated machine; mode is ResetSoft or ResetHard.
func (c *Client) Reset(ctx context.Context, mode byte) error {
	_, err := c.Send(ctx, CmdReset, []byte{mode})
	return err
}

// Info queries emulator identification; the body layout is emulator-defined
// and returned raw.
func (c *Client) Info(ctx context.Context) (Frame, error) {
	return c.Send(ctx, CmdInfo, nil)
}

// ExitMonitor leaves the monitor so the machine resumes real-time execution.
func (c *Client) ExitMonitor(ctx context.Context) error {
	_, err := c.Send(ctx, CmdExitMonitor, nil)
	return err
}

// Quit asks the emulator process to terminate.
func (c *Client) Quit(ctx context.Context) error {
	_, err := c.Send(ctx, CmdQuit, nil)
	return err
}
