package monitor

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/retrolab/c64bridge/internal/observability"
)

// Config defines per-connection transport timeouts.
type Config struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns transport defaults sized for a local emulator.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 3 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	return c
}

// Client is one binary-monitor connection. A connection serves one logical
// facade operation and is then closed, never reused across operations.
// Request ids are assigned from a per-connection counter starting at 1;
// concurrent Sends are safe because correlation is by id, though callers in
// this repository issue calls strictly sequentially per connection.
type Client struct {
	conn    net.Conn
	cfg     Config
	pending *pendingTable
	lastID  atomic.Uint32
	writeMu sync.Mutex
	closed  atomic.Bool
	logger  zerolog.Logger
}

// Dial opens one monitor connection and starts its read loop.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	c := &Client{
		conn:    conn,
		cfg:     cfg,
		pending: newPendingTable(),
		logger:  log.With().Str("component", "monitor").Str("addr", addr).Logger(),
	}
	go c.readLoop()
	return c, nil
}

// Send issues one command and blocks until its correlated response, a
// protocol failure, connection teardown, or the request budget elapsing.
func (c *Client) Send(ctx context.Context, cmd byte, body []byte) (Frame, error) {
	start := time.Now()
	f, err := c.send(ctx, cmd, body)
	observability.RecordMonitorCommand(cmd, err, time.Since(start))
	return f, err
}

func (c *Client) send(ctx context.Context, cmd byte, body []byte) (Frame, error) {
	if c.closed.Load() {
		return Frame{}, ErrClientClosed
	}
	id := c.lastID.Add(1)
	entry, err := c.pending.add(id, cmd)
	if err != nil {
		return Frame{}, err
	}

	c.writeMu.Lock()
	_, werr := c.conn.Write(encodeRequest(cmd, id, body))
	c.writeMu.Unlock()
	if werr != nil {
		c.fail(werr)
		return Frame{}, &ConnectionError{Err: werr}
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case out := <-entry.done:
		return out.frame, out.err
	case <-ctx.Done():
		c.pending.reject(id, ctx.Err())
		return Frame{}, ctx.Err()
	case <-timer.C:
		err := &ConnectionError{Err: context.DeadlineExceeded}
		c.pending.reject(id, err)
		return Frame{}, err
	}
}

// Close tears the connection down and rejects everything still pending.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.conn.Close()
	c.pending.rejectAll(ErrClientClosed)
	return err
}

func (c *Client) fail(cause error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	_ = c.conn.Close()
	c.pending.rejectAll(&ConnectionError{Err: cause})
}

func (c *Client) readLoop() {
	var dec Decoder
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				c.dispatch(f)
			}
		}
		if err != nil {
			if !c.closed.Load() {
				c.logger.Debug().Err(err).Msg("monitor read loop ended")
			}
			c.fail(err)
			return
		}
	}
}

// dispatch routes one deframed frame to its pending request. Unsolicited
// events and late or duplicate responses are dropped.
func (c *Client) dispatch(f Frame) {
	if f.RequestID == EventRequestID {
		c.logger.Trace().Uint8("type", f.Type).Int("body_len", len(f.Body)).Msg("unsolicited event dropped")
		return
	}
	entry := c.pending.take(f.RequestID)
	if entry == nil {
		c.logger.Debug().Uint32("request_id", f.RequestID).Msg("uncorrelated response dropped")
		return
	}
	if f.ErrCode != 0 {
		entry.done <- outcome{err: &ProtocolError{Command: entry.expected, Code: f.ErrCode}}
		return
	}
	if f.Type != entry.expected {
		entry.done <- outcome{err: &MismatchError{RequestID: f.RequestID, Expected: entry.expected, Got: f.Type}}
		return
	}
	entry.done <- outcome{frame: f}
}
