package monitor

import (
	"bytes"
	"encoding/binary"
)

type decoderState int

const (
	stateSeekingSync decoderState = iota
	stateHaveHeader
)

var syncMarker = []byte{syncByte, syncByte}

// Decoder is the streaming deframer for the monitor byte stream. It is a
// two-state machine: seeking the sync marker, then waiting for a complete
// frame once the header's body length is known. Garbage before a sync marker
// is discarded (resynchronization).
type Decoder struct {
	buf     []byte
	state   decoderState
	bodyLen int
}

// Feed appends raw socket bytes and returns every frame completed by them.
func (d *Decoder) Feed(p []byte) []Frame {
	d.buf = append(d.buf, p...)
	var frames []Frame
	for {
		switch d.state {
		case stateSeekingSync:
			i := bytes.Index(d.buf, syncMarker)
			if i < 0 {
				d.discardToTail()
				return frames
			}
			if i > 0 {
				d.buf = d.buf[i:]
			}
			if len(d.buf) < readHeaderLen {
				return frames
			}
			d.bodyLen = int(binary.LittleEndian.Uint32(d.buf[2:6]))
			d.state = stateHaveHeader
		case stateHaveHeader:
			total := readHeaderLen + d.bodyLen
			if len(d.buf) < total {
				return frames
			}
			raw := d.buf[:total]
			body := make([]byte, d.bodyLen)
			copy(body, raw[readHeaderLen:])
			frames = append(frames, Frame{
				Type:      raw[6],
				ErrCode:   raw[7],
				RequestID: binary.LittleEndian.Uint32(raw[8:12]),
				Body:      body,
			})
			rest := make([]byte, len(d.buf)-total)
			copy(rest, d.buf[total:])
			d.buf = rest
			d.state = stateSeekingSync
		}
	}
}

// discardToTail drops buffered garbage while keeping a trailing partial sync
// marker so a marker split across two reads is still found.
func (d *Decoder) discardToTail() {
	if n := len(d.buf); n > 0 && d.buf[n-1] == syncByte {
		d.buf = append(d.buf[:0], syncByte)
		return
	}
	d.buf = d.buf[:0]
}
