package monitor

import "encoding/binary"

const (
	syncByte = 0x02
	syncLen  = 2

	// readHeaderLen is the fixed byte count before the body on responses:
	// sync(2) + body length(4) + type(1) + error(1) + request id(4).
	readHeaderLen = 12

	// writeHeaderLen is the fixed request header:
	// sync(2) + body length(4) + request id(4) + command(1).
	writeHeaderLen = 11
)

// EventRequestID marks an unsolicited emulator-originated frame, never
// correlated to a pending request.
const EventRequestID uint32 = 0xFFFFFFFF

// Monitor command codes used by this client.
const (
	CmdMemGet       byte = 0x01
	CmdMemSet       byte = 0x02
	CmdKeyboardFeed byte = 0x72
	CmdInfo         byte = 0x85
	CmdExitMonitor  byte = 0xAA
	CmdQuit         byte = 0xBB
	CmdReset        byte = 0xCC
)

// Reset modes for CmdReset's one-byte body.
const (
	ResetSoft byte = 0x00
	ResetHard byte = 0x01
)

// Frame is one complete deframed monitor response or event.
type Frame struct {
	Type      byte
	ErrCode   byte
	RequestID uint32
	Body      []byte
}

// encodeRequest builds the fixed request header followed by the body.
func encodeRequest(cmd byte, requestID uint32, body []byte) []byte {
	buf := make([]byte, writeHeaderLen+len(body))
	buf[0] = syncByte
	buf[1] = syncByte
	binary.LittleEndian.PutUint32(buf[2:6], uint32(len(body)))
	binary.LittleEndian.PutUint32(buf[6:10], requestID)
	buf[10] = cmd
	copy(buf[writeHeaderLen:], body)
	return buf
}
