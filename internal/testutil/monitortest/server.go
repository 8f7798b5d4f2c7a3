// Package monitortest provides an in-process binary-monitor endpoint with
// 64 KiB of memory for exercising the protocol client and the emulator
// backend without a real emulator.
package monitortest

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
)

// Command codes mirrored from the wire contract.
const (
	cmdMemGet       = 0x01
	cmdMemSet       = 0x02
	cmdKeyboardFeed = 0x72
	cmdInfo         = 0x85
	cmdExitMonitor  = 0xAA
	cmdQuit         = 0xBB
	cmdReset        = 0xCC
)

const eventRequestID = 0xFFFFFFFF

// Op is one recorded request, in arrival order.
type Op struct {
	Cmd  byte
	ID   uint32
	Addr uint16
	Data []byte
	Text string
}

// Server accepts monitor connections, keeps a 64 KiB memory image across
// them, and records every request for assertion.
type Server struct {
	ln net.Listener

	mu        sync.Mutex
	mem       [0x10000]byte
	ops       []Op
	failCode  map[byte]byte
	typeSwap  map[byte]byte
	greetWith []byte
	infoBody  []byte
}

// Start listens on an ephemeral localhost port and serves until test cleanup.
func Start(t *testing.T) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("monitortest listen: %v", err)
	}
	s := &Server{
		ln:       ln,
		failCode: make(map[byte]byte),
		typeSwap: make(map[byte]byte),
		infoBody: []byte{0x03, 0x08, 0x00, 0x00},
	}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

func (s *Server) Port() int { return s.ln.Addr().(*net.TCPAddr).Port }

// Ops returns a copy of the recorded request log.
func (s *Server) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Op, len(s.ops))
	copy(out, s.ops)
	return out
}

// Mem returns n bytes of the memory image starting at addr.
func (s *Server) Mem(addr uint16, n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, n)
	copy(out, s.mem[addr:int(addr)+n])
	return out
}

// SetMem seeds the memory image directly, bypassing the wire.
func (s *Server) SetMem(addr uint16, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.mem[addr:], data)
}

// FailWith makes every response to cmd carry the given error byte.
func (s *Server) FailWith(cmd, code byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCode[cmd] = code
}

// RespondWithType makes responses to cmd carry a wrong type byte, to provoke
// stream-desynchronization handling in the client.
func (s *Server) RespondWithType(cmd, typ byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typeSwap[cmd] = typ
}

// GreetWith sends raw bytes to every new connection before serving requests,
// simulating startup banners and unsolicited events.
func (s *Server) GreetWith(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.greetWith = append([]byte(nil), raw...)
}

// EventFrame builds one unsolicited event frame for use with GreetWith.
func EventFrame(typ byte, body []byte) []byte {
	return responseFrame(typ, 0, eventRequestID, body)
}

func (s *Server) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	s.mu.Lock()
	greeting := s.greetWith
	s.mu.Unlock()
	if len(greeting) > 0 {
		if _, err := conn.Write(greeting); err != nil {
			return
		}
	}

	for {
		cmd, requestID, body, err := readRequest(conn)
		if err != nil {
			return
		}
		resp, quit := s.handle(cmd, requestID, body)
		if resp != nil {
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
		if quit {
			return
		}
	}
}

func (s *Server) handle(cmd byte, requestID uint32, body []byte) (resp []byte, quit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	respType := cmd
	if swapped, ok := s.typeSwap[cmd]; ok {
		respType = swapped
	}
	if code, ok := s.failCode[cmd]; ok {
		return responseFrame(respType, code, requestID, nil), false
	}

	switch cmd {
	case cmdMemGet:
		if len(body) < 8 {
			return responseFrame(respType, 0x80, requestID, nil), false
		}
		start := binary.LittleEndian.Uint16(body[1:3])
		end := binary.LittleEndian.Uint16(body[3:5])
		n := int(end) - int(start) + 1
		if n < 0 {
			return responseFrame(respType, 0x80, requestID, nil), false
		}
		payload := make([]byte, 2+n)
		binary.LittleEndian.PutUint16(payload[0:2], uint16(n))
		copy(payload[2:], s.mem[start:int(start)+n])
		s.ops = append(s.ops, Op{Cmd: cmd, ID: requestID, Addr: start, Data: payload[2:]})
		return responseFrame(respType, 0, requestID, payload), false
	case cmdMemSet:
		if len(body) < 8 {
			return responseFrame(respType, 0x80, requestID, nil), false
		}
		start := binary.LittleEndian.Uint16(body[1:3])
		data := append([]byte(nil), body[8:]...)
		copy(s.mem[start:], data)
		s.ops = append(s.ops, Op{Cmd: cmd, ID: requestID, Addr: start, Data: data})
		return responseFrame(respType, 0, requestID, nil), false
	case cmdKeyboardFeed:
		text := ""
		if len(body) >= 1 {
			text = string(body[1:])
		}
		s.ops = append(s.ops, Op{Cmd: cmd, ID: requestID, Text: text})
		return responseFrame(respType, 0, requestID, nil), false
	case cmdInfo:
		s.ops = append(s.ops, Op{Cmd: cmd, ID: requestID})
		return responseFrame(respType, 0, requestID, s.infoBody), false
	case cmdReset:
		mode := byte(0)
		if len(body) > 0 {
			mode = body[0]
		}
		s.ops = append(s.ops, Op{Cmd: cmd, ID: requestID, Data: []byte{mode}})
		return responseFrame(respType, 0, requestID, nil), false
	case cmdExitMonitor:
		s.ops = append(s.ops, Op{Cmd: cmd, ID: requestID})
		return responseFrame(respType, 0, requestID, nil), false
	case cmdQuit:
		s.ops = append(s.ops, Op{Cmd: cmd, ID: requestID})
		return responseFrame(respType, 0, requestID, nil), true
	default:
		return responseFrame(respType, 0x81, requestID, nil), false
	}
}

// readRequest consumes one 11-byte request header plus body.
func readRequest(r io.Reader) (cmd byte, requestID uint32, body []byte, err error) {
	var header [11]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, 0, nil, err
	}
	if header[0] != 0x02 || header[1] != 0x02 {
		return 0, 0, nil, errors.New("monitortest: bad sync marker")
	}
	bodyLen := binary.LittleEndian.Uint32(header[2:6])
	requestID = binary.LittleEndian.Uint32(header[6:10])
	cmd = header[10]
	body = make([]byte, bodyLen)
	if _, err = io.ReadFull(r, body); err != nil {
		return 0, 0, nil, err
	}
	return cmd, requestID, body, nil
}

// responseFrame builds one 12-byte response header plus body.
func responseFrame(typ, errCode byte, requestID uint32, body []byte) []byte {
	buf := make([]byte, 12+len(body))
	buf[0] = 0x02
	buf[1] = 0x02
	binary.LittleEndian.PutUint32(buf[2:6], uint32(len(body)))
	buf[6] = typ
	buf[7] = errCode
	binary.LittleEndian.PutUint32(buf[8:12], requestID)
	copy(buf[12:], body)
	return buf
}
