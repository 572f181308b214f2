// Package messenger provides a minimal reference Messenger (§6): a
// length-prefixed TCP framer so cmd/osd-mem is actually reachable over the
// network. The core depends only on interfaces.Messenger; this is one
// concrete transport, not a requirement of the core itself.
//
// No example in the retrieved corpus implements a bespoke binary framing
// protocol over a raw net.Conn (the corpus's network-facing services speak
// HTTP or Redis), so this framer is built directly on net and encoding/binary
// rather than adapted from a pack example; see DESIGN.md.
package messenger

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/behrlich/go-osd/internal/interfaces"
	"github.com/behrlich/go-osd/internal/logging"
	"github.com/behrlich/go-osd/internal/session"
)

// frameHeaderSize is the fixed prefix before a Message's two segments: a
// u32 front length, a u32 data-segment length, a u64 tid, and a u16
// msg_type. Front and data segment are framed separately (§4.2) so a
// receiver can decode the envelope without it being entangled with the
// op indata/outdata payload bytes.
const frameHeaderSize = 4 + 4 + 8 + 2

// TCP is a reference Messenger implementation over length-prefixed frames.
type TCP struct {
	log *logging.Logger

	mu       sync.Mutex
	nextConn uint64
	conns    map[uint64]net.Conn

	listener net.Listener
}

var _ interfaces.Messenger = (*TCP)(nil)

// NewTCP constructs a TCP messenger; call Listen to start accepting.
func NewTCP(log *logging.Logger) *TCP {
	if log == nil {
		log = logging.Default()
	}
	return &TCP{log: log, conns: make(map[uint64]net.Conn)}
}

// sessionHooks is the subset of *session.Session this messenger calls back
// into.
type sessionHooks interface {
	AcceptConnection(connID uint64) *session.Connection
	Dispatch(connID uint64, msg *interfaces.Message)
	Fault(connID uint64, err error)
}

// Listen starts accepting connections on addr, handing each framed message
// to hooks.Dispatch. It blocks: accepting stops when Close is called or the
// listener errors, and Listen then returns that error once every open
// connection's serve loop has also ended; it does not close open
// connections itself. cmd/osd-mem runs it on its own goroutine.
func (t *TCP) Listen(addr string, hooks sessionHooks) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("messenger: listen %s: %w", addr, err)
	}
	t.listener = ln

	var g errgroup.Group
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			connID := t.register(conn)
			hooks.AcceptConnection(connID)
			g.Go(func() error {
				t.serve(connID, conn, hooks)
				return nil
			})
		}
	})
	return g.Wait()
}

func (t *TCP) register(conn net.Conn) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextConn++
	id := t.nextConn
	t.conns[id] = conn
	return id
}

func (t *TCP) serve(connID uint64, conn net.Conn, hooks sessionHooks) {
	defer conn.Close()
	for {
		msg, err := readFrame(conn)
		if err != nil {
			t.mu.Lock()
			delete(t.conns, connID)
			t.mu.Unlock()
			if err != io.EOF {
				hooks.Fault(connID, err)
			}
			return
		}
		hooks.Dispatch(connID, msg)
	}
}

func readFrame(r io.Reader) (*interfaces.Message, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	frontLen := binary.LittleEndian.Uint32(hdr[0:4])
	dataLen := binary.LittleEndian.Uint32(hdr[4:8])
	tid := binary.LittleEndian.Uint64(hdr[8:16])
	msgType := binary.LittleEndian.Uint16(hdr[16:18])

	front := make([]byte, frontLen)
	if frontLen > 0 {
		if _, err := io.ReadFull(r, front); err != nil {
			return nil, err
		}
	}
	data := make([]byte, dataLen)
	if dataLen > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
	}
	return &interfaces.Message{TID: tid, MsgType: msgType, Data: front, DataSegment: data}, nil
}

func writeFrame(w io.Writer, msg *interfaces.Message) error {
	hdr := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(msg.Data)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(msg.DataSegment)))
	binary.LittleEndian.PutUint64(hdr[8:16], msg.TID)
	binary.LittleEndian.PutUint16(hdr[16:18], msg.MsgType)
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if len(msg.Data) > 0 {
		if _, err := w.Write(msg.Data); err != nil {
			return err
		}
	}
	if len(msg.DataSegment) > 0 {
		if _, err := w.Write(msg.DataSegment); err != nil {
			return err
		}
	}
	return nil
}

// AllocMessage allocates a reply Message with a zeroed data buffer of
// dataLen bytes; the dispatcher overwrites Data before Send.
func (t *TCP) AllocMessage(dataLen uint32) (*interfaces.Message, error) {
	return &interfaces.Message{Data: make([]byte, dataLen)}, nil
}

// Send writes msg to connID's socket, framed.
func (t *TCP) Send(connID uint64, msg *interfaces.Message) error {
	t.mu.Lock()
	conn := t.conns[connID]
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("messenger: send on unknown connection %d", connID)
	}
	return writeFrame(conn, msg)
}

// Fault closes and forgets a connection following a protocol violation
// observed by the caller rather than by the read loop itself.
func (t *TCP) Fault(connID uint64, err error) {
	t.mu.Lock()
	conn := t.conns[connID]
	delete(t.conns, connID)
	t.mu.Unlock()
	if conn != nil {
		t.log.Warn("connection faulted", "conn", connID, "err", err)
		conn.Close()
	}
}

// Close stops the listener, if running.
func (t *TCP) Close() error {
	if t.listener != nil {
		return t.listener.Close()
	}
	return nil
}
