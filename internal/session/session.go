// Package session implements ServerSession (C5): the messenger-facing glue
// that decodes a received message, runs the dispatcher, and allocates and
// sends the reply, with a bounded per-connection reference count so the
// connection outlives the asynchronous send (§4.5).
package session

import (
	"sync"
	"sync/atomic"

	"github.com/behrlich/go-osd/internal/cursor"
	"github.com/behrlich/go-osd/internal/dispatch"
	"github.com/behrlich/go-osd/internal/interfaces"
	"github.com/behrlich/go-osd/internal/logging"
	"github.com/behrlich/go-osd/internal/oerr"
	"github.com/behrlich/go-osd/internal/wire"
)

// osdOpMsgType is the only message type ServerSession services; anything
// else is logged and dropped (§4.5).
const osdOpMsgType uint16 = 42

// maxRefCount bounds the per-connection reference count: the single-threaded
// model removes any need for atomics across requests, but §9 calls for an
// abstraction that could later be swapped to atomic counting under
// multi-executor sharding, so this uses atomic.Int32 now rather than a plain
// int even though nothing here is actually concurrent yet.
const maxRefCount = 1 << 20

// Connection tracks one messenger connection's outstanding asynchronous
// sends, so a fault doesn't tear it down mid-flight.
type Connection struct {
	ID   uint64
	refs atomic.Int32
}

// Get increments the reference count, refusing once the bound is hit
// (a connection issuing more outstanding sends than this is misbehaving).
func (c *Connection) Get() bool {
	for {
		cur := c.refs.Load()
		if cur >= maxRefCount {
			return false
		}
		if c.refs.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Put releases one reference acquired by Get.
func (c *Connection) Put() { c.refs.Add(-1) }

// Session is ServerSession (C5).
type Session struct {
	dispatcher *dispatch.Dispatcher
	messenger  interfaces.Messenger
	log        *logging.Logger

	mu    sync.Mutex
	conns map[uint64]*Connection
}

// New constructs a Session bound to one dispatcher and messenger.
func New(d *dispatch.Dispatcher, m interfaces.Messenger, log *logging.Logger) *Session {
	if log == nil {
		log = logging.Default()
	}
	return &Session{dispatcher: d, messenger: m, log: log, conns: make(map[uint64]*Connection)}
}

// AcceptConnection registers a new connection, returning its handle.
func (s *Session) AcceptConnection(connID uint64) *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Connection{ID: connID}
	s.conns[connID] = c
	return c
}

// Fault drops a connection: any request still executing on it is not
// cancellable (there are no yields to interrupt, §5), so its reply is
// simply dropped by the messenger on the next Send attempt.
func (s *Session) Fault(connID uint64, err error) {
	s.mu.Lock()
	delete(s.conns, connID)
	s.mu.Unlock()
	s.messenger.Fault(connID, err)
}

// Dispatch handles one inbound Message per §4.5: only OSD_OP is serviced,
// decode failures are logged and drop the message without a reply (§7), and
// a successfully dispatched request is replied to over the same connection.
func (s *Session) Dispatch(connID uint64, msg *interfaces.Message) {
	if msg.MsgType != osdOpMsgType {
		s.log.Debug("dropping unserviced message type", "msg_type", msg.MsgType, "conn", connID)
		return
	}

	s.mu.Lock()
	conn := s.conns[connID]
	s.mu.Unlock()
	if conn == nil || !conn.Get() {
		s.log.Warn("dispatch on unknown or saturated connection", "conn", connID)
		return
	}
	defer conn.Put()

	req, err := wire.DecodeRequest(msg.TID, msg.Data)
	if err != nil {
		if kind, ok := oerr.KindOf(err); ok {
			switch kind {
			case oerr.Truncated, oerr.Corrupted, oerr.UnsupportedVersion:
				s.log.Warn("dropping malformed request", "conn", connID, "err", err)
				return
			}
		}
		s.log.Error("unexpected decode failure", "conn", connID, "err", err)
		return
	}

	cur := cursor.NewDiscard(0)
	if len(msg.DataSegment) > 0 {
		// op indata (e.g. WRITE's payload) lives in the message's own data
		// segment, separate from the front envelope msg.Data was decoded
		// from. A real Messenger hands this as a page-vector segment sized
		// to hdr.data_len; this reference session exposes it as a single
		// kernel segment since it has no live page-vector transport.
		cur = cursor.NewKernelSegments([]cursor.KernelSegment{{Data: msg.DataSegment}}, len(msg.DataSegment), cursor.DirRead)
	}

	front, data := s.dispatcher.Dispatch(req, cur)

	reply, err := s.messenger.AllocMessage(uint32(len(front)))
	if err != nil {
		s.log.Error("reply allocation failed, dropping reply", "conn", connID, "err", err)
		return
	}
	reply.TID = msg.TID
	reply.Data = front
	reply.DataSegment = data

	if err := s.messenger.Send(connID, reply); err != nil {
		s.log.Warn("send failed, connection likely faulted", "conn", connID, "err", err)
	}
}
