// Package interfaces defines the capabilities the core consumes from its
// environment. They are kept separate from the root package so that
// internal packages (store, dispatch, session, monitor) can depend on them
// without importing the root package and creating a cycle.
package interfaces

import "time"

// ClusterMap is the read-only view of cluster membership the core consumes
// to stamp replies and to observe its own up/down state (§6).
type ClusterMap interface {
	Epoch() uint32
	Contains(osdID uint32, addr string) bool
	IsUp(osdID uint32) bool
}

// MonitorClient is the write path into the monitor quorum (§6). The core
// never implements the monitor protocol itself; it only calls these methods
// at boot and shutdown.
type MonitorClient interface {
	Boot(osdID uint32, fsid string) error
	MarkMeDown(osdID uint32) error
	AddToCRUSH(osdID uint32, weight float64) error
	WaitForLatestMap(timeout time.Duration) error
}

// Message is a framed request or reply the Messenger hands to (or receives
// from) the core, split the way the wire protocol itself splits a message
// (§4.2): Data is the "front" segment (the fixed/variable envelope
// DecodeRequest/EncodeReply parse), and DataSegment is the separate
// variable-length payload segment (a request's op indata, a reply's
// concatenated op outdata) that the shared BufferCursor walks. The two must
// stay distinct: decoding the envelope from the same bytes a cursor also
// reads from would have WRITE consume its indata out of the front segment
// instead of its own data segment.
type Message struct {
	TID         uint64
	MsgType     uint16
	Data        []byte
	DataSegment []byte
}

// Messenger is the on-wire transport capability (§1, §6): session
// establishment, framing, CRC, and keepalive are all external to the core.
// The core only allocates, dispatches, and sends framed Message values.
type Messenger interface {
	AllocMessage(dataLen uint32) (*Message, error)
	Send(connID uint64, msg *Message) error
	Fault(connID uint64, err error)
}

// PageHandle is a reference to one compound-page allocation.
type PageHandle interface {
	// Bytes exposes the page's backing memory.
	Bytes() []byte
	// Order is the allocation order (page count = 1<<Order).
	Order() uint
}

// PageAllocator is the compound-page allocation capability (§5). Object
// blocks are requested through it; store.Read returns its reply buffers as
// plain heap slices, not pages from this allocator.
type PageAllocator interface {
	Alloc(order uint) (PageHandle, error)
	Free(PageHandle)
}
