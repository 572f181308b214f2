// Package cursor implements BufferCursor (C1): a single scatter/gather
// iterator over three backing memory kinds plus a discard sink, shared by
// the wire codec (to ingest request payload) and the object store (to copy
// bytes into or out of blocks without an intermediate buffer).
//
// This replaces the teacher's macro-instantiated, per-call-site iterator
// kinds (three concrete iterator types compiled per use) with one tagged
// union and a small per-chunk callback (§9): the hot path stays a tight
// chunk loop, dynamic dispatch happens only at the outer per-segment level.
package cursor

import (
	"github.com/behrlich/go-osd/internal/interfaces"
)

// Direction records whether the cursor is being drained (read out of it) or
// filled (written into it). Most operations are direction-agnostic; it
// exists for callers that need to assert intent.
type Direction int

const (
	DirRead Direction = iota
	DirWrite
)

// Kind identifies which of the three backing memories (or the discard sink)
// a Cursor walks.
type Kind int

const (
	KindUserSegments Kind = iota
	KindKernelSegments
	KindPageVector
	KindDiscard
)

// UserAccessor performs checked copy-in/copy-out against one foreign-memory
// segment. A real messenger backs this with something like
// process_vm_readv/writev; CopyIn/CopyOut return the number of bytes
// actually transferred, which may be short of the request on a fault.
type UserAccessor interface {
	CopyIn(dst []byte, off int) (int, error)
	CopyOut(src []byte, off int) (int, error)
}

// UserSegment names a span of foreign memory of length Len, accessed only
// through Access's checked primitives.
type UserSegment struct {
	Access UserAccessor
	Len    int
}

// KernelSegment names a span of in-process memory, copied with a direct
// slice copy.
type KernelSegment struct {
	Data []byte
}

// PageChunk names a sub-range of one allocated page.
type PageChunk struct {
	Page   interfaces.PageHandle
	Offset int
	Len    int
}

// Chunk is the per-step descriptor ForEachChunk hands to its callback,
// exposing exactly the kind-specific memory needed to copy without an
// intermediate buffer.
type Chunk struct {
	Kind Kind

	// Valid when Kind == KindKernelSegments.
	Kernel []byte

	// Valid when Kind == KindPageVector.
	Page       interfaces.PageHandle
	PageOffset int

	// Valid when Kind == KindUserSegments.
	User       UserAccessor
	UserOffset int

	// Len is the chunk length in bytes, valid for every kind.
	Len int
}

// Cursor is BufferCursor (C1). Zero value is not usable; construct with one
// of the New* functions. The segment/chunk slices passed in must outlive
// the cursor (§4.1 contract).
type Cursor struct {
	kind Kind
	dir  Direction

	user   []UserSegment
	kernel []KernelSegment
	pages  []PageChunk

	segIdx    int
	iovOffset int
	count     int
}

// NewUserSegments builds a cursor over foreign-memory segments.
func NewUserSegments(segs []UserSegment, totalLen int, dir Direction) *Cursor {
	return &Cursor{kind: KindUserSegments, dir: dir, user: segs, count: totalLen}
}

// NewKernelSegments builds a cursor over in-process memory segments.
func NewKernelSegments(segs []KernelSegment, totalLen int, dir Direction) *Cursor {
	return &Cursor{kind: KindKernelSegments, dir: dir, kernel: segs, count: totalLen}
}

// NewPageVector builds a cursor over page+offset+len chunks.
func NewPageVector(chunks []PageChunk, totalLen int, dir Direction) *Cursor {
	return &Cursor{kind: KindPageVector, dir: dir, pages: chunks, count: totalLen}
}

// NewDiscard builds a sink cursor of the given logical length that silently
// advances without touching any memory.
func NewDiscard(totalLen int) *Cursor {
	return &Cursor{kind: KindDiscard, dir: DirWrite, count: totalLen}
}

// Kind reports which backing memory this cursor walks.
func (c *Cursor) Kind() Kind { return c.kind }

// Remaining returns the number of bytes not yet consumed.
func (c *Cursor) Remaining() int { return c.count }

// Fork returns an independent copy of the cursor positioned at the same
// point. Because Cursor holds slice headers rather than raw pointers,
// copying the struct is the idiomatic equivalent of the spec's requirement
// that advancing update "the unconsumed tail of the original segment array
// so a later init of a dependent structure sees the tail": the fork's
// segment slices already start at the tail, and advancing the fork never
// mutates the parent.
func (c *Cursor) Fork() *Cursor {
	f := *c
	return &f
}

func (c *Cursor) curSegLen() int {
	switch c.kind {
	case KindUserSegments:
		if c.segIdx >= len(c.user) {
			return 0
		}
		return c.user[c.segIdx].Len
	case KindKernelSegments:
		if c.segIdx >= len(c.kernel) {
			return 0
		}
		return len(c.kernel[c.segIdx].Data)
	case KindPageVector:
		if c.segIdx >= len(c.pages) {
			return 0
		}
		return c.pages[c.segIdx].Len
	default: // KindDiscard
		return c.count
	}
}

// Advance skips min(n, Remaining()) bytes, updating the segment index and
// intra-segment offset. Callers must not hold a live chunk borrow across
// Advance.
func (c *Cursor) Advance(n int) int {
	skip := n
	if skip > c.count {
		skip = c.count
	}
	remaining := skip

	if c.kind == KindDiscard {
		c.count -= skip
		return skip
	}

	for remaining > 0 {
		segLen := c.curSegLen()
		avail := segLen - c.iovOffset
		if avail <= 0 {
			c.segIdx++
			c.iovOffset = 0
			continue
		}
		step := remaining
		if step > avail {
			step = avail
		}
		c.iovOffset += step
		remaining -= step
		if c.iovOffset == segLen {
			c.segIdx++
			c.iovOffset = 0
		}
	}
	c.count -= skip
	return skip
}

// ForEachChunk invokes fn over consecutive non-empty chunks until n bytes
// have been consumed (or the cursor is exhausted), advancing the cursor as
// it goes. It stops at the first error fn returns and reports that error;
// bytes already consumed by earlier chunks stay consumed (no rollback, same
// as the store's write path, §4.3).
func (c *Cursor) ForEachChunk(n int, fn func(Chunk) error) error {
	if n > c.count {
		n = c.count
	}

	if c.kind == KindDiscard {
		c.Advance(n)
		return nil
	}

	for n > 0 {
		segLen := c.curSegLen()
		if segLen == 0 {
			if c.segIdx >= c.numSegs() {
				break
			}
			c.segIdx++
			c.iovOffset = 0
			continue
		}
		avail := segLen - c.iovOffset
		if avail <= 0 {
			c.segIdx++
			c.iovOffset = 0
			continue
		}
		chunkLen := avail
		if chunkLen > n {
			chunkLen = n
		}

		chunk := c.buildChunk(chunkLen)
		if err := fn(chunk); err != nil {
			c.Advance(chunkLen)
			return err
		}

		c.Advance(chunkLen)
		n -= chunkLen
	}
	return nil
}

func (c *Cursor) numSegs() int {
	switch c.kind {
	case KindUserSegments:
		return len(c.user)
	case KindKernelSegments:
		return len(c.kernel)
	case KindPageVector:
		return len(c.pages)
	default:
		return 0
	}
}

func (c *Cursor) buildChunk(length int) Chunk {
	switch c.kind {
	case KindUserSegments:
		seg := c.user[c.segIdx]
		return Chunk{Kind: c.kind, User: seg.Access, UserOffset: c.iovOffset, Len: length}
	case KindKernelSegments:
		seg := c.kernel[c.segIdx]
		return Chunk{Kind: c.kind, Kernel: seg.Data[c.iovOffset : c.iovOffset+length], Len: length}
	case KindPageVector:
		pc := c.pages[c.segIdx]
		return Chunk{Kind: c.kind, Page: pc.Page, PageOffset: pc.Offset + c.iovOffset, Len: length}
	default:
		return Chunk{Kind: c.kind, Len: length}
	}
}

// segStep returns how many of the next `want` bytes can be taken from the
// current segment without crossing its boundary, advancing to the next
// segment first if the current one is exhausted. A zero result with a
// false ok means the cursor has no more segments.
func (c *Cursor) segStep(want int) (step int, ok bool) {
	for {
		segLen := c.curSegLen()
		avail := segLen - c.iovOffset
		if avail > 0 {
			if want < avail {
				return want, true
			}
			return avail, true
		}
		if c.segIdx >= c.numSegs() {
			return 0, false
		}
		c.segIdx++
		c.iovOffset = 0
	}
}

// CopyFrom copies up to n bytes from the cursor into dst, advancing the
// cursor by the number of bytes actually copied. For UserSegments the
// return value is n minus any access faults (advance stops at the fault);
// for the other kinds it always equals min(n, len(dst), Remaining()).
func (c *Cursor) CopyFrom(dst []byte, n int) (int, error) {
	if n > len(dst) {
		n = len(dst)
	}
	if n > c.count {
		n = c.count
	}

	if c.kind == KindDiscard {
		for i := 0; i < n; i++ {
			dst[i] = 0
		}
		c.Advance(n)
		return n, nil
	}

	copied := 0
	for copied < n {
		want, ok := c.segStep(n - copied)
		if !ok {
			break
		}
		switch c.kind {
		case KindUserSegments:
			seg := c.user[c.segIdx]
			got, err := seg.Access.CopyIn(dst[copied:copied+want], c.iovOffset)
			c.Advance(got)
			copied += got
			if got < want {
				return copied, err
			}
		case KindKernelSegments:
			seg := c.kernel[c.segIdx]
			copy(dst[copied:copied+want], seg.Data[c.iovOffset:c.iovOffset+want])
			c.Advance(want)
			copied += want
		case KindPageVector:
			pc := c.pages[c.segIdx]
			page := pc.Page.Bytes()
			base := pc.Offset + c.iovOffset
			copy(dst[copied:copied+want], page[base:base+want])
			c.Advance(want)
			copied += want
		}
	}
	return copied, nil
}

// CopyTo copies up to n bytes from src into the cursor, advancing the
// cursor by the number of bytes actually copied. Writing into a Discard
// cursor silently advances without touching memory.
func (c *Cursor) CopyTo(src []byte, n int) (int, error) {
	if n > len(src) {
		n = len(src)
	}
	if n > c.count {
		n = c.count
	}

	if c.kind == KindDiscard {
		c.Advance(n)
		return n, nil
	}

	copied := 0
	for copied < n {
		want, ok := c.segStep(n - copied)
		if !ok {
			break
		}
		switch c.kind {
		case KindUserSegments:
			seg := c.user[c.segIdx]
			got, err := seg.Access.CopyOut(src[copied:copied+want], c.iovOffset)
			c.Advance(got)
			copied += got
			if got < want {
				return copied, err
			}
		case KindKernelSegments:
			seg := c.kernel[c.segIdx]
			copy(seg.Data[c.iovOffset:c.iovOffset+want], src[copied:copied+want])
			c.Advance(want)
			copied += want
		case KindPageVector:
			pc := c.pages[c.segIdx]
			page := pc.Page.Bytes()
			base := pc.Offset + c.iovOffset
			copy(page[base:base+want], src[copied:copied+want])
			c.Advance(want)
			copied += want
		}
	}
	return copied, nil
}
