// Package store implements ObjectStore (C3): the in-memory engine backing
// READ, WRITE, and STAT, with sparse block allocation, hole-fill reads, and
// write-with-extend (§4.3). It is grounded on the teacher's sharded
// in-memory backend (backend/mem.go) but replaces its flat byte-slice
// representation with the sparse, per-object block map §4.3 requires.
package store

import (
	"github.com/behrlich/go-osd/internal/constants"
	"github.com/behrlich/go-osd/internal/cursor"
	"github.com/behrlich/go-osd/internal/interfaces"
	"github.com/behrlich/go-osd/internal/oerr"
	"github.com/behrlich/go-osd/internal/pagealloc"
	"github.com/behrlich/go-osd/internal/wire"
)

// blockOrder is the PageAllocator order that yields exactly one BlockSize
// page, computed once at package init since BlockSize and PageSize are both
// fixed.
var blockOrder = constLog2(constants.BlockSize / pagealloc.PageSize)

func constLog2(n int) uint {
	var order uint
	for (1 << order) < n {
		order++
	}
	return order
}

// Store is ObjectStore (C3).
type Store struct {
	table *objectTable
	alloc interfaces.PageAllocator

	// NoopWrite mirrors the noop_write configuration option (§6): writes of
	// at least NoopWriteThreshold bytes return success with no effect, for
	// benchmarking the network path.
	NoopWrite bool
}

// New constructs an empty Store using the given page allocator.
func New(alloc interfaces.PageAllocator) *Store {
	return &Store{table: newObjectTable(), alloc: alloc}
}

// Write implements §4.3 write(identity, offset, length, cursor).
func (s *Store) Write(identity wire.ObjectIdentity, offset, length uint64, cur *cursor.Cursor, mtime wire.Timestamp) error {
	const op = "store.Write"

	if length == 0 {
		return nil
	}

	if s.NoopWrite && length >= constants.NoopWriteThreshold {
		cur.Advance(int(length))
		return nil
	}

	obj := s.table.getOrCreate(identity)

	dstOff := offset
	remaining := length
	modified := false
	finalEnd := dstOff
	var allocErr error

	for remaining > 0 {
		blockBase := (dstOff / constants.BlockSize) * constants.BlockSize

		blk, ok := obj.blockAt(blockBase)
		if !ok {
			page, err := s.alloc.Alloc(blockOrder)
			if err != nil {
				allocErr = oerr.Wrap(op, oerr.OutOfMemory, err)
				break
			}
			blk = &Block{Offset: blockBase, Page: page}
			obj.insertBlock(blk)
		}

		inBlockOff := dstOff - blockBase
		chunkLen := constants.BlockSize - inBlockOff
		if chunkLen > remaining {
			chunkLen = remaining
		}
		if rem := uint64(cur.Remaining()); chunkLen > rem {
			chunkLen = rem
		}
		if chunkLen == 0 {
			break
		}

		dst := blk.Page.Bytes()[inBlockOff : inBlockOff+chunkLen]
		n, cerr := cur.CopyFrom(dst, int(chunkLen))
		if n > 0 {
			modified = true
			dstOff += uint64(n)
			remaining -= uint64(n)
			if dstOff > finalEnd {
				finalEnd = dstOff
			}
		}
		if cerr != nil {
			return oerr.Wrap(op, oerr.BadAddress, cerr)
		}
		if uint64(n) < chunkLen {
			break // cursor ran dry before the block was fully written
		}
	}

	if modified {
		obj.MTime = mtime
		if finalEnd > obj.Size {
			obj.Size = finalEnd
		}
	}

	return allocErr
}

// Read implements §4.3 read(identity, offset, length) -> Result<BufferRef>.
// The returned bytes are a plain heap slice, not a PageAllocator page: this
// buffer is reply-scoped (copied into the dispatcher's outgoing data
// segment and then discarded), never durable store state, so a real
// allocation/Free pair here would only add an ownership handoff with
// nothing on the other end to call Free. Go's GC reclaiming it is the
// correct idiomatic stand-in for the spec's BufferRef transfer in that
// case, unlike the block pages store.Write allocates, which live on past
// this call and must be freed explicitly on Delete/Destroy.
func (s *Store) Read(identity wire.ObjectIdentity, offset, length uint64) ([]byte, error) {
	const op = "store.Read"

	obj, ok := s.table.get(identity)
	if !ok {
		return nil, oerr.New(op, oerr.NotFound, "object not found")
	}

	if offset >= obj.Size {
		return []byte{}, nil
	}

	l := length
	if obj.Size-offset < l {
		l = obj.Size - offset
	}
	if l == 0 {
		return []byte{}, nil
	}

	out := make([]byte, l)

	readOff := offset
	outOff := uint64(0)
	remaining := l

	blk := obj.firstBlockFrom((offset / constants.BlockSize) * constants.BlockSize)
	for remaining > 0 {
		if blk == nil || blk.Offset > readOff {
			// Hole: zero-fill up to the next block (or the whole remainder).
			holeLen := remaining
			if blk != nil && blk.Offset-readOff < holeLen {
				holeLen = blk.Offset - readOff
			}
			for i := uint64(0); i < holeLen; i++ {
				out[outOff+i] = 0
			}
			readOff += holeLen
			outOff += holeLen
			remaining -= holeLen
			if blk == nil {
				continue
			}
		}

		inBlockOff := readOff - blk.Offset
		chunkLen := constants.BlockSize - inBlockOff
		if chunkLen > remaining {
			chunkLen = remaining
		}
		copy(out[outOff:outOff+chunkLen], blk.Page.Bytes()[inBlockOff:inBlockOff+chunkLen])
		readOff += chunkLen
		outOff += chunkLen
		remaining -= chunkLen

		blk = obj.firstBlockFrom(blk.Offset + constants.BlockSize)
	}

	return out, nil
}

// Stat implements §4.3 stat(identity) -> Result<BufferRef>: 16 bytes, a u64
// size followed by the 8-byte mtime.
func (s *Store) Stat(identity wire.ObjectIdentity) ([]byte, error) {
	const op = "store.Stat"

	obj, ok := s.table.get(identity)
	if !ok {
		return nil, oerr.New(op, oerr.NotFound, "object not found")
	}

	out := make([]byte, 16)
	putU64(out[0:8], obj.Size)
	putU32(out[8:12], obj.MTime.Seconds)
	putU32(out[12:16], obj.MTime.Nanoseconds)
	return out, nil
}

// Delete removes an object and releases all of its blocks back to the page
// allocator (§3 block lifecycle: "released on object delete or server
// shutdown").
func (s *Store) Delete(identity wire.ObjectIdentity) error {
	obj, ok := s.table.delete(identity)
	if !ok {
		return oerr.New("store.Delete", oerr.NotFound, "object not found")
	}
	obj.freeBlocks(s.alloc)
	return nil
}

// Destroy releases every remaining object's block pages back to the
// allocator and drops the object table, per §5 shutdown step 3 ("Destroy
// all objects (free blocks, free pages, free object table)").
func (s *Store) Destroy() {
	s.table.ascend(func(obj *StoredObject) bool {
		obj.freeBlocks(s.alloc)
		return true
	})
	s.table = newObjectTable()
}

// Len reports how many objects currently exist, for tests and stats.
func (s *Store) Len() int { return s.table.len() }

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func putU32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
