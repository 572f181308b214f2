package store

import (
	"github.com/google/btree"

	"github.com/behrlich/go-osd/internal/interfaces"
	"github.com/behrlich/go-osd/internal/wire"
)

func blockLess(a, b *Block) bool { return a.Offset < b.Offset }

// StoredObject is one logical object in the store (§3). blocks is kept in a
// google/btree ordered map keyed by block offset, giving the exact and
// right-neighbour lookups §4.3 requires directly via Get and
// AscendGreaterOrEqual, without an intrusive red-black tree per spec §9's
// "replace with a generic ordered map per container" guidance.
type StoredObject struct {
	Identity wire.ObjectIdentity
	Size     uint64
	MTime    wire.Timestamp
	blocks   *btree.BTreeG[*Block]
}

func newStoredObject(identity wire.ObjectIdentity) *StoredObject {
	return &StoredObject{
		Identity: identity,
		blocks:   btree.NewG[*Block](32, blockLess),
	}
}

// blockAt returns the block at exactly offset, if any.
func (o *StoredObject) blockAt(offset uint64) (*Block, bool) {
	return o.blocks.Get(&Block{Offset: offset})
}

// firstBlockFrom returns the block with the smallest offset >= from (the
// "right-lookup" §4.3 read needs), or nil if none exists.
func (o *StoredObject) firstBlockFrom(from uint64) *Block {
	var found *Block
	o.blocks.AscendGreaterOrEqual(&Block{Offset: from}, func(b *Block) bool {
		found = b
		return false // stop at first
	})
	return found
}

func (o *StoredObject) insertBlock(b *Block) {
	o.blocks.ReplaceOrInsert(b)
}

// NumBlocks reports how many blocks are currently allocated, for tests and
// diagnostics.
func (o *StoredObject) NumBlocks() int { return o.blocks.Len() }

// freeBlocks releases every block's page back to alloc and empties the
// object's block map, per §3's block lifecycle ("released on object delete
// or server shutdown") and §5 shutdown step 3.
func (o *StoredObject) freeBlocks(alloc interfaces.PageAllocator) {
	o.blocks.Ascend(func(b *Block) bool {
		alloc.Free(b.Page)
		return true
	})
	o.blocks.Clear(false)
}
