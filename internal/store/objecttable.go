package store

import (
	"github.com/google/btree"

	"github.com/behrlich/go-osd/internal/wire"
)

// objectTable is the server's object index (§3): an ordered associative
// container from ObjectIdentity to exclusive ownership of a StoredObject,
// backed by google/btree with the total ordering wire.ObjectIdentity.Compare
// defines.
type objectTable struct {
	tree *btree.BTreeG[*StoredObject]
}

func newObjectTable() *objectTable {
	less := func(a, b *StoredObject) bool { return a.Identity.Compare(b.Identity) < 0 }
	return &objectTable{tree: btree.NewG[*StoredObject](32, less)}
}

func (t *objectTable) get(identity wire.ObjectIdentity) (*StoredObject, bool) {
	return t.tree.Get(&StoredObject{Identity: identity})
}

func (t *objectTable) getOrCreate(identity wire.ObjectIdentity) *StoredObject {
	if existing, ok := t.get(identity); ok {
		return existing
	}
	obj := newStoredObject(identity)
	t.tree.ReplaceOrInsert(obj)
	return obj
}

// delete removes identity and returns the removed object so the caller can
// release its block pages.
func (t *objectTable) delete(identity wire.ObjectIdentity) (*StoredObject, bool) {
	return t.tree.Delete(&StoredObject{Identity: identity})
}

// ascend visits every object in identity order, for server shutdown.
func (t *objectTable) ascend(fn func(*StoredObject) bool) {
	t.tree.Ascend(fn)
}

func (t *objectTable) len() int { return t.tree.Len() }
