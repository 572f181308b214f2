package store

import "github.com/behrlich/go-osd/internal/interfaces"

// Block is a single fixed-size allocation unit within a StoredObject (§3).
type Block struct {
	Offset uint64 // block-aligned, absolute within the object
	Page   interfaces.PageHandle
}
