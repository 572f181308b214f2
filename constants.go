package osd

import "github.com/behrlich/go-osd/internal/constants"

// Re-exported sizing constants for the public API.
const (
	BlockSize          = constants.BlockSize
	MaxOps             = constants.MaxOps
	MaxSnaps           = constants.MaxSnaps
	MaxObjectNameLen   = constants.MaxObjectNameLen
	NoopWriteThreshold = constants.NoopWriteThreshold
)
