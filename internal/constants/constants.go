// Package constants holds compile-time sizing and timing constants shared
// across the core.
package constants

import "time"

const (
	// BlockSize is the fixed allocation unit for object blocks (64 KiB,
	// power of two). The host page size must divide it.
	BlockSize = 64 * 1024

	// BlockShift is log2(BlockSize).
	BlockShift = 16

	// MaxOps bounds the number of ops a single OpRequest may carry.
	MaxOps = 16

	// MaxSnaps bounds the number of snapshot ids a single OpRequest may carry.
	MaxSnaps = 1024

	// OpStructSize is the fixed wire size of a single Op entry.
	OpStructSize = 64

	// ReplyVersion is the wire version stamped into every reply envelope.
	ReplyVersion = 7

	// MaxObjectNameLen bounds the length of an ObjectIdentity name.
	MaxObjectNameLen = 2048

	// NoopWriteThreshold is the minimum write length eligible for the
	// noop_write fast path (§4.3).
	NoopWriteThreshold = 4096
)

// Timing constants for cluster-map interaction during start/stop (§5).
//
// start_osd_server and stop_osd_server both poll MonitorClient state rather
// than blocking indefinitely: the monitor quorum is an external system and
// its view can lag the request that triggered it.
const (
	// MapPollTimeout bounds how long the daemon waits for the cluster map
	// to reflect a boot or mark-down before giving up.
	MapPollTimeout = 5 * time.Second

	// MapPollInterval is the spacing between cluster-map polls.
	MapPollInterval = 300 * time.Millisecond
)
