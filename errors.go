// Package osd is the public surface of the in-memory OSD core: the server
// lifecycle (create/start/stop/destroy), its error taxonomy, metrics, and
// testing doubles for the capabilities it consumes.
package osd

import (
	"github.com/behrlich/go-osd/internal/oerr"
)

// Error is the structured failure type threaded through the core (§7),
// re-exported from internal/oerr the same way the teacher's constants.go
// re-exports internal/constants values — internal packages can't import
// this root package without a cycle, so the taxonomy lives one level down
// and surfaces here as a type alias.
type Error = oerr.Error

// Kind categorizes a failure per the §7 taxonomy.
type Kind = oerr.Kind

const (
	InvalidArgument    = oerr.InvalidArgument
	Truncated          = oerr.Truncated
	Corrupted          = oerr.Corrupted
	UnsupportedVersion = oerr.UnsupportedVersion
	UnsupportedOp      = oerr.UnsupportedOp
	NotFound           = oerr.NotFound
	OutOfMemory        = oerr.OutOfMemory
	BadAddress         = oerr.BadAddress
	Timeout            = oerr.Timeout
)

// NewError constructs a plain Error.
func NewError(op string, kind Kind, msg string) *Error { return oerr.New(op, kind, msg) }

// WrapError attaches op/kind context to an existing error.
func WrapError(op string, kind Kind, inner error) *Error { return oerr.Wrap(op, kind, inner) }

// IsKind reports whether err is (or wraps) an Error of the given Kind.
func IsKind(err error, kind Kind) bool { return oerr.IsKind(err, kind) }
