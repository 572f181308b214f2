// Package wire implements WireCodec (C2): symmetric encode/decode of the
// request and reply message front-matter and each op-specific payload
// (§4.2). It replaces the teacher's per-struct binary.LittleEndian
// marshal/unmarshal pairs (internal/uapi/structs.go, marshal.go) with the
// same manual, bounds-checked field-by-field technique, generalized to the
// OSD wire envelope instead of the ublk control/IO-descriptor ABI.
package wire

import "math/bits"

// SPG is the placement-group routing header carried on every request.
type SPG struct {
	Version   uint8 // must be 1
	Pool      uint64
	Seed      uint32
	Preferred int32 // -1 when unset
	Shard     int8
}

// Timestamp is a seconds+nanoseconds wall-clock stamp (§3).
type Timestamp struct {
	Seconds     uint32
	Nanoseconds uint32
}

// Before reports whether t sorts strictly before o.
func (t Timestamp) Before(o Timestamp) bool {
	if t.Seconds != o.Seconds {
		return t.Seconds < o.Seconds
	}
	return t.Nanoseconds < o.Nanoseconds
}

// ObjectIdentity is the addressable name of an object (§3).
type ObjectIdentity struct {
	Pool       int64
	Hash       uint32
	Name       []byte
	Key        []byte // optional, nil when unset
	Namespace  []byte // optional, nil when unset
	SnapshotID uint64
}

// Compare gives the total order spec §3 requires: lexicographic over
// (pool, namespace, hash_reversed, name, key, snapshot_id). hash_reversed
// bit-reverses Hash so that identities with nearby hashes land far apart in
// iteration order, the same placement-smoothing trick CRUSH-style stores
// use bit-reversal for.
func (a ObjectIdentity) Compare(b ObjectIdentity) int {
	if a.Pool != b.Pool {
		return cmpInt64(a.Pool, b.Pool)
	}
	if c := cmpBytes(a.Namespace, b.Namespace); c != 0 {
		return c
	}
	ah, bh := bits.Reverse32(a.Hash), bits.Reverse32(b.Hash)
	if ah != bh {
		return cmpUint32(ah, bh)
	}
	if c := cmpBytes(a.Name, b.Name); c != 0 {
		return c
	}
	if c := cmpBytes(a.Key, b.Key); c != 0 {
		return c
	}
	return cmpUint64(a.SnapshotID, b.SnapshotID)
}

// Equal reports whether two identities compare equal under Compare.
func (a ObjectIdentity) Equal(b ObjectIdentity) bool { return a.Compare(b) == 0 }

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBytes(a, b []byte) int {
	na, nb := len(a), len(b)
	n := na
	if nb < n {
		n = nb
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return cmpInt64(int64(na), int64(nb))
}

// Opcode is the tag of a single Op within a request (§3, §4.2).
type Opcode uint16

const (
	OpStat Opcode = iota + 1
	OpRead
	OpWrite
	OpWriteFull
	OpZero
	OpTruncate
	OpCall
	OpWatch
	OpNotify
	OpNotifyAck
	OpListWatchers
	OpSetAllocHint
	OpSetXattr
	OpCmpXattr
	OpCreate
	OpDelete
	OpCopyFrom2
)

func (o Opcode) String() string {
	switch o {
	case OpStat:
		return "STAT"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpWriteFull:
		return "WRITEFULL"
	case OpZero:
		return "ZERO"
	case OpTruncate:
		return "TRUNCATE"
	case OpCall:
		return "CALL"
	case OpWatch:
		return "WATCH"
	case OpNotify:
		return "NOTIFY"
	case OpNotifyAck:
		return "NOTIFY_ACK"
	case OpListWatchers:
		return "LIST_WATCHERS"
	case OpSetAllocHint:
		return "SETALLOCHINT"
	case OpSetXattr:
		return "SETXATTR"
	case OpCmpXattr:
		return "CMPXATTR"
	case OpCreate:
		return "CREATE"
	case OpDelete:
		return "DELETE"
	case OpCopyFrom2:
		return "COPY_FROM2"
	default:
		return "UNKNOWN"
	}
}

// Op-flag bits (§4.4, §8 I9).
const (
	// FlagFailOK: if this op fails, the aggregate request result is
	// unaffected and later ops keep executing.
	FlagFailOK uint32 = 1 << 0
)

// Extent is the shared payload shape for READ/WRITE/WRITEFULL/ZERO/TRUNCATE
// (§4.2).
type Extent struct {
	Offset       uint64
	Length       uint64
	TruncateSize uint64
	TruncateSeq  uint32
}

// CallArgs is CALL's payload.
type CallArgs struct {
	ClassLen  uint32
	MethodLen uint32
	InDataLen uint32
}

// WatchArgs is WATCH's payload.
type WatchArgs struct {
	Cookie uint64
	Ver    uint64
	Op     uint32
	Gen    uint32
}

// NotifyArgs is NOTIFY's payload.
type NotifyArgs struct {
	Cookie uint64
}

// AllocHintArgs is SETALLOCHINT's payload.
type AllocHintArgs struct {
	ExpectedObjectSize uint64
	ExpectedWriteSize  uint64
}

// XattrArgs is SETXATTR/CMPXATTR's shared payload.
type XattrArgs struct {
	NameLen  uint32
	ValueLen uint32
	CmpOp    uint8
	CmpMode  uint8
}

// CopyFrom2Args is COPY_FROM2's payload.
type CopyFrom2Args struct {
	SnapID          uint64
	SrcVersion      uint64
	Flags           uint32
	SrcFadviseFlags uint32
}

// Op is a single tagged operation inside a request (§3). Only the fields
// relevant to Opcode are populated after decode; OutData and RVal are
// filled in by the dispatcher as the op executes and are what EncodeReply
// walks back out for the reply.
type Op struct {
	Opcode     Opcode
	Flags      uint32
	PayloadLen uint32 // indata_len on decode, outdata_len on reply encode
	RVal       int32
	OutData    []byte

	Extent    Extent
	Call      CallArgs
	Watch     WatchArgs
	Notify    NotifyArgs
	AllocHint AllocHintArgs
	Xattr     XattrArgs
	CopyFrom2 CopyFrom2Args
}

// OpRequest is the decoded form of one inbound message (§3).
type OpRequest struct {
	TID      uint64
	Features uint64
	Epoch    uint32
	PG       SPG
	Flags    uint32
	Attempts int32
	MTime    Timestamp
	Identity ObjectIdentity
	SnapSeq  uint64
	Snaps    []uint64
	Ops      []Op
}

// Reply-flag bits (§4.4, glossary).
const (
	FlagAck     uint64 = 1 << 0
	FlagOnDisk  uint64 = 1 << 1
	FlagOnNVRAM uint64 = 1 << 2
)

// Reply lists the fields of the reply envelope (§4.2 "Reply envelope") in
// wire order. EncodeReply does not take a Reply: it writes the same fields
// directly from the OpRequest, its ops, and the dispatcher's result.
type Reply struct {
	Version          uint8 // always ReplyVersion (7)
	Name             []byte
	PG               SPG
	Flags            uint64
	Result           int32
	BadReplayVersion uint32
	Epoch            uint32
	Ops              []Op
	Attempts         int32
	RVals            []int32
	ReplayVersion    uint64
	UserVersion      uint64
	DoRedirect       uint8
}
