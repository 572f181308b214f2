// Package dispatch implements OpDispatcher (C4): the per-request loop that
// routes each decoded Op to ObjectStore, applies the FAILOK policy, and
// assembles the reply envelope (§4.4).
package dispatch

import (
	"time"

	"github.com/behrlich/go-osd/internal/cursor"
	"github.com/behrlich/go-osd/internal/interfaces"
	"github.com/behrlich/go-osd/internal/logging"
	"github.com/behrlich/go-osd/internal/metrics"
	"github.com/behrlich/go-osd/internal/oerr"
	"github.com/behrlich/go-osd/internal/store"
	"github.com/behrlich/go-osd/internal/wire"
)

// Dispatcher is OpDispatcher (C4).
type Dispatcher struct {
	store      *store.Store
	clusterMap interfaces.ClusterMap
	log        *logging.Logger
	metrics    *metrics.Metrics
}

// New constructs a Dispatcher over the given store, stamping replies with
// epochs read from clusterMap. m may be nil (tests that don't care about
// metrics); a non-nil m gets one ObserveOp call per executed op plus one
// SetObjectCount call per request, mirroring the teacher's per-I/O
// Observer.ObserveRead/ObserveWrite calls (backend.go:199-205) collapsed
// into a single opcode-keyed instrument set.
func New(s *store.Store, clusterMap interfaces.ClusterMap, log *logging.Logger, m *metrics.Metrics) *Dispatcher {
	if log == nil {
		log = logging.Default()
	}
	return &Dispatcher{store: s, clusterMap: clusterMap, log: log, metrics: m}
}

// Dispatch runs req.Ops in order against cur (the shared input cursor
// spanning the request's data segment) and returns the reply envelope
// ("front") and the concatenated per-op out-data ("data"), kept separate
// per §4.2's front/data segment split rather than one combined buffer.
// This is the sole boundary where the core blocks on nothing: per §5,
// decode-to-reply for one request runs to completion with no yields.
func (d *Dispatcher) Dispatch(req *wire.OpRequest, cur *cursor.Cursor) (front []byte, data []byte) {
	var result int32

	for i := range req.Ops {
		op := &req.Ops[i]

		start := time.Now()
		r, errKind := d.execute(op, req, cur)
		op.RVal = r
		result = r

		if d.metrics != nil {
			bytesMoved := 0
			switch op.Opcode {
			case wire.OpWrite:
				bytesMoved = int(op.Extent.Length)
			case wire.OpRead, wire.OpStat:
				bytesMoved = len(op.OutData)
			}
			d.metrics.ObserveOp(op.Opcode.String(), bytesMoved, time.Since(start).Seconds(), errKind)
		}

		if r != 0 {
			// Retry/InProgress are named in §4.4's sketch but never produced
			// by this core's op handlers (no transactional retry path
			// exists), so FAILOK always swallows a non-zero rval here.
			if op.Flags&wire.FlagFailOK != 0 {
				result = 0
				continue
			}
			break // short-circuit; later ops keep rval = 0
		}
	}

	if d.metrics != nil {
		d.metrics.SetObjectCount(d.store.Len())
	}

	overall := result
	epoch := uint32(0)
	if d.clusterMap != nil {
		epoch = d.clusterMap.Epoch()
	}

	flags := wire.FlagAck | wire.FlagOnDisk
	front = wire.EncodeReply(req, req.Ops, overall, epoch, flags)
	data = concatOutData(req.Ops)
	return front, data
}

// concatOutData builds the reply's data segment from each op's out-data, in
// op order, matching the per-op outdata_len EncodeReply already stamps into
// the front segment.
func concatOutData(ops []wire.Op) []byte {
	total := 0
	for _, o := range ops {
		total += len(o.OutData)
	}
	if total == 0 {
		return nil
	}
	out := make([]byte, 0, total)
	for _, o := range ops {
		out = append(out, o.OutData...)
	}
	return out
}

// execute dispatches a single op, per §4.4: "WRITE->C3.write, READ->C3.read,
// STAT->C3.stat, others return UnsupportedOp". It returns the op's rval and,
// on failure, the error Kind label for metrics (empty on success).
func (d *Dispatcher) execute(op *wire.Op, req *wire.OpRequest, cur *cursor.Cursor) (int32, string) {
	switch op.Opcode {
	case wire.OpWrite:
		return d.doWrite(op, req, cur)
	case wire.OpRead:
		return d.doRead(op, req)
	case wire.OpStat:
		return d.doStat(op, req)
	default:
		// §9 open question #4: COPY_FROM2/WATCH/NOTIFY/CALL/xattr/omap are
		// named as supported upstream but have no handler in this core path;
		// they stub to UnsupportedOp until a later revision adds them.
		d.log.Debug("unsupported op", "opcode", op.Opcode.String())
		return oerr.UnsupportedOp.Errno(), string(oerr.UnsupportedOp)
	}
}

// doWrite consumes up to op.Extent.Length bytes from the shared cursor,
// fewer if the cursor runs dry first.
// READ and STAT never touch it (§4.4 cursor discipline).
func (d *Dispatcher) doWrite(op *wire.Op, req *wire.OpRequest, cur *cursor.Cursor) (int32, string) {
	err := d.store.Write(req.Identity, op.Extent.Offset, op.Extent.Length, cur, req.MTime)
	if err != nil {
		return errnoAndKind(err)
	}
	return 0, ""
}

func (d *Dispatcher) doRead(op *wire.Op, req *wire.OpRequest) (int32, string) {
	out, err := d.store.Read(req.Identity, op.Extent.Offset, op.Extent.Length)
	if err != nil {
		return errnoAndKind(err)
	}
	op.OutData = out
	return 0, ""
}

func (d *Dispatcher) doStat(op *wire.Op, req *wire.OpRequest) (int32, string) {
	out, err := d.store.Stat(req.Identity)
	if err != nil {
		return errnoAndKind(err)
	}
	op.OutData = out
	return 0, ""
}

func errnoAndKind(err error) (int32, string) {
	if kind, ok := oerr.KindOf(err); ok {
		return kind.Errno(), string(kind)
	}
	return -5, "" // EIO: err didn't carry a Kind, shouldn't happen from this core's own layers
}
