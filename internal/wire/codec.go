package wire

import (
	"github.com/behrlich/go-osd/internal/constants"
	"github.com/behrlich/go-osd/internal/oerr"
)

// Fixed sizes for envelope sub-structures the core treats opaquely (§4.2
// items 4-5: "skipped"). The wire only specifies that these are
// length-prefixed/fixed-size and version-gated where noted; their internal
// layout belongs to the client identity and tracing subsystems the core
// never interprets, so only their sizes and (for reqid) the version gate
// are modeled here.
const (
	reqIDVersionMin = 2
	reqIDBodySize   = 35 // bytes following the version byte
	traceBlobSize   = 28
)

// DecodeRequest parses one OSD_OP request body per the envelope layout of
// §4.2. tid is taken from the message header, not the body, matching the
// spec's item 1.
func DecodeRequest(tid uint64, body []byte) (*OpRequest, error) {
	const op = "wire.DecodeRequest"
	r := newReader(body)

	req := &OpRequest{TID: tid}

	spg, err := decodeSPG(r)
	if err != nil {
		return nil, err
	}
	req.PG = spg

	rawHash, err := r.u32()
	if err != nil {
		return nil, err
	}

	req.Epoch, err = r.u32()
	if err != nil {
		return nil, err
	}
	req.Flags, err = r.u32()
	if err != nil {
		return nil, err
	}

	if err := r.boundSlice(1+reqIDBodySize, func(sub *reader) error {
		ver, err := sub.u8()
		if err != nil {
			return err
		}
		if ver < reqIDVersionMin {
			return oerr.New(op, oerr.UnsupportedVersion, "reqid version below minimum")
		}
		return sub.skip(reqIDBodySize)
	}); err != nil {
		return nil, err
	}

	if err := r.skip(traceBlobSize); err != nil {
		return nil, err
	}

	clientInc, err := r.u32()
	if err != nil {
		return nil, err
	}
	if clientInc != 0 {
		return nil, oerr.New(op, oerr.Corrupted, "client_inc must be 0")
	}

	req.MTime, err = decodeTimestamp(r)
	if err != nil {
		return nil, err
	}

	pool, namespace, key, err := decodeLocator(r)
	if err != nil {
		return nil, err
	}

	nameLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	if nameLen > constants.MaxObjectNameLen {
		return nil, oerr.New(op, oerr.Corrupted, "name_len exceeds limit")
	}
	name, err := r.bytes(int(nameLen))
	if err != nil {
		return nil, err
	}

	req.Identity = ObjectIdentity{
		Pool:      pool,
		Hash:      rawHash,
		Name:      append([]byte(nil), name...),
		Key:       key,
		Namespace: namespace,
	}

	numOps, err := r.u16()
	if err != nil {
		return nil, err
	}
	if numOps > constants.MaxOps {
		return nil, oerr.New(op, oerr.Corrupted, "num_ops exceeds limit")
	}

	req.Ops = make([]Op, numOps)
	for i := range req.Ops {
		o, err := decodeOp(r)
		if err != nil {
			return nil, err
		}
		req.Ops[i] = o
	}

	snapshotID, err := r.u64()
	if err != nil {
		return nil, err
	}
	req.Identity.SnapshotID = snapshotID

	req.SnapSeq, err = r.u64()
	if err != nil {
		return nil, err
	}
	numSnaps, err := r.u32()
	if err != nil {
		return nil, err
	}
	if numSnaps > constants.MaxSnaps {
		return nil, oerr.New(op, oerr.Corrupted, "num_snaps exceeds limit")
	}
	req.Snaps = make([]uint64, numSnaps)
	for i := range req.Snaps {
		req.Snaps[i], err = r.u64()
		if err != nil {
			return nil, err
		}
	}

	attempts, err := r.u32()
	if err != nil {
		return nil, err
	}
	req.Attempts = int32(attempts)

	req.Features, err = r.u64()
	if err != nil {
		return nil, err
	}

	return req, nil
}

func decodeSPG(r *reader) (SPG, error) {
	var s SPG
	ver, err := r.u8()
	if err != nil {
		return s, err
	}
	if ver != 1 {
		return s, oerr.New("wire.decodeSPG", oerr.UnsupportedVersion, "unexpected SPG version")
	}
	s.Version = ver
	if s.Pool, err = r.u64(); err != nil {
		return s, err
	}
	if s.Seed, err = r.u32(); err != nil {
		return s, err
	}
	if s.Preferred, err = r.i32(); err != nil {
		return s, err
	}
	shard, err := r.i8()
	if err != nil {
		return s, err
	}
	s.Shard = shard
	return s, nil
}

func decodeTimestamp(r *reader) (Timestamp, error) {
	var t Timestamp
	sec, err := r.u32()
	if err != nil {
		return t, err
	}
	nsec, err := r.u32()
	if err != nil {
		return t, err
	}
	return Timestamp{Seconds: sec, Nanoseconds: nsec}, nil
}

// decodeLocator reads the object-locator sub-struct: pool, optional
// namespace, optional key override.
func decodeLocator(r *reader) (pool int64, namespace, key []byte, err error) {
	p, err := r.i64()
	if err != nil {
		return 0, nil, nil, err
	}
	nsLen, err := r.u32()
	if err != nil {
		return 0, nil, nil, err
	}
	ns, err := r.bytes(int(nsLen))
	if err != nil {
		return 0, nil, nil, err
	}
	keyLen, err := r.u32()
	if err != nil {
		return 0, nil, nil, err
	}
	k, err := r.bytes(int(keyLen))
	if err != nil {
		return 0, nil, nil, err
	}
	if nsLen > 0 {
		namespace = append([]byte(nil), ns...)
	}
	if keyLen > 0 {
		key = append([]byte(nil), k...)
	}
	return p, namespace, key, nil
}

func decodeOp(r *reader) (Op, error) {
	start := r.pos
	var o Op

	opcode, err := r.u16()
	if err != nil {
		return o, err
	}
	o.Opcode = Opcode(opcode)
	if o.Flags, err = r.u32(); err != nil {
		return o, err
	}
	if o.PayloadLen, err = r.u32(); err != nil {
		return o, err
	}

	switch o.Opcode {
	case OpRead, OpWrite, OpWriteFull, OpZero, OpTruncate:
		o.Extent.Offset, err = r.u64()
		if err == nil {
			o.Extent.Length, err = r.u64()
		}
		if err == nil {
			o.Extent.TruncateSize, err = r.u64()
		}
		if err == nil {
			o.Extent.TruncateSeq, err = r.u32()
		}
	case OpStat, OpCreate, OpDelete, OpListWatchers:
		// no extra payload
	case OpCall:
		o.Call.ClassLen, err = r.u32()
		if err == nil {
			o.Call.MethodLen, err = r.u32()
		}
		if err == nil {
			o.Call.InDataLen, err = r.u32()
		}
	case OpWatch:
		o.Watch.Cookie, err = r.u64()
		if err == nil {
			o.Watch.Ver, err = r.u64()
		}
		if err == nil {
			o.Watch.Op, err = r.u32()
		}
		if err == nil {
			o.Watch.Gen, err = r.u32()
		}
	case OpNotify, OpNotifyAck:
		o.Notify.Cookie, err = r.u64()
	case OpSetAllocHint:
		o.AllocHint.ExpectedObjectSize, err = r.u64()
		if err == nil {
			o.AllocHint.ExpectedWriteSize, err = r.u64()
		}
	case OpSetXattr, OpCmpXattr:
		o.Xattr.NameLen, err = r.u32()
		if err == nil {
			o.Xattr.ValueLen, err = r.u32()
		}
		if err == nil {
			o.Xattr.CmpOp, err = r.u8()
		}
		if err == nil {
			o.Xattr.CmpMode, err = r.u8()
		}
	case OpCopyFrom2:
		o.CopyFrom2.SnapID, err = r.u64()
		if err == nil {
			o.CopyFrom2.SrcVersion, err = r.u64()
		}
		if err == nil {
			o.CopyFrom2.Flags, err = r.u32()
		}
		if err == nil {
			o.CopyFrom2.SrcFadviseFlags, err = r.u32()
		}
	default:
		// A wire opcode outside the known union is malformed data, not a
		// recognized-but-unimplemented op (those decode fine and are
		// rejected by OpDispatcher.execute with UnsupportedOp instead).
		return o, oerr.New("wire.decodeOp", oerr.Corrupted, "unrecognized opcode")
	}
	if err != nil {
		return o, err
	}

	consumed := r.pos - start
	if consumed > constants.OpStructSize {
		return o, oerr.New("wire.decodeOp", oerr.Corrupted, "op payload overran struct size")
	}
	if err := r.skip(constants.OpStructSize - consumed); err != nil {
		return o, err
	}
	return o, nil
}

// EncodeRequest serializes req per the same envelope DecodeRequest parses.
// It exists primarily so decode(encode(x)) == x (§8 I7) is checkable
// in-process and so a future client-side component has a symmetric
// counterpart to DecodeRequest; the reqid/trace sub-fields the core treats
// opaquely are emitted as zeroed placeholders of the right size and version.
func EncodeRequest(req *OpRequest) []byte {
	w := newWriter(256)

	w.putU8(req.PG.Version)
	w.putU64(req.PG.Pool)
	w.putU32(req.PG.Seed)
	w.putI32(req.PG.Preferred)
	w.putI8(req.PG.Shard)

	w.putU32(req.Identity.Hash)
	w.putU32(req.Epoch)
	w.putU32(req.Flags)

	w.putU8(reqIDVersionMin) // reqid version
	w.zeroPad(reqIDBodySize)
	w.zeroPad(traceBlobSize)
	w.putU32(0) // client_inc

	w.putU32(req.MTime.Seconds)
	w.putU32(req.MTime.Nanoseconds)

	w.putI64(req.Identity.Pool)
	w.putU32(uint32(len(req.Identity.Namespace)))
	w.putRaw(req.Identity.Namespace)
	w.putU32(uint32(len(req.Identity.Key)))
	w.putRaw(req.Identity.Key)

	w.putU32(uint32(len(req.Identity.Name)))
	w.putRaw(req.Identity.Name)

	w.putU16(uint16(len(req.Ops)))
	for _, o := range req.Ops {
		encodeOp(w, o, o.PayloadLen) // request: payload_len is indata_len
	}

	w.putU64(req.Identity.SnapshotID)
	w.putU64(req.SnapSeq)
	w.putU32(uint32(len(req.Snaps)))
	for _, s := range req.Snaps {
		w.putU64(s)
	}

	w.putU32(uint32(req.Attempts))
	w.putU64(req.Features)

	return w.bytes()
}

// EncodeReply serializes the reply envelope of §4.2. overall is the
// dispatcher's overall result, epoch the current cluster-map epoch, and
// flags the ACK/ONDISK bits to stamp: the reply's flags field is req.Flags
// with ONDISK|ONNVRAM|ACK cleared, then OR'd with flags.
func EncodeReply(req *OpRequest, ops []Op, overall int32, epoch uint32, flags uint64) []byte {
	w := newWriter(128)

	w.putU8(constants.ReplyVersion)

	w.putU32(uint32(len(req.Identity.Name)))
	w.putRaw(req.Identity.Name)

	w.putU8(1) // packed PG id version
	w.putU64(req.PG.Pool)
	w.putU32(req.PG.Seed)
	w.putI32(-1)

	w.putU64(uint64(req.Flags)&^(FlagOnDisk|FlagOnNVRAM|FlagAck) | flags)
	w.putI32(overall)
	w.putU32(0) // bad_replay_version

	w.putU32(epoch)
	w.putU32(uint32(len(ops)))
	for _, o := range ops {
		encodeOp(w, o, uint32(len(o.OutData))) // reply: payload_len is outdata_len
	}

	w.putI32(req.Attempts)
	for _, o := range ops {
		w.putI32(o.RVal)
	}

	w.putU64(0) // replay_version
	w.putU64(0) // user_version (§9 open question: always 0 here, as upstream does)
	w.putU8(0)  // do_redirect

	return w.bytes()
}

// encodeOp writes one fixed-size Op struct. payloadLen is the request's
// indata_len when encoding a request and the reply's outdata_len when
// encoding a reply op (§4.2: the same 64-byte shape carries both meanings
// depending on direction).
func encodeOp(w *writer, o Op, payloadLen uint32) {
	start := len(w.buf)
	w.putU16(uint16(o.Opcode))
	w.putU32(o.Flags)
	w.putU32(payloadLen)

	switch o.Opcode {
	case OpRead, OpWrite, OpWriteFull, OpZero, OpTruncate:
		w.putU64(o.Extent.Offset)
		w.putU64(o.Extent.Length)
		w.putU64(o.Extent.TruncateSize)
		w.putU32(o.Extent.TruncateSeq)
	case OpCall:
		w.putU32(o.Call.ClassLen)
		w.putU32(o.Call.MethodLen)
		w.putU32(o.Call.InDataLen)
	case OpWatch:
		w.putU64(o.Watch.Cookie)
		w.putU64(o.Watch.Ver)
		w.putU32(o.Watch.Op)
		w.putU32(o.Watch.Gen)
	case OpNotify, OpNotifyAck:
		w.putU64(o.Notify.Cookie)
	case OpSetAllocHint:
		w.putU64(o.AllocHint.ExpectedObjectSize)
		w.putU64(o.AllocHint.ExpectedWriteSize)
	case OpSetXattr, OpCmpXattr:
		w.putU32(o.Xattr.NameLen)
		w.putU32(o.Xattr.ValueLen)
		w.putU8(o.Xattr.CmpOp)
		w.putU8(o.Xattr.CmpMode)
	case OpCopyFrom2:
		w.putU64(o.CopyFrom2.SnapID)
		w.putU64(o.CopyFrom2.SrcVersion)
		w.putU32(o.CopyFrom2.Flags)
		w.putU32(o.CopyFrom2.SrcFadviseFlags)
	}

	consumed := len(w.buf) - start
	w.zeroPad(constants.OpStructSize - consumed)
}
