package wire

import (
	"encoding/binary"

	"github.com/behrlich/go-osd/internal/oerr"
)

// reader implements the "safe-decode discipline" of §4.2: every multi-byte
// read checks remaining length before advancing, failing with Truncated
// rather than faulting, and length-prefixed sub-structs are held to their
// declared length rather than letting a decoder run past or stop short of
// it. This replaces the teacher's raw-pointer/unsafe struct casts
// (internal/uapi/marshal.go) with a bounded slice walk.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return oerr.New("wire.decode", oerr.Truncated, "short buffer")
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) i8() (int8, error) {
	v, err := r.u8()
	return int8(v), err
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// boundSlice restricts decoding to exactly declaredLen bytes starting at the
// reader's current position, for a length-prefixed sub-struct (§4.2 rule:
// "if the inner decode reads past start+declared_len the message is
// Corrupted; if it reads less, skip to start+declared_len"). fn decodes
// from the bounded sub-reader; boundSlice then enforces the tail skip or
// rejects an over-read.
func (r *reader) boundSlice(declaredLen int, fn func(*reader) error) error {
	if err := r.need(declaredLen); err != nil {
		return err
	}
	start := r.pos
	sub := &reader{buf: r.buf[:start+declaredLen], pos: start}
	if err := fn(sub); err != nil {
		return err
	}
	if sub.pos > start+declaredLen {
		return oerr.New("wire.decode", oerr.Corrupted, "inner decode overran declared length")
	}
	r.pos = start + declaredLen // forward-compat: skip any unread tail
	return nil
}

type writer struct {
	buf []byte
}

func newWriter(capHint int) *writer { return &writer{buf: make([]byte, 0, capHint)} }

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) putU8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) putI8(v int8)    { w.putU8(uint8(v)) }
func (w *writer) putU16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) putU32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) putI32(v int32)  { w.putU32(uint32(v)) }
func (w *writer) putU64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) putI64(v int64)  { w.putU64(uint64(v)) }
func (w *writer) putRaw(p []byte) { w.buf = append(w.buf, p...) }
func (w *writer) zeroPad(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}
