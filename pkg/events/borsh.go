package events

import (
	"encoding/binary"
	"errors"
	"math/big"
)

var errShortBuffer = errors.New("unexpected end of event data")

// borshReader reads little-endian borsh primitives. The first failure sticks;
// later reads return zero values and callers check err once at the end.
type borshReader struct {
	buf []byte
	off int
	err error
}

func newBorshReader(b []byte) *borshReader {
	return &borshReader{buf: b}
}

func (r *borshReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = errShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *borshReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *borshReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *borshReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *borshReader) i64() int64 {
	return int64(r.u64())
}

func (r *borshReader) u128() *big.Int {
	b := r.take(16)
	if b == nil {
		return nil
	}
	be := make([]byte, 16)
	for i := range b {
		be[15-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}

func (r *borshReader) pubkey() PublicKey {
	var pk PublicKey
	if b := r.take(PublicKeyLength); b != nil {
		copy(pk[:], b)
	}
	return pk
}

func (r *borshReader) status() CompetitorStatus {
	s := CompetitorStatus(r.u8())
	if r.err == nil && s > CompetitorStatusDisqualified {
		r.err = errors.New("invalid competitor status")
	}
	return s
}
