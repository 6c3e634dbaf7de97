// Package codec implements the canonical byte-deterministic wire format used
// for hashing, signing and persisting every record in the ledger, plus the
// cryptographic primitives (SHA-256, SHA3-256, RIPEMD-160, Base58, ECDSA
// P-256) the rest of the node builds on.
//
// Every record is encoded as fixed-width integers in big-endian order and
// length-prefixed byte strings, in field declaration order — two encodings
// of the same value always produce identical bytes (spec invariant: hash
// determinism).
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Writer accumulates a canonical encoding. The zero value is ready to use.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns a Writer with buf pre-allocated to size bytes.
func NewWriter(size int) *Writer {
	w := &Writer{}
	w.buf.Grow(size)
	return w
}

// Bytes returns the accumulated canonical encoding.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// PutBytes appends a 4-byte big-endian length prefix followed by b.
func (w *Writer) PutBytes(b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	w.buf.Write(lenBuf[:])
	w.buf.Write(b)
}

// PutString appends s as a length-prefixed byte string.
func (w *Writer) PutString(s string) { w.PutBytes([]byte(s)) }

// PutInt64 appends a fixed-width big-endian int64.
func (w *Writer) PutInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

// PutInt32 appends a fixed-width big-endian int32.
func (w *Writer) PutInt32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

// PutUint64 appends a fixed-width big-endian uint64.
func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// Reader decodes a canonical encoding produced by Writer.
type Reader struct {
	buf *bytes.Reader
}

// NewReader wraps data for canonical decoding.
func NewReader(data []byte) *Reader {
	return &Reader{buf: bytes.NewReader(data)}
}

// GetBytes reads a length-prefixed byte string, surfacing a decode error
// rather than silently truncating on malformed input.
func (r *Reader) GetBytes() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := fullRead(r.buf, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("codec: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	if _, err := fullRead(r.buf, out); err != nil {
		return nil, fmt.Errorf("codec: read %d-byte field: %w", n, err)
	}
	return out, nil
}

// GetString reads a length-prefixed byte string as a string.
func (r *Reader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetInt64 reads a fixed-width big-endian int64.
func (r *Reader) GetInt64() (int64, error) {
	var b [8]byte
	if _, err := fullRead(r.buf, b[:]); err != nil {
		return 0, fmt.Errorf("codec: read int64: %w", err)
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

// GetInt32 reads a fixed-width big-endian int32.
func (r *Reader) GetInt32() (int32, error) {
	var b [4]byte
	if _, err := fullRead(r.buf, b[:]); err != nil {
		return 0, fmt.Errorf("codec: read int32: %w", err)
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

// GetUint64 reads a fixed-width big-endian uint64.
func (r *Reader) GetUint64() (uint64, error) {
	var b [8]byte
	if _, err := fullRead(r.buf, b[:]); err != nil {
		return 0, fmt.Errorf("codec: read uint64: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func fullRead(r *bytes.Reader, b []byte) (int, error) {
	n := 0
	for n < len(b) {
		m, err := r.Read(b[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
