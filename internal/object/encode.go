// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"encoding/binary"
	"fmt"
	"io"
)

// writeBytes writes a 4-byte big-endian length prefix followed by b.
func writeBytes(w io.Writer, b []byte) error {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	if _, err := w.Write(length[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeInt64(w io.Writer, v int64) error {
	return writeUint64(w, uint64(v))
}

const maxFieldLength = 64 << 20 // 64MiB guards against corrupt-length reads

// byteReader is the minimal surface encode/decode needs over a byte
// slice.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) readN(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, fmt.Errorf("object: truncated encoding (want %d bytes, have %d)", n, len(r.b)-r.pos)
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) readBytes() ([]byte, error) {
	lenBytes, err := r.readN(4)
	if err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(lenBytes))
	if n < 0 || n > maxFieldLength {
		return nil, fmt.Errorf("object: implausible field length %d", n)
	}
	return r.readN(n)
}

func (r *byteReader) readString() (string, error) {
	b, err := r.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *byteReader) readUint64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *byteReader) readInt64() (int64, error) {
	v, err := r.readUint64()
	return int64(v), err
}

func (r *byteReader) atEnd() bool { return r.pos >= len(r.b) }
