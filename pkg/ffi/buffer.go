package ffi

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

var ErrBufferSize = errors.New("buffer size mismatch")

// Buffer is caller-owned memory holding one native value.
type Buffer []byte

func NewBuffer(size int64) Buffer {
	return make(Buffer, size)
}

// WrapBuffer checks that b can hold a value of size bytes.
func WrapBuffer(b []byte, size int64) (Buffer, error) {
	if int64(len(b)) != size {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrBufferSize, len(b), size)
	}
	return Buffer(b), nil
}

func (b Buffer) At(i int) byte {
	return b[i]
}

func (b Buffer) Fill(v byte) {
	for i := range b {
		b[i] = v
	}
}

func (b Buffer) Find(sub []byte) int {
	return bytes.Index(b, sub)
}

func (b Buffer) FindLast(sub []byte) int {
	return bytes.LastIndex(b, sub)
}

func (b Buffer) Length() int {
	return len(b)
}

func (b Buffer) Bytes() []byte {
	return b
}

func (b Buffer) String() string {
	return hex.EncodeToString(b)
}

// Handle is an opaque native pointer.
type Handle uintptr

func (h Handle) IsNil() bool {
	return h == 0
}
