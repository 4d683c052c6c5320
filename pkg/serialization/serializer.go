// Package serialization provides a big-endian binary encoder and decoder
// with sticky errors: after the first failure every call is a no-op and the
// error surfaces once from Bytes or Err.
package serialization

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

type Serializer struct {
	buf *bytes.Buffer
	err error
}

func NewSerializer() *Serializer {
	return &Serializer{buf: new(bytes.Buffer)}
}

func (s *Serializer) Write(data []byte) {
	if s.err != nil {
		return
	}
	_, s.err = s.buf.Write(data)
}

func (s *Serializer) WriteUint64(u uint64) {
	if s.err != nil {
		return
	}
	s.err = binary.Write(s.buf, binary.BigEndian, u)
}

func (s *Serializer) WriteInt64(i int64) {
	s.WriteUint64(uint64(i))
}

func (s *Serializer) WriteFloat64(f float64) {
	s.WriteUint64(math.Float64bits(f))
}

// WriteTime writes t as Unix nanoseconds; the location is not preserved.
func (s *Serializer) WriteTime(t time.Time) {
	s.WriteInt64(t.UnixNano())
}

// WriteByteSlice writes a length-prefixed byte slice.
func (s *Serializer) WriteByteSlice(b []byte) {
	if s.err != nil {
		return
	}
	s.err = binary.Write(s.buf, binary.BigEndian, uint32(len(b)))
	if s.err != nil {
		return
	}
	s.Write(b)
}

func (s *Serializer) WriteString(str string) {
	s.WriteByteSlice([]byte(str))
}

func (s *Serializer) Bytes() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.buf.Bytes(), nil
}
