package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"
)

type Deserializer struct {
	r   *bytes.Reader
	err error
}

func NewDeserializer(data []byte) *Deserializer {
	return &Deserializer{r: bytes.NewReader(data)}
}

func (d *Deserializer) Read(p []byte) {
	if d.err != nil {
		return
	}
	_, d.err = io.ReadFull(d.r, p)
}

func (d *Deserializer) ReadUint64() uint64 {
	if d.err != nil {
		return 0
	}
	var u uint64
	d.err = binary.Read(d.r, binary.BigEndian, &u)
	return u
}

func (d *Deserializer) ReadInt64() int64 {
	return int64(d.ReadUint64())
}

func (d *Deserializer) ReadFloat64() float64 {
	return math.Float64frombits(d.ReadUint64())
}

func (d *Deserializer) ReadTime() time.Time {
	ns := d.ReadInt64()
	if d.err != nil {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// ReadBytes reads from the current position to the end of the reader.
func (d *Deserializer) ReadBytes() []byte {
	if d.err != nil {
		return nil
	}
	rem := d.r.Len()
	if rem == 0 {
		return []byte{}
	}
	buf := make([]byte, rem)
	d.Read(buf)
	return buf
}

// ReadByteSlice reads a length-prefixed byte slice.
func (d *Deserializer) ReadByteSlice() []byte {
	if d.err != nil {
		return nil
	}
	var length uint32
	d.err = binary.Read(d.r, binary.BigEndian, &length)
	if d.err != nil {
		return nil
	}
	if int64(length) > int64(d.r.Len()) {
		d.err = io.ErrUnexpectedEOF
		return nil
	}
	buf := make([]byte, length)
	d.Read(buf)
	return buf
}

func (d *Deserializer) ReadString() string {
	return string(d.ReadByteSlice())
}

// Remaining reports the number of unread bytes.
func (d *Deserializer) Remaining() int {
	return d.r.Len()
}

// Err returns the first read error. Running out of input at a field
// boundary is reported as io.ErrUnexpectedEOF.
func (d *Deserializer) Err() error {
	if errors.Is(d.err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return d.err
}
