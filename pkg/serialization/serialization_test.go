package serialization

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripFields(t *testing.T) {
	at := time.Unix(1700000000, 42)
	s := NewSerializer()
	s.WriteUint64(7)
	s.WriteInt64(-3)
	s.WriteFloat64(0.25)
	s.WriteString("code128:ABC-12345")
	s.WriteTime(at)
	s.WriteByteSlice(nil)
	b, err := s.Bytes()
	require.NoError(t, err)

	d := NewDeserializer(b)
	assert.Equal(t, uint64(7), d.ReadUint64())
	assert.Equal(t, int64(-3), d.ReadInt64())
	assert.Equal(t, 0.25, d.ReadFloat64())
	assert.Equal(t, "code128:ABC-12345", d.ReadString())
	assert.True(t, at.Equal(d.ReadTime()))
	assert.Empty(t, d.ReadByteSlice())
	require.NoError(t, d.Err())
	assert.Zero(t, d.Remaining())
}

func TestTruncatedInputIsSticky(t *testing.T) {
	s := NewSerializer()
	s.WriteString("hello")
	b, err := s.Bytes()
	require.NoError(t, err)

	d := NewDeserializer(b[:6])
	assert.Empty(t, d.ReadString())
	assert.Zero(t, d.ReadUint64())
	assert.ErrorIs(t, d.Err(), io.ErrUnexpectedEOF)
}

func TestEmptyInput(t *testing.T) {
	d := NewDeserializer(nil)
	d.ReadUint64()
	assert.ErrorIs(t, d.Err(), io.ErrUnexpectedEOF)
}
