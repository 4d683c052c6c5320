package ledger

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/cbergoon/merkletree"

	"barcodecount/pkg/barcode"
	"barcodecount/pkg/serialization"
)

// Entry records one barcode reported to a count listener.
type Entry struct {
	RunID           string
	FrameSequenceID int64
	FrameIndex      uint64
	TrackID         int
	Symbology       barcode.Symbology
	Data            string
	At              time.Time
}

// Key identifies the payload of the entry, independent of its track.
func (e *Entry) Key() string {
	return barcode.Barcode{Symbology: e.Symbology, Data: e.Data}.Key()
}

// Bytes returns the canonical binary encoding of the entry.
func (e *Entry) Bytes() ([]byte, error) {
	s := serialization.NewSerializer()
	s.WriteString(e.RunID)
	s.WriteInt64(e.FrameSequenceID)
	s.WriteUint64(e.FrameIndex)
	s.WriteInt64(int64(e.TrackID))
	s.WriteString(e.Symbology.String())
	s.WriteString(e.Data)
	s.WriteTime(e.At)
	return s.Bytes()
}

// EntryFromBytes decodes an entry produced by Bytes.
func EntryFromBytes(b []byte) (*Entry, error) {
	d := serialization.NewDeserializer(b)
	e := &Entry{
		RunID:           d.ReadString(),
		FrameSequenceID: d.ReadInt64(),
		FrameIndex:      d.ReadUint64(),
		TrackID:         int(d.ReadInt64()),
	}
	symName := d.ReadString()
	e.Data = d.ReadString()
	e.At = d.ReadTime()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entry: %w", err)
	}
	if d.Remaining() != 0 {
		return nil, fmt.Errorf("failed to decode ledger entry: %d trailing bytes", d.Remaining())
	}
	sym, err := barcode.ParseSymbology(symName)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ledger entry: %w", err)
	}
	e.Symbology = sym
	return e, nil
}

// CalculateHash implements merkletree.Content.
func (e *Entry) CalculateHash() ([]byte, error) {
	b, err := e.Bytes()
	if err != nil {
		return nil, err
	}
	h := sha256.Sum256(b)
	return h[:], nil
}

// Equals implements merkletree.Content.
func (e *Entry) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(*Entry)
	if !ok {
		return false, fmt.Errorf("value is not of type *ledger.Entry")
	}
	a, err := e.Bytes()
	if err != nil {
		return false, err
	}
	b, err := o.Bytes()
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}
