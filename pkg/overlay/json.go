package overlay

import (
	"bytes"
	"encoding/json"

	"github.com/tailscale/hujson"
	"golang.org/x/xerrors"

	"barcodecount/pkg/settings"
)

// overlayDocument is the JSON layout of an overlay. A brush set to null
// hides the barcodes it applies to; an absent brush is left alone.
type overlayDocument struct {
	ScannedBrush   json.RawMessage `json:"scannedBrush,omitempty"`
	UnscannedBrush json.RawMessage `json:"unscannedBrush,omitempty"`
	Options        json.RawMessage `json:"options,omitempty"`
}

// UpdateFromJSON applies a partial document to o. Options present in the
// document replace the current ones field by field. Nothing changes when
// the document is invalid.
func UpdateFromJSON(o *BasicOverlay, data []byte) error {
	std, err := hujson.Standardize(data)
	if err != nil {
		return xerrors.Errorf("malformed overlay JSON: %v: %w", err, settings.ErrInvalidDocument)
	}
	var doc overlayDocument
	if err := json.Unmarshal(std, &doc); err != nil {
		return xerrors.Errorf("overlay document: %v: %w", err, settings.ErrInvalidDocument)
	}

	scanned, setScanned, err := decodeBrush(doc.ScannedBrush)
	if err != nil {
		return xerrors.Errorf("scannedBrush: %v: %w", err, settings.ErrInvalidDocument)
	}
	unscanned, setUnscanned, err := decodeBrush(doc.UnscannedBrush)
	if err != nil {
		return xerrors.Errorf("unscannedBrush: %v: %w", err, settings.ErrInvalidDocument)
	}
	opts := o.Options()
	if len(doc.Options) > 0 {
		// Unmarshalling into the current value keeps absent fields.
		if err := json.Unmarshal(doc.Options, &opts); err != nil {
			return xerrors.Errorf("options: %v: %w", err, settings.ErrInvalidDocument)
		}
	}

	if setScanned {
		o.SetScannedBrush(scanned)
	}
	if setUnscanned {
		o.SetUnscannedBrush(unscanned)
	}
	o.SetOptions(opts)
	return nil
}

func decodeBrush(raw json.RawMessage) (*Brush, bool, error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, true, nil
	}
	b := &Brush{}
	if err := json.Unmarshal(raw, b); err != nil {
		return nil, false, err
	}
	return b, true, nil
}
