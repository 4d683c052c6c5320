package count

import (
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"
	"golang.org/x/xerrors"

	"barcodecount/pkg/capture"
	"barcodecount/pkg/log"
	"barcodecount/pkg/settings"
)

// modeDocument is the JSON layout of a mode. Absent fields keep their
// current value.
type modeDocument struct {
	Enabled  *bool           `json:"enabled,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
	Feedback json.RawMessage `json:"feedback,omitempty"`
}

// FromJSON creates a mode attached to ctx from a JSON document with
// optional comments, e.g.
//
//	{
//	  "enabled": true,
//	  "settings": {"symbologies": {"code128": {"enabled": true}}},
//	  "feedback": {"success": {"sound": true, "vibration": false}}
//	}
func FromJSON(ctx *capture.Context, data []byte, opts ...Option) (*BarcodeCount, error) {
	doc, err := parseModeDocument(data)
	if err != nil {
		return nil, err
	}
	s := settings.New()
	if len(doc.Settings) > 0 {
		if s, err = decodeSettings(s, doc.Settings); err != nil {
			return nil, err
		}
	}
	fb := DefaultFeedback()
	if len(doc.Feedback) > 0 {
		if fb, err = decodeFeedback(fb, doc.Feedback); err != nil {
			return nil, err
		}
	}
	m := New(ctx, s, opts...)
	m.SetFeedback(fb)
	if doc.Enabled != nil {
		m.SetEnabled(*doc.Enabled)
	}
	return m, nil
}

// UpdateFromJSON applies a partial document to m. Settings go through
// ApplySettings and so take effect at the next frame boundary while
// scanning. Nothing is changed when the document is invalid.
func UpdateFromJSON(m *BarcodeCount, data []byte) error {
	doc, err := parseModeDocument(data)
	if err != nil {
		return err
	}
	var s *settings.Settings
	if len(doc.Settings) > 0 {
		if s, err = decodeSettings(m.Settings(), doc.Settings); err != nil {
			return err
		}
	}
	var fb *Feedback
	if len(doc.Feedback) > 0 {
		merged, err := decodeFeedback(m.Feedback(), doc.Feedback)
		if err != nil {
			return err
		}
		fb = &merged
	}
	if s != nil {
		m.ApplySettings(s, nil)
	}
	if fb != nil {
		m.SetFeedback(*fb)
	}
	if doc.Enabled != nil {
		m.SetEnabled(*doc.Enabled)
	}
	return nil
}

func parseModeDocument(data []byte) (*modeDocument, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, xerrors.Errorf("malformed mode JSON: %v: %w", err, settings.ErrInvalidDocument)
	}
	var doc modeDocument
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, xerrors.Errorf("mode document: %v: %w", err, settings.ErrInvalidDocument)
	}
	return &doc, nil
}

func decodeSettings(base *settings.Settings, raw json.RawMessage) (*settings.Settings, error) {
	d := settings.NewDeserializer()
	s, err := d.UpdateSettingsFromJSON(base, raw)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	for _, w := range d.Warnings() {
		log.Info("Settings document: %s", w)
	}
	return s, nil
}

// decodeFeedback merges raw into a copy of base. Signals absent from the
// document are kept, an explicit null silences one.
func decodeFeedback(base Feedback, raw json.RawMessage) (Feedback, error) {
	fb := base.clone()
	if err := json.Unmarshal(raw, &fb); err != nil {
		return Feedback{}, xerrors.Errorf("feedback: %v: %w", err, settings.ErrInvalidDocument)
	}
	return fb, nil
}
