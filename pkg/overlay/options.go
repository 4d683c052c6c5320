package overlay

// Button describes the accessibility texts of an overlay button.
type Button struct {
	Label string `json:"accessibilityLabel,omitempty"`
	Hint  string `json:"accessibilityHint,omitempty"`
}

// Hints are the guidance texts shown while counting.
type Hints struct {
	UnscannedBarcodesDetected string `json:"unscannedBarcodesDetected,omitempty"`
	TapShutterToScan          string `json:"tapShutterToScan,omitempty"`
	Scanning                  string `json:"scanning,omitempty"`
	MoveCloserAndRescan       string `json:"moveCloserAndRescan,omitempty"`
	MoveFurtherAndRescan      string `json:"moveFurtherAndRescan,omitempty"`
}

// Options controls what the overlay shows besides the highlights.
type Options struct {
	ShowListButton     bool `json:"shouldShowListButton"`
	ShowExitButton     bool `json:"shouldShowExitButton"`
	ShowShutterButton  bool `json:"shouldShowShutterButton"`
	ShowUserGuidance   bool `json:"shouldShowUserGuidanceView"`
	ShowHints          bool `json:"shouldShowHints"`
	ShowScanAreaGuides bool `json:"shouldShowScanAreaGuides"`

	ListButton    Button `json:"listButton"`
	ExitButton    Button `json:"exitButton"`
	ShutterButton Button `json:"shutterButton"`
	Hints         Hints  `json:"hints"`
}

// DefaultOptions shows every button and hint but no scan area guides.
func DefaultOptions() Options {
	return Options{
		ShowListButton:    true,
		ShowExitButton:    true,
		ShowShutterButton: true,
		ShowUserGuidance:  true,
		ShowHints:         true,
		ListButton:        Button{Label: "List", Hint: "Shows the counted items"},
		ExitButton:        Button{Label: "Exit", Hint: "Stops counting"},
		ShutterButton:     Button{Label: "Scan", Hint: "Counts the barcodes in view"},
		Hints: Hints{
			UnscannedBarcodesDetected: "Tap the shutter to scan the highlighted barcodes",
			TapShutterToScan:          "Tap the shutter to start counting",
			Scanning:                  "Scanning...",
			MoveCloserAndRescan:       "Move closer and scan again",
			MoveFurtherAndRescan:      "Move further away and scan again",
		},
	}
}

// hint picks the guidance text for a frame with n highlights.
func (o Options) hint(n int, unscanned bool) string {
	switch {
	case !o.ShowHints:
		return ""
	case unscanned:
		return o.Hints.UnscannedBarcodesDetected
	case n == 0 && o.ShowShutterButton:
		return o.Hints.TapShutterToScan
	case n == 0:
		return o.Hints.Scanning
	default:
		return ""
	}
}
