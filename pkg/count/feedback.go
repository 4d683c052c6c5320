package count

import "barcodecount/pkg/log"

// Signal describes one feedback cue.
type Signal struct {
	Sound     bool `json:"sound"`
	Vibration bool `json:"vibration"`
}

// Feedback configures the cues emitted after a frame. A nil signal is
// silent.
type Feedback struct {
	Success *Signal `json:"success,omitempty"`
	Failure *Signal `json:"failure,omitempty"`
}

// DefaultFeedback sounds and vibrates on success and on failure.
func DefaultFeedback() Feedback {
	return Feedback{
		Success: &Signal{Sound: true, Vibration: true},
		Failure: &Signal{Sound: true, Vibration: true},
	}
}

func (f Feedback) clone() Feedback {
	c := f
	if f.Success != nil {
		s := *f.Success
		c.Success = &s
	}
	if f.Failure != nil {
		s := *f.Failure
		c.Failure = &s
	}
	return c
}

// FeedbackKind tells success from failure cues.
type FeedbackKind int

const (
	FeedbackSuccess FeedbackKind = iota
	FeedbackFailure
)

func (k FeedbackKind) String() string {
	if k == FeedbackFailure {
		return "failure"
	}
	return "success"
}

// FeedbackEmitter plays cues on the host. Emit runs on the interaction
// queue.
type FeedbackEmitter interface {
	Emit(kind FeedbackKind, s Signal)
}

// logEmitter is the emitter used when the host provides none.
type logEmitter struct{}

func (logEmitter) Emit(kind FeedbackKind, s Signal) {
	log.Trace("Feedback %s: sound=%t vibration=%t", kind, s.Sound, s.Vibration)
}
