package pipeline

import (
	"context"

	"github.com/mgoltzsche/speech-relay/internal/audio"
)

// State is the stage a pipeline session is in.
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateEncoding     State = "encoding"
	StateTranscribing State = "transcribing"
	StateGenerating   State = "generating"
	StateSpeaking     State = "speaking"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Event is published whenever a session enters a new state.
type Event struct {
	SessionID  string
	State      State
	Transcript string
	Response   string
	Err        error
}

// Result is the outcome of a completed session.
type Result struct {
	SessionID  string
	Transcript string
	Response   string
}

// Recorder captures audio between Start and Stop.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (audio.Samples, error)
}

// Transcriber converts an encoded audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

// Generator produces a reply for the given transcript.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Speaker reads the generated reply aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// SpeechDetector reports whether the recording contains speech at all.
type SpeechDetector interface {
	DetectSpeech(samples audio.Samples) (bool, error)
}
