package transcribe

import (
	"context"
	"errors"
)

// ErrModelUnavailable is returned for every request when the model failed to
// load at startup.
var ErrModelUnavailable = errors.New("transcription model is not loaded")

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error)
	Name() string  // "whisper-cli", "whisper-server", "openai"
	Model() string // model identifier for logs and health output
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds
	Words    []Word  // nil if provider doesn't support word timestamps
}

// Word is a timestamped word from any STT provider.
type Word struct {
	Word  string
	Start float64 // seconds
	End   float64 // seconds
}

// TranscribeOpts are per-request decoding options.
// Zero-value fields are omitted, leaving the backend's own defaults in place.
type TranscribeOpts struct {
	Temperature float64
	Language    string // "" or "auto" lets the model detect it
	Prompt      string // initial prompt / domain vocabulary
}
