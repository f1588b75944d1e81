package transcribe

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// NoTextPlaceholder is returned when the model produces no text.
const NoTextPlaceholder = "No text found"

// TranscriberOptions configures the Transcriber.
type TranscriberOptions struct {
	Handle          *Handle
	Slots           int           // concurrent inference calls; <1 means 1
	Timeout         time.Duration // per call; 0 disables
	PreprocessAudio bool
	Decode          TranscribeOpts
	Log             zerolog.Logger
}

// Result is the outcome of one transcription.
type Result struct {
	Text     string
	Language string
	Provider string
	Model    string
	Elapsed  time.Duration
}

// Transcriber adapts the loaded model for request handlers. Calls into the
// model pass through a fixed number of slots so a single model instance is
// never driven harder than configured.
type Transcriber struct {
	handle *Handle
	slots  chan struct{}
	opts   TranscriberOptions
	log    zerolog.Logger

	inFlight atomic.Int64
	waiting  atomic.Int64
}

// NewTranscriber creates a Transcriber over the given model handle.
func NewTranscriber(opts TranscriberOptions) *Transcriber {
	if opts.Slots < 1 {
		opts.Slots = 1
	}
	if opts.PreprocessAudio {
		if CheckSox() {
			opts.Log.Info().Msg("audio preprocessing enabled (sox found)")
		} else {
			opts.Log.Warn().Msg("PREPROCESS_AUDIO=true but sox not found in PATH; preprocessing disabled")
		}
	}
	return &Transcriber{
		handle: opts.Handle,
		slots:  make(chan struct{}, opts.Slots),
		opts:   opts,
		log:    opts.Log,
	}
}

// Handle returns the model handle.
func (t *Transcriber) Handle() *Handle { return t.handle }

// Slots returns the number of concurrent inference slots.
func (t *Transcriber) Slots() int { return cap(t.slots) }

// InFlight returns the number of inference calls currently running.
func (t *Transcriber) InFlight() int { return int(t.inFlight.Load()) }

// Waiting returns the number of callers queued for a slot.
func (t *Transcriber) Waiting() int { return int(t.waiting.Load()) }

// Transcribe runs the model on the audio file at path. It fails fast with
// ErrModelUnavailable when no model is loaded. Errors from the model are
// returned unchanged apart from wrapping.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (*Result, error) {
	p, err := t.handle.Provider()
	if err != nil {
		return nil, err
	}

	if err := t.acquire(ctx); err != nil {
		return nil, fmt.Errorf("waiting for inference slot: %w", err)
	}
	defer t.release()

	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	audioPath := path
	if t.opts.PreprocessAudio {
		processed, cleanup, err := Preprocess(ctx, path)
		if err != nil {
			t.log.Warn().Err(err).Msg("preprocessing failed, using original audio")
		} else {
			audioPath = processed
			defer cleanup()
		}
	}

	start := time.Now()
	resp, err := p.Transcribe(ctx, audioPath, t.opts.Decode)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}

	return &Result{
		Text:     ExtractText(resp),
		Language: resp.Language,
		Provider: p.Name(),
		Model:    p.Model(),
		Elapsed:  elapsed,
	}, nil
}

func (t *Transcriber) acquire(ctx context.Context) error {
	t.waiting.Add(1)
	defer t.waiting.Add(-1)

	select {
	case t.slots <- struct{}{}:
		t.inFlight.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transcriber) release() {
	t.inFlight.Add(-1)
	<-t.slots
}

// ExtractText returns the trimmed transcript, or NoTextPlaceholder when the
// response carries none.
func ExtractText(resp *Response) string {
	if resp == nil {
		return NoTextPlaceholder
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return NoTextPlaceholder
	}
	return text
}
