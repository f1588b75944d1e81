package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Options selects and configures the speech-to-text backend.
type Options struct {
	Provider  string // "whisper-cli", "whisper-server", "openai"
	Model     string
	ModelPath string
	ModelDir  string
	Bin       string
	URL       string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
}

// Handle holds the outcome of loading the model at startup: either a usable
// provider or the error that prevented it. It is immutable after Load.
type Handle struct {
	provider Provider
	err      error
}

// LoadedHandle wraps an already constructed provider.
func LoadedHandle(p Provider) *Handle { return &Handle{provider: p} }

// FailedHandle records a load failure.
func FailedHandle(err error) *Handle { return &Handle{err: err} }

// Load builds the configured provider once. It never returns nil; a failure is
// recorded in the handle and surfaced on every later request.
func Load(ctx context.Context, opts Options, log zerolog.Logger) *Handle {
	start := time.Now()
	p, err := newProvider(ctx, opts, log)
	if err != nil {
		log.Error().Err(err).Str("provider", opts.Provider).Str("model", opts.Model).
			Msg("error loading transcription model")
		return FailedHandle(err)
	}
	log.Info().
		Str("provider", p.Name()).
		Str("model", p.Model()).
		Dur("load_time", time.Since(start)).
		Msg("transcription model loaded")
	return LoadedHandle(p)
}

func newProvider(ctx context.Context, opts Options, log zerolog.Logger) (Provider, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	switch opts.Provider {
	case "", "whisper-cli":
		path, err := ResolveModelPath(model, opts.ModelPath, opts.ModelDir)
		if err != nil {
			return nil, err
		}
		return NewCLIEngine(opts.Bin, model, path, log.With().Str("provider", "whisper-cli").Logger())
	case "whisper-server":
		return NewWhisperClient(opts.URL, model, opts.Timeout)
	case "openai":
		return NewOpenAIClient(opts.APIKey, opts.BaseURL, model, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", opts.Provider)
	}
}

// Provider returns the loaded provider, or an error wrapping
// ErrModelUnavailable if loading failed.
func (h *Handle) Provider() (Provider, error) {
	if h == nil {
		return nil, ErrModelUnavailable
	}
	if h.provider == nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, h.err)
	}
	return h.provider, nil
}

// Err returns the load error, if any.
func (h *Handle) Err() error {
	if h == nil {
		return ErrModelUnavailable
	}
	return h.err
}

// Loaded reports whether a provider is available.
func (h *Handle) Loaded() bool { return h != nil && h.provider != nil }

// Status returns "loaded" or "failed".
func (h *Handle) Status() string {
	if h.Loaded() {
		return "loaded"
	}
	return "failed"
}
