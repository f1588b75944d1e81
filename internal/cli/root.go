package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/snarg/audio-transcriber/internal/api"
	"github.com/snarg/audio-transcriber/internal/config"
	"github.com/snarg/audio-transcriber/internal/tempfile"
	"github.com/snarg/audio-transcriber/internal/transcribe"
	"github.com/snarg/audio-transcriber/internal/version"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type appState struct {
	overrides config.Overrides
	out       io.Writer
}

// NewRootCmd builds the command tree. Running the root command serves the
// HTTP API until the command context is cancelled.
func NewRootCmd() *cobra.Command {
	app := &appState{out: os.Stdout}

	cmd := &cobra.Command{
		Use:           "audio-transcriber",
		Short:         "HTTP service that transcribes uploaded audio files",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.serve(cmd.Context())
		},
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	f := cmd.Flags()
	f.StringVar(&app.overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	f.StringVar(&app.overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	f.StringVar(&app.overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	f.StringVar(&app.overrides.Provider, "provider", "", "Transcription backend: whisper-cli, whisper-server, openai (overrides TRANSCRIBE_PROVIDER)")
	f.StringVar(&app.overrides.Model, "model", "", "Model name (overrides WHISPER_MODEL)")
	f.StringVar(&app.overrides.TempDir, "temp-dir", "", "Directory for staged uploads (overrides TEMP_DIR)")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "audio-transcriber v%s\n", version.String())
			return nil
		},
	}
}

// newLogger returns a JSON logger at the named level; unknown levels fall back to info.
func newLogger(w io.Writer, levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(level)
}

func (app *appState) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()

	// Config
	cfg, err := config.Load(app.overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	log := newLogger(app.out, cfg.LogLevel)
	log.Info().Str("version", version.Resolve()).Msg("audio-transcriber starting")

	// Upload staging
	files, err := tempfile.NewManager(cfg.TempDir, log)
	if err != nil {
		return fmt.Errorf("prepare temp dir: %w", err)
	}

	// Model, loaded once. A failure keeps the server up and answers 503.
	modelLog := log.With().Str("component", "transcribe").Logger()
	handle := transcribe.Load(ctx, transcribe.Options{
		Provider:  cfg.Provider,
		Model:     cfg.WhisperModel,
		ModelPath: cfg.WhisperModelPath,
		ModelDir:  cfg.WhisperModelDir,
		Bin:       cfg.WhisperBin,
		URL:       cfg.WhisperURL,
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Timeout:   cfg.TranscribeTimeout,
	}, modelLog)

	tr := transcribe.NewTranscriber(transcribe.TranscriberOptions{
		Handle:          handle,
		Slots:           cfg.InferenceSlots,
		Timeout:         cfg.TranscribeTimeout,
		PreprocessAudio: cfg.PreprocessAudio,
		Decode: transcribe.TranscribeOpts{
			Temperature: cfg.Temperature,
			Language:    cfg.Language,
		},
		Log: modelLog,
	})

	if err := api.RegisterCollector(files, tr); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return fmt.Errorf("register metrics: %w", err)
		}
		log.Warn().Msg("service metrics collector already registered")
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:      cfg,
		Files:       files,
		Transcriber: tr,
		Version:     version.Resolve(),
		StartTime:   startTime,
		Log:         httpLog,
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error().Err(serveErr).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("audio-transcriber stopped")
	return serveErr
}
