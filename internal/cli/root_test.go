package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	require.True(t, strings.HasPrefix(out.String(), "audio-transcriber v"), out.String())
}

func TestRootCmdFlags(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"env-file", "listen", "log-level", "provider", "model", "temp-dir"} {
		require.NotNil(t, cmd.Flags().Lookup(name), "missing flag --%s", name)
	}
}

func TestRootCmdRejectsArgs(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"extra"})
	err := cmd.Execute()
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn")
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")

	buf.Reset()
	fallback := newLogger(&buf, "bogus")
	fallback.Info().Msg("fallback")
	require.Contains(t, buf.String(), "fallback")
}

func TestServe_StopsOnCancelledContext(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("TEMP_DIR", t.TempDir())
	t.Setenv("TRANSCRIBE_PROVIDER", "whisper-server")

	var out bytes.Buffer
	app := &appState{out: &out}
	app.overrides.EnvFile = "does-not-exist.env"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, app.serve(ctx))
	require.Contains(t, out.String(), "audio-transcriber starting")
	require.Contains(t, out.String(), "audio-transcriber stopped")

	var staging string
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, "staging directory ready") {
			staging = line
		}
	}
	require.NotEmpty(t, staging)
	require.Equal(t, 1, strings.Count(staging, `"component"`), staging)
}

func TestServe_ModelFailureStillServes(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:0")
	t.Setenv("TEMP_DIR", t.TempDir())
	t.Setenv("TRANSCRIBE_PROVIDER", "no-such-backend")

	var out bytes.Buffer
	app := &appState{out: &out}
	app.overrides.EnvFile = "does-not-exist.env"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, app.serve(ctx))
	require.Contains(t, out.String(), "error loading transcription model")
}

func TestServe_BadConfig(t *testing.T) {
	t.Setenv("TRANSCRIBE_TIMEOUT", "not-a-duration")

	app := &appState{out: &bytes.Buffer{}}
	app.overrides.EnvFile = "does-not-exist.env"

	err := app.serve(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "load config")
}
