package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript writes an executable shell script standing in for whisper-cli.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-ins require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "whisper-cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ggml-large-v3.bin")
	require.NoError(t, os.WriteFile(path, []byte("ggml"), 0o644))
	return path
}

func TestCLIEngine_Transcribe(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	script := writeScript(t, `echo "$@" > `+argsFile+`
echo " Hello there."
echo ""
echo " General Kenobi."`)
	model := writeModel(t)

	engine, err := NewCLIEngine(script, "large", model, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "whisper-cli", engine.Name())
	assert.Equal(t, "large", engine.Model())

	resp, err := engine.Transcribe(context.Background(), "/tmp/temp_abc_sample.wav", TranscribeOpts{Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there. General Kenobi.", resp.Text)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-m "+model)
	assert.Contains(t, string(args), "-f /tmp/temp_abc_sample.wav")
	assert.Contains(t, string(args), "-l en")
}

func TestCLIEngine_DefaultsToAutoLanguage(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	script := writeScript(t, `echo "$@" > `+argsFile)

	engine, err := NewCLIEngine(script, "large", writeModel(t), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), "a.wav", TranscribeOpts{})
	require.NoError(t, err)

	args, _ := os.ReadFile(argsFile)
	assert.Contains(t, string(args), "-l auto")
}

func TestCLIEngine_FailureIncludesStderr(t *testing.T) {
	script := writeScript(t, `echo "failed to read audio file" >&2
exit 3`)

	engine, err := NewCLIEngine(script, "large", writeModel(t), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), "corrupt.wav", TranscribeOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whisper transcribe failed")
	assert.Contains(t, err.Error(), "failed to read audio file")
}

func TestCLIEngine_SharedLibraryError(t *testing.T) {
	script := writeScript(t, `echo "error while loading shared libraries: libwhisper.so.1" >&2
exit 127`)

	engine, err := NewCLIEngine(script, "large", writeModel(t), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), "a.wav", TranscribeOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required shared libraries")
}

func TestCLIEngine_EmptyAudioPath(t *testing.T) {
	engine, err := NewCLIEngine(writeScript(t, "true"), "large", writeModel(t), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Transcribe(context.Background(), "  ", TranscribeOpts{})
	assert.Error(t, err)
}

func TestCLIEngine_ContextCanceled(t *testing.T) {
	engine, err := NewCLIEngine(writeScript(t, "sleep 5"), "large", writeModel(t), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = engine.Transcribe(ctx, "a.wav", TranscribeOpts{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCLIEngine_Errors(t *testing.T) {
	t.Run("missing_executable", func(t *testing.T) {
		_, err := NewCLIEngine(filepath.Join(t.TempDir(), "nope", "whisper-cli"), "large", writeModel(t), zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not executable")
	})

	t.Run("not_in_path", func(t *testing.T) {
		_, err := NewCLIEngine("definitely-not-a-whisper-binary", "large", writeModel(t), zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in PATH")
	})

	t.Run("non_executable_file", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("mode bits not meaningful on windows")
		}
		path := filepath.Join(t.TempDir(), "whisper-cli")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		_, err := NewCLIEngine(path, "large", writeModel(t), zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("missing_model", func(t *testing.T) {
		_, err := NewCLIEngine(writeScript(t, "true"), "large", filepath.Join(t.TempDir(), "ggml-large-v3.bin"), zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model file")
	})
}

func TestJoinLines(t *testing.T) {
	assert.Equal(t, "", joinLines("\n\n"))
	assert.Equal(t, "a b", joinLines(" a \r\n\n b\n"))
	assert.True(t, strings.HasPrefix(joinLines("one\ntwo"), "one"))
}
