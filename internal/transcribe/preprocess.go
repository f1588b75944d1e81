package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

var (
	soxOnce sync.Once
	soxPath string
)

// CheckSox reports whether sox is in PATH. The lookup runs once.
func CheckSox() bool {
	soxOnce.Do(func() {
		soxPath, _ = exec.LookPath("sox")
	})
	return soxPath != ""
}

// resetSoxLookup forgets the cached sox lookup so the next CheckSox searches
// PATH again.
func resetSoxLookup() {
	soxOnce = sync.Once{}
	soxPath = ""
}

// Preprocess converts audio into the shape whisper models expect using sox:
//   - Resample to 16kHz mono
//   - Normalize volume
//
// The output is written next to inputPath under a unique name. Returns the
// path and a cleanup function that removes it. If sox is unavailable,
// returns the original path with a no-op cleanup.
func Preprocess(ctx context.Context, inputPath string) (string, func(), error) {
	noop := func() {}

	if !CheckSox() {
		return inputPath, noop, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(inputPath), "temp_preprocess_*.wav")
	if err != nil {
		return inputPath, noop, fmt.Errorf("sox preprocess: %w", err)
	}
	outPath := tmp.Name()
	tmp.Close()

	cmd := exec.CommandContext(ctx, soxPath,
		inputPath, outPath,
		"rate", "16000",
		"channels", "1",
		"norm",
	)
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return inputPath, noop, fmt.Errorf("sox preprocess: %w", err)
	}

	cleanup := func() {
		os.Remove(outPath)
	}
	return outPath, cleanup, nil
}
