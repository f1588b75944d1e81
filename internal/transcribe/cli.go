package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// CLIEngine runs a local whisper.cpp executable (whisper-cli) against a ggml
// model file. The model is read from disk on every invocation; the engine
// itself holds no state and is safe for concurrent use.
type CLIEngine struct {
	executable string
	modelPath  string
	modelName  string
	threads    int
	log        zerolog.Logger
}

// NewCLIEngine resolves the executable and verifies the model file exists.
// bin may be a bare name looked up in PATH or a path to the binary.
func NewCLIEngine(bin, modelName, modelPath string, log zerolog.Logger) (*CLIEngine, error) {
	exe, err := resolveExecutable(bin)
	if err != nil {
		return nil, err
	}
	if err := ensureRegularFile(modelPath); err != nil {
		return nil, fmt.Errorf("model file %s: %w", modelPath, err)
	}
	return &CLIEngine{
		executable: exe,
		modelPath:  modelPath,
		modelName:  modelName,
		threads:    runtime.NumCPU(),
		log:        log,
	}, nil
}

// Name returns the provider name.
func (e *CLIEngine) Name() string { return "whisper-cli" }

// Model returns the configured model identifier.
func (e *CLIEngine) Model() string { return e.modelName }

// Transcribe runs whisper-cli on audioPath and returns the text it prints.
func (e *CLIEngine) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, errors.New("audio path is required")
	}

	args := []string{
		"-m", e.modelPath,
		"-f", audioPath,
		"-t", fmt.Sprintf("%d", e.threads),
		"-nt", // no timestamps
		"-np", // results only
	}
	lang := strings.TrimSpace(opts.Language)
	if lang == "" {
		lang = "auto"
	}
	args = append(args, "-l", lang)
	if opts.Temperature > 0 {
		args = append(args, "-tp", fmt.Sprintf("%.2f", opts.Temperature))
	}
	if opts.Prompt != "" {
		args = append(args, "--prompt", opts.Prompt)
	}

	cmd := exec.CommandContext(ctx, e.executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debug().Str("engine", e.executable).Strs("args", args).Msg("running whisper engine")
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("whisper engine: %w", ctxErr)
		}
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return nil, fmt.Errorf("whisper engine at %s is missing required shared libraries (%s)", e.executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return nil, fmt.Errorf("whisper engine crashed with an illegal CPU instruction; set WHISPER_BIN to a whisper-cli built for this CPU")
		}
		if errText != "" {
			return nil, fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
		}
		return nil, fmt.Errorf("whisper transcribe failed: %w", err)
	}

	return &Response{Text: joinLines(stdout.String())}, nil
}

// joinLines collapses whisper-cli's per-segment lines into one transcript.
func joinLines(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func resolveExecutable(bin string) (string, error) {
	if bin == "" {
		bin = engineBinaryName()
	}
	if !strings.ContainsRune(bin, os.PathSeparator) {
		path, err := exec.LookPath(bin)
		if err != nil {
			return "", fmt.Errorf("whisper engine %q not found in PATH: %w", bin, err)
		}
		return path, nil
	}
	if err := ensureExecutable(bin); err != nil {
		return "", fmt.Errorf("whisper engine missing or not executable: %w", err)
	}
	return bin, nil
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	patterns := []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	}
	for _, pattern := range patterns {
		if strings.Contains(value, pattern) {
			return true
		}
	}
	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
