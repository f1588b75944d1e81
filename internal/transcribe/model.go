package transcribe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultModel is the whisper model loaded when none is configured.
const DefaultModel = "large"

// ggml model files published for whisper.cpp, keyed by the usual whisper model
// names.
var ggmlModels = map[string]string{
	"tiny":           "ggml-tiny.bin",
	"tiny.en":        "ggml-tiny.en.bin",
	"base":           "ggml-base.bin",
	"base.en":        "ggml-base.en.bin",
	"small":          "ggml-small.bin",
	"small.en":       "ggml-small.en.bin",
	"medium":         "ggml-medium.bin",
	"medium.en":      "ggml-medium.en.bin",
	"large-v1":       "ggml-large-v1.bin",
	"large-v2":       "ggml-large-v2.bin",
	"large-v3":       "ggml-large-v3.bin",
	"large":          "ggml-large-v3.bin",
	"large-v3-turbo": "ggml-large-v3-turbo.bin",
	"turbo":          "ggml-large-v3-turbo.bin",
}

// ModelNames returns the known model names in sorted order.
func ModelNames() []string {
	names := make([]string, 0, len(ggmlModels))
	for name := range ggmlModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveModelPath returns the ggml file for a model. An explicit path wins;
// otherwise name is looked up in the registry under dir.
func ResolveModelPath(name, explicitPath, dir string) (string, error) {
	if explicitPath != "" {
		if err := ensureRegularFile(explicitPath); err != nil {
			return "", fmt.Errorf("model file %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}

	if name == "" {
		name = DefaultModel
	}
	file, ok := ggmlModels[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unknown model %q (known: %s)", name, strings.Join(ModelNames(), ", "))
	}

	path := filepath.Join(dir, file)
	if err := ensureRegularFile(path); err != nil {
		return "", fmt.Errorf("model %q not found at %s: %w", name, path, err)
	}
	return path, nil
}

func ensureRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}
