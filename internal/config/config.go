package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	CORSOrigins  string        `env:"CORS_ORIGINS"`

	// Upload staging
	TempDir        string `env:"TEMP_DIR" envDefault:"."`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"104857600"`

	// Speech-to-text backend
	Provider          string        `env:"TRANSCRIBE_PROVIDER" envDefault:"whisper-cli"`
	TranscribeTimeout time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"10m"`
	InferenceSlots    int           `env:"INFERENCE_SLOTS" envDefault:"1"`
	Language          string        `env:"WHISPER_LANGUAGE"`
	Temperature       float64       `env:"WHISPER_TEMPERATURE" envDefault:"0"`
	PreprocessAudio   bool          `env:"PREPROCESS_AUDIO" envDefault:"false"`

	WhisperModel     string `env:"WHISPER_MODEL" envDefault:"large"`
	WhisperModelPath string `env:"WHISPER_MODEL_PATH"`
	WhisperModelDir  string `env:"WHISPER_MODEL_DIR" envDefault:"./models"`
	WhisperBin       string `env:"WHISPER_BIN" envDefault:"whisper-cli"`
	WhisperURL       string `env:"WHISPER_URL" envDefault:"http://localhost:8001/v1/audio/transcriptions"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
	Provider string
	Model    string
	TempDir  string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.Provider != "" {
		cfg.Provider = overrides.Provider
	}
	if overrides.Model != "" {
		cfg.WhisperModel = overrides.Model
	}
	if overrides.TempDir != "" {
		cfg.TempDir = overrides.TempDir
	}

	if cfg.InferenceSlots < 1 {
		cfg.InferenceSlots = 1
	}

	return cfg, nil
}

// AllowedOrigins splits CORS_ORIGINS into a list. Empty means allow all.
func (c *Config) AllowedOrigins() []string {
	if c.CORSOrigins == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
