package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient calls the OpenAI audio transcription API, or any server that
// speaks the same protocol when baseURL is set.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI transcription client.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	if model == "" || model == DefaultModel {
		model = openai.Whisper1
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Name returns the provider name.
func (oc *OpenAIClient) Name() string { return "openai" }

// Model returns the configured model identifier.
func (oc *OpenAIClient) Model() string { return oc.model }

// Transcribe uploads audioPath to the transcription endpoint.
func (oc *OpenAIClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	req := openai.AudioRequest{
		Model:       oc.model,
		FilePath:    audioPath,
		Prompt:      opts.Prompt,
		Temperature: float32(opts.Temperature),
		Format:      openai.AudioResponseFormatVerboseJSON,
	}
	if opts.Language != "" && opts.Language != "auto" {
		req.Language = opts.Language
	}

	resp, err := oc.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	var words []Word
	for _, w := range resp.Words {
		words = append(words, Word{Word: w.Word, Start: w.Start, End: w.End})
	}
	return &Response{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
		Words:    words,
	}, nil
}
