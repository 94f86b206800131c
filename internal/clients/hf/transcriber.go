// Package hf calls Hugging Face style inference endpoints. Transcription
// posts raw WAV bytes and is the slowest external call in the pipeline,
// so it carries its own generous timeout.
package hf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/filedrive/semdex/internal/logger"
)

// DefaultTranscriptionURL is the whisper inference endpoint used when no
// override is configured.
const DefaultTranscriptionURL = "https://api-inference.huggingface.co/models/openai/whisper-base"

// ErrNoToken is returned when the API token is missing.
var ErrNoToken = errors.New("hf api token not set")

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// TranscriberConfig configures the inference endpoint.
type TranscriberConfig struct {
	Token   string
	URL     string
	Timeout time.Duration
}

type transcriber struct {
	token string
	url   string
	http  *http.Client
	log   *logger.Logger
}

// NewTranscriber builds a Transcriber against a HF inference endpoint.
func NewTranscriber(cfg TranscriberConfig, log *logger.Logger) (Transcriber, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	url := cfg.URL
	if url == "" {
		url = DefaultTranscriptionURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &transcriber{
		token: cfg.Token,
		url:   url,
		http:  &http.Client{Timeout: timeout},
		log:   log.With("service", "Transcriber"),
	}, nil
}

func (t *transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio %s: %w", audioPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	transcript := strings.TrimSpace(parsed.Text)
	t.log.Debug("transcription complete", "path", audioPath, "chars", len(transcript))
	return transcript, nil
}
