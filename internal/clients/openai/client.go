// Package openai is a minimal client for OpenAI-compatible chat-completion
// endpoints. The captioning and text-feature capabilities both ride on it;
// the concrete provider only has to speak the /chat/completions wire shape.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/filedrive/semdex/internal/logger"
)

var (
	// ErrNotConfigured is returned when no API key or base URL is set.
	ErrNotConfigured = errors.New("inference client not configured")
	// ErrEmptyCompletion is returned when the provider answers with no content.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client interface {
	// Complete sends a text-only prompt and returns the completion text.
	Complete(ctx context.Context, model, prompt string) (string, error)
	// CompleteWithImage sends a prompt plus one inline image and returns
	// the completion text.
	CompleteWithImage(ctx context.Context, model, prompt string, image []byte) (string, error)
}

// Config holds the connection settings for the inference endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewClient builds a chat-completions client. BaseURL should include the
// API version prefix (e.g. https://inference.example.com/v1).
func NewClient(cfg Config, log *logger.Logger) (Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		log:     log.With("service", "InferenceClient"),
	}, nil
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) Complete(ctx context.Context, model, prompt string) (string, error) {
	return c.chat(ctx, chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
}

func (c *client) CompleteWithImage(ctx context.Context, model, prompt string, image []byte) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64Encode(image)
	return c.chat(ctx, chatRequest{
		Model: model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
	})
}

func (c *client) chat(ctx context.Context, body chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(raw))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
