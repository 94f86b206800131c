package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider configuration
const (
	ProviderHF     = "hf"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// DefaultHFEmbeddingURL is the feature-extraction pipeline for the
	// default sentence-embedding model.
	DefaultHFEmbeddingURL = "https://router.huggingface.co/hf-inference/models/BAAI/bge-small-en-v1.5/pipeline/feature-extraction"
	DefaultOpenAIModel    = "text-embedding-3-small"

	// Dimensions
	HFDimension     = 384
	OpenAIDimension = 1536
	LocalDimension  = 384
)

// HFProvider implements Embedder against a Hugging Face
// feature-extraction inference endpoint.
type HFProvider struct {
	token      string
	url        string
	httpClient *http.Client
	cache      *Cache
}

// NewHFProvider creates a Hugging Face embedder. url may be empty to use
// the default endpoint.
func NewHFProvider(token, url string, timeout time.Duration, cache *Cache) (*HFProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: hf token not set", ErrNoProviderEnabled)
	}
	if url == "" {
		url = DefaultHFEmbeddingURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HFProvider{
		token:      token,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
	}, nil
}

func (h *HFProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if h.cache != nil {
		if vec, ok := h.cache.Get(hash); ok {
			return vec, nil
		}
	}

	config := DefaultRetryConfig()
	vec, err := retryWithBackoff(ctx, config, func() ([]float32, error) {
		return h.callAPI(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, config.MaxRetries, err)
	}

	if h.cache != nil {
		h.cache.Set(hash, vec)
	}
	return vec, nil
}

func (h *HFProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]interface{}{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return decodeVector(raw)
}

// decodeVector accepts both response shapes the endpoint is known to
// produce: a flat float array, or a batch-of-one nested array.
func decodeVector(raw []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}

	return nil, fmt.Errorf("unexpected embedding response format")
}

func (h *HFProvider) Dimension() int {
	return HFDimension
}

func (h *HFProvider) Provider() string {
	return ProviderHF
}

func (h *HFProvider) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates an OpenAI embedder.
func NewOpenAIProvider(apiKey string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrNoProviderEnabled)
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		model:      DefaultOpenAIModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if o.cache != nil {
		if vec, ok := o.cache.Get(hash); ok {
			return vec, nil
		}
	}

	config := DefaultRetryConfig()
	vec, err := retryWithBackoff(ctx, config, func() ([]float32, error) {
		return o.callAPI(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, config.MaxRetries, err)
	}

	if o.cache != nil {
		o.cache.Set(hash, vec)
	}
	return vec, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": text,
		"model": o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(raw))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) == 0 || len(apiResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return apiResp.Data[0].Embedding, nil
}

func (o *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider is a deterministic offline embedder used in tests and
// when no API token is configured.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates a local embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if l.cache != nil {
		if vec, ok := l.cache.Get(hash); ok {
			return vec, nil
		}
	}

	// Deterministic pseudo-embedding: repeated SHA-256 rounds over the
	// text fill the whole vector. Not semantically meaningful, but stable
	// and non-zero, which is all tests need.
	vector := make([]float32, LocalDimension)
	seed := sha256.Sum256([]byte(text))
	for i := 0; i < LocalDimension; i++ {
		if i%len(seed) == 0 && i > 0 {
			seed = sha256.Sum256(seed[:])
		}
		vector[i] = float32(seed[i%len(seed)])/255.0 - 0.5
	}

	if l.cache != nil {
		l.cache.Set(hash, vector)
	}
	return vector, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Close() error {
	return nil
}
