package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds embedder configuration.
type Config struct {
	Provider     string
	HFToken      string
	HFURL        string
	OpenAIAPIKey string
	Timeout      time.Duration
	CacheSize    int
}

// New creates an embedder with explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderHF:
		return NewHFProvider(cfg.HFToken, cfg.HFURL, cfg.Timeout, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	case "":
		return autoDetect(cfg, cache)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. SEMDEX_EMBEDDING_PROVIDER (hf, openai, local)
//  2. First available API token: HF_API_TOKEN, OPENAI_API_KEY
//  3. Local provider as the offline fallback
func NewFromEnv() (Embedder, error) {
	return New(Config{
		Provider:     os.Getenv("SEMDEX_EMBEDDING_PROVIDER"),
		HFToken:      os.Getenv("HF_API_TOKEN"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		CacheSize:    10000,
	})
}

func autoDetect(cfg Config, cache *Cache) (Embedder, error) {
	if cfg.HFToken != "" {
		return NewHFProvider(cfg.HFToken, cfg.HFURL, cfg.Timeout, cache)
	}
	if cfg.OpenAIAPIKey != "" {
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cache)
	}
	return NewLocalProvider(cache)
}
