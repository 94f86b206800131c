// Package config loads service configuration from an optional YAML file
// with environment-variable overrides. Nothing here is a global: the
// resolved Config is passed into component constructors at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by Load.
const (
	EnvConfigPath        = "SEMDEX_CONFIG"
	EnvHTTPAddr          = "SEMDEX_HTTP_ADDR"
	EnvDBPath            = "SEMDEX_DB_PATH"
	EnvLogMode           = "SEMDEX_LOG_MODE"
	EnvInferenceBaseURL  = "SEMDEX_INFERENCE_BASE_URL"
	EnvInferenceAPIKey   = "SEMDEX_INFERENCE_API_KEY"
	EnvHFToken           = "HF_API_TOKEN"
	EnvEmbeddingProvider = "SEMDEX_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvFilesRoot         = "SEMDEX_FILES_ROOT"
	EnvTmpDir            = "SEMDEX_TMP_DIR"
)

// Defaults applied when neither file nor environment provides a value.
const (
	DefaultHTTPAddr      = ":8080"
	DefaultDBPath        = "semdex.db"
	DefaultLogMode       = "dev"
	DefaultFilesRoot     = "files"
	DefaultCaptionModel  = "meta-llama/Llama-4-Scout-17B-16E-Instruct"
	DefaultFeatureModel  = "Qwen/Qwen3-32B"
	DefaultCallTimeout   = Duration(30 * time.Second)
	DefaultTranscription = Duration(3 * time.Minute)
	DefaultTopK          = 10
	DefaultThreshold     = 0.55
	DefaultWorkers       = 4
	DefaultCacheSize     = 10000
)

// InferenceConfig configures the OpenAI-compatible chat-completions
// endpoint used for captioning and text-feature extraction.
type InferenceConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	CaptionModel string `yaml:"caption_model"`
	FeatureModel string `yaml:"feature_model"`
}

// HFConfig configures the Hugging Face inference endpoints used for
// transcription and (optionally) embeddings.
type HFConfig struct {
	Token            string `yaml:"token"`
	TranscriptionURL string `yaml:"transcription_url"`
	EmbeddingURL     string `yaml:"embedding_url"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider  string `yaml:"provider"` // hf, openai, local
	OpenAIKey string `yaml:"openai_key"`
	CacheSize int    `yaml:"cache_size"`
}

// SearchConfig holds the retrieval defaults.
type SearchConfig struct {
	TopK      int     `yaml:"top_k"`
	Threshold float64 `yaml:"threshold"`
}

// IndexingConfig holds the indexing pipeline settings.
type IndexingConfig struct {
	Workers              int      `yaml:"workers"`
	CallTimeout          Duration `yaml:"call_timeout"`
	TranscriptionTimeout Duration `yaml:"transcription_timeout"`
}

// Duration accepts "30s"-style strings in YAML, which yaml.v3 does not
// decode into time.Duration on its own.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return fmt.Errorf("invalid duration value")
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root service configuration.
type Config struct {
	HTTPAddr  string          `yaml:"http_addr"`
	DBPath    string          `yaml:"db_path"`
	LogMode   string          `yaml:"log_mode"`
	FilesRoot string          `yaml:"files_root"`
	TmpDir    string          `yaml:"tmp_dir"`
	Inference InferenceConfig `yaml:"inference"`
	HF        HFConfig        `yaml:"hf"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Search    SearchConfig    `yaml:"search"`
	Indexing  IndexingConfig  `yaml:"indexing"`
}

// Load reads the YAML file at path (or $SEMDEX_CONFIG when path is empty),
// applies environment overrides, and fills in defaults. A missing file is
// not an error; the environment alone is enough to run.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.HTTPAddr, EnvHTTPAddr)
	setString(&c.DBPath, EnvDBPath)
	setString(&c.LogMode, EnvLogMode)
	setString(&c.Inference.BaseURL, EnvInferenceBaseURL)
	setString(&c.Inference.APIKey, EnvInferenceAPIKey)
	setString(&c.HF.Token, EnvHFToken)
	setString(&c.Embedder.Provider, EnvEmbeddingProvider)
	setString(&c.Embedder.OpenAIKey, EnvOpenAIAPIKey)
	setString(&c.FilesRoot, EnvFilesRoot)
	setString(&c.TmpDir, EnvTmpDir)

	if v := os.Getenv("SEMDEX_SEARCH_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TopK = n
		}
	}
	if v := os.Getenv("SEMDEX_SEARCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.Threshold = f
		}
	}
	if v := os.Getenv("SEMDEX_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Indexing.Workers = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.LogMode == "" {
		c.LogMode = DefaultLogMode
	}
	if c.FilesRoot == "" {
		c.FilesRoot = DefaultFilesRoot
	}
	if c.Inference.CaptionModel == "" {
		c.Inference.CaptionModel = DefaultCaptionModel
	}
	if c.Inference.FeatureModel == "" {
		c.Inference.FeatureModel = DefaultFeatureModel
	}
	if c.Embedder.CacheSize <= 0 {
		c.Embedder.CacheSize = DefaultCacheSize
	}
	if c.Search.TopK <= 0 {
		c.Search.TopK = DefaultTopK
	}
	if c.Search.Threshold == 0 {
		c.Search.Threshold = DefaultThreshold
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = DefaultWorkers
	}
	if c.Indexing.CallTimeout <= 0 {
		c.Indexing.CallTimeout = DefaultCallTimeout
	}
	if c.Indexing.TranscriptionTimeout <= 0 {
		c.Indexing.TranscriptionTimeout = DefaultTranscription
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
