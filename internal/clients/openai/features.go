package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/filedrive/semdex/internal/logger"
)

// Features is the structured output of the text-feature capability.
// All fields may be empty; an empty Features is the degraded result for
// any malformed provider response.
type Features struct {
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories"`
	Sentiment  string   `json:"sentiment"`
	Summary    string   `json:"summary"`
}

// FeatureExtractor derives keywords, categories, sentiment, and a summary
// from a text blob.
type FeatureExtractor interface {
	Extract(ctx context.Context, text string) (Features, error)
}

const featurePrompt = `Given the following text, do the following:
1. Extract the 20 most important keywords or keyphrases.
2. Extract the 15 most relevant categories or topics.
3. Analyze the overall sentiment (positive, negative, neutral, or mixed).
4. Provide a concise summary (1-2 sentences).
Return as JSON:
{"keywords": [...], "categories": [...], "sentiment": "...", "summary": "..."}

Text:
%s`

type featureExtractor struct {
	client Client
	model  string
	log    *logger.Logger
}

// NewFeatureExtractor builds a FeatureExtractor on top of the
// chat-completions client.
func NewFeatureExtractor(client Client, model string, log *logger.Logger) FeatureExtractor {
	return &featureExtractor{
		client: client,
		model:  model,
		log:    log.With("service", "FeatureExtractor"),
	}
}

// Extract calls the model and parses its JSON answer. A response that
// cannot be parsed as the expected structure degrades to all-empty fields
// rather than failing; only the transport error path returns a non-nil
// error.
func (f *featureExtractor) Extract(ctx context.Context, text string) (Features, error) {
	output, err := f.client.Complete(ctx, f.model, fmt.Sprintf(featurePrompt, text))
	if err != nil {
		return Features{}, err
	}

	feats, ok := parseFeatures(output)
	if !ok {
		f.log.Warn("feature response was not parseable, degrading to empty features")
		return Features{}, nil
	}
	return feats, nil
}

// parseFeatures extracts the first JSON object embedded in the model
// output. Models tend to wrap the JSON in prose or code fences.
func parseFeatures(output string) (Features, bool) {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end <= start {
		return Features{}, false
	}

	var raw struct {
		Keywords   []string `json:"keywords"`
		Categories []string `json:"categories"`
		Sentiment  string   `json:"sentiment"`
		Summary    string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(output[start:end+1]), &raw); err != nil {
		return Features{}, false
	}

	return Features{
		Keywords:   trimAll(raw.Keywords),
		Categories: trimAll(raw.Categories),
		Sentiment:  strings.TrimSpace(raw.Sentiment),
		Summary:    strings.TrimSpace(raw.Summary),
	}, true
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
