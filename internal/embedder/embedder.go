package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrUnsupportedModel  = errors.New("unsupported provider")
)

// Embedder converts a text blob into a fixed-dimension dense vector.
// Empty input is a failure, never a zero vector: callers map that failure
// to "no embedding", which blocks persistence.
type Embedder interface {
	// Embed generates the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for this provider.
	Dimension() int

	// Provider returns the provider name.
	Provider() string

	// Close releases any resources held by the embedder.
	Close() error
}

// ValidateText rejects empty or whitespace-only input.
func ValidateText(text string) error {
	for _, r := range text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return nil
		}
	}
	return ErrEmptyText
}

// ComputeHash computes the SHA-256 content hash used as the cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
