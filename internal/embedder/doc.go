// Package embedder generates dense vector embeddings for text using
// pluggable providers.
//
// The indexing pipeline embeds each file's textual representation; the
// retrieval path embeds the free-text query through the same interface,
// so the two sides always agree on provider and dimension.
//
// # Provider Selection
//
//  1. SEMDEX_EMBEDDING_PROVIDER set → use that provider (hf, openai, local)
//  2. HF_API_TOKEN set → Hugging Face feature-extraction endpoint
//  3. OPENAI_API_KEY set → OpenAI embeddings API
//  4. Otherwise → deterministic local provider (offline mode)
//
// # Failure Shape
//
// Empty or whitespace-only input returns ErrEmptyText; transient provider
// failures are retried with exponential backoff and surface as
// ErrProviderFailed once retries are exhausted. Callers treat any error
// as "no embedding": a file without an embedding is not persisted, and a
// query without an embedding yields an empty result set.
//
// # Caching
//
// Embeddings are cached in-memory by SHA-256 content hash with LRU
// eviction, so re-indexing unchanged content and repeated queries avoid
// provider round trips.
package embedder
