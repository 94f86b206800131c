// Package indexer orchestrates the semantic indexing pipeline.
//
// For each file the pipeline stages a decrypted local copy, classifies it by
// extension, derives a text representation per media class (image caption,
// video frame caption, audio transcript, or extracted document text), runs
// text-feature extraction over that representation, embeds the combined
// text, and upserts one row per (owner, fileKey).
//
// Failure semantics are deliberately lopsided. Capability failures inside a
// media branch degrade: a failed caption or transcript leaves the branch
// with empty text and the pipeline carries on. Files that end up with zero
// tokens, or whose embedding cannot be produced, are simply not persisted;
// both outcomes return (nil, nil). Only staging and persistence failures
// surface as errors.
//
// IndexBatch runs files as independent pipelines over an errgroup with a
// semaphore bound. Re-indexing the same key concurrently is serialized by a
// per-key lock; across processes the whole-row upsert makes the race
// last-write-wins.
package indexer
