package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/filedrive/semdex/internal/clients/hf"
	"github.com/filedrive/semdex/internal/clients/openai"
	"github.com/filedrive/semdex/internal/embedder"
	"github.com/filedrive/semdex/internal/logger"
	"github.com/filedrive/semdex/internal/media"
	"github.com/filedrive/semdex/internal/mediatype"
	"github.com/filedrive/semdex/internal/stager"
	"github.com/filedrive/semdex/internal/storage"
	"github.com/filedrive/semdex/pkg/types"
)

// Stager stages a decrypted copy of the file for local processing.
type Stager interface {
	Stage(ctx context.Context, ref types.FileRef) (*stager.Staged, error)
}

// Invalidator drops cached query results for an owner after their index
// changes. The searcher's query cache implements it.
type Invalidator interface {
	InvalidateOwner(ownerID string)
}

// Deps wires the capabilities the indexing pipeline runs on.
type Deps struct {
	Stager      Stager
	Captioner   openai.Captioner
	Features    openai.FeatureExtractor
	Transcriber hf.Transcriber
	Frames      media.FrameExtractor
	Audio       media.AudioExtractor
	Embedder    embedder.Embedder
	Store       storage.Store
	Logger      *logger.Logger
	Workers     int         // concurrent files in IndexBatch (default: NumCPU)
	Invalidator Invalidator // optional
}

// Indexer coordinates the pipeline: stage -> classify -> extract -> embed -> upsert
type Indexer struct {
	deps  Deps
	locks *KeyedLock
}

// Statistics summarizes a batch indexing run
type Statistics struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	Duration      time.Duration
	ErrorMessages []string
}

// New creates a new Indexer instance
func New(deps Deps) *Indexer {
	if deps.Workers <= 0 {
		deps.Workers = runtime.NumCPU()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &Indexer{
		deps:  deps,
		locks: NewKeyedLock(),
	}
}

// derived is the per-file result of the media-class branch.
type derived struct {
	entryType        string
	fullText         string
	tokens           []string
	categories       []string
	sentiment        string
	summary          string
	textForEmbedding string
}

// Index runs the full pipeline for one file. A nil entry with a nil error
// means the file is not indexable (unsupported type, or nothing derivable);
// that is an outcome, not a failure. Capability failures degrade inside the
// media branch; only staging and persistence failures surface as errors.
// A successful run also refreshes the file's metadata row so retrieval
// can join the entry to a live record.
func (idx *Indexer) Index(ctx context.Context, ref types.FileRef) (*storage.Entry, error) {
	if ref.OwnerID == "" {
		return nil, types.ErrMissingOwnerID
	}
	if ref.FileKey == "" {
		return nil, types.ErrMissingFileKey
	}

	release := idx.locks.Acquire(ref.OwnerID + "\x00" + ref.FileKey)
	defer release()

	log := idx.deps.Logger.With("owner", ref.OwnerID, "fileKey", ref.FileKey)

	class := mediatype.ClassifyPath(ref.FileKey)
	if class == mediatype.Unsupported {
		log.Debug("unsupported media type, nothing to index")
		return nil, nil
	}

	staged, err := idx.deps.Stager.Stage(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", ref.FileKey, err)
	}
	defer staged.Release()

	var d derived
	switch class {
	case mediatype.Image:
		d = idx.deriveImage(ctx, log, staged.Path)
	case mediatype.Video:
		d = idx.deriveVideo(ctx, log, staged.Path)
	case mediatype.Audio:
		d = idx.deriveAudio(ctx, log, staged.Path)
	case mediatype.Document:
		d = idx.deriveDocument(ctx, log, staged.Path)
	}

	if len(d.tokens) == 0 {
		log.Info("no tokens derived, file not indexable", "type", d.entryType)
		return nil, nil
	}

	vector, err := idx.deps.Embedder.Embed(ctx, d.textForEmbedding)
	if err != nil || len(vector) == 0 {
		log.Warn("embedding unavailable, skipping persistence", "error", err)
		return nil, nil
	}

	entry := &storage.Entry{
		OwnerID:    ref.OwnerID,
		FileKey:    ref.FileKey,
		Tokens:     d.tokens,
		Categories: d.categories,
		Type:       d.entryType,
		Embedding:  vector,
		Sentiment:  d.sentiment,
		Summary:    d.summary,
		FullText:   d.fullText,
	}
	if err := idx.deps.Store.UpsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to persist entry for %s: %w", ref.FileKey, err)
	}
	if err := idx.deps.Store.UpsertFileRecord(ctx, fileRecord(ref, staged.Path)); err != nil {
		return nil, fmt.Errorf("failed to persist file record for %s: %w", ref.FileKey, err)
	}

	if idx.deps.Invalidator != nil {
		idx.deps.Invalidator.InvalidateOwner(ref.OwnerID)
	}

	log.Info("indexed file", "type", d.entryType, "tokens", len(d.tokens))
	return entry, nil
}

// fileRecord builds the live-metadata row the query join reads. Size and
// modification time come from the staged plaintext copy; a row written
// earlier by the file service is refreshed, not duplicated.
func fileRecord(ref types.FileRef, stagedPath string) *storage.FileRecord {
	record := &storage.FileRecord{
		OwnerID: ref.OwnerID,
		FileKey: ref.FileKey,
		Name:    filepath.Base(ref.FileKey),
	}
	if info, err := os.Stat(stagedPath); err == nil {
		record.SizeBytes = info.Size()
		record.ModifiedAt = info.ModTime()
	}
	return record
}

// Remove deletes the index entry for a file, typically after the backing
// file itself was deleted.
func (idx *Indexer) Remove(ctx context.Context, ref types.FileRef) error {
	release := idx.locks.Acquire(ref.OwnerID + "\x00" + ref.FileKey)
	defer release()

	if err := idx.deps.Store.DeleteEntry(ctx, ref.OwnerID, ref.FileKey); err != nil {
		return err
	}
	if idx.deps.Invalidator != nil {
		idx.deps.Invalidator.InvalidateOwner(ref.OwnerID)
	}
	return nil
}

// IndexBatch indexes files concurrently. Files are independent pipelines;
// one file's failure never aborts the rest.
func (idx *Indexer) IndexBatch(ctx context.Context, refs []types.FileRef) (*Statistics, error) {
	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	var (
		indexed int32
		skipped int32
		failed  int32
		mu      sync.Mutex
	)

	semaphore := make(chan struct{}, idx.deps.Workers)
	g, gctx := errgroup.WithContext(ctx)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			entry, err := idx.Index(gctx, ref)
			switch {
			case err != nil:
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", ref.FileKey, err))
				mu.Unlock()
			case entry == nil:
				atomic.AddInt32(&skipped, 1)
			default:
				atomic.AddInt32(&indexed, 1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.Duration = time.Since(startTime)
	return stats, nil
}

// deriveImage captions the image and extracts text features from the caption.
func (idx *Indexer) deriveImage(ctx context.Context, log *logger.Logger, imagePath string) derived {
	d := derived{entryType: storage.EntryTypeImage}

	caption := idx.captionImage(ctx, log, imagePath)
	d.fullText = caption

	feats := idx.extractFeatures(ctx, log, caption)
	d.applyFeatures(feats, []string{"image"})
	return d
}

// deriveVideo extracts one representative frame and runs the image branch on it.
func (idx *Indexer) deriveVideo(ctx context.Context, log *logger.Logger, videoPath string) derived {
	d := derived{entryType: storage.EntryTypeVideo}

	var caption string
	framePath, err := idx.deps.Frames.ExtractFrame(ctx, videoPath)
	if err != nil {
		log.Warn("frame extraction failed", "error", err)
	} else {
		defer removeBestEffort(log, framePath)
		caption = idx.captionImage(ctx, log, framePath)
	}
	d.fullText = caption

	feats := idx.extractFeatures(ctx, log, caption)
	d.applyFeatures(feats, []string{"video"})
	return d
}

// deriveAudio transcodes to WAV, transcribes, and features the transcript.
func (idx *Indexer) deriveAudio(ctx context.Context, log *logger.Logger, audioPath string) derived {
	d := derived{entryType: storage.EntryTypeAudio}

	var transcript string
	wavPath, err := idx.deps.Audio.ExtractAudio(ctx, audioPath)
	if err != nil {
		log.Warn("audio transcode failed", "error", err)
	} else {
		defer removeBestEffort(log, wavPath)
		transcript, err = idx.deps.Transcriber.Transcribe(ctx, wavPath)
		if err != nil {
			log.Warn("transcription failed", "error", err)
			transcript = ""
		}
	}
	d.fullText = transcript

	feats := idx.extractFeatures(ctx, log, transcript)
	d.applyFeatures(feats, []string{"audio"})
	return d
}

// deriveDocument extracts text, truncates, and features the truncated text.
// Documents get no default category: with no derivable features there is
// nothing meaningful to rank them by.
func (idx *Indexer) deriveDocument(ctx context.Context, log *logger.Logger, docPath string) derived {
	d := derived{entryType: storage.EntryTypeText}

	text, err := media.ExtractDocumentText(docPath)
	if err != nil {
		log.Warn("document text extraction failed", "error", err)
		text = ""
	}
	text = media.Truncate(text, media.MaxDocumentChars)
	d.fullText = text

	feats := idx.extractFeatures(ctx, log, text)
	d.applyFeatures(feats, nil)
	return d
}

func (idx *Indexer) captionImage(ctx context.Context, log *logger.Logger, imagePath string) string {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		log.Warn("failed to read image", "path", imagePath, "error", err)
		return ""
	}
	caption, err := idx.deps.Captioner.Caption(ctx, image)
	if err != nil {
		log.Warn("captioning failed", "error", err)
		return ""
	}
	return caption
}

// extractFeatures degrades to all-empty features on any failure.
func (idx *Indexer) extractFeatures(ctx context.Context, log *logger.Logger, text string) openai.Features {
	if strings.TrimSpace(text) == "" {
		return openai.Features{}
	}
	feats, err := idx.deps.Features.Extract(ctx, text)
	if err != nil {
		log.Warn("feature extraction failed", "error", err)
		return openai.Features{}
	}
	return feats
}

// applyFeatures fills the derived fields from the feature response, falling
// back to defaultCategories when none came back.
func (d *derived) applyFeatures(feats openai.Features, defaultCategories []string) {
	d.tokens = feats.Keywords
	d.categories = feats.Categories
	if len(d.categories) == 0 {
		d.categories = defaultCategories
	}
	d.sentiment = feats.Sentiment
	d.summary = feats.Summary
	d.textForEmbedding = strings.TrimSpace(d.fullText + " " + d.summary)
}

func removeBestEffort(log *logger.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove derived artifact", "path", path, "error", err)
	}
}
