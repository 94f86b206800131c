package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrive/semdex/internal/clients/openai"
	"github.com/filedrive/semdex/internal/logger"
	"github.com/filedrive/semdex/internal/searcher"
	"github.com/filedrive/semdex/internal/stager"
	"github.com/filedrive/semdex/internal/storage"
	"github.com/filedrive/semdex/pkg/types"
)

// fakeStager materializes canned file content under a temp dir.
type fakeStager struct {
	dir     string
	content map[string][]byte
	err     error
}

func (f *fakeStager) Stage(_ context.Context, ref types.FileRef) (*stager.Staged, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.content[ref.FileKey]
	if !ok {
		return nil, errors.New("no such file")
	}
	path := filepath.Join(f.dir, filepath.Base(ref.FileKey))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return &stager.Staged{Path: path}, nil
}

type fakeCaptioner struct {
	caption string
	err     error
	calls   atomic.Int32
}

func (f *fakeCaptioner) Caption(context.Context, []byte) (string, error) {
	f.calls.Add(1)
	return f.caption, f.err
}

type fakeFeatures struct {
	mu       sync.Mutex
	features openai.Features
	err      error
	inputs   []string
}

func (f *fakeFeatures) Extract(_ context.Context, text string) (openai.Features, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, text)
	f.mu.Unlock()
	return f.features, f.err
}

type fakeTranscriber struct {
	transcript string
	err        error
	paths      []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	f.paths = append(f.paths, audioPath)
	return f.transcript, f.err
}

// fakeFrames writes a stand-in frame next to the video.
type fakeFrames struct {
	err   error
	paths []string
}

func (f *fakeFrames) ExtractFrame(_ context.Context, videoPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := videoPath + "_frame.jpg"
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o600); err != nil {
		return "", err
	}
	f.paths = append(f.paths, path)
	return path, nil
}

type fakeAudio struct {
	err error
}

func (f *fakeAudio) ExtractAudio(_ context.Context, mediaPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := mediaPath + ".wav"
	if err := os.WriteFile(path, []byte("wav-bytes"), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

type fakeEmbedder struct {
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1, 2}, nil
}

func (f *fakeEmbedder) Dimension() int   { return 3 }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Close() error     { return nil }

type testHarness struct {
	indexer     *Indexer
	store       *storage.SQLiteStore
	stager      *fakeStager
	captioner   *fakeCaptioner
	features    *fakeFeatures
	transcriber *fakeTranscriber
	frames      *fakeFrames
	embedder    *fakeEmbedder
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &testHarness{
		store:  store,
		stager: &fakeStager{dir: t.TempDir(), content: map[string][]byte{}},
		captioner: &fakeCaptioner{
			caption: "A dog playing fetch in a park",
		},
		features: &fakeFeatures{
			features: openai.Features{
				Keywords:   []string{"dog", "park", "fetch"},
				Categories: []string{"animals", "outdoors"},
				Sentiment:  "positive",
				Summary:    "A dog plays fetch",
			},
		},
		transcriber: &fakeTranscriber{transcript: "welcome to the weekly podcast"},
		frames:      &fakeFrames{},
		embedder:    &fakeEmbedder{},
	}
	h.indexer = New(Deps{
		Stager:      h.stager,
		Captioner:   h.captioner,
		Features:    h.features,
		Transcriber: h.transcriber,
		Frames:      h.frames,
		Audio:       &fakeAudio{},
		Embedder:    h.embedder,
		Store:       store,
		Logger:      logger.NewNop(),
		Workers:     2,
	})
	return h
}

func TestIndex_Image(t *testing.T) {
	h := newHarness(t)
	h.stager.content["photos/dog.jpg"] = []byte("jpeg-bytes")

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "photos/dog.jpg"})
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, storage.EntryTypeImage, entry.Type)
	assert.Equal(t, []string{"dog", "park", "fetch"}, entry.Tokens)
	assert.Equal(t, []string{"animals", "outdoors"}, entry.Categories)
	assert.Equal(t, "A dog playing fetch in a park", entry.FullText)
	assert.Equal(t, "positive", entry.Sentiment)

	got, err := h.store.GetEntry(context.Background(), "alice", "photos/dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, entry.Tokens, got.Tokens)
	assert.NotEmpty(t, got.Embedding)
}

func TestIndex_ImageDefaultCategory(t *testing.T) {
	h := newHarness(t)
	h.stager.content["x.png"] = []byte("png-bytes")
	h.features.features.Categories = nil

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "x.png"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"image"}, entry.Categories)
}

func TestIndex_EmbeddingCombinesTextAndSummary(t *testing.T) {
	h := newHarness(t)
	h.stager.content["x.png"] = []byte("png-bytes")

	_, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "x.png"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.embedder.calls.Load())
	// Features ran on the caption, not the combined text.
	require.Len(t, h.features.inputs, 1)
	assert.Equal(t, "A dog playing fetch in a park", h.features.inputs[0])
}

func TestIndex_UnsupportedExtension(t *testing.T) {
	h := newHarness(t)
	h.stager.content["archive.zip"] = []byte("zip-bytes")

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "archive.zip"})
	require.NoError(t, err)
	assert.Nil(t, entry)

	_, err = h.store.GetEntry(context.Background(), "alice", "archive.zip")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndex_NoTokensNotPersisted(t *testing.T) {
	h := newHarness(t)
	h.stager.content["x.jpg"] = []byte("jpeg-bytes")
	h.features.features = openai.Features{}

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "x.jpg"})
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Zero(t, h.embedder.calls.Load())

	_, err = h.store.GetEntry(context.Background(), "alice", "x.jpg")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndex_CaptionFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.stager.content["x.jpg"] = []byte("jpeg-bytes")
	h.captioner.err = errors.New("model overloaded")

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "x.jpg"})
	require.NoError(t, err)
	assert.Nil(t, entry)
	// Empty caption means features are never consulted.
	assert.Empty(t, h.features.inputs)
}

func TestIndex_EmbedFailureSkipsPersistence(t *testing.T) {
	h := newHarness(t)
	h.stager.content["x.jpg"] = []byte("jpeg-bytes")
	h.embedder.err = errors.New("provider down")

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "x.jpg"})
	require.NoError(t, err)
	assert.Nil(t, entry)

	_, err = h.store.GetEntry(context.Background(), "alice", "x.jpg")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndex_StageFailureIsAnError(t *testing.T) {
	h := newHarness(t)
	h.stager.err = stager.ErrOwnerNotFound

	_, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "ghost", FileKey: "x.jpg"})
	assert.ErrorIs(t, err, stager.ErrOwnerNotFound)
}

func TestIndex_Video(t *testing.T) {
	h := newHarness(t)
	h.stager.content["clip.mp4"] = []byte("mp4-bytes")
	h.features.features.Categories = nil

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "clip.mp4"})
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, storage.EntryTypeVideo, entry.Type)
	assert.Equal(t, []string{"video"}, entry.Categories)
	assert.Equal(t, int32(1), h.captioner.calls.Load())

	// Extracted frame is cleaned up after captioning.
	require.Len(t, h.frames.paths, 1)
	_, statErr := os.Stat(h.frames.paths[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestIndex_VideoFrameFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.stager.content["clip.mp4"] = []byte("mp4-bytes")
	h.frames.err = errors.New("ffmpeg exploded")

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "clip.mp4"})
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Zero(t, h.captioner.calls.Load())
}

func TestIndex_Audio(t *testing.T) {
	h := newHarness(t)
	h.stager.content["talk.mp3"] = []byte("mp3-bytes")
	h.features.features.Categories = nil

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "talk.mp3"})
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, storage.EntryTypeAudio, entry.Type)
	assert.Equal(t, []string{"audio"}, entry.Categories)
	assert.Equal(t, "welcome to the weekly podcast", entry.FullText)

	// Transcriber receives the transcoded wav, not the original.
	require.Len(t, h.transcriber.paths, 1)
	assert.True(t, strings.HasSuffix(h.transcriber.paths[0], ".wav"))
}

func TestIndex_DocumentTruncation(t *testing.T) {
	h := newHarness(t)
	longText := strings.Repeat("lorem ipsum dolor sit amet ", 1000) // ~27k chars
	h.stager.content["notes.txt"] = []byte(longText)

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "notes.txt"})
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, storage.EntryTypeText, entry.Type)
	assert.LessOrEqual(t, len(entry.FullText), 20000)
	require.Len(t, h.features.inputs, 1)
	assert.LessOrEqual(t, len(h.features.inputs[0]), 20000)
}

func TestIndex_DocumentNoDefaultCategory(t *testing.T) {
	h := newHarness(t)
	h.stager.content["notes.txt"] = []byte("some notes about the quarterly budget")
	h.features.features.Categories = nil

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "notes.txt"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Empty(t, entry.Categories)
}

func TestIndex_ReindexReplaces(t *testing.T) {
	h := newHarness(t)
	h.stager.content["x.jpg"] = []byte("jpeg-bytes")
	ref := types.FileRef{OwnerID: "alice", FileKey: "x.jpg"}

	_, err := h.indexer.Index(context.Background(), ref)
	require.NoError(t, err)

	h.features.features.Keywords = []string{"cat"}
	h.features.features.Categories = []string{"pets"}
	_, err = h.indexer.Index(context.Background(), ref)
	require.NoError(t, err)

	got, err := h.store.GetEntry(context.Background(), "alice", "x.jpg")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, got.Tokens)
	assert.Equal(t, []string{"pets"}, got.Categories)
}

func TestIndex_WritesFileRecord(t *testing.T) {
	h := newHarness(t)
	h.stager.content["photos/dog.jpg"] = []byte("jpeg-bytes")

	_, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "photos/dog.jpg"})
	require.NoError(t, err)

	records, err := h.store.GetFileRecords(context.Background(), "alice", []string{"photos/dog.jpg"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "dog.jpg", records[0].Name)
	assert.Equal(t, int64(len("jpeg-bytes")), records[0].SizeBytes)
	assert.False(t, records[0].Trashed)
}

// An indexed file must come back through retrieval without any other
// writer touching the metadata table.
func TestIndex_ThenSearch(t *testing.T) {
	h := newHarness(t)
	h.stager.content["photos/dog.jpg"] = []byte("jpeg-bytes")

	entry, err := h.indexer.Index(context.Background(), types.FileRef{OwnerID: "alice", FileKey: "photos/dog.jpg"})
	require.NoError(t, err)
	require.NotNil(t, entry)

	search := searcher.New(h.store, h.embedder, logger.NewNop())
	resp, err := search.Search(context.Background(), searcher.Request{
		Query:   "A dog playing fetch in a park A dog plays fetch",
		OwnerID: "alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Files)
	assert.Equal(t, "photos/dog.jpg", resp.Files[0].FileKey)
	assert.Equal(t, "dog.jpg", resp.Files[0].Name)
	assert.Equal(t, []string{"dog", "park", "fetch"}, resp.Files[0].Semantic.Tokens)
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	h.stager.content["x.jpg"] = []byte("jpeg-bytes")
	ref := types.FileRef{OwnerID: "alice", FileKey: "x.jpg"}

	_, err := h.indexer.Index(context.Background(), ref)
	require.NoError(t, err)
	require.NoError(t, h.indexer.Remove(context.Background(), ref))

	_, err = h.store.GetEntry(context.Background(), "alice", "x.jpg")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndexBatch(t *testing.T) {
	h := newHarness(t)
	h.stager.content["a.jpg"] = []byte("jpeg-bytes")
	h.stager.content["b.png"] = []byte("png-bytes")
	h.stager.content["skip.zip"] = []byte("zip-bytes")

	stats, err := h.indexer.IndexBatch(context.Background(), []types.FileRef{
		{OwnerID: "alice", FileKey: "a.jpg"},
		{OwnerID: "alice", FileKey: "b.png"},
		{OwnerID: "alice", FileKey: "skip.zip"},
		{OwnerID: "alice", FileKey: "missing.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Len(t, stats.ErrorMessages, 1)
}

func TestKeyedLock_SerializesSameKey(t *testing.T) {
	locks := NewKeyedLock()

	release := locks.Acquire("k")
	acquired := make(chan struct{})
	go func() {
		r := locks.Acquire("k")
		r()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while held")
	default:
	}

	release()
	<-acquired
}

func TestKeyedLock_IndependentKeys(t *testing.T) {
	locks := NewKeyedLock()

	r1 := locks.Acquire("a")
	r2 := locks.Acquire("b") // must not block
	r2()
	r1()
}
