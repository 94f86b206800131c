package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/filedrive/semdex/internal/embedder"
	"github.com/filedrive/semdex/internal/logger"
	"github.com/filedrive/semdex/internal/storage"
	"github.com/filedrive/semdex/pkg/types"
)

// Defaults for ranking parameters.
const (
	DefaultTopK      = 10
	DefaultThreshold = 0.55

	cacheSize = 1000
)

// Request contains parameters for a search operation
type Request struct {
	Query     string
	OwnerID   string
	TopK      int     // default DefaultTopK
	Threshold float64 // default DefaultThreshold
	UseCache  bool
}

// cacheKey scopes cached responses to the owner so invalidation can be
// per-owner.
type cacheKey struct {
	ownerID string
	digest  [32]byte
}

// Searcher ranks an owner's index entries against a query embedding and
// joins the survivors to live file metadata.
type Searcher struct {
	store    storage.Store
	embedder embedder.Embedder
	log      *logger.Logger
	cache    *lru.Cache[cacheKey, *types.SearchResponse]
}

// New creates a new Searcher instance
func New(store storage.Store, emb embedder.Embedder, log *logger.Logger) *Searcher {
	if log == nil {
		log = logger.NewNop()
	}
	cache, err := lru.New[cacheKey, *types.SearchResponse](cacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{
		store:    store,
		embedder: emb,
		log:      log,
		cache:    cache,
	}
}

// Search ranks the owner's entries against the query. Retrieval never
// fails outward for capability reasons: a blank query, an embedding
// failure, or a store read failure all produce an empty response. The
// only error is a structurally invalid request.
func (s *Searcher) Search(ctx context.Context, req Request) (*types.SearchResponse, error) {
	if req.OwnerID == "" {
		return nil, types.ErrMissingOwnerID
	}
	if strings.TrimSpace(req.Query) == "" {
		return types.EmptySearchResponse(), nil
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if req.Threshold <= 0 {
		req.Threshold = DefaultThreshold
	}

	key := s.requestKey(req)
	if req.UseCache {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	queryVector, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		s.log.Warn("query embedding failed", "owner", req.OwnerID, "error", err)
		return types.EmptySearchResponse(), nil
	}

	entries, err := s.store.ListEntriesByOwner(ctx, req.OwnerID)
	if err != nil {
		s.log.Warn("failed to read index entries", "owner", req.OwnerID, "error", err)
		return types.EmptySearchResponse(), nil
	}

	ranked := rank(entries, queryVector, req.Threshold, req.TopK)
	response := s.resolve(ctx, req.OwnerID, ranked)

	if req.UseCache {
		s.cache.Add(key, response)
	}
	return response, nil
}

// InvalidateOwner drops every cached response for the owner. Called after
// the owner's index changes.
func (s *Searcher) InvalidateOwner(ownerID string) {
	for _, key := range s.cache.Keys() {
		if key.ownerID == ownerID {
			s.cache.Remove(key)
		}
	}
}

type scored struct {
	entry *storage.Entry
	score float64
}

// rank scores every entry, keeps those at or above threshold, sorts stably
// by descending similarity (ties keep scan order), and truncates to topK.
func rank(entries []*storage.Entry, queryVector []float32, threshold float64, topK int) []scored {
	candidates := make([]scored, 0, len(entries))
	for _, entry := range entries {
		score := storage.CosineSimilarity(queryVector, entry.Embedding)
		if score >= threshold {
			candidates = append(candidates, scored{entry: entry, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// resolve joins ranked entries to live file records. Entries whose file is
// trashed or gone are dropped silently; rank order is preserved.
func (s *Searcher) resolve(ctx context.Context, ownerID string, ranked []scored) *types.SearchResponse {
	response := types.EmptySearchResponse()
	if len(ranked) == 0 {
		return response
	}

	fileKeys := make([]string, len(ranked))
	for i, c := range ranked {
		fileKeys[i] = c.entry.FileKey
	}

	records, err := s.store.GetFileRecords(ctx, ownerID, fileKeys)
	if err != nil {
		s.log.Warn("failed to resolve file records", "owner", ownerID, "error", err)
		return response
	}

	byKey := make(map[string]*storage.FileRecord, len(records))
	for _, record := range records {
		byKey[record.FileKey] = record
	}

	for _, c := range ranked {
		record, ok := byKey[c.entry.FileKey]
		if !ok {
			continue
		}
		response.Files = append(response.Files, types.FileResult{
			FileKey:  record.FileKey,
			Name:     record.Name,
			Size:     record.SizeBytes,
			Modified: record.ModifiedAt,
			Metadata: decodeMetadata(record.Metadata),
			Semantic: types.Semantics{
				Tokens:     c.entry.Tokens,
				Categories: c.entry.Categories,
				Sentiment:  c.entry.Sentiment,
				Summary:    c.entry.Summary,
				FullText:   c.entry.FullText,
				Similarity: c.score,
			},
		})
	}
	return response
}

func (s *Searcher) requestKey(req Request) cacheKey {
	digest := sha256.Sum256(fmt.Appendf(nil, "%s\x00%d\x00%f", req.Query, req.TopK, req.Threshold))
	return cacheKey{ownerID: req.OwnerID, digest: digest}
}

func decodeMetadata(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil
	}
	return metadata
}
