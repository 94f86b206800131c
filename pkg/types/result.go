package types

import "time"

// FileRef identifies a stored file for indexing. FileKey is the file's
// name, unique within the owner's namespace, and carries the extension
// used for media-type sniffing.
type FileRef struct {
	OwnerID string
	FileKey string
}

// Semantics is the semantic annotation attached to a resolved search hit.
type Semantics struct {
	Tokens     []string `json:"tokens"`
	Categories []string `json:"categories"`
	Sentiment  string   `json:"sentiment"`
	Summary    string   `json:"summary"`
	FullText   string   `json:"fullText"`
	Similarity float64  `json:"similarity"`
}

// FileResult is one search hit: live file metadata joined with the
// semantic fields that produced the match.
type FileResult struct {
	FileKey  string            `json:"fileKey"`
	Name     string            `json:"name"`
	Size     int64             `json:"size"`
	Modified time.Time         `json:"modified"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Semantic Semantics         `json:"semantic"`
}

// Folder is a folder-level search hit. Folder-level semantic indexing is
// not implemented; responses always carry an empty slice.
type Folder struct {
	Name string `json:"name"`
}

// SearchResponse is the exposed retrieval result shape.
type SearchResponse struct {
	Files   []FileResult `json:"files"`
	Folders []Folder     `json:"folders"`
}

// EmptySearchResponse returns a response with non-nil empty slices so the
// JSON encoding is always {"files":[],"folders":[]}.
func EmptySearchResponse() *SearchResponse {
	return &SearchResponse{
		Files:   []FileResult{},
		Folders: []Folder{},
	}
}

// Validate checks if the file result is well formed.
func (fr *FileResult) Validate() error {
	if fr.FileKey == "" {
		return ErrMissingFileKey
	}

	if fr.Semantic.Similarity < -1 || fr.Semantic.Similarity > 1 {
		return ErrInvalidSimilarity
	}

	return nil
}
