package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrEmptyEmbedding is returned when an entry is persisted without a vector
	ErrEmptyEmbedding = errors.New("entry has empty embedding")
)

// Store defines the interface for persisting and querying semantic index data
type Store interface {
	// Entry operations
	UpsertEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, ownerID, fileKey string) (*Entry, error)
	ListEntriesByOwner(ctx context.Context, ownerID string) ([]*Entry, error)
	DeleteEntry(ctx context.Context, ownerID, fileKey string) error

	// File record operations
	UpsertFileRecord(ctx context.Context, record *FileRecord) error
	GetFileRecords(ctx context.Context, ownerID string, fileKeys []string) ([]*FileRecord, error)

	// Database operations
	Close() error
}

// Entry is one indexed file's semantic row. Exactly one entry exists per
// (OwnerID, FileKey); re-indexing replaces the whole row.
type Entry struct {
	ID         int64
	OwnerID    string
	FileKey    string
	Tokens     []string
	Categories []string
	Type       string
	Embedding  []float32
	Sentiment  string
	Summary    string
	FullText   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FileRecord is the live file-metadata row joined into search results.
// Rows flagged Trashed never surface in queries.
type FileRecord struct {
	ID         int64
	OwnerID    string
	FileKey    string
	Name       string
	SizeBytes  int64
	ModifiedAt time.Time
	Metadata   string // JSON blob of display extras
	Trashed    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EntryTypes enumerate the media class stored on an entry.
const (
	EntryTypeImage = "image"
	EntryTypeVideo = "video"
	EntryTypeAudio = "audio"
	EntryTypeText  = "text"
)
