package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Entry operations

// UpsertEntry inserts or fully replaces the entry for (OwnerID, FileKey).
// Entries without an embedding are rejected: an entry the ranker cannot
// score is worse than no entry at all.
func (s *SQLiteStore) UpsertEntry(ctx context.Context, entry *Entry) error {
	if entry.OwnerID == "" || entry.FileKey == "" {
		return fmt.Errorf("entry requires owner_id and file_key")
	}
	if len(entry.Embedding) == 0 {
		return ErrEmptyEmbedding
	}

	tokens, err := marshalStrings(entry.Tokens)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	categories, err := marshalStrings(entry.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}

	query := `
		INSERT INTO entries (owner_id, file_key, tokens, categories, type, embedding,
		                     sentiment, summary, full_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, file_key) DO UPDATE SET
			tokens = excluded.tokens,
			categories = excluded.categories,
			type = excluded.type,
			embedding = excluded.embedding,
			sentiment = excluded.sentiment,
			summary = excluded.summary,
			full_text = excluded.full_text,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		entry.OwnerID, entry.FileKey, tokens, categories, entry.Type,
		serializeVector(entry.Embedding), entry.Sentiment, entry.Summary,
		entry.FullText, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	entry.UpdatedAt = now
	return nil
}

// GetEntry retrieves the entry for (ownerID, fileKey)
func (s *SQLiteStore) GetEntry(ctx context.Context, ownerID, fileKey string) (*Entry, error) {
	query := `
		SELECT id, owner_id, file_key, tokens, categories, type, embedding,
		       sentiment, summary, full_text, created_at, updated_at
		FROM entries
		WHERE owner_id = ? AND file_key = ?
	`
	row := s.db.QueryRowContext(ctx, query, ownerID, fileKey)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListEntriesByOwner returns every entry for the owner. The ranker scans
// all of them; there is no pagination at this layer.
func (s *SQLiteStore) ListEntriesByOwner(ctx context.Context, ownerID string) ([]*Entry, error) {
	query := `
		SELECT id, owner_id, file_key, tokens, categories, type, embedding,
		       sentiment, summary, full_text, created_at, updated_at
		FROM entries
		WHERE owner_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteEntry removes the entry for (ownerID, fileKey). Deleting a missing
// entry is not an error.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, ownerID, fileKey string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE owner_id = ? AND file_key = ?", ownerID, fileKey)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// File record operations

// UpsertFileRecord inserts or replaces the metadata row for (OwnerID, FileKey)
func (s *SQLiteStore) UpsertFileRecord(ctx context.Context, record *FileRecord) error {
	if record.OwnerID == "" || record.FileKey == "" {
		return fmt.Errorf("file record requires owner_id and file_key")
	}

	query := `
		INSERT INTO file_records (owner_id, file_key, name, size_bytes, modified_at,
		                          metadata, trashed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, file_key) DO UPDATE SET
			name = excluded.name,
			size_bytes = excluded.size_bytes,
			modified_at = excluded.modified_at,
			metadata = excluded.metadata,
			trashed = excluded.trashed,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		record.OwnerID, record.FileKey, record.Name, record.SizeBytes,
		record.ModifiedAt, record.Metadata, record.Trashed, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert file record: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	record.UpdatedAt = now
	return nil
}

// GetFileRecords returns the non-trashed records among fileKeys for the owner.
// Keys with no live record are simply absent from the result.
func (s *SQLiteStore) GetFileRecords(ctx context.Context, ownerID string, fileKeys []string) ([]*FileRecord, error) {
	if len(fileKeys) == 0 {
		return []*FileRecord{}, nil
	}

	query := `
		SELECT id, owner_id, file_key, name, size_bytes, modified_at,
		       metadata, trashed, created_at, updated_at
		FROM file_records
		WHERE owner_id = ? AND trashed = 0 AND file_key IN (`
	args := make([]interface{}, 0, len(fileKeys)+1)
	args = append(args, ownerID)
	for i, key := range fileKeys {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, key)
	}
	query += ")"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query file records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*FileRecord, 0, len(fileKeys))
	for rows.Next() {
		var record FileRecord
		var modifiedAt sql.NullTime
		var metadata sql.NullString
		if err := rows.Scan(
			&record.ID, &record.OwnerID, &record.FileKey, &record.Name,
			&record.SizeBytes, &modifiedAt, &metadata, &record.Trashed,
			&record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if modifiedAt.Valid {
			record.ModifiedAt = modifiedAt.Time
		}
		if metadata.Valid {
			record.Metadata = metadata.String
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// scanner covers *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	var entry Entry
	var tokens, categories string
	var embedding []byte
	var sentiment, summary, fullText sql.NullString

	err := row.Scan(
		&entry.ID, &entry.OwnerID, &entry.FileKey, &tokens, &categories,
		&entry.Type, &embedding, &sentiment, &summary, &fullText,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if entry.Tokens, err = unmarshalStrings(tokens); err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}
	if entry.Categories, err = unmarshalStrings(categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	entry.Embedding = deserializeVector(embedding)
	entry.Sentiment = sentiment.String
	entry.Summary = summary.String
	entry.FullText = fullText.String
	return &entry, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalStrings(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}
