// Package storage persists semantic index entries and the live file-metadata
// rows that search results join against.
//
// The schema has two tables. entries holds one row per (owner_id, file_key):
// the derived tokens and categories (JSON arrays in TEXT columns), the media
// type, the embedding as a little-endian float32 BLOB, and the sentiment,
// summary, and full text used to build result payloads. file_records mirrors
// the collaborator-owned file table: display name, size, modified time, a
// JSON metadata blob, and the trashed flag that removes a file from query
// results without touching its index entry.
//
// Re-indexing a file is a whole-row upsert; there is never more than one
// entry per key and no partial merge of old and new fields. UpsertEntry
// rejects rows with an empty embedding, since the ranker cannot score them.
//
// Two SQLite drivers are supported behind build tags: mattn/go-sqlite3 with
// the sqlite_cgo tag, and modernc.org/sqlite (pure Go) otherwise. Schema
// migrations are semver-versioned and applied on open.
package storage
