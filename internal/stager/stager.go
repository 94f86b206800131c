// Package stager produces local plaintext copies of stored files for the
// indexing pipeline. The encrypted store and its decryption mechanism are
// collaborators behind the Source interface; the stager only streams bytes
// to a uniquely named temporary file and guarantees cleanup.
package stager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/filedrive/semdex/internal/logger"
	"github.com/filedrive/semdex/pkg/types"
)

var (
	// ErrOwnerNotFound is returned when the file's owning user cannot be resolved.
	ErrOwnerNotFound = errors.New("owner not found")
	// ErrEmptyArtifact is returned when decryption produced zero bytes.
	ErrEmptyArtifact = errors.New("staged artifact is empty")
)

// Source reconstructs the decrypted content of a stored file as a stream.
type Source interface {
	Open(ctx context.Context, ref types.FileRef) (io.ReadCloser, error)
}

// OwnerDirectory resolves a file owner's identity. Implementations return
// ErrOwnerNotFound (or wrap it) when the owner does not exist.
type OwnerDirectory interface {
	ResolveOwner(ctx context.Context, ownerID string) error
}

// Staged is a local plaintext copy of a stored file. Release removes the
// file; callers defer it immediately after a successful Stage.
type Staged struct {
	Path string

	log *logger.Logger
}

// Release removes the staged artifact. Removal failure is logged but never
// escalated; the artifact must not be relied on past the caller's own
// processing step either way.
func (s *Staged) Release() {
	if s == nil || s.Path == "" {
		return
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) && s.log != nil {
		s.log.Warn("failed to remove staged artifact", "path", s.Path, "error", err)
	}
}

// Stager stages decrypted files into the local filesystem.
type Stager struct {
	source Source
	owners OwnerDirectory
	tmpDir string
	log    *logger.Logger
}

// New creates a Stager. tmpDir may be empty, in which case os.TempDir()
// is used.
func New(source Source, owners OwnerDirectory, tmpDir string, log *logger.Logger) *Stager {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Stager{
		source: source,
		owners: owners,
		tmpDir: tmpDir,
		log:    log.With("service", "Stager"),
	}
}

// Stage resolves the file's owner, streams the decrypted content into a
// collision-free temporary file (extension preserved for downstream media
// sniffing), and validates the result is non-empty. On any failure the
// partial artifact is removed before returning.
func (s *Stager) Stage(ctx context.Context, ref types.FileRef) (*Staged, error) {
	if err := s.owners.ResolveOwner(ctx, ref.OwnerID); err != nil {
		return nil, fmt.Errorf("%w: owner %s", ErrOwnerNotFound, ref.OwnerID)
	}

	src, err := s.source.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open decrypted source for %s: %w", ref.FileKey, err)
	}
	defer func() { _ = src.Close() }()

	name := fmt.Sprintf("semdex-stage-%s%s", uuid.NewString(), filepath.Ext(ref.FileKey))
	path := filepath.Join(s.tmpDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	written, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if copyErr != nil {
			return nil, fmt.Errorf("stream decrypted content: %w", copyErr)
		}
		return nil, fmt.Errorf("finish staging file: %w", closeErr)
	}

	if written == 0 {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: %s", ErrEmptyArtifact, ref.FileKey)
	}

	s.log.Debug("staged decrypted file", "fileKey", ref.FileKey, "path", path, "bytes", written)
	return &Staged{Path: path, log: s.log}, nil
}
