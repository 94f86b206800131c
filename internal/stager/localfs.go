package stager

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/filedrive/semdex/pkg/types"
)

// LocalFS serves files from a directory tree laid out as
// <root>/<ownerID>/<fileKey>. It implements both Source and
// OwnerDirectory and is the default wiring when no external file store
// is plugged in.
type LocalFS struct {
	root string
}

// NewLocalFS creates a LocalFS rooted at root.
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: root}
}

// Open returns the file's content stream.
func (l *LocalFS) Open(_ context.Context, ref types.FileRef) (io.ReadCloser, error) {
	return os.Open(filepath.Join(l.root, ref.OwnerID, filepath.FromSlash(ref.FileKey)))
}

// ResolveOwner treats the owner's directory as the registration record.
func (l *LocalFS) ResolveOwner(_ context.Context, ownerID string) error {
	info, err := os.Stat(filepath.Join(l.root, ownerID))
	if err != nil || !info.IsDir() {
		return ErrOwnerNotFound
	}
	return nil
}
