package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileGateway keeps input.json, output.json, error.json and error-fatal.json
// in one directory.
type FileGateway struct {
	*documentGateway
	dir string
}

// NewFileGateway returns a gateway over dir, creating it when missing.
func NewFileGateway(dir, field string) (*FileGateway, error) {
	if dir == "" {
		dir = "."
	}
	if err := ensureDir(dir); err != nil {
		return nil, wrap("file", "open", err)
	}
	return &FileGateway{
		documentGateway: newDocumentGateway("file", fileBlobs{dir: dir}, field),
		dir:             dir,
	}, nil
}

// Path returns the on-disk path of a collection document.
func (g *FileGateway) Path(collection string) string {
	return filepath.Join(g.dir, documentName(collection))
}

type fileBlobs struct {
	dir string
}

func (b fileBlobs) Get(_ context.Context, name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(b.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	return data, true, nil
}

// Put replaces the document atomically via a temp file and rename.
func (b fileBlobs) Put(_ context.Context, name string, data []byte) error {
	tmp, err := os.CreateTemp(b.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(b.dir, name)); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
