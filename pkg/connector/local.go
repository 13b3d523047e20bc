package connector

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const defaultUploadDir = "/app/uploads"

// LocalSource reads documents dropped into a directory on the host.
type LocalSource struct {
	dir string
}

func newLocalSource(cfg map[string]any) (Source, error) {
	return &LocalSource{dir: cfgString(cfg, "upload_dir", defaultUploadDir)}, nil
}

func (l *LocalSource) Connect(ctx context.Context) error {
	info, err := os.Stat(l.dir)
	if err != nil {
		return fmt.Errorf("failed to open upload directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("upload path %s is not a directory", l.dir)
	}
	return nil
}

// List enumerates the regular files in the upload directory. A missing
// directory lists as empty rather than failing, so a connector created
// before its first drop still syncs cleanly.
func (l *LocalSource) List(ctx context.Context) ([]Item, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Item{}, nil
		}
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		items = append(items, Item{
			ID:       entry.Name(),
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	return items, nil
}

// Fetch opens one file from the upload directory. The id is reduced to
// its base name so a crafted id cannot reach outside the directory.
func (l *LocalSource) Fetch(ctx context.Context, id string) (string, io.ReadCloser, error) {
	name := filepath.Base(id)
	f, err := os.Open(filepath.Join(l.dir, name))
	if err != nil {
		return "", nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return name, f, nil
}

func (l *LocalSource) Disconnect(ctx context.Context) error {
	return nil
}
