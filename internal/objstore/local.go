package objstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalFS stores backup objects on the local filesystem under a root
// directory, which is spec's default backup destination.
type LocalFS struct {
	root string
}

// NewLocalFS returns a LocalFS backed by root. The directory is created if needed.
func NewLocalFS(root string) (*LocalFS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create backup root %q: %w", root, err)
	}
	return &LocalFS{root: root}, nil
}

func (l *LocalFS) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *LocalFS) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	dest := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write %q: %w", dest, err)
	}
	return nil
}

// PutPreservingMtime copies srcPath into key and sets the backup
// copy's mtime to match the original, per spec §6's backup layout
// contract ("original mtime preserved").
func (l *LocalFS) PutPreservingMtime(ctx context.Context, key, srcPath string) error {
	fi, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", srcPath, err)
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", srcPath, err)
	}
	defer f.Close()

	if err := l.Put(ctx, key, f, fi.Size()); err != nil {
		return err
	}
	return os.Chtimes(l.path(key), fi.ModTime(), fi.ModTime())
}
