// Package objstore provides an abstraction over the Safe Deletion
// Engine's backup destination: a local filesystem tree addressed by
// `<session_id>/<group_id>/<basename>` keys (spec §6). Backup is
// write-only — the engine never reads a backup back — so the
// interface only covers writing an object.
package objstore

import (
	"context"
	"io"
)

// ObjectStore is the interface a backup backend implements.
type ObjectStore interface {
	// Put stores a new object. r is read exactly once; size is the total byte count.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
}
