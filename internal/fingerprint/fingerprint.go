// Package fingerprint computes the two content-addressable hashes the
// Duplicate Checker matches on: a metadata hash over trimmed, folded
// artist/title text, and a content hash over a bounded slice of file
// bytes. Both are pure functions per spec — no I/O beyond the single
// ContentHash file read.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/loungecrasher/music-tools/internal/errs"
)

// partialHashWindow is the number of bytes read from the start and
// from the end of a file for ContentHash; files at or below twice
// this size are hashed whole.
const partialHashWindow = 64 * 1024

// MetadataHash returns the MD5 of `lower(trim(artist))|lower(trim(title))`
// as 32 lowercase hex characters. A nil pointer is treated as absent
// and substituted with the empty string, matching spec §4.2.
func MetadataHash(artist, title *string) string {
	sum := md5.Sum([]byte(foldOrEmpty(artist) + "|" + foldOrEmpty(title)))
	return hex.EncodeToString(sum[:])
}

func foldOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*s))
}

// ContentHash returns the MD5 of the first 64KiB plus the last 64KiB
// of the file at path (or the whole file if it is ≤128KiB), as 32
// lowercase hex characters.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.File("open file for content hash", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", errs.File("stat file for content hash", err)
	}

	h := md5.New()
	size := info.Size()
	if size <= 2*partialHashWindow {
		if _, err := io.Copy(h, f); err != nil {
			return "", errs.File("read file for content hash", err)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	if _, err := io.CopyN(h, f, partialHashWindow); err != nil {
		return "", errs.File("read head for content hash", err)
	}
	if _, err := f.Seek(size-partialHashWindow, io.SeekStart); err != nil {
		return "", errs.File("seek to tail for content hash", err)
	}
	if _, err := io.CopyN(h, f, partialHashWindow); err != nil {
		return "", errs.File("read tail for content hash", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
