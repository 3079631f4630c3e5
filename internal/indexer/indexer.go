// Package indexer implements the Library Indexer: a resumable,
// incremental scanner that walks a directory tree, extracts audio
// metadata, fingerprints and scores each file, and upserts it into
// the Store.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/loungecrasher/music-tools/internal/audiotag"
	"github.com/loungecrasher/music-tools/internal/errs"
	"github.com/loungecrasher/music-tools/internal/fingerprint"
	"github.com/loungecrasher/music-tools/internal/quality"
	"github.com/loungecrasher/music-tools/internal/store"
)

// maxWorkers caps the worker pool at 8 even on machines with more
// logical cores, per spec §5.
const maxWorkers = 8

// ScanOptions configures one Scan call.
type ScanOptions struct {
	// Rescan is carried for the CLI's --rescan flag but is not consulted
	// by processOne: every file is read, hashed and scored whatever its
	// value. A file whose mtime and size are unchanged is reported
	// Unchanged by the Store's UpsertFile and counted Skipped; there is
	// no fast path that skips opening it.
	Rescan bool
	// DeactivateMissing runs the missing-file sweep after the walk:
	// every previously-active path under root not touched by this
	// scan is marked inactive. Spec's Open Question is resolved by
	// gating this behind an explicit opt-in (the CLI's `verify`
	// operation sets it; plain `index` does not).
	DeactivateMissing bool
}

// ScanReport summarizes one Scan invocation.
type ScanReport struct {
	Added        int
	Updated      int
	Skipped      int
	Errored      int
	Deactivated  int
	Duration     time.Duration
	Statistics   store.LibraryStatistics
	Errors       []string
	Warnings     []string
	ErroredPaths []string
}

// Store is the subset of *store.Store the Indexer depends on.
type Store interface {
	UpsertFile(ctx context.Context, p store.UpsertFileParams) (store.UpsertOutcome, *store.LibraryFile, error)
	Reactivate(ctx context.Context, path string) error
	Deactivate(ctx context.Context, path string) error
	ActivePathsUnder(ctx context.Context, root string) ([]string, error)
	Statistics(ctx context.Context, scanDuration time.Duration) (store.LibraryStatistics, error)
	LookupByMetadataHash(ctx context.Context, hex string) ([]store.LibraryFile, error)
	UpsertUpgradeCandidate(ctx context.Context, p store.UpsertUpgradeCandidateParams) error
}

// Indexer orchestrates scan → read → hash → score → upsert.
type Indexer struct {
	db Store
	// now is injected so tests can pin the quality scorer's recency
	// component; production callers leave it nil and get time.Now.
	now func() time.Time
}

// New returns an Indexer backed by db.
func New(db Store) *Indexer {
	return &Indexer{db: db, now: time.Now}
}

var supportedExt = map[string]bool{
	".mp3": true, ".flac": true, ".m4a": true, ".wav": true, ".ogg": true, ".opus": true,
}

// scanResult is produced by a worker and drained by the single
// writer goroutine, mirroring ingester.scan's pathCh/result pattern.
type scanResult struct {
	path    string
	outcome store.UpsertOutcome
	errMsg  string
}

// Scan walks root and indexes every supported audio file under it.
// root must be an absolute, readable directory; ctx may be cancelled
// to request early termination: the producer stops enqueueing paths,
// workers stop taking new ones, and results already produced are
// counted in the report.
func (idx *Indexer) Scan(ctx context.Context, root string, opts ScanOptions) (*ScanReport, error) {
	start := time.Now()
	if _, err := os.Stat(root); err != nil {
		return nil, errs.User(fmt.Sprintf("root %q is not accessible", root), err)
	}

	paths := walk(root)
	touched := make(map[string]bool, len(paths))
	var touchedMu sync.Mutex

	report := &ScanReport{}
	var added, updated, skipped, errored int64

	workers := runtime.NumCPU()
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if workers < 1 {
		workers = 1
	}

	pathCh := make(chan string, workers*2)
	resultCh := make(chan scanResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range pathCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				res := idx.processOne(ctx, path, opts)
				resultCh <- res
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	go func() {
		defer close(pathCh)
		for _, p := range paths {
			select {
			case <-ctx.Done():
				return
			case pathCh <- p:
			}
		}
	}()

	for res := range resultCh {
		touchedMu.Lock()
		touched[res.path] = true
		touchedMu.Unlock()

		switch {
		case res.errMsg != "":
			atomic.AddInt64(&errored, 1)
			report.Errors = append(report.Errors, res.errMsg)
			report.ErroredPaths = append(report.ErroredPaths, res.path)
		case res.outcome == store.OutcomeAdded:
			atomic.AddInt64(&added, 1)
		case res.outcome == store.OutcomeUpdated:
			atomic.AddInt64(&updated, 1)
		default:
			atomic.AddInt64(&skipped, 1)
		}
	}

	report.Added = int(added)
	report.Updated = int(updated)
	report.Skipped = int(skipped)
	report.Errored = int(errored)

	if opts.DeactivateMissing {
		deactivated, err := idx.sweepMissing(ctx, root, touched)
		if err != nil {
			return nil, err
		}
		report.Deactivated = deactivated
	}

	report.Duration = time.Since(start)
	stats, err := idx.db.Statistics(ctx, report.Duration)
	if err != nil {
		return nil, err
	}
	report.Statistics = stats
	return report, nil
}

// processOne runs the per-file pipeline described in spec §4.5.
// Per-file errors are recovered locally and reported as a FileError
// entry in the ScanReport, never propagated to the caller.
func (idx *Indexer) processOne(ctx context.Context, path string, opts ScanOptions) scanResult {
	fi, err := os.Stat(path)
	if err != nil {
		return scanResult{path: path, errMsg: fmt.Sprintf("%s: stat: %v", path, err)}
	}

	if !opts.Rescan {
		// No fast path: the file is still read, hashed and scored
		// below. upsert_file reports Unchanged when mtime+size match,
		// and that outcome is what gets counted as Skipped.
	}

	props, err := audiotag.Read(path)
	if err != nil {
		return scanResult{path: path, errMsg: fmt.Sprintf("%s: %v", path, err)}
	}

	metaHash := fingerprint.MetadataHash(props.Artist, props.Title)
	contentHash, err := fingerprint.ContentHash(path)
	if err != nil {
		return scanResult{path: path, errMsg: fmt.Sprintf("%s: %v", path, err)}
	}

	now := time.Now()
	if idx.now != nil {
		now = idx.now()
	}
	score := quality.Score(props, fi.ModTime(), now)

	var durationSecs *int
	if props.Duration > 0 {
		d := int(props.Duration.Seconds())
		durationSecs = &d
	}
	var bitrate, sampleRate, bitDepth *int
	if props.Bitrate > 0 {
		bitrate = &props.Bitrate
	}
	if props.SampleRate > 0 {
		sampleRate = &props.SampleRate
	}
	if props.BitDepth > 0 {
		bitDepth = &props.BitDepth
	}

	mode := store.BitrateModeUnknown
	switch props.BitrateMode {
	case audiotag.ModeVBR:
		mode = store.BitrateModeVBR
	case audiotag.ModeCBR:
		mode = store.BitrateModeCBR
	}

	params := store.UpsertFileParams{
		Path:         path,
		Filename:     filepath.Base(path),
		Artist:       props.Artist,
		Title:        props.Title,
		Album:        props.Album,
		Year:         props.Year,
		DurationSecs: durationSecs,
		Format:       props.Format,
		FileSize:     fi.Size(),
		MetadataHash: metaHash,
		ContentHash:  contentHash,
		QualityScore: score,
		BitrateKbps:  bitrate,
		SampleRateHz: sampleRate,
		BitDepth:     bitDepth,
		Channels:     nonZeroOr(props.Channels, 2),
		BitrateMode:  mode,
		IsLossless:   quality.IsLossless(props.Format),
		IsHiRes:      quality.IsHiRes(props.SampleRate, props.BitDepth),
		FileMtime:    fi.ModTime(),
	}

	outcome, saved, err := idx.db.UpsertFile(ctx, params)
	if err != nil {
		return scanResult{path: path, errMsg: fmt.Sprintf("%s: store: %v", path, err)}
	}

	if err := idx.db.Reactivate(ctx, path); err != nil {
		return scanResult{path: path, errMsg: fmt.Sprintf("%s: reactivate: %v", path, err)}
	}

	if outcome == store.OutcomeAdded && saved != nil {
		idx.suggestUpgradeIfAny(ctx, *saved)
	}

	return scanResult{path: path, outcome: outcome}
}

// suggestUpgradeIfAny records an UpgradeCandidate when a newly added
// file is out-scored by an existing sibling sharing its metadata
// hash. Failures here are soft: an upgrade suggestion is a bonus, not
// part of upsert_file's documented contract (SPEC_FULL §14).
func (idx *Indexer) suggestUpgradeIfAny(ctx context.Context, file store.LibraryFile) {
	siblings, err := idx.db.LookupByMetadataHash(ctx, file.MetadataHash)
	if err != nil {
		return
	}
	cand, ok := quality.SuggestUpgrade(file, siblings)
	if !ok {
		return
	}
	_ = idx.db.UpsertUpgradeCandidate(ctx, *cand)
}

// sweepMissing deactivates every active path under root that wasn't
// touched by this scan.
func (idx *Indexer) sweepMissing(ctx context.Context, root string, touched map[string]bool) (int, error) {
	activePaths, err := idx.db.ActivePathsUnder(ctx, root)
	if err != nil {
		return 0, err
	}
	missing := lo.Filter(activePaths, func(p string, _ int) bool { return !touched[p] })
	for _, p := range missing {
		if err := idx.db.Deactivate(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(missing), nil
}

// walk enumerates supported audio files under root, skipping dotfiles/
// dot-directories and symlinks that would escape root.
func walk(root string) []string {
	var paths []string
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil
	}

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil || !withinRoot(absRoot, target) {
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}
		if supportedExt[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}

func withinRoot(root, target string) bool {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, absTarget)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func nonZeroOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
