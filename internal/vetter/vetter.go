// Package vetter implements the Vetter: batch-classifies an import
// directory against the library index via the Duplicate Checker and
// produces a categorised VettingReport.
package vetter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/loungecrasher/music-tools/internal/audiotag"
	"github.com/loungecrasher/music-tools/internal/dedupe"
	"github.com/loungecrasher/music-tools/internal/errs"
	"github.com/loungecrasher/music-tools/internal/fingerprint"
	"github.com/loungecrasher/music-tools/internal/store"
)

const maxWorkers = 8

var supportedExt = map[string]bool{
	".mp3": true, ".flac": true, ".m4a": true, ".wav": true, ".ogg": true, ".opus": true,
}

// Entry is one classified candidate: its source path and, for
// Duplicate/Uncertain, the library file it matched and the confidence
// the Checker reported.
type Entry struct {
	Path       string
	Match      *store.LibraryFile
	Confidence float64
}

// Report summarizes one vet() invocation.
type Report struct {
	TotalFiles     int
	Threshold      float64
	Duration       time.Duration
	New            []Entry
	Duplicates     []Entry
	Uncertain      []Entry
	Errors         []string
	ErroredPaths   []string
	DuplicateCount int
	NewCount       int
	UncertainCount int
}

// Store is the subset of *store.Store the Vetter depends on.
type Store interface {
	RecordVettingRun(ctx context.Context, p store.RecordVettingRunParams) error
}

// Checker is the subset of *dedupe.Checker the Vetter depends on.
type Checker interface {
	Check(ctx context.Context, candidate dedupe.Candidate, threshold float64) (dedupe.MatchResult, error)
}

// Vetter drives the Checker over a directory of import candidates.
type Vetter struct {
	checker Checker
	db      Store
}

// New returns a Vetter backed by checker and db.
func New(checker Checker, db Store) *Vetter {
	return &Vetter{checker: checker, db: db}
}

type vetResult struct {
	path     string
	category string
	entry    Entry
	errMsg   string
}

// Vet walks importRoot (same traversal rules as the Indexer) and
// classifies every supported file as new, duplicate, or uncertain,
// then records a VettingRun row.
func (v *Vetter) Vet(ctx context.Context, importRoot string, threshold float64) (*Report, error) {
	start := time.Now()
	if threshold < 0 || threshold > 1 {
		return nil, errs.Validation(fmt.Sprintf("similarity threshold %v must be in [0,1]", threshold))
	}
	if _, err := os.Stat(importRoot); err != nil {
		return nil, errs.User(fmt.Sprintf("import root %q is not accessible", importRoot), err)
	}

	paths := walk(importRoot)

	workers := runtime.NumCPU()
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if workers < 1 {
		workers = 1
	}

	pathCh := make(chan string, workers*2)
	resultCh := make(chan vetResult, workers*2)

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
				resultCh <- v.classifyOne(ctx, path, threshold)
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

	report := &Report{Threshold: threshold}
	for res := range resultCh {
		if res.errMsg != "" {
			report.Errors = append(report.Errors, res.errMsg)
			report.ErroredPaths = append(report.ErroredPaths, res.path)
			continue
		}
		switch res.category {
		case "duplicate":
			report.Duplicates = append(report.Duplicates, res.entry)
		case "uncertain":
			report.Uncertain = append(report.Uncertain, res.entry)
		default:
			report.New = append(report.New, res.entry)
		}
	}

	report.DuplicateCount = len(report.Duplicates)
	report.NewCount = len(report.New)
	report.UncertainCount = len(report.Uncertain)
	report.TotalFiles = report.DuplicateCount + report.NewCount + report.UncertainCount + len(report.Errors)
	report.Duration = time.Since(start)

	if err := v.db.RecordVettingRun(ctx, store.RecordVettingRunParams{
		ImportRoot:          importRoot,
		TotalFiles:          report.TotalFiles,
		DuplicateCount:      report.DuplicateCount,
		NewCount:            report.NewCount,
		UncertainCount:      report.UncertainCount,
		SimilarityThreshold: threshold,
	}); err != nil {
		return nil, err
	}

	return report, nil
}

func (v *Vetter) classifyOne(ctx context.Context, path string, threshold float64) vetResult {
	props, err := audiotag.Read(path)
	if err != nil {
		return vetResult{path: path, errMsg: fmt.Sprintf("%s: %v", path, err)}
	}
	contentHash, err := fingerprint.ContentHash(path)
	if err != nil {
		return vetResult{path: path, errMsg: fmt.Sprintf("%s: %v", path, err)}
	}
	metaHash := fingerprint.MetadataHash(props.Artist, props.Title)

	result, err := v.checker.Check(ctx, dedupe.Candidate{
		ContentHash:  contentHash,
		MetadataHash: metaHash,
		Artist:       props.Artist,
		Title:        props.Title,
	}, threshold)
	if err != nil {
		return vetResult{path: path, errMsg: fmt.Sprintf("%s: %v", path, err)}
	}

	category := dedupe.Classify(result)
	return vetResult{
		path:     path,
		category: category,
		entry:    Entry{Path: path, Match: result.Match, Confidence: result.Confidence},
	}
}

// walk enumerates supported audio files under root, skipping dotfiles/
// dot-directories and symlinks that would escape root — identical
// traversal rules to internal/indexer.walk, duplicated rather than
// shared; spec keeps Indexer and Vetter as independent components (§2).
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

// Paths extracts the bare paths of a list of entries. Nothing in this
// module calls it; the CLI and WriteExports use Entry.Path directly.
func Paths(entries []Entry) []string {
	return lo.Map(entries, func(e Entry, _ int) string { return e.Path })
}
