// Package dedupe implements the three-tier Duplicate Checker: exact
// content hash, exact metadata hash, then fuzzy title similarity
// within the same artist.
package dedupe

import (
	"context"
	"strings"

	"github.com/loungecrasher/music-tools/internal/store"
)

// MatchKind discriminates the variants of MatchResult.
type MatchKind string

const (
	MatchDuplicate MatchKind = "duplicate"
	MatchFuzzy     MatchKind = "fuzzy"
	MatchNew       MatchKind = "new"
)

// MatchResult is the outcome of Check: a Duplicate/Fuzzy match with
// its confidence and the tier that produced it, or New.
type MatchResult struct {
	Kind       MatchKind
	Match      *store.LibraryFile
	Confidence float64
	MatchedBy  store.MatchedBy
}

// Candidate is the subset of a file's facts the checker needs: hashes
// plus the trimmed artist/title used for tiers 2 and 3.
type Candidate struct {
	ContentHash  string
	MetadataHash string
	Artist       *string
	Title        *string
}

// Store is the subset of *store.Store the checker depends on, kept as
// an interface so tests can substitute a fake.
type Store interface {
	LookupByContentHash(ctx context.Context, hex string) ([]store.LibraryFile, error)
	LookupByMetadataHash(ctx context.Context, hex string) ([]store.LibraryFile, error)
	FindByArtist(ctx context.Context, lowerArtist string) ([]store.LibraryFile, error)
}

// Checker runs the three-tier match against a Store.
type Checker struct {
	store Store
}

// New returns a Checker backed by s.
func New(s Store) *Checker {
	return &Checker{store: s}
}

// Check classifies candidate against the library, short-circuiting
// tier 1 → tier 2 → tier 3 in order. threshold is the minimum
// similarity (inclusive) for a Fuzzy match to be reported instead of
// New.
func (c *Checker) Check(ctx context.Context, candidate Candidate, threshold float64) (MatchResult, error) {
	if candidate.ContentHash != "" {
		matches, err := c.store.LookupByContentHash(ctx, candidate.ContentHash)
		if err != nil {
			return MatchResult{}, err
		}
		if best := pickBest(matches); best != nil {
			return MatchResult{Kind: MatchDuplicate, Match: best, Confidence: 1.0, MatchedBy: store.MatchedByContentHash}, nil
		}
	}

	artist := trimmed(candidate.Artist)
	title := trimmed(candidate.Title)

	if artist != "" && title != "" && candidate.MetadataHash != "" {
		matches, err := c.store.LookupByMetadataHash(ctx, candidate.MetadataHash)
		if err != nil {
			return MatchResult{}, err
		}
		if best := pickBest(matches); best != nil {
			return MatchResult{Kind: MatchDuplicate, Match: best, Confidence: 1.0, MatchedBy: store.MatchedByMetadataHash}, nil
		}
	}

	if artist == "" {
		return MatchResult{Kind: MatchNew}, nil
	}

	siblings, err := c.store.FindByArtist(ctx, strings.ToLower(artist))
	if err != nil {
		return MatchResult{}, err
	}

	normalizedTitle := normalize(title)
	var best *store.LibraryFile
	var bestScore float64
	for i := range siblings {
		lib := siblings[i]
		if lib.Title == nil {
			continue
		}
		s := similarity(normalizedTitle, normalize(*lib.Title))
		if s > bestScore || (s == bestScore && best != nil && isBetter(lib, *best)) {
			bestScore = s
			libCopy := lib
			best = &libCopy
		}
	}

	if best != nil && bestScore >= threshold {
		return MatchResult{Kind: MatchFuzzy, Match: best, Confidence: bestScore, MatchedBy: store.MatchedByFuzzy}, nil
	}
	return MatchResult{Kind: MatchNew}, nil
}

// pickBest resolves multiple exact-tier matches to one, per spec's
// edge-case rule: highest quality_score, tie-broken by larger
// file_size then lower id.
func pickBest(matches []store.LibraryFile) *store.LibraryFile {
	if len(matches) == 0 {
		return nil
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if isBetter(m, best) {
			best = m
		}
	}
	return &best
}

func isBetter(candidate, current store.LibraryFile) bool {
	if candidate.QualityScore != current.QualityScore {
		return candidate.QualityScore > current.QualityScore
	}
	if candidate.FileSize != current.FileSize {
		return candidate.FileSize > current.FileSize
	}
	return candidate.ID < current.ID
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// Confidence thresholds for interpreting a Fuzzy confidence score, per
// spec §4.6: the Vetter uses these to categorise a candidate, not the
// Checker itself.
const (
	CertainThreshold = 0.95
)

// Classify maps a MatchResult to the Vetter's three-way category.
func Classify(result MatchResult) string {
	switch result.Kind {
	case MatchDuplicate:
		return "duplicate"
	case MatchFuzzy:
		if result.Confidence >= CertainThreshold {
			return "duplicate"
		}
		return "uncertain"
	default:
		return "new"
	}
}
