package dedupe

import (
	"context"
	"testing"

	"github.com/loungecrasher/music-tools/internal/store"
)

type fakeStore struct {
	byContentHash  map[string][]store.LibraryFile
	byMetadataHash map[string][]store.LibraryFile
	byArtist       map[string][]store.LibraryFile
}

func (f *fakeStore) LookupByContentHash(ctx context.Context, hex string) ([]store.LibraryFile, error) {
	return f.byContentHash[hex], nil
}

func (f *fakeStore) LookupByMetadataHash(ctx context.Context, hex string) ([]store.LibraryFile, error) {
	return f.byMetadataHash[hex], nil
}

func (f *fakeStore) FindByArtist(ctx context.Context, lowerArtist string) ([]store.LibraryFile, error) {
	return f.byArtist[lowerArtist], nil
}

func strPtr(s string) *string { return &s }

func TestCheckExactContentHash(t *testing.T) {
	existing := store.LibraryFile{ID: 1, Path: "/music/a.flac", ContentHash: "hash1"}
	fs := &fakeStore{byContentHash: map[string][]store.LibraryFile{"hash1": {existing}}}
	c := New(fs)

	result, err := c.Check(context.Background(), Candidate{ContentHash: "hash1"}, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != MatchDuplicate || result.MatchedBy != store.MatchedByContentHash || result.Confidence != 1.0 {
		t.Fatalf("got %+v", result)
	}
}

func TestCheckExactMetadataHashRequiresArtistAndTitle(t *testing.T) {
	existing := store.LibraryFile{ID: 1, Path: "/music/a.flac", MetadataHash: "meta1"}
	fs := &fakeStore{byMetadataHash: map[string][]store.LibraryFile{"meta1": {existing}}}
	c := New(fs)

	// Missing title: tier 2 must not fire.
	result, err := c.Check(context.Background(), Candidate{MetadataHash: "meta1", Artist: strPtr("Artist")}, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != MatchNew {
		t.Fatalf("expected New without both artist and title, got %+v", result)
	}

	result, err = c.Check(context.Background(), Candidate{MetadataHash: "meta1", Artist: strPtr("Artist"), Title: strPtr("Title")}, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != MatchDuplicate || result.MatchedBy != store.MatchedByMetadataHash {
		t.Fatalf("got %+v", result)
	}
}

func TestCheckFuzzyMatchAboveThreshold(t *testing.T) {
	title := "Idioteque (Radio Edit)"
	existing := store.LibraryFile{ID: 1, Path: "/music/a.flac", Title: &title}
	fs := &fakeStore{byArtist: map[string][]store.LibraryFile{"radiohead": {existing}}}
	c := New(fs)

	candTitle := "Idioteque"
	result, err := c.Check(context.Background(), Candidate{Artist: strPtr("Radiohead"), Title: &candTitle}, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != MatchFuzzy {
		t.Fatalf("expected Fuzzy match, got %+v", result)
	}
}

func TestCheckFuzzyBelowThresholdReturnsNew(t *testing.T) {
	title := "Paranoid Android"
	existing := store.LibraryFile{ID: 1, Path: "/music/a.flac", Title: &title}
	fs := &fakeStore{byArtist: map[string][]store.LibraryFile{"radiohead": {existing}}}
	c := New(fs)

	candTitle := "Idioteque"
	result, err := c.Check(context.Background(), Candidate{Artist: strPtr("Radiohead"), Title: &candTitle}, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != MatchNew {
		t.Fatalf("expected New below threshold, got %+v", result)
	}
}

func TestCheckNoArtistSkipsFuzzyTier(t *testing.T) {
	fs := &fakeStore{}
	c := New(fs)
	result, err := c.Check(context.Background(), Candidate{}, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if result.Kind != MatchNew {
		t.Fatalf("expected New with no artist, got %+v", result)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		result MatchResult
		want   string
	}{
		{MatchResult{Kind: MatchDuplicate}, "duplicate"},
		{MatchResult{Kind: MatchFuzzy, Confidence: 0.96}, "duplicate"},
		{MatchResult{Kind: MatchFuzzy, Confidence: 0.85}, "uncertain"},
		{MatchResult{Kind: MatchNew}, "new"},
	}
	for _, tc := range cases {
		if got := Classify(tc.result); got != tc.want {
			t.Errorf("Classify(%+v) = %s, want %s", tc.result, got, tc.want)
		}
	}
}
