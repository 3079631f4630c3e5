package vetter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/loungecrasher/music-tools/internal/dedupe"
	"github.com/loungecrasher/music-tools/internal/store"
)

type fakeChecker struct {
	result dedupe.MatchResult
	err    error
}

func (f *fakeChecker) Check(ctx context.Context, candidate dedupe.Candidate, threshold float64) (dedupe.MatchResult, error) {
	return f.result, f.err
}

type fakeVetStore struct {
	recorded *store.RecordVettingRunParams
}

func (f *fakeVetStore) RecordVettingRun(ctx context.Context, p store.RecordVettingRunParams) error {
	f.recorded = &p
	return nil
}

func writeMinimalWAV(t *testing.T, path string) {
	t.Helper()
	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	putLE32(hdr[16:20], 16)
	putLE16(hdr[20:22], 1)
	putLE16(hdr[22:24], 2)
	putLE32(hdr[24:28], 44100)
	putLE32(hdr[28:32], 44100*4)
	putLE16(hdr[32:34], 4)
	putLE16(hdr[34:36], 16)
	copy(hdr[36:40], "data")
	putLE32(hdr[40:44], 0)
	putLE32(hdr[4:8], uint32(len(hdr)-8))
	if err := os.WriteFile(path, hdr, 0o644); err != nil {
		t.Fatal(err)
	}
}

func putLE16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestVetClassifiesAllAsNew(t *testing.T) {
	dir := t.TempDir()
	writeMinimalWAV(t, filepath.Join(dir, "a.wav"))
	writeMinimalWAV(t, filepath.Join(dir, "b.wav"))

	checker := &fakeChecker{result: dedupe.MatchResult{Kind: dedupe.MatchNew}}
	db := &fakeVetStore{}
	v := New(checker, db)

	report, err := v.Vet(context.Background(), dir, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if report.NewCount != 2 || report.DuplicateCount != 0 || report.UncertainCount != 0 {
		t.Fatalf("report = %+v", report)
	}
	if db.recorded == nil || db.recorded.TotalFiles != 2 {
		t.Fatalf("expected a vetting run recorded with 2 files, got %+v", db.recorded)
	}
}

func TestVetClassifiesDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeMinimalWAV(t, filepath.Join(dir, "a.wav"))

	match := store.LibraryFile{ID: 1, Path: "/library/a.wav"}
	checker := &fakeChecker{result: dedupe.MatchResult{Kind: dedupe.MatchDuplicate, Match: &match, Confidence: 1.0, MatchedBy: store.MatchedByContentHash}}
	db := &fakeVetStore{}
	v := New(checker, db)

	report, err := v.Vet(context.Background(), dir, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if report.DuplicateCount != 1 {
		t.Fatalf("DuplicateCount = %d, want 1", report.DuplicateCount)
	}
	if report.Duplicates[0].Match.Path != "/library/a.wav" {
		t.Fatalf("unexpected match: %+v", report.Duplicates[0])
	}
}

func TestVetRejectsInvalidThreshold(t *testing.T) {
	dir := t.TempDir()
	v := New(&fakeChecker{}, &fakeVetStore{})
	if _, err := v.Vet(context.Background(), dir, 1.5); err == nil {
		t.Fatal("expected an error for threshold out of [0,1]")
	}
}

func TestVetMissingRootIsUserError(t *testing.T) {
	v := New(&fakeChecker{}, &fakeVetStore{})
	if _, err := v.Vet(context.Background(), filepath.Join(t.TempDir(), "missing"), 0.8); err == nil {
		t.Fatal("expected an error for a missing import root")
	}
}

func TestWriteExportsAndParseBothForms(t *testing.T) {
	dir := t.TempDir()
	match := store.LibraryFile{ID: 1, Path: "/library/a.wav"}
	report := &Report{
		New:        []Entry{{Path: "/import/new.wav"}},
		Duplicates: []Entry{{Path: "/import/dup.wav", Match: &match, Confidence: 1.0}},
	}
	if err := report.WriteExports(dir, true, true, true); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "new_songs.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "/import/new.wav\n" {
		t.Fatalf("new_songs.txt = %q", data)
	}

	data, err = os.ReadFile(filepath.Join(dir, "duplicates.txt"))
	if err != nil {
		t.Fatal(err)
	}
	parsed := ParseExportLine(string(data[:len(data)-1]))
	if parsed.Path != "/import/dup.wav" || parsed.MatchPath != "/library/a.wav" || parsed.ConfidencePct != 100 {
		t.Fatalf("parsed = %+v", parsed)
	}

	bareParsed := ParseExportLine("/import/new.wav")
	if bareParsed.HasMatch || bareParsed.Path != "/import/new.wav" {
		t.Fatalf("bare form parsed incorrectly: %+v", bareParsed)
	}
}
