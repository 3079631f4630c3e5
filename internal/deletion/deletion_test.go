package deletion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/loungecrasher/music-tools/internal/objstore"
	"github.com/loungecrasher/music-tools/internal/store"
)

type fakeStore struct {
	byPath        map[string]store.LibraryFile
	byMetaHash    map[string][]store.LibraryFile
	deactivated   map[string]bool
	events        []store.RecordDedupEventParams
	activeSession string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byPath:      map[string]store.LibraryFile{},
		byMetaHash:  map[string][]store.LibraryFile{},
		deactivated: map[string]bool{},
	}
}

func (f *fakeStore) LookupByMetadataHash(ctx context.Context, hex string) ([]store.LibraryFile, error) {
	return f.byMetaHash[hex], nil
}

func (f *fakeStore) LookupByPath(ctx context.Context, path string) (*store.LibraryFile, error) {
	lib, ok := f.byPath[path]
	if !ok {
		return nil, nil
	}
	return &lib, nil
}

func (f *fakeStore) Deactivate(ctx context.Context, path string) error {
	f.deactivated[path] = true
	return nil
}

func (f *fakeStore) RecordDedupEvent(ctx context.Context, p store.RecordDedupEventParams) error {
	f.events = append(f.events, p)
	return nil
}

func (f *fakeStore) ActiveSession(ctx context.Context) (string, bool, error) {
	return f.activeSession, f.activeSession != "", nil
}

func (f *fakeStore) SetActiveSession(ctx context.Context, sessionID string) error {
	if f.activeSession != "" {
		return fmt.Errorf("a deletion session is already active: %s", f.activeSession)
	}
	f.activeSession = sessionID
	return nil
}

func (f *fakeStore) ClearActiveSession(ctx context.Context) error {
	f.activeSession = ""
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPlanAddGroupRejectsKeepInDeletes(t *testing.T) {
	plan := NewPlan(nil)
	err := plan.AddGroup("/a.mp3", []string{"/a.mp3"}, store.ReasonExactContent, store.MatchedByContentHash, 1.0)
	if err == nil {
		t.Fatal("expected an error when keep appears in deletes")
	}
}

func TestPlanAddGroupRejectsEmptyDeletes(t *testing.T) {
	plan := NewPlan(nil)
	if err := plan.AddGroup("/a.mp3", nil, store.ReasonExactContent, store.MatchedByContentHash, 1.0); err == nil {
		t.Fatal("expected an error for an empty delete set")
	}
}

func TestValidateDetectsMissingDeleteFile(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	writeFile(t, keep, "keep")

	plan := NewPlan(nil)
	if err := plan.AddGroup(keep, []string{filepath.Join(dir, "missing.mp3")}, store.ReasonExactContent, store.MatchedByContentHash, 1.0); err != nil {
		t.Fatal(err)
	}

	db := newFakeStore()
	eng := New(db, nil)
	results, err := eng.Validate(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if IsValid(results) {
		t.Fatal("expected a validation error for a nonexistent delete path")
	}
}

func TestValidateAllowsGroupWhenKeepSurvives(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	del := filepath.Join(dir, "del.mp3")
	writeFile(t, keep, "keep")
	writeFile(t, del, "del")

	db := newFakeStore()
	db.byMetaHash["hash1"] = []store.LibraryFile{
		{ID: 1, Path: keep, MetadataHash: "hash1", QualityScore: 50},
		{ID: 2, Path: del, MetadataHash: "hash1", QualityScore: 40},
	}
	db.byPath[keep] = db.byMetaHash["hash1"][0]
	db.byPath[del] = db.byMetaHash["hash1"][1]

	plan := NewPlan(nil)
	if err := plan.AddGroup(keep, []string{del}, store.ReasonLowerQuality, store.MatchedByMetadataHash, 1.0); err != nil {
		t.Fatal(err)
	}

	eng := New(db, nil)
	results, err := eng.Validate(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if !IsValid(results) {
		t.Fatalf("expected valid plan since keep survives, got %+v", results)
	}
}

func TestValidateRejectsGroupThatRemovesEveryKnownCopy(t *testing.T) {
	// Checkpoint 5 anchors on KEEP's metadata_hash (spec §4.8): "every
	// file currently mapped to keep's metadata_hash". Here the Store's
	// LookupByMetadataHash for keep's own hash reports only the delete
	// path as a sibling — i.e. keep itself does not survive as one of
	// the active rows sharing that hash — so removing del would leave
	// no active row under that hash at all.
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	del := filepath.Join(dir, "del.mp3")
	writeFile(t, keep, "keep")
	writeFile(t, del, "del")

	db := newFakeStore()
	db.byPath[keep] = store.LibraryFile{ID: 1, Path: keep, MetadataHash: "hashK", QualityScore: 50}
	db.byPath[del] = store.LibraryFile{ID: 2, Path: del, MetadataHash: "hashK", QualityScore: 40}
	db.byMetaHash["hashK"] = []store.LibraryFile{db.byPath[del]}

	plan := NewPlan(nil)
	if err := plan.AddGroup(keep, []string{del}, store.ReasonLowerQuality, store.MatchedByMetadataHash, 1.0); err != nil {
		t.Fatal(err)
	}

	eng := New(db, nil)
	results, err := eng.Validate(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if IsValid(results) {
		t.Fatal("expected not_all_of_group to fail validation")
	}
}

func TestValidateAllowsFuzzyGroupWithDifferentHashes(t *testing.T) {
	// A fuzzy-matched group: keep and the delete candidate have
	// DIFFERENT metadata hashes (title spelled slightly differently).
	// Checkpoint 5 must anchor on keep's hash, whose only active
	// sibling is keep itself, so the group is valid even though
	// deleting del removes every row sharing DEL's (irrelevant) hash.
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	del := filepath.Join(dir, "del.mp3")
	writeFile(t, keep, "keep")
	writeFile(t, del, "del")

	db := newFakeStore()
	db.byPath[keep] = store.LibraryFile{ID: 1, Path: keep, MetadataHash: "hashKeep", QualityScore: 50}
	db.byPath[del] = store.LibraryFile{ID: 2, Path: del, MetadataHash: "hashDel", QualityScore: 40}
	db.byMetaHash["hashKeep"] = []store.LibraryFile{db.byPath[keep]}
	db.byMetaHash["hashDel"] = []store.LibraryFile{db.byPath[del]}

	plan := NewPlan(nil)
	if err := plan.AddGroup(keep, []string{del}, store.ReasonLowerQuality, store.MatchedByFuzzy, 0.9); err != nil {
		t.Fatal(err)
	}

	eng := New(db, nil)
	results, err := eng.Validate(context.Background(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if !IsValid(results) {
		t.Fatalf("expected a fuzzy-matched group to validate even though it empties del's own hash bucket, got %+v", results)
	}
}

func TestExecuteDryRunMakesNoChanges(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	del := filepath.Join(dir, "del.mp3")
	writeFile(t, keep, "keep-data")
	writeFile(t, del, "del-data-longer")

	plan := NewPlan(nil)
	if err := plan.AddGroup(keep, []string{del}, store.ReasonExactContent, store.MatchedByContentHash, 1.0); err != nil {
		t.Fatal(err)
	}

	db := newFakeStore()
	eng := New(db, nil)
	stats, err := eng.Execute(context.Background(), plan, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesDeleted != 1 {
		t.Fatalf("FilesDeleted = %d, want 1", stats.FilesDeleted)
	}
	if _, err := os.Stat(del); err != nil {
		t.Fatal("dry run must not remove the delete file")
	}
	if len(db.events) != 0 {
		t.Fatal("dry run must not append DedupEvent rows")
	}
	if db.deactivated[del] {
		t.Fatal("dry run must not deactivate store rows")
	}
}

func TestExecuteRealRunDeletesAndRecords(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	del := filepath.Join(dir, "del.mp3")
	writeFile(t, keep, "keep-data")
	writeFile(t, del, "del-data")

	plan := NewPlan(nil)
	if err := plan.AddGroup(keep, []string{del}, store.ReasonExactContent, store.MatchedByContentHash, 1.0); err != nil {
		t.Fatal(err)
	}

	db := newFakeStore()
	eng := New(db, nil)
	stats, err := eng.Execute(context.Background(), plan, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesDeleted != 1 || stats.SuccessfulDeletions != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, err := os.Stat(del); !os.IsNotExist(err) {
		t.Fatal("expected delete file to be removed")
	}
	if !db.deactivated[del] {
		t.Fatal("expected store row to be deactivated")
	}
	if len(db.events) != 1 || db.events[0].FilePath != del {
		t.Fatalf("expected one DedupEvent for %q, got %+v", del, db.events)
	}
}

func TestExecuteRefusesConcurrentSession(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	del := filepath.Join(dir, "del.mp3")
	writeFile(t, keep, "keep-data")
	writeFile(t, del, "del-data")

	plan := NewPlan(nil)
	if err := plan.AddGroup(keep, []string{del}, store.ReasonExactContent, store.MatchedByContentHash, 1.0); err != nil {
		t.Fatal(err)
	}

	db := newFakeStore()
	db.activeSession = "already-running"
	eng := New(db, nil)
	if _, err := eng.Execute(context.Background(), plan, true, false); err == nil {
		t.Fatal("expected Execute to refuse a second concurrent plan")
	}
}

func TestExecuteWithBackupCopiesBeforeDeleting(t *testing.T) {
	dir := t.TempDir()
	backupDir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	del := filepath.Join(dir, "del.mp3")
	writeFile(t, keep, "keep-data")
	writeFile(t, del, "del-data")

	backupDirPtr := backupDir
	plan := NewPlan(&backupDirPtr)
	if err := plan.AddGroup(keep, []string{del}, store.ReasonExactContent, store.MatchedByContentHash, 1.0); err != nil {
		t.Fatal(err)
	}

	obj, err := objstore.NewLocalFS(backupDir)
	if err != nil {
		t.Fatal(err)
	}
	db := newFakeStore()
	eng := New(db, obj)
	stats, err := eng.Execute(context.Background(), plan, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if !stats.BackupCreated {
		t.Fatal("expected BackupCreated = true")
	}
	backupPath := filepath.Join(backupDir, plan.SessionID, plan.Groups[0].GroupID, "del.mp3")
	if _, err := os.Stat(backupPath); err != nil {
		t.Fatalf("expected backup copy at %q: %v", backupPath, err)
	}
	if _, err := os.Stat(del); !os.IsNotExist(err) {
		t.Fatal("expected original delete file to be removed after backup")
	}
	if len(db.events) != 1 || !db.events[0].CanRecover {
		t.Fatalf("expected a recorded DedupEvent with can_recover=true, got %+v", db.events)
	}
	if db.events[0].RecoveryPath == nil {
		t.Fatal("expected a recovery_path to be recorded when a backup was created")
	}
}

func TestExecuteWithoutBackupRecordsNoRecoveryClaim(t *testing.T) {
	// plan.BackupDir is configured, but create_backup=false: Execute
	// must NOT claim can_recover=true or set a recovery_path, since no
	// backup copy was actually written (spec §4.8 Execute step 3:
	// can_recover = create_backup).
	dir := t.TempDir()
	backupDir := t.TempDir()
	keep := filepath.Join(dir, "keep.mp3")
	del := filepath.Join(dir, "del.mp3")
	writeFile(t, keep, "keep-data")
	writeFile(t, del, "del-data")

	backupDirPtr := backupDir
	plan := NewPlan(&backupDirPtr)
	if err := plan.AddGroup(keep, []string{del}, store.ReasonExactContent, store.MatchedByContentHash, 1.0); err != nil {
		t.Fatal(err)
	}

	db := newFakeStore()
	eng := New(db, nil)
	stats, err := eng.Execute(context.Background(), plan, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.BackupCreated {
		t.Fatal("expected BackupCreated = false when create_backup is false")
	}
	if len(db.events) != 1 {
		t.Fatalf("expected exactly one recorded DedupEvent, got %+v", db.events)
	}
	if db.events[0].CanRecover {
		t.Fatal("expected can_recover = false when no backup was created")
	}
	if db.events[0].RecoveryPath != nil {
		t.Fatalf("expected no recovery_path when no backup was created, got %q", *db.events[0].RecoveryPath)
	}
	if _, err := os.Stat(del); !os.IsNotExist(err) {
		t.Fatal("expected the delete file to be removed even without a backup")
	}
}
