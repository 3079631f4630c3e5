package deletion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loungecrasher/music-tools/internal/errs"
	"github.com/loungecrasher/music-tools/internal/store"
)

// DeletionStats summarizes one Execute invocation.
type DeletionStats struct {
	TotalGroups         int
	SuccessfulDeletions int
	FailedDeletions     int
	FilesDeleted        int
	FilesFailed         int
	SpaceFreedBytes     int64
	BackupCreated       bool
	BackupPath          string
	Errors              []string
	Warnings            []string
}

// ValidationFailure is returned by Execute when re-validation at the
// top of the call fails; the caller inspects Results for the
// per-checkpoint messages instead of a single error string.
type ValidationFailure struct {
	Results []ValidationResult
}

func (v *ValidationFailure) Error() string {
	return fmt.Sprintf("deletion plan failed validation (%d result(s))", len(v.Results))
}

type mtimePreservingPutter interface {
	PutPreservingMtime(ctx context.Context, key, srcPath string) error
}

// Execute runs plan's groups in order: optional backup, optional
// unlink, then Store bookkeeping, per spec §4.8. Execute refuses to
// run if the plan no longer validates. The single-writer guard
// (active_session) is acquired for the duration of the call; a dry
// run only checks that no other plan holds it and writes nothing to
// the Store.
func (e *Engine) Execute(ctx context.Context, plan *DeletionPlan, dryRun, createBackup bool) (*DeletionStats, error) {
	if dryRun {
		if existing, ok, err := e.db.ActiveSession(ctx); err != nil {
			return nil, err
		} else if ok {
			return nil, errs.Integrity(fmt.Sprintf("a deletion plan (session %s) is already active", existing), nil)
		}
	} else {
		if err := e.db.SetActiveSession(ctx, plan.SessionID); err != nil {
			return nil, err
		}
		defer e.db.ClearActiveSession(ctx)
	}

	results, err := e.Validate(ctx, plan)
	if err != nil {
		return nil, err
	}
	if !IsValid(results) {
		return nil, &ValidationFailure{Results: results}
	}

	stats := &DeletionStats{TotalGroups: len(plan.Groups)}
	for _, r := range results {
		if r.Level == LevelWarning {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("[%s] %s: %s", r.GroupID, r.Checkpoint, r.Message))
		}
	}

	if createBackup && !dryRun && plan.BackupDir != nil {
		stats.BackupCreated = true
		stats.BackupPath = *plan.BackupDir
	}

	for _, g := range plan.Groups {
		e.executeGroup(ctx, plan, g, dryRun, createBackup, stats)
	}

	return stats, nil
}

func (e *Engine) executeGroup(ctx context.Context, plan *DeletionPlan, g DeletionGroup, dryRun, createBackup bool, stats *DeletionStats) {
	handled := make([]string, 0, len(g.Deletes))
	var groupFailed bool

	if createBackup && !dryRun && plan.BackupDir != nil {
		for _, d := range g.Deletes {
			key := strings.Join([]string{plan.SessionID, g.GroupID, filepath.Base(d)}, "/")
			if err := e.backupOne(ctx, key, d); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("group %s: backup %q: %v", g.GroupID, d, err))
				groupFailed = true
				break
			}
			handled = append(handled, d)
		}
		if groupFailed {
			stats.FailedDeletions++
			stats.FilesFailed += len(g.Deletes) - len(handled)
			return
		}
	} else {
		handled = append(handled, g.Deletes...)
	}

	sizes := make(map[string]int64, len(handled))
	for _, d := range handled {
		if info, err := os.Stat(d); err == nil {
			sizes[d] = info.Size()
		}
	}

	unlinked := handled[:0:0]
	if !dryRun {
		for _, d := range handled {
			if err := os.Remove(d); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("group %s: unlink %q: %v", g.GroupID, d, err))
				groupFailed = true
				break
			}
			unlinked = append(unlinked, d)
		}
	} else {
		unlinked = handled
	}

	if groupFailed {
		stats.FailedDeletions++
		stats.FilesDeleted += len(unlinked)
		stats.FilesFailed += len(handled) - len(unlinked)
		return
	}

	for _, d := range unlinked {
		stats.SpaceFreedBytes += sizes[d]
		if err := e.recordDeletion(ctx, plan, g, d, sizes[d], dryRun, createBackup); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("group %s: store bookkeeping for %q: %v", g.GroupID, d, err))
		}
	}
	stats.FilesDeleted += len(unlinked)
	stats.SuccessfulDeletions++
}

func (e *Engine) backupOne(ctx context.Context, key, srcPath string) error {
	if p, ok := e.obj.(mtimePreservingPutter); ok {
		return p.PutPreservingMtime(ctx, key, srcPath)
	}
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.obj.Put(ctx, key, f, info.Size())
}

// recordDeletion marks d's Store row inactive and appends a
// DedupEvent, skipping both writes in dry-run mode per spec §4.8.
// size is the file's size as read from disk by executeGroup before
// any unlink, and is recorded when the Store has no row for path.
// can_recover is fixed to createBackup per spec §4.8 Execute step 3 —
// a RecoveryPath is only ever recorded when a backup copy was actually
// written, regardless of whether plan.BackupDir is configured.
func (e *Engine) recordDeletion(ctx context.Context, plan *DeletionPlan, g DeletionGroup, path string, size int64, dryRun, createBackup bool) error {
	lib, _ := e.db.LookupByPath(ctx, path)
	if dryRun {
		return nil
	}

	if err := e.db.Deactivate(ctx, path); err != nil {
		return err
	}

	params := store.RecordDedupEventParams{
		SessionID:       plan.SessionID,
		FilePath:        path,
		Filename:        filepath.Base(path),
		DeletionReason:  g.Reason,
		KeptFilePath:    g.Keep,
		ConfidenceScore: g.Confidence,
		MatchedBy:       g.MatchedBy,
		CanRecover:      createBackup,
		DeletedBy:       store.DeletedByUser,
	}
	if lib != nil {
		params.FileSize = lib.FileSize
		params.Format = lib.Format
		params.Artist = lib.Artist
		params.Title = lib.Title
		params.Album = lib.Album
		params.Year = lib.Year
		params.DurationSecs = lib.DurationSecs
		params.BitrateKbps = lib.BitrateKbps
		params.SampleRateHz = lib.SampleRateHz
		params.QualityScore = lib.QualityScore
		params.MetadataHash = lib.MetadataHash
		params.ContentHash = lib.ContentHash
		params.OriginalLibraryID = lib.ID
	} else {
		params.FileSize = size
	}
	if keepLib, err := e.db.LookupByPath(ctx, g.Keep); err == nil && keepLib != nil {
		params.KeptFileID = &keepLib.ID
	}
	if createBackup && plan.BackupDir != nil {
		recoveryPath := strings.Join([]string{*plan.BackupDir, plan.SessionID, g.GroupID, filepath.Base(path)}, "/")
		params.RecoveryPath = &recoveryPath
	}

	return e.db.RecordDedupEvent(ctx, params)
}
