package deletion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loungecrasher/music-tools/internal/audiotag"
	"github.com/loungecrasher/music-tools/internal/fingerprint"
	"github.com/loungecrasher/music-tools/internal/objstore"
	"github.com/loungecrasher/music-tools/internal/quality"
	"github.com/loungecrasher/music-tools/internal/store"
)

func metadataHashOf(props *audiotag.Properties) string {
	return fingerprint.MetadataHash(props.Artist, props.Title)
}

// Level is the severity of a ValidationResult.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// ValidationResult is one checkpoint's finding.
type ValidationResult struct {
	Level      Level
	Checkpoint string
	Message    string
	GroupID    string
}

// backupSpaceFactor is the safety margin spec §4.8 checkpoint 7
// requires: available space must be at least 1.1x the total delete
// size across the whole plan.
const backupSpaceFactor = 1.1

// Validate runs the seven-checkpoint safety check over every group in
// plan, per spec §4.8. A group is valid iff it produced no
// Level-Error result. Checkpoint 7 (backup disk space) runs once for
// the whole plan and is attributed to the first group.
func (e *Engine) Validate(ctx context.Context, plan *DeletionPlan) ([]ValidationResult, error) {
	var results []ValidationResult
	var totalDeleteBytes int64

	for _, g := range plan.Groups {
		groupResults, size, err := e.validateGroup(ctx, g)
		if err != nil {
			return nil, err
		}
		results = append(results, groupResults...)
		totalDeleteBytes += size
	}

	if plan.BackupDir != nil && len(plan.Groups) > 0 {
		avail, err := objstore.AvailableSpace(*plan.BackupDir)
		firstGroupID := plan.Groups[0].GroupID
		if err != nil {
			results = append(results, ValidationResult{
				Level: LevelError, Checkpoint: "backup_disk_space", GroupID: firstGroupID,
				Message: fmt.Sprintf("could not read available space at %q: %v", *plan.BackupDir, err),
			})
		} else if required := uint64(float64(totalDeleteBytes) * backupSpaceFactor); avail < required {
			results = append(results, ValidationResult{
				Level: LevelError, Checkpoint: "backup_disk_space", GroupID: firstGroupID,
				Message: fmt.Sprintf("available space %d bytes at %q is below required %d bytes (1.1x plan total)", avail, *plan.BackupDir, required),
			})
		}
	}

	return results, nil
}

// IsValid reports whether results contain no Level-Error entries.
func IsValid(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == LevelError {
			return false
		}
	}
	return true
}

func (e *Engine) validateGroup(ctx context.Context, g DeletionGroup) ([]ValidationResult, int64, error) {
	var results []ValidationResult
	add := func(level Level, checkpoint, msg string) {
		results = append(results, ValidationResult{Level: level, Checkpoint: checkpoint, Message: msg, GroupID: g.GroupID})
	}

	// 1. Keep file exists.
	keepInfo, keepErr := os.Stat(g.Keep)
	if keepErr != nil || !keepInfo.Mode().IsRegular() {
		add(LevelError, "keep_exists", fmt.Sprintf("keep path %q is not a readable regular file", g.Keep))
	}

	// 2. Non-empty delete set.
	if len(g.Deletes) == 0 {
		add(LevelError, "non_empty_deletes", "deletes must be non-empty")
	}

	keepScore, keepMetaHash, _ := e.qualityScoreAndHashFor(ctx, g.Keep)

	var totalSize int64

	// 3. Quality-downgrade guard + 4. Delete files exist, combined per path.
	for _, d := range g.Deletes {
		info, err := os.Stat(d)
		if err != nil || !info.Mode().IsRegular() {
			add(LevelError, "deletes_exist", fmt.Sprintf("delete path %q is not a readable regular file", d))
			continue
		}
		totalSize += info.Size()

		if score, _, ok := e.qualityScoreAndHashFor(ctx, d); ok && score > keepScore {
			add(LevelWarning, "quality_downgrade", fmt.Sprintf("deleting %q (score %d) which is higher quality than kept file %q (score %d)", d, score, g.Keep, keepScore))
		}

		// 6. Write permission.
		if info.Mode().Perm()&0o200 == 0 {
			add(LevelError, "write_permission", fmt.Sprintf("delete path %q is not writable", d))
		}
		if parentInfo, err := os.Stat(filepath.Dir(d)); err != nil || parentInfo.Mode().Perm()&0o200 == 0 {
			add(LevelError, "write_permission", fmt.Sprintf("parent directory of %q is not writable", d))
		}
	}

	// 5. Not-all-of-group: would this plan remove every active file
	// currently mapped to keep's metadata_hash (spec §4.8 checkpoint 5)?
	if keepMetaHash != "" {
		siblings, err := e.db.LookupByMetadataHash(ctx, keepMetaHash)
		if err != nil {
			return nil, 0, err
		}
		removedByThisGroup := map[string]bool{}
		for _, d := range g.Deletes {
			removedByThisGroup[d] = true
		}
		survivorFound := false
		for _, s := range siblings {
			if s.Path == g.Keep || !removedByThisGroup[s.Path] {
				survivorFound = true
				break
			}
		}
		if len(siblings) > 0 && !survivorFound {
			add(LevelError, "not_all_of_group", fmt.Sprintf("this group would remove every active file sharing metadata_hash %q", keepMetaHash))
		}
	}

	return results, totalSize, nil
}

// qualityScoreAndHashFor returns the indexed quality_score and
// metadata_hash for path when the Store already knows it, falling
// back to reading and scoring the file directly when it does not
// (e.g. an unindexed import-side file).
func (e *Engine) qualityScoreAndHashFor(ctx context.Context, path string) (int, string, bool) {
	if lib, err := e.db.LookupByPath(ctx, path); err == nil && lib != nil {
		return lib.QualityScore, lib.MetadataHash, true
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, "", false
	}
	props, err := audiotag.Read(path)
	if err != nil {
		return 0, "", false
	}
	score := quality.Score(props, info.ModTime(), time.Now())
	hash := ""
	if props.Artist != nil || props.Title != nil {
		hash = metadataHashOf(props)
	}
	return score, hash, true
}

// Store is the subset of *store.Store the Deletion Engine depends on.
type Store interface {
	LookupByMetadataHash(ctx context.Context, hex string) ([]store.LibraryFile, error)
	LookupByPath(ctx context.Context, path string) (*store.LibraryFile, error)
	Deactivate(ctx context.Context, path string) error
	RecordDedupEvent(ctx context.Context, p store.RecordDedupEventParams) error
	ActiveSession(ctx context.Context) (string, bool, error)
	SetActiveSession(ctx context.Context, sessionID string) error
	ClearActiveSession(ctx context.Context) error
}

// Engine runs Plan → Validate → Execute against a Store and an
// optional backup ObjectStore.
type Engine struct {
	db  Store
	obj objstore.ObjectStore
}

// New returns an Engine backed by db; obj may be nil when no backup
// destination is configured (create_backup must then be false).
func New(db Store, obj objstore.ObjectStore) *Engine {
	return &Engine{db: db, obj: obj}
}
