package deletion

import (
	"fmt"

	"github.com/loungecrasher/music-tools/internal/store"
)

// DeletionGroup is one keep-file/delete-set unit: invariant keep ∉
// deletes, deletes non-empty, keep and every delete path distinct.
type DeletionGroup struct {
	GroupID    string
	Keep       string
	Deletes    []string
	Reason     store.DeletionReason
	MatchedBy  store.MatchedBy
	Confidence float64
}

// DeletionPlan is an ordered set of DeletionGroups sharing one backup
// destination and one session id.
type DeletionPlan struct {
	SessionID string
	BackupDir *string
	Groups    []DeletionGroup
}

// NewPlan starts an empty plan with a freshly generated session id.
func NewPlan(backupDir *string) *DeletionPlan {
	return &DeletionPlan{SessionID: newID(), BackupDir: backupDir}
}

// AddGroup validates and appends a DeletionGroup, assigning it a fresh
// group id. It enforces the structural invariant from spec §4.8; the
// seven-checkpoint safety validation happens separately in Validate.
func (p *DeletionPlan) AddGroup(keep string, deletes []string, reason store.DeletionReason, matchedBy store.MatchedBy, confidence float64) error {
	if keep == "" {
		return fmt.Errorf("deletion group: keep path is required")
	}
	if len(deletes) == 0 {
		return fmt.Errorf("deletion group: deletes must be non-empty")
	}
	seen := map[string]bool{keep: true}
	for _, d := range deletes {
		if d == keep {
			return fmt.Errorf("deletion group: keep %q must not appear in deletes", keep)
		}
		if seen[d] {
			return fmt.Errorf("deletion group: duplicate delete path %q", d)
		}
		seen[d] = true
	}

	p.Groups = append(p.Groups, DeletionGroup{
		GroupID:    newID(),
		Keep:       keep,
		Deletes:    append([]string(nil), deletes...),
		Reason:     reason,
		MatchedBy:  matchedBy,
		Confidence: confidence,
	})
	return nil
}
