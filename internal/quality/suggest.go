package quality

import (
	"github.com/loungecrasher/music-tools/internal/store"
)

// upgradeGainFloor is the minimum quality-score gap worth recording
// as an UpgradeCandidate — below this the two encodes are close
// enough that surfacing an upgrade prompt would just be noise.
const upgradeGainFloor = 5

// SuggestUpgrade compares a newly-indexed file against library
// siblings sharing its metadata_hash and, if one of them out-scores
// it meaningfully, returns a pending UpgradeCandidate for the weaker
// file. This is additive to spec.md's Indexer contract: it never
// blocks or alters upsert_file's return value.
func SuggestUpgrade(current store.LibraryFile, siblings []store.LibraryFile) (*store.UpsertUpgradeCandidateParams, bool) {
	var best *store.LibraryFile
	for i := range siblings {
		sib := siblings[i]
		if sib.ID == current.ID {
			continue
		}
		if sib.QualityScore <= current.QualityScore {
			continue
		}
		if best == nil || sib.QualityScore > best.QualityScore {
			best = &sib
		}
	}
	if best == nil {
		return nil, false
	}

	gain := best.QualityScore - current.QualityScore
	if gain < upgradeGainFloor {
		return nil, false
	}

	return &store.UpsertUpgradeCandidateParams{
		LibraryFileID:        current.ID,
		CurrentFormat:        current.Format,
		CurrentBitrateKbps:   current.BitrateKbps,
		CurrentQualityScore:  current.QualityScore,
		RecommendedFormat:    best.Format,
		PotentialQualityGain: gain,
		PriorityScore:        clamp(gain*2, 0, 100),
	}, true
}
