package store

import "time"

// BitrateMode mirrors audiotag.BitrateMode but is kept independent so
// the store package has no dependency on the reader package — the
// Store only ever sees plain data, never audio files.
type BitrateMode string

const (
	BitrateModeCBR     BitrateMode = "CBR"
	BitrateModeVBR     BitrateMode = "VBR"
	BitrateModeABR     BitrateMode = "ABR"
	BitrateModeUnknown BitrateMode = "UNKNOWN"
)

// DeletionReason enumerates why a DedupEvent row was recorded.
type DeletionReason string

const (
	ReasonExactContent  DeletionReason = "exact_content"
	ReasonExactMetadata DeletionReason = "exact_metadata"
	ReasonLowerQuality  DeletionReason = "lower_quality"
	ReasonUserRequested DeletionReason = "user_requested"
)

// MatchedBy enumerates which Duplicate Checker tier produced a match.
type MatchedBy string

const (
	MatchedByContentHash  MatchedBy = "content_hash"
	MatchedByMetadataHash MatchedBy = "metadata_hash"
	MatchedByFuzzy        MatchedBy = "fuzzy"
)

// DeletedBy enumerates who initiated a deletion.
type DeletedBy string

const (
	DeletedBySystem DeletedBy = "system"
	DeletedByUser   DeletedBy = "user"
	DeletedByAuto   DeletedBy = "auto"
)

// UpgradeAction enumerates the curator's disposition of an
// UpgradeCandidate row.
type UpgradeAction string

const (
	UpgradeActionPending   UpgradeAction = "pending"
	UpgradeActionApproved  UpgradeAction = "approved"
	UpgradeActionRejected  UpgradeAction = "rejected"
	UpgradeActionCompleted UpgradeAction = "completed"
	UpgradeActionIgnored   UpgradeAction = "ignored"
)

// UpsertOutcome is the result of upsert_file: whether the row was
// freshly created, modified, or left untouched because mtime and size
// were unchanged.
type UpsertOutcome string

const (
	OutcomeAdded     UpsertOutcome = "added"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

// LibraryFile is one indexed audio file.
type LibraryFile struct {
	ID            int64
	Path          string
	Filename      string
	Artist        *string
	Title         *string
	Album         *string
	Year          *int
	DurationSecs  *int
	Format        string
	FileSize      int64
	MetadataHash  string
	ContentHash   string
	QualityScore  int
	BitrateKbps   *int
	SampleRateHz  *int
	BitDepth      *int
	Channels      int
	BitrateMode   BitrateMode
	IsLossless    bool
	IsHiRes       bool
	IndexedAt     time.Time
	FileMtime     time.Time
	LastVerified  *time.Time
	IsActive      bool
	ArtistID      *int64
	AlbumID       *int64
}

// UpsertFileParams is the write-side shape of LibraryFile consumed by
// upsert_file; ID/IndexedAt/IsActive are owned by the Store.
type UpsertFileParams struct {
	Path         string
	Filename     string
	Artist       *string
	Title        *string
	Album        *string
	Year         *int
	DurationSecs *int
	Format       string
	FileSize     int64
	MetadataHash string
	ContentHash  string
	QualityScore int
	BitrateKbps  *int
	SampleRateHz *int
	BitDepth     *int
	Channels     int
	BitrateMode  BitrateMode
	IsLossless   bool
	IsHiRes      bool
	FileMtime    time.Time
}

// Artist is a deduplicated artist name.
type Artist struct {
	ID   int64
	Name string
}

// Album is a deduplicated (name, artist_id) pair.
type Album struct {
	ID       int64
	Name     string
	ArtistID *int64
}

// LibraryStatistics is an append-only snapshot row.
type LibraryStatistics struct {
	ID               int64
	TotalFiles       int
	TotalBytes       int64
	FormatCounts     map[string]int
	UniqueArtists    int
	UniqueAlbums     int
	LastScanAt       time.Time
	LastScanDuration time.Duration
}

// VettingRun is one row per Vetter invocation.
type VettingRun struct {
	ID                 int64
	ImportRoot         string
	TotalFiles         int
	DuplicateCount     int
	NewCount           int
	UncertainCount     int
	SimilarityThreshold float64
	CompletedAt        time.Time
}

// RecordVettingRunParams is the write-side shape of VettingRun.
type RecordVettingRunParams struct {
	ImportRoot          string
	TotalFiles          int
	DuplicateCount      int
	NewCount            int
	UncertainCount      int
	SimilarityThreshold float64
}

// DedupEvent is one row per deleted file.
type DedupEvent struct {
	ID               int64
	SessionID        string
	FilePath         string
	Filename         string
	FileSize         int64
	Format           string
	Artist           *string
	Title            *string
	Album            *string
	Year             *int
	DurationSecs     *int
	BitrateKbps      *int
	SampleRateHz     *int
	QualityScore     int
	MetadataHash     string
	ContentHash      string
	DeletionReason   DeletionReason
	KeptFilePath     string
	KeptFileID       *int64
	ConfidenceScore  float64
	MatchedBy        MatchedBy
	OriginalLibraryID int64
	CanRecover       bool
	RecoveryPath     *string
	DeletedBy        DeletedBy
	Notes            *string
	DeletedAt        time.Time
}

// RecordDedupEventParams is the write-side shape of DedupEvent.
type RecordDedupEventParams struct {
	SessionID         string
	FilePath          string
	Filename          string
	FileSize          int64
	Format            string
	Artist            *string
	Title             *string
	Album             *string
	Year              *int
	DurationSecs      *int
	BitrateKbps       *int
	SampleRateHz      *int
	QualityScore      int
	MetadataHash      string
	ContentHash       string
	DeletionReason    DeletionReason
	KeptFilePath      string
	KeptFileID        *int64
	ConfidenceScore   float64
	MatchedBy         MatchedBy
	OriginalLibraryID int64
	CanRecover        bool
	RecoveryPath      *string
	DeletedBy         DeletedBy
	Notes             *string
}

// UpgradeCandidate is one per library file suggested for upgrade.
type UpgradeCandidate struct {
	ID                   int64
	LibraryFileID        int64
	CurrentFormat        string
	CurrentBitrateKbps   *int
	CurrentQualityScore  int
	RecommendedFormat    string
	PotentialQualityGain int
	PriorityScore        int
	UserAction           UpgradeAction
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// UpsertUpgradeCandidateParams is the write-side shape of UpgradeCandidate.
type UpsertUpgradeCandidateParams struct {
	LibraryFileID        int64
	CurrentFormat        string
	CurrentBitrateKbps   *int
	CurrentQualityScore  int
	RecommendedFormat    string
	PotentialQualityGain int
	PriorityScore        int
}

// ListUpgradeCandidatesParams filters list_upgrade_candidates.
type ListUpgradeCandidatesParams struct {
	MinPriority int
	Action      *UpgradeAction
}
