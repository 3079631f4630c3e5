// Package store is the sole persistence boundary for music-tools: a
// single embedded sqlite file holding the library index, vetting
// history, dedup history, and upgrade candidates.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loungecrasher/music-tools/internal/errs"
)

// Store holds the database handle. The underlying sqlite connection
// pool is capped to one open connection, so writes serialize naturally
// without an application-level mutex; reads share that one connection
// too and do not run in parallel with each other or with a write.
type Store struct {
	db *sql.DB
}

// Connect opens (creating if absent) the sqlite file at path and
// applies the embedded schema.
func Connect(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errs.Store("open database", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Integrity("ping store", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withRetry runs fn up to 5 times in all, with exponential backoff
// on a busy/locked sqlite error, per spec §7's StoreError handling.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := 20 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		err = fn()
		if err == nil || !isBusyErr(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func isBusyErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// UpsertFile inserts or updates a LibraryFile keyed on path. Artist
// and album dimensions are deduplicated lazily before the write.
// Returns Unchanged when file_mtime and size are identical to the
// existing row.
func (s *Store) UpsertFile(ctx context.Context, p UpsertFileParams) (UpsertOutcome, *LibraryFile, error) {
	var outcome UpsertOutcome
	var result *LibraryFile

	err := withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errs.Store("begin upsert_file tx", err)
		}
		defer tx.Rollback()

		var artistID, albumID *int64
		if p.Artist != nil {
			id, err := upsertArtistTx(ctx, tx, *p.Artist)
			if err != nil {
				return err
			}
			artistID = &id
			if p.Album != nil {
				aid, err := upsertAlbumTx(ctx, tx, *p.Album, artistID)
				if err != nil {
					return err
				}
				albumID = &aid
			}
		}

		existing, err := getFileByPathTx(ctx, tx, p.Path)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return errs.Store("lookup existing file", err)
		}

		if existing != nil && existing.FileMtime.Equal(p.FileMtime) && existing.FileSize == p.FileSize {
			outcome = OutcomeUnchanged
			result = existing
			return tx.Commit()
		}

		if existing == nil {
			id, err := insertFileTx(ctx, tx, p, artistID, albumID)
			if err != nil {
				return errs.Store("insert library_files", err)
			}
			outcome = OutcomeAdded
			result, err = getFileByIDTx(ctx, tx, id)
			if err != nil {
				return errs.Store("reload inserted file", err)
			}
			return tx.Commit()
		}

		if err := updateFileTx(ctx, tx, existing.ID, p, artistID, albumID); err != nil {
			return errs.Store("update library_files", err)
		}
		outcome = OutcomeUpdated
		result, err = getFileByIDTx(ctx, tx, existing.ID)
		if err != nil {
			return errs.Store("reload updated file", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return "", nil, err
	}
	return outcome, result, nil
}

func upsertArtistTx(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	_, err := tx.ExecContext(ctx, `INSERT INTO artists (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return 0, errs.Store("upsert artist", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM artists WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, errs.Store("reload artist id", err)
	}
	return id, nil
}

func upsertAlbumTx(ctx context.Context, tx *sql.Tx, name string, artistID *int64) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO albums (name, artist_id) VALUES (?, ?) ON CONFLICT(name, artist_id) DO NOTHING`,
		name, artistID)
	if err != nil {
		return 0, errs.Store("upsert album", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM albums WHERE name = ? AND artist_id = ?`, name, artistID).Scan(&id); err != nil {
		return 0, errs.Store("reload album id", err)
	}
	return id, nil
}

const fileColumns = `id, path, filename, artist, title, album, year, duration_secs, format,
	file_size, metadata_hash, content_hash, quality_score, bitrate_kbps, sample_rate_hz,
	bit_depth, channels, bitrate_mode, is_lossless, is_hires, indexed_at, file_mtime,
	last_verified, is_active, artist_id, album_id`

func getFileByPathTx(ctx context.Context, tx *sql.Tx, path string) (*LibraryFile, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM library_files WHERE path = ?`, path)
	return scanLibraryFile(row)
}

func getFileByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*LibraryFile, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM library_files WHERE id = ?`, id)
	return scanLibraryFile(row)
}

func insertFileTx(ctx context.Context, tx *sql.Tx, p UpsertFileParams, artistID, albumID *int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO library_files
		(path, filename, artist, title, album, year, duration_secs, format, file_size,
		 metadata_hash, content_hash, quality_score, bitrate_kbps, sample_rate_hz, bit_depth,
		 channels, bitrate_mode, is_lossless, is_hires, file_mtime, is_active, artist_id, album_id)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1,?,?)`,
		p.Path, p.Filename, p.Artist, p.Title, p.Album, p.Year, p.DurationSecs, p.Format, p.FileSize,
		p.MetadataHash, p.ContentHash, p.QualityScore, p.BitrateKbps, p.SampleRateHz, p.BitDepth,
		p.Channels, string(p.BitrateMode), boolToInt(p.IsLossless), boolToInt(p.IsHiRes), p.FileMtime,
		artistID, albumID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func updateFileTx(ctx context.Context, tx *sql.Tx, id int64, p UpsertFileParams, artistID, albumID *int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE library_files SET
		filename = ?, artist = ?, title = ?, album = ?, year = ?, duration_secs = ?, format = ?,
		file_size = ?, metadata_hash = ?, content_hash = ?, quality_score = ?, bitrate_kbps = ?,
		sample_rate_hz = ?, bit_depth = ?, channels = ?, bitrate_mode = ?, is_lossless = ?,
		is_hires = ?, file_mtime = ?, is_active = 1, artist_id = ?, album_id = ?,
		indexed_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Filename, p.Artist, p.Title, p.Album, p.Year, p.DurationSecs, p.Format,
		p.FileSize, p.MetadataHash, p.ContentHash, p.QualityScore, p.BitrateKbps,
		p.SampleRateHz, p.BitDepth, p.Channels, string(p.BitrateMode), boolToInt(p.IsLossless),
		boolToInt(p.IsHiRes), p.FileMtime, artistID, albumID, id)
	return err
}

// LookupByMetadataHash returns active files sharing hex.
func (s *Store) LookupByMetadataHash(ctx context.Context, hex string) ([]LibraryFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM library_files WHERE metadata_hash = ? AND is_active = 1`, hex)
	if err != nil {
		return nil, errs.Store("lookup_by_metadata_hash", err)
	}
	defer rows.Close()
	return scanLibraryFiles(rows)
}

// LookupByContentHash returns active files sharing hex.
func (s *Store) LookupByContentHash(ctx context.Context, hex string) ([]LibraryFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM library_files WHERE content_hash = ? AND is_active = 1`, hex)
	if err != nil {
		return nil, errs.Store("lookup_by_content_hash", err)
	}
	defer rows.Close()
	return scanLibraryFiles(rows)
}

// FindByArtist returns active files whose artist matches lowerArtist
// case-insensitively, used by the fuzzy tier.
func (s *Store) FindByArtist(ctx context.Context, lowerArtist string) ([]LibraryFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM library_files WHERE lower(artist) = ? AND is_active = 1`, lowerArtist)
	if err != nil {
		return nil, errs.Store("find_by_artist", err)
	}
	defer rows.Close()
	return scanLibraryFiles(rows)
}

// LookupByPath returns the LibraryFile at path, or nil if no row
// exists for it (not an error: the Safe Deletion Engine looks up
// paths that may never have been indexed, e.g. import-only files).
func (s *Store) LookupByPath(ctx context.Context, path string) (*LibraryFile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM library_files WHERE path = ?`, path)
	f, err := scanLibraryFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Store("lookup_by_path", err)
	}
	return f, nil
}

// Deactivate marks the file at path inactive (logical delete only).
func (s *Store) Deactivate(ctx context.Context, path string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE library_files SET is_active = 0 WHERE path = ?`, path)
		if err != nil {
			return errs.Store("deactivate", err)
		}
		return nil
	})
}

// Reactivate marks the file at path active again.
func (s *Store) Reactivate(ctx context.Context, path string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE library_files SET is_active = 1, last_verified = CURRENT_TIMESTAMP WHERE path = ?`, path)
		if err != nil {
			return errs.Store("reactivate", err)
		}
		return nil
	})
}

// ActivePathsUnder returns every active path starting with root,
// used by the Indexer's missing-file sweep.
func (s *Store) ActivePathsUnder(ctx context.Context, root string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM library_files WHERE is_active = 1 AND path LIKE ? || '%'`, root)
	if err != nil {
		return nil, errs.Store("active_paths_under", err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errs.Store("scan active path", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Statistics computes a fresh LibraryStatistics snapshot and appends
// it to library_stats.
func (s *Store) Statistics(ctx context.Context, scanDuration time.Duration) (LibraryStatistics, error) {
	stats := LibraryStatistics{
		FormatCounts: map[string]int{},
		LastScanAt:   time.Now(),
		LastScanDuration: scanDuration,
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM library_files WHERE is_active = 1`)
	if err := row.Scan(&stats.TotalFiles, &stats.TotalBytes); err != nil {
		return LibraryStatistics{}, errs.Store("count active files", err)
	}

	fmtRows, err := s.db.QueryContext(ctx, `SELECT format, COUNT(*) FROM library_files WHERE is_active = 1 GROUP BY format`)
	if err != nil {
		return LibraryStatistics{}, errs.Store("format counts", err)
	}
	defer fmtRows.Close()
	for fmtRows.Next() {
		var format string
		var count int
		if err := fmtRows.Scan(&format, &count); err != nil {
			return LibraryStatistics{}, errs.Store("scan format count", err)
		}
		stats.FormatCounts[format] = count
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT artist_id) FROM library_files WHERE is_active = 1 AND artist_id IS NOT NULL`).Scan(&stats.UniqueArtists); err != nil {
		return LibraryStatistics{}, errs.Store("count unique artists", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT album_id) FROM library_files WHERE is_active = 1 AND album_id IS NOT NULL`).Scan(&stats.UniqueAlbums); err != nil {
		return LibraryStatistics{}, errs.Store("count unique albums", err)
	}

	formatJSON, err := json.Marshal(stats.FormatCounts)
	if err != nil {
		return LibraryStatistics{}, errs.Store("marshal format counts", err)
	}

	err = withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `INSERT INTO library_stats
			(total_files, total_bytes, format_counts_json, unique_artists, unique_albums, last_scan_at, last_scan_duration_secs)
			VALUES (?,?,?,?,?,?,?)`,
			stats.TotalFiles, stats.TotalBytes, string(formatJSON), stats.UniqueArtists, stats.UniqueAlbums,
			stats.LastScanAt, scanDuration.Seconds())
		if err != nil {
			return err
		}
		stats.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return LibraryStatistics{}, errs.Store("append library_stats row", err)
	}
	return stats, nil
}

// RecordVettingRun appends a VettingRun row.
func (s *Store) RecordVettingRun(ctx context.Context, p RecordVettingRunParams) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO vetting_history
			(import_root, total_files, duplicate_count, new_count, uncertain_count, similarity_threshold)
			VALUES (?,?,?,?,?,?)`,
			p.ImportRoot, p.TotalFiles, p.DuplicateCount, p.NewCount, p.UncertainCount, p.SimilarityThreshold)
		if err != nil {
			return errs.Store("record_vetting_run", err)
		}
		return nil
	})
}

// ListVettingHistory returns the most recent vetting runs, newest first.
func (s *Store) ListVettingHistory(ctx context.Context, limit int) ([]VettingRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, import_root, total_files, duplicate_count, new_count, uncertain_count, similarity_threshold, completed_at
		 FROM vetting_history ORDER BY completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errs.Store("list_vetting_history", err)
	}
	defer rows.Close()

	var runs []VettingRun
	for rows.Next() {
		var r VettingRun
		if err := rows.Scan(&r.ID, &r.ImportRoot, &r.TotalFiles, &r.DuplicateCount, &r.NewCount,
			&r.UncertainCount, &r.SimilarityThreshold, &r.CompletedAt); err != nil {
			return nil, errs.Store("scan vetting run", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecordDedupEvent appends one DedupEvent row.
func (s *Store) RecordDedupEvent(ctx context.Context, p RecordDedupEventParams) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO dedup_events
			(session_id, file_path, filename, file_size, format, artist, title, album, year,
			 duration_secs, bitrate_kbps, sample_rate_hz, quality_score, metadata_hash, content_hash,
			 deletion_reason, kept_file_path, kept_file_id, confidence_score, matched_by,
			 original_library_id, can_recover, recovery_path, deleted_by, notes)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			p.SessionID, p.FilePath, p.Filename, p.FileSize, p.Format, p.Artist, p.Title, p.Album, p.Year,
			p.DurationSecs, p.BitrateKbps, p.SampleRateHz, p.QualityScore, p.MetadataHash, p.ContentHash,
			string(p.DeletionReason), p.KeptFilePath, p.KeptFileID, p.ConfidenceScore, string(p.MatchedBy),
			p.OriginalLibraryID, boolToInt(p.CanRecover), p.RecoveryPath, string(p.DeletedBy), p.Notes)
		if err != nil {
			return errs.Store("record_dedup_event", err)
		}
		return nil
	})
}

// ListDedupEvents returns every DedupEvent recorded under sessionID.
func (s *Store) ListDedupEvents(ctx context.Context, sessionID string) ([]DedupEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, session_id, file_path, filename, file_size, format, artist, title, album, year,
		duration_secs, bitrate_kbps, sample_rate_hz, quality_score, metadata_hash, content_hash,
		deletion_reason, kept_file_path, kept_file_id, confidence_score, matched_by,
		original_library_id, can_recover, recovery_path, deleted_by, notes, deleted_at
		FROM dedup_events WHERE session_id = ? ORDER BY deleted_at ASC`, sessionID)
	if err != nil {
		return nil, errs.Store("list_dedup_events", err)
	}
	defer rows.Close()
	return scanDedupEvents(rows)
}

// UpsertUpgradeCandidate inserts or updates the pending candidate row
// for a library file.
func (s *Store) UpsertUpgradeCandidate(ctx context.Context, p UpsertUpgradeCandidateParams) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO upgrade_candidates
			(library_file_id, current_format, current_bitrate_kbps, current_quality_score,
			 recommended_format, potential_quality_gain, priority_score)
			VALUES (?,?,?,?,?,?,?)
			ON CONFLICT(library_file_id) DO UPDATE SET
				current_format = excluded.current_format,
				current_bitrate_kbps = excluded.current_bitrate_kbps,
				current_quality_score = excluded.current_quality_score,
				recommended_format = excluded.recommended_format,
				potential_quality_gain = excluded.potential_quality_gain,
				priority_score = excluded.priority_score,
				updated_at = CURRENT_TIMESTAMP`,
			p.LibraryFileID, p.CurrentFormat, p.CurrentBitrateKbps, p.CurrentQualityScore,
			p.RecommendedFormat, p.PotentialQualityGain, p.PriorityScore)
		if err != nil {
			return errs.Store("upsert_upgrade_candidate", err)
		}
		return nil
	})
}

// ListUpgradeCandidates returns candidates at or above MinPriority,
// optionally filtered by Action.
func (s *Store) ListUpgradeCandidates(ctx context.Context, p ListUpgradeCandidatesParams) ([]UpgradeCandidate, error) {
	query := `SELECT id, library_file_id, current_format, current_bitrate_kbps, current_quality_score,
		recommended_format, potential_quality_gain, priority_score, user_action, created_at, updated_at
		FROM upgrade_candidates WHERE priority_score >= ?`
	args := []any{p.MinPriority}
	if p.Action != nil {
		query += ` AND user_action = ?`
		args = append(args, string(*p.Action))
	}
	query += ` ORDER BY priority_score DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Store("list_upgrade_candidates", err)
	}
	defer rows.Close()

	var out []UpgradeCandidate
	for rows.Next() {
		var c UpgradeCandidate
		var bitrate sql.NullInt64
		var action string
		if err := rows.Scan(&c.ID, &c.LibraryFileID, &c.CurrentFormat, &bitrate, &c.CurrentQualityScore,
			&c.RecommendedFormat, &c.PotentialQualityGain, &c.PriorityScore, &action, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, errs.Store("scan upgrade candidate", err)
		}
		if bitrate.Valid {
			v := int(bitrate.Int64)
			c.CurrentBitrateKbps = &v
		}
		c.UserAction = UpgradeAction(action)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveSession returns the session_id of an in-progress Safe
// Deletion Engine plan, if any, per spec §5's single-writer guard.
func (s *Store) ActiveSession(ctx context.Context) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = 'active_session'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Store("read active_session", err)
	}
	return value, value != "", nil
}

// SetActiveSession records sessionID as the running Deletion plan, or
// returns IntegrityError if one is already set.
func (s *Store) SetActiveSession(ctx context.Context, sessionID string) error {
	return withRetry(ctx, func() error {
		existing, ok, err := s.ActiveSession(ctx)
		if err != nil {
			return err
		}
		if ok {
			return errs.Integrity(fmt.Sprintf("a deletion plan (session %s) is already active", existing), nil)
		}
		_, err = s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES ('active_session', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, sessionID)
		if err != nil {
			return errs.Store("set active_session", err)
		}
		return nil
	})
}

// ClearActiveSession releases the single-writer guard after a plan
// finishes, whether it succeeded or aborted.
func (s *Store) ClearActiveSession(ctx context.Context) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE settings SET value = '', updated_at = CURRENT_TIMESTAMP WHERE key = 'active_session'`)
		if err != nil {
			return errs.Store("clear active_session", err)
		}
		return nil
	})
}

func scanLibraryFile(row *sql.Row) (*LibraryFile, error) {
	var f LibraryFile
	var artist, title, album, bitrateMode sql.NullString
	var year, duration, bitrate, sampleRate, bitDepth sql.NullInt64
	var lastVerified sql.NullTime
	var isActive, isLossless, isHiRes int
	var artistID, albumID sql.NullInt64

	err := row.Scan(&f.ID, &f.Path, &f.Filename, &artist, &title, &album, &year, &duration, &f.Format,
		&f.FileSize, &f.MetadataHash, &f.ContentHash, &f.QualityScore, &bitrate, &sampleRate, &bitDepth,
		&f.Channels, &bitrateMode, &isLossless, &isHiRes, &f.IndexedAt, &f.FileMtime, &lastVerified,
		&isActive, &artistID, &albumID)
	if err != nil {
		return nil, err
	}

	if artist.Valid {
		f.Artist = &artist.String
	}
	if title.Valid {
		f.Title = &title.String
	}
	if album.Valid {
		f.Album = &album.String
	}
	if year.Valid {
		y := int(year.Int64)
		f.Year = &y
	}
	if duration.Valid {
		d := int(duration.Int64)
		f.DurationSecs = &d
	}
	if bitrate.Valid {
		b := int(bitrate.Int64)
		f.BitrateKbps = &b
	}
	if sampleRate.Valid {
		sr := int(sampleRate.Int64)
		f.SampleRateHz = &sr
	}
	if bitDepth.Valid {
		bd := int(bitDepth.Int64)
		f.BitDepth = &bd
	}
	f.BitrateMode = BitrateMode(bitrateMode.String)
	f.IsLossless = isLossless != 0
	f.IsHiRes = isHiRes != 0
	f.IsActive = isActive != 0
	if lastVerified.Valid {
		f.LastVerified = &lastVerified.Time
	}
	if artistID.Valid {
		id := artistID.Int64
		f.ArtistID = &id
	}
	if albumID.Valid {
		id := albumID.Int64
		f.AlbumID = &id
	}
	return &f, nil
}

func scanLibraryFiles(rows *sql.Rows) ([]LibraryFile, error) {
	var out []LibraryFile
	for rows.Next() {
		f, err := scanLibraryFileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// scanLibraryFileRow mirrors scanLibraryFile but reads from *sql.Rows
// instead of *sql.Row — database/sql gives these incompatible Scan
// receivers, so the field list is kept in exact lockstep between the
// two by fileColumns.
func scanLibraryFileRow(rows *sql.Rows) (*LibraryFile, error) {
	var f LibraryFile
	var artist, title, album, bitrateMode sql.NullString
	var year, duration, bitrate, sampleRate, bitDepth sql.NullInt64
	var lastVerified sql.NullTime
	var isActive, isLossless, isHiRes int
	var artistID, albumID sql.NullInt64

	err := rows.Scan(&f.ID, &f.Path, &f.Filename, &artist, &title, &album, &year, &duration, &f.Format,
		&f.FileSize, &f.MetadataHash, &f.ContentHash, &f.QualityScore, &bitrate, &sampleRate, &bitDepth,
		&f.Channels, &bitrateMode, &isLossless, &isHiRes, &f.IndexedAt, &f.FileMtime, &lastVerified,
		&isActive, &artistID, &albumID)
	if err != nil {
		return nil, err
	}

	if artist.Valid {
		f.Artist = &artist.String
	}
	if title.Valid {
		f.Title = &title.String
	}
	if album.Valid {
		f.Album = &album.String
	}
	if year.Valid {
		y := int(year.Int64)
		f.Year = &y
	}
	if duration.Valid {
		d := int(duration.Int64)
		f.DurationSecs = &d
	}
	if bitrate.Valid {
		b := int(bitrate.Int64)
		f.BitrateKbps = &b
	}
	if sampleRate.Valid {
		sr := int(sampleRate.Int64)
		f.SampleRateHz = &sr
	}
	if bitDepth.Valid {
		bd := int(bitDepth.Int64)
		f.BitDepth = &bd
	}
	f.BitrateMode = BitrateMode(bitrateMode.String)
	f.IsLossless = isLossless != 0
	f.IsHiRes = isHiRes != 0
	f.IsActive = isActive != 0
	if lastVerified.Valid {
		f.LastVerified = &lastVerified.Time
	}
	if artistID.Valid {
		id := artistID.Int64
		f.ArtistID = &id
	}
	if albumID.Valid {
		id := albumID.Int64
		f.AlbumID = &id
	}
	return &f, nil
}

func scanDedupEvents(rows *sql.Rows) ([]DedupEvent, error) {
	var out []DedupEvent
	for rows.Next() {
		var e DedupEvent
		var artist, title, album, recoveryPath, notes sql.NullString
		var year, duration, bitrate, sampleRate, keptFileID sql.NullInt64
		var canRecover int

		err := rows.Scan(&e.ID, &e.SessionID, &e.FilePath, &e.Filename, &e.FileSize, &e.Format,
			&artist, &title, &album, &year, &duration, &bitrate, &sampleRate, &e.QualityScore,
			&e.MetadataHash, &e.ContentHash, &e.DeletionReason, &e.KeptFilePath, &keptFileID,
			&e.ConfidenceScore, &e.MatchedBy, &e.OriginalLibraryID, &canRecover, &recoveryPath,
			&e.DeletedBy, &notes, &e.DeletedAt)
		if err != nil {
			return nil, err
		}
		if artist.Valid {
			e.Artist = &artist.String
		}
		if title.Valid {
			e.Title = &title.String
		}
		if album.Valid {
			e.Album = &album.String
		}
		if year.Valid {
			y := int(year.Int64)
			e.Year = &y
		}
		if duration.Valid {
			d := int(duration.Int64)
			e.DurationSecs = &d
		}
		if bitrate.Valid {
			b := int(bitrate.Int64)
			e.BitrateKbps = &b
		}
		if sampleRate.Valid {
			sr := int(sampleRate.Int64)
			e.SampleRateHz = &sr
		}
		if keptFileID.Valid {
			id := keptFileID.Int64
			e.KeptFileID = &id
		}
		if recoveryPath.Valid {
			e.RecoveryPath = &recoveryPath.String
		}
		if notes.Valid {
			e.Notes = &notes.String
		}
		e.CanRecover = canRecover != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
