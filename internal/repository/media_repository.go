package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/meridian-im/media-admin-api/internal/models"
)

// MediaRepository is the single source of truth for media metadata and
// governance flags. Local media lives in local_media_repository, cached
// remote media in remote_media_cache. All flag mutations are single
// conditional UPDATE statements so concurrent calls on the same key can
// never leave a protected record quarantined.
type MediaRepository struct {
	db         *sqlx.DB
	serverName string
}

// NewMediaRepository constructs the repository.
func NewMediaRepository(db *sqlx.DB, serverName string) *MediaRepository {
	return &MediaRepository{db: db, serverName: serverName}
}

// ServerName returns the local origin this repository is authoritative for.
func (r *MediaRepository) ServerName() string {
	return r.serverName
}

const localMediaColumns = `media_id, user_id, media_type, media_length, upload_name,
       created_ts, last_access_ts, quarantined_by, safe_from_quarantine`

// GetLocal retrieves one local media record.
func (r *MediaRepository) GetLocal(ctx context.Context, mediaID string) (*models.MediaRecord, error) {
	const query = `SELECT ` + localMediaColumns + ` FROM local_media_repository WHERE media_id = $1`
	var record models.MediaRecord
	if err := r.db.GetContext(ctx, &record, query, mediaID); err != nil {
		return nil, err
	}
	record.Origin = r.serverName
	return &record, nil
}

// GetRemote retrieves one cached remote media record.
func (r *MediaRepository) GetRemote(ctx context.Context, origin, mediaID string) (*models.MediaRecord, error) {
	const query = `SELECT media_origin, media_id, media_type, media_length, upload_name,
       created_ts, last_access_ts, quarantined_by
	FROM remote_media_cache WHERE media_origin = $1 AND media_id = $2`
	var record models.MediaRecord
	if err := r.db.GetContext(ctx, &record, query, origin, mediaID); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByUser returns one page of a user's local media plus the total count.
// Ordering is stable: the requested column first, media_id ascending as the
// tie-break, so identical parameters against an unmodified store always
// return identical pages.
func (r *MediaRepository) ListByUser(ctx context.Context, userID string, offset, limit int, order models.MediaSortOrder, dir models.SortDirection) ([]models.MediaRecord, int, error) {
	if !order.Valid() {
		return nil, 0, fmt.Errorf("invalid media sort order %q", order)
	}
	if !dir.Valid() {
		return nil, 0, fmt.Errorf("invalid sort direction %q", dir)
	}

	direction := "ASC"
	if dir == models.SortBackward {
		direction = "DESC"
	}

	var total int
	const countQuery = `SELECT COUNT(*) FROM local_media_repository WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("count user media: %w", err)
	}

	query := fmt.Sprintf(`SELECT `+localMediaColumns+`
	FROM local_media_repository
	WHERE user_id = $1
	ORDER BY %s %s NULLS LAST, media_id ASC
	LIMIT $2 OFFSET $3`, string(order), direction)

	records := []models.MediaRecord{}
	if err := r.db.SelectContext(ctx, &records, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list user media: %w", err)
	}
	for i := range records {
		records[i].Origin = r.serverName
	}
	return records, total, nil
}

// SetQuarantine applies or clears the quarantine flag on the given keys and
// returns the number of records whose flag actually changed. A non-nil
// quarantinedBy skips records protected by safe_from_quarantine; nil clears
// the flag unconditionally. Keys are grouped per origin so a transport
// failure part-way through leaves earlier origins applied; there is no
// rollback across the bulk call.
func (r *MediaRepository) SetQuarantine(ctx context.Context, keys []models.MediaKey, quarantinedBy *string) (int, error) {
	localIDs := make([]string, 0, len(keys))
	remoteIDs := make(map[string][]string)
	for _, key := range keys {
		if key.Origin == r.serverName {
			localIDs = append(localIDs, key.MediaID)
		} else {
			remoteIDs[key.Origin] = append(remoteIDs[key.Origin], key.MediaID)
		}
	}

	affected := 0
	if len(localIDs) > 0 {
		n, err := r.quarantineLocal(ctx, localIDs, quarantinedBy)
		if err != nil {
			return affected, err
		}
		affected += n
	}
	for origin, ids := range remoteIDs {
		n, err := r.quarantineRemote(ctx, origin, ids, quarantinedBy)
		if err != nil {
			return affected, err
		}
		affected += n
	}
	return affected, nil
}

func (r *MediaRepository) quarantineLocal(ctx context.Context, mediaIDs []string, quarantinedBy *string) (int, error) {
	query := `UPDATE local_media_repository SET quarantined_by = $1
	WHERE media_id = ANY($2) AND quarantined_by IS DISTINCT FROM $1`
	if quarantinedBy != nil {
		query += ` AND safe_from_quarantine = FALSE`
	}
	res, err := r.db.ExecContext(ctx, query, quarantinedBy, pq.Array(mediaIDs))
	if err != nil {
		return 0, fmt.Errorf("quarantine local media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("quarantine local media rows: %w", err)
	}
	return int(n), nil
}

func (r *MediaRepository) quarantineRemote(ctx context.Context, origin string, mediaIDs []string, quarantinedBy *string) (int, error) {
	const query = `UPDATE remote_media_cache SET quarantined_by = $1
	WHERE media_origin = $2 AND media_id = ANY($3) AND quarantined_by IS DISTINCT FROM $1`
	res, err := r.db.ExecContext(ctx, query, quarantinedBy, origin, pq.Array(mediaIDs))
	if err != nil {
		return 0, fmt.Errorf("quarantine remote media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("quarantine remote media rows: %w", err)
	}
	return int(n), nil
}

// QuarantineByUser quarantines all unprotected local media uploaded by the
// given user and returns the number of records that changed.
func (r *MediaRepository) QuarantineByUser(ctx context.Context, userID, quarantinedBy string) (int, error) {
	const query = `UPDATE local_media_repository SET quarantined_by = $1
	WHERE user_id = $2 AND safe_from_quarantine = FALSE AND quarantined_by IS DISTINCT FROM $1`
	res, err := r.db.ExecContext(ctx, query, quarantinedBy, userID)
	if err != nil {
		return 0, fmt.Errorf("quarantine media by user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("quarantine media by user rows: %w", err)
	}
	return int(n), nil
}

// SetSafe toggles safe_from_quarantine on a local record. Marking a record
// safe clears any existing quarantine in the same statement, keeping the
// protected-implies-unquarantined invariant under concurrent mutation.
func (r *MediaRepository) SetSafe(ctx context.Context, mediaID string, safe bool) error {
	const query = `UPDATE local_media_repository
	SET safe_from_quarantine = $2,
	    quarantined_by = CASE WHEN $2 THEN NULL ELSE quarantined_by END
	WHERE media_id = $1`
	res, err := r.db.ExecContext(ctx, query, mediaID, safe)
	if err != nil {
		return fmt.Errorf("set media safe flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set media safe flag rows: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteLocal removes a local media record and its thumbnail rows. Reports
// whether a record existed; missing keys are not an error.
func (r *MediaRepository) DeleteLocal(ctx context.Context, mediaID string) (bool, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM local_media_repository_thumbnails WHERE media_id = $1`, mediaID); err != nil {
		return false, fmt.Errorf("delete local thumbnails: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM local_media_repository WHERE media_id = $1`, mediaID)
	if err != nil {
		return false, fmt.Errorf("delete local media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete local media rows: %w", err)
	}
	return n > 0, nil
}

// DeleteRemote removes a cached remote media record and its thumbnail rows.
func (r *MediaRepository) DeleteRemote(ctx context.Context, origin, mediaID string) (bool, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM remote_media_cache_thumbnails WHERE media_origin = $1 AND media_id = $2`, origin, mediaID); err != nil {
		return false, fmt.Errorf("delete remote thumbnails: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM remote_media_cache WHERE media_origin = $1 AND media_id = $2`, origin, mediaID)
	if err != nil {
		return false, fmt.Errorf("delete remote media: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete remote media rows: %w", err)
	}
	return n > 0, nil
}

// SelectOldRemoteCache returns cached remote media not accessed since
// beforeTS. Already-purged items no longer match, which is what makes an
// interrupted purge safely resumable.
func (r *MediaRepository) SelectOldRemoteCache(ctx context.Context, beforeTS int64) ([]models.MediaKey, error) {
	const query = `SELECT media_origin, media_id
	FROM remote_media_cache
	WHERE last_access_ts < $1
	ORDER BY last_access_ts ASC, media_origin ASC, media_id ASC`
	keys := []models.MediaKey{}
	if err := r.db.SelectContext(ctx, &keys, query, beforeTS); err != nil {
		return nil, fmt.Errorf("select old remote cache: %w", err)
	}
	return keys, nil
}

// SelectOldLocal returns local media created before beforeTS and larger
// than sizeGt bytes. With keepProfiles set, media currently referenced as a
// profile avatar is excluded regardless of age and size.
func (r *MediaRepository) SelectOldLocal(ctx context.Context, beforeTS, sizeGt int64, keepProfiles bool) ([]string, error) {
	query := `SELECT media_id FROM local_media_repository
	WHERE created_ts < $1 AND media_length > $2`
	if keepProfiles {
		query += `
	AND NOT EXISTS (
		SELECT 1 FROM profiles
		WHERE avatar_url = 'mxc://' || $3 || '/' || media_id
	)`
	}
	query += `
	ORDER BY created_ts ASC, media_id ASC`

	ids := []string{}
	var err error
	if keepProfiles {
		err = r.db.SelectContext(ctx, &ids, query, beforeTS, sizeGt, r.serverName)
	} else {
		err = r.db.SelectContext(ctx, &ids, query, beforeTS, sizeGt)
	}
	if err != nil {
		return nil, fmt.Errorf("select old local media: %w", err)
	}
	return ids, nil
}

// UpdateLastAccess touches last_access_ts for the given keys. GREATEST keeps
// the column monotonic even when touches race.
func (r *MediaRepository) UpdateLastAccess(ctx context.Context, keys []models.MediaKey, ts int64) error {
	localIDs := make([]string, 0, len(keys))
	remoteIDs := make(map[string][]string)
	for _, key := range keys {
		if key.Origin == r.serverName {
			localIDs = append(localIDs, key.MediaID)
		} else {
			remoteIDs[key.Origin] = append(remoteIDs[key.Origin], key.MediaID)
		}
	}

	if len(localIDs) > 0 {
		const query = `UPDATE local_media_repository
		SET last_access_ts = GREATEST(COALESCE(last_access_ts, 0), $1)
		WHERE media_id = ANY($2)`
		if _, err := r.db.ExecContext(ctx, query, ts, pq.Array(localIDs)); err != nil {
			return fmt.Errorf("touch local media: %w", err)
		}
	}
	for origin, ids := range remoteIDs {
		const query = `UPDATE remote_media_cache
		SET last_access_ts = GREATEST(COALESCE(last_access_ts, 0), $1)
		WHERE media_origin = $2 AND media_id = ANY($3)`
		if _, err := r.db.ExecContext(ctx, query, ts, origin, pq.Array(ids)); err != nil {
			return fmt.Errorf("touch remote media: %w", err)
		}
	}
	return nil
}
