package models

// MediaKey identifies one media object. Origin plus MediaID is unique and
// immutable for the record's lifetime.
type MediaKey struct {
	Origin  string `db:"media_origin" json:"origin"`
	MediaID string `db:"media_id" json:"media_id"`
}

// MediaRecord holds per-media metadata and governance flags. Local rows
// (origin equal to this server's name) carry the uploader and the
// safe_from_quarantine protection flag; cached remote rows do not.
type MediaRecord struct {
	Origin             string  `db:"media_origin" json:"-"`
	MediaID            string  `db:"media_id" json:"media_id"`
	UserID             string  `db:"user_id" json:"-"`
	MediaType          string  `db:"media_type" json:"media_type"`
	MediaLength        int64   `db:"media_length" json:"media_length"`
	UploadName         *string `db:"upload_name" json:"upload_name"`
	CreatedTS          int64   `db:"created_ts" json:"created_ts"`
	LastAccessTS       *int64  `db:"last_access_ts" json:"last_access_ts"`
	QuarantinedBy      *string `db:"quarantined_by" json:"quarantined_by"`
	SafeFromQuarantine bool    `db:"safe_from_quarantine" json:"safe_from_quarantine"`
}

// MediaSortOrder enumerates the sortable columns of the user media listing.
type MediaSortOrder string

const (
	SortMediaID            MediaSortOrder = "media_id"
	SortUploadName         MediaSortOrder = "upload_name"
	SortCreatedTS          MediaSortOrder = "created_ts"
	SortLastAccessTS       MediaSortOrder = "last_access_ts"
	SortMediaLength        MediaSortOrder = "media_length"
	SortMediaType          MediaSortOrder = "media_type"
	SortQuarantinedBy      MediaSortOrder = "quarantined_by"
	SortSafeFromQuarantine MediaSortOrder = "safe_from_quarantine"
)

// Valid reports whether the sort order is one of the allowed columns.
func (o MediaSortOrder) Valid() bool {
	switch o {
	case SortMediaID, SortUploadName, SortCreatedTS, SortLastAccessTS,
		SortMediaLength, SortMediaType, SortQuarantinedBy, SortSafeFromQuarantine:
		return true
	}
	return false
}

// SortDirection is the listing direction: "f" forward, "b" backward.
type SortDirection string

const (
	SortForward  SortDirection = "f"
	SortBackward SortDirection = "b"
)

// Valid reports whether the direction is one of the allowed values.
func (d SortDirection) Valid() bool {
	return d == SortForward || d == SortBackward
}

// UserMediaPage is one page of a user's local media plus the total count.
// NextToken is present exactly when more rows remain beyond this page; its
// value is the offset of the next page.
type UserMediaPage struct {
	Media     []MediaRecord `json:"media"`
	Total     int           `json:"total"`
	NextToken *int          `json:"next_token,omitempty"`
}

// RoomMedia is the resolved set of media referenced by a room's events.
type RoomMedia struct {
	Local  []string   `json:"local"`
	Remote []MediaKey `json:"remote"`
}

// PurgeResult reports a deletion batch: the IDs whose record and bytes were
// both removed, and the number of candidates considered.
type PurgeResult struct {
	DeletedMedia []string `json:"deleted_media"`
	Total        int      `json:"total"`
}
