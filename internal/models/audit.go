package models

import "time"

// AuditEntry records one administrative media action.
type AuditEntry struct {
	ID        string    `db:"id" json:"id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	Action    string    `db:"action" json:"action"`
	Target    string    `db:"target" json:"target"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Audit action names.
const (
	AuditQuarantineRoom  = "quarantine_room"
	AuditQuarantineUser  = "quarantine_user"
	AuditQuarantineMedia = "quarantine_media"
	AuditUnquarantine    = "unquarantine_media"
	AuditProtectMedia    = "protect_media"
	AuditUnprotectMedia  = "unprotect_media"
	AuditDeleteMedia     = "delete_media"
	AuditPurgeRemote     = "purge_remote_cache"
	AuditDeleteOldLocal  = "delete_old_local_media"
)
