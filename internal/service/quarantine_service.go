package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meridian-im/media-admin-api/internal/models"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
)

type quarantineStore interface {
	ServerName() string
	GetLocal(ctx context.Context, mediaID string) (*models.MediaRecord, error)
	GetRemote(ctx context.Context, origin, mediaID string) (*models.MediaRecord, error)
	SetQuarantine(ctx context.Context, keys []models.MediaKey, quarantinedBy *string) (int, error)
	QuarantineByUser(ctx context.Context, userID, quarantinedBy string) (int, error)
	SetSafe(ctx context.Context, mediaID string, safe bool) error
}

type roomResolver interface {
	Resolve(ctx context.Context, roomID string) (*models.RoomMedia, error)
	Invalidate(ctx context.Context, roomID string)
}

type userDirectory interface {
	Exists(ctx context.Context, name string) (bool, error)
}

type auditLogger interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
}

// QuarantineService applies and reverts the quarantine flag across resolved
// media sets. The protection flag always wins: protected records are skipped
// by every quarantine path, and affected counts reflect only the records
// whose flag actually changed in that call.
type QuarantineService struct {
	store    quarantineStore
	resolver roomResolver
	users    userDirectory
	audit    auditLogger
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewQuarantineService constructs the service.
func NewQuarantineService(store quarantineStore, resolver roomResolver, users userDirectory, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *QuarantineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuarantineService{
		store:    store,
		resolver: resolver,
		users:    users,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}
}

// QuarantineRoom quarantines all media referenced in a room, local and
// remote, and returns the number of records whose flag changed.
func (s *QuarantineService) QuarantineRoom(ctx context.Context, roomID, actor string) (int, error) {
	media, err := s.resolver.Resolve(ctx, roomID)
	if err != nil {
		return 0, err
	}

	keys := make([]models.MediaKey, 0, len(media.Local)+len(media.Remote))
	for _, mediaID := range media.Local {
		keys = append(keys, models.MediaKey{Origin: s.store.ServerName(), MediaID: mediaID})
	}
	keys = append(keys, media.Remote...)

	affected, err := s.store.SetQuarantine(ctx, keys, &actor)
	if err != nil {
		return affected, storeError(err, "quarantine room media")
	}

	s.resolver.Invalidate(ctx, roomID)
	s.metrics.RecordQuarantined("room", affected)
	s.recordAudit(ctx, actor, models.AuditQuarantineRoom, roomID, fmt.Sprintf("num_quarantined=%d", affected))
	s.logger.Info("quarantined room media",
		zap.String("room_id", roomID),
		zap.String("actor", actor),
		zap.Int("num_quarantined", affected))
	return affected, nil
}

// QuarantineUser quarantines all unprotected local media uploaded by a
// local user.
func (s *QuarantineService) QuarantineUser(ctx context.Context, userID, actor string) (int, error) {
	if !isLocalUserOf(userID, s.store.ServerName()) {
		return 0, appErrors.Clone(appErrors.ErrInvalidParam, "can only quarantine media of local users")
	}
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return 0, storeError(err, "user lookup")
	}
	if !exists {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "unknown user")
	}

	affected, err := s.store.QuarantineByUser(ctx, userID, actor)
	if err != nil {
		return affected, storeError(err, "quarantine user media")
	}

	s.metrics.RecordQuarantined("user", affected)
	s.recordAudit(ctx, actor, models.AuditQuarantineUser, userID, fmt.Sprintf("num_quarantined=%d", affected))
	return affected, nil
}

// QuarantineByID quarantines one media item, local or remote.
func (s *QuarantineService) QuarantineByID(ctx context.Context, origin, mediaID, actor string) error {
	if err := s.checkExists(ctx, origin, mediaID); err != nil {
		return err
	}

	key := models.MediaKey{Origin: origin, MediaID: mediaID}
	affected, err := s.store.SetQuarantine(ctx, []models.MediaKey{key}, &actor)
	if err != nil {
		return storeError(err, "quarantine media")
	}

	s.metrics.RecordQuarantined("id", affected)
	s.recordAudit(ctx, actor, models.AuditQuarantineMedia, origin+"/"+mediaID, "")
	return nil
}

// UnquarantineByID clears the quarantine flag on one media item. Clearing
// an already-clear or unknown record succeeds with no effect.
func (s *QuarantineService) UnquarantineByID(ctx context.Context, origin, mediaID, actor string) error {
	key := models.MediaKey{Origin: origin, MediaID: mediaID}
	if _, err := s.store.SetQuarantine(ctx, []models.MediaKey{key}, nil); err != nil {
		return storeError(err, "unquarantine media")
	}
	s.recordAudit(ctx, actor, models.AuditUnquarantine, origin+"/"+mediaID, "")
	return nil
}

// Protect marks a local media item safe from quarantine, clearing any
// existing quarantine. Protecting an already-protected item is a no-op.
func (s *QuarantineService) Protect(ctx context.Context, mediaID, actor string) error {
	if err := s.setSafe(ctx, mediaID, true); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, models.AuditProtectMedia, mediaID, "")
	return nil
}

// Unprotect removes quarantine protection from a local media item.
func (s *QuarantineService) Unprotect(ctx context.Context, mediaID, actor string) error {
	if err := s.setSafe(ctx, mediaID, false); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, models.AuditUnprotectMedia, mediaID, "")
	return nil
}

func (s *QuarantineService) setSafe(ctx context.Context, mediaID string, safe bool) error {
	err := s.store.SetSafe(ctx, mediaID, safe)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown media")
	}
	if err != nil {
		return storeError(err, "set media protection")
	}
	return nil
}

func (s *QuarantineService) checkExists(ctx context.Context, origin, mediaID string) error {
	var err error
	if origin == s.store.ServerName() {
		_, err = s.store.GetLocal(ctx, mediaID)
	} else {
		_, err = s.store.GetRemote(ctx, origin, mediaID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown media")
	}
	if err != nil {
		return storeError(err, "media lookup")
	}
	return nil
}

// isLocalUserOf reports whether the user ID's domain part names this server.
func isLocalUserOf(userID, serverName string) bool {
	idx := strings.IndexByte(userID, ':')
	return idx >= 0 && userID[idx+1:] == serverName
}

func (s *QuarantineService) recordAudit(ctx context.Context, actor, action, target, detail string) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditEntry{ActorID: actor, Action: action, Target: target, Detail: detail}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func storeError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, message)
}
