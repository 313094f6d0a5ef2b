package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meridian-im/media-admin-api/internal/models"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
)

type stubQuarantineStore struct {
	serverName    string
	localRecords  map[string]*models.MediaRecord
	remoteRecords map[models.MediaKey]*models.MediaRecord
	setErr        error
	safeErr       error

	quarantineKeys []models.MediaKey
	quarantineBy   *string
	byUserID       string
	safeCalls      []bool
	affected       int
}

func (s *stubQuarantineStore) ServerName() string { return s.serverName }

func (s *stubQuarantineStore) GetLocal(_ context.Context, mediaID string) (*models.MediaRecord, error) {
	rec, ok := s.localRecords[mediaID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

func (s *stubQuarantineStore) GetRemote(_ context.Context, origin, mediaID string) (*models.MediaRecord, error) {
	rec, ok := s.remoteRecords[models.MediaKey{Origin: origin, MediaID: mediaID}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

func (s *stubQuarantineStore) SetQuarantine(_ context.Context, keys []models.MediaKey, quarantinedBy *string) (int, error) {
	if s.setErr != nil {
		return 0, s.setErr
	}
	s.quarantineKeys = keys
	s.quarantineBy = quarantinedBy
	return s.affected, nil
}

func (s *stubQuarantineStore) QuarantineByUser(_ context.Context, userID, _ string) (int, error) {
	s.byUserID = userID
	return s.affected, nil
}

func (s *stubQuarantineStore) SetSafe(_ context.Context, _ string, safe bool) error {
	if s.safeErr != nil {
		return s.safeErr
	}
	s.safeCalls = append(s.safeCalls, safe)
	return nil
}

type stubResolver struct {
	media       *models.RoomMedia
	err         error
	invalidated []string
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (*models.RoomMedia, error) {
	return s.media, s.err
}

func (s *stubResolver) Invalidate(_ context.Context, roomID string) {
	s.invalidated = append(s.invalidated, roomID)
}

type stubUserDirectory struct {
	users map[string]bool
	err   error
}

func (s *stubUserDirectory) Exists(_ context.Context, name string) (bool, error) {
	return s.users[name], s.err
}

type recordingAudit struct {
	entries []*models.AuditEntry
}

func (a *recordingAudit) Record(_ context.Context, entry *models.AuditEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

func assertErrCode(t *testing.T, err error, want string) {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, want, appErr.Code)
}

func TestQuarantineRoomQuarantinesLocalAndRemote(t *testing.T) {
	store := &stubQuarantineStore{serverName: "example.com", affected: 3}
	resolver := &stubResolver{media: &models.RoomMedia{
		Local:  []string{"aaa", "bbb"},
		Remote: []models.MediaKey{{Origin: "other.org", MediaID: "ccc"}},
	}}
	audit := &recordingAudit{}
	svc := NewQuarantineService(store, resolver, &stubUserDirectory{}, audit, nil, zap.NewNop())

	affected, err := svc.QuarantineRoom(context.Background(), "!room:example.com", "@admin:example.com")
	require.NoError(t, err)

	assert.Equal(t, 3, affected)
	assert.Equal(t, []models.MediaKey{
		{Origin: "example.com", MediaID: "aaa"},
		{Origin: "example.com", MediaID: "bbb"},
		{Origin: "other.org", MediaID: "ccc"},
	}, store.quarantineKeys)
	require.NotNil(t, store.quarantineBy)
	assert.Equal(t, "@admin:example.com", *store.quarantineBy)
	assert.Equal(t, []string{"!room:example.com"}, resolver.invalidated)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditQuarantineRoom, audit.entries[0].Action)
}

func TestQuarantineRoomPropagatesResolveError(t *testing.T) {
	resolver := &stubResolver{err: appErrors.Clone(appErrors.ErrNotFound, "room not known to this server")}
	svc := NewQuarantineService(&stubQuarantineStore{serverName: "example.com"}, resolver, &stubUserDirectory{}, nil, nil, zap.NewNop())

	_, err := svc.QuarantineRoom(context.Background(), "!gone:example.com", "@admin:example.com")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestQuarantineUserRejectsRemoteUser(t *testing.T) {
	svc := NewQuarantineService(&stubQuarantineStore{serverName: "example.com"}, &stubResolver{}, &stubUserDirectory{}, nil, nil, zap.NewNop())

	_, err := svc.QuarantineUser(context.Background(), "@bob:other.org", "@admin:example.com")
	assertErrCode(t, err, appErrors.ErrInvalidParam.Code)
}

func TestQuarantineUserUnknownUser(t *testing.T) {
	svc := NewQuarantineService(&stubQuarantineStore{serverName: "example.com"}, &stubResolver{}, &stubUserDirectory{users: map[string]bool{}}, nil, nil, zap.NewNop())

	_, err := svc.QuarantineUser(context.Background(), "@ghost:example.com", "@admin:example.com")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestQuarantineUserHappyPath(t *testing.T) {
	store := &stubQuarantineStore{serverName: "example.com", affected: 5}
	users := &stubUserDirectory{users: map[string]bool{"@bob:example.com": true}}
	svc := NewQuarantineService(store, &stubResolver{}, users, nil, nil, zap.NewNop())

	affected, err := svc.QuarantineUser(context.Background(), "@bob:example.com", "@admin:example.com")
	require.NoError(t, err)

	assert.Equal(t, 5, affected)
	assert.Equal(t, "@bob:example.com", store.byUserID)
}

func TestQuarantineByIDUnknownMedia(t *testing.T) {
	svc := NewQuarantineService(&stubQuarantineStore{serverName: "example.com"}, &stubResolver{}, &stubUserDirectory{}, nil, nil, zap.NewNop())

	err := svc.QuarantineByID(context.Background(), "example.com", "missing", "@admin:example.com")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestQuarantineByIDRemoteMedia(t *testing.T) {
	key := models.MediaKey{Origin: "other.org", MediaID: "abc"}
	store := &stubQuarantineStore{
		serverName:    "example.com",
		remoteRecords: map[models.MediaKey]*models.MediaRecord{key: {MediaID: "abc"}},
		affected:      1,
	}
	svc := NewQuarantineService(store, &stubResolver{}, &stubUserDirectory{}, nil, nil, zap.NewNop())

	err := svc.QuarantineByID(context.Background(), "other.org", "abc", "@admin:example.com")
	require.NoError(t, err)
	assert.Equal(t, []models.MediaKey{key}, store.quarantineKeys)
}

func TestUnquarantineByIDClearsWithoutExistenceCheck(t *testing.T) {
	store := &stubQuarantineStore{serverName: "example.com"}
	svc := NewQuarantineService(store, &stubResolver{}, &stubUserDirectory{}, nil, nil, zap.NewNop())

	// Unknown media is fine: clearing is idempotent.
	err := svc.UnquarantineByID(context.Background(), "example.com", "missing", "@admin:example.com")
	require.NoError(t, err)
	assert.Nil(t, store.quarantineBy)
}

func TestProtectUnknownMedia(t *testing.T) {
	store := &stubQuarantineStore{serverName: "example.com", safeErr: sql.ErrNoRows}
	svc := NewQuarantineService(store, &stubResolver{}, &stubUserDirectory{}, nil, nil, zap.NewNop())

	err := svc.Protect(context.Background(), "missing", "@admin:example.com")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestProtectAndUnprotect(t *testing.T) {
	store := &stubQuarantineStore{serverName: "example.com"}
	audit := &recordingAudit{}
	svc := NewQuarantineService(store, &stubResolver{}, &stubUserDirectory{}, audit, nil, zap.NewNop())

	require.NoError(t, svc.Protect(context.Background(), "abc", "@admin:example.com"))
	require.NoError(t, svc.Unprotect(context.Background(), "abc", "@admin:example.com"))

	assert.Equal(t, []bool{true, false}, store.safeCalls)
	require.Len(t, audit.entries, 2)
	assert.Equal(t, models.AuditProtectMedia, audit.entries[0].Action)
	assert.Equal(t, models.AuditUnprotectMedia, audit.entries[1].Action)
}

func TestQuarantineStoreFailureMapsToStorageUnavailable(t *testing.T) {
	store := &stubQuarantineStore{serverName: "example.com", setErr: errors.New("connection refused")}
	resolver := &stubResolver{media: &models.RoomMedia{Local: []string{"aaa"}, Remote: []models.MediaKey{}}}
	svc := NewQuarantineService(store, resolver, &stubUserDirectory{}, nil, nil, zap.NewNop())

	_, err := svc.QuarantineRoom(context.Background(), "!room:example.com", "@admin:example.com")
	assertErrCode(t, err, appErrors.ErrStorageUnavailable.Code)
}
