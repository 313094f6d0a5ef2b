package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-im/media-admin-api/internal/middleware"
	"github.com/meridian-im/media-admin-api/internal/models"
	"github.com/meridian-im/media-admin-api/internal/service"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolverSvc struct {
	media *models.RoomMedia
	err   error
}

func (s *stubResolverSvc) Resolve(_ context.Context, _ string) (*models.RoomMedia, error) {
	return s.media, s.err
}

type stubMediaSvc struct {
	page *models.UserMediaPage
	err  error
	got  service.UserMediaQuery
}

func (s *stubMediaSvc) ListUserMedia(_ context.Context, q service.UserMediaQuery) (*models.UserMediaPage, error) {
	s.got = q
	return s.page, s.err
}

type stubPurgerSvc struct {
	result  *models.PurgeResult
	err     error
	gotIDs  []string
	actor   string
	before  int64
	sizeGt  int64
	keep    bool
	server  string
	mediaID string
}

func (s *stubPurgerSvc) DeleteLocalMediaIDs(_ context.Context, mediaIDs []string, actor string) (*models.PurgeResult, error) {
	s.gotIDs = mediaIDs
	s.actor = actor
	return s.result, s.err
}

func (s *stubPurgerSvc) PurgeRemoteCache(_ context.Context, beforeTS int64, actor string) (*models.PurgeResult, error) {
	s.before = beforeTS
	s.actor = actor
	return s.result, s.err
}

func (s *stubPurgerSvc) DeleteOldLocalMedia(_ context.Context, beforeTS, sizeGt int64, keepProfiles bool, actor string) (*models.PurgeResult, error) {
	s.before = beforeTS
	s.sizeGt = sizeGt
	s.keep = keepProfiles
	s.actor = actor
	return s.result, s.err
}

func (s *stubPurgerSvc) DeleteByID(_ context.Context, serverName, mediaID, actor string) (*models.PurgeResult, error) {
	s.server = serverName
	s.mediaID = mediaID
	s.actor = actor
	return s.result, s.err
}

func adminClaims() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "@admin:example.com", Admin: true})
	}
}

func newTestRouter(resolver *stubResolverSvc, media *stubMediaSvc, purger *stubPurgerSvc) *gin.Engine {
	r := gin.New()
	RegisterRoutes(r, "/_admin/v1",
		NewMediaHandler(resolver, media, purger),
		NewQuarantineHandler(&stubQuarantineSvc{}),
		NewPurgeHandler(purger, "example.com"),
		NewAuditHandler(&stubAuditLog{}),
		adminClaims())
	return r
}

func doRequest(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestListRoomMedia(t *testing.T) {
	resolver := &stubResolverSvc{media: &models.RoomMedia{
		Local:  []string{"aaa"},
		Remote: []models.MediaKey{{Origin: "other.org", MediaID: "bbb"}},
	}}
	r := newTestRouter(resolver, &stubMediaSvc{}, &stubPurgerSvc{})

	w := doRequest(r, http.MethodGet, "/_admin/v1/room/!room:example.com/media")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Local  []string `json:"local"`
		Remote []struct {
			Origin  string `json:"origin"`
			MediaID string `json:"media_id"`
		} `json:"remote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"aaa"}, body.Local)
	require.Len(t, body.Remote, 1)
	assert.Equal(t, "other.org", body.Remote[0].Origin)
}

func TestListRoomMediaUnknownRoom(t *testing.T) {
	resolver := &stubResolverSvc{err: appErrors.Clone(appErrors.ErrNotFound, "room not known to this server")}
	r := newTestRouter(resolver, &stubMediaSvc{}, &stubPurgerSvc{})

	w := doRequest(r, http.MethodGet, "/_admin/v1/room/!gone:example.com/media")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListUserMediaDefaultsToLegacyOrdering(t *testing.T) {
	media := &stubMediaSvc{page: &models.UserMediaPage{Media: []models.MediaRecord{}}}
	r := newTestRouter(&stubResolverSvc{}, media, &stubPurgerSvc{})

	w := doRequest(r, http.MethodGet, "/_admin/v1/users/@bob:example.com/media")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "@bob:example.com", media.got.UserID)
	assert.Equal(t, 0, media.got.Offset)
	assert.Equal(t, 100, media.got.Limit)
	assert.Equal(t, models.SortCreatedTS, media.got.Order)
	assert.Equal(t, models.SortBackward, media.got.Dir)
}

func TestListUserMediaExplicitDirFlipsDefaults(t *testing.T) {
	media := &stubMediaSvc{page: &models.UserMediaPage{Media: []models.MediaRecord{}}}
	r := newTestRouter(&stubResolverSvc{}, media, &stubPurgerSvc{})

	w := doRequest(r, http.MethodGet, "/_admin/v1/users/@bob:example.com/media?dir=f&from=5&limit=10")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, media.got.Offset)
	assert.Equal(t, 10, media.got.Limit)
	assert.Equal(t, models.SortCreatedTS, media.got.Order)
	assert.Equal(t, models.SortForward, media.got.Dir)
}

func TestListUserMediaRejectsNonNumericFrom(t *testing.T) {
	r := newTestRouter(&stubResolverSvc{}, &stubMediaSvc{}, &stubPurgerSvc{})

	w := doRequest(r, http.MethodGet, "/_admin/v1/users/@bob:example.com/media?from=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteUserMediaDeletesListedPage(t *testing.T) {
	media := &stubMediaSvc{page: &models.UserMediaPage{
		Media: []models.MediaRecord{{MediaID: "aaa"}, {MediaID: "bbb"}},
		Total: 2,
	}}
	purger := &stubPurgerSvc{result: &models.PurgeResult{DeletedMedia: []string{"aaa", "bbb"}, Total: 2}}
	r := newTestRouter(&stubResolverSvc{}, media, purger)

	w := doRequest(r, http.MethodDelete, "/_admin/v1/users/@bob:example.com/media")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"aaa", "bbb"}, purger.gotIDs)
	assert.Equal(t, "@admin:example.com", purger.actor)

	var result models.PurgeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Total)
}
