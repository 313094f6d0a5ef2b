package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-im/media-admin-api/internal/models"
)

func newPurgeRouter(purger *stubPurgerSvc) *gin.Engine {
	r := gin.New()
	RegisterRoutes(r, "/_admin/v1",
		NewMediaHandler(&stubResolverSvc{}, &stubMediaSvc{}, purger),
		NewQuarantineHandler(&stubQuarantineSvc{}),
		NewPurgeHandler(purger, "example.com"),
		NewAuditHandler(&stubAuditLog{}),
		adminClaims())
	return r
}

func TestPurgeRemoteCacheEndpoint(t *testing.T) {
	purger := &stubPurgerSvc{result: &models.PurgeResult{DeletedMedia: []string{"aaa"}, Total: 1}}
	r := newPurgeRouter(purger)

	w := doRequest(r, http.MethodPost, "/_admin/v1/purge_media_cache?before_ts=40000000000")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(40000000000), purger.before)

	var result models.PurgeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, []string{"aaa"}, result.DeletedMedia)
	assert.Equal(t, 1, result.Total)
}

func TestPurgeRemoteCacheMissingBeforeTS(t *testing.T) {
	r := newPurgeRouter(&stubPurgerSvc{})

	w := doRequest(r, http.MethodPost, "/_admin/v1/purge_media_cache")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteOldLocalMediaEndpointDefaults(t *testing.T) {
	purger := &stubPurgerSvc{result: &models.PurgeResult{DeletedMedia: []string{}, Total: 0}}
	r := newPurgeRouter(purger)

	w := doRequest(r, http.MethodPost, "/_admin/v1/media/delete?before_ts=40000000000")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(40000000000), purger.before)
	assert.Equal(t, int64(0), purger.sizeGt)
	assert.True(t, purger.keep)
}

func TestDeleteOldLocalMediaEndpointExplicitParams(t *testing.T) {
	purger := &stubPurgerSvc{result: &models.PurgeResult{DeletedMedia: []string{}, Total: 0}}
	r := newPurgeRouter(purger)

	w := doRequest(r, http.MethodPost, "/_admin/v1/media/delete?before_ts=40000000000&size_gt=1024&keep_profiles=false")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1024), purger.sizeGt)
	assert.False(t, purger.keep)
}

func TestDeleteOldLocalMediaRejectsBadSizeGt(t *testing.T) {
	r := newPurgeRouter(&stubPurgerSvc{})

	w := doRequest(r, http.MethodPost, "/_admin/v1/media/delete?before_ts=40000000000&size_gt=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteOldLocalMediaByServerRejectsForeignOrigin(t *testing.T) {
	r := newPurgeRouter(&stubPurgerSvc{})

	w := doRequest(r, http.MethodPost, "/_admin/v1/media/other.org/delete?before_ts=40000000000")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteOldLocalMediaByServerAcceptsOwnOrigin(t *testing.T) {
	purger := &stubPurgerSvc{result: &models.PurgeResult{DeletedMedia: []string{}, Total: 0}}
	r := newPurgeRouter(purger)

	w := doRequest(r, http.MethodPost, "/_admin/v1/media/example.com/delete?before_ts=40000000000")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(40000000000), purger.before)
}

func TestDeleteMediaEndpoint(t *testing.T) {
	purger := &stubPurgerSvc{result: &models.PurgeResult{DeletedMedia: []string{"abc"}, Total: 1}}
	r := newPurgeRouter(purger)

	w := doRequest(r, http.MethodDelete, "/_admin/v1/media/example.com/abc")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "example.com", purger.server)
	assert.Equal(t, "abc", purger.mediaID)
}
