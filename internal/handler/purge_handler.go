package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meridian-im/media-admin-api/internal/models"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
	"github.com/meridian-im/media-admin-api/pkg/response"
)

type purgeService interface {
	PurgeRemoteCache(ctx context.Context, beforeTS int64, actor string) (*models.PurgeResult, error)
	DeleteOldLocalMedia(ctx context.Context, beforeTS, sizeGt int64, keepProfiles bool, actor string) (*models.PurgeResult, error)
	DeleteByID(ctx context.Context, serverName, mediaID, actor string) (*models.PurgeResult, error)
}

// PurgeHandler exposes the retention and deletion endpoints.
type PurgeHandler struct {
	service    purgeService
	serverName string
}

// NewPurgeHandler constructs the handler.
func NewPurgeHandler(service purgeService, serverName string) *PurgeHandler {
	return &PurgeHandler{service: service, serverName: serverName}
}

// PurgeRemoteCache deletes cached remote media not accessed since before_ts.
func (h *PurgeHandler) PurgeRemoteCache(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	beforeTS, err := int64Query(c, "before_ts", -1)
	if err != nil || beforeTS < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidParam, "query parameter before_ts must be a positive integer"))
		return
	}

	result, err := h.service.PurgeRemoteCache(c.Request.Context(), beforeTS, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, result)
}

// DeleteOldLocalMedia deletes local media by age, size and profile criteria.
func (h *PurgeHandler) DeleteOldLocalMedia(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	beforeTS, err := int64Query(c, "before_ts", -1)
	if err != nil || beforeTS < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidParam, "query parameter before_ts must be a positive integer"))
		return
	}
	sizeGt, err := int64Query(c, "size_gt", 0)
	if err != nil || sizeGt < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidParam, "query parameter size_gt must be a string representing a positive integer"))
		return
	}
	keepProfiles, err := boolQuery(c, "keep_profiles", true)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidParam, "query parameter keep_profiles must be a boolean"))
		return
	}

	result, err := h.service.DeleteOldLocalMedia(c.Request.Context(), beforeTS, sizeGt, keepProfiles, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, result)
}

// DeleteOldLocalMediaByServer is the path-scoped variant of
// DeleteOldLocalMedia. The path names an origin, but only this server's own
// media can be deleted.
func (h *PurgeHandler) DeleteOldLocalMediaByServer(c *gin.Context) {
	if c.Param("server_name") != h.serverName {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidParam, "can only delete local media"))
		return
	}
	h.DeleteOldLocalMedia(c)
}

// DeleteMedia deletes one local media item by ID.
func (h *PurgeHandler) DeleteMedia(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.service.DeleteByID(c.Request.Context(), c.Param("server_name"), c.Param("media_id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, result)
}

func int64Query(c *gin.Context, name string, fallback int64) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func boolQuery(c *gin.Context, name string, fallback bool) (bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return fallback, nil
	}
	return strconv.ParseBool(raw)
}
