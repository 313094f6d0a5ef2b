package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meridian-im/media-admin-api/internal/models"
	"github.com/meridian-im/media-admin-api/internal/service"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
	"github.com/meridian-im/media-admin-api/pkg/response"
)

type mediaResolver interface {
	Resolve(ctx context.Context, roomID string) (*models.RoomMedia, error)
}

type mediaService interface {
	ListUserMedia(ctx context.Context, q service.UserMediaQuery) (*models.UserMediaPage, error)
}

type userMediaPurger interface {
	DeleteLocalMediaIDs(ctx context.Context, mediaIDs []string, actor string) (*models.PurgeResult, error)
}

// MediaHandler serves room media listings and per-user media pages.
type MediaHandler struct {
	resolver mediaResolver
	media    mediaService
	purger   userMediaPurger
}

// NewMediaHandler constructs the handler.
func NewMediaHandler(resolver mediaResolver, media mediaService, purger userMediaPurger) *MediaHandler {
	return &MediaHandler{resolver: resolver, media: media, purger: purger}
}

// ListRoomMedia returns all media referenced in a room, split into local
// and remote.
func (h *MediaHandler) ListRoomMedia(c *gin.Context) {
	media, err := h.resolver.Resolve(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, media)
}

// ListUserMedia returns one page of a local user's uploads.
func (h *MediaHandler) ListUserMedia(c *gin.Context) {
	query, err := parseUserMediaQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.media.ListUserMedia(c.Request.Context(), *query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, page)
}

// DeleteUserMedia deletes one page of a local user's uploads and returns
// the IDs that were removed.
func (h *MediaHandler) DeleteUserMedia(c *gin.Context) {
	query, err := parseUserMediaQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.media.ListUserMedia(c.Request.Context(), *query)
	if err != nil {
		response.Error(c, err)
		return
	}

	ids := make([]string, len(page.Media))
	for i, record := range page.Media {
		ids[i] = record.MediaID
	}

	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.purger.DeleteLocalMediaIDs(c.Request.Context(), ids, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, models.PurgeResult{
		DeletedMedia: result.DeletedMedia,
		Total:        len(result.DeletedMedia),
	})
}

// parseUserMediaQuery reads the pagination parameters shared by the GET and
// DELETE user media endpoints. When the caller supplies neither order_by
// nor dir, ordering falls back to created_ts descending, matching clients
// written before the sort parameters existed. As soon as either parameter
// appears the defaults become created_ts ascending.
func parseUserMediaQuery(c *gin.Context) (*service.UserMediaQuery, error) {
	offset, err := intQuery(c, "from", 0)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidParam, "query parameter from must be a positive integer")
	}
	limit, err := intQuery(c, "limit", 100)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidParam, "query parameter limit must be a positive integer")
	}

	orderBy, hasOrder := c.GetQuery("order_by")
	dir, hasDir := c.GetQuery("dir")

	query := &service.UserMediaQuery{
		UserID: c.Param("user_id"),
		Offset: offset,
		Limit:  limit,
		Order:  models.SortCreatedTS,
		Dir:    models.SortForward,
	}
	if !hasOrder && !hasDir {
		query.Dir = models.SortBackward
		return query, nil
	}
	if hasOrder {
		query.Order = models.MediaSortOrder(orderBy)
	}
	if hasDir {
		query.Dir = models.SortDirection(dir)
	}
	return query, nil
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
