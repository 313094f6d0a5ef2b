package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
	"github.com/meridian-im/media-admin-api/pkg/response"
)

type quarantineService interface {
	QuarantineRoom(ctx context.Context, roomID, actor string) (int, error)
	QuarantineUser(ctx context.Context, userID, actor string) (int, error)
	QuarantineByID(ctx context.Context, origin, mediaID, actor string) error
	UnquarantineByID(ctx context.Context, origin, mediaID, actor string) error
	Protect(ctx context.Context, mediaID, actor string) error
	Unprotect(ctx context.Context, mediaID, actor string) error
}

// QuarantineHandler exposes quarantine and protection endpoints.
type QuarantineHandler struct {
	service quarantineService
}

// NewQuarantineHandler constructs the handler.
func NewQuarantineHandler(service quarantineService) *QuarantineHandler {
	return &QuarantineHandler{service: service}
}

type quarantineCount struct {
	NumQuarantined int `json:"num_quarantined"`
}

// QuarantineRoom quarantines all media referenced in a room.
func (h *QuarantineHandler) QuarantineRoom(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	affected, err := h.service.QuarantineRoom(c.Request.Context(), c.Param("room_id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, quarantineCount{NumQuarantined: affected})
}

// QuarantineUser quarantines all local media uploaded by a user.
func (h *QuarantineHandler) QuarantineUser(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	affected, err := h.service.QuarantineUser(c.Request.Context(), c.Param("user_id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, quarantineCount{NumQuarantined: affected})
}

// QuarantineMedia quarantines one media item by origin and ID.
func (h *QuarantineHandler) QuarantineMedia(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.QuarantineByID(c.Request.Context(), c.Param("server_name"), c.Param("media_id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, gin.H{})
}

// UnquarantineMedia lifts the quarantine from one media item.
func (h *QuarantineHandler) UnquarantineMedia(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.UnquarantineByID(c.Request.Context(), c.Param("server_name"), c.Param("media_id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, gin.H{})
}

// ProtectMedia marks a local media item safe from quarantine.
func (h *QuarantineHandler) ProtectMedia(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Protect(c.Request.Context(), c.Param("media_id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, gin.H{})
}

// UnprotectMedia removes quarantine protection from a local media item.
func (h *QuarantineHandler) UnprotectMedia(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Unprotect(c.Request.Context(), c.Param("media_id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, gin.H{})
}
