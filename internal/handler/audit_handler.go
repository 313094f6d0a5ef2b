package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/meridian-im/media-admin-api/internal/models"
	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
	"github.com/meridian-im/media-admin-api/pkg/response"
)

type auditLog interface {
	ListRecent(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// AuditHandler serves the administrative action log.
type AuditHandler struct {
	log auditLog
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(log auditLog) *AuditHandler {
	return &AuditHandler{log: log}
}

// ListRecent returns the newest audit entries.
func (h *AuditHandler) ListRecent(c *gin.Context) {
	limit, err := intQuery(c, "limit", 100)
	if err != nil || limit < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidParam, "query parameter limit must be a positive integer"))
		return
	}

	entries, err := h.log.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "list audit log"))
		return
	}
	response.JSON(c, 200, gin.H{"entries": entries, "total": len(entries)})
}
