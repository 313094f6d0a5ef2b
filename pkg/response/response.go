package response

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/meridian-im/media-admin-api/pkg/errors"
)

// ErrorBody wraps the typed error in the common error contract. Success
// payloads are written as-is: the admin API mirrors the wire shapes that
// existing homeserver admin tooling expects (num_quarantined, deleted_media,
// next_token and friends), so no data envelope is applied.
type ErrorBody struct {
	Error *appErrors.Error `json:"error"`
}

// JSON sends a success response.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, ErrorBody{Error: appErr})
}
