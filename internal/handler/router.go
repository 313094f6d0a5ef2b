package handler

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the admin media API under prefix. Every route runs
// behind the given auth middleware chain.
func RegisterRoutes(r *gin.Engine, prefix string, media *MediaHandler, quarantine *QuarantineHandler, purge *PurgeHandler, audit *AuditHandler, auth ...gin.HandlerFunc) {
	group := r.Group(prefix, auth...)

	group.GET("/room/:room_id/media", media.ListRoomMedia)
	group.POST("/room/:room_id/media/quarantine", quarantine.QuarantineRoom)

	group.GET("/users/:user_id/media", media.ListUserMedia)
	group.DELETE("/users/:user_id/media", media.DeleteUserMedia)
	group.POST("/user/:user_id/media/quarantine", quarantine.QuarantineUser)

	group.POST("/media/quarantine/:server_name/:media_id", quarantine.QuarantineMedia)
	group.POST("/media/unquarantine/:server_name/:media_id", quarantine.UnquarantineMedia)
	group.POST("/media/protect/:media_id", quarantine.ProtectMedia)
	group.POST("/media/unprotect/:media_id", quarantine.UnprotectMedia)

	group.POST("/media/delete", purge.DeleteOldLocalMedia)
	group.POST("/media/:server_name/delete", purge.DeleteOldLocalMediaByServer)
	group.GET("/audit", audit.ListRecent)
	group.POST("/purge_media_cache", purge.PurgeRemoteCache)
	group.DELETE("/media/:server_name/:media_id", purge.DeleteMedia)
}
