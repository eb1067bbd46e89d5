package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterChatRoutes mounts the read-only chat history surface under the
// given group, typically /api/v1.
func RegisterChatRoutes(group *gin.RouterGroup, handler *ChatHandler, middleware ...gin.HandlerFunc) {
	chatGroup := group.Group("/chat")
	chatGroup.Use(middleware...)
	{
		chatGroup.GET("/rooms/:roomKey/messages", handler.RoomMessages)
		chatGroup.GET("/history", handler.History)
		chatGroup.GET("/incidents/:incidentId/messages", handler.IncidentMessages)
	}
}
