package api

import (
	"net/http"
	"strconv"

	"alertnet/backend/chat/models"
	"alertnet/backend/chat/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves conversation history over HTTP. Messages are only ever
// created through the websocket coordinator; this surface is read-only.
type ChatHandler struct {
	messages *service.MessageService
}

func NewChatHandler(messages *service.MessageService) *ChatHandler {
	return &ChatHandler{messages: messages}
}

// RoomMessages returns a page of one room's history.
func (h *ChatHandler) RoomMessages(c *gin.Context) {
	roomKey := c.Param("roomKey")
	limit, offset := pagination(c)

	messages, err := h.messages.RoomMessages(c.Request.Context(), roomKey, limit, offset)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// History derives the room key from an incident and two participants, then
// returns that room's messages. Participant order does not matter.
func (h *ChatHandler) History(c *gin.Context) {
	incidentID := c.Query("incidentId")
	userA := c.Query("userA")
	userB := c.Query("userB")
	if incidentID == "" || userA == "" || userB == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "incidentId, userA and userB are required"})
		return
	}

	roomKey := models.RoomKeyFor(incidentID, userA, userB)
	limit, offset := pagination(c)

	messages, err := h.messages.RoomMessages(c.Request.Context(), roomKey, limit, offset)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_key": roomKey, "messages": messages})
}

// IncidentMessages returns every conversation attached to one incident.
func (h *ChatHandler) IncidentMessages(c *gin.Context) {
	incidentID := c.Param("incidentId")
	limit, offset := pagination(c)

	messages, err := h.messages.IncidentMessages(c.Request.Context(), incidentID, limit, offset)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
