package ws

import (
	"net/http"
	"time"

	"alertnet/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin filtering happens at the edge
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// ServeWs upgrades the request and registers the connection with the hub.
// An optional token query parameter binds the caller's identity to the
// connection; identity may equally arrive later through a joinRoom event, so
// an absent or invalid token is not an error.
func ServeWs(hub *Hub, jwtService *jwt.Service, c *gin.Context) {
	userID := ""
	if token := c.Query("token"); token != "" {
		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			hub.log.Warn("ignoring invalid handshake token", "error", err.Error())
		} else {
			userID = claims.UserID
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
		hub:    hub,
	}

	hub.register <- client

	// A known identity implies membership of the user's personal room.
	if userID != "" {
		hub.Registry.Join(client, userID)
	}

	go client.WritePump()
	go client.ReadPump()
}
