package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"alertnet/backend/pkg/wire"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer
	maxMessageSize = 64 * 1024

	// Outbound buffer per connection
	sendBufferSize = 256
)

// Client is one live websocket connection. It is owned by the Hub for its
// lifetime; on disconnect the Hub removes it from every joined room.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	hub    *Hub

	mu     sync.Mutex
	closed bool
}

// Enqueue hands a prepared frame to the connection's write pump without
// blocking. Returns false when the buffer is full or the connection has been
// torn down. The mutex makes enqueue and closeSend mutually exclusive:
// broadcasts run on other connections' read goroutines and may hold a
// membership snapshot that predates this connection's teardown.
func (c *Client) Enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// closeSend marks the connection torn down and releases its write pump.
// Called exactly once by the hub on unregister; safe against concurrent
// Enqueue callers.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// ReadPump consumes inbound frames until the transport fails, dispatching
// each event to the registry or the coordinator. It runs as the connection's
// single event-handling goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", "connection_id", c.ID, "error", err.Error())
			}
			break
		}

		var event wire.Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.hub.log.Warn("discarding unparseable frame", "connection_id", c.ID, "error", err.Error())
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event wire.Event) {
	switch event.Type {
	case wire.TypeJoinRoom:
		var join wire.JoinRoom
		if err := event.Decode(&join); err != nil || join.RoomKey == "" {
			c.hub.log.Warn("discarding malformed joinRoom", "connection_id", c.ID)
			return
		}
		c.hub.Registry.Join(c, join.RoomKey)
		c.hub.log.Info("connection joined room",
			"connection_id", c.ID,
			"room_key", join.RoomKey,
		)

	case wire.TypeSendMessage:
		var send wire.SendMessage
		if err := event.Decode(&send); err != nil {
			c.hub.log.Warn("discarding malformed sendMessage", "connection_id", c.ID)
			return
		}
		c.hub.Coordinator.HandleSend(context.Background(), send)

	case wire.TypePing:
		c.sendEvent(wire.TypePong, nil)

	default:
		c.hub.log.Warn("unknown event type", "connection_id", c.ID, "type", event.Type)
	}
}

func (c *Client) sendEvent(eventType string, content any) {
	event, err := wire.NewEvent(eventType, content)
	if err != nil {
		c.hub.log.Error("failed to encode event", "type", eventType, "error", err.Error())
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		c.hub.log.Error("failed to encode event", "type", eventType, "error", err.Error())
		return
	}
	c.Enqueue(payload)
}

// WritePump flushes queued frames to the transport and keeps the connection
// alive with periodic pings. One per connection; serializes all writes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

			// Drain anything already queued as separate frames.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
