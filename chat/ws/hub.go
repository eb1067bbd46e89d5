package ws

import (
	"alertnet/backend/pkg/logger"
)

// Hub owns every live connection. Registration and teardown funnel through
// its run loop so a connection is removed from the registry exactly once.
type Hub struct {
	Registry    *Registry
	Coordinator *Coordinator

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	log        *logger.Logger
}

func NewHub(registry *Registry, coordinator *Coordinator, log *logger.Logger) *Hub {
	return &Hub{
		Registry:    registry,
		Coordinator: coordinator,
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		log:         log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Info("connection registered",
				"connection_id", client.ID,
				"user_id", client.UserID,
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.Registry.LeaveAll(client)
				client.closeSend()
				h.log.Info("connection unregistered", "connection_id", client.ID)
			}
		}
	}
}
