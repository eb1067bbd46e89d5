package ws

import (
	"context"
	"encoding/json"

	"alertnet/backend/chat/models"
	"alertnet/backend/chat/service"
	"alertnet/backend/pkg/logger"
	"alertnet/backend/pkg/wire"
	"alertnet/backend/shared/observability"
)

// MessageStore is the persistence contract the coordinator depends on.
type MessageStore interface {
	Append(ctx context.Context, req models.SendRequest) (*models.Message, error)
}

// Coordinator turns an inbound send event into one durable write followed by
// a broadcast to the room's current members. A message is never broadcast
// unless its append succeeded; a failed append produces zero deliveries.
type Coordinator struct {
	store    MessageStore
	registry *Registry
	log      *logger.Logger
	metrics  *observability.ChatMetrics
}

func NewCoordinator(store MessageStore, registry *Registry, log *logger.Logger, metrics *observability.ChatMetrics) *Coordinator {
	return &Coordinator{
		store:    store,
		registry: registry,
		log:      log,
		metrics:  metrics,
	}
}

// HandleSend processes one sendMessage event. Malformed events and store
// failures are logged and dropped; they never crash the connection task and
// never reach other clients.
func (co *Coordinator) HandleSend(ctx context.Context, req wire.SendMessage) {
	if req.IncidentID == "" || req.SenderID == "" || req.ReceiverID == "" || req.Text == "" {
		co.log.Warn("dropping incomplete send event",
			"incident_id", req.IncidentID,
			"sender_id", req.SenderID,
		)
		co.metrics.EventDropped()
		return
	}

	message, err := co.store.Append(ctx, models.SendRequest{
		IncidentID: req.IncidentID,
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
	})
	if err != nil {
		if service.IsValidation(err) {
			co.log.Warn("dropping invalid send event", "error", err.Error())
			co.metrics.EventDropped()
			return
		}
		co.log.Error("message append failed, suppressing broadcast",
			"incident_id", req.IncidentID,
			"sender_id", req.SenderID,
			"error", err.Error(),
		)
		co.metrics.StoreFailure()
		return
	}
	co.metrics.MessagePersisted()

	event, err := wire.NewEvent(wire.TypeReceiveMessage, wire.ReceiveMessage{
		ID:         message.ID,
		IncidentID: message.IncidentID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Text:       message.Text,
		RoomKey:    message.RoomKey,
		CreatedAt:  message.CreatedAt,
	})
	if err != nil {
		co.log.Error("failed to encode receiveMessage event", "error", err.Error())
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		co.log.Error("failed to encode receiveMessage event", "error", err.Error())
		return
	}

	for _, member := range co.registry.MembersOf(message.RoomKey) {
		if member.Enqueue(payload) {
			co.metrics.BroadcastDelivered()
		} else {
			// A member with a saturated send buffer is skipped; its own
			// write pump tears the connection down.
			co.log.Warn("skipping broadcast to slow connection",
				"connection_id", member.ID,
				"room_key", message.RoomKey,
			)
		}
	}
}
