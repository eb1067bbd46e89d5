package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ChatMetrics counts the observable outcomes of the chat subsystem. All
// methods are nil-safe so metrics can be left unwired in tests.
type ChatMetrics struct {
	messagesPersisted   prometheus.Counter
	broadcastsDelivered prometheus.Counter
	storeFailures       prometheus.Counter
	eventsDropped       prometheus.Counter
}

// NewChatMetrics registers the chat counters with the default registry.
func NewChatMetrics() *ChatMetrics {
	return &ChatMetrics{
		messagesPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages durably appended to the store.",
		}),
		broadcastsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chat_broadcasts_delivered_total",
			Help: "Message deliveries enqueued to room members.",
		}),
		storeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chat_store_failures_total",
			Help: "Appends rejected because the store was unavailable.",
		}),
		eventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chat_events_dropped_total",
			Help: "Malformed or invalid inbound events dropped.",
		}),
	}
}

func (m *ChatMetrics) MessagePersisted() {
	if m != nil {
		m.messagesPersisted.Inc()
	}
}

func (m *ChatMetrics) BroadcastDelivered() {
	if m != nil {
		m.broadcastsDelivered.Inc()
	}
}

func (m *ChatMetrics) StoreFailure() {
	if m != nil {
		m.storeFailures.Inc()
	}
}

func (m *ChatMetrics) EventDropped() {
	if m != nil {
		m.eventsDropped.Inc()
	}
}
