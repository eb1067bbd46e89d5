package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alertnet/backend/chat/models"
	"alertnet/backend/chat/repository"
	"alertnet/backend/pkg/logger"
	"alertnet/backend/pkg/resilience"

	"github.com/google/uuid"
)

// HistoryCache caches the most recent page of a room's history. A nil cache
// disables caching; persistence never depends on it.
type HistoryCache interface {
	Recent(ctx context.Context, roomKey string) ([]models.Message, bool)
	StoreRecent(ctx context.Context, roomKey string, messages []models.Message)
	Invalidate(ctx context.Context, roomKey string)
}

// MessageServiceConfig bounds message content and history pages.
type MessageServiceConfig struct {
	MaxMessageLength int
	HistoryPageSize  int
}

// DefaultMessageServiceConfig returns the defaults used when no explicit
// configuration is provided.
func DefaultMessageServiceConfig() MessageServiceConfig {
	return MessageServiceConfig{
		MaxMessageLength: 4096,
		HistoryPageSize:  50,
	}
}

// MessageService is the durable message store for incident conversations.
// Each successful Append produces exactly one immutable record with a
// generated id, a derived room key and a timestamp that is strictly
// monotonic within this process.
type MessageService struct {
	repo    repository.MessageRepository
	breaker *resilience.CircuitBreaker
	cache   HistoryCache
	log     *logger.Logger
	config  MessageServiceConfig

	mu        sync.Mutex
	lastStamp time.Time
}

func NewMessageService(repo repository.MessageRepository, log *logger.Logger, config MessageServiceConfig) *MessageService {
	if config.MaxMessageLength <= 0 {
		config.MaxMessageLength = DefaultMessageServiceConfig().MaxMessageLength
	}
	if config.HistoryPageSize <= 0 {
		config.HistoryPageSize = DefaultMessageServiceConfig().HistoryPageSize
	}
	return &MessageService{
		repo:   repo,
		log:    log,
		config: config,
	}
}

// WithBreaker guards every repository write and read with cb.
func (s *MessageService) WithBreaker(cb *resilience.CircuitBreaker) *MessageService {
	s.breaker = cb
	return s
}

// WithCache serves recent history pages from cache.
func (s *MessageService) WithCache(cache HistoryCache) *MessageService {
	s.cache = cache
	return s
}

// Append validates the draft and persists it as a new message. The returned
// record carries the generated id, the canonical room key and the assigned
// timestamp. A repository failure is reported as ErrStoreUnavailable and
// leaves no partial write behind.
func (s *MessageService) Append(ctx context.Context, req models.SendRequest) (*models.Message, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	message := &models.Message{
		ID:         uuid.New().String(),
		IncidentID: req.IncidentID,
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
		RoomKey:    models.RoomKeyFor(req.IncidentID, req.SenderID, req.ReceiverID),
		CreatedAt:  s.nextTimestamp(),
	}

	if err := s.persist(ctx, message); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, message.RoomKey)
	}

	return message, nil
}

// RoomMessages returns a page of a room's history in creation order. The
// first page is served from the cache when warm.
func (s *MessageService) RoomMessages(ctx context.Context, roomKey string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > s.config.HistoryPageSize {
		limit = s.config.HistoryPageSize
	}
	if offset < 0 {
		offset = 0
	}

	firstPage := offset == 0 && limit == s.config.HistoryPageSize
	if firstPage && s.cache != nil {
		if cached, ok := s.cache.Recent(ctx, roomKey); ok {
			return cached, nil
		}
	}

	var messages []models.Message
	err := s.execute(func() error {
		var repoErr error
		messages, repoErr = s.repo.ByRoomKey(ctx, roomKey, limit, offset)
		return repoErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if firstPage && s.cache != nil {
		s.cache.StoreRecent(ctx, roomKey, messages)
	}

	return messages, nil
}

// IncidentMessages returns a page of every conversation attached to one
// incident, in creation order.
func (s *MessageService) IncidentMessages(ctx context.Context, incidentID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > s.config.HistoryPageSize {
		limit = s.config.HistoryPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var messages []models.Message
	err := s.execute(func() error {
		var repoErr error
		messages, repoErr = s.repo.ByIncident(ctx, incidentID, limit, offset)
		return repoErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return messages, nil
}

func (s *MessageService) validate(req models.SendRequest) error {
	switch {
	case req.IncidentID == "":
		return &ValidationError{Field: "incidentId", Reason: "is required"}
	case req.SenderID == "":
		return &ValidationError{Field: "senderId", Reason: "is required"}
	case req.ReceiverID == "":
		return &ValidationError{Field: "receiverId", Reason: "is required"}
	case req.Text == "":
		return &ValidationError{Field: "text", Reason: "is required"}
	case len(req.Text) > s.config.MaxMessageLength:
		return &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("exceeds maximum length of %d", s.config.MaxMessageLength),
		}
	}
	return nil
}

// nextTimestamp assigns creation times that never repeat or run backwards
// within this process, even under clock adjustments.
func (s *MessageService) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = now
	return now
}

func (s *MessageService) persist(ctx context.Context, message *models.Message) error {
	return s.execute(func() error {
		return s.repo.Create(ctx, message)
	})
}

func (s *MessageService) execute(fn func() error) error {
	if s.breaker != nil {
		return s.breaker.Execute(fn)
	}
	return fn()
}
