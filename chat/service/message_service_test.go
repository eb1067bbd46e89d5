package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"alertnet/backend/chat/models"
	"alertnet/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	created []models.Message
	failing bool
	byRoom  map[string][]models.Message
}

func (r *fakeRepo) Create(ctx context.Context, message *models.Message) error {
	if r.failing {
		return errors.New("connection refused")
	}
	r.created = append(r.created, *message)
	return nil
}

func (r *fakeRepo) ByRoomKey(ctx context.Context, roomKey string, limit, offset int) ([]models.Message, error) {
	if r.failing {
		return nil, errors.New("connection refused")
	}
	return r.byRoom[roomKey], nil
}

func (r *fakeRepo) ByIncident(ctx context.Context, incidentID string, limit, offset int) ([]models.Message, error) {
	if r.failing {
		return nil, errors.New("connection refused")
	}
	var out []models.Message
	for _, msgs := range r.byRoom {
		for _, m := range msgs {
			if m.IncidentID == incidentID {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func newTestService(repo *fakeRepo) *MessageService {
	log := logger.New(logger.Config{Level: "error"})
	return NewMessageService(repo, log, MessageServiceConfig{MaxMessageLength: 100})
}

func validDraft() models.SendRequest {
	return models.SendRequest{
		IncidentID: "I1",
		SenderID:   "U1",
		ReceiverID: "U2",
		Text:       "help needed",
	}
}

func TestAppendAssignsIDKeyAndTimestamp(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	msg, err := svc.Append(context.Background(), validDraft())
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "I1_U1_U2", msg.RoomKey)
	assert.False(t, msg.CreatedAt.IsZero())
	require.Len(t, repo.created, 1)
	assert.Equal(t, *msg, repo.created[0])
}

func TestAppendRequiredFields(t *testing.T) {
	svc := newTestService(&fakeRepo{})

	for field, mutate := range map[string]func(*models.SendRequest){
		"incidentId": func(d *models.SendRequest) { d.IncidentID = "" },
		"senderId":   func(d *models.SendRequest) { d.SenderID = "" },
		"receiverId": func(d *models.SendRequest) { d.ReceiverID = "" },
		"text":       func(d *models.SendRequest) { d.Text = "" },
	} {
		draft := validDraft()
		mutate(&draft)

		_, err := svc.Append(context.Background(), draft)
		require.Error(t, err, field)
		assert.True(t, IsValidation(err), field)

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, field, ve.Field)
	}
}

func TestAppendBoundsTextLength(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	draft := validDraft()
	draft.Text = strings.Repeat("x", 101)

	_, err := svc.Append(context.Background(), draft)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Empty(t, repo.created, "an invalid draft must not be persisted")
}

func TestAppendStoreUnavailable(t *testing.T) {
	repo := &fakeRepo{failing: true}
	svc := newTestService(repo)

	_, err := svc.Append(context.Background(), validDraft())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, IsValidation(err))
}

func TestAppendTimestampsMonotonic(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	var last *models.Message
	for i := 0; i < 100; i++ {
		msg, err := svc.Append(context.Background(), validDraft())
		require.NoError(t, err)
		if last != nil {
			assert.True(t, msg.CreatedAt.After(last.CreatedAt),
				"timestamps must strictly increase within the process")
		}
		last = msg
	}
}

func TestRoomMessagesMapsStoreFailure(t *testing.T) {
	svc := newTestService(&fakeRepo{failing: true})

	_, err := svc.RoomMessages(context.Background(), "I1_U1_U2", 0, 0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

type fakeCache struct {
	stored      map[string][]models.Message
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{stored: make(map[string][]models.Message)}
}

func (c *fakeCache) Recent(ctx context.Context, roomKey string) ([]models.Message, bool) {
	msgs, ok := c.stored[roomKey]
	return msgs, ok
}

func (c *fakeCache) StoreRecent(ctx context.Context, roomKey string, messages []models.Message) {
	c.stored[roomKey] = messages
}

func (c *fakeCache) Invalidate(ctx context.Context, roomKey string) {
	c.invalidated = append(c.invalidated, roomKey)
	delete(c.stored, roomKey)
}

func TestAppendInvalidatesCache(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(&fakeRepo{}).WithCache(cache)

	msg, err := svc.Append(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, []string{msg.RoomKey}, cache.invalidated)
}

func TestRoomMessagesServedFromCache(t *testing.T) {
	cache := newFakeCache()
	cached := []models.Message{{ID: "m1", RoomKey: "I1_U1_U2", Text: "hi"}}
	cache.stored["I1_U1_U2"] = cached

	// The repository would fail, proving the cache satisfied the read.
	svc := newTestService(&fakeRepo{failing: true}).WithCache(cache)

	msgs, err := svc.RoomMessages(context.Background(), "I1_U1_U2", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, cached, msgs)
}
