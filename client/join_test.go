package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"alertnet/backend/pkg/logger"
	"alertnet/backend/pkg/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmitter struct {
	mu       sync.Mutex
	state    State
	epoch    uint64
	emitted  []wire.Event
	emitFail bool
}

func (f *fakeEmitter) Emit(event wire.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitFail {
		return errors.New("transport write failed")
	}
	f.emitted = append(f.emitted, event)
	return nil
}

func (f *fakeEmitter) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEmitter) Epoch() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epoch
}

func (f *fakeEmitter) connect() {
	f.mu.Lock()
	f.state = StateConnected
	f.epoch++
	f.mu.Unlock()
}

func (f *fakeEmitter) drop() {
	f.mu.Lock()
	f.state = StateReconnecting
	f.mu.Unlock()
}

func (f *fakeEmitter) joins() []wire.JoinRoom {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []wire.JoinRoom
	for _, event := range f.emitted {
		if event.Type == wire.TypeJoinRoom {
			var join wire.JoinRoom
			if err := event.Decode(&join); err == nil {
				out = append(out, join)
			}
		}
	}
	return out
}

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func TestJoinIdentityBeforeConnection(t *testing.T) {
	emitter := &fakeEmitter{}
	m := NewJoinManager(emitter, 10*time.Millisecond, testLog())
	defer m.Close()

	m.SetIdentity("U1")
	assert.Empty(t, emitter.joins(), "nothing to join until the transport is up")

	emitter.connect()
	m.HandleState(StateConnected)

	joins := emitter.joins()
	require.Len(t, joins, 1)
	assert.Equal(t, "U1", joins[0].RoomKey)
}

func TestJoinConnectionBeforeIdentity(t *testing.T) {
	emitter := &fakeEmitter{}
	m := NewJoinManager(emitter, 10*time.Millisecond, testLog())
	defer m.Close()

	emitter.connect()
	m.HandleState(StateConnected)
	assert.Empty(t, emitter.joins(), "join is deferred while identity is unknown")

	m.SetIdentity("U1")

	joins := emitter.joins()
	require.Len(t, joins, 1)
	assert.Equal(t, "U1", joins[0].RoomKey)
}

func TestAtMostOneJoinPerPair(t *testing.T) {
	emitter := &fakeEmitter{}
	m := NewJoinManager(emitter, 10*time.Millisecond, testLog())
	defer m.Close()

	emitter.connect()
	m.HandleState(StateConnected)

	// Identity resolves twice with the same value; only the first join
	// goes out.
	m.SetIdentity("U1")
	m.SetIdentity("U1")
	m.HandleState(StateConnected)

	assert.Len(t, emitter.joins(), 1)
}

func TestRecheckStaysUnjoinedWithoutIdentity(t *testing.T) {
	emitter := &fakeEmitter{}
	m := NewJoinManager(emitter, 5*time.Millisecond, testLog())
	defer m.Close()

	emitter.connect()
	m.HandleState(StateConnected)

	// Let the single deferred re-check fire with identity still unknown.
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, emitter.joins())

	// A fresh identity value re-triggers evaluation.
	m.SetIdentity("U1")
	assert.Len(t, emitter.joins(), 1)
}

func TestReconnectionTriggersNewJoin(t *testing.T) {
	emitter := &fakeEmitter{}
	m := NewJoinManager(emitter, 10*time.Millisecond, testLog())
	defer m.Close()

	m.SetIdentity("U1")
	emitter.connect()
	m.HandleState(StateConnected)
	require.Len(t, emitter.joins(), 1)

	emitter.drop()
	m.HandleState(StateReconnecting)
	emitter.connect()
	m.HandleState(StateConnected)

	assert.Len(t, emitter.joins(), 2, "a new transport instance joins again")
}

func TestIdentityChangeTriggersNewJoin(t *testing.T) {
	emitter := &fakeEmitter{}
	m := NewJoinManager(emitter, 10*time.Millisecond, testLog())
	defer m.Close()

	emitter.connect()
	m.HandleState(StateConnected)
	m.SetIdentity("U1")
	m.SetIdentity("U2")

	joins := emitter.joins()
	require.Len(t, joins, 2)
	assert.Equal(t, "U1", joins[0].RoomKey)
	assert.Equal(t, "U2", joins[1].RoomKey)
}

func TestFailedEmitIsRetriedOnNextEvaluation(t *testing.T) {
	emitter := &fakeEmitter{emitFail: true}
	m := NewJoinManager(emitter, 10*time.Millisecond, testLog())
	defer m.Close()

	emitter.connect()
	m.HandleState(StateConnected)
	m.SetIdentity("U1")
	assert.Empty(t, emitter.joins())

	emitter.mu.Lock()
	emitter.emitFail = false
	emitter.mu.Unlock()

	m.HandleState(StateConnected)
	assert.Len(t, emitter.joins(), 1)
}

func TestCloseCancelsPendingRecheck(t *testing.T) {
	emitter := &fakeEmitter{}
	m := NewJoinManager(emitter, 5*time.Millisecond, testLog())

	emitter.connect()
	m.HandleState(StateConnected)
	m.Close()

	m.SetIdentity("U1")
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, emitter.joins(), "a closed manager emits nothing")
}
