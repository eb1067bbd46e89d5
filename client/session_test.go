package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"alertnet/backend/pkg/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written [][]byte
	closed  bool
	done    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 8),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return 1, data, nil
	case <-c.done:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed connection")
	}
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) drop() { c.Close() }

func (c *fakeConn) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

// fakeDialer fails the first `failures` dials, then hands out fresh fake
// connections.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures {
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func newTestSession(dialer Dialer, attempts int) *Session {
	return NewSession(Config{
		URL:               "ws://127.0.0.1:0/ws/chat",
		ReconnectAttempts: attempts,
		ReconnectDelay:    5 * time.Millisecond,
		Dialer:            dialer,
		Logger:            testLog(),
	})
}

func TestSessionConnectsAndEmits(t *testing.T) {
	dialer := &fakeDialer{}
	sess := newTestSession(dialer, 2)
	defer sess.Close()

	require.NoError(t, sess.Start(context.Background()))
	require.Eventually(t, func() bool {
		return sess.State() == StateConnected
	}, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), sess.Epoch())

	event, err := wire.NewEvent(wire.TypeSendMessage, wire.SendMessage{
		IncidentID: "I1",
		SenderID:   "U1",
		ReceiverID: "U2",
		Text:       "hello",
	})
	require.NoError(t, err)
	require.NoError(t, sess.Emit(event))

	frames := dialer.conn(0).sent()
	require.Len(t, frames, 1)
	var roundTrip wire.Event
	require.NoError(t, json.Unmarshal(frames[0], &roundTrip))
	assert.Equal(t, wire.TypeSendMessage, roundTrip.Type)
}

func TestSessionDeliversInboundEvents(t *testing.T) {
	dialer := &fakeDialer{}
	sess := newTestSession(dialer, 2)
	defer sess.Close()

	var mu sync.Mutex
	var received []wire.Event
	sess.OnEvent(func(event wire.Event) {
		mu.Lock()
		received = append(received, event)
		mu.Unlock()
	})

	require.NoError(t, sess.Start(context.Background()))
	require.Eventually(t, func() bool {
		return sess.State() == StateConnected
	}, time.Second, time.Millisecond)

	event, err := wire.NewEvent(wire.TypeReceiveMessage, wire.ReceiveMessage{
		ID: "m1", IncidentID: "I1", SenderID: "U1", ReceiverID: "U2",
		Text: "hi", RoomKey: "I1_U1_U2",
	})
	require.NoError(t, err)
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	dialer.conn(0).inbound <- payload

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, wire.TypeReceiveMessage, received[0].Type)
	mu.Unlock()
}

func TestSessionGivesUpAfterBoundedRetries(t *testing.T) {
	dialer := &fakeDialer{failures: 100}
	sess := newTestSession(dialer, 2)
	defer sess.Close()

	var mu sync.Mutex
	var states []State
	sess.OnStateChange(func(state State) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	require.NoError(t, sess.Start(context.Background()))
	require.Eventually(t, func() bool {
		return sess.State() == StateDisconnected && dialer.dialCount() > 0
	}, time.Second, time.Millisecond)

	// Initial attempt plus the configured retries, then terminal.
	assert.Equal(t, 3, dialer.dialCount())
	assert.ErrorIs(t, sess.Emit(wire.Event{Type: wire.TypePing}), ErrNotConnected)

	mu.Lock()
	assert.Equal(t, []State{StateConnecting, StateReconnecting, StateDisconnected}, states)
	mu.Unlock()
}

func TestSessionReconnectsAfterTransportLoss(t *testing.T) {
	dialer := &fakeDialer{}
	sess := newTestSession(dialer, 3)
	defer sess.Close()

	require.NoError(t, sess.Start(context.Background()))
	require.Eventually(t, func() bool {
		return sess.State() == StateConnected
	}, time.Second, time.Millisecond)

	dialer.conn(0).drop()

	require.Eventually(t, func() bool {
		return sess.State() == StateConnected && sess.Epoch() == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestSessionRetryBudgetResetsAfterConnect(t *testing.T) {
	dialer := &fakeDialer{failures: 1}
	sess := newTestSession(dialer, 1)
	defer sess.Close()

	require.NoError(t, sess.Start(context.Background()))
	require.Eventually(t, func() bool {
		return sess.State() == StateConnected
	}, time.Second, time.Millisecond)

	// The failed initial dial consumed the whole budget; a post-connect drop
	// still gets a fresh one.
	dialer.conn(0).drop()
	require.Eventually(t, func() bool {
		return sess.State() == StateConnected && sess.Epoch() == 2
	}, time.Second, time.Millisecond)
}

func TestSessionCloseCancelsPendingReconnect(t *testing.T) {
	dialer := &fakeDialer{failures: 100}
	sess := NewSession(Config{
		URL:               "ws://127.0.0.1:0/ws/chat",
		ReconnectAttempts: 100,
		ReconnectDelay:    time.Hour,
		Dialer:            dialer,
		Logger:            testLog(),
	})

	require.NoError(t, sess.Start(context.Background()))
	require.Eventually(t, func() bool {
		return sess.State() == StateReconnecting
	}, time.Second, time.Millisecond)

	require.NoError(t, sess.Close())
	assert.Equal(t, StateDisconnected, sess.State())
	assert.ErrorIs(t, sess.Emit(wire.Event{Type: wire.TypePing}), ErrClosed)
	assert.ErrorIs(t, sess.Start(context.Background()), ErrClosed)

	dials := dialer.dialCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, dials, dialer.dialCount(), "no dials after Close")
}

func TestSessionRestartTearsDownPriorTransport(t *testing.T) {
	dialer := &fakeDialer{}
	sess := newTestSession(dialer, 2)
	defer sess.Close()

	require.NoError(t, sess.Start(context.Background()))
	require.Eventually(t, func() bool {
		return sess.State() == StateConnected
	}, time.Second, time.Millisecond)
	first := dialer.conn(0)

	require.NoError(t, sess.Start(context.Background()))
	require.Eventually(t, func() bool {
		return sess.State() == StateConnected && sess.Epoch() == 2
	}, time.Second, time.Millisecond)

	first.mu.Lock()
	firstClosed := first.closed
	first.mu.Unlock()
	assert.True(t, firstClosed, "the prior transport is closed on restart")
	assert.Equal(t, 2, dialer.dialCount(), "exactly one dial per start")
}

func TestSessionEmitBeforeConnect(t *testing.T) {
	sess := newTestSession(&fakeDialer{}, 1)
	defer sess.Close()

	assert.ErrorIs(t, sess.Emit(wire.Event{Type: wire.TypePing}), ErrNotConnected)
}
