package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"alertnet/backend/pkg/logger"
	"alertnet/backend/pkg/wire"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

var (
	// ErrClosed is returned after Close; the session cannot be reused.
	ErrClosed = errors.New("session closed")
	// ErrNotConnected is returned by Emit while no transport is live.
	ErrNotConnected = errors.New("session not connected")
)

// Conn is the minimal transport surface the session drives. Satisfied by
// *websocket.Conn; tests inject fakes.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer establishes one transport connection.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with gorilla's default dialer.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config configures a Session.
type Config struct {
	// URL of the chat websocket endpoint.
	URL string
	// ReconnectAttempts bounds automatic retries after a transport failure.
	// Exceeding it leaves the session terminally disconnected until the
	// caller starts it again.
	ReconnectAttempts int
	// ReconnectDelay is the fixed delay between attempts.
	ReconnectDelay time.Duration
	// Dialer defaults to WebsocketDialer.
	Dialer Dialer
	// Logger defaults to the global logger.
	Logger *logger.Logger
}

// Session owns at most one live transport connection and drives the
// lifecycle Disconnected -> Connecting -> Connected -> (Disconnected |
// Reconnecting -> Connected). Starting a session tears down any prior
// transport first; Close is unconditional and cancels pending reconnects.
type Session struct {
	cfg Config

	mu      sync.Mutex
	state   State
	conn    Conn
	epoch   uint64
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
	closed  bool
	writeMu sync.Mutex

	onEvent func(wire.Event)
	onState func(State)
}

func NewSession(cfg Config) *Session {
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetGlobal()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	return &Session{cfg: cfg, state: StateDisconnected}
}

// OnEvent registers the handler for inbound server events. Must be set
// before Start.
func (s *Session) OnEvent(fn func(wire.Event)) { s.onEvent = fn }

// OnStateChange registers the observer for lifecycle transitions. Must be
// set before Start.
func (s *Session) OnStateChange(fn func(State)) { s.onState = fn }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Epoch identifies the current transport instance. It increments on every
// successful connect, so observers can distinguish a reconnection from the
// connection they previously saw.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Start launches the connection loop. Starting while a loop is already
// running tears down the prior transport first and waits for that loop to
// exit, so there is never more than one live connection per session. It
// returns once the new loop is running; transitions are reported through
// OnStateChange.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.running {
		cancel := s.cancel
		conn := s.conn
		s.conn = nil
		done := s.done
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			conn.Close()
		}
		<-done

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(runCtx, done)
	return nil
}

// Close tears the session down: the transport is closed, pending reconnect
// waits are cancelled, and no further connection attempt will ever be made.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	s.setState(StateDisconnected)
	return nil
}

// Emit sends one event over the live transport.
func (s *Session) Emit(event wire.Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// run is the connection loop: dial, pump reads until the transport fails,
// then retry under the configured bound. Attempt counting resets after every
// successful connection.
func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	attempts := 0
	s.setState(StateConnecting)

	for {
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return
		}

		conn, err := s.cfg.Dialer.Dial(ctx, s.cfg.URL)
		if err != nil {
			if ctx.Err() != nil {
				s.setState(StateDisconnected)
				return
			}
			attempts++
			if attempts > s.cfg.ReconnectAttempts {
				s.cfg.Logger.Error("giving up after repeated connection failures",
					"url", s.cfg.URL,
					"attempts", attempts,
				)
				s.setState(StateDisconnected)
				return
			}
			s.cfg.Logger.Warn("connection attempt failed, retrying",
				"url", s.cfg.URL,
				"attempt", attempts,
				"error", err.Error(),
			)
			s.setState(StateReconnecting)
			if !s.sleep(ctx, s.cfg.ReconnectDelay) {
				s.setState(StateDisconnected)
				return
			}
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.epoch++
		s.mu.Unlock()

		attempts = 0
		s.setState(StateConnected)

		readErr := s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return
		}

		s.cfg.Logger.Warn("transport lost, reconnecting", "error", readErr.Error())
		attempts++
		if attempts > s.cfg.ReconnectAttempts {
			s.setState(StateDisconnected)
			return
		}
		s.setState(StateReconnecting)
		if !s.sleep(ctx, s.cfg.ReconnectDelay) {
			s.setState(StateDisconnected)
			return
		}
	}
}

func (s *Session) readLoop(ctx context.Context, conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var event wire.Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.cfg.Logger.Warn("discarding unparseable frame", "error", err.Error())
			continue
		}
		if s.onEvent != nil {
			s.onEvent(event)
		}
	}
}

// sleep waits the fixed inter-attempt delay; the timer is stopped, not
// abandoned, when the session context is cancelled mid-wait.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	observer := s.onState
	s.mu.Unlock()

	if observer != nil {
		observer(next)
	}
}
