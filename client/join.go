package client

import (
	"sync"
	"time"

	"alertnet/backend/pkg/logger"
	"alertnet/backend/pkg/wire"
)

// Emitter is the session surface the join manager observes. *Session
// satisfies it.
type Emitter interface {
	Emit(event wire.Event) error
	State() State
	Epoch() uint64
}

type joinPair struct {
	epoch    uint64
	identity string
}

// JoinManager binds a connection to the user's room once both the transport
// and the identity are available, in whichever order they arrive. At most
// one join is emitted per (connection epoch, identity value) pair: a
// reconnection or a fresh identity re-arms the sequence, repeated
// observations of the same pair do not.
//
// When the transport connects before the identity is known, a single
// deferred re-check is scheduled; if the identity is still unknown when it
// fires, the manager stays unjoined until the identity changes.
type JoinManager struct {
	session    Emitter
	retryDelay time.Duration
	log        *logger.Logger

	mu             sync.Mutex
	identity       string
	joined         map[joinPair]struct{}
	timer          *time.Timer
	recheckedEpoch uint64
	closed         bool
}

func NewJoinManager(session Emitter, retryDelay time.Duration, log *logger.Logger) *JoinManager {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &JoinManager{
		session:    session,
		retryDelay: retryDelay,
		log:        log,
		joined:     make(map[joinPair]struct{}),
	}
}

// SetIdentity records the resolved user identity and re-evaluates the join
// condition. An empty value means the identity is not (or no longer) known;
// that is a deferred condition, never an error.
func (m *JoinManager) SetIdentity(userID string) {
	m.mu.Lock()
	m.identity = userID
	m.stopTimerLocked()
	m.mu.Unlock()

	m.evaluate()
}

// HandleState feeds session lifecycle transitions into the manager. Wire it
// up via Session.OnStateChange.
func (m *JoinManager) HandleState(state State) {
	if state == StateConnected {
		m.evaluate()
		return
	}
	// Transport gone: a pending re-check would fire against a dead or
	// torn-down connection, so clear it.
	m.mu.Lock()
	m.stopTimerLocked()
	m.mu.Unlock()
}

// Close stops any scheduled re-check. The manager emits nothing afterwards.
func (m *JoinManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopTimerLocked()
}

func (m *JoinManager) evaluate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.session.State() != StateConnected {
		return
	}
	epoch := m.session.Epoch()

	if m.identity == "" {
		if m.timer == nil && m.recheckedEpoch != epoch {
			m.timer = time.AfterFunc(m.retryDelay, func() { m.recheck(epoch) })
			m.log.Debug("identity not yet known, deferring join", "epoch", epoch)
		}
		return
	}

	pair := joinPair{epoch: epoch, identity: m.identity}
	if _, done := m.joined[pair]; done {
		return
	}

	event, err := wire.NewEvent(wire.TypeJoinRoom, wire.JoinRoom{RoomKey: m.identity})
	if err != nil {
		m.log.Error("failed to encode join event", "error", err.Error())
		return
	}
	if err := m.session.Emit(event); err != nil {
		m.log.Warn("join emit failed", "error", err.Error())
		return
	}

	m.pruneLocked(epoch)
	m.joined[pair] = struct{}{}
	m.log.Info("joined personal room", "user_id", m.identity, "epoch", epoch)
}

func (m *JoinManager) recheck(epoch uint64) {
	m.mu.Lock()
	m.timer = nil
	m.recheckedEpoch = epoch
	m.mu.Unlock()

	m.evaluate()
}

func (m *JoinManager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// pruneLocked drops join records from earlier connection instances; they can
// never be observed again.
func (m *JoinManager) pruneLocked(epoch uint64) {
	for pair := range m.joined {
		if pair.epoch < epoch {
			delete(m.joined, pair)
		}
	}
}
