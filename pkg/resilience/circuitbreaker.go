package resilience

import (
	"errors"
	"sync"
	"time"

	"alertnet/backend/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker is short-circuiting requests.
var ErrCircuitOpen = errors.New("circuit open")

// State represents the current state of a circuit breaker
type State string

const (
	// StateClosed means requests are allowed to pass through
	StateClosed State = "closed"
	// StateOpen means requests are being short-circuited
	StateOpen State = "open"
	// StateHalfOpen means a limited number of test requests are allowed
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryTimeout     time.Duration
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     30 * time.Second,
	}
}

// CircuitBreaker guards an unreliable dependency: consecutive failures open
// the circuit, the retry timeout admits a probe, and enough probe successes
// close it again.
type CircuitBreaker struct {
	name             string
	failureThreshold uint
	successThreshold uint
	retryTimeout     time.Duration
	log              *logger.Logger

	mu              sync.RWMutex
	state           State
	failureCount    uint
	successCount    uint
	nextAttemptTime time.Time
	totalFailures   uint64
	totalSuccesses  uint64
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config Config, log *logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:             config.Name,
		failureThreshold: config.FailureThreshold,
		successThreshold: config.SuccessThreshold,
		retryTimeout:     config.RetryTimeout,
		state:            StateClosed,
		log:              log,
	}
}

// Execute runs fn through the circuit breaker
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		cb.log.Warn("circuit breaker rejecting request", "name", cb.name)
		return ErrCircuitOpen
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.RLock()
	state := cb.state
	nextAttempt := cb.nextAttemptTime
	cb.mu.RUnlock()

	switch state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Now().After(nextAttempt) {
			cb.mu.Lock()
			defer cb.mu.Unlock()
			// Re-check after acquiring the write lock
			if cb.state == StateOpen && time.Now().After(cb.nextAttemptTime) {
				cb.toHalfOpen()
				return true
			}
		}
		return false

	case StateHalfOpen:
		cb.mu.RLock()
		defer cb.mu.RUnlock()
		return cb.successCount < cb.successThreshold
	}

	return false
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalSuccesses++

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.toClosed()
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalFailures++

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.nextAttemptTime = time.Now().Add(cb.retryTimeout)
	cb.log.Info("circuit breaker opened",
		"name", cb.name,
		"failures", cb.failureCount,
		"next_attempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.successCount = 0
	cb.log.Info("circuit breaker half-open", "name", cb.name)
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.log.Info("circuit breaker closed", "name", cb.name)
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
