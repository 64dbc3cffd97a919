package multicall

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Fantasim/tokenmeta/internal/config"
)

// CircuitBreaker stops sending aggregate calls to an endpoint after repeated
// transport failures.
//
//   - closed: calls pass; threshold consecutive failures open the circuit.
//   - open: calls fail with config.ErrCircuitOpen until cooldown has elapsed.
//   - half_open: up to config.CircuitBreakerHalfOpenMax trial calls pass; a success
//     closes the circuit, a failure reopens it.
//
// It never retries; a rejected call is reported to the caller as a failure.
type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	state            string
	consecutiveFails int
	threshold        int
	cooldown         time.Duration
	openedAt         time.Time
	halfOpenCount    int

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker for the named endpoint.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:      name,
		state:     config.CircuitClosed,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed, returning config.ErrCircuitOpen if not.
// A nil breaker always allows.
func (cb *CircuitBreaker) Allow() error {
	if cb == nil {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case config.CircuitClosed:
		return nil

	case config.CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return fmt.Errorf("%w: %s", config.ErrCircuitOpen, cb.name)
		}
		slog.Debug("circuit breaker half-open",
			"endpoint", cb.name,
			"consecutiveFails", cb.consecutiveFails,
		)
		cb.state = config.CircuitHalfOpen
		cb.halfOpenCount = 1
		return nil

	default: // half-open
		if cb.halfOpenCount < config.CircuitBreakerHalfOpenMax {
			cb.halfOpenCount++
			return nil
		}
		return fmt.Errorf("%w: %s (trial call in flight)", config.ErrCircuitOpen, cb.name)
	}
}

// Record updates the breaker with the outcome of an allowed call.
func (cb *CircuitBreaker) Record(err error) {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state != config.CircuitClosed {
			slog.Info("circuit breaker closed after success",
				"endpoint", cb.name,
				"previousState", cb.state,
			)
		}
		cb.state = config.CircuitClosed
		cb.consecutiveFails = 0
		cb.halfOpenCount = 0
		return
	}

	cb.consecutiveFails++

	if cb.state == config.CircuitHalfOpen || cb.consecutiveFails >= cb.threshold {
		slog.Warn("circuit breaker opened",
			"endpoint", cb.name,
			"previousState", cb.state,
			"consecutiveFails", cb.consecutiveFails,
			"threshold", cb.threshold,
		)
		cb.state = config.CircuitOpen
		cb.openedAt = cb.now()
		cb.halfOpenCount = 0
	}
}

// Release returns a slot granted by Allow without recording an outcome, for calls
// abandoned before the endpoint answered. A released half-open trial call puts the
// breaker back to open with its original openedAt, so the next Allow admits a new trial.
func (cb *CircuitBreaker) Release() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != config.CircuitHalfOpen {
		return
	}

	if cb.halfOpenCount > 0 {
		cb.halfOpenCount--
	}
	if cb.halfOpenCount == 0 {
		slog.Debug("circuit breaker trial call released",
			"endpoint", cb.name,
		)
		cb.state = config.CircuitOpen
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
