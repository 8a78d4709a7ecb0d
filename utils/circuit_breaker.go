package utils

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards calls to a flaky collaborator (here: the realtime
// notification channel). It is deliberately not used around the record
// store; store failures propagate to the caller untouched.
type CircuitBreaker struct {
	name         string
	maxRequests  uint32
	interval     time.Duration
	timeout      time.Duration
	failureRatio float64

	mutex  sync.Mutex
	state  BreakerState
	counts breakerCounts
	expiry time.Time
}

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

type breakerCounts struct {
	requests             uint32
	totalSuccesses       uint32
	totalFailures        uint32
	consecutiveFailures  uint32
	consecutiveSuccesses uint32
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxRequests:  20,
		interval:     60 * time.Second,
		timeout:      30 * time.Second,
		failureRatio: 0.6,
		state:        BreakerClosed,
	}
}

// Do runs fn unless the breaker is open.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(err == nil)
	return err
}

// State returns the current breaker state, advancing open -> half-open
// when the cool-down has elapsed.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.currentState(time.Now())
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.currentState(time.Now())

	if state == BreakerOpen {
		return ErrCircuitOpen
	}
	if state == BreakerHalfOpen && cb.counts.requests >= cb.maxRequests {
		return ErrCircuitOpen
	}

	cb.counts.requests++
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.currentState(time.Now())

	if success {
		cb.counts.totalSuccesses++
		cb.counts.consecutiveSuccesses++
		cb.counts.consecutiveFailures = 0

		if state == BreakerHalfOpen {
			cb.state = BreakerClosed
			cb.counts = breakerCounts{}
		}
		return
	}

	cb.counts.totalFailures++
	cb.counts.consecutiveFailures++
	cb.counts.consecutiveSuccesses = 0

	if cb.readyToTrip() {
		cb.state = BreakerOpen
		cb.expiry = time.Now().Add(cb.timeout)
	}
}

func (cb *CircuitBreaker) readyToTrip() bool {
	return cb.counts.requests >= cb.maxRequests &&
		float64(cb.counts.totalFailures)/float64(cb.counts.requests) >= cb.failureRatio
}

func (cb *CircuitBreaker) currentState(now time.Time) BreakerState {
	switch cb.state {
	case BreakerClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.counts = breakerCounts{}
			cb.expiry = now.Add(cb.interval)
		}
	case BreakerOpen:
		if cb.expiry.Before(now) {
			cb.state = BreakerHalfOpen
			cb.counts = breakerCounts{}
		}
	}
	return cb.state
}
