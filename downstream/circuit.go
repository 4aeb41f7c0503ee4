// Copyright 2025 ChemGPT
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package downstream

import (
	"fmt"
	"sync"
	"time"
)

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// CircuitBreaker guards one downstream target. It is shared by every
// request hitting that target, so all state transitions happen under
// the mutex.
//
// Closed: calls pass through; FailureThreshold consecutive failures
// inside FailureWindow open the circuit. Open: calls are rejected until
// Cooldown elapses, then exactly one trial call is admitted (half-open).
// The trial's result decides between closing and reopening.
type CircuitBreaker struct {
	target           string
	failureThreshold int
	failureWindow    time.Duration
	cooldown         time.Duration

	mu            sync.Mutex
	state         circuitState
	failures      int
	windowStart   time.Time
	openedAt      time.Time
	trialInFlight bool
}

// NewCircuitBreaker creates a closed breaker for the named target.
func NewCircuitBreaker(target string, policy Policy) *CircuitBreaker {
	policy = policy.withDefaults()
	return &CircuitBreaker{
		target:           target,
		failureThreshold: policy.FailureThreshold,
		failureWindow:    policy.FailureWindow,
		cooldown:         policy.Cooldown,
		state:            circuitClosed,
	}
}

// CircuitOpenError is returned by Allow when the breaker rejects a call.
type CircuitOpenError struct {
	Target string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for target %q", e.Target)
}

// Allow decides whether a call may proceed. It must be paired with
// exactly one RecordSuccess or RecordFailure when it returns nil.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitClosed:
		return nil
	case circuitOpen:
		if time.Since(cb.openedAt) < cb.cooldown {
			return &CircuitOpenError{Target: cb.target}
		}
		// Cooldown elapsed: admit a single trial call.
		cb.state = circuitHalfOpen
		cb.trialInFlight = true
		return nil
	case circuitHalfOpen:
		if cb.trialInFlight {
			return &CircuitOpenError{Target: cb.target}
		}
		cb.trialInFlight = true
		return nil
	}
	return nil
}

// RecordSuccess reports a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == circuitHalfOpen {
		cb.state = circuitClosed
		cb.trialInFlight = false
	}
	cb.failures = 0
}

// RecordFailure reports a failed call. Consecutive failures reset when
// the rolling window expires.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()

	if cb.state == circuitHalfOpen {
		// Trial failed: reopen and restart the cooldown.
		cb.state = circuitOpen
		cb.openedAt = now
		cb.trialInFlight = false
		return
	}

	if cb.failures == 0 || now.Sub(cb.windowStart) > cb.failureWindow {
		cb.windowStart = now
		cb.failures = 0
	}
	cb.failures++

	if cb.failures >= cb.failureThreshold {
		cb.state = circuitOpen
		cb.openedAt = now
		cb.failures = 0
	}
}

// State returns the current state as a string for metrics and health
// reporting.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Reset forces the breaker closed. Used by tests and admin tooling.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = circuitClosed
	cb.failures = 0
	cb.trialInFlight = false
}
