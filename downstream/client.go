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
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Client executes CallDescriptors against one Target, applying that
// target's Policy. The breaker and the concurrency pool are process-wide
// per target; construct one Client per target at startup and share it
// across requests.
type Client struct {
	target  Target
	policy  Policy
	breaker *CircuitBreaker
	slots   chan struct{}
}

// NewClient builds a Client around target with the given policy and a
// shared breaker. Passing the breaker explicitly keeps the process-wide
// state visible at the construction site instead of hidden in globals.
func NewClient(target Target, policy Policy, breaker *CircuitBreaker) *Client {
	policy = policy.withDefaults()
	if breaker == nil {
		breaker = NewCircuitBreaker(target.Name(), policy)
	}
	return &Client{
		target:  target,
		policy:  policy,
		breaker: breaker,
		slots:   make(chan struct{}, policy.MaxConcurrent),
	}
}

// Policy returns the client's effective policy.
func (c *Client) Policy() Policy { return c.policy }

// TargetName returns the wrapped target's name.
func (c *Client) TargetName() string { return c.target.Name() }

// Breaker exposes the shared circuit breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// Call executes one descriptor and always returns exactly one outcome.
// No error ever escapes this boundary; every failure mode is encoded in
// the outcome variant.
func (c *Client) Call(ctx context.Context, desc CallDescriptor) CallOutcome {
	start := time.Now()

	timeout := c.policy.Timeout
	if desc.Timeout > 0 && desc.Timeout < timeout {
		timeout = desc.Timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := c.call(callCtx, desc)
	outcome.Capability = desc.Capability
	outcome.Target = c.target.Name()
	outcome.Elapsed = time.Since(start)

	recordCallMetrics(outcome)
	return outcome
}

func (c *Client) call(ctx context.Context, desc CallDescriptor) CallOutcome {
	// Pool slot first: exhaustion degrades to the same outcome as a
	// slow remote target.
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return timeoutOutcome(ctx.Err())
	}

	if err := c.breaker.Allow(); err != nil {
		var open *CircuitOpenError
		if errors.As(err, &open) {
			return CallOutcome{
				Status:    OutcomeCircuitOpen,
				ErrorKind: ErrorKindCircuitOpen,
				Message:   err.Error(),
			}
		}
		return failureOutcome(ErrorKindPermanent, err, 0)
	}

	outcome := c.attemptLoop(ctx, desc)
	if outcome.IsSuccess() {
		c.breaker.RecordSuccess()
	} else {
		c.breaker.RecordFailure()
	}
	return outcome
}

// attemptLoop issues the call with exponential backoff retry. Transient
// failures retry up to MaxRetries; permanent failures and deadline
// expiry end the loop immediately.
func (c *Client) attemptLoop(ctx context.Context, desc CallDescriptor) CallOutcome {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return timeoutOutcomeAfter(ctx.Err(), attempts)
		}

		attempts++
		payload, err := c.target.Invoke(ctx, desc)
		if err == nil {
			return CallOutcome{
				Status:   OutcomeSuccess,
				Payload:  payload,
				Attempts: attempts,
			}
		}
		lastErr = err

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return timeoutOutcomeAfter(err, attempts)
		}
		if !IsTransient(err) {
			return failureOutcome(ErrorKindPermanent, err, attempts)
		}
		if attempt >= c.policy.MaxRetries {
			break
		}

		delay := c.policy.backoff(attempt)
		log.Printf("[Downstream] %s attempt %d failed, retrying in %s: %v",
			c.target.Name(), attempts, delay, err)
		if err := sleepCtx(ctx, delay); err != nil {
			return timeoutOutcomeAfter(err, attempts)
		}
	}

	err := fmt.Errorf("exhausted %d attempts: %w", attempts, lastErr)
	return failureOutcome(ErrorKindTransient, err, attempts)
}

func timeoutOutcome(err error) CallOutcome {
	return timeoutOutcomeAfter(err, 0)
}

func timeoutOutcomeAfter(err error, attempts int) CallOutcome {
	msg := "call deadline exceeded"
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		msg = err.Error()
	}
	return CallOutcome{
		Status:    OutcomeTimeout,
		ErrorKind: ErrorKindTimeout,
		Message:   msg,
		Attempts:  attempts,
	}
}

func failureOutcome(kind ErrorKind, err error, attempts int) CallOutcome {
	return CallOutcome{
		Status:    OutcomeFailure,
		ErrorKind: kind,
		Message:   err.Error(),
		Attempts:  attempts,
	}
}
