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

import "time"

const (
	// DefaultTimeout is the default per-call timeout for a target.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3
	// DefaultInitialBackoff is the first retry delay.
	DefaultInitialBackoff = 100 * time.Millisecond
	// DefaultMaxBackoff caps the retry delay.
	DefaultMaxBackoff = 5 * time.Second
	// DefaultFailureThreshold opens the circuit breaker after this many
	// consecutive failures inside the rolling window.
	DefaultFailureThreshold = 5
	// DefaultFailureWindow is the rolling window for breaker failures.
	DefaultFailureWindow = 30 * time.Second
	// DefaultCooldown is how long an open breaker waits before allowing
	// a half-open trial call.
	DefaultCooldown = 15 * time.Second
	// DefaultMaxConcurrent bounds in-flight calls per target.
	DefaultMaxConcurrent = 32
)

// Policy is the per-target reliability configuration. It is built once
// at process start from the config surface and is read-only afterwards;
// all Clients for a target share one Policy value.
type Policy struct {
	// Timeout bounds one call including retries. A descriptor may carry
	// a shorter sub-timeout; the smaller of the two wins.
	Timeout time.Duration

	// MaxRetries is the number of re-attempts after the first call.
	MaxRetries int

	// InitialBackoff is the base retry delay, doubled each attempt and
	// capped at MaxBackoff. Jitter controls the random fraction added to
	// each delay to avoid retry storms across concurrent requests.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64

	// FailureThreshold consecutive failures within FailureWindow open
	// the breaker; Cooldown must elapse before a half-open trial.
	FailureThreshold int
	FailureWindow    time.Duration
	Cooldown         time.Duration

	// MaxConcurrent bounds concurrent in-flight calls to the target.
	// A call that cannot obtain a slot within its sub-timeout fails
	// with a timeout outcome, same as a slow remote.
	MaxConcurrent int
}

// DefaultPolicy returns the policy applied to targets with no explicit
// configuration.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:          DefaultTimeout,
		MaxRetries:       DefaultMaxRetries,
		InitialBackoff:   DefaultInitialBackoff,
		MaxBackoff:       DefaultMaxBackoff,
		Jitter:           0.1,
		FailureThreshold: DefaultFailureThreshold,
		FailureWindow:    DefaultFailureWindow,
		Cooldown:         DefaultCooldown,
		MaxConcurrent:    DefaultMaxConcurrent,
	}
}

// withDefaults fills zero fields so partially specified config still
// yields a usable policy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = d.MaxRetries
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = d.Jitter
	}
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = d.FailureThreshold
	}
	if p.FailureWindow <= 0 {
		p.FailureWindow = d.FailureWindow
	}
	if p.Cooldown <= 0 {
		p.Cooldown = d.Cooldown
	}
	if p.MaxConcurrent <= 0 {
		p.MaxConcurrent = d.MaxConcurrent
	}
	return p
}
