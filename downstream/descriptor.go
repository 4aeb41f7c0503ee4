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
	"encoding/json"
	"time"
)

// CallDescriptor is one planned remote invocation: which target to hit,
// the payload slice to send, and the sub-timeout for this call.
// Descriptors are built per request and never reused.
type CallDescriptor struct {
	// Capability is the caller-facing name this call fulfills
	// (e.g. "retrosynthesis", "enrichment").
	Capability string

	// Target is the configured target name (e.g. "retro", "llm").
	Target string

	// Path is the request path on the target for this capability
	// (e.g. "/retrosynthesis"). Capabilities sharing a target each
	// carry their own path. Empty for targets with a fixed endpoint.
	Path string

	// Payload is the request body slice for this target.
	Payload json.RawMessage

	// Timeout bounds this one call including all retry attempts.
	// Always less than or equal to the request's overall deadline.
	Timeout time.Duration
}

// OutcomeStatus tags the variant of a CallOutcome.
type OutcomeStatus string

const (
	OutcomeSuccess     OutcomeStatus = "success"
	OutcomeFailure     OutcomeStatus = "failure"
	OutcomeTimeout     OutcomeStatus = "timeout"
	OutcomeCircuitOpen OutcomeStatus = "circuit_open"
)

// ErrorKind classifies a failed outcome for aggregation and metrics.
type ErrorKind string

const (
	ErrorKindTransient   ErrorKind = "transient"
	ErrorKindPermanent   ErrorKind = "permanent"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindCircuitOpen ErrorKind = "circuit_open"
)

// CallOutcome is the single result of executing a CallDescriptor.
// Exactly one outcome is produced per descriptor; all failure modes are
// encoded here rather than returned as errors.
type CallOutcome struct {
	Capability string
	Target     string
	Status     OutcomeStatus

	// Payload is set only when Status == OutcomeSuccess.
	Payload json.RawMessage

	// ErrorKind and Message describe the failure for non-success outcomes.
	ErrorKind ErrorKind
	Message   string

	// Attempts is the number of calls actually issued to the target,
	// including the first. Zero when the breaker rejected the call.
	Attempts int

	Elapsed time.Duration
}

// IsSuccess reports whether the outcome carries a payload.
func (o CallOutcome) IsSuccess() bool {
	return o.Status == OutcomeSuccess
}
