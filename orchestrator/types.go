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

package orchestrator

import (
	"encoding/json"
	"time"

	"chemgpt/platform/downstream"
)

// RequestEnvelope is one inbound gateway request. Immutable once
// decoded; the orchestrator never mutates it.
type RequestEnvelope struct {
	// CallerID identifies the calling application.
	CallerID string `json:"caller_id"`

	// Capabilities names the work the caller wants fanned out
	// (e.g. "retrosynthesis", "enrichment").
	Capabilities []string `json:"capabilities"`

	// Query is the chemistry payload; the planner slices it per
	// capability. Treated as opaque beyond shape validation.
	Query json.RawMessage `json:"query"`

	// TimeoutMs is the overall deadline for the whole fan-out.
	// Zero means the service default.
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// QueryPayload is the validated shape of the query object. Fields are
// optional; each capability requires its own slice to be present.
type QueryPayload struct {
	SMILES   string `json:"smiles,omitempty"`
	Text     string `json:"text,omitempty"`
	Molecule string `json:"molecule,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

// CallPlan is the ordered set of descriptors derived from one envelope.
// Owned exclusively by the orchestrator for the request's lifetime.
type CallPlan struct {
	RequestID   string
	CallerID    string
	Deadline    time.Duration
	Descriptors []downstream.CallDescriptor
}

// Capabilities returns the planned capability names in plan order.
func (p *CallPlan) Capabilities() []string {
	names := make([]string, len(p.Descriptors))
	for i, d := range p.Descriptors {
		names[i] = d.Capability
	}
	return names
}

// DocumentStatus is the overall status of a response document.
type DocumentStatus string

const (
	StatusComplete DocumentStatus = "complete"
	StatusPartial  DocumentStatus = "partial"
	StatusFailed   DocumentStatus = "failed"
)

// ErrorMarker is the degraded entry recorded for a failed capability.
// Raw downstream errors are summarized here, never passed through.
type ErrorMarker struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CapabilityResult is one entry in the response document.
type CapabilityResult struct {
	Status  string          `json:"status"` // "ok" or "error"
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorMarker    `json:"error,omitempty"`
}

// ResponseDocument is the merged fan-out result. Every capability in
// the plan has exactly one entry in Results; encoding/json emits map
// keys sorted, so the wire form is deterministic regardless of
// completion order.
type ResponseDocument struct {
	RequestID string                      `json:"request_id"`
	Status    DocumentStatus              `json:"status"`
	Results   map[string]CapabilityResult `json:"results"`
}
