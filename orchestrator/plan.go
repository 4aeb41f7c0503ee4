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
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"chemgpt/platform/downstream"
	"chemgpt/platform/schema"
)

// Route binds one capability to a downstream client and the request
// path it uses on that client's target. Capabilities sharing a target
// share the client (and thus its breaker and pool) but keep their own
// paths.
type Route struct {
	Capability string
	Path       string
	Client     *downstream.Client
}

// Planner derives a CallPlan from a validated envelope. The routing
// table is built once at startup from configuration and is read-only.
type Planner struct {
	routes         map[string]Route
	validator      *schema.Validator
	defaultTimeout time.Duration
}

// NewPlanner builds a planner over the configured routes.
func NewPlanner(routes []Route, validator *schema.Validator, defaultTimeout time.Duration) *Planner {
	table := make(map[string]Route, len(routes))
	for _, r := range routes {
		table[r.Capability] = r
	}
	return &Planner{
		routes:         table,
		validator:      validator,
		defaultTimeout: defaultTimeout,
	}
}

// Supports reports whether the capability has a mapped target.
func (p *Planner) Supports(capability string) bool {
	_, ok := p.routes[capability]
	return ok
}

// BuildPlan validates each requested capability's input slice and
// produces the descriptors. Capabilities are planned in sorted order so
// identical envelopes always yield structurally identical plans.
func (p *Planner) BuildPlan(env *RequestEnvelope) (*CallPlan, *GatewayError) {
	var query QueryPayload
	if err := json.Unmarshal(env.Query, &query); err != nil {
		return nil, invalidRequest("query payload is not a valid object: %v", err)
	}

	deadline := p.defaultTimeout
	if env.TimeoutMs > 0 {
		deadline = time.Duration(env.TimeoutMs) * time.Millisecond
	}

	capabilities := append([]string(nil), env.Capabilities...)
	sort.Strings(capabilities)

	plan := &CallPlan{
		RequestID:   uuid.New().String(),
		CallerID:    env.CallerID,
		Deadline:    deadline,
		Descriptors: make([]downstream.CallDescriptor, 0, len(capabilities)),
	}

	for _, capability := range capabilities {
		route, ok := p.routes[capability]
		if !ok {
			return nil, unsupportedCapability(capability)
		}

		payload, gerr := p.slicePayload(capability, query)
		if gerr != nil {
			return nil, gerr
		}

		subTimeout := route.Client.Policy().Timeout
		if subTimeout > deadline {
			subTimeout = deadline
		}

		plan.Descriptors = append(plan.Descriptors, downstream.CallDescriptor{
			Capability: capability,
			Target:     route.Client.TargetName(),
			Path:       route.Path,
			Payload:    payload,
			Timeout:    subTimeout,
		})
	}

	return plan, nil
}

// RouteFor returns the client for a capability.
func (p *Planner) RouteFor(capability string) (Route, bool) {
	r, ok := p.routes[capability]
	return r, ok
}

// slicePayload extracts the capability's input slice from the query and
// validates it against the capability's schema.
func (p *Planner) slicePayload(capability string, query QueryPayload) (json.RawMessage, *GatewayError) {
	var slice interface{}
	switch capability {
	case "retrosynthesis":
		slice = map[string]string{"smiles": query.SMILES}
	case "extraction":
		slice = map[string]string{"text": query.Text}
	case "spectroscopy":
		slice = map[string]string{"molecule": query.Molecule}
	case "enrichment":
		prompt := query.Prompt
		if prompt == "" {
			prompt = enrichmentPrompt(query)
		}
		slice = map[string]string{"prompt": prompt}
	default:
		// Custom capabilities receive the whole query object.
		slice = query
	}

	payload, err := json.Marshal(slice)
	if err != nil {
		return nil, invalidRequest("capability %s: cannot encode payload: %v", capability, err)
	}

	if p.validator.Has(capability) {
		if err := p.validator.Validate(capability, payload); err != nil {
			return nil, invalidRequest("capability %s: %v", capability, err)
		}
	}
	return payload, nil
}

// enrichmentPrompt derives an LLM prompt from whichever query fields
// are present when the caller did not supply one.
func enrichmentPrompt(query QueryPayload) string {
	switch {
	case query.SMILES != "":
		return fmt.Sprintf("Analyze the molecule with SMILES notation %q: summarize its structure, notable functional groups, and likely synthesis considerations.", query.SMILES)
	case query.Molecule != "":
		return fmt.Sprintf("Provide a concise chemistry profile of the molecule %q, including expected spectroscopic features.", query.Molecule)
	case query.Text != "":
		return fmt.Sprintf("Summarize the chemistry-relevant content of the following text:\n\n%s", query.Text)
	default:
		return ""
	}
}
