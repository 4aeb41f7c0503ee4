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
	"chemgpt/platform/downstream"
)

// Aggregator merges call outcomes into one response document using
// best-effort partial aggregation: failed capabilities are marked with
// an error entry rather than omitted, so every planned capability has
// exactly one entry regardless of how its call ended.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate builds the response document for one plan. Status is
// complete when every outcome succeeded, failed when none did, and
// partial otherwise. Results are keyed by capability name; map encoding
// sorts keys, making the emitted document independent of completion
// order.
func (a *Aggregator) Aggregate(plan *CallPlan, outcomes []downstream.CallOutcome) *ResponseDocument {
	doc := &ResponseDocument{
		RequestID: plan.RequestID,
		Results:   make(map[string]CapabilityResult, len(outcomes)),
	}

	successes := 0
	for _, outcome := range outcomes {
		if outcome.IsSuccess() {
			successes++
			doc.Results[outcome.Capability] = CapabilityResult{
				Status:  "ok",
				Payload: outcome.Payload,
			}
			continue
		}
		doc.Results[outcome.Capability] = CapabilityResult{
			Status: "error",
			Error: &ErrorMarker{
				Kind:    string(outcome.ErrorKind),
				Message: degradedMessage(outcome),
			},
		}
	}

	switch {
	case successes == len(outcomes):
		doc.Status = StatusComplete
	case successes > 0:
		doc.Status = StatusPartial
	default:
		doc.Status = StatusFailed
	}
	return doc
}

// degradedMessage summarizes a failed outcome for the caller without
// leaking raw transport errors.
func degradedMessage(o downstream.CallOutcome) string {
	switch o.Status {
	case downstream.OutcomeTimeout:
		return "call timed out"
	case downstream.OutcomeCircuitOpen:
		return "target temporarily unavailable"
	default:
		if o.ErrorKind == downstream.ErrorKindPermanent {
			return "target rejected the request"
		}
		return "target failed after retries"
	}
}
