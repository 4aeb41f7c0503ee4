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
	"context"
	"encoding/json"
	"time"

	"chemgpt/platform/schema"
	"chemgpt/platform/shared/logger"
)

// Orchestrator is the top-level request path: validate the envelope,
// build the call plan, fan out, aggregate, and validate the outgoing
// document. Per-call failures surface as degraded entries; only
// envelope validation and egress schema violations abort the request.
type Orchestrator struct {
	validator  *schema.Validator
	planner    *Planner
	dispatcher *Dispatcher
	aggregator *Aggregator
	log        *logger.Logger
}

// New wires the orchestrator from its collaborators.
func New(validator *schema.Validator, planner *Planner, dispatcher *Dispatcher, aggregator *Aggregator) *Orchestrator {
	return &Orchestrator{
		validator:  validator,
		planner:    planner,
		dispatcher: dispatcher,
		aggregator: aggregator,
		log:        logger.New("orchestrator"),
	}
}

// HandleRaw decodes and handles a raw envelope body. The body is
// validated against the envelope schema before decoding, so malformed
// requests are rejected with a field path rather than a decode error.
func (o *Orchestrator) HandleRaw(ctx context.Context, body []byte) (*ResponseDocument, *GatewayError) {
	if err := o.validator.Validate(schema.Envelope, body); err != nil {
		return nil, invalidRequest("%v", err)
	}

	var env RequestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, invalidRequest("cannot decode envelope: %v", err)
	}
	return o.Handle(ctx, &env)
}

// Handle runs one validated envelope through plan, fan-out, and
// aggregation.
func (o *Orchestrator) Handle(ctx context.Context, env *RequestEnvelope) (*ResponseDocument, *GatewayError) {
	start := time.Now()

	plan, gerr := o.planner.BuildPlan(env)
	if gerr != nil {
		return nil, gerr
	}

	o.log.Info(env.CallerID, plan.RequestID, "dispatching call plan", map[string]interface{}{
		"capabilities": plan.Capabilities(),
		"deadline_ms":  plan.Deadline.Milliseconds(),
	})

	outcomes := o.dispatcher.Dispatch(ctx, plan)
	doc := o.aggregator.Aggregate(plan, outcomes)

	if gerr := o.checkEgress(env.CallerID, doc); gerr != nil {
		return nil, gerr
	}

	o.log.InfoWithDuration(env.CallerID, plan.RequestID, "request aggregated", time.Since(start), map[string]interface{}{
		"status":  string(doc.Status),
		"results": len(doc.Results),
	})
	return doc, nil
}

// checkEgress validates the outgoing document against the response
// schema. A violation here is a gateway bug: it is logged with full
// detail and surfaced to the caller as a generic internal error.
func (o *Orchestrator) checkEgress(callerID string, doc *ResponseDocument) *GatewayError {
	encoded, err := json.Marshal(doc)
	if err != nil {
		o.log.Error(callerID, doc.RequestID, "response document failed to encode", map[string]interface{}{
			"error": err.Error(),
		})
		return internalSchemaViolation()
	}
	if err := o.validator.Validate(schema.Response, encoded); err != nil {
		o.log.Error(callerID, doc.RequestID, "response document failed egress validation", map[string]interface{}{
			"error": err.Error(),
		})
		return internalSchemaViolation()
	}
	return nil
}
