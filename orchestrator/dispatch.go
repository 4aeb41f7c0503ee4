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
	"log"
	"time"

	"chemgpt/platform/downstream"
)

const (
	// DefaultDispatchGrace is the cancellation propagation window added
	// to the overall deadline before the dispatcher abandons
	// outstanding calls.
	DefaultDispatchGrace = 250 * time.Millisecond
)

// Dispatcher fans a CallPlan out concurrently: one goroutine per
// descriptor, all joined under the plan's overall deadline. One
// request's deadline never touches another's in-flight calls, because
// the deadline context is created per Dispatch.
type Dispatcher struct {
	planner *Planner
	grace   time.Duration
}

// NewDispatcher builds a dispatcher over the planner's routing table.
// grace <= 0 means DefaultDispatchGrace.
func NewDispatcher(planner *Planner, grace time.Duration) *Dispatcher {
	if grace <= 0 {
		grace = DefaultDispatchGrace
	}
	return &Dispatcher{planner: planner, grace: grace}
}

// indexedOutcome tags a finished call with its plan position.
type indexedOutcome struct {
	idx     int
	outcome downstream.CallOutcome
}

// Dispatch executes every descriptor concurrently and returns one
// outcome per descriptor, in plan order. When the overall deadline plus
// the grace period elapses, calls still outstanding are recorded as
// timeouts; outcomes already collected are preserved. No descriptor's
// failure affects any sibling.
func (d *Dispatcher) Dispatch(ctx context.Context, plan *CallPlan) []downstream.CallOutcome {
	n := len(plan.Descriptors)
	outcomes := make([]downstream.CallOutcome, n)

	callCtx, cancel := context.WithTimeout(ctx, plan.Deadline)
	defer cancel()

	done := make(chan indexedOutcome, n)
	for i, desc := range plan.Descriptors {
		route, ok := d.planner.RouteFor(desc.Capability)
		if !ok {
			// The planner rejects unmapped capabilities before
			// dispatch; this is a guard against future drift.
			done <- indexedOutcome{i, downstream.CallOutcome{
				Capability: desc.Capability,
				Status:     downstream.OutcomeFailure,
				ErrorKind:  downstream.ErrorKindPermanent,
				Message:    "no route for capability",
			}}
			continue
		}

		go func(idx int, desc downstream.CallDescriptor, client *downstream.Client) {
			done <- indexedOutcome{idx, client.Call(callCtx, desc)}
		}(i, desc, route.Client)
	}

	// Collect until every slot is filled or deadline+grace expires.
	// A small grace period lets cancelled calls report their own
	// timeout outcomes before we synthesize one for them.
	timer := time.NewTimer(plan.Deadline + d.grace)
	defer timer.Stop()

	collected := make([]bool, n)
	remaining := n
	for remaining > 0 {
		select {
		case res := <-done:
			outcomes[res.idx] = res.outcome
			collected[res.idx] = true
			remaining--
		case <-timer.C:
			for i := range outcomes {
				if !collected[i] {
					desc := plan.Descriptors[i]
					log.Printf("[Dispatcher] request %s: call %s/%s missed deadline grace, recording timeout",
						plan.RequestID, desc.Target, desc.Capability)
					outcomes[i] = downstream.CallOutcome{
						Capability: desc.Capability,
						Target:     desc.Target,
						Status:     downstream.OutcomeTimeout,
						ErrorKind:  downstream.ErrorKindTimeout,
						Message:    "overall request deadline exceeded",
					}
				}
			}
			return outcomes
		}
	}
	return outcomes
}
