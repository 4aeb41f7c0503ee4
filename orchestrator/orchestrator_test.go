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
	"testing"
	"time"

	"chemgpt/platform/schema"
)

func testOrchestrator(t *testing.T, routes ...Route) *Orchestrator {
	t.Helper()
	validator, err := schema.NewValidator(nil)
	if err != nil {
		t.Fatalf("building validator: %v", err)
	}
	planner := NewPlanner(routes, validator, 2*time.Second)
	dispatcher := NewDispatcher(planner, 50*time.Millisecond)
	return New(validator, planner, dispatcher, NewAggregator())
}

func TestHandleRawRejectsInvalidEnvelope(t *testing.T) {
	retro, _ := stubRoute("retrosynthesis", "retro", nil)
	o := testOrchestrator(t, retro)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"missing caller_id", `{"capabilities":["retrosynthesis"],"query":{"smiles":"CCO"}}`},
		{"empty caller_id", `{"caller_id":"","capabilities":["retrosynthesis"],"query":{"smiles":"CCO"}}`},
		{"empty capabilities", `{"caller_id":"a","capabilities":[],"query":{}}`},
		{"duplicate capabilities", `{"caller_id":"a","capabilities":["retrosynthesis","retrosynthesis"],"query":{"smiles":"CCO"}}`},
		{"uppercase capability", `{"caller_id":"a","capabilities":["Retro"],"query":{}}`},
		{"query not object", `{"caller_id":"a","capabilities":["retrosynthesis"],"query":"CCO"}`},
		{"unknown field", `{"caller_id":"a","capabilities":["retrosynthesis"],"query":{},"extra":1}`},
		{"timeout too large", `{"caller_id":"a","capabilities":["retrosynthesis"],"query":{"smiles":"CCO"},"timeout_ms":999999999}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, gerr := o.HandleRaw(context.Background(), []byte(tt.body))
			if gerr == nil {
				t.Fatal("expected a gateway error")
			}
			if gerr.Code != CodeInvalidRequest {
				t.Errorf("expected invalid_request, got %s", gerr.Code)
			}
		})
	}
}

func TestHandleRawSuccessPath(t *testing.T) {
	retro, target := stubRoute("retrosynthesis", "retro", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"routes":[{"steps":3}]}`), nil
	})
	o := testOrchestrator(t, retro)

	doc, gerr := o.HandleRaw(context.Background(), []byte(
		`{"caller_id":"bench-app","capabilities":["retrosynthesis"],"query":{"smiles":"CCO"}}`))
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}

	if doc.Status != StatusComplete {
		t.Fatalf("expected complete, got %s", doc.Status)
	}
	entry := doc.Results["retrosynthesis"]
	if entry.Status != "ok" || string(entry.Payload) != `{"routes":[{"steps":3}]}` {
		t.Fatalf("unexpected entry %+v", entry)
	}

	received := target.received()
	if len(received) != 1 || string(received[0]) != `{"smiles":"CCO"}` {
		t.Fatalf("target received %v", received)
	}
}

func TestHandleUnsupportedCapabilityAbortsWholeRequest(t *testing.T) {
	retro, target := stubRoute("retrosynthesis", "retro", nil)
	o := testOrchestrator(t, retro)

	_, gerr := o.HandleRaw(context.Background(), []byte(
		`{"caller_id":"bench-app","capabilities":["crystallography","retrosynthesis"],"query":{"smiles":"CCO"}}`))
	if gerr == nil || gerr.Code != CodeUnsupportedCapability {
		t.Fatalf("expected unsupported_capability, got %v", gerr)
	}
	if len(target.received()) != 0 {
		t.Error("no target may be called when planning fails")
	}
}

func TestHandleIdempotentForIdenticalEnvelopes(t *testing.T) {
	retro, _ := stubRoute("retrosynthesis", "retro", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"routes":[]}`), nil
	})
	enrich, _ := stubRoute("enrichment", "llm", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"completion":"ethanol"}`), nil
	})
	o := testOrchestrator(t, retro, enrich)

	body := []byte(`{"caller_id":"bench-app","capabilities":["enrichment","retrosynthesis"],"query":{"smiles":"CCO"}}`)

	first, gerr := o.HandleRaw(context.Background(), body)
	if gerr != nil {
		t.Fatalf("first request: %v", gerr)
	}
	second, gerr := o.HandleRaw(context.Background(), body)
	if gerr != nil {
		t.Fatalf("second request: %v", gerr)
	}

	// Request IDs differ; everything else must be identical.
	first.RequestID = ""
	second.RequestID = ""
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("identical envelopes produced different documents:\n%s\n%s", a, b)
	}
}

func TestHandlePartialResponsePassesEgress(t *testing.T) {
	good, _ := stubRoute("retrosynthesis", "retro", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"routes":[]}`), nil
	})
	bad, _ := stubRoute("spectroscopy", "spectro", func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	o := testOrchestrator(t, good, bad)

	doc, gerr := o.HandleRaw(context.Background(), []byte(
		`{"caller_id":"bench-app","capabilities":["retrosynthesis","spectroscopy"],"query":{"smiles":"CCO","molecule":"ethanol"},"timeout_ms":100}`))
	if gerr != nil {
		t.Fatalf("partial response must pass egress validation: %v", gerr)
	}
	if doc.Status != StatusPartial {
		t.Fatalf("expected partial, got %s", doc.Status)
	}
	if doc.Results["spectroscopy"].Error == nil {
		t.Fatal("timed out capability should carry an error marker")
	}
}
