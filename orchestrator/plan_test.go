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
	"sync"
	"testing"
	"time"

	"chemgpt/platform/downstream"
	"chemgpt/platform/schema"
)

// stubTarget is a scriptable downstream.Target for orchestrator tests.
type stubTarget struct {
	name string
	fn   func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

	mu       sync.Mutex
	payloads []json.RawMessage
	paths    []string
}

func (s *stubTarget) Name() string { return s.name }

func (s *stubTarget) Invoke(ctx context.Context, desc downstream.CallDescriptor) (json.RawMessage, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, desc.Payload)
	s.paths = append(s.paths, desc.Path)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, desc.Payload)
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (s *stubTarget) received() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.payloads...)
}

func (s *stubTarget) calledPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func stubPolicy() downstream.Policy {
	return downstream.Policy{
		Timeout:          2 * time.Second,
		MaxRetries:       1,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
		FailureThreshold: 10,
		FailureWindow:    time.Minute,
		Cooldown:         time.Minute,
		MaxConcurrent:    8,
	}
}

func stubRoute(capability, targetName string, fn func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)) (Route, *stubTarget) {
	target := &stubTarget{name: targetName, fn: fn}
	client := downstream.NewClient(target, stubPolicy(), nil)
	return Route{Capability: capability, Path: "/" + capability, Client: client}, target
}

func testPlanner(t *testing.T, routes ...Route) *Planner {
	t.Helper()
	validator, err := schema.NewValidator(nil)
	if err != nil {
		t.Fatalf("building validator: %v", err)
	}
	return NewPlanner(routes, validator, 5*time.Second)
}

func TestBuildPlanSortsCapabilities(t *testing.T) {
	retro, _ := stubRoute("retrosynthesis", "retro", nil)
	spectro, _ := stubRoute("spectroscopy", "spectro", nil)
	planner := testPlanner(t, retro, spectro)

	plan, gerr := planner.BuildPlan(&RequestEnvelope{
		CallerID:     "bench-app",
		Capabilities: []string{"spectroscopy", "retrosynthesis"},
		Query:        json.RawMessage(`{"smiles":"CCO","molecule":"ethanol"}`),
	})
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}

	got := plan.Capabilities()
	want := []string{"retrosynthesis", "spectroscopy"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected sorted order %v, got %v", want, got)
		}
	}
	if plan.RequestID == "" {
		t.Error("plan should carry a request id")
	}
	if plan.Deadline != 5*time.Second {
		t.Errorf("expected default deadline, got %v", plan.Deadline)
	}
}

func TestBuildPlanSlicesQueryPerCapability(t *testing.T) {
	retro, _ := stubRoute("retrosynthesis", "retro", nil)
	extract, _ := stubRoute("extraction", "extract", nil)
	planner := testPlanner(t, retro, extract)

	plan, gerr := planner.BuildPlan(&RequestEnvelope{
		CallerID:     "bench-app",
		Capabilities: []string{"retrosynthesis", "extraction"},
		Query:        json.RawMessage(`{"smiles":"CCO","text":"aspirin synthesis notes"}`),
	})
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}

	byCapability := map[string]string{}
	for _, d := range plan.Descriptors {
		byCapability[d.Capability] = string(d.Payload)
	}
	if byCapability["retrosynthesis"] != `{"smiles":"CCO"}` {
		t.Errorf("retrosynthesis slice = %s", byCapability["retrosynthesis"])
	}
	if byCapability["extraction"] != `{"text":"aspirin synthesis notes"}` {
		t.Errorf("extraction slice = %s", byCapability["extraction"])
	}

	for _, d := range plan.Descriptors {
		if d.Path != "/"+d.Capability {
			t.Errorf("descriptor for %s carries path %q", d.Capability, d.Path)
		}
	}
}

func TestBuildPlanUnsupportedCapability(t *testing.T) {
	retro, _ := stubRoute("retrosynthesis", "retro", nil)
	planner := testPlanner(t, retro)

	_, gerr := planner.BuildPlan(&RequestEnvelope{
		CallerID:     "bench-app",
		Capabilities: []string{"crystallography"},
		Query:        json.RawMessage(`{"smiles":"CCO"}`),
	})
	if gerr == nil {
		t.Fatal("expected error for unmapped capability")
	}
	if gerr.Code != CodeUnsupportedCapability {
		t.Errorf("expected unsupported_capability, got %s", gerr.Code)
	}
	if gerr.HTTPStatus() != 400 {
		t.Errorf("expected 400, got %d", gerr.HTTPStatus())
	}
}

func TestBuildPlanMissingCapabilityInput(t *testing.T) {
	retro, _ := stubRoute("retrosynthesis", "retro", nil)
	planner := testPlanner(t, retro)

	// No smiles field for retrosynthesis.
	_, gerr := planner.BuildPlan(&RequestEnvelope{
		CallerID:     "bench-app",
		Capabilities: []string{"retrosynthesis"},
		Query:        json.RawMessage(`{"text":"some paper"}`),
	})
	if gerr == nil {
		t.Fatal("expected validation error")
	}
	if gerr.Code != CodeInvalidRequest {
		t.Errorf("expected invalid_request, got %s", gerr.Code)
	}
}

func TestBuildPlanCallerTimeoutWins(t *testing.T) {
	retro, _ := stubRoute("retrosynthesis", "retro", nil)
	planner := testPlanner(t, retro)

	plan, gerr := planner.BuildPlan(&RequestEnvelope{
		CallerID:     "bench-app",
		Capabilities: []string{"retrosynthesis"},
		Query:        json.RawMessage(`{"smiles":"CCO"}`),
		TimeoutMs:    750,
	})
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}
	if plan.Deadline != 750*time.Millisecond {
		t.Errorf("expected caller deadline 750ms, got %v", plan.Deadline)
	}
	// Sub-timeout must not exceed the overall deadline.
	if plan.Descriptors[0].Timeout > plan.Deadline {
		t.Errorf("sub-timeout %v exceeds deadline %v", plan.Descriptors[0].Timeout, plan.Deadline)
	}
}

func TestEnrichmentPromptDerivation(t *testing.T) {
	enrich, _ := stubRoute("enrichment", "llm", nil)
	planner := testPlanner(t, enrich)

	plan, gerr := planner.BuildPlan(&RequestEnvelope{
		CallerID:     "bench-app",
		Capabilities: []string{"enrichment"},
		Query:        json.RawMessage(`{"smiles":"c1ccccc1"}`),
	})
	if gerr != nil {
		t.Fatalf("unexpected error: %v", gerr)
	}

	var slice map[string]string
	if err := json.Unmarshal(plan.Descriptors[0].Payload, &slice); err != nil {
		t.Fatalf("decoding slice: %v", err)
	}
	if slice["prompt"] == "" {
		t.Fatal("expected a derived prompt from the smiles field")
	}
}
