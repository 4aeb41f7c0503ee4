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

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"chemgpt/platform/downstream"
)

// EnrichmentSystemPrompt frames the model as a chemistry assistant for
// the enrichment capability.
const EnrichmentSystemPrompt = "You are a chemistry research assistant. " +
	"Given a chemistry query, provide a concise structured analysis. " +
	"Answer factually; say so when uncertain."

// enrichmentInput is the payload slice the orchestrator builds for the
// llm target.
type enrichmentInput struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Model        string `json:"model,omitempty"`
}

// enrichmentOutput is what the target returns to the aggregator.
type enrichmentOutput struct {
	Completion   string `json:"completion"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	TotalTokens  int    `json:"total_tokens"`
}

// Target adapts a Provider into a downstream.Target so the LLM call
// goes through the same retry, breaker, and pooling path as the
// chemistry microservices.
type Target struct {
	name     string
	provider *Provider
}

// NewTarget wraps provider as the named downstream target.
func NewTarget(name string, provider *Provider) *Target {
	return &Target{name: name, provider: provider}
}

// Name returns the configured target name.
func (t *Target) Name() string { return t.name }

// Invoke runs one completion. The descriptor's payload must carry a
// prompt; a missing prompt is a permanent failure since retrying cannot
// fix it. The descriptor path is ignored: the provider has one endpoint.
func (t *Target) Invoke(ctx context.Context, desc downstream.CallDescriptor) (json.RawMessage, error) {
	var input enrichmentInput
	if err := json.Unmarshal(desc.Payload, &input); err != nil {
		return nil, &downstream.PermanentError{Err: fmt.Errorf("invalid enrichment payload: %w", err)}
	}
	if input.Prompt == "" {
		return nil, &downstream.PermanentError{Err: fmt.Errorf("enrichment payload missing prompt")}
	}

	system := input.SystemPrompt
	if system == "" {
		system = EnrichmentSystemPrompt
	}

	resp, err := t.provider.Complete(ctx, CompletionRequest{
		Prompt:       input.Prompt,
		SystemPrompt: system,
		Model:        input.Model,
		Temperature:  -1,
	})
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(enrichmentOutput{
		Completion:   resp.Content,
		Model:        resp.Model,
		FinishReason: resp.FinishReason,
		TotalTokens:  resp.Usage.TotalTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal enrichment output: %w", err)
	}
	return out, nil
}
