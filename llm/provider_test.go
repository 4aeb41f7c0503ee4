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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chemgpt/platform/downstream"
)

func completionServer(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewProvider(Config{
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("building provider: %v", err)
	}
	return provider
}

func completionJSON(content, finishReason string, totalTokens int) string {
	return `{
		"model": "gpt-4o-mini",
		"choices": [{"message": {"role": "assistant", "content": ` + mustQuote(content) + `}, "finish_reason": "` + finishReason + `"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": ` + itoa(totalTokens) + `}
	}`
}

func mustQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestProviderComplete(t *testing.T) {
	provider := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", auth)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("unexpected model %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionJSON("Ethanol is a simple alcohol.", "stop", 15)))
	})

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Prompt:       "Describe ethanol",
		SystemPrompt: "You are a chemistry assistant.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "Ethanol is a simple alcohol." {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("unexpected finish reason %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if !provider.IsHealthy() {
		t.Error("provider should be healthy after a successful call")
	}
}

func TestProviderErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := completionServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
			})

			_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "ping"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := downstream.IsTransient(err); got != tt.transient {
				t.Errorf("status %d: expected transient=%v, got %v", tt.status, tt.transient, got)
			}
		})
	}
}

func TestProviderEmptyChoices(t *testing.T) {
	provider := completionServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[],"usage":{}}`))
	})

	_, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "ping"})
	var permanent *downstream.PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("empty choices should be permanent, got %v", err)
	}
}

func TestNewProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestTargetInvoke(t *testing.T) {
	provider := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		// Default system prompt applied when the payload has none.
		if req.Messages[0].Role != "system" || req.Messages[0].Content != EnrichmentSystemPrompt {
			t.Errorf("expected default system prompt, got %+v", req.Messages[0])
		}
		w.Write([]byte(completionJSON("Benzene is aromatic.", "stop", 20)))
	})
	target := NewTarget("llm", provider)

	if target.Name() != "llm" {
		t.Errorf("unexpected target name %s", target.Name())
	}

	payload, err := target.Invoke(context.Background(), downstream.CallDescriptor{
		Capability: "enrichment",
		Target:     "llm",
		Payload:    json.RawMessage(`{"prompt":"Describe benzene"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out enrichmentOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if out.Completion != "Benzene is aromatic." {
		t.Errorf("unexpected completion %q", out.Completion)
	}
	if out.TotalTokens != 20 {
		t.Errorf("unexpected tokens %d", out.TotalTokens)
	}
}

func TestTargetInvokeMissingPrompt(t *testing.T) {
	provider := completionServer(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("provider must not be called for an empty prompt")
	})
	target := NewTarget("llm", provider)

	_, err := target.Invoke(context.Background(), downstream.CallDescriptor{
		Capability: "enrichment",
		Target:     "llm",
		Payload:    json.RawMessage(`{}`),
	})
	var permanent *downstream.PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("missing prompt should be permanent, got %v", err)
	}
}
