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

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"chemgpt/platform/orchestrator"
)

const (
	// maxRequestBody caps inbound request bodies (1MB).
	maxRequestBody = 1 * 1024 * 1024

	serviceName = "gateway"
)

// handleHealth serves GET / and GET /health.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"service": serviceName,
	}
	if g.audit != nil {
		body["audit"] = g.audit.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

// handleQuery serves POST /v1/query: the full multi-capability envelope.
func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		g.writeGatewayError(w, "query", &orchestrator.GatewayError{
			Code:    orchestrator.CodeInvalidRequest,
			Message: "cannot read request body",
		})
		return
	}

	// Rate limit before any fan-out work. The caller id is peeked from
	// the raw body; full schema validation happens in HandleRaw.
	var peek struct {
		CallerID string `json:"caller_id"`
	}
	_ = json.Unmarshal(body, &peek)
	if !g.allowCaller(r.Context(), w, "query", peek.CallerID) {
		return
	}

	doc, gerr := g.orchestrator.HandleRaw(r.Context(), body)
	if gerr != nil {
		g.writeGatewayError(w, "query", gerr)
		return
	}

	g.recordQuery(doc, "query", start, body)
	writeJSON(w, http.StatusOK, doc)
	gatewayRequestsTotal.WithLabelValues("query", string(doc.Status)).Inc()
	gatewayRequestDuration.WithLabelValues("query").Observe(float64(time.Since(start).Milliseconds()))
}

// capabilityEndpoint describes one single-capability convenience route
// kept compatible with the original gateway surface.
type capabilityEndpoint struct {
	endpoint   string
	capability string
}

// handleCapability serves POST /retro, /extract, and /spectro. The body
// carries the one field the capability needs; the request runs through
// the same plan/dispatch/aggregate path as /v1/query.
func (g *Gateway) handleCapability(ep capabilityEndpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			g.writeGatewayError(w, ep.endpoint, &orchestrator.GatewayError{
				Code:    orchestrator.CodeInvalidRequest,
				Message: "cannot read request body",
			})
			return
		}

		var query map[string]interface{}
		if err := json.Unmarshal(body, &query); err != nil {
			g.writeGatewayError(w, ep.endpoint, &orchestrator.GatewayError{
				Code:    orchestrator.CodeInvalidRequest,
				Message: "request body is not a JSON object",
			})
			return
		}

		caller := callerID(r)
		if !g.allowCaller(r.Context(), w, ep.endpoint, caller) {
			return
		}

		env := &orchestrator.RequestEnvelope{
			CallerID:     caller,
			Capabilities: []string{ep.capability},
			Query:        json.RawMessage(body),
		}

		doc, gerr := g.orchestrator.Handle(r.Context(), env)
		if gerr != nil {
			g.writeGatewayError(w, ep.endpoint, gerr)
			return
		}
		g.recordDocument(doc, env.CallerID, start)

		entry := doc.Results[ep.capability]
		gatewayRequestDuration.WithLabelValues(ep.endpoint).Observe(float64(time.Since(start).Milliseconds()))

		if entry.Status == "ok" {
			gatewayRequestsTotal.WithLabelValues(ep.endpoint, "complete").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(entry.Payload)
			return
		}

		gatewayRequestsTotal.WithLabelValues(ep.endpoint, "failed").Inc()
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": entry.Error,
		})
	}
}

// allowCaller applies the per-caller rate limit, writing the 429
// response itself when the limit is hit.
func (g *Gateway) allowCaller(ctx context.Context, w http.ResponseWriter, endpoint, caller string) bool {
	if g.limiter == nil {
		return true
	}
	if caller == "" {
		caller = "anonymous"
	}
	if err := g.limiter.Allow(ctx, caller); err != nil {
		gatewayRateLimited.Inc()
		gatewayRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error": map[string]string{
				"code":    "rate_limited",
				"message": err.Error(),
			},
		})
		return false
	}
	return true
}

// callerID resolves the caller identity for the convenience routes.
// The aggregate endpoint carries it in the envelope instead.
func callerID(r *http.Request) string {
	if id := r.Header.Get("X-Caller-ID"); id != "" {
		return id
	}
	return "anonymous"
}

// recordQuery extracts the caller from the raw envelope for auditing.
func (g *Gateway) recordQuery(doc *orchestrator.ResponseDocument, endpoint string, start time.Time, raw []byte) {
	var env orchestrator.RequestEnvelope
	_ = json.Unmarshal(raw, &env)
	g.recordDocument(doc, env.CallerID, start)
}

// recordDocument pushes per-capability metrics and the audit record for
// one completed document.
func (g *Gateway) recordDocument(doc *orchestrator.ResponseDocument, caller string, start time.Time) {
	capabilities := make([]string, 0, len(doc.Results))
	for capability, entry := range doc.Results {
		capabilities = append(capabilities, capability)
		gatewayCapabilityResults.WithLabelValues(capability, entry.Status).Inc()
	}

	if g.audit != nil {
		if err := g.audit.Record(AuditRecord{
			RequestID:    doc.RequestID,
			CallerID:     caller,
			Capabilities: capabilities,
			Status:       string(doc.Status),
			DurationMs:   time.Since(start).Milliseconds(),
		}); err != nil {
			g.log.Warn(caller, doc.RequestID, "audit record dropped", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// writeGatewayError writes the single structured error object for an
// aborted request.
func (g *Gateway) writeGatewayError(w http.ResponseWriter, endpoint string, gerr *orchestrator.GatewayError) {
	gatewayRequestsTotal.WithLabelValues(endpoint, string(gerr.Code)).Inc()
	writeJSON(w, gerr.HTTPStatus(), map[string]interface{}{
		"error": gerr,
	})
}

// writeJSON writes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
