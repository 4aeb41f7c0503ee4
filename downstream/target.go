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

package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// defaultMaxResponseSize caps downstream response bodies (10MB).
	defaultMaxResponseSize = 10 * 1024 * 1024
)

// Target is one remote endpoint the gateway can call. Implementations
// must be safe for concurrent use. Invoke performs a single attempt;
// retry, breaker, and pooling live in Client. One Target instance
// serves every capability routed to it, so the descriptor carries the
// per-capability request path.
//
// Errors should be wrapped in TransientError or PermanentError so the
// retry loop can classify them; unwrapped errors are classified by
// IsTransient heuristics.
type Target interface {
	// Name returns the configured target name, used for routing,
	// logging, and metrics.
	Name() string

	// Invoke sends the descriptor's payload to the remote endpoint and
	// returns the raw response body. The context carries the
	// per-attempt deadline.
	Invoke(ctx context.Context, desc CallDescriptor) (json.RawMessage, error)
}

// HTTPTarget calls a chemistry microservice: POST base URL + the
// descriptor's path with a JSON body, JSON response. Connections are
// pooled and reused across requests via the shared http.Transport.
type HTTPTarget struct {
	name    string
	baseURL string
	client  *http.Client
	maxSize int64
}

// HTTPTargetConfig configures an HTTPTarget.
type HTTPTargetConfig struct {
	Name    string
	BaseURL string

	// MaxIdleConns bounds the pooled connections kept to this target.
	// Zero means DefaultMaxConcurrent.
	MaxIdleConns int

	// MaxResponseSize caps the response body; zero means 10MB.
	MaxResponseSize int64
}

// NewHTTPTarget validates the config and builds the target with its own
// pooled transport.
func NewHTTPTarget(cfg HTTPTargetConfig) (*HTTPTarget, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("target name is required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("target %s: invalid base_url: %w", cfg.Name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("target %s: base_url must use http or https scheme", cfg.Name)
	}

	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = DefaultMaxConcurrent
	}
	maxSize := cfg.MaxResponseSize
	if maxSize <= 0 {
		maxSize = defaultMaxResponseSize
	}

	transport := &http.Transport{
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdle,
		MaxConnsPerHost:     maxIdle,
		IdleConnTimeout:     90 * time.Second,
	}

	return &HTTPTarget{
		name:    cfg.Name,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{Transport: transport},
		maxSize: maxSize,
	}, nil
}

// Name returns the target name.
func (t *HTTPTarget) Name() string { return t.name }

// Invoke performs one POST to the descriptor's path on the target.
// Status codes are classified for the retry loop: 408/429/5xx are
// transient, other non-2xx are permanent.
func (t *HTTPTarget) Invoke(ctx context.Context, desc CallDescriptor) (json.RawMessage, error) {
	if !strings.HasPrefix(desc.Path, "/") {
		return nil, &PermanentError{Err: fmt.Errorf("target %s: capability %s has no request path", t.name, desc.Capability)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+desc.Path, bytes.NewReader(desc.Payload))
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// Respect the caller's deadline/cancellation signal as-is.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: fmt.Errorf("calling %s: %w", t.name, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxSize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: fmt.Errorf("reading %s response: %w", t.name, err)}
	}

	if err := classifyStatus(t.name, resp.StatusCode); err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, &PermanentError{Err: fmt.Errorf("%s returned non-JSON response", t.name)}
	}
	return json.RawMessage(body), nil
}

// classifyStatus maps an HTTP status code to nil, TransientError, or
// PermanentError.
func classifyStatus(target string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return &TransientError{Err: fmt.Errorf("%s returned status %d", target, status)}
	default:
		return &PermanentError{Err: fmt.Errorf("%s returned status %d", target, status)}
	}
}
