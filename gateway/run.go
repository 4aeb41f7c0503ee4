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
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver for the audit store
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"chemgpt/platform/config"
	"chemgpt/platform/downstream"
	"chemgpt/platform/llm"
	"chemgpt/platform/orchestrator"
	"chemgpt/platform/schema"
	"chemgpt/platform/shared/logger"
)

// Gateway holds the process-wide state: the orchestrator with its
// routing table, the shared circuit breakers behind it, the rate
// limiter, and the audit queue. All of it is built once in New and
// read-only afterwards; no package-level mutable state.
type Gateway struct {
	cfg          *config.Config
	orchestrator *orchestrator.Orchestrator
	limiter      *RateLimiter
	audit        *AuditQueue
	log          *logger.Logger
}

// New wires a Gateway from configuration. The LLM provider is optional:
// without an API key the enrichment capability is simply not routed.
func New(cfg *config.Config) (*Gateway, error) {
	validator, err := schema.NewValidator(nil)
	if err != nil {
		return nil, fmt.Errorf("compiling schemas: %w", err)
	}

	routes, err := buildRoutes(cfg)
	if err != nil {
		return nil, err
	}

	planner := orchestrator.NewPlanner(routes, validator,
		time.Duration(cfg.Service.DefaultTimeoutMs)*time.Millisecond)
	dispatcher := orchestrator.NewDispatcher(planner,
		time.Duration(cfg.Service.DispatchGraceMs)*time.Millisecond)
	orch := orchestrator.New(validator, planner, dispatcher, orchestrator.NewAggregator())

	g := &Gateway{
		cfg:          cfg,
		orchestrator: orch,
		log:          logger.New("gateway"),
	}

	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter, err := NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RedisURL)
		if err != nil {
			// Distributed limiting is best-effort; fall back to local.
			log.Printf("[Gateway] redis rate limiter unavailable: %v (using in-memory)", err)
			limiter, _ = NewRateLimiter(cfg.RateLimit.RequestsPerMinute, "")
		}
		g.limiter = limiter
	}

	if cfg.Audit.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.Audit.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening audit database: %w", err)
		}
		queue, err := NewAuditQueue(AuditMode(cfg.Audit.Mode), cfg.Audit.QueueSize,
			cfg.Audit.Workers, db, cfg.Audit.FallbackPath)
		if err != nil {
			return nil, fmt.Errorf("starting audit queue: %w", err)
		}
		g.audit = queue
	}

	return g, nil
}

// buildRoutes constructs one downstream client per target and binds the
// configured capabilities to them. Breakers and pools live inside the
// clients, so every capability sharing a target shares its state; the
// per-capability request path travels in the call descriptor.
func buildRoutes(cfg *config.Config) ([]orchestrator.Route, error) {
	clients := make(map[string]*downstream.Client)

	for targetName, targetCfg := range cfg.Targets {
		policy := targetCfg.Policy()

		var target downstream.Target
		switch targetCfg.EffectiveType() {
		case config.TargetTypeLLM:
			if cfg.LLM.APIKey == "" {
				log.Printf("[Gateway] LLM_API_KEY not set, target %q disabled", targetName)
				continue
			}
			provider, err := llm.NewProvider(llm.Config{
				APIKey:  cfg.LLM.APIKey,
				BaseURL: cfg.LLM.BaseURL,
				Model:   cfg.LLM.Model,
				Timeout: policy.Timeout,
			})
			if err != nil {
				return nil, fmt.Errorf("building llm provider: %w", err)
			}
			target = llm.NewTarget(targetName, provider)
		default:
			httpTarget, err := downstream.NewHTTPTarget(downstream.HTTPTargetConfig{
				Name:         targetName,
				BaseURL:      targetCfg.BaseURL,
				MaxIdleConns: policy.MaxConcurrent,
			})
			if err != nil {
				return nil, err
			}
			target = httpTarget
		}

		breaker := downstream.NewCircuitBreaker(targetName, policy)
		clients[targetName] = downstream.NewClient(target, policy, breaker)
	}

	routes := make([]orchestrator.Route, 0, len(cfg.Capabilities))
	for capName, rule := range cfg.Capabilities {
		client, ok := clients[rule.Target]
		if !ok {
			continue
		}
		routes = append(routes, orchestrator.Route{
			Capability: capName,
			Path:       rule.Path,
			Client:     client,
		})
	}
	return routes, nil
}

// Router builds the HTTP routing table.
func (g *Gateway) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", g.handleHealth).Methods("GET")
	r.HandleFunc("/health", g.handleHealth).Methods("GET")
	r.HandleFunc("/v1/query", g.handleQuery).Methods("POST")

	for _, ep := range []capabilityEndpoint{
		{endpoint: "retro", capability: "retrosynthesis"},
		{endpoint: "extract", capability: "extraction"},
		{endpoint: "spectro", capability: "spectroscopy"},
	} {
		r.HandleFunc("/"+ep.endpoint, g.handleCapability(ep)).Methods("POST")
	}

	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")
	return r
}

// Run loads configuration, builds the gateway, and serves until the
// process exits.
func Run() {
	cfg, err := config.Load(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	g, err := New(cfg)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}

	// CORS is wide open for now; lock down origins in production.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	handler := corsHandler.Handler(g.Router())
	addr := ":" + cfg.Service.Port

	log.Printf("🚀 ChemGPT gateway starting on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
