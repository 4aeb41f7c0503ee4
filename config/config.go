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

// Package config loads the gateway configuration: per-target base URLs
// and reliability policies, the capability routing table, and the
// optional rate-limit and audit settings. Configuration is loaded once
// at process start and is immutable afterwards.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chemgpt/platform/downstream"
)

// Production defaults for the ChemGPT microservices. Overridable via
// config file or RETRO_URL / EXTRACT_URL / SPECTRO_URL env vars.
const (
	DefaultRetroURL   = "https://chemgpt-se-production.up.railway.app"
	DefaultExtractURL = "https://chemgpt-extract-production.up.railway.app"
	DefaultSpectroURL = "https://chemgpt-spectro-production.up.railway.app"
)

// Config is the root gateway configuration.
type Config struct {
	Service      ServiceConfig             `yaml:"service"`
	Targets      map[string]TargetConfig   `yaml:"targets"`
	Capabilities map[string]CapabilityRule `yaml:"capabilities"`
	LLM          LLMConfig                 `yaml:"llm"`
	RateLimit    RateLimitConfig           `yaml:"rate_limit"`
	Audit        AuditConfig               `yaml:"audit"`
}

// ServiceConfig covers the HTTP surface.
type ServiceConfig struct {
	Port string `yaml:"port"`

	// DefaultTimeoutMs applies to envelopes that carry no timeout_ms.
	DefaultTimeoutMs int `yaml:"default_timeout_ms"`

	// DispatchGraceMs is the cancellation propagation grace period
	// added to the overall deadline before outstanding calls are
	// abandoned and recorded as timeouts.
	DispatchGraceMs int `yaml:"dispatch_grace_ms"`
}

// Target types.
const (
	// TargetTypeHTTP is a chemistry microservice reached by POSTing to
	// base_url plus the capability's path. The default.
	TargetTypeHTTP = "http"
	// TargetTypeLLM is the chat-completions enrichment provider,
	// configured by the llm section rather than base_url/path.
	TargetTypeLLM = "llm"
)

// TargetConfig is one downstream target plus its reliability policy.
type TargetConfig struct {
	Type             string  `yaml:"type"`
	BaseURL          string  `yaml:"base_url"`
	TimeoutMs        int     `yaml:"timeout_ms"`
	MaxRetries       *int    `yaml:"max_retries"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms"`
	Jitter           float64 `yaml:"jitter"`
	FailureThreshold int     `yaml:"failure_threshold"`
	FailureWindowS   int     `yaml:"failure_window_seconds"`
	CooldownS        int     `yaml:"cooldown_seconds"`
	MaxConcurrent    int     `yaml:"max_concurrent"`
}

// CapabilityRule maps a caller-facing capability onto a target.
type CapabilityRule struct {
	Target string `yaml:"target"`
	Path   string `yaml:"path"`
}

// LLMConfig configures the enrichment provider.
type LLMConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// RateLimitConfig configures per-caller rate limiting. RedisURL empty
// means in-memory limiting only.
type RateLimitConfig struct {
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	RedisURL          string `yaml:"redis_url"`
}

// AuditConfig configures the async audit queue. DatabaseURL empty
// disables persistence.
type AuditConfig struct {
	DatabaseURL  string `yaml:"database_url"`
	Mode         string `yaml:"mode"` // "compliance" or "performance"
	QueueSize    int    `yaml:"queue_size"`
	Workers      int    `yaml:"workers"`
	FallbackPath string `yaml:"fallback_path"`
}

// Default returns the built-in configuration: the three production
// chemistry microservices plus the LLM enrichment target.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Port:             "8080",
			DefaultTimeoutMs: 30000,
			DispatchGraceMs:  250,
		},
		Targets: map[string]TargetConfig{
			"retro":   {BaseURL: DefaultRetroURL},
			"extract": {BaseURL: DefaultExtractURL},
			"spectro": {BaseURL: DefaultSpectroURL},
			"llm":     {Type: TargetTypeLLM},
		},
		Capabilities: map[string]CapabilityRule{
			"retrosynthesis": {Target: "retro", Path: "/retrosynthesis"},
			"extraction":     {Target: "extract", Path: "/extract"},
			"spectroscopy":   {Target: "spectro", Path: "/spectroscopy"},
			"enrichment":     {Target: "llm"},
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
		Audit: AuditConfig{
			Mode:         "performance",
			QueueSize:    1000,
			Workers:      2,
			FallbackPath: "/tmp/chemgateway-audit.log",
		},
	}
}

// Load builds the effective configuration: defaults, overlaid with the
// YAML file at path (if non-empty), overlaid with env vars.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies the environment overrides the original deployment
// used, plus LLM credentials which never belong in the file.
func (c *Config) applyEnv() {
	overrideTargetURL(c, "retro", os.Getenv("RETRO_URL"))
	overrideTargetURL(c, "extract", os.Getenv("EXTRACT_URL"))
	overrideTargetURL(c, "spectro", os.Getenv("SPECTRO_URL"))

	if v := os.Getenv("PORT"); v != "" {
		c.Service.Port = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RateLimit.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Audit.DatabaseURL = v
	}
}

func overrideTargetURL(c *Config, name, url string) {
	if url == "" {
		return
	}
	t := c.Targets[name]
	t.BaseURL = url
	c.Targets[name] = t
}

// validate rejects configurations the gateway cannot serve.
func (c *Config) validate() error {
	for name, t := range c.Targets {
		switch t.EffectiveType() {
		case TargetTypeHTTP:
			if t.BaseURL == "" {
				return fmt.Errorf("target %q has no base_url", name)
			}
		case TargetTypeLLM:
		default:
			return fmt.Errorf("target %q has unknown type %q", name, t.Type)
		}
	}
	for name, rule := range c.Capabilities {
		if rule.Target == "" {
			return fmt.Errorf("capability %q has no target", name)
		}
		t, ok := c.Targets[rule.Target]
		if !ok {
			return fmt.Errorf("capability %q references unknown target %q", name, rule.Target)
		}
		if t.EffectiveType() == TargetTypeHTTP && !strings.HasPrefix(rule.Path, "/") {
			return fmt.Errorf("capability %q: path must start with /", name)
		}
	}
	if c.Service.DefaultTimeoutMs <= 0 {
		return fmt.Errorf("service default_timeout_ms must be positive")
	}
	return nil
}

// EffectiveType returns the target's type, defaulting to http.
func (t TargetConfig) EffectiveType() string {
	if t.Type == "" {
		return TargetTypeHTTP
	}
	return t.Type
}

// Policy converts a target's config into the immutable downstream
// policy shared by every client for that target.
func (t TargetConfig) Policy() downstream.Policy {
	p := downstream.DefaultPolicy()
	if t.TimeoutMs > 0 {
		p.Timeout = time.Duration(t.TimeoutMs) * time.Millisecond
	}
	if t.MaxRetries != nil && *t.MaxRetries >= 0 {
		p.MaxRetries = *t.MaxRetries
	}
	if t.InitialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(t.InitialBackoffMs) * time.Millisecond
	}
	if t.MaxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(t.MaxBackoffMs) * time.Millisecond
	}
	if t.Jitter > 0 {
		p.Jitter = t.Jitter
	}
	if t.FailureThreshold > 0 {
		p.FailureThreshold = t.FailureThreshold
	}
	if t.FailureWindowS > 0 {
		p.FailureWindow = time.Duration(t.FailureWindowS) * time.Second
	}
	if t.CooldownS > 0 {
		p.Cooldown = time.Duration(t.CooldownS) * time.Second
	}
	if t.MaxConcurrent > 0 {
		p.MaxConcurrent = t.MaxConcurrent
	}
	return p
}

// envVarRegex matches ${VAR} and ${VAR:-default} references.
var envVarRegex = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*(:-[^}]*)?\}`)

// expandEnvVars expands ${VAR} references in the config file content.
// ${VAR:-default} falls back to default when VAR is unset.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		inner := match[2 : len(match)-1]
		name := inner
		def := ""
		if idx := strings.Index(inner, ":-"); idx >= 0 {
			name = inner[:idx]
			def = inner[idx+2:]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}
