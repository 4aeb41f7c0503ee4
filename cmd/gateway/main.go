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

// Package main is the entry point for the ChemGPT gateway service.
//
// The gateway accepts chemistry-domain requests, fans them out to the
// retrosynthesis, extraction, and spectroscopy microservices and the
// LLM enrichment provider, and returns one aggregated, validated
// response document.
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	PORT           - HTTP server port (default: 8080)
//	GATEWAY_CONFIG - optional YAML config file path
//	RETRO_URL      - retrosynthesis service base URL
//	EXTRACT_URL    - extraction service base URL
//	SPECTRO_URL    - spectroscopy service base URL
//	LLM_API_KEY    - enrichment provider API key
//	LLM_BASE_URL   - enrichment provider base URL
//	REDIS_URL      - optional Redis for distributed rate limiting
//	DATABASE_URL   - optional PostgreSQL for audit logging
package main

import (
	"chemgpt/platform/gateway"
)

func main() {
	gateway.Run()
}
