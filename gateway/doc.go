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

// Package gateway is the HTTP surface of the ChemGPT gateway: routing,
// CORS, rate limiting, Prometheus metrics, and audit logging around the
// orchestrator core.
//
// Endpoints:
//
//	GET  /            health
//	GET  /health      health
//	POST /v1/query    multi-capability request envelope
//	POST /retro       single-capability retrosynthesis
//	POST /extract     single-capability text extraction
//	POST /spectro     single-capability spectroscopy
//	GET  /prometheus  metrics
package gateway
