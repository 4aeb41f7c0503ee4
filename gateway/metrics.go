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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Gateway Prometheus metrics
var (
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemgateway_requests_total",
			Help: "Total gateway requests by endpoint and result status",
		},
		[]string{"endpoint", "status"},
	)
	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chemgateway_request_duration_milliseconds",
			Help:    "Gateway request duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"endpoint"},
	)
	gatewayCapabilityResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemgateway_capability_results_total",
			Help: "Per-capability result entries by entry status",
		},
		[]string{"capability", "status"},
	)
	gatewayRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chemgateway_rate_limited_total",
			Help: "Requests rejected by the per-caller rate limiter",
		},
	)
)

// gatewayMetricsOnce ensures metrics are registered only once
var gatewayMetricsOnce sync.Once

func init() {
	registerGatewayMetrics()
}

// registerGatewayMetrics registers all gateway metrics once (safe for
// multiple calls; duplicate registration is ignored).
func registerGatewayMetrics() {
	gatewayMetricsOnce.Do(func() {
		_ = prometheus.Register(gatewayRequestsTotal)
		_ = prometheus.Register(gatewayRequestDuration)
		_ = prometheus.Register(gatewayCapabilityResults)
		_ = prometheus.Register(gatewayRateLimited)
	})
}
