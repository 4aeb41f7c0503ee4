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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemgateway_downstream_calls_total",
			Help: "Total downstream calls by target and outcome status",
		},
		[]string{"target", "status"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chemgateway_downstream_call_duration_milliseconds",
			Help:    "Downstream call duration in milliseconds, retries included",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"target"},
	)
	callRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chemgateway_downstream_retries_total",
			Help: "Total retry attempts (attempts beyond the first) by target",
		},
		[]string{"target"},
	)
)

var metricsOnce sync.Once

func init() {
	registerMetrics()
}

// registerMetrics registers downstream metrics once; duplicate
// registration across tests is ignored.
func registerMetrics() {
	metricsOnce.Do(func() {
		_ = prometheus.Register(callsTotal)
		_ = prometheus.Register(callDuration)
		_ = prometheus.Register(callRetries)
	})
}

func recordCallMetrics(o CallOutcome) {
	callsTotal.WithLabelValues(o.Target, string(o.Status)).Inc()
	callDuration.WithLabelValues(o.Target).Observe(float64(o.Elapsed.Milliseconds()))
	if o.Attempts > 1 {
		callRetries.WithLabelValues(o.Target).Add(float64(o.Attempts - 1))
	}
}
