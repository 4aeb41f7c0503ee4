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

/*
Package logger provides structured JSON logging for gateway components.

Each log entry is a single JSON line on stdout carrying the timestamp,
level, component name, instance and host identity, the caller ID, and
the request ID, so one request can be traced across the orchestration
path by any log aggregation system.

Create a logger per component:

	log := logger.New("gateway")

Log with caller and request context:

	log.Info("acme-app", "req-456", "request dispatched", map[string]interface{}{
	    "capabilities": 3,
	})

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
