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

// Package orchestrator coordinates one gateway request end to end:
// envelope validation, call planning, concurrent fan-out under a single
// deadline, and best-effort aggregation into a response document.
//
// The invariant the package maintains is completeness: every capability
// in a call plan has exactly one entry in the response document, whether
// its call succeeded, failed, timed out, or was rejected by an open
// circuit breaker.
package orchestrator
