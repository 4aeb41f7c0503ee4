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

// Package downstream implements the client side of every remote call the
// gateway makes: chemistry microservices and the LLM provider alike.
//
// A Client wraps exactly one Target with the reliability policy for that
// target: per-call sub-timeout, exponential backoff retry with jitter,
// a shared circuit breaker, and a bounded concurrency pool. Every call
// returns a CallOutcome; errors never escape the Call boundary.
package downstream
