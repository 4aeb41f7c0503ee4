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

package orchestrator

import (
	"fmt"
	"net/http"
)

// ErrorCode identifies a request-aborting gateway error. Per-call
// failures are not gateway errors; they surface as degraded entries in
// the response document.
type ErrorCode string

const (
	// CodeInvalidRequest: the envelope or a capability input failed
	// schema validation.
	CodeInvalidRequest ErrorCode = "invalid_request"

	// CodeUnsupportedCapability: a requested capability has no mapped
	// target.
	CodeUnsupportedCapability ErrorCode = "unsupported_capability"

	// CodeInternalSchemaViolation: the gateway's own response document
	// failed egress validation, which indicates a gateway bug.
	CodeInternalSchemaViolation ErrorCode = "internal_schema_violation"
)

// GatewayError is the single structured error object a caller receives
// when the whole request aborts.
type GatewayError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps the error code onto the HTTP boundary.
func (e *GatewayError) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidRequest, CodeUnsupportedCapability:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func invalidRequest(format string, args ...interface{}) *GatewayError {
	return &GatewayError{Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func unsupportedCapability(name string) *GatewayError {
	return &GatewayError{
		Code:    CodeUnsupportedCapability,
		Message: fmt.Sprintf("capability %q is not supported by this gateway", name),
	}
}

// internalSchemaViolation deliberately carries no payload detail; the
// specific violation is logged server-side only.
func internalSchemaViolation() *GatewayError {
	return &GatewayError{
		Code:    CodeInternalSchemaViolation,
		Message: "internal error producing response document",
	}
}
