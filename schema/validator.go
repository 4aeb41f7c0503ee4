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

// Package schema validates gateway payloads against declared JSON
// Schema contracts. Validation is side-effect-free and applied
// symmetrically: the request envelope and capability inputs on ingress,
// the response document on egress.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Well-known schema names.
const (
	Envelope = "envelope"
	Response = "response"
)

// ValidationError reports the first violation found in a payload.
type ValidationError struct {
	Schema string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema %s: field %q: %s", e.Schema, e.Path, e.Reason)
}

// Validator holds compiled schemas keyed by name. Compile once at
// process start; Validate is safe for concurrent use.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the built-in gateway schemas plus any extra
// named schema documents (e.g. custom capability contracts from
// configuration).
func NewValidator(extra map[string]string) (*Validator, error) {
	sources := map[string]string{
		Envelope: envelopeSchema,
		Response: responseSchema,
	}
	for name, doc := range capabilitySchemas {
		sources[name] = doc
	}
	for name, doc := range extra {
		sources[name] = doc
	}

	compiled := make(map[string]*gojsonschema.Schema, len(sources))
	for name, doc := range sources {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", name, err)
		}
		compiled[name] = s
	}
	return &Validator{schemas: compiled}, nil
}

// Has reports whether a schema with the given name is registered.
func (v *Validator) Has(name string) bool {
	_, ok := v.schemas[name]
	return ok
}

// Validate checks doc against the named schema and returns nil or a
// *ValidationError describing the first violation.
func (v *Validator) Validate(name string, doc []byte) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		// Not valid JSON at all.
		return &ValidationError{Schema: name, Path: "(document)", Reason: err.Error()}
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	return &ValidationError{
		Schema: name,
		Path:   first.Field(),
		Reason: first.Description(),
	}
}
