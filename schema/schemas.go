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

package schema

// Built-in schema documents. Draft-07 keywords only.

// envelopeSchema is the ingress contract for POST /v1/query.
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["caller_id", "capabilities", "query"],
  "additionalProperties": false,
  "properties": {
    "caller_id": {
      "type": "string",
      "minLength": 1,
      "maxLength": 128
    },
    "capabilities": {
      "type": "array",
      "minItems": 1,
      "uniqueItems": true,
      "items": {
        "type": "string",
        "pattern": "^[a-z][a-z0-9-]*$"
      }
    },
    "query": {
      "type": "object"
    },
    "timeout_ms": {
      "type": "integer",
      "minimum": 1,
      "maximum": 600000
    }
  }
}`

// responseSchema is the egress contract for the aggregated response
// document. Checked before every response leaves the orchestrator.
const responseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["request_id", "status", "results"],
  "additionalProperties": false,
  "properties": {
    "request_id": {
      "type": "string",
      "minLength": 1
    },
    "status": {
      "type": "string",
      "enum": ["complete", "partial", "failed"]
    },
    "results": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["status"],
        "properties": {
          "status": {
            "type": "string",
            "enum": ["ok", "error"]
          },
          "payload": {},
          "error": {
            "type": "object",
            "required": ["kind", "message"],
            "properties": {
              "kind": {
                "type": "string",
                "enum": ["transient", "permanent", "timeout", "circuit_open"]
              },
              "message": {
                "type": "string"
              }
            }
          }
        }
      }
    }
  }
}`

// capabilitySchemas are the input contracts for the built-in
// capability payload slices, keyed by capability name.
var capabilitySchemas = map[string]string{
	"retrosynthesis": `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["smiles"],
  "properties": {
    "smiles": {
      "type": "string",
      "minLength": 1,
      "maxLength": 4096
    }
  }
}`,
	"extraction": `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": {
      "type": "string",
      "minLength": 1,
      "maxLength": 65536
    }
  }
}`,
	"spectroscopy": `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["molecule"],
  "properties": {
    "molecule": {
      "type": "string",
      "minLength": 1,
      "maxLength": 4096
    }
  }
}`,
	"enrichment": `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["prompt"],
  "properties": {
    "prompt": {
      "type": "string",
      "minLength": 1,
      "maxLength": 65536
    },
    "system_prompt": {
      "type": "string"
    },
    "model": {
      "type": "string"
    }
  }
}`,
}
