package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// flowSchema is the JSON schema for flow documents. Validation is advisory:
// the engine itself tolerates malformed node data by skipping it, but the
// validate command surfaces authoring mistakes early.
const flowSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "FableFlow Flow",
  "type": "object",
  "required": ["name", "nodes"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "start": {"type": "string"},
    "sheets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["shortcut"],
        "properties": {
          "shortcut": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "variables": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "block_type"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "block_type": {
                  "type": "string",
                  "enum": ["number", "boolean", "text", "rich_text", "select", "multi_select", "date"]
                },
                "initial_value": {}
              }
            }
          }
        }
      }
    },
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {
            "type": "string",
            "enum": ["entry", "exit", "dialogue", "condition", "instruction", "hub", "jump", "scene", "subflow"]
          }
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": {"type": "string", "minLength": 1},
          "from_pin": {"type": "string"},
          "to": {"type": "string", "minLength": 1},
          "to_pin": {"type": "string"}
        }
      }
    }
  }
}`

// ValidateAgainstSchema validates flow document bytes against the flow JSON
// schema. The document is parsed as YAML first, then re-marshaled for the
// schema check, so both YAML and JSON authoring formats are accepted.
func ValidateAgainstSchema(docBytes []byte) error {
	if len(docBytes) == 0 {
		return errors.New("empty flow input")
	}

	// Parse as YAML into a generic structure that gojsonschema can validate
	// directly. JSON input also parses, since YAML is a superset of JSON.
	var doc map[string]interface{}
	if err := yaml.Unmarshal(docBytes, &doc); err != nil {
		return fmt.Errorf("failed to parse flow document: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(flowSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var sb strings.Builder
		sb.WriteString("flow document failed schema validation:")
		for _, desc := range result.Errors() {
			sb.WriteString("\n  - ")
			sb.WriteString(desc.String())
		}
		return errors.New(sb.String())
	}

	return nil
}
