// Package schema validates MARC-in-JSON content and QuickMarc documents
// against JSON schemas before they are converted or stored.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	errordefs "github.com/RegistryAccord/registryaccord-qm-go/internal/errors"
)

// Names of the supported schemas.
const (
	MarcJSON  = "marc-json"
	QuickMarc = "quickmarc"
)

const marcJSONSchema = `{
  "type": "object",
  "required": ["leader", "fields"],
  "properties": {
    "leader": {"type": "string"},
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "minProperties": 1,
        "maxProperties": 1,
        "additionalProperties": false,
        "patternProperties": {
          "^00[0-9]$": {"type": "string"},
          "^[0-9A-Za-z]{3}$": {
            "oneOf": [
              {"type": "string"},
              {
                "type": "object",
                "required": ["subfields"],
                "properties": {
                  "ind1": {"type": "string", "maxLength": 1},
                  "ind2": {"type": "string", "maxLength": 1},
                  "subfields": {
                    "type": "array",
                    "items": {
                      "type": "object",
                      "minProperties": 1,
                      "maxProperties": 1,
                      "additionalProperties": {"type": "string"}
                    }
                  }
                }
              }
            ]
          }
        }
      }
    }
  }
}`

const quickMarcSchema = `{
  "type": "object",
  "required": ["marcFormat", "fields"],
  "properties": {
    "marcFormat": {"enum": ["BIBLIOGRAPHIC", "AUTHORITY", "HOLDINGS"]},
    "leader": {"type": "string", "maxLength": 24},
    "relatedRecordVersion": {"type": "string", "pattern": "^[0-9]*$"},
    "additionalInfo": {
      "type": "object",
      "properties": {"suppressDiscovery": {"type": "boolean"}}
    },
    "fields": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["tag"],
        "properties": {
          "tag": {"type": "string", "pattern": "^[0-9A-Za-z]{3}$"},
          "indicators": {"type": "string", "maxLength": 2},
          "content": {"type": ["string", "array", "object", "null"]}
        }
      }
    }
  }
}`

// Validator validates documents against the compiled schemas. It is safe for
// concurrent use.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles every supported schema.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	if err := v.loadSchema(MarcJSON, marcJSONSchema); err != nil {
		return nil, err
	}
	if err := v.loadSchema(QuickMarc, quickMarcSchema); err != nil {
		return nil, err
	}
	return v, nil
}

// loadSchema parses and compiles one schema.
func (v *Validator) loadSchema(name, schemaJSON string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", name, err)
	}
	v.schemas[name] = schema
	return nil
}

// Validate checks doc against the named schema. Violations are returned as a
// QM_VALIDATION error whose details list every failing field.
func (v *Validator) Validate(name string, doc []byte) error {
	schema, exists := v.schemas[name]
	if !exists {
		return fmt.Errorf("schema not found: %s", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return errordefs.Wrap(errordefs.QM_BAD_REQUEST, "document is not valid JSON", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return errordefs.NewWithDetails(errordefs.QM_VALIDATION, fmt.Sprintf("%s validation failed", name), errs)
	}
	return nil
}
