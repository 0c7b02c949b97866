package validation

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/opfilter/pkg/schema"
)

const conditionSchemaURL = "https://opfilter.dev/schemas/condition.json"

// conditionSchemaJSON is the JSON Schema for condition documents.
// Embedded as a constant to avoid filesystem dependencies.
const conditionSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://opfilter.dev/schemas/condition.json",
  "$ref": "#/$defs/condition",
  "$defs": {
    "condition": {
      "type": "object",
      "minProperties": 1,
      "maxProperties": 1,
      "properties": {
        "andCondition": { "$ref": "#/$defs/conditionList" },
        "orCondition": { "$ref": "#/$defs/conditionList" },
        "xorCondition": { "$ref": "#/$defs/conditionList" },
        "notCondition": { "$ref": "#/$defs/condition" },
        "listConditionCondition": { "$ref": "#/$defs/listCondition" },
        "objectContainsPropertyCondition": {
          "type": "object",
          "required": ["object", "propertyName"],
          "properties": {
            "object": { "$ref": "#/$defs/operand" },
            "propertyName": { "type": "string" }
          },
          "additionalProperties": false
        },
        "listContainsValueCondition": {
          "type": "object",
          "required": ["list", "value"],
          "properties": {
            "list": { "$ref": "#/$defs/operand" },
            "value": {}
          },
          "additionalProperties": false
        },
        "textMatchesRegexPatternCondition": {
          "type": "object",
          "required": ["text", "regexPattern"],
          "properties": {
            "text": { "$ref": "#/$defs/operand" },
            "regexPattern": { "type": "string" }
          },
          "additionalProperties": false
        },
        "expressionCondition": {
          "type": "object",
          "required": ["expression"],
          "properties": {
            "engine": { "type": "string", "minLength": 1 },
            "expression": { "type": "string", "minLength": 1 }
          },
          "additionalProperties": false
        }
      },
      "patternProperties": {
        "^(date|time|dateTime)Is(EqualTo|After|AfterOrEqualTo|Before|BeforeOrEqualTo)Condition$": { "$ref": "#/$defs/comparison" },
        "^(integer|number)Is(EqualTo|GreaterThan|GreaterThanOrEqualTo|LessThan|LessThanOrEqualTo)Condition$": { "$ref": "#/$defs/comparison" }
      },
      "additionalProperties": false
    },
    "conditionList": {
      "type": "array",
      "items": { "$ref": "#/$defs/condition" }
    },
    "comparison": {
      "type": "object",
      "minProperties": 2,
      "maxProperties": 2,
      "additionalProperties": { "$ref": "#/$defs/operand" }
    },
    "listCondition": {
      "type": "object",
      "required": ["list", "itemAlias", "condition"],
      "properties": {
        "list": { "$ref": "#/$defs/operand" },
        "itemAlias": { "type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$" },
        "matchType": { "type": "string", "pattern": "^([Aa][Nn][Yy]|[Aa][Ll][Ll])$" },
        "condition": { "$ref": "#/$defs/condition" }
      },
      "additionalProperties": false
    },
    "operand": {
      "if": {
        "type": "object",
        "minProperties": 1,
        "maxProperties": 1,
        "patternProperties": {
          "^objectPathLookup(Date|Time|DateTime|Integer|Number|Text|List|Object)$": true
        },
        "additionalProperties": false
      },
      "then": {
        "additionalProperties": { "$ref": "#/$defs/lookup" }
      }
    },
    "lookup": {
      "oneOf": [
        { "type": "string", "minLength": 1 },
        {
          "type": "object",
          "required": ["path"],
          "properties": {
            "path": { "type": "string", "minLength": 1 },
            "raiseErrorIfNotFound": { "type": "boolean" },
            "raiseErrorIfNull": { "type": "boolean" },
            "raiseErrorIfTypeMismatch": { "type": "boolean" },
            "valueIfNotFound": { "$ref": "#/$defs/operand" },
            "valueIfNull": { "$ref": "#/$defs/operand" },
            "valueIfTypeMismatch": { "$ref": "#/$defs/operand" },
            "defaultValue": { "$ref": "#/$defs/operand" }
          },
          "additionalProperties": false
        }
      ]
    }
  }
}`

// Violation is one JSON Schema failure with its instance location.
type Violation struct {
	Location string
	Message  string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Location, v.Message)
}

// JSONSchemaValidator checks condition documents against the grammar's JSON
// Schema (Draft 2020-12), and arbitrary documents against caller supplied
// schemas. It is safe for concurrent use.
type JSONSchemaValidator struct {
	conditionSchema *jsonschema.Schema

	// mu guards the cache of caller supplied schemas.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the condition schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(conditionSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal condition schema: %w", err)
	}
	if err := c.AddResource(conditionSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add condition schema resource: %w", err)
	}
	compiled, err := c.Compile(conditionSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile condition schema: %w", err)
	}

	return &JSONSchemaValidator{
		conditionSchema: compiled,
		cache:           make(map[string]*jsonschema.Schema),
	}, nil
}

// CheckCondition validates a raw condition document. It returns the
// violations found; a document that is not JSON yields a single violation.
func (v *JSONSchemaValidator) CheckCondition(data []byte) []Violation {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []Violation{{Location: "/", Message: "condition is not valid JSON: " + err.Error()}}
	}
	if err := v.conditionSchema.Validate(doc); err != nil {
		return violationsOf(err)
	}
	return nil
}

// ValidateDocument validates a decoded JSON value against a JSON Schema
// provided as raw bytes. The schema is compiled and cached for subsequent
// calls with the same schema.
func (v *JSONSchemaValidator) ValidateDocument(doc any, docSchema []byte) error {
	if len(docSchema) == 0 {
		return nil // no schema means no validation needed
	}

	compiled, err := v.getOrCompile(docSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid document schema").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return toFilterError(err)
	}
	return nil
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Each dynamic schema gets a unique URL and a fresh compiler to avoid
	// resource collisions.
	url := fmt.Sprintf("opfilter://document-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toFilterError converts a jsonschema.ValidationError into a FilterError
// listing every violation.
func toFilterError(err error) *schema.FilterError {
	violations := violationsOf(err)
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.String()
	}

	switch len(msgs) {
	case 0:
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	case 1:
		return schema.NewError(schema.ErrCodeValidation, msgs[0]).
			WithDetails(map[string]any{"violations": msgs})
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(msgs)).
			WithDetails(map[string]any{"violations": msgs})
	}
}

func violationsOf(err error) []Violation {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []Violation{{Location: "/", Message: err.Error()}}
	}
	return collectViolations(verr)
}

// collectViolations walks a ValidationError tree and collects leaf errors
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []Violation {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []Violation{{Location: loc, Message: verr.Error()}}
	}

	var violations []Violation
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
