package validation

import (
	"github.com/rendis/opfilter/internal/expressions"
	"github.com/rendis/opfilter/internal/predicate"
	"github.com/rendis/opfilter/pkg/schema"
)

// ConditionValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Decoding (grammar keys, operand shapes)
// 3. Semantic (paths, aliases, kinds, patterns, expressions)
type ConditionValidator struct {
	jsonSchema *JSONSchemaValidator
	engines    *expressions.Registry
	rootAlias  string
}

// NewConditionValidator creates a ConditionValidator.
// engines may be nil to skip expression checks.
func NewConditionValidator(engines *expressions.Registry) (*ConditionValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &ConditionValidator{
		jsonSchema: jsv,
		engines:    engines,
		rootAlias:  predicate.DefaultRootAlias,
	}, nil
}

// WithRootAlias sets the alias bound to the root scope; "#<alias>" paths
// naming it are accepted.
func (cv *ConditionValidator) WithRootAlias(alias string) *ConditionValidator {
	cv.rootAlias = alias
	return cv
}

// Validate runs the full pipeline and returns the decoded condition with an
// aggregated result. Structural and decoding errors short-circuit; the
// condition is nil in that case.
func (cv *ConditionValidator) Validate(data []byte) (*schema.Condition, *schema.ValidationResult) {
	result := &schema.ValidationResult{}

	// Stage 1: Structural (JSON Schema).
	for _, v := range cv.jsonSchema.CheckCondition(data) {
		result.AddError(v.Location, schema.ErrCodeValidation, v.Message)
	}
	if !result.Valid() {
		return nil, result
	}

	// Stage 2: Decoding.
	cond, err := schema.ParseCondition(data)
	if err != nil {
		result.AddError(locationOf(err), schema.ErrCodeValidation, messageOf(err))
		return nil, result
	}

	// Stage 3: Semantic.
	result.Merge(validateSemantic(cond, cv.rootAlias, cv.engines))
	return cond, result
}

// ValidateCondition satisfies the Validator interface.
func (cv *ConditionValidator) ValidateCondition(data []byte) (*schema.Condition, error) {
	cond, result := cv.Validate(data)
	if err := result.ToError(); err != nil {
		return nil, err
	}
	return cond, nil
}

// ValidateDocument delegates to the underlying JSONSchemaValidator.
func (cv *ConditionValidator) ValidateDocument(doc any, docSchema []byte) error {
	return cv.jsonSchema.ValidateDocument(doc, docSchema)
}

func locationOf(err error) string {
	if fe, ok := err.(*schema.FilterError); ok {
		if loc, ok := fe.Details["location"].(string); ok {
			return loc
		}
	}
	return "/"
}

var _ Validator = (*ConditionValidator)(nil)
