package validation

import "github.com/rendis/opfilter/pkg/schema"

// Validator checks condition documents for correctness before they are built.
// Uses JSON Schema Draft 2020-12 for the structural stage.
type Validator interface {
	ValidateCondition(data []byte) (*schema.Condition, error)
	ValidateDocument(doc any, docSchema []byte) error
}
