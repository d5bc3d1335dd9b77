package capability

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// SchemaValidator validates invocation parameters against CUE schemas.
type SchemaValidator struct {
	ctx *cue.Context
}

// NewSchemaValidator creates a new validator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		ctx: cuecontext.New(),
	}
}

// ValidateParams unifies the parameters with the schema and reports any
// constraint violation. A nil params map is validated as an empty struct.
func (v *SchemaValidator) ValidateParams(schema string, params map[string]interface{}) error {
	schemaVal := v.ctx.CompileString(schema)
	if err := schemaVal.Err(); err != nil {
		return fmt.Errorf("invalid schema: %s", cueerrors.Details(err, nil))
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	paramsVal := v.ctx.Encode(params)
	if err := paramsVal.Err(); err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	unified := schemaVal.Unify(paramsVal)
	if err := unified.Err(); err != nil {
		return fmt.Errorf("parameters do not match schema: %s", cueerrors.Details(err, nil))
	}

	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("parameters do not satisfy schema: %s", cueerrors.Details(err, nil))
	}

	return nil
}
