package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParamsAccepts(t *testing.T) {
	v := NewSchemaValidator()

	err := v.ValidateParams(`
topic:    string & !=""
sections: int & >=1 & <=20 | *4
`, map[string]interface{}{"topic": "tides"})
	assert.NoError(t, err)
}

func TestValidateParamsRejectsConstraintViolation(t *testing.T) {
	v := NewSchemaValidator()

	err := v.ValidateParams("count: int & >=1", map[string]interface{}{"count": -3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count")
}

func TestValidateParamsRejectsMissingRequired(t *testing.T) {
	v := NewSchemaValidator()

	err := v.ValidateParams(`key: string & !=""`, map[string]interface{}{})
	assert.Error(t, err)
}

func TestValidateParamsDefaultsSatisfyConcreteness(t *testing.T) {
	v := NewSchemaValidator()

	err := v.ValidateParams(`days: int & >=1 | *7`, nil)
	assert.NoError(t, err)
}

func TestValidateParamsBadSchema(t *testing.T) {
	v := NewSchemaValidator()

	err := v.ValidateParams("count: int &", map[string]interface{}{"count": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema")
}
