package capability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedCapabilityResultGlobal(t *testing.T) {
	cap := NewScriptedCapability("doubler", "doubles a number", "", `
n = params["n"]
result = {"doubled": n * 2}
`)

	output, err := cap.Invoke(context.Background(), map[string]interface{}{"n": 21})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"doubled": int64(42)}, output)
}

func TestScriptedCapabilityExportsGlobalsWithoutResult(t *testing.T) {
	cap := NewScriptedCapability("greeter", "greets", "", `
greeting = "hello " + params["name"]
_hidden = "secret"
`)

	output, err := cap.Invoke(context.Background(), map[string]interface{}{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ada", output["greeting"])
	_, exported := output["_hidden"]
	assert.False(t, exported)
}

func TestScriptedCapabilityScriptError(t *testing.T) {
	cap := NewScriptedCapability("bad", "fails", "", `result = undefined_name`)

	_, err := cap.Invoke(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starlark execution failed")
}

func TestStarlarkEvaluatorTimeout(t *testing.T) {
	eval := NewStarlarkEvaluator(20 * time.Millisecond)

	script := `
def spin():
    total = 0
    for i in range(1000000000):
        total += i
    return total

result = {"total": spin()}
`
	_, err := eval.Evaluate(context.Background(), script, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestScriptedCapabilityThroughRegistry(t *testing.T) {
	registry := newTestRegistry(t, 0)
	registry.Register(NewScriptedCapability("summer", "sums numbers", "values: [...number]", `
def add_all(values):
    total = 0
    for v in values:
        total += v
    return total

result = {"sum": add_all(params["values"])}
`))

	output, err := registry.Invoke(context.Background(), "summer", map[string]interface{}{
		"values": []interface{}{1, 2, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), output["sum"])

	_, err = registry.Invoke(context.Background(), "summer", map[string]interface{}{
		"values": "nope",
	})
	fault := asFault(t, err)
	assert.Equal(t, FaultValidation, fault.ErrorCode)
}

func TestValueConversionRoundTrip(t *testing.T) {
	cap := NewScriptedCapability("mirror", "returns input", "", `result = {"echo": params}`)

	params := map[string]interface{}{
		"s":    "text",
		"f":    1.5,
		"b":    true,
		"list": []interface{}{"a", "b"},
		"nested": map[string]interface{}{
			"k": "v",
		},
	}
	output, err := cap.Invoke(context.Background(), params)
	require.NoError(t, err)

	echo, ok := output["echo"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "text", echo["s"])
	assert.Equal(t, 1.5, echo["f"])
	assert.Equal(t, true, echo["b"])
	assert.Equal(t, []interface{}{"a", "b"}, echo["list"])
	assert.Equal(t, map[string]interface{}{"k": "v"}, echo["nested"])
}
