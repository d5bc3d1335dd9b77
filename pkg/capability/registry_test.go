package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCapability struct {
	name   string
	schema string
	invoke func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

func (c *stubCapability) Name() string        { return c.name }
func (c *stubCapability) Description() string { return "stub" }
func (c *stubCapability) ParamSchema() string { return c.schema }

func (c *stubCapability) Invoke(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	return c.invoke(ctx, params)
}

func newTestRegistry(t *testing.T, timeout time.Duration) *Registry {
	t.Helper()
	return NewRegistry(timeout, zerolog.Nop())
}

func asFault(t *testing.T, err error) *Fault {
	t.Helper()
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	return fault
}

func TestInvokeUnknownCapability(t *testing.T) {
	registry := newTestRegistry(t, 0)
	registry.Register(&stubCapability{name: "alpha", invoke: func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
		return nil, nil
	}})
	registry.Register(&stubCapability{name: "beta", invoke: func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
		return nil, nil
	}})

	_, err := registry.Invoke(context.Background(), "gamma", nil)
	fault := asFault(t, err)

	assert.Equal(t, FaultNotFound, fault.ErrorCode)
	assert.Equal(t, "capability_gamma", fault.Component)
	assert.Contains(t, fault.Message, "alpha, beta")
	assert.NotEmpty(t, fault.RecoveryAction)
}

func TestInvokeValidatesParams(t *testing.T) {
	registry := newTestRegistry(t, 0)
	registry.Register(&stubCapability{
		name:   "sized",
		schema: "count: int & >=1",
		invoke: func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
			t.Fatal("capability must not run on invalid params")
			return nil, nil
		},
	})

	_, err := registry.Invoke(context.Background(), "sized", map[string]interface{}{"count": 0})
	fault := asFault(t, err)

	assert.Equal(t, FaultValidation, fault.ErrorCode)
	assert.Equal(t, "capability_sized", fault.Component)
	assert.NotEmpty(t, fault.Trace)
}

func TestInvokeTimeout(t *testing.T) {
	registry := newTestRegistry(t, 20*time.Millisecond)
	registry.Register(&stubCapability{
		name: "slow",
		invoke: func(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	_, err := registry.Invoke(context.Background(), "slow", nil)
	fault := asFault(t, err)

	assert.Equal(t, FaultTimeout, fault.ErrorCode)
	assert.Equal(t, "capability_slow", fault.Component)
}

func TestInvokeRecoversPanic(t *testing.T) {
	registry := newTestRegistry(t, 0)
	registry.Register(&stubCapability{
		name: "bomb",
		invoke: func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
			panic("boom")
		},
	})

	_, err := registry.Invoke(context.Background(), "bomb", nil)
	fault := asFault(t, err)

	assert.Equal(t, FaultExecution, fault.ErrorCode)
	assert.Equal(t, "capability panicked", fault.Message)
	assert.Contains(t, fault.Trace, "boom")
}

func TestInvokeWrapsPlainErrors(t *testing.T) {
	registry := newTestRegistry(t, 0)
	registry.Register(&stubCapability{
		name: "broken",
		invoke: func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
			return nil, errors.New("disk on fire")
		},
	})

	_, err := registry.Invoke(context.Background(), "broken", nil)
	fault := asFault(t, err)

	assert.Equal(t, FaultExecution, fault.ErrorCode)
	assert.Contains(t, fault.Trace, "disk on fire")
}

func TestInvokePassesFaultsThrough(t *testing.T) {
	registry := newTestRegistry(t, 0)
	original := &Fault{ErrorCode: FaultExecution, Component: "capability_custom", Message: "no quota"}
	registry.Register(&stubCapability{
		name: "custom",
		invoke: func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
			return nil, original
		},
	})

	_, err := registry.Invoke(context.Background(), "custom", nil)
	fault := asFault(t, err)
	assert.Same(t, original, fault)
}

func TestInvokeSuccess(t *testing.T) {
	registry := newTestRegistry(t, 0)
	registry.Register(&stubCapability{
		name:   "echo",
		schema: "text: string",
		invoke: func(_ context.Context, params map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"echo": params["text"]}, nil
		},
	})

	output, err := registry.Invoke(context.Background(), "echo", map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", output["echo"])
}

func TestListAndNamesSorted(t *testing.T) {
	registry := newTestRegistry(t, 0)
	RegisterBuiltins(registry)

	names := registry.Names()
	assert.Equal(t, []string{"allocate_blocks", "current_time", "detect_conflicts", "make_outline", "store_result"}, names)

	descriptors := registry.List()
	require.Len(t, descriptors, len(names))
	for i, d := range descriptors {
		assert.Equal(t, names[i], d.Name)
		assert.NotEmpty(t, d.Description)
	}
}

func TestRegisterReplaces(t *testing.T) {
	registry := newTestRegistry(t, 0)
	registry.Register(&stubCapability{name: "dup", invoke: func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"v": 1}, nil
	}})
	registry.Register(&stubCapability{name: "dup", invoke: func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"v": 2}, nil
	}})

	output, err := registry.Invoke(context.Background(), "dup", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, output["v"])
	assert.Len(t, registry.Names(), 1)
}

func TestFaultErrorAndPayload(t *testing.T) {
	fault := &Fault{
		ErrorCode:      FaultTimeout,
		Component:      "capability_slow",
		Message:        "invocation exceeded 15s",
		RecoveryAction: "retry",
	}

	assert.Equal(t, "capability_slow [TIMEOUT]: invocation exceeded 15s", fault.Error())

	payload := fault.Payload()
	assert.Equal(t, FaultTimeout, payload["error_code"])
	assert.Equal(t, "retry", payload["recovery_action"])
	_, hasTrace := payload["trace"]
	assert.False(t, hasTrace)
}
