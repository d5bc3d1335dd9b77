package capability

import (
	"context"
	"fmt"
)

// Capability is one externally invokable action steps can name.
type Capability interface {
	// Name returns the capability identifier.
	Name() string

	// Description explains what the capability does, surfaced to planners.
	Description() string

	// ParamSchema returns the CUE schema invocation parameters are
	// validated against, or empty for no validation.
	ParamSchema() string

	// Invoke runs the capability.
	Invoke(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

// Fault error codes.
const (
	FaultNotFound   = "NOT_FOUND"
	FaultTimeout    = "TIMEOUT"
	FaultValidation = "VALIDATION_ERROR"
	FaultExecution  = "EXECUTION_ERROR"
)

// Fault is the structured failure payload every capability invocation error
// is normalized into. It implements error so it travels the usual way; the
// executor embeds the structured form in step results.
type Fault struct {
	// ErrorCode classifies the failure.
	ErrorCode string `json:"error_code"`

	// Component identifies the failing capability (capability_<name>).
	Component string `json:"component"`

	// Message is the human-readable failure description.
	Message string `json:"message"`

	// Trace carries the underlying error chain, if any.
	Trace string `json:"trace,omitempty"`

	// RecoveryAction suggests how a replanner might recover.
	RecoveryAction string `json:"recovery_action,omitempty"`
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s [%s]: %s", f.Component, f.ErrorCode, f.Message)
}

// Payload returns the fault as a structured map for embedding in results.
func (f *Fault) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"error_code": f.ErrorCode,
		"component":  f.Component,
		"message":    f.Message,
	}
	if f.Trace != "" {
		payload["trace"] = f.Trace
	}
	if f.RecoveryAction != "" {
		payload["recovery_action"] = f.RecoveryAction
	}
	return payload
}

// Descriptor describes a registered capability for listings.
type Descriptor struct {
	// Name is the capability identifier.
	Name string `json:"name"`

	// Description explains what the capability does.
	Description string `json:"description"`

	// ParamSchema is the CUE parameter schema, if any.
	ParamSchema string `json:"param_schema,omitempty"`
}
