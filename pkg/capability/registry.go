package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInvokeTimeout is the hard ceiling on one capability invocation.
const DefaultInvokeTimeout = 15 * time.Second

// RegistryMetrics records capability invocation metrics.
type RegistryMetrics interface {
	RecordCapabilityInvocation(capability, status string, duration time.Duration)
}

// Registry holds the registered capabilities and mediates every invocation:
// parameter validation, the invocation timeout, and normalization of all
// failures into structured faults.
type Registry struct {
	mu        sync.RWMutex
	caps      map[string]Capability
	validator *SchemaValidator
	timeout   time.Duration
	logger    zerolog.Logger
	metrics   RegistryMetrics
}

// NewRegistry creates an empty capability registry.
func NewRegistry(timeout time.Duration, logger zerolog.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultInvokeTimeout
	}
	return &Registry{
		caps:      make(map[string]Capability),
		validator: NewSchemaValidator(),
		timeout:   timeout,
		logger:    logger.With().Str("component", "capability-registry").Logger(),
	}
}

// SetMetrics attaches a metrics collector.
func (r *Registry) SetMetrics(m RegistryMetrics) {
	r.metrics = m
}

// Register adds a capability. Re-registering a name replaces the previous
// implementation.
func (r *Registry) Register(cap Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[cap.Name()] = cap
}

// List returns descriptors for all registered capabilities, sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.caps))
	for _, cap := range r.caps {
		descriptors = append(descriptors, Descriptor{
			Name:        cap.Name(),
			Description: cap.Description(),
			ParamSchema: cap.ParamSchema(),
		})
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// Describe returns the descriptor for one capability.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cap, ok := r.caps[name]
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{
		Name:        cap.Name(),
		Description: cap.Description(),
		ParamSchema: cap.ParamSchema(),
	}, true
}

// LoadScript registers a Starlark-scripted capability.
func (r *Registry) LoadScript(name, description, paramSchema, script string) {
	r.Register(NewScriptedCapability(name, description, paramSchema, script))
}

// Names returns the sorted registered capability names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs a capability by name. Every failure path returns a *Fault:
// unknown names, parameter schema violations, the invocation timeout, and
// panics or errors from the capability itself.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]interface{}) (map[string]interface{}, error) {
	r.mu.RLock()
	cap, ok := r.caps[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &Fault{
			ErrorCode:      FaultNotFound,
			Component:      component(name),
			Message:        fmt.Sprintf("unknown capability %q, registered: %s", name, strings.Join(r.Names(), ", ")),
			RecoveryAction: "replan the step against a registered capability",
		}
	}

	if schema := cap.ParamSchema(); schema != "" {
		if err := r.validator.ValidateParams(schema, params); err != nil {
			r.recordInvocation(name, "invalid", 0)
			return nil, &Fault{
				ErrorCode:      FaultValidation,
				Component:      component(name),
				Message:        "invocation parameters failed schema validation",
				Trace:          err.Error(),
				RecoveryAction: "correct the step parameters and retry",
			}
		}
	}

	start := time.Now()
	output, err := r.invokeWithTimeout(ctx, cap, params)
	duration := time.Since(start)

	if err != nil {
		r.recordInvocation(name, "failed", duration)
		r.logger.Warn().
			Str("capability", name).
			Dur("duration", duration).
			Err(err).
			Msg("Capability invocation failed")
		return nil, err
	}

	r.recordInvocation(name, "succeeded", duration)
	return output, nil
}

// invokeWithTimeout runs the capability under the registry timeout and
// absorbs panics into execution faults.
func (r *Registry) invokeWithTimeout(ctx context.Context, cap Capability, params map[string]interface{}) (map[string]interface{}, error) {
	invokeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		output map[string]interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: &Fault{
					ErrorCode:      FaultExecution,
					Component:      component(cap.Name()),
					Message:        "capability panicked",
					Trace:          fmt.Sprintf("%v", rec),
					RecoveryAction: "retry the step or replan around this capability",
				}}
			}
		}()
		output, err := cap.Invoke(invokeCtx, params)
		done <- outcome{output: output, err: err}
	}()

	select {
	case <-invokeCtx.Done():
		return nil, &Fault{
			ErrorCode:      FaultTimeout,
			Component:      component(cap.Name()),
			Message:        fmt.Sprintf("invocation exceeded %v", r.timeout),
			RecoveryAction: "retry the step or split it into smaller steps",
		}
	case out := <-done:
		if out.err != nil {
			if fault, ok := out.err.(*Fault); ok {
				return nil, fault
			}
			return nil, &Fault{
				ErrorCode:      FaultExecution,
				Component:      component(cap.Name()),
				Message:        "capability returned an error",
				Trace:          out.err.Error(),
				RecoveryAction: "retry the step or replan around this capability",
			}
		}
		return out.output, nil
	}
}

func (r *Registry) recordInvocation(name, status string, duration time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordCapabilityInvocation(name, status, duration)
	}
}

func component(name string) string {
	return "capability_" + name
}
