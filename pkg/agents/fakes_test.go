package agents

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/solasta/solasta/pkg/capability"
	"github.com/solasta/solasta/pkg/llm"
)

// fakeGen replays scripted responses: a string is unmarshalled into the
// structured output, an error is returned as-is.
type fakeGen struct {
	mu        sync.Mutex
	responses []interface{}
	requests  []llm.Request
}

func (f *fakeGen) next(req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	next := f.responses[0]
	f.responses = f.responses[1:]

	switch v := next.(type) {
	case error:
		return "", v
	case string:
		return v, nil
	default:
		return "", errors.New("bad script entry")
	}
}

func (f *fakeGen) Generate(_ context.Context, req llm.Request) (string, error) {
	return f.next(req)
}

func (f *fakeGen) GenerateStructured(_ context.Context, req llm.Request, out interface{}) error {
	raw, err := f.next(req)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (f *fakeGen) lastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// fakeInvoker routes invocations to per-name handlers.
type fakeInvoker struct {
	handlers    map[string]func(params map[string]interface{}) (map[string]interface{}, error)
	descriptors []capability.Descriptor
	invoked     []string
}

func (f *fakeInvoker) Invoke(_ context.Context, name string, params map[string]interface{}) (map[string]interface{}, error) {
	f.invoked = append(f.invoked, name)
	handler, ok := f.handlers[name]
	if !ok {
		return nil, &capability.Fault{
			ErrorCode: capability.FaultNotFound,
			Component: "capability_" + name,
			Message:   "unknown capability",
		}
	}
	return handler(params)
}

func (f *fakeInvoker) List() []capability.Descriptor {
	return f.descriptors
}
