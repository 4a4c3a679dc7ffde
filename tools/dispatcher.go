// Per-request tool dispatch with an execution trace.
//
// Information Hiding:
// - Trace storage and ordering hidden behind accessor
// - Validation and error shaping internalized

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richinex/radiant/model"
)

// Dispatcher executes tools from a registry on behalf of a single
// reasoning request and records every call, in dispatch order, in a trace.
// Repeated calls to the same tool are recorded once per call.
//
// A Dispatcher is scoped to one request and is not safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	trace    []model.ToolInvocation
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		now:      time.Now,
	}
}

// Dispatch validates and executes the named tool, appends the call to the
// trace, and returns readable output. Unknown tools and invalid arguments
// produce explanatory output rather than an error so the caller can feed
// the text straight back to the model.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) string {
	start := d.now()

	tool, ok := d.registry.Get(name)
	if !ok {
		out := fmt.Sprintf("tool '%s' is not available; available tools: %v", name, d.registry.Names())
		d.record(name, args, out, start)
		return out
	}

	if err := tool.Validate(args); err != nil {
		out := fmt.Sprintf("invalid arguments for tool '%s': %v", name, err)
		d.record(name, args, out, start)
		return out
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		result = FailureResult(err)
	}

	out := result.Output
	if result.Error != nil {
		out = fmt.Sprintf("tool '%s' failed: %v", name, result.Error)
	}
	d.record(name, args, out, start)
	return out
}

// Trace returns a copy of the calls dispatched so far, in dispatch order.
func (d *Dispatcher) Trace() []model.ToolInvocation {
	out := make([]model.ToolInvocation, len(d.trace))
	copy(out, d.trace)
	return out
}

func (d *Dispatcher) record(name string, args json.RawMessage, output string, start time.Time) {
	d.trace = append(d.trace, model.ToolInvocation{
		Tool:     name,
		Term:     termFromArgs(args),
		Summary:  output,
		Order:    len(d.trace),
		Duration: d.now().Sub(start),
	})
}

func termFromArgs(args json.RawMessage) string {
	var a lookupArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.Term
}
