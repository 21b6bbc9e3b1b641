// Package tools defines the retrieval tools offered to the model and the
// registry that dispatches tool requests.
//
// Tool executions return their observation text and source citations as
// values. Nothing here holds per-request state, so concurrent queries cannot
// observe each other's sources.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"coursechat/internal/course"
)

// Execution is the outcome of one tool call: the text handed back to the
// model and the citations surfaced to the user alongside the final answer.
type Execution struct {
	Observation string
	Sources     []course.Citation
}

// Tool is one capability offered to the model. Register declares the tool
// schema with genkit; Execute runs it on raw request arguments.
type Tool interface {
	Name() string
	Register(g *genkit.Genkit) ai.Tool
	Execute(ctx context.Context, args json.RawMessage) (Execution, error)
}

// Registry holds the tools offered during generation and dispatches requests
// by name. The zero value is unusable; use NewRegistry.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a Registry over the given tools. Registration order is
// preserved for Refs.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.tools[t.Name()]; dup {
			continue
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Refs declares every tool with genkit and returns the references to offer
// in a generation request.
func (r *Registry) Refs(g *genkit.Genkit) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(r.order))
	for _, name := range r.order {
		refs = append(refs, r.tools[name].Register(g))
	}
	return refs
}

// Dispatch runs the named tool on the request input. input is whatever the
// model sent; it is re-encoded so each tool can bind its own typed arguments.
// Unregistered names fail with course.ErrUnknownTool.
func (r *Registry) Dispatch(ctx context.Context, name string, input any) (Execution, error) {
	t, ok := r.tools[name]
	if !ok {
		return Execution{}, fmt.Errorf("%w: %q", course.ErrUnknownTool, name)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return Execution{}, fmt.Errorf("encoding arguments for %q: %w", name, err)
	}
	return t.Execute(ctx, raw)
}
