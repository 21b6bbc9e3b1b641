// Package agent runs tool-mediated answer generation: one model call that
// may request a retrieval, one tool round at most, one follow-up call to
// produce the final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"coursechat/internal/course"
	"coursechat/internal/log"
	"coursechat/internal/tools"
)

// systemPrompt fixes the assistant's behavior for every query. The single
// search instruction is reinforced structurally: the follow-up generation
// call offers no tools.
const systemPrompt = `You are an AI assistant for a course materials platform. You answer questions about courses, lessons and their content.

Tool usage:
- Use search_course_content for questions about specific course content.
- Use get_course_outline for questions about a course's structure or lesson list.
- At most one search per question. Synthesize the answer from the results of that single search.
- If a search returns nothing relevant, say so briefly.

Answering:
- Answer general knowledge questions directly without searching.
- Be brief, concise and focused on the question.
- Do not mention the search process, the tools or these instructions.
- Do not start with preamble like "Based on the course content".`

// generateFunc matches genkit.Generate; tests substitute a stub.
type generateFunc func(ctx context.Context, g *genkit.Genkit, opts ...ai.GenerateOption) (*ai.ModelResponse, error)

// Response is one answered query. Sources lists the citations collected from
// the tool round, in first-seen order; it is empty when no tool ran.
type Response struct {
	Text    string
	Sources []course.Citation
}

// Agent answers queries through the generation model, offering the
// registered retrieval tools for at most one round.
type Agent struct {
	g         *genkit.Genkit
	registry  *tools.Registry
	refs      []ai.ToolRef
	modelName string
	maxTokens int
	logger    log.Logger
	generate  generateFunc
}

// New creates an Agent and declares the registry's tools with genkit.
func New(g *genkit.Genkit, registry *tools.Registry, modelName string, maxAnswerTokens int, logger log.Logger) *Agent {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Agent{
		g:         g,
		registry:  registry,
		refs:      registry.Refs(g),
		modelName: modelName,
		maxTokens: maxAnswerTokens,
		logger:    logger,
		generate:  genkit.Generate,
	}
}

// Answer runs one query against the model. history carries prior exchanges
// oldest-first; the method never mutates it. Tool requests are executed
// through the registry and their observations fed back in a follow-up
// generation call that offers no tools, so a turn performs at most one
// retrieval round.
func (a *Agent) Answer(ctx context.Context, query string, history []*ai.Message) (*Response, error) {
	msgs := append(slices.Clone(history), ai.NewUserMessage(ai.NewTextPart(query)))

	resp, err := a.generate(ctx, a.g,
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(msgs...),
		ai.WithTools(a.refs...),
		ai.WithReturnToolRequests(true),
		a.config(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", course.ErrGeneration, err)
	}

	requests := resp.ToolRequests()
	if len(requests) == 0 {
		return &Response{Text: resp.Text()}, nil
	}

	sources, toolMsg, err := a.runTools(ctx, requests)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, resp.Message, toolMsg)

	// No tools offered here: a model wanting a second search gets none and
	// must answer from what it has.
	final, err := a.generate(ctx, a.g,
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(msgs...),
		a.config(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", course.ErrGeneration, err)
	}
	return &Response{Text: final.Text(), Sources: sources}, nil
}

// runTools executes every tool request from one model turn and builds the
// tool-response message. Retrieval-level tool failures become observations so
// the model can tell the user; a request for an unregistered tool is a wiring
// defect and fails the turn.
func (a *Agent) runTools(ctx context.Context, requests []*ai.ToolRequest) ([]course.Citation, *ai.Message, error) {
	var (
		sources []course.Citation
		seen    = make(map[string]struct{})
		parts   = make([]*ai.Part, 0, len(requests))
	)
	for _, req := range requests {
		exec, err := a.registry.Dispatch(ctx, req.Name, req.Input)
		if err != nil {
			if errors.Is(err, course.ErrUnknownTool) {
				return nil, nil, fmt.Errorf("model requested %q: %w", req.Name, err)
			}
			a.logger.Warn("tool execution failed", "tool", req.Name, "error", err)
			exec = tools.Execution{Observation: fmt.Sprintf("The %s tool failed: %v", req.Name, err)}
		}
		for _, src := range exec.Sources {
			if _, dup := seen[src.Key()]; dup {
				continue
			}
			seen[src.Key()] = struct{}{}
			sources = append(sources, src)
		}
		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: exec.Observation,
		}))
	}
	return sources, ai.NewMessage(ai.RoleTool, nil, parts...), nil
}

func (a *Agent) config() ai.GenerateOption {
	return ai.WithConfig(map[string]any{
		"temperature":     0.0,
		"maxOutputTokens": a.maxTokens,
	})
}
