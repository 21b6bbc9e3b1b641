package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"coursechat/internal/course"
	"coursechat/internal/log"
	"coursechat/internal/tools"
)

func intPtr(n int) *int { return &n }

// fakeTool records executions and returns canned results.
type fakeTool struct {
	name     string
	exec     tools.Execution
	execErr  error
	execN    int
	lastArgs json.RawMessage
}

func (f *fakeTool) Name() string                    { return f.name }
func (f *fakeTool) Register(*genkit.Genkit) ai.Tool { return nil }
func (f *fakeTool) Execute(_ context.Context, args json.RawMessage) (tools.Execution, error) {
	f.execN++
	f.lastArgs = args
	return f.exec, f.execErr
}

func textResponse(text string) *ai.ModelResponse {
	return &ai.ModelResponse{
		Message: ai.NewModelMessage(ai.NewTextPart(text)),
	}
}

func toolResponse(name string, input map[string]any) *ai.ModelResponse {
	return &ai.ModelResponse{
		Message: ai.NewMessage(ai.RoleModel, nil,
			ai.NewToolRequestPart(&ai.ToolRequest{Name: name, Input: input})),
	}
}

// newTestAgent builds an Agent whose generate calls are served by script, in
// order. Tool schemas are not registered; the scripted responses stand in
// for the model.
func newTestAgent(registry *tools.Registry, script ...*ai.ModelResponse) *Agent {
	i := 0
	return &Agent{
		registry:  registry,
		modelName: "googleai/test-model",
		maxTokens: 800,
		logger:    log.NewNop(),
		generate: func(context.Context, *genkit.Genkit, ...ai.GenerateOption) (*ai.ModelResponse, error) {
			if i >= len(script) {
				return nil, errors.New("unexpected extra generate call")
			}
			resp := script[i]
			i++
			return resp, nil
		},
	}
}

func TestAnswer_PlainText(t *testing.T) {
	tool := &fakeTool{name: "search_course_content"}
	a := newTestAgent(tools.NewRegistry(tool), textResponse("Paris is the capital of France."))

	resp, err := a.Answer(context.Background(), "capital of France?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Text != "Paris is the capital of France." {
		t.Errorf("text = %q", resp.Text)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources = %+v, want none", resp.Sources)
	}
	if tool.execN != 0 {
		t.Errorf("tool executed %d times without a request", tool.execN)
	}
}

func TestAnswer_OneToolRound(t *testing.T) {
	tool := &fakeTool{
		name: "search_course_content",
		exec: tools.Execution{
			Observation: "[Course - Lesson 1]\nmcp basics",
			Sources: []course.Citation{
				{CourseTitle: "Course", LessonNumber: intPtr(1), Link: "https://example.com/1"},
			},
		},
	}
	a := newTestAgent(tools.NewRegistry(tool),
		toolResponse("search_course_content", map[string]any{"query": "mcp"}),
		textResponse("MCP lets models use tools."),
	)

	resp, err := a.Answer(context.Background(), "what is mcp?", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if resp.Text != "MCP lets models use tools." {
		t.Errorf("text = %q", resp.Text)
	}
	if tool.execN != 1 {
		t.Errorf("tool executed %d times, want 1", tool.execN)
	}
	if !strings.Contains(string(tool.lastArgs), `"query":"mcp"`) {
		t.Errorf("tool args = %s", tool.lastArgs)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Link != "https://example.com/1" {
		t.Errorf("sources = %+v", resp.Sources)
	}
}

func TestAnswer_SecondToolRequestNotServed(t *testing.T) {
	// A model that asks for another search after the tool round gets no
	// tools in the follow-up call, so at most one retrieval ever runs.
	tool := &fakeTool{
		name: "search_course_content",
		exec: tools.Execution{Observation: "some content"},
	}
	a := newTestAgent(tools.NewRegistry(tool),
		toolResponse("search_course_content", map[string]any{"query": "first"}),
		toolResponse("search_course_content", map[string]any{"query": "second"}),
	)

	resp, err := a.Answer(context.Background(), "question", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if tool.execN != 1 {
		t.Errorf("tool executed %d times, want exactly 1", tool.execN)
	}
	// The second request cannot run; the answer is whatever text came back.
	if resp.Text != "" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestAnswer_ToolFailureBecomesObservation(t *testing.T) {
	tool := &fakeTool{
		name:    "search_course_content",
		execErr: errors.New("index offline"),
	}
	a := newTestAgent(tools.NewRegistry(tool),
		toolResponse("search_course_content", map[string]any{"query": "q"}),
		textResponse("I could not search the course materials."),
	)

	resp, err := a.Answer(context.Background(), "question", nil)
	if err != nil {
		t.Fatalf("tool failure surfaced as error: %v", err)
	}
	if resp.Text != "I could not search the course materials." {
		t.Errorf("text = %q", resp.Text)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("failed tool produced sources: %+v", resp.Sources)
	}
}

func TestAnswer_UnknownToolRequestFailsTurn(t *testing.T) {
	// A request for a tool that was never registered is a wiring defect,
	// not a retrieval miss; it must not be smoothed over as an observation.
	a := newTestAgent(tools.NewRegistry(),
		toolResponse("made_up_tool", nil),
		textResponse("should never be reached"),
	)

	resp, err := a.Answer(context.Background(), "question", nil)
	if !errors.Is(err, course.ErrUnknownTool) {
		t.Fatalf("error = %v, want ErrUnknownTool", err)
	}
	if !strings.Contains(err.Error(), "made_up_tool") {
		t.Errorf("error %q does not name the tool", err)
	}
	if resp != nil {
		t.Errorf("failed turn returned response %+v", resp)
	}
}

func TestAnswer_GenerationError(t *testing.T) {
	i := 0
	a := &Agent{
		registry:  tools.NewRegistry(),
		modelName: "googleai/test-model",
		maxTokens: 800,
		logger:    log.NewNop(),
		generate: func(context.Context, *genkit.Genkit, ...ai.GenerateOption) (*ai.ModelResponse, error) {
			i++
			return nil, errors.New("rate limited")
		},
	}

	_, err := a.Answer(context.Background(), "question", nil)
	if !errors.Is(err, course.ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration", err)
	}
	if i != 1 {
		t.Errorf("generate called %d times, want no retry", i)
	}
}

func TestAnswer_SourceDedupAcrossRequests(t *testing.T) {
	shared := course.Citation{CourseTitle: "C", LessonNumber: intPtr(1)}
	toolA := &fakeTool{name: "a", exec: tools.Execution{Observation: "x", Sources: []course.Citation{shared}}}
	toolB := &fakeTool{name: "b", exec: tools.Execution{Observation: "y", Sources: []course.Citation{
		shared,
		{CourseTitle: "C", LessonNumber: intPtr(2)},
	}}}

	multiRequest := &ai.ModelResponse{
		Message: ai.NewMessage(ai.RoleModel, nil,
			ai.NewToolRequestPart(&ai.ToolRequest{Name: "a"}),
			ai.NewToolRequestPart(&ai.ToolRequest{Name: "b"}),
		),
	}
	a := newTestAgent(tools.NewRegistry(toolA, toolB), multiRequest, textResponse("done"))

	resp, err := a.Answer(context.Background(), "question", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("sources = %+v, want 2 after dedup", resp.Sources)
	}
}

func TestAnswer_HistoryNotMutated(t *testing.T) {
	a := newTestAgent(tools.NewRegistry(), textResponse("answer"))

	history := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("earlier question")),
		ai.NewModelMessage(ai.NewTextPart("earlier answer")),
	}
	if _, err := a.Answer(context.Background(), "new question", history); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history length changed to %d", len(history))
	}
}
