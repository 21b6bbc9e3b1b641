package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"coursechat/internal/course"
	"coursechat/internal/retriever"
)

// SearchContentName is the tool name the model uses to search course content.
const SearchContentName = "search_course_content"

type searchInput struct {
	Query        string `json:"query" jsonschema_description:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema_description:"Course title to restrict the search to; partial names are resolved against the catalog"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema_description:"Lesson number to restrict the search to"`
}

// SearchContent searches indexed course material with optional course and
// lesson filters. Unresolvable course names and empty results come back as
// observations for the model, not errors: the model should relay them, not
// crash the turn.
type SearchContent struct {
	retriever *retriever.Retriever
}

// NewSearchContent creates the content search tool.
func NewSearchContent(r *retriever.Retriever) *SearchContent {
	return &SearchContent{retriever: r}
}

// Name implements Tool.
func (*SearchContent) Name() string { return SearchContentName }

// Register implements Tool.
func (t *SearchContent) Register(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(
		g,
		t.Name(),
		"Search course materials with smart course name matching and lesson filtering. "+
			"Use for questions about specific course content or detailed educational materials.",
		func(toolCtx *ai.ToolContext, input searchInput) (string, error) {
			exec, err := t.run(toolCtx.Context, input)
			if err != nil {
				return "", err
			}
			return exec.Observation, nil
		},
	)
}

// Execute implements Tool.
func (t *SearchContent) Execute(ctx context.Context, args json.RawMessage) (Execution, error) {
	var input searchInput
	if err := json.Unmarshal(args, &input); err != nil {
		return Execution{}, fmt.Errorf("decoding %s arguments: %w", t.Name(), err)
	}
	return t.run(ctx, input)
}

func (t *SearchContent) run(ctx context.Context, input searchInput) (Execution, error) {
	result, err := t.retriever.Search(ctx, input.Query, input.CourseName, input.LessonNumber)
	if errors.Is(err, course.ErrCourseNotFound) {
		return Execution{Observation: fmt.Sprintf("No course found matching '%s'.", input.CourseName)}, nil
	}
	if err != nil {
		return Execution{}, err
	}
	if result.Message != "" {
		return Execution{Observation: result.Message}, nil
	}

	var b strings.Builder
	for i, ch := range result.Chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		cit := course.Citation{CourseTitle: ch.CourseTitle, LessonNumber: ch.LessonNumber}
		fmt.Fprintf(&b, "[%s]\n%s", cit.Label(), ch.Text)
	}
	return Execution{Observation: b.String(), Sources: result.Sources}, nil
}
