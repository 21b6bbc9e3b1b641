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

// CourseOutlineName is the tool name the model uses to fetch a course outline.
const CourseOutlineName = "get_course_outline"

type outlineInput struct {
	CourseName string `json:"course_name" jsonschema_description:"Course title to look up; partial names are resolved against the catalog"`
}

// CourseOutline returns a course's title, link and numbered lesson list.
type CourseOutline struct {
	retriever *retriever.Retriever
}

// NewCourseOutline creates the outline tool.
func NewCourseOutline(r *retriever.Retriever) *CourseOutline {
	return &CourseOutline{retriever: r}
}

// Name implements Tool.
func (*CourseOutline) Name() string { return CourseOutlineName }

// Register implements Tool.
func (t *CourseOutline) Register(g *genkit.Genkit) ai.Tool {
	return genkit.DefineTool(
		g,
		t.Name(),
		"Get the complete outline of a course: its title, link and the full numbered lesson list. "+
			"Use for questions about a course's structure or what lessons it contains.",
		func(toolCtx *ai.ToolContext, input outlineInput) (string, error) {
			exec, err := t.run(toolCtx.Context, input)
			if err != nil {
				return "", err
			}
			return exec.Observation, nil
		},
	)
}

// Execute implements Tool.
func (t *CourseOutline) Execute(ctx context.Context, args json.RawMessage) (Execution, error) {
	var input outlineInput
	if err := json.Unmarshal(args, &input); err != nil {
		return Execution{}, fmt.Errorf("decoding %s arguments: %w", t.Name(), err)
	}
	return t.run(ctx, input)
}

func (t *CourseOutline) run(ctx context.Context, input outlineInput) (Execution, error) {
	c, err := t.retriever.Outline(ctx, input.CourseName)
	if errors.Is(err, course.ErrCourseNotFound) {
		return Execution{Observation: fmt.Sprintf("No course found matching '%s'.", input.CourseName)}, nil
	}
	if err != nil {
		return Execution{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", c.Link)
	}
	if c.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", c.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(c.Lessons))
	for _, l := range c.Lessons {
		fmt.Fprintf(&b, "%d. %s\n", l.Number, l.Title)
	}

	return Execution{
		Observation: strings.TrimRight(b.String(), "\n"),
		Sources:     []course.Citation{{CourseTitle: c.Title, Link: c.Link}},
	}, nil
}
