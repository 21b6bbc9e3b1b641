package index

import (
	"fmt"
	"strings"

	"coursechat/internal/course"
)

// Metadata keys shared by backends for chunk records.
const (
	MetaCourseTitle  = "course_title"
	MetaLessonNumber = "lesson_number"
	MetaChunkIndex   = "chunk_index"
)

// CatalogText renders the text that represents a course in the catalog
// embedding space. Including the instructor and lesson titles lets partial
// references ("the MCP course", "Anthropic computer use lesson") resolve to
// the right entry.
func CatalogText(c course.Course) string {
	var sb strings.Builder
	sb.WriteString(c.Title)
	if c.Instructor != "" {
		fmt.Fprintf(&sb, "\nInstructor: %s", c.Instructor)
	}
	for _, l := range c.Lessons {
		fmt.Fprintf(&sb, "\nLesson %d: %s", l.Number, l.Title)
	}
	return sb.String()
}
