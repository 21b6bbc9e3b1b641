// Package course defines the domain model shared by ingestion, indexing and
// retrieval: courses, lessons, content chunks and the citations surfaced to
// callers alongside answers.
//
// The course title is the join key between the catalog and the content index.
// Every chunk stored for a course carries the exact title string; comparing
// titles is always a byte-for-byte comparison, never a fuzzy match.
package course

import (
	"fmt"
	"strings"
)

// Lesson is a single lesson within a course. Numbers are unique within a
// course but not required to be contiguous.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Course is one catalog entry. Courses are immutable after ingestion;
// re-ingesting the same title is a no-op unless a rebuild is requested.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson returns the lesson with the given number, or nil if the course has
// no such lesson.
func (c *Course) Lesson(number int) *Lesson {
	for i := range c.Lessons {
		if c.Lessons[i].Number == number {
			return &c.Lessons[i]
		}
	}
	return nil
}

// Chunk is a bounded segment of lesson text stored with positional metadata.
// Index is monotonic and contiguous per course starting at 0; it gives stable
// ordering and deduplication. LessonNumber is nil only when chunking could not
// attribute the text to a lesson.
type Chunk struct {
	Text         string
	CourseTitle  string
	LessonNumber *int
	Index        int
}

// Citation identifies where a retrieved chunk came from, for display to the
// user. Citations are deduplicated by (course title, lesson number).
type Citation struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	Link         string `json:"link,omitempty"`
}

// Label renders the citation as a short human-readable reference,
// e.g. "Introduction to MCP - Lesson 2".
func (c Citation) Label() string {
	if c.LessonNumber == nil {
		return c.CourseTitle
	}
	return fmt.Sprintf("%s - Lesson %d", c.CourseTitle, *c.LessonNumber)
}

// Key returns the deduplication key for the citation.
func (c Citation) Key() string {
	if c.LessonNumber == nil {
		return c.CourseTitle
	}
	return fmt.Sprintf("%s#%d", c.CourseTitle, *c.LessonNumber)
}

// Document is a parsed course file: the catalog entry plus the raw body text
// of each lesson, in lesson order. Bodies[i] belongs to Course.Lessons[i].
type Document struct {
	Course Course
	Bodies []string
}

// Validate reports structural problems that would break index invariants.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Course.Title) == "" {
		return fmt.Errorf("document has no course title")
	}
	if len(d.Bodies) != len(d.Course.Lessons) {
		return fmt.Errorf("document %q: %d lessons but %d bodies",
			d.Course.Title, len(d.Course.Lessons), len(d.Bodies))
	}
	seen := make(map[int]struct{}, len(d.Course.Lessons))
	for _, l := range d.Course.Lessons {
		if _, dup := seen[l.Number]; dup {
			return fmt.Errorf("document %q: duplicate lesson number %d", d.Course.Title, l.Number)
		}
		seen[l.Number] = struct{}{}
	}
	return nil
}
