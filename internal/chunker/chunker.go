// Package chunker splits parsed course documents into overlapping,
// context-tagged text chunks for indexing.
//
// Splitting is a pure transform over runes: windows of Size runes advance by
// Size-Overlap, so consecutive chunks within a lesson share exactly Overlap
// runes and together cover the lesson text with no gaps. The final window of
// a lesson may be shorter than Size but is always longer than Overlap, so a
// cut never produces a fragment already contained in its predecessor.
package chunker

import (
	"fmt"
	"strings"

	"coursechat/internal/course"
)

// Defaults match the ingestion configuration defaults.
const (
	DefaultSize    = 800
	DefaultOverlap = 100
)

// Chunker splits lesson bodies into overlapping chunks.
// The zero value is not useful; use New.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. size must be positive and overlap must be in
// [0, size).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// ChunkCourse produces the ordered chunk sequence for a parsed document.
// Chunk indexes are contiguous from 0 across the whole course. The first
// chunk of each lesson is prefixed with a context marker naming the lesson,
// so a chunk surfaced alone in a search result is still self-describing.
// Lessons with no extractable text contribute zero chunks.
func (c *Chunker) ChunkCourse(doc *course.Document) []course.Chunk {
	var chunks []course.Chunk
	index := 0

	for i, lesson := range doc.Course.Lessons {
		segments := c.Split(normalize(doc.Bodies[i]))
		for j, seg := range segments {
			text := seg
			if j == 0 {
				text = fmt.Sprintf("Lesson %d content: %s", lesson.Number, seg)
			}
			n := lesson.Number
			chunks = append(chunks, course.Chunk{
				Text:         text,
				CourseTitle:  doc.Course.Title,
				LessonNumber: &n,
				Index:        index,
			})
			index++
		}
	}
	return chunks
}

// Split cuts text into rune windows of the configured size, each consecutive
// pair overlapping by exactly the configured overlap. Empty or
// whitespace-only text yields nil.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var out []string
	for start := 0; ; start += step {
		end := start + c.size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			return out
		}
		out = append(out, string(runes[start:end]))
	}
}

// normalize collapses runs of whitespace to single spaces so window math is
// independent of source formatting.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
