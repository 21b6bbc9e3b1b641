// Package retriever implements the two-tier search pipeline: fuzzy course
// resolution against the catalog first, filtered chunk search second. It is
// the only path from a user-facing query to indexed content.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"coursechat/internal/course"
	"coursechat/internal/index"
	"coursechat/internal/log"
)

// DefaultMaxResults bounds a search when the caller does not configure one.
const DefaultMaxResults = 5

// Result is the outcome of one search. When no chunks matched, Chunks and
// Sources are empty and Message explains which filters were applied; an empty
// result is a normal outcome, not an error.
type Result struct {
	Chunks  []course.Chunk
	Sources []course.Citation
	Message string
}

// Retriever resolves course references and searches indexed content.
type Retriever struct {
	store      index.Store
	maxResults int
	logger     log.Logger
}

// New creates a Retriever. maxResults <= 0 falls back to DefaultMaxResults.
func New(store index.Store, maxResults int, logger log.Logger) *Retriever {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{store: store, maxResults: maxResults, logger: logger}
}

// Search runs one retrieval. courseName, when non-empty, is a fuzzy
// reference resolved against the catalog before any content search; a
// reference that cannot be resolved fails with course.ErrCourseNotFound and
// no content search runs. lessonNumber, when non-nil, restricts results to
// that lesson.
func (r *Retriever) Search(ctx context.Context, query, courseName string, lessonNumber *int) (*Result, error) {
	var (
		filter  index.Filter
		matched *course.Course
	)
	if courseName != "" {
		c, err := r.store.MatchCourse(ctx, courseName)
		if err != nil {
			return nil, fmt.Errorf("resolving course %q: %w", courseName, err)
		}
		if c == nil {
			return nil, fmt.Errorf("%w: %q", course.ErrCourseNotFound, courseName)
		}
		r.logger.Debug("resolved course", "input", courseName, "title", c.Title)
		matched = c
		filter.CourseTitle = c.Title
	}
	filter.LessonNumber = lessonNumber

	scored, err := r.store.Search(ctx, query, filter, r.maxResults)
	if err != nil {
		return nil, fmt.Errorf("searching content: %w", err)
	}
	if len(scored) == 0 {
		return &Result{Message: emptyMessage(filter)}, nil
	}

	chunks := make([]course.Chunk, 0, len(scored))
	for _, s := range scored {
		chunks = append(chunks, s.Chunk)
	}

	sources, err := r.citations(ctx, chunks, matched)
	if err != nil {
		return nil, err
	}
	return &Result{Chunks: chunks, Sources: sources}, nil
}

// Outline fuzzy-resolves a course reference and returns the full catalog
// record, including the lesson list.
func (r *Retriever) Outline(ctx context.Context, courseName string) (*course.Course, error) {
	c, err := r.store.MatchCourse(ctx, courseName)
	if err != nil {
		return nil, fmt.Errorf("resolving course %q: %w", courseName, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %q", course.ErrCourseNotFound, courseName)
	}
	return c, nil
}

// citations builds the deduplicated source list in first-seen chunk order.
// Links come from the catalog: the lesson link when the chunk is attributed
// to a lesson, else the course link. matched is reused when the search was
// already restricted to one course.
func (r *Retriever) citations(ctx context.Context, chunks []course.Chunk, matched *course.Course) ([]course.Citation, error) {
	courses := make(map[string]*course.Course)
	if matched != nil {
		courses[matched.Title] = matched
	}

	seen := make(map[string]struct{})
	var out []course.Citation
	for _, ch := range chunks {
		cit := course.Citation{CourseTitle: ch.CourseTitle, LessonNumber: ch.LessonNumber}
		if _, dup := seen[cit.Key()]; dup {
			continue
		}
		seen[cit.Key()] = struct{}{}

		c, ok := courses[ch.CourseTitle]
		if !ok {
			var err error
			c, err = r.store.GetCourse(ctx, ch.CourseTitle)
			if err != nil {
				return nil, fmt.Errorf("loading catalog entry %q: %w", ch.CourseTitle, err)
			}
			courses[ch.CourseTitle] = c
		}
		if c != nil {
			cit.Link = c.Link
			if ch.LessonNumber != nil {
				if l := c.Lesson(*ch.LessonNumber); l != nil && l.Link != "" {
					cit.Link = l.Link
				}
			}
		}
		out = append(out, cit)
	}
	return out, nil
}

func emptyMessage(f index.Filter) string {
	var parts []string
	if f.CourseTitle != "" {
		parts = append(parts, fmt.Sprintf("course '%s'", f.CourseTitle))
	}
	if f.LessonNumber != nil {
		parts = append(parts, fmt.Sprintf("lesson %d", *f.LessonNumber))
	}
	if len(parts) == 0 {
		return "No relevant content found."
	}
	return fmt.Sprintf("No relevant content found in %s.", strings.Join(parts, ", "))
}
