package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"coursechat/internal/course"
	"coursechat/internal/index"
	"coursechat/internal/log"
)

func intPtr(n int) *int { return &n }

// fakeStore is a canned index.Store: MatchCourse resolves by substring and
// Search returns the configured results filtered like a real backend.
type fakeStore struct {
	courses []course.Course
	scored  []index.Scored

	searchErr error
}

func (f *fakeStore) UpsertCourse(context.Context, course.Course) error  { return nil }
func (f *fakeStore) UpsertChunks(context.Context, []course.Chunk) error { return nil }
func (f *fakeStore) IngestCourse(context.Context, course.Course, []course.Chunk) error {
	return nil
}
func (f *fakeStore) Clear(context.Context) error { return nil }
func (f *fakeStore) Close() error                { return nil }

func (f *fakeStore) CourseTitles(context.Context) ([]string, error) {
	titles := make([]string, 0, len(f.courses))
	for _, c := range f.courses {
		titles = append(titles, c.Title)
	}
	return titles, nil
}

func (f *fakeStore) GetCourse(_ context.Context, title string) (*course.Course, error) {
	for i := range f.courses {
		if f.courses[i].Title == title {
			return &f.courses[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MatchCourse(_ context.Context, fuzzyName string) (*course.Course, error) {
	for i := range f.courses {
		if strings.Contains(strings.ToLower(f.courses[i].Title), strings.ToLower(fuzzyName)) {
			return &f.courses[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Search(_ context.Context, _ string, filter index.Filter, limit int) ([]index.Scored, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []index.Scored
	for _, s := range f.scored {
		if filter.CourseTitle != "" && s.Chunk.CourseTitle != filter.CourseTitle {
			continue
		}
		if filter.LessonNumber != nil {
			if s.Chunk.LessonNumber == nil || *s.Chunk.LessonNumber != *filter.LessonNumber {
				continue
			}
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func testCourses() []course.Course {
	return []course.Course{
		{
			Title: "Introduction to MCP",
			Link:  "https://example.com/mcp",
			Lessons: []course.Lesson{
				{Number: 1, Title: "Basics", Link: "https://example.com/mcp/1"},
				{Number: 2, Title: "Servers", Link: "https://example.com/mcp/2"},
			},
		},
		{
			Title: "Advanced Retrieval",
			Link:  "https://example.com/retrieval",
			Lessons: []course.Lesson{
				{Number: 1, Title: "Vectors"},
			},
		},
	}
}

func TestSearch_CourseNotFound(t *testing.T) {
	r := New(&fakeStore{courses: testCourses()}, 5, log.NewNop())

	_, err := r.Search(context.Background(), "what is X", "Nonexistent Course", nil)
	if !errors.Is(err, course.ErrCourseNotFound) {
		t.Fatalf("error = %v, want ErrCourseNotFound", err)
	}
	if !strings.Contains(err.Error(), "Nonexistent Course") {
		t.Errorf("error %q does not name the input", err)
	}
}

func TestSearch_EmptyResultMessage(t *testing.T) {
	r := New(&fakeStore{courses: testCourses()}, 5, log.NewNop())

	result, err := r.Search(context.Background(), "anything", "MCP", intPtr(7))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Chunks) != 0 {
		t.Fatalf("got %d chunks, want 0", len(result.Chunks))
	}
	// The message names the resolved title and the lesson filter.
	if !strings.Contains(result.Message, "Introduction to MCP") {
		t.Errorf("message %q does not name the course", result.Message)
	}
	if !strings.Contains(result.Message, "lesson 7") {
		t.Errorf("message %q does not name the lesson", result.Message)
	}
}

func TestSearch_EmptyResultNoFilters(t *testing.T) {
	r := New(&fakeStore{courses: testCourses()}, 5, log.NewNop())

	result, err := r.Search(context.Background(), "anything", "", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Message != "No relevant content found." {
		t.Errorf("message = %q", result.Message)
	}
}

func TestSearch_CitationDedupAndLinks(t *testing.T) {
	store := &fakeStore{
		courses: testCourses(),
		scored: []index.Scored{
			{Chunk: course.Chunk{Text: "a", CourseTitle: "Introduction to MCP", LessonNumber: intPtr(2), Index: 5}, Score: 0.9},
			{Chunk: course.Chunk{Text: "b", CourseTitle: "Introduction to MCP", LessonNumber: intPtr(1), Index: 0}, Score: 0.8},
			{Chunk: course.Chunk{Text: "c", CourseTitle: "Introduction to MCP", LessonNumber: intPtr(2), Index: 6}, Score: 0.7},
			{Chunk: course.Chunk{Text: "d", CourseTitle: "Advanced Retrieval", LessonNumber: intPtr(1), Index: 0}, Score: 0.6},
		},
	}
	r := New(store, 5, log.NewNop())

	result, err := r.Search(context.Background(), "query", "", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(result.Chunks))
	}

	// Duplicate (course, lesson) pairs collapse, first-seen order preserved.
	if len(result.Sources) != 3 {
		t.Fatalf("got %d sources, want 3: %+v", len(result.Sources), result.Sources)
	}
	if result.Sources[0].Label() != "Introduction to MCP - Lesson 2" {
		t.Errorf("first source = %q", result.Sources[0].Label())
	}
	if result.Sources[1].Label() != "Introduction to MCP - Lesson 1" {
		t.Errorf("second source = %q", result.Sources[1].Label())
	}
	if result.Sources[2].CourseTitle != "Advanced Retrieval" {
		t.Errorf("third source = %+v", result.Sources[2])
	}

	// Lesson links resolve from the catalog; a lesson without its own link
	// falls back to the course link.
	if result.Sources[0].Link != "https://example.com/mcp/2" {
		t.Errorf("lesson link = %q", result.Sources[0].Link)
	}
	if result.Sources[2].Link != "https://example.com/retrieval" {
		t.Errorf("fallback link = %q", result.Sources[2].Link)
	}
}

func TestSearch_MaxResults(t *testing.T) {
	store := &fakeStore{courses: testCourses()}
	for i := 0; i < 10; i++ {
		store.scored = append(store.scored, index.Scored{
			Chunk: course.Chunk{Text: "x", CourseTitle: "Introduction to MCP", LessonNumber: intPtr(1), Index: i},
		})
	}
	r := New(store, 3, log.NewNop())

	result, err := r.Search(context.Background(), "query", "", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Chunks) != 3 {
		t.Errorf("got %d chunks, want max results 3", len(result.Chunks))
	}
}

func TestSearch_StoreError(t *testing.T) {
	r := New(&fakeStore{courses: testCourses(), searchErr: errors.New("index offline")}, 5, log.NewNop())

	_, err := r.Search(context.Background(), "q", "", nil)
	if err == nil || !strings.Contains(err.Error(), "index offline") {
		t.Errorf("error = %v", err)
	}
}

func TestOutline(t *testing.T) {
	r := New(&fakeStore{courses: testCourses()}, 5, log.NewNop())

	c, err := r.Outline(context.Background(), "mcp")
	if err != nil {
		t.Fatalf("Outline: %v", err)
	}
	if c.Title != "Introduction to MCP" || len(c.Lessons) != 2 {
		t.Errorf("Outline = %+v", c)
	}

	_, err = r.Outline(context.Background(), "nope")
	if !errors.Is(err, course.ErrCourseNotFound) {
		t.Errorf("error = %v, want ErrCourseNotFound", err)
	}
}
