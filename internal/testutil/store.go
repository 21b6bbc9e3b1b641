package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"coursechat/internal/course"
	"coursechat/internal/index"
)

// FakeStore is an in-memory index.Store for tests above the index layer.
// MatchCourse resolves by case-insensitive substring, Search replays the
// configured results through the filter, and every write is recorded.
type FakeStore struct {
	mu      sync.Mutex
	courses map[string]course.Course
	Scored  []index.Scored

	// Recorded calls.
	Ingested []string // course titles passed to IngestCourse, in order
	ChunkN   int      // total chunks written through IngestCourse
	Cleared  int      // Clear invocations

	IngestErr error
	SearchErr error
}

// NewFakeStore creates a FakeStore preloaded with the given courses.
func NewFakeStore(courses ...course.Course) *FakeStore {
	f := &FakeStore{courses: make(map[string]course.Course)}
	for _, c := range courses {
		f.courses[c.Title] = c
	}
	return f
}

func (f *FakeStore) UpsertCourse(_ context.Context, c course.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses[c.Title] = c
	return nil
}

func (f *FakeStore) UpsertChunks(context.Context, []course.Chunk) error { return nil }

func (f *FakeStore) IngestCourse(_ context.Context, c course.Course, chunks []course.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IngestErr != nil {
		return f.IngestErr
	}
	f.courses[c.Title] = c
	f.Ingested = append(f.Ingested, c.Title)
	f.ChunkN += len(chunks)
	return nil
}

func (f *FakeStore) CourseTitles(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	titles := make([]string, 0, len(f.courses))
	for t := range f.courses {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles, nil
}

func (f *FakeStore) GetCourse(_ context.Context, title string) (*course.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.courses[title]; ok {
		return &c, nil
	}
	return nil, nil
}

func (f *FakeStore) MatchCourse(_ context.Context, fuzzyName string) (*course.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lower := strings.ToLower(fuzzyName)
	var titles []string
	for t := range f.courses {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	for _, t := range titles {
		if strings.Contains(strings.ToLower(t), lower) {
			c := f.courses[t]
			return &c, nil
		}
	}
	return nil, nil
}

func (f *FakeStore) Search(_ context.Context, _ string, filter index.Filter, limit int) ([]index.Scored, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	var out []index.Scored
	for _, s := range f.Scored {
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

func (f *FakeStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courses = make(map[string]course.Course)
	f.Scored = nil
	f.Cleared++
	return nil
}

func (f *FakeStore) Close() error { return nil }
