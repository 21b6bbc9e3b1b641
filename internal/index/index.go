// Package index defines the semantic store consumed by the retrieval
// pipeline: a course catalog for fuzzy name resolution and a chunk index for
// filtered content search.
//
// Two backends implement Store: chromemdb (embedded, in-process) and postgres
// (pgvector). The interface is defined here, on the consumer side.
package index

import (
	"context"

	"coursechat/internal/course"
)

// MinMatchSimilarity is the confidence floor for fuzzy course resolution.
// A best catalog match scoring below this cosine similarity is treated as
// "no match" rather than an arbitrary top-1 guess. The floor is deliberately
// low: catalog entries embed title, instructor and lesson titles, so even a
// partial query like "MCP" lands well above it while unrelated queries do not.
const MinMatchSimilarity = 0.30

// Filter restricts a content search. Zero values mean "no restriction".
// CourseTitle must be an exact catalog title, never a fuzzy name.
type Filter struct {
	CourseTitle  string
	LessonNumber *int
}

// Scored is one ranked search hit. Higher scores are closer semantic
// matches; result order is best-first with ties stable by insertion order.
type Scored struct {
	Chunk course.Chunk
	Score float32
}

// Store is the semantic index consumed by the retriever and the ingestion
// orchestrator. Implementations are safe for concurrent use.
type Store interface {
	// UpsertCourse writes one catalog record, embedding the course metadata
	// for fuzzy resolution.
	UpsertCourse(ctx context.Context, c course.Course) error

	// UpsertChunks writes chunk records carrying the exact course title.
	UpsertChunks(ctx context.Context, chunks []course.Chunk) error

	// IngestCourse writes a course and all its chunks as one unit: either
	// everything becomes queryable or nothing does. This is the
	// whole-course ingestion transaction; partial course state must not be
	// observable.
	IngestCourse(ctx context.Context, c course.Course, chunks []course.Chunk) error

	// CourseTitles returns all indexed course titles, sorted.
	CourseTitles(ctx context.Context) ([]string, error)

	// GetCourse returns the catalog entry with the exact title, or
	// (nil, nil) when no such course is indexed.
	GetCourse(ctx context.Context, title string) (*course.Course, error)

	// MatchCourse resolves a fuzzy course reference to the best catalog
	// entry, or (nil, nil) when the best score is below MinMatchSimilarity
	// or the catalog is empty.
	MatchCourse(ctx context.Context, fuzzyName string) (*course.Course, error)

	// Search returns up to limit chunks ranked by semantic closeness to
	// query, restricted by the filter. An empty result is a normal outcome.
	Search(ctx context.Context, query string, f Filter, limit int) ([]Scored, error)

	// Clear wipes both the catalog and the chunk index.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
