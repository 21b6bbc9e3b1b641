// Package ingest orchestrates loading course documents into the index:
// parse, chunk, then write the course and its chunks as one unit.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"coursechat/internal/chunker"
	"coursechat/internal/course"
	"coursechat/internal/index"
	"coursechat/internal/log"
	"coursechat/internal/parser"
)

// Ingestor loads parsed course documents into a Store.
type Ingestor struct {
	store   index.Store
	chunker *chunker.Chunker
	logger  log.Logger
}

// New creates an Ingestor.
func New(store index.Store, ch *chunker.Chunker, logger log.Logger) *Ingestor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingestor{store: store, chunker: ch, logger: logger}
}

// AddCourseDocument parses one file and ingests it as a whole course.
func (in *Ingestor) AddCourseDocument(ctx context.Context, path string) (*course.Course, []course.Chunk, error) {
	doc, err := parser.Parse(path)
	if err != nil {
		return nil, nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating %s: %w", path, err)
	}

	chunks := in.chunker.ChunkCourse(doc)
	if err := in.store.IngestCourse(ctx, doc.Course, chunks); err != nil {
		return nil, nil, fmt.Errorf("ingesting %q: %w", doc.Course.Title, err)
	}

	in.logger.Info("ingested course",
		"title", doc.Course.Title,
		"lessons", len(doc.Course.Lessons),
		"chunks", len(chunks),
	)
	return &doc.Course, chunks, nil
}

// AddCourseFolder ingests every supported file in dir that describes a
// course not yet present in the index. The set of existing titles is read
// once, before any write, and each skip is logged, so a re-run over the same
// folder is an explicit no-op rather than an accidental one. clearExisting
// wipes the index first. Files that fail to parse are logged and skipped.
//
// Returns the newly added courses and the total chunk count written.
func (in *Ingestor) AddCourseFolder(ctx context.Context, dir string, clearExisting bool) ([]course.Course, int, error) {
	if clearExisting {
		in.logger.Info("clearing existing index data")
		if err := in.store.Clear(ctx); err != nil {
			return nil, 0, fmt.Errorf("clearing index: %w", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("reading course folder %s: %w", dir, err)
	}

	titles, err := in.store.CourseTitles(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("listing indexed courses: %w", err)
	}
	existing := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		existing[t] = struct{}{}
	}

	var (
		added       []course.Course
		totalChunks int
	)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && parser.SupportedExt(filepath.Ext(e.Name())) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)

		doc, err := parser.Parse(path)
		if err != nil {
			in.logger.Warn("skipping unreadable course file", "path", path, "error", err)
			continue
		}
		if err := doc.Validate(); err != nil {
			in.logger.Warn("skipping malformed course file", "path", path, "error", err)
			continue
		}

		if _, ok := existing[doc.Course.Title]; ok {
			in.logger.Debug("course already indexed, skipping", "title", doc.Course.Title, "path", path)
			continue
		}

		chunks := in.chunker.ChunkCourse(doc)
		if err := in.store.IngestCourse(ctx, doc.Course, chunks); err != nil {
			return added, totalChunks, fmt.Errorf("ingesting %q from %s: %w", doc.Course.Title, path, err)
		}

		existing[doc.Course.Title] = struct{}{}
		added = append(added, doc.Course)
		totalChunks += len(chunks)
		in.logger.Info("ingested course",
			"title", doc.Course.Title,
			"lessons", len(doc.Course.Lessons),
			"chunks", len(chunks),
		)
	}
	return added, totalChunks, nil
}
