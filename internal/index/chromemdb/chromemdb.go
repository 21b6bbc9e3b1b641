// Package chromemdb implements index.Store on chromem-go, an embedded
// pure-Go vector database. It is the default backend: no external services,
// suitable for single-process deployments where ingestion runs at startup.
//
// Two collections are kept: course_catalog (one document per course, embedded
// from the course metadata) and course_content (one document per chunk).
// chromem-go has no collection enumeration API, so the catalog is mirrored in
// an in-process map; in persistent mode the mirror is additionally written to
// a JSON sidecar next to the chromem data so title enumeration survives
// restarts.
package chromemdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/firebase/genkit/go/ai"
	chromem "github.com/philippgille/chromem-go"

	"coursechat/internal/course"
	"coursechat/internal/index"
	"coursechat/internal/log"
)

const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"
	catalogSidecar    = "catalog.json"
)

// Store implements index.Store on chromem-go.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db      *chromem.DB
	embed   chromem.EmbeddingFunc
	logger  log.Logger
	path    string // "" = in-memory

	mu      sync.RWMutex
	catalog *chromem.Collection
	content *chromem.Collection
	courses map[string]course.Course
}

// New creates a Store. path selects persistence: "" keeps everything
// in-memory (rebuilt by startup ingestion), otherwise chromem data and the
// catalog sidecar live under that directory.
func New(path string, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db at %s: %w", path, err)
		}
	}

	s := &Store{
		db:      db,
		embed:   index.NewEmbeddingFunc(embedder),
		logger:  logger,
		path:    path,
		courses: make(map[string]course.Course),
	}
	if err := s.openCollections(); err != nil {
		return nil, err
	}
	if err := s.loadSidecar(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) openCollections() error {
	catalog, err := s.db.GetOrCreateCollection(catalogCollection, nil, s.embed)
	if err != nil {
		return fmt.Errorf("opening catalog collection: %w", err)
	}
	content, err := s.db.GetOrCreateCollection(contentCollection, nil, s.embed)
	if err != nil {
		return fmt.Errorf("opening content collection: %w", err)
	}
	s.catalog = catalog
	s.content = content
	return nil
}

// UpsertCourse writes one catalog record.
func (s *Store) UpsertCourse(ctx context.Context, c course.Course) error {
	doc := chromem.Document{
		ID:       c.Title,
		Content:  index.CatalogText(c),
		Metadata: map[string]string{index.MetaCourseTitle: c.Title},
	}
	if err := s.catalog.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("upserting course %q: %w", c.Title, err)
	}

	s.mu.Lock()
	s.courses[c.Title] = c
	err := s.saveSidecarLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("indexed course", "title", c.Title, "lessons", len(c.Lessons))
	return nil
}

// UpsertChunks writes chunk records.
func (s *Store) UpsertChunks(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		meta := map[string]string{
			index.MetaCourseTitle: ch.CourseTitle,
			index.MetaChunkIndex:  strconv.Itoa(ch.Index),
		}
		if ch.LessonNumber != nil {
			meta[index.MetaLessonNumber] = strconv.Itoa(*ch.LessonNumber)
		}
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("%s:%d", ch.CourseTitle, ch.Index),
			Content:  ch.Text,
			Metadata: meta,
		})
	}

	if err := s.content.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("upserting %d chunks: %w", len(chunks), err)
	}
	return nil
}

// IngestCourse writes the course and its chunks together. On chunk failure
// the catalog record and any chunks written before the failure are rolled
// back, so a failed course is never queryable, not even partially.
func (s *Store) IngestCourse(ctx context.Context, c course.Course, chunks []course.Chunk) error {
	if err := s.UpsertCourse(ctx, c); err != nil {
		return err
	}
	if err := s.UpsertChunks(ctx, chunks); err != nil {
		if delErr := s.deleteCourse(ctx, c.Title); delErr != nil {
			s.logger.Warn("rolling back course", "title", c.Title, "error", delErr)
		}
		return err
	}
	return nil
}

// deleteCourse removes the catalog record, all content chunks carrying the
// title, and the mirror entry.
func (s *Store) deleteCourse(ctx context.Context, title string) error {
	if err := s.catalog.Delete(ctx, nil, nil, title); err != nil {
		return err
	}
	if err := s.content.Delete(ctx, map[string]string{index.MetaCourseTitle: title}, nil); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.courses, title)
	err := s.saveSidecarLocked()
	s.mu.Unlock()
	return err
}

// CourseTitles returns all indexed course titles, sorted.
func (s *Store) CourseTitles(context.Context) ([]string, error) {
	s.mu.RLock()
	titles := make([]string, 0, len(s.courses))
	for t := range s.courses {
		titles = append(titles, t)
	}
	s.mu.RUnlock()

	sort.Strings(titles)
	return titles, nil
}

// GetCourse returns the catalog entry with the exact title.
func (s *Store) GetCourse(_ context.Context, title string) (*course.Course, error) {
	s.mu.RLock()
	c, ok := s.courses[title]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// MatchCourse resolves a fuzzy course reference against the catalog.
func (s *Store) MatchCourse(ctx context.Context, fuzzyName string) (*course.Course, error) {
	if s.catalog.Count() == 0 {
		return nil, nil
	}

	results, err := s.catalog.Query(ctx, fuzzyName, 1, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("matching course %q: %w", fuzzyName, err)
	}
	if len(results) == 0 || results[0].Similarity < index.MinMatchSimilarity {
		s.logger.Debug("no confident course match", "name", fuzzyName)
		return nil, nil
	}

	s.mu.RLock()
	c, ok := s.courses[results[0].ID]
	s.mu.RUnlock()
	if !ok {
		// Catalog and mirror disagree; treat as no match.
		s.logger.Warn("matched course missing from catalog mirror", "title", results[0].ID)
		return nil, nil
	}
	return &c, nil
}

// Search returns up to limit chunks ranked by semantic closeness.
func (s *Store) Search(ctx context.Context, query string, f index.Filter, limit int) ([]index.Scored, error) {
	where := make(map[string]string)
	if f.CourseTitle != "" {
		where[index.MetaCourseTitle] = f.CourseTitle
	}
	if f.LessonNumber != nil {
		where[index.MetaLessonNumber] = strconv.Itoa(*f.LessonNumber)
	}
	if len(where) == 0 {
		where = nil
	}

	// chromem rejects nResults beyond the collection size.
	n := limit
	if count := s.content.Count(); n > count {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := s.content.Query(ctx, query, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	scored := make([]index.Scored, 0, len(results))
	for _, r := range results {
		scored = append(scored, index.Scored{
			Chunk: chunkFromResult(r),
			Score: r.Similarity,
		})
	}
	return scored, nil
}

func chunkFromResult(r chromem.Result) course.Chunk {
	ch := course.Chunk{
		Text:        r.Content,
		CourseTitle: r.Metadata[index.MetaCourseTitle],
	}
	if v, ok := r.Metadata[index.MetaLessonNumber]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ch.LessonNumber = &n
		}
	}
	if v, ok := r.Metadata[index.MetaChunkIndex]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			ch.Index = n
		}
	}
	return ch
}

// Clear wipes both collections and the catalog mirror.
func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(catalogCollection); err != nil {
		return fmt.Errorf("dropping catalog: %w", err)
	}
	if err := s.db.DeleteCollection(contentCollection); err != nil {
		return fmt.Errorf("dropping content: %w", err)
	}
	if err := s.openCollections(); err != nil {
		return err
	}

	s.courses = make(map[string]course.Course)
	return s.saveSidecarLocked()
}

// Close is a no-op; chromem flushes on write.
func (*Store) Close() error { return nil }

func (s *Store) sidecarPath() string {
	return filepath.Join(s.path, catalogSidecar)
}

func (s *Store) loadSidecar() error {
	if s.path == "" {
		return nil
	}

	data, err := os.ReadFile(s.sidecarPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading catalog sidecar: %w", err)
	}

	var courses []course.Course
	if err := json.Unmarshal(data, &courses); err != nil {
		return fmt.Errorf("parsing catalog sidecar: %w", err)
	}
	for _, c := range courses {
		s.courses[c.Title] = c
	}
	return nil
}

// saveSidecarLocked persists the catalog mirror; callers hold s.mu.
func (s *Store) saveSidecarLocked() error {
	if s.path == "" {
		return nil
	}

	courses := make([]course.Course, 0, len(s.courses))
	for _, c := range s.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Title < courses[j].Title })

	data, err := json.MarshalIndent(courses, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalog sidecar: %w", err)
	}
	if err := os.WriteFile(s.sidecarPath(), data, 0o600); err != nil {
		return fmt.Errorf("writing catalog sidecar: %w", err)
	}
	return nil
}
