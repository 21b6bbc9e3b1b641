// Package postgres implements index.Store on PostgreSQL with pgvector.
// It is the durable backend: courses and chunks survive restarts, whole-course
// ingestion is a real database transaction, and title enumeration is a
// DISTINCT scan.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"coursechat/internal/course"
	"coursechat/internal/index"
	"coursechat/internal/log"
)

// embedBatchSize bounds how many chunk texts go into one embedding request.
const embedBatchSize = 64

// vectorDim is the dimension of the vector(N) columns created by the
// migrations. Open verifies the configured embedder against it so a
// provider/model mismatch fails at startup instead of mid-ingestion.
const vectorDim = 768

// Store implements index.Store on PostgreSQL + pgvector.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   log.Logger
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx, so writes can run
// inside or outside a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Open runs migrations, builds the connection pool and verifies
// connectivity. The pool registers pgvector types on every connection.
// The embedder is probed once so a model whose vectors do not fit the
// schema's dimension is rejected here rather than on the first insert.
func Open(ctx context.Context, connURL string, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	if err := checkEmbedderDim(ctx, embedder); err != nil {
		return nil, err
	}

	if err := Migrate(connURL, logger); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

func checkEmbedderDim(ctx context.Context, embedder ai.Embedder) error {
	vectors, err := index.EmbedTexts(ctx, embedder, []string{"dimension check"})
	if err != nil {
		return fmt.Errorf("probing embedder: %w", err)
	}
	if got := len(vectors[0]); got != vectorDim {
		return fmt.Errorf("embedder produces %d-dimensional vectors, schema expects %d", got, vectorDim)
	}
	return nil
}

// UpsertCourse writes one catalog record with a fresh metadata embedding.
func (s *Store) UpsertCourse(ctx context.Context, c course.Course) error {
	return s.upsertCourse(ctx, s.pool, c)
}

func (s *Store) upsertCourse(ctx context.Context, q execer, c course.Course) error {
	vectors, err := index.EmbedTexts(ctx, s.embedder, []string{index.CatalogText(c)})
	if err != nil {
		return fmt.Errorf("embedding course %q: %w", c.Title, err)
	}

	lessons, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("encoding lessons for %q: %w", c.Title, err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO courses (title, link, instructor, lessons, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (title) DO UPDATE
		SET link = EXCLUDED.link,
		    instructor = EXCLUDED.instructor,
		    lessons = EXCLUDED.lessons,
		    embedding = EXCLUDED.embedding`,
		c.Title, c.Link, c.Instructor, lessons, pgvector.NewVector(vectors[0]))
	if err != nil {
		return fmt.Errorf("upserting course %q: %w", c.Title, err)
	}

	s.logger.Debug("indexed course", "title", c.Title, "lessons", len(c.Lessons))
	return nil
}

// UpsertChunks writes chunk records outside a transaction.
func (s *Store) UpsertChunks(ctx context.Context, chunks []course.Chunk) error {
	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}
	return insertChunks(ctx, s.pool, chunks, vectors)
}

// IngestCourse writes the course and all its chunks in one transaction:
// either the whole course becomes queryable or nothing does. Embeddings are
// computed before the transaction opens to keep it short.
func (s *Store) IngestCourse(ctx context.Context, c course.Course, chunks []course.Chunk) error {
	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning ingestion transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := s.upsertCourse(ctx, tx, c); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM course_chunks WHERE course_title = $1`, c.Title); err != nil {
		return fmt.Errorf("clearing stale chunks for %q: %w", c.Title, err)
	}
	if err := insertChunks(ctx, tx, chunks, vectors); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing ingestion for %q: %w", c.Title, err)
	}
	return nil
}

func (s *Store) embedChunks(ctx context.Context, chunks []course.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Text)
		}
		batch, err := index.EmbedTexts(ctx, s.embedder, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func insertChunks(ctx context.Context, q execer, chunks []course.Chunk, vectors [][]float32) error {
	for i, ch := range chunks {
		_, err := q.Exec(ctx, `
			INSERT INTO course_chunks (id, course_title, lesson_number, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (course_title, chunk_index) DO UPDATE
			SET lesson_number = EXCLUDED.lesson_number,
			    content = EXCLUDED.content,
			    embedding = EXCLUDED.embedding`,
			uuid.New(), ch.CourseTitle, ch.LessonNumber, ch.Index, ch.Text, pgvector.NewVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("inserting chunk %d of %q: %w", ch.Index, ch.CourseTitle, err)
		}
	}
	return nil
}

// CourseTitles returns all indexed course titles, sorted.
func (s *Store) CourseTitles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT title FROM courses ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("listing course titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// GetCourse returns the catalog entry with the exact title.
func (s *Store) GetCourse(ctx context.Context, title string) (*course.Course, error) {
	var (
		c       course.Course
		lessons []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT title, link, instructor, lessons FROM courses WHERE title = $1`,
		title).Scan(&c.Title, &c.Link, &c.Instructor, &lessons)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading course %q: %w", title, err)
	}
	if err := json.Unmarshal(lessons, &c.Lessons); err != nil {
		return nil, fmt.Errorf("decoding lessons for %q: %w", title, err)
	}
	return &c, nil
}

// MatchCourse resolves a fuzzy course reference against the catalog,
// returning (nil, nil) when the best match scores below the confidence floor.
func (s *Store) MatchCourse(ctx context.Context, fuzzyName string) (*course.Course, error) {
	vectors, err := index.EmbedTexts(ctx, s.embedder, []string{fuzzyName})
	if err != nil {
		return nil, fmt.Errorf("embedding course name %q: %w", fuzzyName, err)
	}

	var (
		c          course.Course
		lessons    []byte
		similarity float64
	)
	err = s.pool.QueryRow(ctx, `
		SELECT title, link, instructor, lessons, 1 - (embedding <=> $1) AS similarity
		FROM courses
		ORDER BY embedding <=> $1
		LIMIT 1`,
		pgvector.NewVector(vectors[0])).Scan(&c.Title, &c.Link, &c.Instructor, &lessons, &similarity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("matching course %q: %w", fuzzyName, err)
	}

	if similarity < index.MinMatchSimilarity {
		s.logger.Debug("no confident course match", "name", fuzzyName, "best", c.Title, "similarity", similarity)
		return nil, nil
	}

	if err := json.Unmarshal(lessons, &c.Lessons); err != nil {
		return nil, fmt.Errorf("decoding lessons for %q: %w", c.Title, err)
	}
	return &c, nil
}

// Search returns up to limit chunks ranked by cosine closeness to query.
// Ties fall back to (course_title, chunk_index) so ordering is stable.
func (s *Store) Search(ctx context.Context, query string, f index.Filter, limit int) ([]index.Scored, error) {
	vectors, err := index.EmbedTexts(ctx, s.embedder, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT content, course_title, lesson_number, chunk_index, 1 - (embedding <=> $1) AS similarity
		FROM course_chunks
		WHERE ($2 = '' OR course_title = $2)
		  AND ($3::int IS NULL OR lesson_number = $3::int)
		ORDER BY embedding <=> $1, course_title, chunk_index
		LIMIT $4`,
		pgvector.NewVector(vectors[0]), f.CourseTitle, f.LessonNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var scored []index.Scored
	for rows.Next() {
		var (
			ch         course.Chunk
			similarity float64
		)
		if err := rows.Scan(&ch.Text, &ch.CourseTitle, &ch.LessonNumber, &ch.Index, &similarity); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		scored = append(scored, index.Scored{Chunk: ch, Score: float32(similarity)})
	}
	return scored, rows.Err()
}

// Clear wipes the catalog and the chunk index.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE course_chunks, courses`); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
