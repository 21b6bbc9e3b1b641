// Package app wires the application together: provider setup, index backend
// selection, startup ingestion and the query surface shared by every command.
package app

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"coursechat/internal/agent"
	"coursechat/internal/config"
	"coursechat/internal/course"
	"coursechat/internal/index"
	"coursechat/internal/ingest"
	"coursechat/internal/log"
	"coursechat/internal/session"
	"coursechat/internal/tools"
)

// Answerer generates one answer from a query and prior history.
// *agent.Agent is the production implementation.
type Answerer interface {
	Answer(ctx context.Context, query string, history []*ai.Message) (*agent.Response, error)
}

// App holds the initialized application components.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Store    index.Store
	Sessions *session.Store
	Agent    Answerer
	Ingestor *ingest.Ingestor
	Registry *tools.Registry
}

// QueryResult is one answered query. SessionID echoes the session used, so
// callers that passed "" learn the generated id and can continue the
// conversation.
type QueryResult struct {
	Answer    string
	Sources   []course.Citation
	SessionID string
}

// Query answers one user question. An empty sessionID starts a fresh
// session. The per-session turn lock is held across history read, generation
// and history append, so concurrent queries on the same session serialize
// while different sessions proceed independently.
func (a *App) Query(ctx context.Context, text, sessionID string) (*QueryResult, error) {
	if sessionID == "" {
		sessionID = a.Sessions.Create()
	}

	unlock := a.Sessions.LockTurn(sessionID)
	defer unlock()

	history := a.Sessions.History(sessionID)
	resp, err := a.Agent.Answer(ctx, text, history)
	if err != nil {
		return nil, fmt.Errorf("answering query: %w", err)
	}
	a.Sessions.Append(sessionID, text, resp.Text)

	return &QueryResult{
		Answer:    resp.Text,
		Sources:   resp.Sources,
		SessionID: sessionID,
	}, nil
}

// Analytics summarizes the indexed corpus.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// Stats reports how many courses are indexed and their titles, sorted.
func (a *App) Stats(ctx context.Context) (*Analytics, error) {
	titles, err := a.Store.CourseTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return &Analytics{TotalCourses: len(titles), CourseTitles: titles}, nil
}

// Close releases backend resources. Safe to call on a partially initialized
// App.
func (a *App) Close() error {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			return fmt.Errorf("closing index store: %w", err)
		}
	}
	return nil
}
