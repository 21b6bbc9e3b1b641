package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"coursechat/internal/agent"
	"coursechat/internal/chunker"
	"coursechat/internal/config"
	"coursechat/internal/index"
	"coursechat/internal/index/chromemdb"
	"coursechat/internal/index/postgres"
	"coursechat/internal/ingest"
	"coursechat/internal/log"
	"coursechat/internal/retriever"
	"coursechat/internal/session"
	"coursechat/internal/tools"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	store, err := provideStore(ctx, cfg, embedder, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("configuring chunker: %w", err)
	}
	a.Ingestor = ingest.New(store, ch, logger)

	r := retriever.New(store, cfg.MaxResults, logger)
	a.Registry = tools.NewRegistry(
		tools.NewSearchContent(r),
		tools.NewCourseOutline(r),
	)
	a.Agent = agent.New(g, a.Registry, cfg.FullModelName(), cfg.MaxAnswerTokens, logger)
	a.Sessions = session.NewStore(cfg.HistoryPairs)

	if cfg.DocsDir != "" {
		if _, statErr := os.Stat(cfg.DocsDir); statErr != nil {
			logger.Debug("docs folder not present, skipping startup ingestion", "dir", cfg.DocsDir)
		} else {
			added, chunks, err := a.Ingestor.AddCourseFolder(ctx, cfg.DocsDir, false)
			if err != nil {
				return nil, fmt.Errorf("ingesting startup folder %s: %w", cfg.DocsDir, err)
			}
			logger.Info("startup ingestion complete", "dir", cfg.DocsDir, "courses", len(added), "chunks", chunks)
		}
	}

	return a, nil
}

// provideGenkit initializes genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideStore opens the configured index backend.
func provideStore(ctx context.Context, cfg *config.Config, embedder ai.Embedder, logger log.Logger) (index.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.PostgresURL(), embedder, logger)
	default: // embedded
		return chromemdb.New(cfg.IndexPath, embedder, logger)
	}
}
