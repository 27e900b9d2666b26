// Package app assembles the memory server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Protocol-Lattice/memory-mcp/src/config"
	"github.com/Protocol-Lattice/memory-mcp/src/identity"
	"github.com/Protocol-Lattice/memory-mcp/src/memory"
	"github.com/Protocol-Lattice/memory-mcp/src/memory/embed"
	"github.com/Protocol-Lattice/memory-mcp/src/memory/store"
	"github.com/Protocol-Lattice/memory-mcp/src/models"
	"github.com/Protocol-Lattice/memory-mcp/src/server"
)

// App owns every long-lived resource of one server process.
type App struct {
	Server  *server.Server
	Service *memory.Service

	closers []io.Closer
}

// Build connects the configured backends and registers the tools. On error
// every resource opened so far is released.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	vs, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.track(vs)
	if schema, ok := vs.(store.SchemaInitializer); ok {
		if err := schema.CreateSchema(ctx); err != nil {
			return nil, fmt.Errorf("create %s schema: %w", cfg.Store.Kind, err)
		}
	}

	embedder, err := embed.New(ctx, embed.Config{
		Provider:  cfg.EmbedderProvider(),
		Model:     providerModel(cfg.EmbedderProvider(), cfg.Embedder.Model, config.Default().Embedder.Model),
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Dims:      cfg.Embedder.Dims,
		CacheSize: cfg.Embedder.CacheSize,
	})
	if err != nil {
		return nil, err
	}
	a.track(embedder)

	opts := []memory.Option{
		memory.WithLogger(logger),
		memory.WithDefaultSearchLimit(cfg.Memory.SearchLimit),
	}
	if cfg.Memory.Infer {
		llm, err := models.New(ctx, models.Config{
			Provider: cfg.LLM.Provider,
			Model:    providerModel(cfg.LLM.Provider, cfg.LLM.Model, config.Default().LLM.Model),
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		a.track(llm)
		opts = append(opts, memory.WithFactExtraction(llm))
	}
	a.Service = memory.NewService(embedder, vs, opts...)

	interceptor := identity.NewInterceptor(cfg.Identity.DefaultUserID,
		identity.WithLogger(logger),
		identity.WithHeaderNames(identity.HeaderNames{
			Primary:   cfg.Identity.PrimaryHeaders,
			Secondary: cfg.Identity.SecondaryHeaders,
		}),
	)
	a.Server, err = server.New(server.Options{
		Transport: cfg.Transport,
		Addr:      cfg.Server.Addr(),
		BaseURL:   cfg.Server.BaseURL,
		Logger:    logger,
	}, a.Service, interceptor)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "memory backends ready",
		"store", cfg.Store.Kind,
		"embedder", cfg.EmbedderProvider(),
		"fact_extraction", cfg.Memory.Infer,
	)
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.VectorStore, error) {
	sc := cfg.Store
	switch sc.Kind {
	case config.StoreMemory:
		return store.NewInMemoryStore(), nil
	case config.StorePostgres:
		return store.NewPostgresStore(ctx, sc.DatabaseURL, sc.Table, cfg.Embedder.Dims)
	case config.StoreMongo:
		return store.NewMongoStore(ctx, sc.Mongo.URI, sc.Mongo.Database, sc.Mongo.Collection, sc.Mongo.Index)
	case config.StoreNeo4j:
		driver, err := store.DialNeo4j(ctx, sc.Neo4j.URI, sc.Neo4j.Username, sc.Neo4j.Password)
		if err != nil {
			return nil, err
		}
		vs, err := store.NewNeo4jStore(driver, sc.Neo4j.Database, sc.Neo4j.Index, cfg.Embedder.Dims,
			store.WithNeo4jOversample(sc.Neo4j.Oversample))
		if err != nil {
			_ = driver.Close(ctx)
			return nil, err
		}
		return vs, nil
	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownStore, sc.Kind)
	}
}

// providerModel drops the built-in OpenAI model name for other providers so
// they fall back to their own default.
func providerModel(provider, model, openAIDefault string) string {
	if provider != "openai" && model == openAIDefault {
		return ""
	}
	return model
}

func (a *App) track(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.Server.Run(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
