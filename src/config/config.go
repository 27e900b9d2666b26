// Package config loads service settings from defaults, an optional config
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
	TransportStdio          = "stdio"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongodb"
	StoreNeo4j    = "neo4j"
)

var (
	ErrUnknownTransport = errors.New("config: unknown transport")
	ErrUnknownStore     = errors.New("config: unknown vector store")
	ErrUnknownProvider  = errors.New("config: unknown provider")
	ErrInvalidPort      = errors.New("config: invalid port")
	ErrMissingSetting   = errors.New("config: missing setting")
)

type Config struct {
	Transport string         `koanf:"transport"`
	Server    ServerConfig   `koanf:"server"`
	Identity  IdentityConfig `koanf:"identity"`
	Log       LogConfig      `koanf:"log"`
	LLM       LLMConfig      `koanf:"llm"`
	Embedder  EmbedderConfig `koanf:"embedder"`
	Store     StoreConfig    `koanf:"store"`
	Memory    MemoryConfig   `koanf:"memory"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// BaseURL is advertised to SSE clients as the message endpoint origin.
	BaseURL string `koanf:"base_url"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type IdentityConfig struct {
	DefaultUserID    string   `koanf:"default_user_id"`
	PrimaryHeaders   []string `koanf:"primary_headers"`
	SecondaryHeaders []string `koanf:"secondary_headers"`
}

type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

type LLMConfig struct {
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
}

type EmbedderConfig struct {
	// Provider defaults to the LLM provider, except anthropic which has no
	// embedding endpoint and falls back to voyage.
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	Dims      int    `koanf:"dims"`
	CacheSize int    `koanf:"cache_size"`
}

type StoreConfig struct {
	Kind        string      `koanf:"kind"`
	DatabaseURL string      `koanf:"database_url"`
	Table       string      `koanf:"table"`
	Mongo       MongoConfig `koanf:"mongo"`
	Neo4j       Neo4jConfig `koanf:"neo4j"`
}

type MongoConfig struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
	Index      string `koanf:"index"`
}

type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	Index    string `koanf:"index"`

	// Oversample is the number of vector index candidates fetched per
	// requested result before the user filter applies.
	Oversample int `koanf:"oversample"`
}

type MemoryConfig struct {
	Infer       bool `koanf:"infer"`
	SearchLimit int  `koanf:"search_limit"`
}

// Default mirrors the settings the service ran with before it was
// configurable.
func Default() Config {
	return Config{
		Transport: TransportSSE,
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8050},
		Identity:  IdentityConfig{DefaultUserID: "default"},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		LLM: LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Embedder: EmbedderConfig{
			Model:     "text-embedding-3-small",
			Dims:      1536,
			CacheSize: 1024,
		},
		Store: StoreConfig{
			Kind:  StoreMemory,
			Table: "memories",
			Mongo: MongoConfig{
				Database:   "mem0",
				Collection: "memories",
				Index:      "memories_vector_index",
			},
			Neo4j: Neo4jConfig{
				Username:   "neo4j",
				Database:   "neo4j",
				Index:      "memory_embeddings",
				Oversample: 10,
			},
		},
		Memory: MemoryConfig{SearchLimit: 3},
	}
}

// EmbedderProvider resolves the embedding provider after defaulting.
func (c Config) EmbedderProvider() string {
	if p := strings.ToLower(strings.TrimSpace(c.Embedder.Provider)); p != "" {
		return p
	}
	switch p := strings.ToLower(strings.TrimSpace(c.LLM.Provider)); p {
	case "anthropic":
		return "voyage"
	default:
		return p
	}
}

var (
	llmProviders      = []string{"openai", "ollama", "gemini", "anthropic", "dummy"}
	embedderProviders = []string{"openai", "ollama", "gemini", "voyage", "fastembed", "dummy"}
)

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportSSE, TransportStreamableHTTP, TransportStdio:
	default:
		errs = append(errs, fmt.Errorf("%w %q", ErrUnknownTransport, c.Transport))
	}
	if c.Transport != TransportStdio && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("%w %d", ErrInvalidPort, c.Server.Port))
	}
	if !oneOf(c.LLM.Provider, llmProviders) {
		errs = append(errs, fmt.Errorf("%w %q for llm", ErrUnknownProvider, c.LLM.Provider))
	}
	if !oneOf(c.EmbedderProvider(), embedderProviders) {
		errs = append(errs, fmt.Errorf("%w %q for embedder", ErrUnknownProvider, c.EmbedderProvider()))
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("%w: DATABASE_URL is required for %s", ErrMissingSetting, StorePostgres))
		}
	case StoreMongo:
		if c.Store.Mongo.URI == "" {
			errs = append(errs, fmt.Errorf("%w: MONGO_URI is required for %s", ErrMissingSetting, StoreMongo))
		}
	case StoreNeo4j:
		if c.Store.Neo4j.URI == "" {
			errs = append(errs, fmt.Errorf("%w: NEO4J_URI is required for %s", ErrMissingSetting, StoreNeo4j))
		}
	default:
		errs = append(errs, fmt.Errorf("%w %q", ErrUnknownStore, c.Store.Kind))
	}
	if c.Store.Kind != StoreMemory && c.Embedder.Dims <= 0 {
		errs = append(errs, fmt.Errorf("%w: embedding dims must be positive", ErrMissingSetting))
	}
	return errors.Join(errs...)
}

func oneOf(v string, set []string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
