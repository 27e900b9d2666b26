package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envKeys maps the environment names the service has always honoured onto
// config paths.
var envKeys = map[string]string{
	"TRANSPORT":              "transport",
	"HOST":                   "server.host",
	"PORT":                   "server.port",
	"BASE_URL":               "server.base_url",
	"DEFAULT_USER_ID":        "identity.default_user_id",
	"USER_HEADER_PRIMARY":    "identity.primary_headers",
	"USER_HEADER_SECONDARY":  "identity.secondary_headers",
	"LOG_LEVEL":              "log.level",
	"LOG_FORMAT":             "log.format",
	"LOG_FILE":               "log.file",
	"LLM_PROVIDER":           "llm.provider",
	"LLM_BASE_URL":           "llm.base_url",
	"LLM_API_KEY":            "llm.api_key",
	"LLM_CHOICE":             "llm.model",
	"EMBEDDING_PROVIDER":     "embedder.provider",
	"EMBEDDING_MODEL_CHOICE": "embedder.model",
	"EMBEDDING_DIMS":         "embedder.dims",
	"EMBED_CACHE_SIZE":       "embedder.cache_size",
	"VECTOR_STORE":           "store.kind",
	"DATABASE_URL":           "store.database_url",
	"MONGO_URI":              "store.mongo.uri",
	"MONGO_DATABASE":         "store.mongo.database",
	"MONGO_COLLECTION":       "store.mongo.collection",
	"MONGO_VECTOR_INDEX":     "store.mongo.index",
	"NEO4J_URI":              "store.neo4j.uri",
	"NEO4J_USERNAME":         "store.neo4j.username",
	"NEO4J_PASSWORD":         "store.neo4j.password",
	"NEO4J_DATABASE":         "store.neo4j.database",
	"NEO4J_OVERSAMPLE":       "store.neo4j.oversample",
	"MEMORY_INFER":           "memory.infer",
	"MEMORY_SEARCH_LIMIT":    "memory.search_limit",
}

// Load reads path (optional; .yaml, .yml or .json), then .env, then the
// environment, over Default().
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		parser, err := parserFor(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}
}

// envValue drops unknown and blank variables, and splits header lists.
func envValue(key, value string) (string, interface{}) {
	path, ok := envKeys[key]
	if !ok {
		return "", nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	switch key {
	case "USER_HEADER_PRIMARY", "USER_HEADER_SECONDARY":
		return path, splitList(value)
	case "MEMORY_INFER":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return path, value
		}
		return path, b
	}
	return path, value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
