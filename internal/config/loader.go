package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "RULEMAP_"
)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables, then applies defaults and validates.
//
// Precedence (highest to lowest):
//  1. Environment variables (RULEMAP_CLUSTERING_METHOD, RULEMAP_OUTPUT_DIR, ...)
//  2. YAML config file
//  3. Defaults
//
// An empty configPath skips the file layer entirely; a configPath that does
// not exist is an error (the caller asked for a specific file).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("opening config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envSubsections lists sections whose fields include nested structs.
// Their variables take a second split so the subsection becomes its own
// path segment instead of being glued to the field name.
var envSubsections = map[string][]string{
	"enrichment": {"embeddings", "describe"},
	"index":      {"qdrant"},
}

// envKey maps an environment variable to a koanf path. Variables are
// uppercased with underscore separators; the first underscore after the
// prefix splits section from field so multi-word field names survive,
// and known subsections split once more:
//
//	RULEMAP_CLUSTERING_NOISE_POLICY -> clustering.noise_policy
//	RULEMAP_REPOSITORY_MAX_FILE_SIZE -> repository.max_file_size
//	RULEMAP_ENRICHMENT_EMBEDDINGS_PROVIDER -> enrichment.embeddings.provider
//	RULEMAP_INDEX_QDRANT_API_KEY -> index.qdrant.api_key
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	section, rest := parts[0], parts[1]
	for _, sub := range envSubsections[section] {
		if strings.HasPrefix(rest, sub+"_") {
			return section + "." + sub + "." + strings.TrimPrefix(rest, sub+"_")
		}
	}
	return section + "." + rest
}
