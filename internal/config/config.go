package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/DeusData/depclosure/internal/cache"
	"github.com/DeusData/depclosure/internal/lang"
)

// FileName is the per-project configuration file.
const FileName = ".depsconfig"

// Config holds user-overridable settings, loaded from .depsconfig.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level"`

	// Ignore are extra glob patterns excluded from discovery, added to the
	// built-in ignored directory names.
	Ignore []string `yaml:"ignore"`

	// CacheSize bounds each cache table. 0 keeps every entry for the life of
	// the process.
	CacheSize int `yaml:"cache_size"`

	// Languages, when present, replaces the built-in language table.
	Languages map[string]LanguageEntry `yaml:"languages"`
}

// LanguageEntry is the YAML form of lang.LanguageConfig.
type LanguageEntry struct {
	Extractors []ExtractorEntry `yaml:"extractors"`
	Resolvers  []string         `yaml:"resolvers"`
}

// ExtractorEntry names exactly one of a regular expression or a built-in function.
type ExtractorEntry struct {
	Pattern string `yaml:"pattern"`
	Func    string `yaml:"func"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{}
}

// Load reads .depsconfig from dir. A missing file yields the defaults; a file
// that exists but does not parse is an error.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("parse %s: cache_size must be >= 0", path)
	}
	if _, err := cfg.Registry(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Registry builds the language table: the configured languages if any,
// otherwise the built-ins.
func (c *Config) Registry() (*lang.Registry, error) {
	if len(c.Languages) == 0 {
		return lang.Default(), nil
	}
	configs := make(map[string]lang.LanguageConfig, len(c.Languages))
	for ext, entry := range c.Languages {
		lc, err := entry.build()
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", ext, err)
		}
		configs[ext] = lc
	}
	return lang.NewRegistry(configs)
}

func (e LanguageEntry) build() (lang.LanguageConfig, error) {
	var lc lang.LanguageConfig
	for i, ex := range e.Extractors {
		switch {
		case ex.Pattern != "" && ex.Func != "":
			return lc, fmt.Errorf("extractor %d: set pattern or func, not both", i)
		case ex.Pattern != "":
			p, err := lang.Pattern(ex.Pattern)
			if err != nil {
				return lc, fmt.Errorf("extractor %d: %w", i, err)
			}
			lc.Extractors = append(lc.Extractors, p)
		case ex.Func != "":
			f, err := lang.NamedFunc(ex.Func)
			if err != nil {
				return lc, fmt.Errorf("extractor %d: %w", i, err)
			}
			lc.Extractors = append(lc.Extractors, f)
		default:
			return lc, fmt.Errorf("extractor %d: empty", i)
		}
	}
	for _, raw := range e.Resolvers {
		step, err := lang.ParseStep(raw)
		if err != nil {
			return lc, err
		}
		lc.Resolvers = append(lc.Resolvers, step)
	}
	return lc, nil
}

// Cache returns the cache sized by CacheSize.
func (c *Config) Cache() (cache.Cache, error) {
	return cache.New(c.CacheSize)
}

// EffectiveLogLevel returns the configured level, or info if unset.
func (c *Config) EffectiveLogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
