package lang

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// ErrNoCaptureGroup is returned when a pattern extractor has nothing to emit.
var ErrNoCaptureGroup = errors.New("pattern has no capture groups")

// LanguageConfig describes how references are found in one file type and how
// they map onto files on disk. It is never mutated after registration.
type LanguageConfig struct {
	// Extractors run in order; the output of one stage is the input of the next.
	Extractors []Extractor
	// Resolvers are tried in order after the literal reference; first existing file wins.
	Resolvers []ResolverStep
}

// Validate reports the first structural problem in the config.
func (c LanguageConfig) Validate() error {
	for i, ex := range c.Extractors {
		if err := ex.validate(); err != nil {
			return fmt.Errorf("extractor %d: %w", i, err)
		}
	}
	for i, step := range c.Resolvers {
		if step == nil {
			return fmt.Errorf("resolver %d: nil step", i)
		}
	}
	return nil
}

// Registry maps file extensions (".js", ".scss") to language configs.
// Lookups are exact and case-sensitive.
type Registry struct {
	byExt map[string]LanguageConfig
}

// NewRegistry validates every config and returns an immutable registry.
func NewRegistry(configs map[string]LanguageConfig) (*Registry, error) {
	byExt := make(map[string]LanguageConfig, len(configs))
	for ext, cfg := range configs {
		if ext == "" {
			return nil, errors.New("empty extension")
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("language %q: %w", ext, err)
		}
		byExt[ext] = LanguageConfig{
			Extractors: append([]Extractor(nil), cfg.Extractors...),
			Resolvers:  append([]ResolverStep(nil), cfg.Resolvers...),
		}
	}
	return &Registry{byExt: byExt}, nil
}

// Lookup returns the config registered for ext.
func (r *Registry) Lookup(ext string) (LanguageConfig, bool) {
	if r == nil {
		return LanguageConfig{}, false
	}
	cfg, ok := r.byExt[ext]
	return cfg, ok
}

// ForPath looks up the config for a file path by its extension.
func (r *Registry) ForPath(path string) (LanguageConfig, bool) {
	return r.Lookup(filepath.Ext(path))
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	if r == nil {
		return nil
	}
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
