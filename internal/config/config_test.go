package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/DeusData/depclosure/internal/cache"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadDefault(t *testing.T) {
	cfg, err := Load("/nonexistent/path")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EffectiveLogLevel() != slog.LevelInfo {
		t.Errorf("expected default level info, got %v", cfg.EffectiveLogLevel())
	}
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := reg.Extensions(), []string{".js", ".mjs", ".scss"}; !reflect.DeepEqual(got, want) {
		t.Errorf("default extensions = %v, want %v", got, want)
	}
	c, err := cfg.Cache()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*cache.Memory); !ok {
		t.Errorf("default cache = %T, want *cache.Memory", c)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := writeConfig(t, `
log_level: debug
cache_size: 128
ignore:
  - "**/generated/**"
languages:
  ".tpl":
    extractors:
      - pattern: '\{\{include "([^"]+)"\}\}'
      - func: strip_query
    resolvers: ["ext:.tpl", "partial:.tpl", "index:index.tpl"]
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EffectiveLogLevel() != slog.LevelDebug {
		t.Errorf("expected debug, got %v", cfg.EffectiveLogLevel())
	}
	if len(cfg.Ignore) != 1 || cfg.Ignore[0] != "**/generated/**" {
		t.Errorf("ignore = %v", cfg.Ignore)
	}
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.Extensions(); !reflect.DeepEqual(got, []string{".tpl"}) {
		t.Errorf("configured languages should replace defaults, got %v", got)
	}
	lc, _ := reg.Lookup(".tpl")
	if len(lc.Extractors) != 2 || len(lc.Resolvers) != 3 {
		t.Errorf("tpl config = %d extractors, %d resolvers", len(lc.Extractors), len(lc.Resolvers))
	}
	c, err := cfg.Cache()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*cache.Bounded); !ok {
		t.Errorf("cache = %T, want *cache.Bounded", c)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "not: [valid: yaml"},
		{"zero groups", "languages:\n  \".x\":\n    extractors:\n      - pattern: 'import'\n"},
		{"bad regexp", "languages:\n  \".x\":\n    extractors:\n      - pattern: '(open'\n"},
		{"unknown func", "languages:\n  \".x\":\n    extractors:\n      - func: nope\n"},
		{"both kinds", "languages:\n  \".x\":\n    extractors:\n      - pattern: '(a)'\n        func: trim_space\n"},
		{"empty extractor", "languages:\n  \".x\":\n    extractors:\n      - {}\n"},
		{"bad resolver", "languages:\n  \".x\":\n    resolvers: [\"glob:*\"]\n"},
		{"bad level", "log_level: loud\n"},
		{"negative cache", "cache_size: -1\n"},
	}
	for _, tt := range tests {
		dir := writeConfig(t, tt.content)
		if _, err := Load(dir); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
