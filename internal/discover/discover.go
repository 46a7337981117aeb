package discover

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/DeusData/depclosure/internal/lang"
)

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".git": true, ".hg": true, ".svn": true,
	".idea": true, ".vscode": true, ".npm": true, ".yarn": true,
	".pnpm-store": true, ".nyc_output": true, ".sass-cache": true,
	".next": true, ".nuxt": true, ".parcel-cache": true, ".turbo": true,
	"bower_components": true, "build": true, "coverage": true,
	"dist": true, "node_modules": true, "out": true, "tmp": true,
	"temp": true, "vendor": true,
}

// IgnoreFileName is the optional per-project ignore file, one glob per line.
const IgnoreFileName = ".depsignore"

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path    string // absolute path
	RelPath string // relative to the walk root, slash-separated
	Ext     string
}

// Options configures file discovery.
type Options struct {
	// IgnoreFile overrides <root>/.depsignore.
	IgnoreFile string
	// Ignore are extra glob patterns, matched against the slash-separated
	// relative path and against the base name.
	Ignore []string
	// SkipPartials drops stylesheet partials ("_name.scss"), which are only
	// ever included by other files and never built on their own. Other file
	// types keep their leading-underscore files.
	SkipPartials bool
}

// PartialExtensions are the extensions that follow the "_name" partial
// convention.
var PartialExtensions = map[string]bool{".scss": true, ".sass": true}

type matcher struct {
	globs []glob.Glob
}

func compileGlobs(patterns []string) (*matcher, error) {
	m := &matcher{globs: make([]glob.Glob, 0, len(patterns))}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", pattern, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

func (m *matcher) match(name, rel string) bool {
	for _, g := range m.globs {
		if g.Match(name) || g.Match(rel) {
			return true
		}
	}
	return false
}

// Discover walks root and returns every file whose extension is registered
// in reg, in lexical walk order.
func Discover(ctx context.Context, root string, reg *lang.Registry, opts *Options) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}

	patterns := append([]string(nil), opts.Ignore...)
	ignPath := opts.IgnoreFile
	if ignPath == "" {
		ignPath = filepath.Join(root, IgnoreFileName)
	}
	if extra, loadErr := loadIgnoreFile(ignPath); loadErr == nil {
		patterns = append(patterns, extra...)
	}
	ignore, err := compileGlobs(patterns)
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if path != root && (IGNORE_PATTERNS[info.Name()] || ignore.match(info.Name(), rel)) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if _, ok := reg.Lookup(ext); !ok {
			return nil
		}
		if ignore.match(info.Name(), rel) {
			return nil
		}
		if opts.SkipPartials && PartialExtensions[ext] && strings.HasPrefix(info.Name(), "_") {
			return nil
		}
		files = append(files, FileInfo{Path: path, RelPath: rel, Ext: ext})
		return nil
	})
	return files, err
}

// Paths returns the absolute paths of files.
func Paths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
