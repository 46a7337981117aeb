package deps

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/DeusData/depclosure/internal/cache"
	"github.com/DeusData/depclosure/internal/lang"
	"github.com/DeusData/depclosure/internal/resolve"
)

// countingFS records how often each file's content is read.
type countingFS struct {
	resolve.OSFS
	mu    sync.Mutex
	reads map[string]int
}

func newCountingFS() *countingFS {
	return &countingFS{reads: make(map[string]int)}
}

func (c *countingFS) ReadFile(name string) ([]byte, error) {
	c.mu.Lock()
	c.reads[name]++
	c.mu.Unlock()
	return c.OSFS.ReadFile(name)
}

func (c *countingFS) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[name]
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// touch moves a file's mtime forward so edits within the same clock tick are
// still seen as new versions.
func touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	ts := time.Now().Add(offset)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatal(err)
	}
}

func assertSet(t *testing.T, got Set, want ...string) {
	t.Helper()
	wantSet := make(Set, len(want))
	for _, w := range want {
		wantSet[w] = struct{}{}
	}
	if !reflect.DeepEqual(got, wantSet) {
		t.Errorf("closure = %v, want %v", got.Sorted(), wantSet.Sorted())
	}
}

func TestScriptEndToEnd(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.js")
	util := filepath.Join(dir, "util.js")
	helpers := filepath.Join(dir, "helpers.mjs")
	writeFile(t, main, "import x from './util';\n")
	writeFile(t, util, "import y from './helpers.mjs';\n")
	writeFile(t, helpers, "export const y = 1;\n")

	got, err := New().DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, util, helpers)
}

func TestStylesheetPartial(t *testing.T) {
	dir := t.TempDir()
	theme := filepath.Join(dir, "theme.scss")
	base := filepath.Join(dir, "_base.scss")
	writeFile(t, theme, "@use 'base';\n")
	writeFile(t, base, "$c: red;\n")

	got, err := New().DependenciesOf(theme)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, base)
}

func TestStylesheetIndexAndNested(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "app.scss")
	index := filepath.Join(dir, "components", "_index.scss")
	button := filepath.Join(dir, "components", "_button.scss")
	vars := filepath.Join(dir, "vars.scss")
	writeFile(t, app, "@use 'components';\n@import 'vars';\n@use 'sass:math';\n")
	writeFile(t, index, "@forward 'button';\n")
	writeFile(t, button, "@use '../vars';\n")
	writeFile(t, vars, "$x: 1;\n")

	got, err := New().DependenciesOf(app)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, index, button, vars)
}

func TestStylesheetDirectivesOnOneLine(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.scss")
	a := filepath.Join(dir, "_a.scss")
	b := filepath.Join(dir, "_b.scss")
	writeFile(t, main, "@import 'a';@import 'b';\n")
	writeFile(t, a, "")
	writeFile(t, b, "")

	got, err := New().DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, a, b)
}

func TestResolutionCacheIsPerLanguage(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "app.js")
	style := filepath.Join(dir, "style.scss")
	buttonJS := filepath.Join(dir, "button.js")
	buttonSCSS := filepath.Join(dir, "_button.scss")
	writeFile(t, app, "import b from './button';\n")
	writeFile(t, style, "@use 'button';\n")
	writeFile(t, buttonJS, "")
	writeFile(t, buttonSCSS, "")

	r := New()
	got, err := r.DependenciesOf(app)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, buttonJS)

	got, err = r.DependenciesOf(style)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, buttonSCSS)

	// Query order must not matter.
	got, err = New().DependenciesOf(style)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, buttonSCSS)
}

func TestTransitivity(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "lib", "b.js")
	c := filepath.Join(dir, "c.js")
	writeFile(t, a, "import b from './lib/b';\n")
	writeFile(t, b, "export * from '../c';\n")
	writeFile(t, c, "")

	got, err := New().DependenciesOf(a)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Has(b) || !got.Has(c) {
		t.Errorf("closure %v should contain b and c", got.Sorted())
	}
}

func TestIdempotentWithoutReread(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.js")
	util := filepath.Join(dir, "util.js")
	writeFile(t, main, "import u from './util';\n")
	writeFile(t, util, "")

	fsys := newCountingFS()
	r := New(WithFS(fsys))

	first, err := r.DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second query %v differs from first %v", second.Sorted(), first.Sorted())
	}
	if n := fsys.count(main); n != 1 {
		t.Errorf("main.js read %d times, want 1", n)
	}
	if n := fsys.count(util); n != 1 {
		t.Errorf("util.js read %d times, want 1", n)
	}
}

func TestRecomputeOnEdit(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.js")
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "b.js")
	writeFile(t, main, "import a from './a';\n")
	writeFile(t, a, "")
	writeFile(t, b, "")

	r := New()
	got, err := r.DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, a)

	writeFile(t, main, "import b from './b';\n")
	touch(t, main, time.Minute)

	got, err = r.DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, b)
}

func TestGracefulMiss(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.js")
	writeFile(t, main, "import a from './missing';\nimport l from 'lodash';\n")

	got, err := New().DependenciesOf(main)
	if err != nil {
		t.Fatalf("unresolvable reference should not fail: %v", err)
	}
	assertSet(t, got)
}

func TestMissIsNotCached(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.js")
	late := filepath.Join(dir, "late.js")
	writeFile(t, main, "import l from './late';\n")

	r := New()
	got, err := r.DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got)

	writeFile(t, late, "")
	got, err = r.DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, late)
}

func TestCycleTerminates(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "b.js")
	c := filepath.Join(dir, "c.js")
	writeFile(t, a, "import b from './b';\n")
	writeFile(t, b, "import a from './a';\nimport c from './c';\n")
	writeFile(t, c, "import b from './b';\n")

	done := make(chan struct{})
	var got Set
	var err error
	go func() {
		got, err = New().DependenciesOf(a)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cyclic walk did not terminate")
	}
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, a, b, c)
}

func TestSelfImport(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	writeFile(t, a, "import a from './a.js';\n")

	got, err := New().DependenciesOf(a)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, a)
}

func TestRootNotFound(t *testing.T) {
	_, err := New().DependenciesOf(filepath.Join(t.TempDir(), "nope.js"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestUnregisteredExtension(t *testing.T) {
	dir := t.TempDir()
	readme := filepath.Join(dir, "README.md")
	writeFile(t, readme, "import x from './util';\n")
	writeFile(t, filepath.Join(dir, "util.js"), "")

	fsys := newCountingFS()
	got, err := New(WithFS(fsys)).DependenciesOf(readme)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got)
	if n := fsys.count(readme); n != 0 {
		t.Errorf("unregistered file read %d times, want 0", n)
	}
}

func TestLeafWithUnregisteredExtension(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.scss")
	plain := filepath.Join(dir, "plain.css")
	writeFile(t, main, "@import url(plain.css);\n")
	writeFile(t, plain, "@import 'other.css';\n")

	got, err := New().DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, plain)
}

func TestCustomRegistryReplacesDefaults(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.tpl")
	part := filepath.Join(dir, "header.tpl")
	writeFile(t, main, "{{include header}}\n")
	writeFile(t, part, "")
	writeFile(t, filepath.Join(dir, "app.js"), "import u from './util';\n")
	writeFile(t, filepath.Join(dir, "util.js"), "")

	reg, err := lang.NewRegistry(map[string]lang.LanguageConfig{
		".tpl": {
			Extractors: []lang.Extractor{lang.MustPattern(`\{\{include (\w+)\}\}`)},
			Resolvers:  []lang.ResolverStep{lang.AppendExt(".tpl")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	r := New(WithRegistry(reg))

	got, err := r.DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, part)

	got, err = r.DependenciesOf(filepath.Join(dir, "app.js"))
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got)
}

func TestBoundedCacheSameResults(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.js")
	util := filepath.Join(dir, "util.js")
	writeFile(t, main, "import u from './util';\n")
	writeFile(t, util, "")

	c, err := cache.NewBounded(1)
	if err != nil {
		t.Fatal(err)
	}
	got, err := New(WithCache(c)).DependenciesOf(main)
	if err != nil {
		t.Fatal(err)
	}
	assertSet(t, got, util)
}

func TestStale(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.js")
	util := filepath.Join(dir, "util.js")
	writeFile(t, main, "import u from './util';\n")
	writeFile(t, util, "")
	touch(t, main, -time.Hour)
	touch(t, util, -time.Hour)

	r := New()
	ref := time.Now().Add(-30 * time.Minute)

	stale, err := r.Stale(main, ref)
	if err != nil {
		t.Fatal(err)
	}
	if stale {
		t.Error("nothing changed since ref; want fresh")
	}

	touch(t, util, 0)
	stale, err = r.Stale(main, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Error("dependency changed after ref; want stale")
	}

	touch(t, util, -time.Hour)
	touch(t, main, 0)
	stale, err = r.Stale(main, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Error("root changed after ref; want stale")
	}

	if _, err := r.Stale(filepath.Join(dir, "gone.js"), ref); err == nil {
		t.Error("missing root should fail")
	}
}

func TestFingerprintChangesOnEdit(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.js")
	util := filepath.Join(dir, "util.js")
	writeFile(t, main, "import u from './util';\n")
	writeFile(t, util, "")

	r := New()
	first, err := r.Fingerprint(main)
	if err != nil {
		t.Fatal(err)
	}
	again, err := r.Fingerprint(main)
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Errorf("fingerprint unstable: %s vs %s", first, again)
	}

	writeFile(t, util, "export const x = 1;\n")
	touch(t, util, time.Minute)
	changed, err := r.Fingerprint(main)
	if err != nil {
		t.Fatal(err)
	}
	if changed == first {
		t.Error("fingerprint should change when a dependency is edited")
	}
}

func TestDependenciesOfAll(t *testing.T) {
	dir := t.TempDir()
	shared := filepath.Join(dir, "shared.js")
	writeFile(t, shared, "")
	var roots []string
	for _, name := range []string{"a.js", "b.js", "c.js", "d.js"} {
		p := filepath.Join(dir, name)
		writeFile(t, p, "import s from './shared';\n")
		roots = append(roots, p)
	}

	results, err := New().DependenciesOfAll(context.Background(), roots)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(roots) {
		t.Fatalf("got %d results, want %d", len(results), len(roots))
	}
	for i, res := range results {
		if res.Root != roots[i] {
			t.Errorf("results[%d].Root = %s, want %s", i, res.Root, roots[i])
		}
		assertSet(t, res.Deps, shared)
	}

	if _, err := New().DependenciesOfAll(context.Background(), append(roots, filepath.Join(dir, "nope.js"))); err == nil {
		t.Error("missing root in batch should fail")
	}
	if results, err := New().DependenciesOfAll(context.Background(), nil); err != nil || len(results) != 0 {
		t.Errorf("empty batch = %v, %v", results, err)
	}
}
