package resolver_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/config"
	"github.com/hql-lang/hqlc/internal/env"
	"github.com/hql-lang/hqlc/internal/logger"
	"github.com/hql-lang/hqlc/internal/resolver"
)

type fakeParser struct {
	forms    map[string][]ast.SExpr
	parseCnt map[string]int
}

func (f *fakeParser) Parse(source logger.Source) ([]ast.SExpr, error) {
	if f.parseCnt != nil {
		f.parseCnt[source.KeyPath]++
	}
	return f.forms[source.KeyPath], nil
}

// touch creates an empty file dir/name and returns its path. Resolve
// reads every file from disk before handing it to the parser; the fake
// parser ignores those contents and serves forms by path.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

type passthroughExpander struct{}

func (passthroughExpander) Expand(forms []ast.SExpr, e *env.Environment, currentFile string, cap int) ([]ast.SExpr, error) {
	return forms, nil
}

func TestResolveRegistersExportedMacrosFromDependency(t *testing.T) {
	dir := t.TempDir()
	dep := touch(t, dir, "dep.hql")
	main := touch(t, dir, "main.hql")

	parser := &fakeParser{forms: map[string][]ast.SExpr{
		dep: {
			ast.ListOf(ast.Sym("defmacro"), ast.Sym("unless"), ast.ListOf()),
			ast.ListOf(ast.Sym("export"), ast.ListOf(ast.Sym("unless"))),
		},
		main: {
			ast.ListOf(ast.Sym("import"), ast.ListOf(ast.Sym("unless")), ast.Sym("from"), ast.Str("./dep.hql")),
		},
	}}

	r := &resolver.Resolver{
		Env:     env.New(),
		Parser:  parser,
		Expand:  passthroughExpander{},
		Options: config.Options{}.WithDefaults(),
	}

	_, err := r.Resolve(main)
	require.NoError(t, err)
	assert.True(t, r.Env.IsMacro(dep, "unless"))
}

func TestResolveDetectsImportCycle(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.hql")
	b := touch(t, dir, "b.hql")

	parser := &fakeParser{forms: map[string][]ast.SExpr{
		a: {ast.ListOf(ast.Sym("import"), ast.Sym("b"), ast.Sym("from"), ast.Str("./b.hql"))},
		b: {ast.ListOf(ast.Sym("import"), ast.Sym("a"), ast.Sym("from"), ast.Str("./a.hql"))},
	}}

	r := &resolver.Resolver{
		Env:     env.New(),
		Parser:  parser,
		Expand:  passthroughExpander{},
		Options: config.Options{}.WithDefaults(),
	}

	_, err := r.Resolve(a)
	require.Error(t, err)
}

func TestResolveFailsOnExportOfUndefinedSymbol(t *testing.T) {
	main := touch(t, t.TempDir(), "main.hql")
	parser := &fakeParser{forms: map[string][]ast.SExpr{
		main: {ast.ListOf(ast.Sym("export"), ast.ListOf(ast.Sym("neverDefined")))},
	}}

	r := &resolver.Resolver{
		Env:     env.New(),
		Parser:  parser,
		Expand:  passthroughExpander{},
		Options: config.Options{}.WithDefaults(),
	}

	_, err := r.Resolve(main)
	require.Error(t, err)
}

// TestResolveSkipsDiamondDependencyWithoutReprocessing covers spec §4.2
// Policy: a file reached via two different import paths (main -> b ->
// shared and main -> c -> shared) is parsed and expanded only once, not
// once per importer.
func TestResolveSkipsDiamondDependencyWithoutReprocessing(t *testing.T) {
	dir := t.TempDir()
	main := touch(t, dir, "main.hql")
	b := touch(t, dir, "b.hql")
	c := touch(t, dir, "c.hql")
	shared := touch(t, dir, "shared.hql")

	parser := &fakeParser{
		parseCnt: map[string]int{},
		forms: map[string][]ast.SExpr{
			shared: {
				ast.ListOf(ast.Sym("defmacro"), ast.Sym("unless"), ast.ListOf()),
				ast.ListOf(ast.Sym("export"), ast.ListOf(ast.Sym("unless"))),
			},
			b: {ast.ListOf(ast.Sym("import"), ast.ListOf(ast.Sym("unless")), ast.Sym("from"), ast.Str("./shared.hql"))},
			c: {ast.ListOf(ast.Sym("import"), ast.ListOf(ast.Sym("unless")), ast.Sym("from"), ast.Str("./shared.hql"))},
			main: {
				ast.ListOf(ast.Sym("import"), ast.ListOf(ast.Sym("unless")), ast.Sym("from"), ast.Str("./b.hql")),
				ast.ListOf(ast.Sym("import"), ast.ListOf(ast.Sym("unless")), ast.Sym("from"), ast.Str("./c.hql")),
			},
		},
	}

	r := &resolver.Resolver{
		Env:     env.New(),
		Parser:  parser,
		Expand:  passthroughExpander{},
		Options: config.Options{}.WithDefaults(),
	}

	_, err := r.Resolve(main)
	require.NoError(t, err)
	assert.Equal(t, 1, parser.parseCnt[shared], "a diamond dependency must be parsed only once")
	assert.True(t, r.Env.IsMacro(shared, "unless"))
}

func TestResolvePathJoinsRelativeToImporterDirectory(t *testing.T) {
	got := resolver.ResolvePath("/proj/src/main.hql", "./lib/util")
	assert.Equal(t, "/proj/src/lib/util.hql", got)
}
