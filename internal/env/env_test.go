package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/env"
)

func TestExportMacroRequiresDefine(t *testing.T) {
	e := env.New()

	ok := e.ExportMacro("/a.hql", "when-debug")
	assert.False(t, ok, "exporting an undefined macro should no-op")
	assert.Empty(t, e.ExportedMacros("/a.hql"))

	e.DefineMacro("/a.hql", "when-debug")
	ok = e.ExportMacro("/a.hql", "when-debug")
	assert.True(t, ok)

	exported := e.ExportedMacros("/a.hql")
	module := e.ModuleMacros("/a.hql")
	for name := range exported {
		assert.Contains(t, module, name, "exportedMacros must be a subset of moduleMacros")
	}
}

func TestEnterFileDetectsCycle(t *testing.T) {
	e := env.New()
	_, err := e.EnterFile("/a.hql")
	require.NoError(t, err)
	defer e.ExitFile()

	_, err = e.EnterFile("/b.hql")
	require.NoError(t, err)
	defer e.ExitFile()

	_, err = e.EnterFile("/a.hql")
	assert.Error(t, err, "re-entering a file already on the stack is a fatal cycle")
}

func TestExitFileIsLIFOAndSafeOnError(t *testing.T) {
	e := env.New()
	_, err := e.EnterFile("/a.hql")
	require.NoError(t, err)
	_, err = e.EnterFile("/a.hql")
	require.Error(t, err)

	// ExitFile must be safe to call even though EnterFile just failed, and
	// must restore the stack to empty after matching the earlier push.
	e.ExitFile()
	assert.Equal(t, "", e.CurrentFile())
}

// TestEnterFileSkipsDiamondDependencyWithoutError covers the diamond-import
// case spec §4.2 calls out separately from a cycle: a file already fully
// processed earlier, but not currently on the active stack, is reported as
// already done with no error, rather than being pushed and reprocessed.
func TestEnterFileSkipsDiamondDependencyWithoutError(t *testing.T) {
	e := env.New()
	_, err := e.EnterFile("/a.hql")
	require.NoError(t, err)
	e.ExitFile()

	alreadyDone, err := e.EnterFile("/a.hql")
	require.NoError(t, err)
	assert.True(t, alreadyDone, "a file processed and exited earlier must be reported as already done")
	assert.Equal(t, "", e.CurrentFile(), "a diamond dependency must not be pushed onto the stack")
}

func TestCacheExpansionIsWriteOnce(t *testing.T) {
	e := env.New()
	key := env.CacheKey{File: "/a.hql", Form: "(when-debug 1)"}

	e.CacheExpansion(key, ast.Int(1))
	e.CacheExpansion(key, ast.Int(2))

	got, ok := e.LookupExpansion(key)
	require.True(t, ok)
	assert.True(t, ast.Equal(got, ast.Int(1)), "second write to the same key must be ignored")
}

func TestMergeFromIsDeterministicByPath(t *testing.T) {
	base := env.New()
	worker := base.Clone()
	worker.DefineMacro("/c.hql", "unless")
	worker.ExportMacro("/c.hql", "unless")

	base.MergeFrom(worker)

	assert.True(t, base.IsMacro("/c.hql", "unless"))
}
