package printer

import (
	"testing"

	"github.com/hql-lang/hqlc/internal/logger"
	"github.com/hql-lang/hqlc/internal/lower"
	"github.com/hql-lang/hqlc/internal/syntax"
	"github.com/hql-lang/hqlc/internal/test"
	"github.com/hql-lang/hqlc/pkg/parser"
	"github.com/stretchr/testify/require"
)

// compile runs the reader, syntax transformer, and lowerer end to end
// and prints the result, the same pipeline pkg/api wires for real files
// (minus macro expansion and import resolution, neither of which these
// single-file fixtures exercise).
func compile(t *testing.T, contents string) string {
	t.Helper()
	forms, err := parser.Parse(&logger.Source{PrettyPath: "in.hql", Contents: contents})
	require.NoError(t, err)
	forms = syntax.Transform(forms)
	prog, multi := lower.NewContext().LowerProgram(forms)
	require.Nil(t, multi, "%v", multi)
	return Print(prog)
}

func TestPrintFnDeclarationAndCall(t *testing.T) {
	out := compile(t, `(fn add (x y) (+ x y)) (add 1 2)`)
	require.Contains(t, out, "function add(x, y) {")
	require.Contains(t, out, "x + y")
	require.Contains(t, out, "add(1, 2);")
}

// TestPrintIfStatementExactOutput pins the full rendered text of a small
// program rather than spot-checking substrings, so a regression in
// brace/indent placement shows up as a line-by-line diff instead of a
// silent pass.
func TestPrintIfStatementExactOutput(t *testing.T) {
	out := compile(t, `(fn sign (x) (if (> x 0) (return 1) (return -1)))`)
	want := "function sign(x) {\n" +
		"  if (x > 0) {\n" +
		"    return 1;\n" +
		"  } else {\n" +
		"    return -1;\n" +
		"  }\n" +
		"}\n"
	test.AssertEqualWithDiff(t, out, want)
}

func TestPrintFxDeclarationEmitsDeepCopyPrologue(t *testing.T) {
	out := compile(t, `(fx touch ((p Any)) (-> Any) p)`)
	require.Contains(t, out, "function touch(...args) {")
	require.Contains(t, out, `var $opts = (args.length === 1`)
	require.Contains(t, out, "JSON.parse(JSON.stringify(p))")
}

func TestPrintFxPrimitiveParamSkipsDeepCopy(t *testing.T) {
	out := compile(t, `(fx square ((x Int)) (-> Int) (* x x))`)
	require.NotContains(t, out, "JSON.parse")
}

func TestPrintLoopRecurAsSelfInvokingFunction(t *testing.T) {
	out := compile(t, `(loop (i 0 s 0) (if (< i 10) (recur (+ i 1) (+ s i)) s))`)
	require.Contains(t, out, "function loop_1(i, s)")
	require.Contains(t, out, "return loop_1(")
}

func TestPrintIfStatementWithElse(t *testing.T) {
	out := compile(t, `(fn choose (x) (if (> x 0) (return 1) (return -1)))`)
	require.Contains(t, out, "if (x > 0)")
	require.Contains(t, out, "} else {")
}

func TestPrintClassWithConstructorAndMethod(t *testing.T) {
	out := compile(t, `(class Point (field x) (field y) (constructor (x y) (set! self.x x) (set! self.y y)) (method sum () (+ self.x self.y)))`)
	require.Contains(t, out, "class Point {")
	require.Contains(t, out, "constructor(x, y) {")
	require.Contains(t, out, "this.x = x;")
	require.Contains(t, out, "return this;")
	require.Contains(t, out, "sum() {")
}

func TestPrintEnumBareAndRawValuedCases(t *testing.T) {
	out := compile(t, `(enum Status Int (case ok 200) (case err 500))`)
	require.Contains(t, out, "const Status = Object.freeze({")
	require.Contains(t, out, "ok: 200")
	require.Contains(t, out, "err: 500")
}

func TestPrintHashMapAndGetByStringKey(t *testing.T) {
	out := compile(t, `(let m (hash-map "a" 1)) (get m "a")`)
	require.Contains(t, out, "new Map([[")
	require.Contains(t, out, `.get("a")`)
}

func TestPrintGetAndCallInjectsRuntimeHelperOnce(t *testing.T) {
	out := compile(t, `(method-call obj foo 1 2)`)
	require.Contains(t, out, "function get(obj, key)")
	require.Contains(t, out, `get($r, "foo")`)
}

func TestPrintWithoutGetAndCallOmitsRuntimeHelper(t *testing.T) {
	out := compile(t, `(fn add (x y) (+ x y))`)
	require.NotContains(t, out, "function get(obj, key)")
}

func TestPrintExportElidesMacroButPrintsValue(t *testing.T) {
	ctx := lower.NewContext()
	ctx.KnownMacros["mymacro"] = true
	forms, err := parser.Parse(&logger.Source{PrettyPath: "in.hql", Contents: `(let x 1) (export [x, mymacro])`})
	require.NoError(t, err)
	forms = syntax.Transform(forms)
	prog, multi := ctx.LowerProgram(forms)
	require.Nil(t, multi, "%v", multi)
	out := Print(prog)
	require.Contains(t, out, "export { x }")
	require.NotContains(t, out, "mymacro")
}
