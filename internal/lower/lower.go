// Package lower implements the Lowerer (spec §4.4): a structural
// rewriter from macro-expanded canonical SExprs to the typed IR in
// internal/ir. It houses the fn/fx call-site resolver, the loop/recur
// handler, class and enum lowering, the per-operator dispatch table, and
// the fx purity verifier (§4.5).
//
// The dispatch-on-head-symbol shape, and the pattern of a single Context
// value threaded through every lowering call rather than package-level
// globals, follows the teacher's internal/js_parser visitor functions
// (which dispatch on js_ast.E's concrete type) and the explicit-context
// redesign called for in spec §9 ("global mutable registries ... must be
// re-architected as explicit compilation context values").
package lower

import (
	"fmt"
	"sync/atomic"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/diag"
	"github.com/hql-lang/hqlc/internal/ir"
	"github.com/hql-lang/hqlc/internal/logger"
)

// Context carries every piece of state the Lowerer needs for one file:
// the fn/fx registries (keyed by function name; a call site resolves only
// against declarations lowered before it), the loop-context stack for
// recur targeting, and
// the purity verifier's registry of functions already proven pure.
//
// Context is not safe for concurrent use; spec §5 scopes lowering itself
// to run after macro expansion completes for one file, strictly
// sequentially.
type Context struct {
	FnRegistry map[string]*ir.FnFunctionDeclaration
	FxRegistry map[string]*ir.FxFunctionDeclaration

	// KnownMacros is populated by the caller (pkg/api) from the
	// Environment's moduleMacros(file) before lowering begins, so that
	// export lowering (§4.4 fallthrough rule 3) can elide macro names
	// from the emitted ExportNamedDeclaration.
	KnownMacros map[string]bool

	// EnumNames records every enum declared so far in this file, so a
	// later "fx" parameter type annotation can be validated against §4.4.2's
	// closed type set extended with registered enum names.
	EnumNames map[string]bool

	pureFns     map[string]bool
	loopStack   []loopFrame
	loopCounter uint64
}

// loopFrame records the generated function name and parameter order of
// an enclosing "loop" form, so a nested "recur" in tail position knows
// what to call and how to order its arguments (§4.4.3).
type loopFrame struct {
	name   string
	params []string
}

// NewContext returns an empty lowering context.
func NewContext() *Context {
	return &Context{
		FnRegistry:  make(map[string]*ir.FnFunctionDeclaration),
		FxRegistry:  make(map[string]*ir.FxFunctionDeclaration),
		KnownMacros: make(map[string]bool),
		EnumNames:   make(map[string]bool),
		pureFns:     make(map[string]bool),
	}
}

// LowerProgram lowers a file's fully macro-expanded top-level forms,
// in source order (§5 "lowering emits in file order"), aggregating
// per-form failures per §7's partial-success policy.
func (c *Context) LowerProgram(forms []ast.SExpr) (*ir.Program, *diag.MultiError) {
	agg := &diag.MultiError{Phase: logger.PhaseLower}
	prog := &ir.Program{}

	for _, f := range forms {
		agg.Attempted++
		stmt, skip, err := c.lowerTopLevel(f)
		if err != nil {
			agg.Add(asDiagError(err, f))
			continue
		}
		agg.Succeeded++
		if skip {
			continue
		}
		prog.Body = append(prog.Body, stmt)
	}

	if len(agg.Errors) == 0 {
		return prog, nil
	}
	return prog, agg
}

func asDiagError(err error, form ast.SExpr) *diag.Error {
	if de := diag.AsDiagError(err); de != nil {
		return de
	}
	return diag.New(diag.KindTransform, logger.PhaseLower, err.Error()).WithForm(form)
}

func (c *Context) lowerTopLevel(f ast.SExpr) (stmt ir.Stmt, skip bool, err error) {
	head, hasHead := ast.Head(f)
	if !hasHead {
		s, err := c.lowerExprStatement(f)
		return s, false, err
	}

	switch head {
	case "defmacro", "macro":
		return ir.Stmt{}, true, nil
	case "fn":
		s, err := c.lowerFnDecl(f)
		return s, false, err
	case "fx":
		s, err := c.lowerFxDecl(f)
		return s, false, err
	case "class":
		s, err := c.lowerClassDecl(f)
		return s, false, err
	case "enum":
		s, err := c.lowerEnumDecl(f)
		return s, false, err
	case "import":
		s, err := c.lowerImport(f)
		return s, false, err
	case "export":
		s, err := c.lowerExport(f)
		return s, false, err
	case "js-import":
		s, err := c.lowerJsImportDecl(f)
		return s, false, err
	case "js-export":
		s, err := c.lowerJsExport(f)
		return s, false, err
	case "let":
		s, err := c.lowerVarDecl(f, ir.DeclConst)
		return s, false, err
	case "var":
		s, err := c.lowerVarDecl(f, ir.DeclLet)
		return s, false, err
	default:
		s, err := c.lowerExprStatement(f)
		return s, false, err
	}
}

func (c *Context) lowerExprStatement(f ast.SExpr) (ir.Stmt, error) {
	e, err := c.lowerExprForm(f)
	if err != nil {
		return ir.Stmt{}, err
	}
	return ir.Stmt{Data: &ir.ExpressionStatement{Expression: e}, Loc: f.Loc}, nil
}

func (c *Context) nextLoopName() string {
	n := atomic.AddUint64(&c.loopCounter, 1)
	return fmt.Sprintf("loop_%d", n)
}

// identName normalizes a source symbol into its lowered identifier
// name, applying the "-" to "_" rewrite that §3 says happens "only
// during lowering".
func identName(name string) string {
	return ast.NormalizeDash(name)
}

func symbolName(s ast.SExpr) (string, bool) {
	sym, ok := s.Data.(*ast.SSymbol)
	if !ok {
		return "", false
	}
	return sym.Name, true
}

func shapeError(form ast.SExpr, expected, received string) error {
	return diag.New(diag.KindValidation, logger.PhaseLower, "shape violation").
		WithForm(form).WithShapes(expected, received)
}

// validationError reports a fatal ValidationError (§7) that isn't a simple
// shape mismatch — duplicate rest parameters, unknown named arguments,
// mixed positional/named arguments, unsupported fx parameter types, and
// the like.
func validationError(form ast.SExpr, message string) error {
	return diag.New(diag.KindValidation, logger.PhaseLower, message).WithForm(form)
}
