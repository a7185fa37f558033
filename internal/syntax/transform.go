// Package syntax implements the Syntax Transformer (spec §4.1): it
// canonicalizes two kinds of surface sugar, vector import/export literals
// (commas stripped) and dot-call notation (rewritten to a dot-prefix
// head). Named-argument labels pass through unchanged for the Lowerer's
// call-site resolver. Transform does not reject forms outside the
// canonical set; ValidateClosedSet reports those separately.
package syntax

import (
	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/diag"
	"github.com/hql-lang/hqlc/internal/logger"
)

// Transform canonicalizes a top-level sequence of forms. It never fails
// on its own account; malformed canonical shapes are caught later by the
// Lowerer (§7: "shape violation" is a ValidationError produced during
// lowering, not during syntax transformation).
func Transform(forms []ast.SExpr) []ast.SExpr {
	out := make([]ast.SExpr, len(forms))
	for i, f := range forms {
		out[i] = transformOne(f)
	}
	return out
}

func transformOne(s ast.SExpr) ast.SExpr {
	list, ok := s.Data.(*ast.SList)
	if !ok {
		return s
	}

	for i := range list.Items {
		list.Items[i] = transformOne(list.Items[i])
	}

	if rewritten, ok := canonicalizeVectorForm(s.Loc, list); ok {
		return rewritten
	}

	if rewritten, ok := rewriteDotCallHead(s.Loc, list); ok {
		return rewritten
	}

	return s
}

// canonicalizeVectorForm recognizes "(export [s1, s2, ...])" and
// "(import [a, b as c, ...] from \"path\")" and strips the literal comma
// symbols the parser leaves inside the vector, per §4.1's "commas inside
// the vector are discarded". The vector itself is represented as a
// nested SList (the parser's rendering of "[...]" literal syntax); this
// pass only removes comma noise, it does not change list shape, so the
// Lowerer's own vector-import/export predicate (§4.4 fallthrough rule 3)
// still recognizes the result.
func canonicalizeVectorForm(loc logger.Loc, list *ast.SList) (ast.SExpr, bool) {
	if len(list.Items) == 0 {
		return ast.SExpr{}, false
	}
	head, ok := list.Items[0].Data.(*ast.SSymbol)
	if !ok {
		return ast.SExpr{}, false
	}
	if head.Name != "export" && head.Name != "import" && head.Name != "js-export" {
		return ast.SExpr{}, false
	}

	changed := false
	newItems := make([]ast.SExpr, len(list.Items))
	copy(newItems, list.Items)
	for i, item := range newItems {
		if vec, ok := item.Data.(*ast.SList); ok {
			stripped, didStrip := stripCommas(vec)
			if didStrip {
				newItems[i] = ast.SExpr{Data: stripped, Loc: item.Loc}
				changed = true
			}
		}
	}
	if !changed {
		return ast.SExpr{}, false
	}
	return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: loc}, true
}

func stripCommas(list *ast.SList) (*ast.SList, bool) {
	changed := false
	out := make([]ast.SExpr, 0, len(list.Items))
	for _, item := range list.Items {
		if sym, ok := item.Data.(*ast.SSymbol); ok && sym.Name == "," {
			changed = true
			continue
		}
		out = append(out, item)
	}
	if !changed {
		return list, false
	}
	return &ast.SList{Items: out}, true
}

// rewriteDotCallHead rewrites "(obj.method arg...)" into the canonical
// dot-prefix shape "(.method obj arg...)" that the Lowerer's fallthrough
// rule 1 (§4.4) expects: the second element is the receiver, the
// remainder are arguments. Symbols carrying the "js/" escape sigil are
// left untouched (§3 invariant: "js/" escapes to the host namespace and
// is never treated as method-access sugar).
func rewriteDotCallHead(loc logger.Loc, list *ast.SList) (ast.SExpr, bool) {
	if len(list.Items) == 0 {
		return ast.SExpr{}, false
	}
	head, ok := list.Items[0].Data.(*ast.SSymbol)
	if !ok || !head.HasDotAccess() {
		return ast.SExpr{}, false
	}

	dot := indexOfByte(head.Name, '.')
	object := head.Name[:dot]
	method := head.Name[dot:] // includes the leading "."

	newItems := make([]ast.SExpr, 0, len(list.Items)+1)
	newItems = append(newItems, ast.Sym(method))
	newItems = append(newItems, ast.Sym(object))
	newItems = append(newItems, list.Items[1:]...)

	return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: loc}, true
}

func indexOfByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// ValidateClosedSet walks a fully canonicalized tree and reports (via a
// diag.MultiError) any list whose head is a symbol outside the closed
// canonical set named in spec §3. It is an optional diagnostic, not a
// correctness requirement of the Lowerer (which lowers a list with an
// unrecognized head as an ordinary call), and nothing in the compile
// pipeline calls it; it is exposed separately for callers who want an
// early, cheaper check before committing to import resolution and macro
// expansion.
func ValidateClosedSet(forms []ast.SExpr, canonicalHeads map[string]bool) *diag.MultiError {
	agg := &diag.MultiError{Phase: logger.PhaseSyntax}
	for _, f := range forms {
		agg.Attempted++
		if walkValidate(f, canonicalHeads, agg) {
			agg.Succeeded++
		}
	}
	if len(agg.Errors) == 0 {
		return nil
	}
	return agg
}

func walkValidate(s ast.SExpr, canonicalHeads map[string]bool, agg *diag.MultiError) bool {
	list, isList := s.Data.(*ast.SList)
	if !isList {
		return true
	}

	succeeded := true
	if head, ok := ast.Head(s); ok {
		if !canonicalHeads[head] && !isStructurallyOpen(head) {
			// Many valid heads are user/macro-defined function names, which
			// this phase cannot distinguish from typos, so every such head is
			// recorded as a ValidationError; a caller whose canonicalHeads set
			// omits its own function names will see their calls reported.
			agg.Add(diag.New(diag.KindValidation, logger.PhaseSyntax,
				"head symbol is outside the canonical form set").WithForm(s).
				WithShapes("canonical form", head))
			succeeded = false
		}
	}
	for _, item := range list.Items {
		if !walkValidate(item, canonicalHeads, agg) {
			succeeded = false
		}
	}
	return succeeded
}

// isStructurallyOpen reports heads that are never macro/function names:
// dot-prefixed method calls and the js-* interop family, which the
// closed-set check above must not flag.
func isStructurallyOpen(head string) bool {
	if len(head) > 0 && head[0] == '.' {
		return true
	}
	if len(head) >= 3 && head[:3] == "js-" {
		return true
	}
	return false
}
