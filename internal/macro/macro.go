// Package macro implements the Macro Expander (spec §4.3): hygienic,
// outside-in rewriting of macro invocations to a fixed point, with
// quote/quasiquote/unquote/unquote-splicing support.
//
// The outside-in fixed-point loop and the file-scoped definition table
// follow the shape of the teacher's internal/js_parser visitor passes
// (a dispatch on head symbol, re-entering the visitor on freshly produced
// nodes); the substitution and alpha-renaming algorithm itself has no
// analog in the teacher (esbuild has no macro system) and is written
// fresh from first principles of hygienic Lisp macro expansion.
package macro

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/diag"
	"github.com/hql-lang/hqlc/internal/env"
	"github.com/hql-lang/hqlc/internal/logger"
	"github.com/hql-lang/hqlc/internal/resolver"
)

// Definition is one defmacro/macro body, keyed by the file that defines
// it. The body is stored exactly as written; it is re-expanded fresh
// (with new hygiene names) at every call site.
type Definition struct {
	Name   string
	Params []string
	Rest   string // "" if the macro takes no rest parameter
	Body   []ast.SExpr
}

// Table stores every macro definition encountered so far, keyed by
// defining file then name. It is separate from env.Environment because
// the Environment (per spec §3) only tracks macro *names*, not bodies;
// Table is the macro package's own extension of that registry.
type Table struct {
	mu   sync.Mutex
	defs map[string]map[string]*Definition
}

func NewTable() *Table {
	return &Table{defs: make(map[string]map[string]*Definition)}
}

func (t *Table) define(file string, def *Definition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.defs[file]
	if !ok {
		m = make(map[string]*Definition)
		t.defs[file] = m
	}
	m[def.Name] = def
}

func (t *Table) lookup(file, name string) (*Definition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.defs[file]
	if !ok {
		return nil, false
	}
	d, ok := m[name]
	return d, ok
}

// Expander rewrites macro invocations to a fixed point. One Expander may
// be shared across an entire compilation (including concurrently
// resolved sibling files): its Table is mutex-guarded and its gensym
// counter is atomic, so the only cross-goroutine state is append-only.
type Expander struct {
	Table         *Table
	gensymCounter uint64
}

func NewExpander() *Expander {
	return &Expander{Table: NewTable()}
}

var binderForms = map[string]bool{"let": true, "var": true, "loop": true}

// Expand implements the resolver.Expander interface. It registers this
// file's own macro definitions, computes which symbol names resolve to a
// macro (locally defined or imported from an already-processed
// dependency), and rewrites every top-level form to a fixed point.
func (ex *Expander) Expand(forms []ast.SExpr, e *env.Environment, currentFile string, cap int) ([]ast.SExpr, error) {
	ex.registerLocalDefinitions(forms, currentFile)
	visible := ex.visibleMacros(e, currentFile, forms)

	out := make([]ast.SExpr, len(forms))
	for i, f := range forms {
		expanded, err := ex.expandForm(f, e, currentFile, visible, cap, 0)
		if err != nil {
			return nil, err
		}
		out[i] = expanded
	}
	return out, nil
}

func (ex *Expander) registerLocalDefinitions(forms []ast.SExpr, currentFile string) {
	for _, f := range forms {
		head, ok := ast.Head(f)
		if !ok || (head != "defmacro" && head != "macro") {
			continue
		}
		list := f.Data.(*ast.SList)
		if len(list.Items) < 3 {
			continue
		}
		nameSym, ok := list.Items[1].Data.(*ast.SSymbol)
		if !ok {
			continue
		}
		paramList, ok := list.Items[2].Data.(*ast.SList)
		if !ok {
			continue
		}
		params, rest := parseParamNames(paramList)
		ex.Table.define(currentFile, &Definition{
			Name:   nameSym.Name,
			Params: params,
			Rest:   rest,
			Body:   list.Items[3:],
		})
	}
}

// parseParamNames reads a macro parameter list: plain symbols, with an
// optional trailing "&" marker introducing the single rest parameter.
func parseParamNames(list *ast.SList) (params []string, rest string) {
	for i := 0; i < len(list.Items); i++ {
		sym, ok := list.Items[i].Data.(*ast.SSymbol)
		if !ok {
			continue
		}
		if sym.Name == "&" {
			if i+1 < len(list.Items) {
				if restSym, ok := list.Items[i+1].Data.(*ast.SSymbol); ok {
					rest = restSym.Name
				}
			}
			break
		}
		params = append(params, sym.Name)
	}
	return params, rest
}

// visibleMacros maps every macro name callable from currentFile to the
// absolute path of the file that defines it: the file's own
// defmacro/macro names, plus any name imported from a dependency whose
// exported-macro set (already populated by the resolver, since
// dependencies are fully resolved before this file's Expand call) names
// it.
func (ex *Expander) visibleMacros(e *env.Environment, currentFile string, forms []ast.SExpr) map[string]string {
	visible := make(map[string]string)
	ex.Table.mu.Lock()
	for name := range ex.Table.defs[currentFile] {
		visible[name] = currentFile
	}
	ex.Table.mu.Unlock()
	for name := range e.ModuleMacros(currentFile) {
		visible[name] = currentFile
	}
	for _, f := range forms {
		walkImports(f, func(path string, names []string) {
			depPath := resolver.ResolvePath(currentFile, path)
			exported := e.ExportedMacros(depPath)
			for _, n := range names {
				if exported[n] {
					visible[n] = depPath
				}
			}
		})
	}
	return visible
}

// walkImports finds "(import [a, b as c, ...] from \"path\")" forms and
// invokes fn with the resolved path string and the imported local names.
func walkImports(s ast.SExpr, fn func(path string, names []string)) {
	list, ok := s.Data.(*ast.SList)
	if !ok {
		return
	}
	if head, ok := ast.Head(s); ok && head == "import" && len(list.Items) >= 4 {
		if vec, ok := list.Items[1].Data.(*ast.SList); ok {
			if lit, ok := list.Items[3].Data.(*ast.SLiteral); ok && lit.Kind == ast.LiteralString {
				var names []string
				for _, item := range vec.Items {
					if sym, ok := item.Data.(*ast.SSymbol); ok {
						names = append(names, sym.Name)
					}
				}
				fn(lit.String, names)
			}
		}
	}
	for _, item := range list.Items {
		walkImports(item, fn)
	}
}

// expandForm is the outside-in fixed-point rewriter: a macro invocation
// is substituted, then the *entire resulting form* is re-entered at
// depth+1 before its sub-forms are ever visited, per §4.3 "a newly
// exposed macro call is re-expanded before its arguments".
func (ex *Expander) expandForm(s ast.SExpr, e *env.Environment, file string, visible map[string]string, cap, depth int) (ast.SExpr, error) {
	if depth > cap {
		return ast.SExpr{}, diag.New(diag.KindMacro, logger.PhaseMacro,
			fmt.Sprintf("macro expansion exceeded depth cap of %d", cap)).WithForm(s)
	}

	list, ok := s.Data.(*ast.SList)
	if !ok || len(list.Items) == 0 {
		return s, nil
	}

	head, hasHead := ast.Head(s)

	switch head {
	case "quote":
		return s, nil
	case "defmacro", "macro":
		return s, nil
	case "quasiquote":
		if len(list.Items) != 2 {
			return s, nil
		}
		resolved, err := ex.expandQuasiquoteLiteral(list.Items[1], e, file, visible, cap, depth)
		if err != nil {
			return ast.SExpr{}, err
		}
		return ast.SExpr{Data: &ast.SList{Items: []ast.SExpr{list.Items[0], resolved}}, Loc: s.Loc}, nil
	}

	if hasHead {
		if defFile, isMacro := visible[head]; isMacro {
			def, ok := ex.Table.lookup(defFile, head)
			if !ok {
				return ast.SExpr{}, diag.New(diag.KindMacro, logger.PhaseMacro,
					fmt.Sprintf("macro %q has no registered definition", head)).WithForm(s)
			}

			key := env.CacheKey{File: file, Form: fingerprint(s)}
			if cached, ok := e.LookupExpansion(key); ok {
				return cached, nil
			}

			expanded, err := ex.invoke(def, list.Items[1:], s)
			if err != nil {
				return ast.SExpr{}, err
			}
			result, err := ex.expandForm(expanded, e, file, visible, cap, depth+1)
			if err != nil {
				return ast.SExpr{}, err
			}
			e.CacheExpansion(key, result)
			return result, nil
		}
	}

	newItems := make([]ast.SExpr, len(list.Items))
	for i, item := range list.Items {
		expanded, err := ex.expandForm(item, e, file, visible, cap, depth)
		if err != nil {
			return ast.SExpr{}, err
		}
		newItems[i] = expanded
	}
	return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: s.Loc}, nil
}

// expandQuasiquoteLiteral handles a top-level quasiquote outside of any
// macro invocation (i.e. one that survives to become a runtime data
// literal for the Lowerer): everything stays literal except the contents
// of nested unquote/unquote-splicing forms, which are ordinary code and
// must still be macro-expanded normally.
func (ex *Expander) expandQuasiquoteLiteral(s ast.SExpr, e *env.Environment, file string, visible map[string]string, cap, depth int) (ast.SExpr, error) {
	list, ok := s.Data.(*ast.SList)
	if !ok {
		return s, nil
	}
	if head, ok := ast.Head(s); ok && (head == "unquote" || head == "unquote-splicing") && len(list.Items) == 2 {
		expanded, err := ex.expandForm(list.Items[1], e, file, visible, cap, depth)
		if err != nil {
			return ast.SExpr{}, err
		}
		return ast.SExpr{Data: &ast.SList{Items: []ast.SExpr{list.Items[0], expanded}}, Loc: s.Loc}, nil
	}
	newItems := make([]ast.SExpr, len(list.Items))
	for i, item := range list.Items {
		rewritten, err := ex.expandQuasiquoteLiteral(item, e, file, visible, cap, depth)
		if err != nil {
			return ast.SExpr{}, err
		}
		newItems[i] = rewritten
	}
	return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: s.Loc}, nil
}

// invoke binds args to def's parameters, alpha-renames the template's own
// locally-introduced bindings to fresh names (hygiene), substitutes
// parameter references with the bound argument forms, and resolves any
// quasiquote/unquote/unquote-splicing in the result.
func (ex *Expander) invoke(def *Definition, args []ast.SExpr, call ast.SExpr) (ast.SExpr, error) {
	bindings, err := ex.bindArgs(def, args, call)
	if err != nil {
		return ast.SExpr{}, err
	}

	paramNames := make(map[string]bool, len(def.Params)+1)
	for _, p := range def.Params {
		paramNames[p] = true
	}
	if def.Rest != "" {
		paramNames[def.Rest] = true
	}

	renames := make(map[string]string)
	renamedBody := make([]ast.SExpr, len(def.Body))
	for i, f := range def.Body {
		renamedBody[i] = renameWalk(f, paramNames, renames, ex.gensym)
	}

	substituted := make([]ast.SExpr, len(renamedBody))
	for i, f := range renamedBody {
		substituted[i] = substituteTemplate(f, bindings)
	}

	if len(substituted) == 1 {
		return substituted[0], nil
	}
	doForm := make([]ast.SExpr, 0, len(substituted)+1)
	doForm = append(doForm, ast.Sym("do"))
	doForm = append(doForm, substituted...)
	return ast.SExpr{Data: &ast.SList{Items: doForm}, Loc: call.Loc}, nil
}

func (ex *Expander) bindArgs(def *Definition, args []ast.SExpr, call ast.SExpr) (map[string]ast.SExpr, error) {
	n := len(def.Params)
	if def.Rest == "" {
		if len(args) != n {
			return nil, diag.New(diag.KindMacro, logger.PhaseMacro,
				fmt.Sprintf("macro %q expects %d argument(s), got %d", def.Name, n, len(args))).WithForm(call)
		}
	} else if len(args) < n {
		return nil, diag.New(diag.KindMacro, logger.PhaseMacro,
			fmt.Sprintf("macro %q expects at least %d argument(s), got %d", def.Name, n, len(args))).WithForm(call)
	}

	bindings := make(map[string]ast.SExpr, n+1)
	for i, p := range def.Params {
		bindings[p] = args[i]
	}
	if def.Rest != "" {
		bindings[def.Rest] = ast.SExpr{Data: &ast.SList{Items: append([]ast.SExpr{}, args[n:]...)}}
	}
	return bindings, nil
}

func (ex *Expander) gensym(base string) string {
	n := atomic.AddUint64(&ex.gensymCounter, 1)
	return fmt.Sprintf("%s__h%d", base, n)
}

// renameWalk alpha-renames names freshly bound by let/var/loop within a
// macro template, leaving macro parameters and free (non-bound) symbols
// untouched. fn/fx/class/enum bodies nested inside a macro template are
// walked generically without renaming their own parameter lists: nested
// declaration forms inside macro output are rare enough in practice that
// this is a deliberately narrow slice of full hygiene.
func renameWalk(form ast.SExpr, paramNames map[string]bool, renames map[string]string, gensym func(string) string) ast.SExpr {
	switch data := form.Data.(type) {
	case *ast.SSymbol:
		if renamed, ok := renames[data.Name]; ok {
			return ast.SExpr{Data: &ast.SSymbol{Name: renamed}, Loc: form.Loc}
		}
		return form
	case *ast.SLiteral:
		return form
	case *ast.SList:
		head, _ := ast.Head(form)
		if head == "quote" {
			return form
		}
		if binderForms[head] && len(data.Items) >= 2 {
			return renameBinderForm(form, data, paramNames, renames, gensym)
		}
		if head == "lambda" && len(data.Items) >= 2 {
			return renameLambda(form, data, paramNames, renames, gensym)
		}
		newItems := make([]ast.SExpr, len(data.Items))
		for i, item := range data.Items {
			newItems[i] = renameWalk(item, paramNames, renames, gensym)
		}
		return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: form.Loc}
	default:
		return form
	}
}

func renameBinderForm(form ast.SExpr, list *ast.SList, paramNames map[string]bool, renames map[string]string, gensym func(string) string) ast.SExpr {
	if sym, ok := list.Items[1].Data.(*ast.SSymbol); ok {
		// Single-binding shape: (let name v) / (var name v)
		newName := freshen(sym.Name, paramNames, renames, gensym)
		rest := make([]ast.SExpr, len(list.Items)-3)
		for i := 3; i < len(list.Items); i++ {
			rest[i-3] = renameWalk(list.Items[i], paramNames, renames, gensym)
		}
		newItems := []ast.SExpr{list.Items[0], ast.Sym(newName), renameWalk(list.Items[2], paramNames, renames, gensym)}
		newItems = append(newItems, rest...)
		return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: form.Loc}
	}

	// Pair-list shape: (let/var/loop (n1 v1 n2 v2 ...) body...)
	bindingList, ok := list.Items[1].Data.(*ast.SList)
	if !ok {
		return form
	}
	newPairs := make([]ast.SExpr, len(bindingList.Items))
	for i := 0; i+1 < len(bindingList.Items); i += 2 {
		nameSym, ok := bindingList.Items[i].Data.(*ast.SSymbol)
		if !ok {
			newPairs[i] = bindingList.Items[i]
			newPairs[i+1] = renameWalk(bindingList.Items[i+1], paramNames, renames, gensym)
			continue
		}
		value := renameWalk(bindingList.Items[i+1], paramNames, renames, gensym)
		newName := freshen(nameSym.Name, paramNames, renames, gensym)
		newPairs[i] = ast.Sym(newName)
		newPairs[i+1] = value
	}
	body := make([]ast.SExpr, len(list.Items)-2)
	for i := 2; i < len(list.Items); i++ {
		body[i-2] = renameWalk(list.Items[i], paramNames, renames, gensym)
	}
	newItems := append([]ast.SExpr{list.Items[0], {Data: &ast.SList{Items: newPairs}, Loc: list.Items[1].Loc}}, body...)
	return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: form.Loc}
}

func renameLambda(form ast.SExpr, list *ast.SList, paramNames map[string]bool, renames map[string]string, gensym func(string) string) ast.SExpr {
	params, ok := list.Items[1].Data.(*ast.SList)
	if !ok {
		return form
	}
	newParamItems := make([]ast.SExpr, len(params.Items))
	for i, p := range params.Items {
		if sym, ok := p.Data.(*ast.SSymbol); ok {
			if sym.Name == "&" {
				newParamItems[i] = p
				continue
			}
			newParamItems[i] = ast.Sym(freshen(sym.Name, paramNames, renames, gensym))
			continue
		}
		newParamItems[i] = renameWalk(p, paramNames, renames, gensym)
	}
	body := make([]ast.SExpr, len(list.Items)-2)
	for i := 2; i < len(list.Items); i++ {
		body[i-2] = renameWalk(list.Items[i], paramNames, renames, gensym)
	}
	newItems := append([]ast.SExpr{list.Items[0], {Data: &ast.SList{Items: newParamItems}, Loc: list.Items[1].Loc}}, body...)
	return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: form.Loc}
}

// freshen assigns (and memoizes in renames) a gensym for name, unless
// name is a macro parameter, in which case it is left alone so
// substitution can still find it by its original name.
func freshen(name string, paramNames map[string]bool, renames map[string]string, gensym func(string) string) string {
	if paramNames[name] {
		return name
	}
	if existing, ok := renames[name]; ok {
		return existing
	}
	fresh := gensym(name)
	renames[name] = fresh
	return fresh
}

// substituteTemplate replaces parameter references with their bound
// argument forms and resolves quasiquote/unquote/unquote-splicing,
// spec §4.3's "compose in the standard way; splicing expands into the
// enclosing list".
func substituteTemplate(form ast.SExpr, bindings map[string]ast.SExpr) ast.SExpr {
	switch data := form.Data.(type) {
	case *ast.SSymbol:
		if bound, ok := bindings[data.Name]; ok {
			return bound
		}
		return form
	case *ast.SLiteral:
		return form
	case *ast.SList:
		head, _ := ast.Head(form)
		switch head {
		case "quote":
			return form
		case "quasiquote":
			if len(data.Items) == 2 {
				return substituteQuasi(data.Items[1], bindings)
			}
		}
		newItems := make([]ast.SExpr, 0, len(data.Items))
		for _, item := range data.Items {
			if spliced, ok := spliceItem(item, bindings); ok {
				newItems = append(newItems, spliced...)
				continue
			}
			newItems = append(newItems, substituteTemplate(item, bindings))
		}
		return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: form.Loc}
	default:
		return form
	}
	return form
}

// substituteQuasi resolves one quasiquoted template: unquote substitutes
// a single form, unquote-splicing is only meaningful as a list element
// (handled by spliceItem in the enclosing call), everything else stays
// literal except for recursive substitution of nested unquotes.
func substituteQuasi(form ast.SExpr, bindings map[string]ast.SExpr) ast.SExpr {
	list, ok := form.Data.(*ast.SList)
	if !ok {
		if sym, ok := form.Data.(*ast.SSymbol); ok {
			if bound, ok := bindings[sym.Name]; ok {
				return bound
			}
		}
		return form
	}
	head, _ := ast.Head(form)
	if head == "unquote" && len(list.Items) == 2 {
		return substituteTemplate(list.Items[1], bindings)
	}
	newItems := make([]ast.SExpr, 0, len(list.Items))
	for _, item := range list.Items {
		if spliced, ok := spliceQuasiItem(item, bindings); ok {
			newItems = append(newItems, spliced...)
			continue
		}
		newItems = append(newItems, substituteQuasi(item, bindings))
	}
	return ast.SExpr{Data: &ast.SList{Items: newItems}, Loc: form.Loc}
}

func spliceItem(item ast.SExpr, bindings map[string]ast.SExpr) ([]ast.SExpr, bool) {
	list, ok := item.Data.(*ast.SList)
	if !ok {
		return nil, false
	}
	head, _ := ast.Head(item)
	if head != "unquote-splicing" || len(list.Items) != 2 {
		return nil, false
	}
	resolved := substituteTemplate(list.Items[1], bindings)
	spliceable, ok := resolved.Data.(*ast.SList)
	if !ok {
		return nil, false
	}
	return spliceable.Items, true
}

func spliceQuasiItem(item ast.SExpr, bindings map[string]ast.SExpr) ([]ast.SExpr, bool) {
	return spliceItem(item, bindings)
}

// fingerprint produces a stable textual key for memoization, per §4.3
// "memoized on (form, file)".
func fingerprint(s ast.SExpr) string {
	var b strings.Builder
	writeFingerprint(&b, s)
	return b.String()
}

func writeFingerprint(b *strings.Builder, s ast.SExpr) {
	switch data := s.Data.(type) {
	case *ast.SLiteral:
		fmt.Fprintf(b, "L(%d,%v,%d,%g,%q)", data.Kind, data.Bool, data.Int, data.Float, data.String)
	case *ast.SSymbol:
		fmt.Fprintf(b, "S(%s)", data.Name)
	case *ast.SList:
		b.WriteByte('(')
		for i, item := range data.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeFingerprint(b, item)
		}
		b.WriteByte(')')
	}
}
