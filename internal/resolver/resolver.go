// Package resolver implements the Import Resolver (spec §4.2): given the
// canonical forms of a file, it discovers every import/js-import form
// reachable transitively, recursively parses and macro-expands each .hql
// dependency before returning to its caller, and deposits each
// dependency's exported-macro set in the shared Environment.
//
// The package name and the "one Resolver per compilation, Environment
// threaded through" shape are grounded in the teacher's internal/resolver
// package; the resolution algorithm itself is new, since HQL has no
// analog of node_modules/package.json/tsconfig.json resolution — an HQL
// import path is either a "./relative" or "/absolute" filesystem path to
// another .hql file, or an opaque string naming a host (JS) module.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hql-lang/hqlc/internal/ast"
	"github.com/hql-lang/hqlc/internal/config"
	"github.com/hql-lang/hqlc/internal/diag"
	"github.com/hql-lang/hqlc/internal/env"
	"github.com/hql-lang/hqlc/internal/logger"
	"github.com/hql-lang/hqlc/internal/syntax"
)

// Parser is the subset of the external Parser interface (spec §6) the
// resolver needs. Accepting an interface here — rather than importing
// pkg/parser directly — keeps internal/resolver free to be unit tested
// against a fake, and matches the spec's framing of the parser as an
// out-of-scope external collaborator.
type Parser interface {
	Parse(source logger.Source) ([]ast.SExpr, error)
}

// Expander is the subset of the Macro Expander (internal/macro) the
// resolver needs. Declared as an interface here, rather than importing
// internal/macro directly, to keep the import graph resolver -> macro
// one-directional without resolver depending on macro's internal types.
type Expander interface {
	Expand(forms []ast.SExpr, e *env.Environment, currentFile string, cap int) ([]ast.SExpr, error)
}

// Resolver walks the import graph of an entry point.
type Resolver struct {
	Env     *env.Environment
	Parser  Parser
	Expand  Expander
	Options config.Options
	Log     logger.Log
}

// ImportKind distinguishes the two import forms a dependency can be
// recorded under.
type ImportKind uint8

const (
	ImportHQL ImportKind = iota // a .hql module, processed for macros
	ImportJS                    // a host module, values only
)

// Dependency is one edge discovered while walking a file's canonical
// forms.
type Dependency struct {
	Kind       ImportKind
	SourcePath string // as written in the source, before resolution
	AbsPath    string // resolved absolute path (HQL only)
	Importer   string // the js-import binding name (JS only)
}

// Resolve parses absPath, recursively resolves and macro-expands every
// .hql dependency it imports, registers macro exports in r.Env, and
// returns this file's own macro-expanded canonical forms. It is the
// entry point both for the top-level compilation (pkg/api) and for each
// recursive dependency.
func (r *Resolver) Resolve(absPath string) ([]ast.SExpr, error) {
	alreadyDone, err := r.Env.EnterFile(absPath)
	if err != nil {
		return nil, diag.New(diag.KindImport, logger.PhaseResolve,
			"cyclic dependency that would change semantics").WithPath(absPath).WithCause(err)
	}
	if alreadyDone {
		// Diamond dependency: absPath was already walked via a different
		// import path earlier in this compilation. Its macro exports are
		// already recorded in r.Env, so it is skipped rather than
		// re-read, re-parsed, and re-expanded (§4.2 Policy).
		return nil, nil
	}
	defer r.Env.ExitFile()

	contents, err := os.ReadFile(absPath)
	if err != nil {
		return nil, diag.New(diag.KindImport, logger.PhaseResolve, "missing file").
			WithPath(absPath).WithCause(err)
	}

	forms, err := r.Parser.Parse(logger.Source{KeyPath: absPath, PrettyPath: prettyPath(absPath), Contents: string(contents)})
	if err != nil {
		return nil, diag.New(diag.KindParse, logger.PhaseParse, "parse failed").
			WithPath(absPath).WithCause(err)
	}

	canonical := syntax.Transform(forms)

	deps := discoverDependencies(absPath, canonical)
	if err := r.resolveDependencies(deps); err != nil {
		return nil, err
	}

	depth := r.Options.ExpansionDepthCap
	if depth <= 0 {
		depth = config.DefaultExpansionDepthCap
	}
	expanded, err := r.Expand.Expand(canonical, r.Env, absPath, depth)
	if err != nil {
		return nil, diag.New(diag.KindMacro, logger.PhaseMacro, "macro expansion failed").
			WithPath(absPath).WithCause(err)
	}

	for _, name := range collectMacroDefinitions(expanded) {
		r.Env.DefineMacro(absPath, name)
	}
	exportNames, exportErr := collectExportNames(expanded)
	if exportErr != nil {
		return nil, diag.New(diag.KindImport, logger.PhaseResolve,
			"export names an undefined symbol").WithPath(absPath).WithCause(exportErr)
	}
	defined := collectDefinedNames(expanded)
	module := r.Env.ModuleMacros(absPath)
	for _, name := range exportNames {
		if module[name] {
			r.Env.ExportMacro(absPath, name)
		} else if !defined[name] {
			return nil, diag.New(diag.KindImport, logger.PhaseResolve,
				fmt.Sprintf("export names undefined symbol %q", name)).WithPath(absPath)
		}
	}

	return expanded, nil
}

// resolveDependencies processes each discovered dependency. When
// r.Options.Concurrency > 1, independent .hql dependencies are resolved
// concurrently, each against a cloned Environment snapshot, then merged
// back deterministically by path (spec §5: "An implementation may process
// independent files concurrently only if each thread owns a cloned
// Environment snapshot and results are merged deterministically by
// path").
func (r *Resolver) resolveDependencies(deps []Dependency) error {
	hqlDeps := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		if d.Kind != ImportHQL {
			continue
		}
		// A dependency that is already processed is handed straight to
		// Resolve: its EnterFile reports a file still on the active stack
		// as a cycle and returns early for a finished one (a diamond
		// dependency), so the concurrent branch below never clones the
		// Environment or spawns a worker for either.
		if r.Env.IsProcessed(d.AbsPath) {
			if _, err := r.Resolve(d.AbsPath); err != nil {
				return err
			}
			continue
		}
		hqlDeps = append(hqlDeps, d)
	}
	if len(hqlDeps) == 0 {
		return nil
	}

	if r.Options.Concurrency <= 1 || len(hqlDeps) == 1 {
		for _, d := range hqlDeps {
			if _, err := r.Resolve(d.AbsPath); err != nil {
				return err
			}
		}
		return nil
	}

	var mu sync.Mutex
	var merged []*env.Environment
	g := new(errgroup.Group)
	g.SetLimit(r.Options.Concurrency)

	for _, d := range hqlDeps {
		d := d
		g.Go(func() error {
			clone := r.Env.Clone()
			worker := &Resolver{Env: clone, Parser: r.Parser, Expand: r.Expand, Options: r.Options, Log: r.Log}
			if _, err := worker.Resolve(d.AbsPath); err != nil {
				return err
			}
			mu.Lock()
			merged = append(merged, clone)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, clone := range merged {
		r.Env.MergeFrom(clone)
	}
	return nil
}

func prettyPath(absPath string) string {
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, absPath); err == nil {
			return rel
		}
	}
	return absPath
}

// discoverDependencies walks canonical forms for import/js-import forms,
// resolving relative paths against the containing file's directory.
func discoverDependencies(fromAbsPath string, forms []ast.SExpr) []Dependency {
	var deps []Dependency
	for _, f := range forms {
		collectDependenciesFrom(fromAbsPath, f, &deps)
	}
	return deps
}

func collectDependenciesFrom(fromAbsPath string, s ast.SExpr, out *[]Dependency) {
	list, ok := s.Data.(*ast.SList)
	if !ok {
		return
	}
	head, ok := ast.Head(s)
	if ok {
		switch head {
		case "import":
			if path, ok := importPathOf(list); ok {
				*out = append(*out, Dependency{Kind: ImportHQL, SourcePath: path, AbsPath: ResolvePath(fromAbsPath, path)})
			}
		case "js-import":
			if path, ok := jsImportPathOf(list); ok {
				*out = append(*out, Dependency{Kind: ImportJS, SourcePath: path})
			}
		}
	}
	for _, item := range list.Items {
		collectDependenciesFrom(fromAbsPath, item, out)
	}
}

// importPathOf extracts "path" from either
// "(import [a, b as c] from \"path\")" or "(import name from \"path\")".
func importPathOf(list *ast.SList) (string, bool) {
	if len(list.Items) < 4 {
		return "", false
	}
	fromSym, ok := list.Items[2].Data.(*ast.SSymbol)
	if !ok || fromSym.Name != "from" {
		return "", false
	}
	lit, ok := list.Items[3].Data.(*ast.SLiteral)
	if !ok || lit.Kind != ast.LiteralString {
		return "", false
	}
	return lit.String, true
}

// jsImportPathOf extracts "path" from "(js-import name \"path\")" or
// "(js-import \"path\")".
func jsImportPathOf(list *ast.SList) (string, bool) {
	for _, item := range list.Items[1:] {
		if lit, ok := item.Data.(*ast.SLiteral); ok && lit.Kind == ast.LiteralString {
			return lit.String, true
		}
	}
	return "", false
}

// ResolvePath turns a source-level import path into an absolute one,
// relative to fromAbsPath's directory (§4.2 "relative paths are resolved
// against the current file"). Exposed so callers that already discovered
// an import form's source path (e.g. internal/macro, to look up a
// dependency's exported macros) can resolve it the same way the resolver
// did.
func ResolvePath(fromAbsPath, sourcePath string) string {
	if filepath.IsAbs(sourcePath) {
		return filepath.Clean(sourcePath)
	}
	dir := filepath.Dir(fromAbsPath)
	joined := filepath.Join(dir, sourcePath)
	if filepath.Ext(joined) == "" {
		joined += ".hql"
	}
	return joined
}

func collectMacroDefinitions(forms []ast.SExpr) []string {
	var names []string
	for _, f := range forms {
		if head, ok := ast.Head(f); ok && (head == "defmacro" || head == "macro") {
			list := f.Data.(*ast.SList)
			if len(list.Items) >= 2 {
				if sym, ok := list.Items[1].Data.(*ast.SSymbol); ok {
					names = append(names, sym.Name)
				}
			}
		}
	}
	return names
}

// collectExportNames returns every symbol named by a top-level
// "(export [...])" form.
func collectExportNames(forms []ast.SExpr) ([]string, error) {
	var names []string
	for _, f := range forms {
		head, ok := ast.Head(f)
		if !ok || head != "export" {
			continue
		}
		list := f.Data.(*ast.SList)
		if len(list.Items) < 2 {
			continue
		}
		vec, ok := list.Items[1].Data.(*ast.SList)
		if !ok {
			continue
		}
		for _, item := range vec.Items {
			if sym, ok := item.Data.(*ast.SSymbol); ok {
				names = append(names, sym.Name)
			}
		}
	}
	return names, nil
}

// collectDefinedNames returns every top-level binding name a file
// introduces: fn/fx/class/enum/let/var/defmacro names.
func collectDefinedNames(forms []ast.SExpr) map[string]bool {
	defined := make(map[string]bool)
	definers := map[string]bool{
		"fn": true, "fx": true, "class": true, "enum": true,
		"let": true, "var": true, "defmacro": true, "macro": true,
	}
	for _, f := range forms {
		head, ok := ast.Head(f)
		if !ok || !definers[head] {
			continue
		}
		list := f.Data.(*ast.SList)
		if len(list.Items) >= 2 {
			if sym, ok := list.Items[1].Data.(*ast.SSymbol); ok {
				defined[sym.Name] = true
			}
		}
	}
	return defined
}
