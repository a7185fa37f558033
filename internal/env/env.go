// Package env implements the Global Environment from spec §3: the
// process-wide registry the Import Resolver and Macro Expander share, and
// the macro-expansion cache that makes expansion idempotent.
//
// The structure follows the teacher's internal/cache.CacheSet: a mutex-
// guarded set of maps, one constructor, and small accessor methods that
// never let a caller observe the map mid-mutation. Unlike the teacher's
// cache (which exists purely as a performance optimization over repeated
// builds), the Environment's moduleMacros/exportedMacros/processedFiles
// maps are load-bearing: the Import Resolver and Macro Expander depend on
// their content for correctness, not just speed.
package env

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hql-lang/hqlc/internal/ast"
)

// CacheKey identifies one memoized macro expansion: a textual
// fingerprint of the form being expanded (two keys match when their
// strings are equal) combined with the file it was encountered in, per
// §4.3 "memoized on (form, file)".
type CacheKey struct {
	File string
	Form string // a stable textual fingerprint of the input SExpr
}

const defaultMacroCacheSize = 4096

// Environment is created once per compilation (§3 "Lifecycle"). It must
// never be shared, uncloned, across goroutines; internal/resolver's
// concurrent mode clones one Environment per worker and merges results
// deterministically by path (spec §5).
type Environment struct {
	mu sync.Mutex

	moduleMacros   map[string]map[string]bool
	exportedMacros map[string]map[string]bool
	processedFiles map[string]bool
	currentFile    []string

	macroCache *lru.Cache[CacheKey, ast.SExpr]
}

// New creates an empty Environment with a bounded macro cache. The LRU
// bound keeps a long-running "hqlc watch" session (see cmd/hqlc) from
// growing the cache without limit across many recompiles, which an
// unbounded map (the teacher's approach for its single-shot CLI) would
// not need to guard against.
func New() *Environment {
	cache, err := lru.New[CacheKey, ast.SExpr](defaultMacroCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which defaultMacroCacheSize never is.
		panic(err)
	}
	return &Environment{
		moduleMacros:   make(map[string]map[string]bool),
		exportedMacros: make(map[string]map[string]bool),
		processedFiles: make(map[string]bool),
		macroCache:     cache,
	}
}

// Reset clears per-compilation state. Called at the start of each
// top-level compilation (§3 "Caches are cleared at the start of each
// top-level compilation").
func (e *Environment) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.moduleMacros = make(map[string]map[string]bool)
	e.exportedMacros = make(map[string]map[string]bool)
	e.processedFiles = make(map[string]bool)
	e.currentFile = nil
	e.macroCache.Purge()
}

// Clone produces an independent Environment pre-populated with this one's
// macro tables, for the concurrent-resolution mode described in §5. The
// macro cache is intentionally not shared: callers merge results by path
// after all clones finish, and a shared cache would reintroduce the
// cross-goroutine mutation the teacher's CacheSet comment warns against.
func (e *Environment) Clone() *Environment {
	e.mu.Lock()
	defer e.mu.Unlock()
	clone := New()
	for k, v := range e.moduleMacros {
		clone.moduleMacros[k] = copySet(v)
	}
	for k, v := range e.exportedMacros {
		clone.exportedMacros[k] = copySet(v)
	}
	for k := range e.processedFiles {
		clone.processedFiles[k] = true
	}
	return clone
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k := range in {
		out[k] = true
	}
	return out
}

// MergeFrom deterministically folds another Environment's per-file state
// (produced by a Clone'd worker) into this one, keyed by absolute path so
// two workers that happened to process the same file agree.
func (e *Environment) MergeFrom(other *Environment) {
	other.mu.Lock()
	snapshotModule := make(map[string]map[string]bool, len(other.moduleMacros))
	for k, v := range other.moduleMacros {
		snapshotModule[k] = copySet(v)
	}
	snapshotExported := make(map[string]map[string]bool, len(other.exportedMacros))
	for k, v := range other.exportedMacros {
		snapshotExported[k] = copySet(v)
	}
	snapshotProcessed := make(map[string]bool, len(other.processedFiles))
	for k := range other.processedFiles {
		snapshotProcessed[k] = true
	}
	other.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range snapshotModule {
		e.moduleMacros[k] = v
	}
	for k, v := range snapshotExported {
		e.exportedMacros[k] = v
	}
	for k := range snapshotProcessed {
		e.processedFiles[k] = true
	}
}

// DefineMacro records that absPath defines a macro named name. Called by
// the Import Resolver for every defmacro/macro form it encounters while
// walking a file (§4.2 "A file's macro-definition set is computed from
// every defmacro/macro form encountered during its expansion").
func (e *Environment) DefineMacro(absPath, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	set, ok := e.moduleMacros[absPath]
	if !ok {
		set = make(map[string]bool)
		e.moduleMacros[absPath] = set
	}
	set[name] = true
}

// ExportMacro records that absPath exports a macro named name. Callers
// must have already called DefineMacro for the same pair, matching §8
// property 2 (exportedMacros(f) ⊆ moduleMacros(f)); ExportMacro enforces
// this by no-op-ing (and returning false) if the macro was never defined.
func (e *Environment) ExportMacro(absPath, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.moduleMacros[absPath][name] {
		return false
	}
	set, ok := e.exportedMacros[absPath]
	if !ok {
		set = make(map[string]bool)
		e.exportedMacros[absPath] = set
	}
	set[name] = true
	return true
}

// ModuleMacros returns every macro absPath defines, whether exported or not.
func (e *Environment) ModuleMacros(absPath string) map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copySet(e.moduleMacros[absPath])
}

// ExportedMacros returns the subset of absPath's macros that are exported.
func (e *Environment) ExportedMacros(absPath string) map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copySet(e.exportedMacros[absPath])
}

// IsMacro reports whether name is an exported macro of absPath. Used by
// the resolver (§4.2) to decide compile-time-vs-runtime for an imported
// symbol.
func (e *Environment) IsMacro(absPath, name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exportedMacros[absPath][name]
}

// EnterFile pushes absPath onto the current-file stack. Three outcomes
// (§4.2 Policy):
//
//   - absPath is new: it is pushed, processedFiles is marked, and (false,
//     nil) is returned so the caller proceeds to read/parse/expand it.
//   - absPath is already on the active stack: a genuine cycle, reported
//     as a fatal error (§3 "recursive re-entry on the same file path is a
//     fatal cycle").
//   - absPath was already fully processed earlier but is not on the
//     active stack (a diamond dependency reached by two different
//     import paths): nothing is pushed and (true, nil) is returned, so
//     the caller skips reprocessing instead of re-reading, re-parsing,
//     and re-expanding a file whose macro exports are already recorded.
//
// Callers must call ExitFile on every exit path where EnterFile actually
// pushed (alreadyDone == false), including on a later error, to keep the
// stack strictly LIFO (§5).
func (e *Environment) EnterFile(absPath string) (alreadyDone bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.processedFiles[absPath] {
		for _, f := range e.currentFile {
			if f == absPath {
				return false, fmt.Errorf("import cycle detected: %s is already being processed", absPath)
			}
		}
		return true, nil
	}
	e.processedFiles[absPath] = true
	e.currentFile = append(e.currentFile, absPath)
	return false, nil
}

// ExitFile pops the top entry of the current-file stack; on an empty
// stack it does nothing. It pops whatever is on top, so it pairs only
// with an EnterFile that pushed: after an EnterFile that returned an
// error or alreadyDone, nothing was pushed and an ExitFile would remove
// the caller's own entry.
func (e *Environment) ExitFile() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.currentFile) > 0 {
		e.currentFile = e.currentFile[:len(e.currentFile)-1]
	}
}

// CurrentFile returns the absolute path of the file currently being
// processed, or "" if the stack is empty. Used by the macro expander for
// hygiene (free variables retain the macro definition site's file) and by
// relative-path resolution in the Import Resolver.
func (e *Environment) CurrentFile() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.currentFile) == 0 {
		return ""
	}
	return e.currentFile[len(e.currentFile)-1]
}

// IsProcessed reports whether absPath has already been (or is currently
// being) walked by the Import Resolver.
func (e *Environment) IsProcessed(absPath string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processedFiles[absPath]
}

// CacheExpansion writes a macro expansion result. The cache is
// write-once per key (§5 "The macro cache is write-once per key"): a
// second write for the same key is a no-op rather than an overwrite, so
// non-determinism in a misbehaving macro can never silently invalidate an
// already-observed expansion.
func (e *Environment) CacheExpansion(key CacheKey, expanded ast.SExpr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.macroCache.Get(key); ok {
		return
	}
	e.macroCache.Add(key, expanded)
}

// LookupExpansion returns a previously cached expansion, if any.
func (e *Environment) LookupExpansion(key CacheKey) (ast.SExpr, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.macroCache.Get(key)
}
