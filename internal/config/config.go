// Package config holds the knobs threaded through every phase of a
// compilation, following the teacher's internal/config.Options
// struct-of-knobs convention (a single value handed down from cmd/hqlc
// through pkg/api into each internal package, rather than ambient
// globals).
package config

import "github.com/hql-lang/hqlc/internal/logger"

// Options configures one top-level compilation. A zero Options is valid
// and applies every default named in spec.md.
type Options struct {
	// EntryPoint is the absolute path of the file passed to pkg/api.Compile.
	EntryPoint string

	// SystemMacroDir carries the --macro-dir setting. No phase reads it,
	// so no system macro directory is searched.
	SystemMacroDir string

	// Debug mirrors the HQL_DEBUG environment variable (§6). No phase reads
	// it; setting it produces no additional diagnostics.
	Debug bool

	// ExpansionDepthCap bounds macro fixed-point iteration (§4.3). Zero
	// means "use the spec default of 1024".
	ExpansionDepthCap int

	// Concurrency bounds how many sibling files the Import Resolver may
	// process in parallel via cloned Environment snapshots (§5). Values
	// less than 2 disable concurrent resolution.
	Concurrency int

	LogLevel logger.LogLevel
}

const DefaultExpansionDepthCap = 1024

// WithDefaults returns a copy of o with every zero-valued knob replaced by
// its spec-mandated default.
func (o Options) WithDefaults() Options {
	if o.ExpansionDepthCap <= 0 {
		o.ExpansionDepthCap = DefaultExpansionDepthCap
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}
