// Command hqlc is the HQL-to-ECMAScript compiler's CLI entry point,
// grounded in the teacher's cmd/esbuild main.go: read argv, thread a few
// environment-derived defaults into compiler Options, run one phase of
// the pipeline, translate the result into a process exit code.
//
// Unlike the teacher's hand-rolled flag scanner (a single large switch
// over os.Args), argument parsing here is delegated to cobra: the
// surface is a handful of subcommands (compile, expand-only, watch,
// version) rather than dozens of bundler flags, so a declarative command
// tree is the better fit.
package main

import "github.com/hql-lang/hqlc/internal/exitcode"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitcode.Exit(err)
	}
}
