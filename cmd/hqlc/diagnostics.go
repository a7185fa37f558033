package main

import (
	"fmt"
	"io"

	"github.com/hql-lang/hqlc/pkg/api"
)

// printMessages renders a batch of api.Message values in the clang-like
// format internal/logger uses for in-process diagnostics, prefixed with
// the given kind ("error" or "warning") the way the teacher's CLI
// distinguishes BuildResult.Errors from BuildResult.Warnings.
func printMessages(w io.Writer, kind string, msgs []api.Message) {
	for _, m := range msgs {
		if m.Location != nil {
			fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", m.Location.File, m.Location.Line, m.Location.Column+1, kind, m.Text)
			if m.Location.LineText != "" {
				fmt.Fprintf(w, "    %s\n", m.Location.LineText)
			}
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", kind, m.Text)
	}
}
