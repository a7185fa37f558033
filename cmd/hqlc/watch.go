package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var outfile string

	cmd := &cobra.Command{
		Use:   "watch [entry.hql]",
		Short: "Recompile an entry point whenever its directory's .hql files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, flags, args[0], outfile)
		},
	}

	cmd.Flags().StringVarP(&outfile, "outfile", "o", "", "write each rebuild here instead of stdout")
	return cmd
}

// runWatch watches the entry point's containing directory rather than
// its precise transitive dependency set: the Import Resolver already
// recomputes that set on every build, so the watcher only needs to
// notice "something in this project changed" and let a fresh Resolve
// discover what moved. A single flat watch keeps this subcommand from
// needing its own copy of the dependency graph.
func runWatch(cmd *cobra.Command, flags *rootFlags, entry, outfile string) error {
	abs, err := absEntryPoint(entry)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	rebuild := func() {
		if err := runCompile(cmd, flags, abs, outfile); err != nil {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintf(os.Stderr, "hqlc: rebuilt %s\n", filepath.Base(abs))
		}
	}

	rebuild()

	var debounce *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".hql") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, rebuild)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "hqlc: watch error: %s\n", err)
		}
	}
}
