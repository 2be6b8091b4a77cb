package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiranzhiqian/ThinkRAG/internal/connectors/filesystem"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

var (
	watchInclude   []string
	watchExclude   []string
	watchNoRecurse bool
	watchInitial   bool
	watchDebounce  time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the knowledge base in step with a directory",
	Long: `Watches a file or directory and updates the knowledge base as files change.
Created and modified files are ingested again, removed files are deleted
from the knowledge base. Press Ctrl+C to stop.

Use --initial to ingest the current contents before watching.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchInclude, "include", nil, "only watch files matching these globs")
	watchCmd.Flags().StringSliceVar(&watchExclude, "exclude", nil, "ignore files matching these globs")
	watchCmd.Flags().BoolVar(&watchNoRecurse, "no-recurse", false, "do not watch subdirectories")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "ingest existing files before watching")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "wait this long for changes to settle")
	rootCmd.AddCommand(watchCmd)
}

// debounceSetter and eventNotifier are implemented by the core watch service.
type (
	debounceSetter interface {
		SetDebounce(d time.Duration)
	}
	eventNotifier interface {
		OnEvent(fn func(driving.WatchEvent))
	}
)

func runWatch(cmd *cobra.Command, args []string) error {
	if watchService == nil {
		return errors.New("watch service not configured")
	}

	settings := currentSettings()
	cfg := settings.Chunking
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn := filesystem.New(args[0], filesystem.Options{
		Include:     watchInclude,
		Exclude:     watchExclude,
		NoRecurse:   watchNoRecurse,
		MaxFileSize: settings.Ingest.MaxFileSize,
	})
	ctx := commandContext(cmd)
	if err := conn.Validate(ctx); err != nil {
		return err
	}

	if watchInitial {
		if ingestService == nil {
			return errors.New("ingest service not configured")
		}
		if err := ingestFrom(cmd, cfg, []driven.Connector{filesystem.New(args[0], filesystem.Options{
			Include:     watchInclude,
			Exclude:     watchExclude,
			NoRecurse:   watchNoRecurse,
			MaxFileSize: settings.Ingest.MaxFileSize,
		})}); err != nil {
			cmd.Printf("Warning: %v\n", err)
		}
	}

	if d, ok := watchService.(debounceSetter); ok {
		d.SetDebounce(watchDebounce)
	}
	if n, ok := watchService.(eventNotifier); ok {
		n.OnEvent(func(ev driving.WatchEvent) {
			printWatchEvent(cmd, &ev)
		})
		defer n.OnEvent(nil)
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", conn.Root())
	if err := watchService.Run(ctx, conn, cfg); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	cmd.Println("Stopped watching.")
	return nil
}

func printWatchEvent(cmd *cobra.Command, ev *driving.WatchEvent) {
	name := ev.Change.Document.URI
	if name == "" {
		name = ev.Change.Document.Name
	}
	stamp := time.Now().Format("15:04:05")
	switch {
	case ev.Err != nil:
		cmd.Printf("%s %s %s failed: %v\n", stamp, ev.Change.Type, name, ev.Err)
	case ev.Change.Type == domain.ChangeDeleted:
		cmd.Printf("%s removed %s (%d documents)\n", stamp, name, ev.Removed)
	default:
		cmd.Printf("%s %s %s (%d chunks)\n", stamp, ev.Change.Type, name, ev.Result.Chunks)
	}
}
