// Package cli provides the thinkrag command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
)

// version is set at build time.
var version = "dev"

// Core services driven by the commands. They are set by SetServices or by
// the bootstrap function before a command runs.
var (
	queryService    driving.QueryService
	sessionService  driving.SessionService
	kbService       driving.KnowledgeBaseService
	ingestService   driving.IngestService
	watchService    driving.WatchService
	settingsService driving.SettingsService
)

// Global flags.
var (
	verbose   bool
	ephemeral bool
)

// Services holds the core services the commands drive.
type Services struct {
	Query         driving.QueryService
	Sessions      driving.SessionService
	KnowledgeBase driving.KnowledgeBaseService
	Ingest        driving.IngestService
	Watch         driving.WatchService
	Settings      driving.SettingsService
}

// Options are the global flags handed to the bootstrap function.
type Options struct {
	// Verbose enables diagnostic logging.
	Verbose bool

	// Ephemeral keeps documents and chat turns in memory only.
	Ephemeral bool
}

// Bootstrap builds the services for a command run. The returned cleanup
// function releases them and is called once the command finishes.
type Bootstrap func(ctx context.Context, opts Options) (*Services, func(), error)

var (
	bootstrap Bootstrap
	cleanup   func()
)

// skipBootstrap marks commands that run without core services.
const skipBootstrap = "skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "thinkrag",
	Short: "Ask questions about your documents",
	Long: `ThinkRAG ingests local files and web pages into a knowledge base and
answers questions about them with a language model, citing its sources.

Get started:
  thinkrag settings wizard      Configure embedding and LLM providers
  thinkrag ingest ./docs        Add documents to the knowledge base
  thinkrag ask "question"       Ask a single question
  thinkrag chat                 Start an interactive chat`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable diagnostic logging")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep the knowledge base in memory only")
}

// SetServices sets the core services used by the commands.
func SetServices(s Services) {
	queryService = s.Query
	sessionService = s.Sessions
	kbService = s.KnowledgeBase
	ingestService = s.Ingest
	watchService = s.Watch
	settingsService = s.Settings
}

// SetBootstrap sets the function that builds services before a command runs.
func SetBootstrap(fn Bootstrap) {
	bootstrap = fn
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command and releases bootstrapped services.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
	return err
}

func initServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if bootstrap == nil || cmd.Annotations[skipBootstrap] != "" {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	services, release, err := bootstrap(ctx, Options{Verbose: verbose, Ephemeral: ephemeral})
	if err != nil {
		return err
	}
	if services == nil {
		return errors.New("bootstrap returned no services")
	}
	SetServices(*services)
	cleanup = release
	return nil
}

// commandContext returns the command context, or a background context when
// the command runs outside ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
