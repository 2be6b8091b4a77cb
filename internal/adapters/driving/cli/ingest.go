package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weiranzhiqian/ThinkRAG/internal/connectors"
	"github.com/weiranzhiqian/ThinkRAG/internal/connectors/filesystem"
	"github.com/weiranzhiqian/ThinkRAG/internal/connectors/manifest"
	"github.com/weiranzhiqian/ThinkRAG/internal/connectors/web"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

var (
	ingestManifest      string
	ingestInclude       []string
	ingestExclude       []string
	ingestNoRecurse     bool
	ingestIncludeHidden bool
	ingestChunkSize     int
	ingestChunkOverlap  int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path|url...]",
	Short: "Add files and web pages to the knowledge base",
	Long: `Reads files, directories and web pages, splits them into overlapping
chunks, embeds the chunks and stores them in the knowledge base.

Directories are read recursively. Hidden files are skipped unless
--include-hidden is set. Glob filters use doublestar syntax and match
paths relative to each directory.

Examples:
  thinkrag ingest ./docs report.pdf
  thinkrag ingest ./notes --include "**/*.md" --exclude "**/drafts/**"
  thinkrag ingest https://example.com/handbook
  thinkrag ingest --manifest sources.yaml`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestManifest, "manifest", "m", "", "YAML manifest listing paths and URLs")
	ingestCmd.Flags().StringSliceVar(&ingestInclude, "include", nil, "only ingest files matching these globs")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "skip files matching these globs")
	ingestCmd.Flags().BoolVar(&ingestNoRecurse, "no-recurse", false, "do not descend into subdirectories")
	ingestCmd.Flags().BoolVar(&ingestIncludeHidden, "include-hidden", false, "read dot files and dot directories")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "chunk size in characters (default from settings)")
	ingestCmd.Flags().IntVar(&ingestChunkOverlap, "chunk-overlap", 0, "chunk overlap in characters (default from settings)")
	rootCmd.AddCommand(ingestCmd)
}

// progressSetter is implemented by ingest services that report per file progress.
type progressSetter interface {
	SetProgress(fn driving.ProgressFunc)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if len(args) == 0 && ingestManifest == "" {
		return errors.New("provide at least one path, URL or --manifest")
	}

	settings := currentSettings()
	cfg := settings.Chunking
	fsOpts := filesystem.Options{
		Include:       ingestInclude,
		Exclude:       ingestExclude,
		NoRecurse:     ingestNoRecurse,
		MaxFileSize:   settings.Ingest.MaxFileSize,
		IncludeHidden: ingestIncludeHidden,
	}
	webCfg := web.Config{MaxBytes: settings.Ingest.MaxFileSize}

	conns := connectors.ForInputs(args, fsOpts, webCfg)
	if ingestManifest != "" {
		m, err := manifest.Load(ingestManifest)
		if err != nil {
			return err
		}
		cfg = m.ChunkingConfig(cfg)
		conns = append(conns, m.Connectors(fsOpts, webCfg)...)
	}
	if cmd.Flags().Changed("chunk-size") {
		cfg.ChunkSize = ingestChunkSize
	}
	if cmd.Flags().Changed("chunk-overlap") {
		cfg.Overlap = ingestChunkOverlap
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return ingestFrom(cmd, cfg, conns)
}

func ingestFrom(cmd *cobra.Command, cfg domain.ChunkingConfig, conns []driven.Connector) error {
	ctx := commandContext(cmd)

	files, err := connectors.Collect(ctx, conns...)
	if err != nil {
		if len(files) == 0 {
			return fmt.Errorf("reading sources: %w", err)
		}
		cmd.Printf("Warning: %v\n", err)
	}
	if len(files) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	cmd.Printf("Ingesting %d files (chunk size %d, overlap %d)...\n", len(files), cfg.ChunkSize, cfg.Overlap)
	if p, ok := ingestService.(progressSetter); ok {
		p.SetProgress(func(done, total int, r domain.FileResult) {
			printFileResult(cmd, done, total, &r)
		})
		defer p.SetProgress(nil)
	}

	report, err := ingestService.Ingest(ctx, files, cfg)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	duplicates := 0
	for i := range report.Results {
		if report.Results[i].Duplicate {
			duplicates++
		}
	}
	cmd.Printf("Ingested %d of %d files in %.2f s", report.Succeeded(), len(report.Results), report.Duration.Seconds())
	if duplicates > 0 {
		cmd.Printf(", %d duplicates skipped", duplicates)
	}
	cmd.Println()

	if failed := report.Failed(); failed > 0 {
		return fmt.Errorf("%d files failed: %w", failed, report.Err())
	}
	return nil
}

func printFileResult(cmd *cobra.Command, done, total int, r *domain.FileResult) {
	prefix := fmt.Sprintf("[%d/%d] %s (%s, %s)", done, total, r.Name, r.Type, formatSize(r.Size))
	switch {
	case r.Err != nil:
		cmd.Printf("%s failed: %v\n", prefix, r.Err)
	case r.Duplicate:
		cmd.Printf("%s skipped, content already stored\n", prefix)
	default:
		cmd.Printf("%s %d chunks\n", prefix, r.Chunks)
	}
}

// currentSettings returns the stored settings, or defaults when none can be read.
func currentSettings() domain.AppSettings {
	if settingsService != nil {
		if s, err := settingsService.Get(); err == nil && s != nil {
			return *s
		}
	}
	return domain.DefaultAppSettings()
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
