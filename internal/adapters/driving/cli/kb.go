package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

var kbCmd = &cobra.Command{
	Use:     "kb",
	Aliases: []string{"knowledge-base"},
	Short:   "Manage the knowledge base",
	Long:    `List, inspect and remove ingested sources and documents.`,
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested sources",
	Args:  cobra.NoArgs,
	RunE:  runKBList,
}

var kbShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBShow,
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Remove a source from the knowledge base",
	Long: `Removes every document that shares the source path or URL of the given
document, together with its chunks and index entries.

Use --document to remove only that document, or --uri to remove a source by
its path or URL.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKBDelete,
}

var kbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	Args:  cobra.NoArgs,
	RunE:  runKBStats,
}

var (
	kbPage       int
	kbPageSize   int
	kbShowChunks bool
	kbDeleteDoc  bool
	kbDeleteURI  string
)

func init() {
	kbListCmd.Flags().IntVarP(&kbPage, "page", "p", 1, "page number")
	kbListCmd.Flags().IntVarP(&kbPageSize, "size", "n", domain.DefaultPageSize, "sources per page")
	kbShowCmd.Flags().BoolVar(&kbShowChunks, "chunks", false, "print every chunk")
	kbDeleteCmd.Flags().BoolVar(&kbDeleteDoc, "document", false, "remove only this document")
	kbDeleteCmd.Flags().StringVar(&kbDeleteURI, "uri", "", "remove every document with this path or URL")

	kbCmd.AddCommand(kbListCmd)
	kbCmd.AddCommand(kbShowCmd)
	kbCmd.AddCommand(kbDeleteCmd)
	kbCmd.AddCommand(kbStatsCmd)
	rootCmd.AddCommand(kbCmd)
}

func runKBList(cmd *cobra.Command, _ []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	page, err := kbService.Page(commandContext(cmd), kbPage, kbPageSize)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if page.Total == 0 {
		cmd.Println("The knowledge base is empty.")
		cmd.Println("Run 'thinkrag ingest' to add documents.")
		return nil
	}

	cmd.Printf("Sources (page %d of %d, %d total):\n\n", page.Page, page.TotalPages, page.Total)
	for i := range page.Entries {
		e := &page.Entries[i]
		cmd.Printf("  %s\n", e.ID)
		cmd.Printf("    Name: %s\n", e.Name)
		cmd.Printf("    Type: %s\n", e.Type)
		if e.URI != "" {
			cmd.Printf("    Source: %s\n", e.URI)
		}
		if e.Documents > 1 {
			cmd.Printf("    Documents: %d\n", e.Documents)
		}
		cmd.Printf("    Added: %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"))
		cmd.Println()
	}

	if page.Page < page.TotalPages {
		cmd.Printf("Next page: thinkrag kb list --page %d\n", page.Page+1)
	}
	return nil
}

func runKBShow(cmd *cobra.Command, args []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	ctx := commandContext(cmd)
	docID := args[0]

	doc, err := kbService.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	chunks, err := kbService.GetChunks(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	cmd.Printf("ID: %s\n", doc.ID)
	cmd.Printf("Name: %s\n", doc.Name())
	if doc.Title != "" && doc.Title != doc.Name() {
		cmd.Printf("Title: %s\n", doc.Title)
	}
	cmd.Printf("Type: %s\n", doc.FileType)
	if doc.URI != "" {
		cmd.Printf("Source: %s\n", doc.URI)
	}
	cmd.Printf("Added: %s\n", doc.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	cmd.Printf("Characters: %d\n", len([]rune(doc.Content)))
	cmd.Printf("Chunks: %d\n", len(chunks))

	if len(doc.Metadata) > 0 {
		cmd.Println()
		cmd.Println("Metadata:")
		keys := make([]string, 0, len(doc.Metadata))
		for k := range doc.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == domain.MetaPageStarts {
				continue
			}
			cmd.Printf("  %s: %v\n", k, doc.Metadata[k])
		}
	}

	if kbShowChunks {
		for i := range chunks {
			c := &chunks[i]
			cmd.Println()
			label := c.MetaString(domain.MetaPageLabel)
			if label == "" {
				label = domain.NotAvailable
			}
			cmd.Printf("--- chunk %d [%d, %d) page %s ---\n", c.Position, c.Start, c.End, label)
			cmd.Println(c.Content)
		}
	}
	return nil
}

func runKBDelete(cmd *cobra.Command, args []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	ctx := commandContext(cmd)

	if kbDeleteURI != "" {
		if len(args) > 0 {
			return errors.New("pass either a document id or --uri, not both")
		}
		n, err := kbService.DeleteByURI(ctx, kbDeleteURI)
		if err != nil {
			return fmt.Errorf("failed to delete source: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: no documents for %s", domain.ErrNotFound, kbDeleteURI)
		}
		cmd.Printf("Removed %d documents for %s\n", n, kbDeleteURI)
		return nil
	}

	if len(args) == 0 {
		return errors.New("a document id or --uri is required")
	}
	docID := args[0]

	if kbDeleteDoc {
		if err := kbService.DeleteDocument(ctx, docID); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		cmd.Printf("Removed document %s\n", docID)
		return nil
	}

	n, err := kbService.DeleteSource(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	cmd.Printf("Removed %d documents\n", n)
	return nil
}

func runKBStats(cmd *cobra.Command, _ []string) error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}

	stats, err := kbService.Stats(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	cmd.Println("Knowledge Base")
	cmd.Println("==============")
	cmd.Printf("  Sources:   %d\n", stats.Sources)
	cmd.Printf("  Documents: %d\n", stats.Documents)
	cmd.Printf("  Chunks:    %d\n", stats.Chunks)
	cmd.Printf("  Vectors:   %d\n", stats.Vectors)
	return nil
}
