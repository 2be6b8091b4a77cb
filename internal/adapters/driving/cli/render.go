package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// streamAnswer writes fragments to w as they arrive.
func streamAnswer(w io.Writer, answer driving.Answer) error {
	for fragment, err := range answer.Fragments() {
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, fragment); err != nil {
			return fmt.Errorf("writing answer: %w", err)
		}
	}
	return nil
}

// printSummary prints the query timing and source count.
func printSummary(cmd *cobra.Command, elapsed time.Duration, sources int) {
	cmd.Printf("took %.2f s, found %d sources\n", elapsed.Seconds(), sources)
}

// printCitations prints one entry per citation with a short preview.
func printCitations(cmd *cobra.Command, citations []domain.Citation) {
	if len(citations) == 0 {
		return
	}

	cmd.Println()
	cmd.Println("Sources:")
	for i := range citations {
		c := &citations[i]
		cmd.Printf("  [%d] %s (page %s) %.2f\n", i+1, citationTitle(c), c.PageLabel, c.Score)
		if preview := c.Preview(); preview != "" {
			cmd.Printf("      %s\n", strings.ReplaceAll(preview, "\n", "\n      "))
		}
	}
}

func citationTitle(c *domain.Citation) string {
	switch {
	case c.Source != "":
		return c.Source
	case c.URI != "":
		return c.URI
	default:
		return c.DocumentID
	}
}
