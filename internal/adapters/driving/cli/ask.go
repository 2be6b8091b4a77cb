package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the knowledge base",
	Long: `Retrieves the passages most relevant to the question, optionally reranks
them, and streams an answer generated from them. The sources used are
listed after the answer with their page labels and relevance scores.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer and citations as JSON")
	rootCmd.AddCommand(askCmd)
}

// askOutput is the JSON form of an answer.
type askOutput struct {
	Answer    string            `json:"answer"`
	Complete  bool              `json:"complete"`
	Seconds   float64           `json:"seconds"`
	Citations []domain.Citation `json:"citations"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	question := strings.Join(args, " ")
	ctx := commandContext(cmd)
	start := time.Now()

	answer, err := queryService.Query(ctx, question)
	if err != nil {
		return askError(err)
	}
	defer answer.Close()

	if askJSON {
		for _, err := range answer.Fragments() {
			if err != nil {
				return fmt.Errorf("answer failed: %w", err)
			}
		}
		return outputAskJSON(cmd, askOutput{
			Answer:    answer.Text(),
			Complete:  answer.Complete(),
			Seconds:   time.Since(start).Seconds(),
			Citations: answer.Citations(),
		})
	}

	if err := streamAnswer(cmd.OutOrStdout(), answer); err != nil {
		cmd.Println()
		return fmt.Errorf("answer failed: %w", err)
	}
	cmd.Println()
	cmd.Println()
	printSummary(cmd, time.Since(start), len(answer.Citations()))
	printCitations(cmd, answer.Citations())
	return nil
}

func outputAskJSON(cmd *cobra.Command, out askOutput) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// askError adds a hint for errors the user can fix.
func askError(err error) error {
	switch {
	case errors.Is(err, domain.ErrIndexNotReady):
		return fmt.Errorf("%w: run 'thinkrag ingest' to add documents first", err)
	case errors.Is(err, domain.ErrLLMUnavailable), errors.Is(err, domain.ErrEmbeddingUnavailable):
		return fmt.Errorf("%w: run 'thinkrag settings wizard' to configure providers", err)
	default:
		return fmt.Errorf("query failed: %w", err)
	}
}
