package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

var (
	chatSessionID string
	chatPlain     bool
	chatList      bool
)

// chatCmd represents the chat command.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the knowledge base",
	Long: `Start an interactive chat session over the knowledge base.

In a terminal the chat opens in a full screen interface with a knowledge
base browser. With --plain, or when input is piped, questions are read
line by line and answers are streamed to standard output.

Commands in plain mode:
  /clear   Reset the conversation to the greeting
  /quit    Leave the chat

Controls in the terminal interface:
  Enter    - Ask / Select
  Ctrl+L   - Clear the conversation
  Esc      - Back / Stop answering
  Ctrl+C   - Quit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "resume or create the session with this id")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use line based input instead of the terminal interface")
	chatCmd.Flags().BoolVar(&chatList, "list", false, "list stored session ids")
	rootCmd.AddCommand(chatCmd)
}

// storedLister is implemented by session services that persist sessions.
type storedLister interface {
	Stored(ctx context.Context) ([]string, error)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	ctx := commandContext(cmd)

	if chatList {
		return listSessions(ctx, cmd)
	}

	var (
		session driving.ChatSession
		err     error
	)
	if chatSessionID != "" {
		session, err = sessionService.Resume(ctx, chatSessionID)
	} else {
		session, err = sessionService.Create(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sessionService.End(session.ID()) //nolint:errcheck // session teardown is best effort

	if chatPlain || !interactive() {
		return chatLoop(ctx, cmd, session)
	}
	return runTUI(cmd, session)
}

func listSessions(ctx context.Context, cmd *cobra.Command) error {
	lister, ok := sessionService.(storedLister)
	if !ok {
		cmd.Println("Sessions are not persisted.")
		return nil
	}
	ids, err := lister.Stored(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		cmd.Println("No stored sessions.")
		return nil
	}
	for _, id := range ids {
		cmd.Println(id)
	}
	return nil
}

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// chatLoop reads one question per line and streams each answer.
func chatLoop(ctx context.Context, cmd *cobra.Command, session driving.ChatSession) error {
	cmd.Printf("Session %s\n", session.ID())
	for _, turn := range session.All() {
		printTurn(cmd, &turn)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print("> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := session.Clear(ctx); err != nil {
				cmd.Printf("Error: %v\n", err)
				continue
			}
			printTurn(cmd, &session.All()[0])
			continue
		}

		if err := chatAsk(ctx, cmd, session, line); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			cmd.Printf("Error: %v\n", askError(err))
		}
	}
}

func chatAsk(ctx context.Context, cmd *cobra.Command, session driving.ChatSession, prompt string) error {
	start := time.Now()
	answer, err := session.Ask(ctx, prompt)
	if err != nil {
		return err
	}
	defer answer.Close()

	if err := streamAnswer(cmd.OutOrStdout(), answer); err != nil {
		cmd.Println()
		return err
	}
	cmd.Println()
	cmd.Println()
	printSummary(cmd, time.Since(start), len(answer.Citations()))
	printCitations(cmd, answer.Citations())
	cmd.Println()
	return nil
}

func printTurn(cmd *cobra.Command, turn *domain.Turn) {
	switch turn.Role {
	case domain.RoleUser:
		cmd.Printf("> %s\n", turn.Content)
	default:
		cmd.Println(turn.Content)
		if turn.Incomplete {
			cmd.Println("(incomplete)")
		}
		printCitations(cmd, turn.Citations)
		cmd.Println()
	}
}

func runTUI(cmd *cobra.Command, session driving.ChatSession) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	ports := &tui.Ports{
		Session:       session,
		KnowledgeBase: kbService,
	}

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(commandContext(cmd))
	defer app.Stop()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
