package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/keymap"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/messages"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/styles"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/views/chat"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/views/document"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/views/knowledgebase"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/views/menu"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap

	menuView     *menu.View
	chatView     *chat.View
	kbView       *knowledgebase.View
	documentView *document.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:        ports,
		ctx:          context.Background(),
		styles:       s,
		keymap:       km,
		menuView:     menu.NewView(s),
		chatView:     chat.NewView(s, km, ports.Session),
		kbView:       knowledgebase.NewView(s, km, ports.KnowledgeBase),
		documentView: document.NewView(s, ports.KnowledgeBase),
		currentView:  messages.ViewMenu,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView.WithContext(ctx)
	a.kbView.WithContext(ctx)
	a.documentView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("thinkrag"),
	)
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message handler
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.DocumentSelected:
		returnTo := a.currentView
		a.currentView = messages.ViewDocument
		return a, a.documentView.Open(msg.DocumentID, msg.Title, returnTo)

	case messages.AnswerStarted, messages.FragmentReceived, messages.AnswerFinished, messages.SessionCleared:
		a.chatView, cmd = a.chatView.Update(msg)
		a.err = a.chatView.Err()
		return a, cmd

	case messages.SourcesLoaded, messages.SourceRemoved:
		a.kbView, cmd = a.kbView.Update(msg)
		a.err = a.kbView.Err()
		return a, cmd

	case messages.DocumentContentLoaded:
		a.documentView, cmd = a.documentView.Update(msg)
		a.err = a.documentView.Err()
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, a.forward(msg)

	case messages.Quit:
		a.Stop()
		return a, tea.Quit
	}

	return a, a.forward(msg)
}

// handleKeyMsg handles global keys and forwards the rest to the active view.
func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if keymap.Matches(key, a.keymap.Quit) {
		a.Stop()
		return a, tea.Quit
	}

	switch a.currentView {
	case messages.ViewHelp:
		if keymap.Matches(key, a.keymap.Back) {
			a.currentView = messages.ViewMenu
		}
		return a, nil
	case messages.ViewMenu, messages.ViewKnowledgeBase:
		// The chat view takes "?" as prompt text.
		if keymap.Matches(key, a.keymap.Help) {
			a.currentView = messages.ViewHelp
			return a, nil
		}
	}

	return a, a.forward(msg)
}

// forward sends a message to the active view.
func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewKnowledgeBase:
		a.kbView, cmd = a.kbView.Update(msg)
	case messages.ViewDocument:
		a.documentView, cmd = a.documentView.Update(msg)
	case messages.ViewHelp:
	}
	return cmd
}

// switchTo activates a view and returns its initial command.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.currentView = view
	switch view {
	case messages.ViewChat:
		a.chatView.Reset()
		return a.chatView.Init()
	case messages.ViewKnowledgeBase:
		return a.kbView.Init()
	case messages.ViewMenu, messages.ViewDocument, messages.ViewHelp:
	}
	return nil
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewChat:
		return a.chatView.View()
	case messages.ViewKnowledgeBase:
		return a.kbView.View()
	case messages.ViewDocument:
		return a.documentView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	case messages.ViewMenu:
	}
	return a.menuView.View()
}

// viewHelp renders the help view from the keymap.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")

	sections := []string{"Chat", "Navigation", "Knowledge Base", "General"}
	for i, group := range a.keymap.FullHelp() {
		b.WriteString(a.styles.Subtitle.Render(sections[i] + ":"))
		b.WriteString("\n")
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
		b.WriteString("\n")
	}

	b.WriteString(a.styles.Help.Render("[esc] back to menu"))
	return b.String()
}

// Stop abandons any answer still streaming.
func (a *App) Stop() {
	a.chatView.Stop()
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on the app and every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.chatView.SetDimensions(width, height)
	a.kbView.SetDimensions(width, height)
	a.documentView.SetDimensions(width, height)
}
