// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/components/input"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/components/list"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/components/status"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/keymap"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/messages"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/styles"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// ErrNoSession indicates that no chat session was provided.
var ErrNoSession = errors.New("chat session is required")

// reservedLines is the height taken by everything except the transcript.
const reservedLines = 12

// stream is the answer currently being read.
type stream struct {
	answer  driving.Answer
	next    func() (string, error, bool)
	stop    func()
	started time.Time
	text    strings.Builder
	stopped bool
}

// View shows the conversation, the prompt input and the sources of the last answer.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.PromptInput
	citations  *list.CitationList
	statusbar  *status.Bar
	transcript viewport.Model

	session driving.ChatSession
	ctx     context.Context

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool
	current    *stream
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, session driving.ChatSession) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewPromptInput(s),
		citations:  list.NewCitationList(s),
		statusbar:  status.NewBar(s, km),
		transcript: viewport.New(80, 24-reservedLines),
		session:    session,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	v.refresh()
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerStarted:
		return v.handleAnswerStarted(msg)

	case messages.FragmentReceived:
		if v.current == nil {
			return v, nil
		}
		v.current.text.WriteString(msg.Text)
		v.statusbar.SetState(status.StateStreaming)
		v.refresh()
		return v, v.nextFragment()

	case messages.AnswerFinished:
		v.handleAnswerFinished(msg)
		return v, nil

	case messages.SessionCleared:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.err = nil
		v.citations.SetCitations(nil)
		v.focusInput = true
		v.input.Focus()
		v.statusbar.Clear()
		v.refresh()
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()

	if v.current != nil {
		// Only stopping is possible while an answer streams.
		if keymap.Matches(key, v.keymap.Stop) {
			v.Stop()
			v.statusbar.SetMessage("Stopping...")
		}
		return v, nil
	}

	if keymap.Matches(key, v.keymap.Clear) {
		return v, v.clear()
	}

	if keymap.Matches(key, v.keymap.Focus) {
		v.toggleFocus()
		return v, nil
	}

	if !v.focusInput {
		return v.handleSourcesKey(key)
	}

	switch {
	case keymap.Matches(key, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case keymap.Matches(key, v.keymap.Ask):
		prompt := v.input.Prompt()
		if prompt == "" {
			return v, nil
		}
		v.input.Reset()
		v.err = nil
		v.statusbar.SetState(status.StateThinking)
		v.statusbar.SetMessage("")
		return v, v.ask(prompt)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleSourcesKey processes keys while the citation list has focus.
func (v *View) handleSourcesKey(key string) (*View, tea.Cmd) {
	switch {
	case keymap.Matches(key, v.keymap.Up):
		v.citations.MoveUp()
	case keymap.Matches(key, v.keymap.Down):
		v.citations.MoveDown()
	case keymap.Matches(key, v.keymap.Back):
		v.toggleFocus()
	case keymap.Matches(key, v.keymap.Select):
		c := v.citations.SelectedCitation()
		if c == nil || c.DocumentID == "" {
			return v, nil
		}
		id, title := c.DocumentID, c.Source
		return v, func() tea.Msg {
			return messages.DocumentSelected{DocumentID: id, Title: title}
		}
	}
	return v, nil
}

func (v *View) toggleFocus() {
	if v.focusInput && v.citations.IsEmpty() {
		return
	}
	v.focusInput = !v.focusInput
	if v.focusInput {
		v.input.Focus()
		v.statusbar.SetState(status.StateAnswered)
		return
	}
	v.input.Blur()
	v.statusbar.SetState(status.StateSources)
}

// ask submits a prompt to the session.
func (v *View) ask(prompt string) tea.Cmd {
	session, ctx := v.session, v.ctx
	return func() tea.Msg {
		started := time.Now()
		if session == nil {
			return messages.AnswerStarted{Prompt: prompt, Started: started, Err: ErrNoSession}
		}
		answer, err := session.Ask(ctx, prompt)
		return messages.AnswerStarted{Prompt: prompt, Answer: answer, Started: started, Err: err}
	}
}

func (v *View) handleAnswerStarted(msg messages.AnswerStarted) (*View, tea.Cmd) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return v, nil
	}

	next, stop := iter.Pull2(msg.Answer.Fragments())
	v.current = &stream{
		answer:  msg.Answer,
		next:    next,
		stop:    stop,
		started: msg.Started,
	}
	v.citations.SetCitations(msg.Answer.Citations())
	v.statusbar.SetState(status.StateStreaming)
	v.refresh()
	return v, v.nextFragment()
}

// nextFragment reads one fragment of the current answer.
func (v *View) nextFragment() tea.Cmd {
	next := v.current.next
	return func() tea.Msg {
		text, err, ok := next()
		switch {
		case !ok:
			return messages.AnswerFinished{}
		case err != nil:
			return messages.AnswerFinished{Err: err}
		default:
			return messages.FragmentReceived{Text: text}
		}
	}
}

func (v *View) handleAnswerFinished(msg messages.AnswerFinished) {
	cur := v.current
	if cur == nil {
		return
	}
	cur.stop()
	_ = cur.answer.Close()
	v.current = nil
	v.refresh()

	if msg.Err != nil && !cur.stopped {
		v.setError(msg.Err)
		return
	}

	summary := fmt.Sprintf("took %.2f s, found %d sources",
		time.Since(cur.started).Seconds(), v.citations.Count())
	if cur.stopped {
		summary = "stopped, " + summary
	}
	v.err = nil
	v.statusbar.SetState(status.StateAnswered)
	v.statusbar.SetMessage(summary)
}

// clear resets the conversation to the greeting.
func (v *View) clear() tea.Cmd {
	session, ctx := v.session, v.ctx
	return func() tea.Msg {
		if session == nil {
			return messages.SessionCleared{Err: ErrNoSession}
		}
		return messages.SessionCleared{Err: session.Clear(ctx)}
	}
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// refresh rebuilds the transcript from the session log and the streaming answer.
func (v *View) refresh() {
	var turns []domain.Turn
	if v.session != nil {
		turns = v.session.All()
	}

	width := max(v.width-4, 20)
	parts := make([]string, 0, len(turns)+1)
	for i := range turns {
		parts = append(parts, v.renderTurn(&turns[i], width))
	}
	if v.current != nil {
		text := v.current.text.String()
		if text == "" {
			text = "..."
		}
		parts = append(parts, v.renderAssistant(text, width))
	}

	v.transcript.SetContent(strings.Join(parts, "\n\n"))
	v.transcript.GotoBottom()
}

func (v *View) renderTurn(turn *domain.Turn, width int) string {
	if turn.Role == domain.RoleUser {
		return v.styles.UserTurn.Width(width).Render("You: " + turn.Content)
	}
	out := v.renderAssistant(turn.Content, width)
	if turn.Incomplete {
		out += "\n" + v.styles.Muted.Render("(answer stopped)")
	}
	return out
}

func (v *View) renderAssistant(text string, width int) string {
	return v.styles.AssistantTurn.Width(width).Render("ThinkRAG: " + text)
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 8)
	sections = append(sections,
		v.styles.Title.Render("ThinkRAG"),
		v.transcript.View(),
		"",
		v.input.View(),
	)
	if !v.citations.IsEmpty() {
		sections = append(sections, "", v.citations.View())
	}
	sections = append(sections, "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.citations.SetDimensions(width, 7)
	v.statusbar.SetWidth(width)
	v.transcript.Width = width
	v.transcript.Height = max(height-reservedLines-7, 3)
	v.refresh()
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Streaming reports whether an answer is being read.
func (v *View) Streaming() bool {
	return v.current != nil
}

// InputFocused returns whether the prompt input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Citations returns the sources of the last answer.
func (v *View) Citations() []domain.Citation {
	return v.citations.Citations()
}

// Status returns the status bar state and message.
func (v *View) Status() (status.State, string) {
	return v.statusbar.State(), v.statusbar.Message()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// SetPrompt sets the prompt text.
func (v *View) SetPrompt(prompt string) {
	v.input.SetValue(prompt)
}

// Prompt returns the prompt text.
func (v *View) Prompt() string {
	return v.input.Value()
}

// Stop abandons the answer being streamed, if any.
func (v *View) Stop() {
	if v.current == nil {
		return
	}
	v.current.stopped = true
	_ = v.current.answer.Close()
}

// Reset focuses the prompt and clears errors. The conversation is kept.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.err = nil
	v.statusbar.Clear()
	v.refresh()
}
