// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"time"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewChat is the conversation view.
	ViewChat
	// ViewKnowledgeBase lists ingested sources.
	ViewKnowledgeBase
	// ViewDocument shows the text of one document.
	ViewDocument
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewChat:
		return "chat"
	case ViewKnowledgeBase:
		return "knowledge_base"
	case ViewDocument:
		return "document"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// AnswerStarted carries the answer for a submitted prompt.
// Retrieval has finished; generation starts when fragments are read.
type AnswerStarted struct {
	Prompt  string
	Answer  driving.Answer
	Started time.Time
	Err     error
}

// FragmentReceived carries one piece of the streamed answer.
type FragmentReceived struct {
	Text string
}

// AnswerFinished signals the stream ended. Err is nil when the answer
// completed or was stopped.
type AnswerFinished struct {
	Err error
}

// SessionCleared signals the conversation was reset to the greeting.
type SessionCleared struct {
	Err error
}

// SourcesLoaded carries one page of the source listing.
type SourcesLoaded struct {
	Page domain.SourcePage
	Err  error
}

// SourceRemoved signals a source and its documents were removed.
type SourceRemoved struct {
	DocumentID string
	Removed    int
	Err        error
}

// DocumentSelected asks to open a document.
type DocumentSelected struct {
	DocumentID string
	Title      string
}

// DocumentContentLoaded carries a loaded document.
type DocumentContentLoaded struct {
	DocumentID string
	Document   *domain.Document
	Err        error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
