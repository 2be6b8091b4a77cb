package tui

import "errors"

// ErrMissingSession is returned when the chat session is not provided.
var ErrMissingSession = errors.New("tui: chat session is required")

// ErrMissingKnowledgeBase is returned when the knowledge base service is not provided.
var ErrMissingKnowledgeBase = errors.New("tui: knowledge base service is required")

// ErrInvalidPorts is returned when ports validation fails.
var ErrInvalidPorts = errors.New("tui: invalid ports configuration")
