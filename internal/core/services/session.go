package services

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
)

// Ensure Session implements the interface.
var _ driving.ChatSession = (*Session)(nil)

// Ensure SessionManager implements the interface.
var _ driving.SessionService = (*SessionManager)(nil)

// Session is one conversation. It allows a single streaming answer at a
// time; Ask fails with domain.ErrQueryInProgress until that answer has been
// fully consumed or closed.
type Session struct {
	id       string
	engine   driving.QueryService
	store    driven.ChatStore
	greeting string

	mu    sync.Mutex
	turns []domain.Turn

	busy   atomic.Bool
	closed atomic.Bool
}

func newSession(id string, engine driving.QueryService, store driven.ChatStore, greeting string) *Session {
	return &Session{id: id, engine: engine, store: store, greeting: greeting}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Busy reports whether an answer is still streaming.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Ask runs a query and records the user turn. The assistant turn is
// recorded once the returned answer ends.
func (s *Session) Ask(ctx context.Context, prompt string) (driving.Answer, error) {
	if s.closed.Load() {
		return nil, domain.ErrSessionClosed
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, domain.ErrQueryInProgress
	}

	a, err := s.engine.Query(ctx, prompt)
	if err != nil {
		s.busy.Store(false)
		return nil, err
	}

	if err := s.Append(ctx, domain.Turn{Role: domain.RoleUser, Content: prompt}); err != nil {
		_ = a.Close()
		s.busy.Store(false)
		return nil, err
	}

	return &sessionAnswer{Answer: a, session: s}, nil
}

// record appends the assistant turn for a finished answer and frees the session.
func (s *Session) record(a driving.Answer) {
	defer s.busy.Store(false)

	turn := domain.Turn{
		Role:       domain.RoleAssistant,
		Content:    a.Text(),
		Citations:  a.Citations(),
		Incomplete: !a.Complete(),
	}
	if err := s.Append(context.Background(), turn); err != nil {
		logger.Warn("Record answer in session %s: %v", s.id, err)
	}
}

// Append adds a turn at the end of the log.
func (s *Session) Append(ctx context.Context, turn domain.Turn) error {
	if s.closed.Load() {
		return domain.ErrSessionClosed
	}
	if !turn.Role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, turn.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turn.Position = len(s.turns)
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if s.store != nil {
		if err := s.store.AppendTurn(ctx, s.id, turn); err != nil {
			return fmt.Errorf("store turn: %w", err)
		}
	}
	s.turns = append(s.turns, turn)
	return nil
}

// All returns the turns in insertion order.
func (s *Session) All() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.turns)
}

// Clear resets the log to the greeting turn.
func (s *Session) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return domain.ErrSessionClosed
	}
	if s.busy.Load() {
		return domain.ErrQueryInProgress
	}

	s.mu.Lock()
	if s.store != nil {
		if err := s.store.ClearTurns(ctx, s.id); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("clear turns: %w", err)
		}
	}
	s.turns = nil
	s.mu.Unlock()

	return s.Append(ctx, domain.Turn{Role: domain.RoleAssistant, Content: s.greeting})
}

// load replaces the log with stored turns.
func (s *Session) load(turns []domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = slices.Clone(turns)
}

// sessionAnswer records the exchange when the wrapped answer ends.
type sessionAnswer struct {
	driving.Answer
	session *Session
	once    sync.Once
}

// Fragments yields the wrapped fragments and records the answer afterwards.
func (a *sessionAnswer) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer a.end()
		for fragment, err := range a.Answer.Fragments() {
			if !yield(fragment, err) {
				return
			}
		}
	}
}

// Close abandons the answer and records what was consumed.
func (a *sessionAnswer) Close() error {
	err := a.Answer.Close()
	a.end()
	return err
}

func (a *sessionAnswer) end() {
	a.once.Do(func() {
		_ = a.Answer.Close()
		a.session.record(a.Answer)
	})
}

// SessionManager creates and tracks chat sessions.
type SessionManager struct {
	engine   driving.QueryService
	store    driven.ChatStore
	greeting string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a session manager.
// The store is optional; without it sessions live in memory only.
func NewSessionManager(engine driving.QueryService, store driven.ChatStore, greeting string) *SessionManager {
	if greeting == "" {
		greeting = domain.DefaultGreeting
	}
	return &SessionManager{
		engine:   engine,
		store:    store,
		greeting: greeting,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session holding only the greeting turn.
func (m *SessionManager) Create(ctx context.Context) (driving.ChatSession, error) {
	return m.create(ctx, uuid.New().String())
}

func (m *SessionManager) create(ctx context.Context, id string) (*Session, error) {
	s := newSession(id, m.engine, m.store, m.greeting)
	if err := s.Clear(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Debug("Session %s created", id)
	return s, nil
}

// Resume reopens a stored session, or creates it if nothing is stored.
func (m *SessionManager) Resume(ctx context.Context, id string) (driving.ChatSession, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	live, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return live, nil
	}

	if m.store != nil {
		turns, err := m.store.Turns(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		if len(turns) > 0 {
			s := newSession(id, m.engine, m.store, m.greeting)
			s.load(turns)

			m.mu.Lock()
			m.sessions[id] = s
			m.mu.Unlock()

			logger.Debug("Session %s resumed with %d turns", id, len(turns))
			return s, nil
		}
	}
	return m.create(ctx, id)
}

// Get returns a live session.
func (m *SessionManager) Get(id string) (driving.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// End tears a session down. Stored turns are kept.
func (m *SessionManager) End(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	s.closed.Store(true)
	logger.Debug("Session %s ended", id)
	return nil
}

// Stored returns the IDs of persisted sessions.
func (m *SessionManager) Stored(ctx context.Context) ([]string, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.Sessions(ctx)
}
