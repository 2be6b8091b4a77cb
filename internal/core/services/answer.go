package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
)

// Ensure answer implements the interface.
var _ driving.Answer = (*answer)(nil)

// opener runs the intermediate synthesis steps and starts the final stream.
type opener func(ctx context.Context) (driven.TokenStream, error)

// answer is a pull-based streamed reply.
// Generation starts on the first pull; nothing runs in the background.
type answer struct {
	ctx       context.Context
	open      opener
	sources   []domain.ScoredChunk
	citations []domain.Citation

	consumed atomic.Bool

	mu       sync.Mutex
	state    domain.QueryState
	text     strings.Builder
	stream   driven.TokenStream
	complete bool
	closed   bool
	err      error
}

func newAnswer(ctx context.Context) *answer {
	return &answer{ctx: ctx, state: domain.QueryIdle}
}

// Fragments yields the answer text as the model produces it.
func (a *answer) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !a.consumed.CompareAndSwap(false, true) {
			yield("", domain.ErrStreamConsumed)
			return
		}

		stream, err := a.start()
		if err != nil {
			yield("", err)
			return
		}
		if stream == nil {
			return // closed before the first pull
		}

		for {
			fragment, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				a.finish()
				return
			}
			if err != nil {
				if ferr := a.fail(err); ferr != nil {
					yield("", ferr)
				}
				return
			}
			if fragment == "" {
				continue
			}
			if !a.received(fragment) {
				return
			}
			if !yield(fragment, nil) {
				_ = a.Close()
				return
			}
		}
	}
}

// start opens the model stream unless the answer was already closed.
func (a *answer) start() (driven.TokenStream, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, nil
	}
	a.mu.Unlock()

	done := logger.Stage("Generating")
	stream, err := a.open(a.ctx)
	done()
	if err != nil {
		return nil, a.fail(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		_ = stream.Close()
		return nil, nil
	}
	a.stream = stream
	return stream, nil
}

// received records a fragment. It returns false if the answer was closed meanwhile.
func (a *answer) received(fragment string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	if a.state == domain.QueryGenerating {
		a.state = domain.QueryStreaming
	}
	a.text.WriteString(fragment)
	return true
}

func (a *answer) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.IsTerminal() {
		return
	}
	a.state = domain.QueryDone
	a.complete = true
	a.releaseLocked()
	logger.Debug("Answer complete: %d characters", a.text.Len())
}

// fail moves the answer to Failed and returns the classified error.
// It returns nil when the answer already ended, e.g. closed by the consumer.
func (a *answer) fail(err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.IsTerminal() {
		return a.err
	}
	a.err = classifyProviderError(err)
	a.state = domain.QueryFailed
	a.releaseLocked()
	logger.Warn("Answer failed: %v", a.err)
	return a.err
}

// setState applies a lifecycle transition. Invalid transitions are ignored.
func (a *answer) setState(next domain.QueryState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.CanTransition(next) {
		a.state = next
	}
}

func (a *answer) releaseLocked() {
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			logger.Debug("Close stream: %v", err)
		}
		a.stream = nil
	}
}

// Text returns the text consumed so far.
func (a *answer) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text.String()
}

// Citations returns the contributing sources.
func (a *answer) Citations() []domain.Citation {
	out := make([]domain.Citation, len(a.citations))
	copy(out, a.citations)
	return out
}

// Sources returns the contributing chunks with their scores.
func (a *answer) Sources() []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(a.sources))
	copy(out, a.sources)
	return out
}

// State returns the current lifecycle state.
func (a *answer) State() domain.QueryState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Complete reports whether the full answer was consumed.
func (a *answer) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.complete
}

// Err returns the failure that ended the stream, if any.
func (a *answer) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Close abandons the answer and releases the model connection.
// An abandoned answer ends in Done with Complete false.
func (a *answer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if !a.state.IsTerminal() {
		a.state = domain.QueryDone
		logger.Debug("Answer abandoned after %d characters", a.text.Len())
	}
	a.releaseLocked()
	return nil
}

// classifyProviderError maps a provider failure onto the query error kinds.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrGenerationTimeout) || errors.Is(err, domain.ErrProviderError) ||
		errors.Is(err, context.Canceled) {
		return err
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %w", domain.ErrGenerationTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrProviderError, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var statusErr *domain.ProviderStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Timeout()
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
