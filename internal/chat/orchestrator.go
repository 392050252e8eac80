// Package chat drives one conversational turn: it opens a completion against
// the chat model, relays the reply chunk by chunk while honoring cooperative
// interruption, and commits session memory once the turn is over.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/lukasbauer/samanta/internal/eventlog"
	"github.com/lukasbauer/samanta/internal/interrupt"
	"github.com/lukasbauer/samanta/internal/llm"
	"github.com/lukasbauer/samanta/internal/metrics"
)

const (
	// DefaultFlushGrace lets the model client's background memory write land
	// before the flush is issued.
	DefaultFlushGrace = 100 * time.Millisecond

	// DefaultFlushTimeout bounds the flush call itself.
	DefaultFlushTimeout = 10 * time.Second
)

// ErrConsumed is yielded when a turn's chunks are iterated a second time.
var ErrConsumed = errors.New("chat: turn already consumed")

// Outcome labels how a turn ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeFailed      Outcome = "failed"
	// OutcomeAbandoned means the consumer stopped reading before the end.
	OutcomeAbandoned Outcome = "abandoned"
)

// Flusher commits a session's buffered memory.
type Flusher interface {
	Flush(ctx context.Context, sessionKey string) error
}

// Events receives turn lifecycle events. *eventlog.Logger satisfies it.
type Events interface {
	LogAsync(turnID, sessionKey string, eventType eventlog.EventType, data map[string]any)
}

// Config tunes the orchestrator.
type Config struct {
	SystemPrompt string
	FlushGrace   time.Duration
	FlushTimeout time.Duration
}

// TurnRequest describes one user turn.
type TurnRequest struct {
	Prompt string
	// SystemPrompt overrides Config.SystemPrompt when set.
	SystemPrompt string
	// SessionKey selects the memory user. Empty runs the turn anonymously:
	// no memory is read or written and no flush is issued.
	SessionKey string
	Streaming  bool
}

// Chunk is one element of a turn's reply. Final marks the last chunk; a
// chunk with Err set ends the sequence without a Final marker.
type Chunk struct {
	Content string
	Final   bool
	Err     error
}

// Orchestrator runs conversational turns.
type Orchestrator struct {
	cfg     Config
	client  llm.Client
	flusher Flusher
	events  Events
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New creates an Orchestrator. flusher and events may be nil.
func New(cfg Config, client llm.Client, flusher Flusher, events Events, logger *log.Logger, m *metrics.Metrics) *Orchestrator {
	if cfg.FlushGrace <= 0 {
		cfg.FlushGrace = DefaultFlushGrace
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = llm.SystemPromptItalian
	}
	return &Orchestrator{cfg: cfg, client: client, flusher: flusher, events: events, logger: logger, metrics: m}
}

// Converse opens a turn. tok is checked between chunks; a nil token never
// interrupts. When the model cannot be reached the memory flush is still
// attempted before the error, which wraps llm.ErrUnavailable, is returned.
func (o *Orchestrator) Converse(ctx context.Context, req TurnRequest, tok *interrupt.Token) (*Turn, error) {
	t := &Turn{
		ID:      uuid.NewString(),
		o:       o,
		ctx:     ctx,
		session: req.SessionKey,
		token:   tok,
	}

	if req.SessionKey == interrupt.AnonymousSession {
		o.logger.Printf("chat: turn %s has no session key, continuing without memory", t.ID)
	}
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = o.cfg.SystemPrompt
	}
	llmReq := llm.Request{
		Messages: llm.WithSystemPrompt(prompt, []llm.Message{{Role: "user", Content: req.Prompt}}),
		User:     req.SessionKey,
	}
	o.event(t, eventlog.EventTurnStarted, map[string]any{"streaming": req.Streaming})

	var err error
	if req.Streaming {
		t.stream, err = o.client.Stream(ctx, llmReq)
	} else {
		t.reply, err = o.client.Complete(ctx, llmReq)
	}
	if err != nil {
		if !errors.Is(err, llm.ErrUnavailable) {
			err = fmt.Errorf("%w: %w", llm.ErrUnavailable, err)
		}
		t.finish(OutcomeFailed, err)
		return nil, fmt.Errorf("failed to open turn: %w", err)
	}
	return t, nil
}

func (o *Orchestrator) event(t *Turn, eventType eventlog.EventType, data map[string]any) {
	if o.events != nil {
		o.events.LogAsync(t.ID, t.session, eventType, data)
	}
}

// flush waits out the grace interval and commits the session's memory.
// Failures are reported and swallowed.
func (o *Orchestrator) flush(t *Turn) {
	if t.session == interrupt.AnonymousSession || o.flusher == nil {
		return
	}
	time.Sleep(o.cfg.FlushGrace)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), o.cfg.FlushTimeout)
	defer cancel()
	if err := o.flusher.Flush(ctx, t.session); err != nil {
		o.logger.Printf("chat: memory flush for turn %s failed: %v", t.ID, err)
		sentry.CaptureException(fmt.Errorf("memory flush failed: %w", err))
		o.metrics.RecordFlushFailure()
		o.event(t, eventlog.EventMemoryFlushFailed, map[string]any{"error": err.Error()})
		return
	}
	o.event(t, eventlog.EventMemoryFlushed, nil)
}

// Turn is one in-flight exchange. Its chunks can be consumed once.
type Turn struct {
	ID string

	o       *Orchestrator
	ctx     context.Context
	session string
	token   *interrupt.Token

	stream llm.Stream // nil for non-streamed turns
	reply  string

	used   atomic.Bool
	once   sync.Once
	chunks int
}

// Chunks returns the reply as a single-use sequence. The memory flush runs
// after the sequence ends, before the range loop over it returns.
func (t *Turn) Chunks() iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if !t.used.CompareAndSwap(false, true) {
			yield(Chunk{Err: ErrConsumed})
			return
		}
		outcome, err := t.relay(yield)
		t.finish(outcome, err)
	}
}

func (t *Turn) relay(yield func(Chunk) bool) (Outcome, error) {
	if t.stream == nil {
		t.chunks = 1
		if !yield(Chunk{Content: t.reply, Final: true}) {
			return OutcomeAbandoned, nil
		}
		return OutcomeCompleted, nil
	}

	for {
		if t.token.Interrupted() {
			yield(Chunk{Final: true})
			return OutcomeInterrupted, nil
		}
		d, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			yield(Chunk{Final: true})
			return OutcomeCompleted, nil
		}
		if err != nil {
			if ctxErr := t.ctx.Err(); ctxErr != nil {
				return OutcomeAbandoned, ctxErr
			}
			err = fmt.Errorf("failed to read reply: %w", err)
			yield(Chunk{Err: err})
			return OutcomeFailed, err
		}
		if d.Content != "" {
			t.chunks++
			if !yield(Chunk{Content: d.Content}) {
				return OutcomeAbandoned, nil
			}
		}
		if d.FinishReason == llm.FinishStop {
			yield(Chunk{Final: true})
			return OutcomeCompleted, nil
		}
	}
}

// Close ends a turn whose chunks were never consumed. It is a no-op once the
// turn has finished.
func (t *Turn) Close() {
	if t.used.CompareAndSwap(false, true) {
		t.finish(OutcomeAbandoned, nil)
	}
}

func (t *Turn) finish(outcome Outcome, err error) {
	t.once.Do(func() {
		o := t.o
		if t.stream != nil {
			_ = t.stream.Close()
		}
		o.metrics.RecordTurn(string(outcome), t.chunks)

		switch outcome {
		case OutcomeFailed:
			o.logger.Printf("chat: turn %s failed: %v", t.ID, err)
			o.event(t, eventlog.EventTurnFailed, map[string]any{"error": err.Error(), "chunks": t.chunks})
		case OutcomeInterrupted:
			o.logger.Printf("chat: turn %s interrupted after %d chunks", t.ID, t.chunks)
			o.event(t, eventlog.EventTurnInterrupted, map[string]any{"chunks": t.chunks})
		default:
			o.event(t, eventlog.EventTurnCompleted, map[string]any{"chunks": t.chunks, "outcome": string(outcome)})
		}

		o.flush(t)
	})
}
