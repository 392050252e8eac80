package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lukasbauer/samanta/internal/llm"
)

// Store defines the interface for a per-user conversational memory store.
type Store interface {
	// Context returns the memory prompt to inject for the user.
	Context(ctx context.Context, sessionKey string) (string, error)

	// Insert buffers a finished exchange for the user.
	Insert(ctx context.Context, sessionKey string, messages []llm.Message) error

	// Flush commits the user's buffered exchanges into memory.
	Flush(ctx context.Context, sessionKey string) error
}

const contextTemplate = "--# ADDITIONAL INFO #--\n%s\n--# DONE #--"

// insertTimeout bounds one background buffer write.
const insertTimeout = 10 * time.Second

// Client is an llm.Client that reads user memory into the system prompt and
// writes each finished exchange back in the background. Requests with an
// empty User pass through untouched.
type Client struct {
	inner  llm.Client
	store  Store
	logger *log.Logger

	wg sync.WaitGroup
}

// Augment wraps inner with memory read-through and write-back.
func Augment(inner llm.Client, store Store, logger *log.Logger) *Client {
	return &Client{inner: inner, store: store, logger: logger}
}

// Stream starts a streamed completion with the user's memory injected.
func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	if req.User == "" {
		return c.inner.Stream(ctx, req)
	}
	s, err := c.inner.Stream(ctx, c.withContext(ctx, req))
	if err != nil {
		return nil, err
	}
	return &recordingStream{inner: s, done: func(reply string) { c.insertAsync(req, reply) }}, nil
}

// Complete returns a completion with the user's memory injected.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if req.User == "" {
		return c.inner.Complete(ctx, req)
	}
	reply, err := c.inner.Complete(ctx, c.withContext(ctx, req))
	if err != nil {
		return "", err
	}
	c.insertAsync(req, reply)
	return reply, nil
}

// Flush commits the user's buffered exchanges.
func (c *Client) Flush(ctx context.Context, sessionKey string) error {
	return c.store.Flush(ctx, sessionKey)
}

// Wait blocks until all background buffer writes have finished.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) withContext(ctx context.Context, req llm.Request) llm.Request {
	memo, err := c.store.Context(ctx, req.User)
	if err != nil {
		c.logger.Printf("memory: context for %s unavailable: %v", req.User, err)
		return req
	}
	if strings.TrimSpace(memo) == "" {
		return req
	}

	block := fmt.Sprintf(contextTemplate, memo)
	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	if len(msgs) > 0 && msgs[0].Role == "system" {
		msgs[0].Content = msgs[0].Content + "\n\n" + block
	} else {
		msgs = llm.WithSystemPrompt(block, msgs)
	}
	req.Messages = msgs
	return req
}

func (c *Client) insertAsync(req llm.Request, reply string) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return
	}
	var exchange []llm.Message
	for _, m := range req.Messages {
		if m.Role != "system" {
			exchange = append(exchange, m)
		}
	}
	exchange = append(exchange, llm.Message{Role: "assistant", Content: reply})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		defer cancel()
		if err := c.store.Insert(ctx, req.User, exchange); err != nil {
			c.logger.Printf("memory: insert for %s failed: %v", req.User, err)
		}
	}()
}

// recordingStream accumulates the reply and reports it once, when the stream
// ends or is closed early.
type recordingStream struct {
	inner llm.Stream
	reply strings.Builder
	done  func(reply string)
	once  sync.Once
}

func (s *recordingStream) Recv() (llm.Delta, error) {
	d, err := s.inner.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.finish()
		}
		return d, err
	}
	s.reply.WriteString(d.Content)
	if d.FinishReason == llm.FinishStop {
		s.finish()
	}
	return d, nil
}

func (s *recordingStream) Close() error {
	s.finish()
	return s.inner.Close()
}

func (s *recordingStream) finish() {
	s.once.Do(func() { s.done(s.reply.String()) })
}
