package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lukasbauer/samanta/internal/chat"
)

var errDraining = errors.New("server is shutting down")

// handleInterrupt signals the caller's active turn to stop at its next
// chunk boundary. It always acknowledges; other sessions are unaffected.
func (r *Router) handleInterrupt(w http.ResponseWriter, req *http.Request) {
	session := sessionKey(req.Context())
	if r.interrupts.Interrupt(session) {
		r.logger.Printf("interrupt: signalled active turn for session %q", session)
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "interrupted", "result": true})
}

// startTurn registers a turn and its interrupt token and opens it. The
// returned release must be called once the turn's chunks are drained.
func (r *Router) startTurn(ctx context.Context, session, prompt string, streaming bool) (*chat.Turn, func(), error) {
	done, ok := r.turns.Begin()
	if !ok {
		return nil, nil, errDraining
	}
	tok := r.interrupts.Begin(session)
	release := func() {
		r.interrupts.End(session, tok)
		done()
	}

	turn, err := r.chat.Converse(ctx, chat.TurnRequest{
		Prompt:     prompt,
		SessionKey: session,
		Streaming:  streaming,
	}, tok)
	if err != nil {
		release()
		return nil, nil, err
	}
	return turn, func() {
		turn.Close()
		release()
	}, nil
}

func turnErrorStatus(err error) int {
	if errors.Is(err, errDraining) {
		return http.StatusServiceUnavailable
	}
	// llm.ErrUnavailable and anything unexpected
	return http.StatusInternalServerError
}

type sseDelta struct {
	Choices []sseChoice `json:"choices"`
}

type sseChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

func deltaFrame(content string) sseDelta {
	c := sseChoice{}
	c.Delta.Content = content
	return sseDelta{Choices: []sseChoice{c}}
}

// handleChat streams one turn as server-sent events in the OpenAI delta
// shape, ending with a literal [DONE] frame.
func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	turn, release, err := r.startTurn(req.Context(), sessionKey(req.Context()), body.Message, true)
	if err != nil {
		r.logger.Printf("chat: %v", err)
		if !errors.Is(err, errDraining) {
			r.capture(req, err, "chat: failed to open turn")
		}
		writeError(w, turnErrorStatus(err), err.Error())
		return
	}
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	for c := range turn.Chunks() {
		switch {
		case c.Err != nil:
			r.logger.Printf("chat: turn %s: %v", turn.ID, c.Err)
			r.capture(req, c.Err, "chat: stream failed")
			frame, _ := json.Marshal(map[string]string{"detail": c.Err.Error()})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", frame)
		case c.Final:
			if c.Content != "" {
				writeSSE(w, deltaFrame(c.Content))
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		default:
			writeSSE(w, deltaFrame(c.Content))
		}
		_ = rc.Flush()
	}
}

func writeSSE(w http.ResponseWriter, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", frame)
}
