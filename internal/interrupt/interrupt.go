// Package interrupt provides per-session cancellation tokens for
// conversational turns.
//
// A Token is checked cooperatively between response chunks. Interrupting one
// session never affects another, and a new turn always starts with a fresh
// token, so a stale interrupt from an earlier turn cannot leak forward.
package interrupt

import (
	"sync"
	"sync/atomic"
)

// AnonymousSession is the session key used when the caller supplies none.
const AnonymousSession = ""

// Token is a single-turn interrupt flag. The zero value is ready to use.
type Token struct {
	flag atomic.Bool
}

// Interrupt requests that the turn holding the token stop at its next check.
func (t *Token) Interrupt() {
	if t == nil {
		return
	}
	t.flag.Store(true)
}

// Interrupted reports whether Interrupt has been called.
func (t *Token) Interrupted() bool {
	if t == nil {
		return false
	}
	return t.flag.Load()
}

// Registry maps session keys to the token of their active turn.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// Begin installs a fresh token for session and returns it. A token left over
// from an earlier turn of the same session is replaced and interrupted, so
// at most one turn per session keeps streaming.
func (r *Registry) Begin(session string) *Token {
	tok := &Token{}
	r.mu.Lock()
	prev := r.tokens[session]
	r.tokens[session] = tok
	r.mu.Unlock()
	prev.Interrupt()
	return tok
}

// Interrupt flags the active turn of session. It reports whether a turn was
// active; interrupting an idle session is a no-op.
func (r *Registry) Interrupt(session string) bool {
	r.mu.Lock()
	tok, ok := r.tokens[session]
	r.mu.Unlock()
	if !ok {
		return false
	}
	tok.Interrupt()
	return true
}

// End removes tok if it is still the active token for session.
func (r *Registry) End(session string, tok *Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens[session] == tok {
		delete(r.tokens, session)
	}
}

// Active returns the number of sessions with a turn in flight.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
