package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClientFrame is a message from the browser.
type wsClientFrame struct {
	Type    string `json:"type"` // "message" or "interrupt"
	Message string `json:"message,omitempty"`
}

// wsServerFrame is a message to the browser.
type wsServerFrame struct {
	Type    string `json:"type"` // "delta", "done" or "error"
	TurnID  string `json:"turn_id,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// chatConn serializes writes to one WebSocket.
type chatConn struct {
	conn   *websocket.Conn
	connMu sync.Mutex
}

func (c *chatConn) send(f wsServerFrame) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn.WriteJSON(f)
}

// handleChatWS carries chat turns over a WebSocket. Reading continues while
// a turn streams, so an interrupt frame reaches the turn between chunks. A
// new message supersedes the turn still streaming for the session.
func (r *Router) handleChatWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("chat_ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := sessionKey(req.Context())
	cc := &chatConn{conn: conn}
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Printf("chat_ws: connection closed for session %q", session)
			} else {
				r.logger.Printf("chat_ws: read error for session %q: %v", session, err)
			}
			// Stop whatever is still streaming on this connection.
			cancel()
			return
		}

		var frame wsClientFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			_ = cc.send(wsServerFrame{Type: "error", Error: "invalid frame"})
			continue
		}

		switch frame.Type {
		case "interrupt":
			r.interrupts.Interrupt(session)

		case "message":
			if strings.TrimSpace(frame.Message) == "" {
				_ = cc.send(wsServerFrame{Type: "error", Error: "message is required"})
				continue
			}
			turn, release, err := r.startTurn(ctx, session, frame.Message, r.cfg.Stream)
			if err != nil {
				r.logger.Printf("chat_ws: %v", err)
				_ = cc.send(wsServerFrame{Type: "error", Error: err.Error()})
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer release()
				for c := range turn.Chunks() {
					var err error
					switch {
					case c.Err != nil:
						err = cc.send(wsServerFrame{Type: "error", TurnID: turn.ID, Error: c.Err.Error()})
					case c.Final:
						if c.Content != "" {
							err = cc.send(wsServerFrame{Type: "delta", TurnID: turn.ID, Content: c.Content})
						}
						if err == nil {
							err = cc.send(wsServerFrame{Type: "done", TurnID: turn.ID})
						}
					default:
						err = cc.send(wsServerFrame{Type: "delta", TurnID: turn.ID, Content: c.Content})
					}
					if err != nil {
						return
					}
				}
			}()

		default:
			_ = cc.send(wsServerFrame{Type: "error", Error: "unknown frame type"})
		}
	}
}
