package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of turn event
type EventType string

const (
	EventTurnStarted            EventType = "turn_started"
	EventTurnCompleted          EventType = "turn_completed"
	EventTurnInterrupted        EventType = "turn_interrupted"
	EventTurnFailed             EventType = "turn_failed"
	EventMemoryFlushed          EventType = "memory_flushed"
	EventMemoryFlushFailed      EventType = "memory_flush_failed"
	EventTranscriptionCompleted EventType = "transcription_completed"
	EventTranscriptionFailed    EventType = "transcription_failed"
	EventVoiceDetected          EventType = "voice_detected"
)

const schema = `
CREATE TABLE IF NOT EXISTS turn_events (
	id          BIGSERIAL PRIMARY KEY,
	turn_id     TEXT NOT NULL,
	session_key TEXT NOT NULL DEFAULT '',
	event_type  TEXT NOT NULL,
	event_data  JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS turn_events_turn_id_idx ON turn_events (turn_id);
`

// Logger provides async event logging to the database
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger. A nil pool turns every call into a no-op.
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Migrate creates the events table if it does not exist.
func (l *Logger) Migrate(ctx context.Context) error {
	if l == nil || l.db == nil {
		return nil
	}
	if _, err := l.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create turn_events: %w", err)
	}
	return nil
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, turnID, sessionKey string, eventType EventType, data map[string]any) error {
	if l == nil || l.db == nil || turnID == "" {
		return nil // Silently skip if no DB or turn ID
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO turn_events (turn_id, session_key, event_type, event_data)
		VALUES ($1, $2, $3, $4)
	`, turnID, sessionKey, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(turnID, sessionKey string, eventType EventType, data map[string]any) {
	if l == nil || l.db == nil || turnID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, turnID, sessionKey, eventType, data)
	}()
}
