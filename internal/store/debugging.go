package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DebuggingSession is explicit per-conversation debugging state. It
// replaces ambient in-process maps: the tracker reads and writes rows, so
// an ingest restart does not lose open sessions.
type DebuggingSession struct {
	ID             uuid.UUID
	ConversationID string
	StartedAt      time.Time
	LastActivityAt time.Time
	PromptCount    int
}

// ActiveDebuggingSession returns the open session for a conversation, or
// nil when there is none.
func (s *Store) ActiveDebuggingSession(ctx context.Context, conversationID string) (*DebuggingSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, started_at, last_activity_at, prompt_count
		FROM debugging_sessions
		WHERE conversation_id = $1 AND closed_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1`,
		conversationID,
	)
	var ds DebuggingSession
	err := row.Scan(&ds.ID, &ds.ConversationID, &ds.StartedAt, &ds.LastActivityAt, &ds.PromptCount)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("active debugging session: %w", err)
	}
	return &ds, nil
}

// OpenDebuggingSession starts a new session at ts.
func (s *Store) OpenDebuggingSession(ctx context.Context, conversationID string, ts time.Time) (*DebuggingSession, error) {
	ds := DebuggingSession{
		ID:             uuid.New(),
		ConversationID: conversationID,
		StartedAt:      ts,
		LastActivityAt: ts,
		PromptCount:    1,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO debugging_sessions (id, conversation_id, started_at, last_activity_at, prompt_count)
		VALUES ($1, $2, $3, $4, $5)`,
		ds.ID, ds.ConversationID, ds.StartedAt, ds.LastActivityAt, ds.PromptCount,
	)
	if err != nil {
		return nil, fmt.Errorf("open debugging session: %w", err)
	}
	return &ds, nil
}

// TouchDebuggingSession records continued debugging activity.
func (s *Store) TouchDebuggingSession(ctx context.Context, id uuid.UUID, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE debugging_sessions
		SET last_activity_at = $1, prompt_count = prompt_count + 1
		WHERE id = $2`,
		ts, id,
	)
	if err != nil {
		return fmt.Errorf("touch debugging session: %w", err)
	}
	return nil
}

// CloseDebuggingSession ends a session.
func (s *Store) CloseDebuggingSession(ctx context.Context, id uuid.UUID, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE debugging_sessions SET closed_at = $1 WHERE id = $2`,
		ts, id,
	)
	if err != nil {
		return fmt.Errorf("close debugging session: %w", err)
	}
	return nil
}
