package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nad-devs/Logger/internal/events"
)

// InsertPrompt appends a prompt event. The sequence number is assigned
// here from the current per-conversation count, so ingestion must stay
// single-writer per conversation (it is: one bus consumer).
func (s *Store) InsertPrompt(ctx context.Context, p events.Prompt) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO prompts (id, conversation_id, text, source, sequence_number, is_question, is_debugging, created_at)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM prompts WHERE conversation_id = $2),
			$5, $6, $7)`,
		id, p.ConversationID, p.Text, p.Source, p.IsQuestion, p.IsDebugging, p.Timestamp,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert prompt: %w", err)
	}
	return id, nil
}

// InsertEdit appends an edit event.
func (s *Store) InsertEdit(ctx context.Context, e events.Edit) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO edits (id, conversation_id, file_path, old_content, new_content, source, reverted_edit_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, e.ConversationID, e.FilePath, e.OldContent, e.NewContent, e.Source, e.RevertedEditID, e.Timestamp,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert edit: %w", err)
	}
	return id, nil
}

// LastEditForFile returns the most recent edit of a file within a
// conversation, or nil when the file has no history yet.
func (s *Store) LastEditForFile(ctx context.Context, conversationID, filePath string) (*events.Edit, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, file_path, old_content, new_content, source, reverted_edit_id, created_at
		FROM edits
		WHERE conversation_id = $1 AND file_path = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		conversationID, filePath,
	)
	var e events.Edit
	err := row.Scan(&e.ID, &e.ConversationID, &e.FilePath, &e.OldContent, &e.NewContent, &e.Source, &e.RevertedEditID, &e.Timestamp)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("last edit for file: %w", err)
	}
	return &e, nil
}

// GetConversationData returns the ordered prompt and edit history for a
// conversation id. An unknown id yields empty slices, not an error.
func (s *Store) GetConversationData(ctx context.Context, conversationID string) (events.ConversationData, error) {
	data := events.ConversationData{ConversationID: conversationID}

	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, text, source, sequence_number, is_question, is_debugging, created_at
		FROM prompts
		WHERE conversation_id = $1
		ORDER BY created_at, sequence_number`,
		conversationID,
	)
	if err != nil {
		return data, fmt.Errorf("query prompts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p events.Prompt
		if err := rows.Scan(&p.ID, &p.ConversationID, &p.Text, &p.Source, &p.SequenceNumber, &p.IsQuestion, &p.IsDebugging, &p.Timestamp); err != nil {
			return data, fmt.Errorf("scan prompt: %w", err)
		}
		data.Prompts = append(data.Prompts, p)
	}
	if err := rows.Err(); err != nil {
		return data, fmt.Errorf("iterate prompts: %w", err)
	}

	editRows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, file_path, old_content, new_content, source, reverted_edit_id, created_at
		FROM edits
		WHERE conversation_id = $1
		ORDER BY created_at`,
		conversationID,
	)
	if err != nil {
		return data, fmt.Errorf("query edits: %w", err)
	}
	defer editRows.Close()
	for editRows.Next() {
		var e events.Edit
		if err := editRows.Scan(&e.ID, &e.ConversationID, &e.FilePath, &e.OldContent, &e.NewContent, &e.Source, &e.RevertedEditID, &e.Timestamp); err != nil {
			return data, fmt.Errorf("scan edit: %w", err)
		}
		data.Edits = append(data.Edits, e)
	}
	if err := editRows.Err(); err != nil {
		return data, fmt.Errorf("iterate edits: %w", err)
	}

	return data, nil
}

// ListPendingConversations returns conversation ids with at least
// minPrompts prompts and no analysis results yet.
func (s *Store) ListPendingConversations(ctx context.Context, minPrompts int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.conversation_id
		FROM prompts p
		LEFT JOIN analysis_results r ON r.conversation_id = p.conversation_id
		WHERE r.conversation_id IS NULL
		GROUP BY p.conversation_id
		HAVING COUNT(*) >= $1
		ORDER BY MIN(p.created_at)`,
		minPrompts,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation ids: %w", err)
	}
	return ids, nil
}
