// Package events defines the two raw event kinds the pipeline consumes.
// Normalization of editor hook payloads into these shapes happens in the
// ingest layer; everything downstream treats them as immutable.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is a single user prompt captured from an editor hook.
type Prompt struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text"`
	Source         string    `json:"source"` // e.g. "cc", "cursor", "vscode"
	SequenceNumber int       `json:"sequence_number"`
	IsQuestion     bool      `json:"is_question"`
	IsDebugging    bool      `json:"is_debugging"`
	Timestamp      time.Time `json:"timestamp"`
}

// Edit is a single file modification captured from an editor hook.
type Edit struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID string     `json:"conversation_id"`
	FilePath       string     `json:"file_path"`
	OldContent     string     `json:"old_content"`
	NewContent     string     `json:"new_content"`
	Source         string     `json:"source"`
	RevertedEditID *uuid.UUID `json:"reverted_edit_id,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// ConversationData is the ordered event history for one conversation id.
// Empty slices are valid: absence of data is not an error condition.
type ConversationData struct {
	ConversationID string
	Prompts        []Prompt
	Edits          []Edit
}

// Span returns the wall-clock extent of the conversation, from the first
// prompt to the last event of either kind. Zero when there are no prompts.
func (c ConversationData) Span() time.Duration {
	if len(c.Prompts) == 0 {
		return 0
	}
	start := c.Prompts[0].Timestamp
	end := c.Prompts[len(c.Prompts)-1].Timestamp
	if n := len(c.Edits); n > 0 && c.Edits[n-1].Timestamp.After(end) {
		end = c.Edits[n-1].Timestamp
	}
	if end.Before(start) {
		return 0
	}
	return end.Sub(start)
}
