// Package ingest normalizes editor-hook events from the bus into
// append-only prompt and edit rows, and tracks debugging sessions.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/nad-devs/Logger/internal/config"
	"github.com/nad-devs/Logger/internal/events"
	"github.com/nad-devs/Logger/internal/similarity"
	"github.com/nad-devs/Logger/internal/store"
)

// PromptEvent is the hook payload for a recorded prompt.
type PromptEvent struct {
	ConversationID string    `json:"conversation_id"`
	Text           string    `json:"text"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
}

// EditEvent is the hook payload for a recorded file edit.
type EditEvent struct {
	ConversationID string    `json:"conversation_id"`
	FilePath       string    `json:"file_path"`
	OldContent     string    `json:"old_content"`
	NewContent     string    `json:"new_content"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
}

// debuggingIdleWindow closes a debugging session after this much silence.
const debuggingIdleWindow = 10 * time.Minute

var debuggingRe = regexp.MustCompile(`(?i)\b(error|bug|broken|crash(es|ed|ing)?|fail(s|ed|ing)?|doesn't work|not working|exception|panic|stack trace|traceback)\b`)

type Consumer struct {
	store  *store.Store
	cal    config.Calibration
	logger *slog.Logger
}

func New(s *store.Store, cal config.Calibration, logger *slog.Logger) *Consumer {
	return &Consumer{store: s, cal: cal, logger: logger}
}

// HandlePromptRecorded is the bus handler for prompt hook events. A bad
// payload or store failure is logged and dropped; ingestion of one event
// never takes the consumer down.
func (c *Consumer) HandlePromptRecorded(subject string, data []byte) {
	ctx := context.Background()

	var evt PromptEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("bad prompt event payload", "error", err)
		return
	}
	if evt.ConversationID == "" {
		c.logger.Warn("prompt event without conversation id dropped")
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	isDebugging := c.trackDebugging(ctx, evt)

	id, err := c.store.InsertPrompt(ctx, events.Prompt{
		ConversationID: evt.ConversationID,
		Text:           evt.Text,
		Source:         evt.Source,
		IsQuestion:     IsQuestion(evt.Text),
		IsDebugging:    isDebugging,
		Timestamp:      evt.Timestamp,
	})
	if err != nil {
		c.logger.Error("failed to insert prompt", "conversation_id", evt.ConversationID, "error", err)
		return
	}

	c.logger.Debug("prompt recorded",
		"prompt_id", id,
		"conversation_id", evt.ConversationID,
		"is_debugging", isDebugging,
	)
}

// HandleEditRecorded is the bus handler for edit hook events. When the new
// content restores the file's previous pre-edit state, the edit is linked
// to the edit it reverts.
func (c *Consumer) HandleEditRecorded(subject string, data []byte) {
	ctx := context.Background()

	var evt EditEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("bad edit event payload", "error", err)
		return
	}
	if evt.ConversationID == "" || evt.FilePath == "" {
		c.logger.Warn("edit event missing conversation id or file path dropped")
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	edit := events.Edit{
		ConversationID: evt.ConversationID,
		FilePath:       evt.FilePath,
		OldContent:     evt.OldContent,
		NewContent:     evt.NewContent,
		Source:         evt.Source,
		Timestamp:      evt.Timestamp,
	}

	prev, err := c.store.LastEditForFile(ctx, evt.ConversationID, evt.FilePath)
	if err != nil {
		c.logger.Warn("could not check edit history", "file_path", evt.FilePath, "error", err)
	} else if prev != nil && similarity.IsSimilarCode(evt.NewContent, prev.OldContent, c.cal.SimilarityThreshold) {
		edit.RevertedEditID = &prev.ID
	}

	id, err := c.store.InsertEdit(ctx, edit)
	if err != nil {
		c.logger.Error("failed to insert edit", "conversation_id", evt.ConversationID, "error", err)
		return
	}

	c.logger.Debug("edit recorded",
		"edit_id", id,
		"conversation_id", evt.ConversationID,
		"file_path", evt.FilePath,
		"reverted", edit.RevertedEditID != nil,
	)
}

// trackDebugging updates the conversation's debugging session state and
// reports whether this prompt belongs to one. State lives in the store, so
// a consumer restart picks up open sessions.
func (c *Consumer) trackDebugging(ctx context.Context, evt PromptEvent) bool {
	active, err := c.store.ActiveDebuggingSession(ctx, evt.ConversationID)
	if err != nil {
		c.logger.Warn("could not read debugging session", "conversation_id", evt.ConversationID, "error", err)
		return LooksLikeDebugging(evt.Text)
	}

	if active != nil {
		if evt.Timestamp.Sub(active.LastActivityAt) > debuggingIdleWindow {
			if err := c.store.CloseDebuggingSession(ctx, active.ID, evt.Timestamp); err != nil {
				c.logger.Warn("could not close debugging session", "error", err)
			}
			active = nil
		} else {
			if err := c.store.TouchDebuggingSession(ctx, active.ID, evt.Timestamp); err != nil {
				c.logger.Warn("could not touch debugging session", "error", err)
			}
			return true
		}
	}

	if LooksLikeDebugging(evt.Text) {
		if _, err := c.store.OpenDebuggingSession(ctx, evt.ConversationID, evt.Timestamp); err != nil {
			c.logger.Warn("could not open debugging session", "error", err)
		}
		return true
	}
	return false
}

// IsQuestion reports whether the prompt asks something.
func IsQuestion(text string) bool {
	return strings.Contains(text, "?")
}

// LooksLikeDebugging reports whether the prompt reads like a debugging
// request.
func LooksLikeDebugging(text string) bool {
	return debuggingRe.MatchString(text)
}
