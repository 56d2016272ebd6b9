//go:build integration

package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nad-devs/Logger/internal/events"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testConversationID() string {
	return "integration-test-" + uuid.New().String()[:8]
}

func TestIntegration_PromptAndEditRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	convID := testConversationID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	// Sequence numbers are assigned in insertion order.
	for i, text := range []string{"why does the cache miss?", "add a TTL to the cache entry"} {
		if _, err := s.InsertPrompt(ctx, events.Prompt{
			ConversationID: convID,
			Text:           text,
			Source:         "cc",
			IsQuestion:     i == 0,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("InsertPrompt failed: %v", err)
		}
	}

	editID, err := s.InsertEdit(ctx, events.Edit{
		ConversationID: convID,
		FilePath:       "cache.go",
		OldContent:     "old body",
		NewContent:     "new body",
		Source:         "cc",
		Timestamp:      base.Add(30 * time.Second),
	})
	if err != nil {
		t.Fatalf("InsertEdit failed: %v", err)
	}
	if editID == uuid.Nil {
		t.Fatal("expected non-nil edit ID")
	}

	data, err := s.GetConversationData(ctx, convID)
	if err != nil {
		t.Fatalf("GetConversationData failed: %v", err)
	}
	if len(data.Prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(data.Prompts))
	}
	if data.Prompts[0].SequenceNumber != 1 || data.Prompts[1].SequenceNumber != 2 {
		t.Errorf("expected sequence 1,2, got %d,%d",
			data.Prompts[0].SequenceNumber, data.Prompts[1].SequenceNumber)
	}
	if !data.Prompts[0].IsQuestion {
		t.Error("expected first prompt to be a question")
	}
	if len(data.Edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(data.Edits))
	}
	if data.Edits[0].FilePath != "cache.go" {
		t.Errorf("expected file cache.go, got %q", data.Edits[0].FilePath)
	}

	last, err := s.LastEditForFile(ctx, convID, "cache.go")
	if err != nil {
		t.Fatalf("LastEditForFile failed: %v", err)
	}
	if last == nil || last.ID != editID {
		t.Errorf("expected last edit %s, got %+v", editID, last)
	}

	missing, err := s.LastEditForFile(ctx, convID, "nonexistent.go")
	if err != nil {
		t.Fatalf("LastEditForFile for unknown file failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown file, got %+v", missing)
	}
}

func TestIntegration_GetConversationData_Unknown(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	data, err := s.GetConversationData(ctx, testConversationID())
	if err != nil {
		t.Fatalf("GetConversationData failed: %v", err)
	}
	if len(data.Prompts) != 0 || len(data.Edits) != 0 {
		t.Errorf("expected empty history for unknown conversation, got %d prompts, %d edits",
			len(data.Prompts), len(data.Edits))
	}
}

func TestIntegration_UpsertAnalysisResultOverwrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	convID := testConversationID()

	first := AnalysisResult{
		ConversationID: convID,
		Analyzer:       "critical_thinking",
		Score:          4.5,
		Verdict:        "moderately_critical",
		Confidence:     0.6,
		Details:        json.RawMessage(`{"count":2}`),
		AnalyzedAt:     time.Now().UTC(),
	}
	if err := s.UpsertAnalysisResult(ctx, first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second := first
	second.Score = 7.5
	second.Verdict = "highly_critical"
	second.Details = json.RawMessage(`{"count":5}`)
	if err := s.UpsertAnalysisResult(ctx, second); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	results, err := s.GetAnalysisResults(ctx, convID)
	if err != nil {
		t.Fatalf("GetAnalysisResults failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one row after re-upsert on the same key, got %d", len(results))
	}
	if results[0].Score != 7.5 {
		t.Errorf("expected overwritten score 7.5, got %f", results[0].Score)
	}
	if results[0].Verdict != "highly_critical" {
		t.Errorf("expected overwritten verdict, got %q", results[0].Verdict)
	}
}

func TestIntegration_ListPendingConversations(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	convID := testConversationID()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if _, err := s.InsertPrompt(ctx, events.Prompt{
			ConversationID: convID,
			Text:           "prompt body with enough length",
			Source:         "cc",
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("InsertPrompt failed: %v", err)
		}
	}

	pending, err := s.ListPendingConversations(ctx, 3)
	if err != nil {
		t.Fatalf("ListPendingConversations failed: %v", err)
	}
	if !containsID(pending, convID) {
		t.Errorf("expected %s in pending list", convID)
	}

	// Any persisted result removes the conversation from the pending set.
	if err := s.UpsertAnalysisResult(ctx, AnalysisResult{
		ConversationID: convID,
		Analyzer:       "critical_thinking",
		Score:          5,
		Verdict:        "moderately_critical",
		Confidence:     0.5,
		Details:        json.RawMessage(`{}`),
		AnalyzedAt:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("UpsertAnalysisResult failed: %v", err)
	}

	pending, err = s.ListPendingConversations(ctx, 3)
	if err != nil {
		t.Fatalf("ListPendingConversations after upsert failed: %v", err)
	}
	if containsID(pending, convID) {
		t.Errorf("expected %s to leave the pending list once analyzed", convID)
	}
}

func TestIntegration_DebuggingSessionLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	convID := testConversationID()
	start := time.Now().UTC().Truncate(time.Millisecond)

	active, err := s.ActiveDebuggingSession(ctx, convID)
	if err != nil {
		t.Fatalf("ActiveDebuggingSession failed: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no session yet, got %+v", active)
	}

	opened, err := s.OpenDebuggingSession(ctx, convID, start)
	if err != nil {
		t.Fatalf("OpenDebuggingSession failed: %v", err)
	}

	if err := s.TouchDebuggingSession(ctx, opened.ID, start.Add(time.Minute)); err != nil {
		t.Fatalf("TouchDebuggingSession failed: %v", err)
	}

	active, err = s.ActiveDebuggingSession(ctx, convID)
	if err != nil {
		t.Fatalf("ActiveDebuggingSession after touch failed: %v", err)
	}
	if active == nil || active.ID != opened.ID {
		t.Fatalf("expected session %s active, got %+v", opened.ID, active)
	}
	if active.PromptCount != 2 {
		t.Errorf("expected prompt count 2 after touch, got %d", active.PromptCount)
	}

	if err := s.CloseDebuggingSession(ctx, opened.ID, start.Add(2*time.Minute)); err != nil {
		t.Fatalf("CloseDebuggingSession failed: %v", err)
	}

	active, err = s.ActiveDebuggingSession(ctx, convID)
	if err != nil {
		t.Fatalf("ActiveDebuggingSession after close failed: %v", err)
	}
	if active != nil {
		t.Errorf("expected no active session after close, got %+v", active)
	}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
