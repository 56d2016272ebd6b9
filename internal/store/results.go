package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AnalysisResult is the persisted per-conversation, per-analyzer record.
type AnalysisResult struct {
	ConversationID string          `json:"conversation_id"`
	Analyzer       string          `json:"analyzer"`
	Score          float64         `json:"score"` // 0..10
	Verdict        string          `json:"verdict"`
	Confidence     float64         `json:"confidence"` // 0..1
	Details        json.RawMessage `json:"details"`
	AnalyzedAt     time.Time       `json:"analyzed_at"`
}

// UpsertAnalysisResult writes a result keyed by (conversation_id, analyzer).
// Re-running analysis overwrites the previous snapshot, so re-analysis is
// idempotent.
func (s *Store) UpsertAnalysisResult(ctx context.Context, r AnalysisResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_results (id, conversation_id, analyzer, score, verdict, confidence, details, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (conversation_id, analyzer) DO UPDATE
		SET score = EXCLUDED.score,
		    verdict = EXCLUDED.verdict,
		    confidence = EXCLUDED.confidence,
		    details = EXCLUDED.details,
		    analyzed_at = EXCLUDED.analyzed_at`,
		uuid.New(), r.ConversationID, r.Analyzer, r.Score, r.Verdict, r.Confidence, r.Details, r.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert analysis result: %w", err)
	}
	return nil
}

// GetAnalysisResults returns all persisted results for a conversation,
// empty when none exist.
func (s *Store) GetAnalysisResults(ctx context.Context, conversationID string) ([]AnalysisResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, analyzer, score, verdict, confidence, details, analyzed_at
		FROM analysis_results
		WHERE conversation_id = $1
		ORDER BY analyzer`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query analysis results: %w", err)
	}
	defer rows.Close()

	var out []AnalysisResult
	for rows.Next() {
		var r AnalysisResult
		if err := rows.Scan(&r.ConversationID, &r.Analyzer, &r.Score, &r.Verdict, &r.Confidence, &r.Details, &r.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("scan analysis result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis results: %w", err)
	}
	return out, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
