// Package pipeline orchestrates one analysis run per conversation:
// correlation, pattern analysis, the three understanding analyzers,
// scoring, and profile synthesis, followed by result persistence and a
// completion event. Conversations are processed strictly sequentially.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nad-devs/Logger/internal/config"
	"github.com/nad-devs/Logger/internal/correlation"
	"github.com/nad-devs/Logger/internal/events"
	"github.com/nad-devs/Logger/internal/judge"
	"github.com/nad-devs/Logger/internal/patterns"
	"github.com/nad-devs/Logger/internal/profile"
	"github.com/nad-devs/Logger/internal/scoring"
	"github.com/nad-devs/Logger/internal/store"
	"github.com/nad-devs/Logger/internal/understanding"
)

// ScoreAnalyzer is the analyzer name under which the aggregate score
// bundle is persisted, alongside the three understanding analyzers.
const ScoreAnalyzer = "understanding_score"

// EventStore is the narrow store surface the pipeline needs.
type EventStore interface {
	GetConversationData(ctx context.Context, conversationID string) (events.ConversationData, error)
	UpsertAnalysisResult(ctx context.Context, r store.AnalysisResult) error
	ListPendingConversations(ctx context.Context, minPrompts int) ([]string, error)
}

// Publisher emits completion events; nil disables publishing.
type Publisher interface {
	Publish(subject string, data any) error
}

// Report is the full output of one analysis run.
type Report struct {
	ConversationID string                          `json:"conversation_id"`
	Effectiveness  correlation.Effectiveness       `json:"effectiveness"`
	Metrics        patterns.Metrics                `json:"metrics"`
	Analyzers      map[string]understanding.Result `json:"analyzers"`
	Scores         scoring.Scores                  `json:"scores"`
	Assessment     scoring.Assessment              `json:"assessment"`
	RedFlags       []scoring.Flag                  `json:"red_flags"`
	GreenFlags     []scoring.Flag                  `json:"green_flags"`
	Profile        profile.Profile                 `json:"profile"`
	AnalyzedAt     time.Time                       `json:"analyzed_at"`
}

type Pipeline struct {
	store     EventStore
	judge     judge.Judge
	publisher Publisher
	cal       config.Calibration
	logger    *slog.Logger
	subject   string
	now       func() time.Time
}

func New(s EventStore, j judge.Judge, pub Publisher, subject string, cal config.Calibration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:     s,
		judge:     j,
		publisher: pub,
		cal:       cal,
		logger:    logger,
		subject:   subject,
		now:       time.Now,
	}
}

// Analyze computes a full report without persisting anything. A
// conversation with no prompts yields an insufficient-data report, not an
// error.
func (p *Pipeline) Analyze(ctx context.Context, conversationID string) (*Report, error) {
	data, err := p.store.GetConversationData(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	report := &Report{
		ConversationID: conversationID,
		Analyzers:      make(map[string]understanding.Result),
		AnalyzedAt:     p.now().UTC(),
	}

	if len(data.Prompts) == 0 {
		report.Assessment = scoring.Assessment{
			Level: "insufficient_data",
			Label: "Not enough activity to assess",
		}
		return report, nil
	}

	correlations := correlation.Correlate(data.Prompts, data.Edits)
	iterations := correlation.DetectIterationPatterns(correlations, p.cal.SimilarityThreshold)
	report.Effectiveness = correlation.AnalyzeEffectiveness(correlations)
	report.Metrics = patterns.Analyze(correlations, iterations)

	// One analyzer at a time, one prompt at a time: sequencing keeps
	// breakdown counts deterministic and bounds load on the judgment
	// capability.
	for _, variant := range understanding.Variants() {
		report.Analyzers[variant.Name] = understanding.Analyze(ctx, variant, data.Prompts, p.judge, p.cal, p.logger)
	}

	in := scoring.Input{
		Metrics:       report.Metrics,
		Effectiveness: report.Effectiveness,
		Analyzers:     report.Analyzers,
	}
	report.Scores = scoring.Compute(in)
	report.RedFlags = scoring.GenerateRedFlags(in, report.Scores)
	report.GreenFlags = scoring.GenerateGreenFlags(in, report.Scores)
	report.Assessment = scoring.AssessmentFor(report.Scores.Overall, p.cal)
	report.Profile = profile.Generate(data, correlations, report.Metrics, report.Scores, report.RedFlags, report.GreenFlags, p.cal)

	return report, nil
}

// Run analyzes a conversation, persists the per-analyzer results plus the
// aggregate score snapshot, and publishes a completion event.
func (p *Pipeline) Run(ctx context.Context, conversationID string) (*Report, error) {
	started := p.now()
	report, err := p.Analyze(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := p.persist(ctx, report); err != nil {
		return nil, err
	}

	if p.publisher != nil && p.subject != "" {
		payload := map[string]any{
			"conversation_id": report.ConversationID,
			"overall_score":   report.Scores.Overall,
			"assessment":      report.Assessment.Level,
			"red_flags":       len(report.RedFlags),
			"green_flags":     len(report.GreenFlags),
			"analyzed_at":     report.AnalyzedAt.Format(time.RFC3339),
		}
		if err := p.publisher.Publish(p.subject, payload); err != nil {
			p.logger.Warn("failed to publish completion event", "conversation_id", conversationID, "error", err)
		}
	}

	p.logger.Info("conversation analyzed",
		"conversation_id", conversationID,
		"overall", report.Scores.Overall,
		"assessment", report.Assessment.Level,
		"duration", p.now().Sub(started),
	)
	return report, nil
}

func (p *Pipeline) persist(ctx context.Context, report *Report) error {
	for name, res := range report.Analyzers {
		details, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal %s details: %w", name, err)
		}
		if err := p.store.UpsertAnalysisResult(ctx, store.AnalysisResult{
			ConversationID: report.ConversationID,
			Analyzer:       name,
			Score:          res.Score,
			Verdict:        res.Verdict,
			Confidence:     res.Confidence,
			Details:        details,
			AnalyzedAt:     report.AnalyzedAt,
		}); err != nil {
			return fmt.Errorf("persist %s: %w", name, err)
		}
	}

	details, err := json.Marshal(map[string]any{
		"scores":      report.Scores,
		"red_flags":   report.RedFlags,
		"green_flags": report.GreenFlags,
		"profile":     report.Profile,
	})
	if err != nil {
		return fmt.Errorf("marshal score snapshot: %w", err)
	}
	if err := p.store.UpsertAnalysisResult(ctx, store.AnalysisResult{
		ConversationID: report.ConversationID,
		Analyzer:       ScoreAnalyzer,
		Score:          report.Scores.Overall / 10,
		Verdict:        report.Assessment.Level,
		Confidence:     meanConfidence(report.Analyzers),
		Details:        details,
		AnalyzedAt:     report.AnalyzedAt,
	}); err != nil {
		return fmt.Errorf("persist score snapshot: %w", err)
	}
	return nil
}

func meanConfidence(analyzers map[string]understanding.Result) float64 {
	if len(analyzers) == 0 {
		return 0
	}
	var sum float64
	for _, res := range analyzers {
		sum += res.Confidence
	}
	return sum / float64(len(analyzers))
}

// RunPending analyzes every conversation that meets the minimum prompt
// count and has no results yet. A failure in one conversation is logged
// and the batch moves on; only context cancellation stops the loop, and
// the conversation in flight always finishes first.
func (p *Pipeline) RunPending(ctx context.Context) (int, error) {
	ids, err := p.store.ListPendingConversations(ctx, p.cal.MinPromptCount)
	if err != nil {
		return 0, fmt.Errorf("list pending conversations: %w", err)
	}

	analyzed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			p.logger.Info("batch stopped by shutdown", "analyzed", analyzed, "remaining", len(ids)-analyzed)
			return analyzed, nil
		}
		if _, err := p.Run(context.WithoutCancel(ctx), id); err != nil {
			p.logger.Error("conversation analysis failed, continuing batch", "conversation_id", id, "error", err)
			continue
		}
		analyzed++
	}
	return analyzed, nil
}

// HandleAnalysisRequested is the bus handler for on-demand analysis.
func (p *Pipeline) HandleAnalysisRequested(subject string, data []byte) {
	var evt struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("bad analysis request payload", "error", err)
		return
	}
	if evt.ConversationID == "" {
		p.logger.Warn("analysis request without conversation id dropped")
		return
	}
	if _, err := p.Run(context.Background(), evt.ConversationID); err != nil {
		p.logger.Error("requested analysis failed", "conversation_id", evt.ConversationID, "error", err)
	}
}
