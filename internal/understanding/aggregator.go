// Package understanding runs the three prompt-judgment analyzers
// (critical-thinking, debugging-reasoning, mistake-catching). All three
// share one aggregation state machine; what differs between them — prompt
// template, fallback rules, verdict bands, bonus kind — is data on the
// Variant, not code.
package understanding

import (
	"context"
	"log/slog"
	"math"

	"github.com/nad-devs/Logger/internal/config"
	"github.com/nad-devs/Logger/internal/events"
	"github.com/nad-devs/Logger/internal/judge"
)

// Sample is one included prompt judgment.
type Sample struct {
	SequenceNumber int     `json:"sequence_number"`
	Category       string  `json:"category"`
	Quality        float64 `json:"quality"`
	Severity       string  `json:"severity,omitempty"`
	Evidence       string  `json:"evidence,omitempty"`
	Method         string  `json:"method"` // "ai" or "fallback"
}

// Result is the per-conversation aggregate for one analyzer.
type Result struct {
	Analyzer      string         `json:"analyzer"`
	Score         float64        `json:"score"`   // 0..10
	Verdict       string         `json:"verdict"`
	Confidence    float64        `json:"confidence"` // 0..0.95
	Count         int            `json:"count"`      // included prompts
	TypeBreakdown map[string]int `json:"type_breakdown"`
	MeanQuality   float64        `json:"mean_quality"`
	Method        string         `json:"method"` // "ai" when AI judgments dominate
	SuccessRate   float64        `json:"success_rate"`
	Attempted     int            `json:"attempted"`
	AIJudged      int            `json:"ai_judged"`
	Fallbacks     int            `json:"fallbacks"`
	Samples       []Sample       `json:"samples,omitempty"`
}

// Analyze judges each prompt of a conversation sequentially against one
// analyzer variant. Prompts below the minimum length are skipped entirely
// and appear in no denominator. Judgment failures of any kind fall back to
// the variant's rule set; the failure never escapes this function, but it
// is visible in SuccessRate.
func Analyze(ctx context.Context, v Variant, prompts []events.Prompt, j judge.Judge, cal config.Calibration, logger *slog.Logger) Result {
	res := Result{
		Analyzer:      v.Name,
		TypeBreakdown: make(map[string]int),
	}

	var qualitySum float64
	var highSeverity int

	for _, p := range prompts {
		if len(p.Text) < cal.MinPromptLen {
			continue
		}
		res.Attempted++

		verdict, err := j.Judge(ctx, p.Text, v.PromptTemplate)
		method := "ai"
		if err != nil {
			logger.Debug("judgment fell back to rules",
				"analyzer", v.Name,
				"sequence", p.SequenceNumber,
				"error", err,
			)
			verdict = v.applyRules(p.Text)
			method = "fallback"
			res.Fallbacks++
		} else {
			res.AIJudged++
		}

		if !verdict.Relevant {
			continue
		}

		severity := v.severityFor(verdict.Category)
		res.Count++
		res.TypeBreakdown[verdict.Category]++
		qualitySum += verdict.QualityScore
		if severity == "high" {
			highSeverity++
		}
		res.Samples = append(res.Samples, Sample{
			SequenceNumber: p.SequenceNumber,
			Category:       verdict.Category,
			Quality:        verdict.QualityScore,
			Severity:       severity,
			Evidence:       verdict.Evidence,
			Method:         method,
		})
	}

	if res.Count > 0 {
		res.MeanQuality = qualitySum / float64(res.Count)
	}
	if res.Attempted > 0 {
		res.SuccessRate = float64(res.AIJudged) / float64(res.Attempted)
	}
	if res.AIJudged >= res.Fallbacks {
		res.Method = "ai"
	} else {
		res.Method = "fallback"
	}

	bonusUnits := len(res.TypeBreakdown)
	if v.BonusKind == BonusSeverity {
		bonusUnits = highSeverity
	}

	res.Score = clampScore(countScore(res.Count) + res.MeanQuality/10*4 + math.Min(2, float64(bonusUnits)*0.5))
	res.Verdict = v.Bands.verdict(res.Score)
	res.Confidence = confidence(res.Count, bonusUnits, res.SuccessRate)

	return res
}

// countScore steps at the 1/3/5 included-prompt thresholds.
func countScore(count int) float64 {
	switch {
	case count >= 5:
		return 4
	case count >= 3:
		return 3
	case count >= 1:
		return 2
	default:
		return 0
	}
}

func confidence(count, bonusUnits int, successRate float64) float64 {
	c := 0.3 +
		math.Min(0.25, float64(count)*0.05) +
		math.Min(0.2, float64(bonusUnits)*0.05) +
		successRate*0.2
	return math.Min(0.95, c)
}

func clampScore(s float64) float64 {
	return math.Min(10, math.Max(0, s))
}
