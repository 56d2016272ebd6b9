// Package scoring combines pattern metrics and analyzer results into the
// five calibrated sub-scores, the overall score, red/green flags, and the
// qualitative assessment tier. Every adjustment is a thresholded additive
// rule over an upstream metric; the constants are calibration, not logic.
package scoring

import (
	"math"
	"sort"

	"github.com/nad-devs/Logger/internal/config"
	"github.com/nad-devs/Logger/internal/correlation"
	"github.com/nad-devs/Logger/internal/patterns"
	"github.com/nad-devs/Logger/internal/understanding"
)

// Scores is the per-conversation score bundle. All values sit in [0,100].
type Scores struct {
	PromptQuality   float64 `json:"prompt_quality"`
	SelfSufficiency float64 `json:"self_sufficiency"`
	TechnicalDepth  float64 `json:"technical_depth"`
	CodeCoherence   float64 `json:"code_coherence"`
	Understanding   float64 `json:"understanding"`
	Overall         float64 `json:"overall"`
}

// Flag is one derived behavioral signal, negative (red) or positive (green).
type Flag struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"` // high | medium | low
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Assessment is the qualitative tier for an overall score.
type Assessment struct {
	Level          string `json:"level"`
	Label          string `json:"label"`
	Recommendation string `json:"recommendation"`
}

// Input is everything the scoring engine consumes.
type Input struct {
	Metrics       patterns.Metrics
	Effectiveness correlation.Effectiveness
	Analyzers     map[string]understanding.Result // keyed by analyzer name
}

// Compute derives the full score bundle. Missing analyzer results degrade
// gracefully: their rules simply do not fire.
func Compute(in Input) Scores {
	s := Scores{
		PromptQuality:   promptQuality(in),
		SelfSufficiency: selfSufficiency(in),
		TechnicalDepth:  technicalDepth(in),
		CodeCoherence:   codeCoherence(in),
		Understanding:   understandingScore(in),
	}
	s.Overall = (s.PromptQuality + s.SelfSufficiency + s.TechnicalDepth + s.CodeCoherence + s.Understanding) / 5
	return s
}

func promptQuality(in Input) float64 {
	sig := in.Metrics.Signals
	score := 50.0
	if sig.TechnicalRatio >= 0.6 {
		score += 20
	}
	if sig.VaguePromptCount >= 5 {
		score -= 15
	}
	if sig.AvgPromptLength >= 50 {
		score += 10
	}
	if sig.ImprovingSpecificity {
		score += 10
	}
	if sig.UnansweredQuestions >= 5 {
		score -= 10
	}
	return clamp(score)
}

func selfSufficiency(in Input) float64 {
	score := 50.0
	switch {
	case in.Effectiveness.EffectivenessScore >= 70:
		score += 20
	case in.Effectiveness.EffectivenessScore < 30:
		score -= 15
	}
	if in.Metrics.Signals.UnansweredQuestions >= 5 {
		score -= 15
	}
	if in.Metrics.Iteration.HighIterationFiles >= 3 {
		score -= 10
	}
	if dbg, ok := in.Analyzers["debugging_reasoning"]; ok {
		switch dbg.Verdict {
		case "systematic":
			score += 15
		case "helpless":
			score -= 10
		}
	}
	return clamp(score)
}

func technicalDepth(in Input) float64 {
	sig := in.Metrics.Signals
	score := 40.0
	switch {
	case sig.TechnicalRatio >= 0.6:
		score += 25
	case sig.TechnicalRatio >= 0.3:
		score += 10
	}
	if hasDetection(in.Metrics.PositivePatterns, "architectural_thinking") {
		score += 15
	}
	if hasDetection(in.Metrics.PositivePatterns, "testing_awareness") {
		score += 10
	}
	if ct, ok := in.Analyzers["critical_thinking"]; ok {
		switch {
		case ct.Score >= 7:
			score += 20
		case ct.Score <= 3:
			score -= 10
		}
	}
	return clamp(score)
}

func codeCoherence(in Input) float64 {
	m := in.Metrics
	score := 50.0
	switch {
	case m.Coherence.CoherenceScore >= 70:
		score += 20
	case m.Coherence.CoherenceScore < 50:
		score -= 15
	}
	if m.Reversals.FilesWithReversals >= 2 {
		score -= 15
	}
	if m.Focus.FocusScore >= 70 {
		score += 10
	}
	if m.Productivity.Score >= 70 {
		score += 10
	}
	return clamp(score)
}

func understandingScore(in Input) float64 {
	score := 50.0

	var sum float64
	var n int
	for _, res := range in.Analyzers {
		sum += res.Score
		n++
	}
	if n > 0 {
		mean := sum / float64(n)
		switch {
		case mean >= 7:
			score += 25
		case mean >= 5:
			score += 10
		case mean <= 3:
			score -= 15
		}
	}

	if mc, ok := in.Analyzers["mistake_catching"]; ok {
		switch mc.Verdict {
		case "understands_code":
			score += 15
		case "copy_paste":
			score -= 15
		}
	}
	if in.Metrics.Reversals.Assessment == "high_confusion" {
		score -= 10
	}
	return clamp(score)
}

func hasDetection(detections []patterns.Detection, category string) bool {
	for _, d := range detections {
		if d.Category == category {
			return true
		}
	}
	return false
}

func clamp(score float64) float64 {
	return math.Min(100, math.Max(0, score))
}

var severityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// GenerateRedFlags maps anti-patterns and metric thresholds onto negative
// flags, sorted high severity first.
func GenerateRedFlags(in Input, scores Scores) []Flag {
	var flags []Flag

	for _, d := range in.Metrics.AntiPatterns {
		flags = append(flags, Flag(d))
	}

	if in.Metrics.Reversals.Assessment == "high_confusion" {
		flags = append(flags, Flag{
			Category:    "high_confusion",
			Severity:    "high",
			Description: "Three or more files were reverted toward earlier states",
			Suggestion:  "Slow down and understand the failing behavior before changing code",
		})
	}
	if in.Effectiveness.TotalPrompts > 0 && in.Effectiveness.EffectivenessScore < 30 {
		flags = append(flags, Flag{
			Category:    "low_effectiveness",
			Severity:    "medium",
			Description: "Fewer than a third of prompts led to any code change",
			Suggestion:  "Make each prompt actionable: name the file and the expected behavior",
		})
	}
	if scores.Understanding < 40 {
		flags = append(flags, Flag{
			Category:    "shallow_understanding",
			Severity:    "high",
			Description: "Understanding score is in the bottom band",
			Suggestion:  "Read the generated code before accepting it; ask the assistant to explain its approach",
		})
	}

	sortFlags(flags)
	return flags
}

// GenerateGreenFlags maps positive patterns and score thresholds onto
// positive flags, sorted the same way.
func GenerateGreenFlags(in Input, scores Scores) []Flag {
	var flags []Flag

	for _, d := range in.Metrics.PositivePatterns {
		flags = append(flags, Flag(d))
	}

	if in.Metrics.Reversals.Assessment == "confident" && in.Metrics.Reversals.TotalIteratedFiles > 0 {
		flags = append(flags, Flag{
			Category:    "confident_editing",
			Severity:    "low",
			Description: "Iterated files moved forward without reversals",
		})
	}
	if scores.Understanding >= 70 {
		flags = append(flags, Flag{
			Category:    "strong_understanding",
			Severity:    "low",
			Description: "Understanding score is in the top band",
		})
	}
	if in.Effectiveness.EffectivenessScore >= 70 && in.Effectiveness.TotalPrompts >= 3 {
		flags = append(flags, Flag{
			Category:    "effective_prompting",
			Severity:    "low",
			Description: "Most prompts produced concrete code changes",
		})
	}

	sortFlags(flags)
	return flags
}

func sortFlags(flags []Flag) {
	sort.SliceStable(flags, func(i, j int) bool {
		return severityRank[flags[i].Severity] < severityRank[flags[j].Severity]
	})
}

// AssessmentFor buckets an overall score into its named tier.
func AssessmentFor(overall float64, cal config.Calibration) Assessment {
	switch {
	case overall >= cal.TierExceptional:
		return Assessment{
			Level:          "exceptional",
			Label:          "Exceptional understanding",
			Recommendation: "Keep doing what you are doing; consider mentoring others on AI-assisted workflows",
		}
	case overall >= cal.TierStrong:
		return Assessment{
			Level:          "strong",
			Label:          "Strong understanding",
			Recommendation: "Solid session; push on reviewing generated code for edge cases",
		}
	case overall >= cal.TierCompetent:
		return Assessment{
			Level:          "competent",
			Label:          "Competent with gaps",
			Recommendation: "Work on prompt specificity and verify changes before iterating",
		}
	case overall >= cal.TierDeveloping:
		return Assessment{
			Level:          "developing",
			Label:          "Developing understanding",
			Recommendation: "Read each change the assistant makes; ask why, not just what",
		}
	default:
		return Assessment{
			Level:          "needs_improvement",
			Label:          "Needs improvement",
			Recommendation: "Treat the assistant's output as a draft to understand, not a result to accept",
		}
	}
}
