package scoring

import (
	"math"
	"testing"

	"github.com/nad-devs/Logger/internal/config"
	"github.com/nad-devs/Logger/internal/correlation"
	"github.com/nad-devs/Logger/internal/patterns"
	"github.com/nad-devs/Logger/internal/understanding"
)

func strongInput() Input {
	return Input{
		Metrics: patterns.Metrics{
			Coherence: patterns.EditCoherence{CoherenceScore: 80},
			Iteration: patterns.IterationAnalysis{IterationScore: 100},
			Reversals: patterns.ReversalAnalysis{Assessment: "confident", TotalIteratedFiles: 2, ReversalScore: 100},
			Productivity: patterns.Productivity{Score: 75},
			Focus:        patterns.FileFocus{FocusScore: 90},
			Signals: patterns.PromptSignals{
				TotalPrompts:    10,
				AvgPromptLength: 80,
				TechnicalRatio:  0.7,
			},
			PositivePatterns: []patterns.Detection{
				{Category: "architectural_thinking", Severity: "low"},
				{Category: "testing_awareness", Severity: "low"},
			},
		},
		Effectiveness: correlation.Effectiveness{TotalPrompts: 10, PromptsWithEdits: 8, EffectivenessScore: 80},
		Analyzers: map[string]understanding.Result{
			"critical_thinking":   {Score: 8, Verdict: "highly_critical"},
			"debugging_reasoning": {Score: 7.5, Verdict: "systematic"},
			"mistake_catching":    {Score: 7, Verdict: "understands_code"},
		},
	}
}

func weakInput() Input {
	return Input{
		Metrics: patterns.Metrics{
			Coherence: patterns.EditCoherence{CoherenceScore: 40},
			Reversals: patterns.ReversalAnalysis{Assessment: "high_confusion", FilesWithReversals: 3, TotalIteratedFiles: 4},
			Iteration: patterns.IterationAnalysis{HighIterationFiles: 3},
			Signals: patterns.PromptSignals{
				TotalPrompts:        10,
				AvgPromptLength:     15,
				VaguePromptCount:    6,
				UnansweredQuestions: 5,
			},
			AntiPatterns: []patterns.Detection{
				{Category: "vague_prompts", Severity: "medium", Description: "d"},
				{Category: "frequent_reversals", Severity: "high", Description: "d"},
			},
		},
		Effectiveness: correlation.Effectiveness{TotalPrompts: 10, PromptsWithEdits: 2, EffectivenessScore: 20},
		Analyzers: map[string]understanding.Result{
			"critical_thinking":   {Score: 2, Verdict: "not_critical"},
			"debugging_reasoning": {Score: 2.5, Verdict: "helpless"},
			"mistake_catching":    {Score: 1, Verdict: "copy_paste"},
		},
	}
}

func TestCompute_StrongSession(t *testing.T) {
	s := Compute(strongInput())

	// prompt_quality: 50+20+10 = 80
	if s.PromptQuality != 80 {
		t.Errorf("prompt quality = %f, want 80", s.PromptQuality)
	}
	// self_sufficiency: 50+20+15 = 85
	if s.SelfSufficiency != 85 {
		t.Errorf("self sufficiency = %f, want 85", s.SelfSufficiency)
	}
	// technical_depth: 40+25+15+10+20 = 100 (clamped from 110)
	if s.TechnicalDepth != 100 {
		t.Errorf("technical depth = %f, want 100", s.TechnicalDepth)
	}
	// code_coherence: 50+20+10+10 = 90
	if s.CodeCoherence != 90 {
		t.Errorf("code coherence = %f, want 90", s.CodeCoherence)
	}
	// understanding: mean 7.5 → 50+25, understands_code +15 = 90
	if s.Understanding != 90 {
		t.Errorf("understanding = %f, want 90", s.Understanding)
	}
	want := (80.0 + 85 + 100 + 90 + 90) / 5
	if math.Abs(s.Overall-want) > 0.001 {
		t.Errorf("overall = %f, want %f", s.Overall, want)
	}
}

func TestCompute_WeakSession(t *testing.T) {
	s := Compute(weakInput())

	// prompt_quality: 50-15-10 = 25
	if s.PromptQuality != 25 {
		t.Errorf("prompt quality = %f, want 25", s.PromptQuality)
	}
	// self_sufficiency: 50-15-15-10-10 = 0
	if s.SelfSufficiency != 0 {
		t.Errorf("self sufficiency = %f, want 0", s.SelfSufficiency)
	}
	// technical_depth: 40-10 = 30
	if s.TechnicalDepth != 30 {
		t.Errorf("technical depth = %f, want 30", s.TechnicalDepth)
	}
	// code_coherence: 50-15-15 = 20
	if s.CodeCoherence != 20 {
		t.Errorf("code coherence = %f, want 20", s.CodeCoherence)
	}
	// understanding: mean ~1.83 → 50-15, copy_paste -15, high_confusion -10 = 10
	if s.Understanding != 10 {
		t.Errorf("understanding = %f, want 10", s.Understanding)
	}
}

func TestCompute_EmptyInputStaysInRange(t *testing.T) {
	s := Compute(Input{})

	for name, v := range map[string]float64{
		"prompt_quality":   s.PromptQuality,
		"self_sufficiency": s.SelfSufficiency,
		"technical_depth":  s.TechnicalDepth,
		"code_coherence":   s.CodeCoherence,
		"understanding":    s.Understanding,
		"overall":          s.Overall,
	} {
		if v < 0 || v > 100 {
			t.Errorf("%s = %f out of [0,100]", name, v)
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	a := Compute(strongInput())
	b := Compute(strongInput())
	if a != b {
		t.Errorf("same input must produce identical scores: %+v vs %+v", a, b)
	}
}

func TestGenerateRedFlags_SortedBySeverity(t *testing.T) {
	in := weakInput()
	scores := Compute(in)

	flags := GenerateRedFlags(in, scores)
	if len(flags) == 0 {
		t.Fatal("expected red flags for a weak session")
	}

	last := 0
	for _, f := range flags {
		rank := severityRank[f.Severity]
		if rank < last {
			t.Fatalf("flags out of severity order: %+v", flags)
		}
		last = rank
	}

	got := map[string]bool{}
	for _, f := range flags {
		got[f.Category] = true
	}
	for _, want := range []string{"frequent_reversals", "high_confusion", "low_effectiveness", "shallow_understanding"} {
		if !got[want] {
			t.Errorf("expected red flag %s in %v", want, flags)
		}
	}
}

func TestGenerateGreenFlags(t *testing.T) {
	in := strongInput()
	scores := Compute(in)

	flags := GenerateGreenFlags(in, scores)
	got := map[string]bool{}
	for _, f := range flags {
		got[f.Category] = true
	}
	for _, want := range []string{"architectural_thinking", "confident_editing", "strong_understanding", "effective_prompting"} {
		if !got[want] {
			t.Errorf("expected green flag %s in %v", want, flags)
		}
	}
}

func TestGenerateGreenFlags_EmptySession(t *testing.T) {
	if flags := GenerateGreenFlags(Input{}, Scores{}); len(flags) != 0 {
		t.Errorf("expected no green flags for an empty session, got %v", flags)
	}
}

func TestAssessmentFor(t *testing.T) {
	cal := config.DefaultCalibration()
	tests := []struct {
		overall float64
		want    string
	}{
		{95, "exceptional"},
		{85, "exceptional"},
		{84.9, "strong"},
		{70, "strong"},
		{60, "competent"},
		{55, "competent"},
		{45, "developing"},
		{40, "developing"},
		{39.9, "needs_improvement"},
		{0, "needs_improvement"},
	}

	for _, tt := range tests {
		got := AssessmentFor(tt.overall, cal)
		if got.Level != tt.want {
			t.Errorf("AssessmentFor(%f) = %s, want %s", tt.overall, got.Level, tt.want)
		}
		if got.Label == "" || got.Recommendation == "" {
			t.Errorf("tier %s missing label or recommendation", got.Level)
		}
	}
}
