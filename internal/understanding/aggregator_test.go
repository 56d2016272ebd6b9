package understanding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/nad-devs/Logger/internal/config"
	"github.com/nad-devs/Logger/internal/events"
	"github.com/nad-devs/Logger/internal/judge"
)

var discard = slog.New(slog.DiscardHandler)

// scriptedJudge returns canned verdicts (or errors) in call order.
type scriptedJudge struct {
	verdicts []judge.Verdict
	errs     []error
	calls    int
	seen     []string
}

func (s *scriptedJudge) Judge(ctx context.Context, text, template string) (judge.Verdict, error) {
	i := s.calls
	s.calls++
	s.seen = append(s.seen, text)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var v judge.Verdict
	if i < len(s.verdicts) {
		v = s.verdicts[i]
	}
	return v, err
}

func prompts(texts ...string) []events.Prompt {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	out := make([]events.Prompt, len(texts))
	for i, text := range texts {
		out[i] = events.Prompt{
			Text:           text,
			SequenceNumber: i + 1,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestAnalyze_ShortPromptsNeverJudged(t *testing.T) {
	j := &scriptedJudge{}
	res := Analyze(context.Background(), CriticalThinking(), prompts("ok", "yes", "fix it.."), j, config.DefaultCalibration(), discard)

	if j.calls != 0 {
		t.Errorf("expected no judge calls for short prompts, got %d", j.calls)
	}
	if res.Attempted != 0 || res.Count != 0 {
		t.Errorf("short prompts must not enter any denominator: %+v", res)
	}
	if res.Score != 0 {
		t.Errorf("expected score 0, got %f", res.Score)
	}
}

func TestAnalyze_AIJudged(t *testing.T) {
	j := &scriptedJudge{
		verdicts: []judge.Verdict{
			{Relevant: true, Category: "questioning_approach", QualityScore: 8},
			{Relevant: false},
			{Relevant: true, Category: "tradeoff_analysis", QualityScore: 6},
		},
	}
	res := Analyze(context.Background(), CriticalThinking(), prompts(
		"why did you choose a mutex here instead of a channel?",
		"please rename the file to match the package",
		"what's the tradeoff versus keeping the cache in memory?",
	), j, config.DefaultCalibration(), discard)

	if res.Attempted != 3 || res.AIJudged != 3 || res.Fallbacks != 0 {
		t.Fatalf("unexpected accounting: %+v", res)
	}
	if res.Count != 2 {
		t.Errorf("expected 2 included prompts, got %d", res.Count)
	}
	if res.MeanQuality != 7 {
		t.Errorf("expected mean quality 7, got %f", res.MeanQuality)
	}
	if res.Method != "ai" {
		t.Errorf("expected method ai, got %s", res.Method)
	}
	if res.SuccessRate != 1.0 {
		t.Errorf("expected success rate 1.0, got %f", res.SuccessRate)
	}
	// count 2 → 2, quality 7/10*4 = 2.8, diversity 2×0.5 = 1 → 5.8
	if math.Abs(res.Score-5.8) > 0.001 {
		t.Errorf("expected score 5.8, got %f", res.Score)
	}
	if res.Verdict != "moderately_critical" {
		t.Errorf("expected moderately_critical, got %s", res.Verdict)
	}
}

func TestAnalyze_FallbackOnFailure(t *testing.T) {
	failing := &scriptedJudge{errs: []error{
		judge.ErrUnavailable, judge.ErrBadVerdict, judge.ErrUnavailable,
	}}
	res := Analyze(context.Background(), DebuggingReasoning(), prompts(
		"maybe the pool is exhausted before the retry fires",
		"the stack trace shows a nil map write in the handler",
		"please format the file",
	), failing, config.DefaultCalibration(), discard)

	if res.Fallbacks != 3 || res.AIJudged != 0 {
		t.Fatalf("expected all calls to fall back: %+v", res)
	}
	if res.Method != "fallback" {
		t.Errorf("expected method fallback, got %s", res.Method)
	}
	if res.SuccessRate != 0 {
		t.Errorf("expected success rate 0, got %f", res.SuccessRate)
	}
	// Rule hits: hypothesis_formation + evidence_gathering; third prompt
	// matches no rule and is excluded.
	if res.Count != 2 {
		t.Errorf("expected 2 included via rules, got %d", res.Count)
	}
	if res.TypeBreakdown["hypothesis_formation"] != 1 || res.TypeBreakdown["evidence_gathering"] != 1 {
		t.Errorf("unexpected breakdown: %v", res.TypeBreakdown)
	}
	for _, s := range res.Samples {
		if s.Method != "fallback" {
			t.Errorf("expected fallback samples, got %+v", s)
		}
	}
}

func TestAnalyze_MethodMajority(t *testing.T) {
	// 2 AI successes vs 1 failure: method stays "ai".
	j := &scriptedJudge{
		verdicts: []judge.Verdict{
			{Relevant: true, Category: "logic_error_catch", QualityScore: 6},
			{},
			{Relevant: true, Category: "edge_case_catch", QualityScore: 5},
		},
		errs: []error{nil, judge.ErrUnavailable, nil},
	}
	res := Analyze(context.Background(), MistakeCatching(), prompts(
		"this is wrong, the loop never terminates on empty input",
		"also please run the formatter",
		"what about the nil receiver edge case in String()?",
	), j, config.DefaultCalibration(), discard)

	if res.Method != "ai" {
		t.Errorf("expected ai with majority successes, got %s", res.Method)
	}
	if math.Abs(res.SuccessRate-2.0/3.0) > 0.001 {
		t.Errorf("expected success rate 2/3, got %f", res.SuccessRate)
	}
}

func TestAnalyze_SeverityBonus(t *testing.T) {
	j := &scriptedJudge{
		verdicts: []judge.Verdict{
			{Relevant: true, Category: "security_catch", QualityScore: 8},
			{Relevant: true, Category: "logic_error_catch", QualityScore: 6},
			{Relevant: true, Category: "style_catch", QualityScore: 4},
		},
	}
	res := Analyze(context.Background(), MistakeCatching(), prompts(
		"that query concatenates user input, classic injection",
		"the comparison is inverted, this branch is wrong",
		"the receiver name is inconsistent with the rest",
	), j, config.DefaultCalibration(), discard)

	// 2 high-severity catches → bonus min(2, 2×0.5) = 1.
	// count 3 → 3, quality 6/10*4 = 2.4 → 6.4
	if math.Abs(res.Score-6.4) > 0.001 {
		t.Errorf("expected score 6.4, got %f", res.Score)
	}
	if res.Verdict != "partial_understanding" {
		t.Errorf("expected partial_understanding, got %s", res.Verdict)
	}
}

func TestAnalyze_ConfidenceCapped(t *testing.T) {
	var verdicts []judge.Verdict
	var texts []string
	categories := []string{"questioning_approach", "tradeoff_analysis", "assumption_check", "risk_identification", "alternative_solution"}
	for i := 0; i < 20; i++ {
		verdicts = append(verdicts, judge.Verdict{Relevant: true, Category: categories[i%5], QualityScore: 9})
		texts = append(texts, fmt.Sprintf("substantial prompt number %d questioning the approach", i))
	}
	j := &scriptedJudge{verdicts: verdicts}
	res := Analyze(context.Background(), CriticalThinking(), prompts(texts...), j, config.DefaultCalibration(), discard)

	if res.Confidence > 0.95 {
		t.Errorf("confidence must cap at 0.95, got %f", res.Confidence)
	}
	if res.Score > 10 {
		t.Errorf("score must clamp to 10, got %f", res.Score)
	}
	if res.Verdict != "highly_critical" {
		t.Errorf("expected highly_critical, got %s", res.Verdict)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	mk := func() *scriptedJudge {
		return &scriptedJudge{verdicts: []judge.Verdict{
			{Relevant: true, Category: "root_cause_analysis", QualityScore: 7},
			{Relevant: true, Category: "hypothesis_formation", QualityScore: 5},
		}}
	}
	in := prompts(
		"the root cause is the unbuffered channel blocking the writer",
		"maybe the ticker never fires because the context is done",
	)

	a := Analyze(context.Background(), DebuggingReasoning(), in, mk(), config.DefaultCalibration(), discard)
	b := Analyze(context.Background(), DebuggingReasoning(), in, mk(), config.DefaultCalibration(), discard)

	if a.Score != b.Score || a.Verdict != b.Verdict || a.Confidence != b.Confidence {
		t.Errorf("same input must score identically: %+v vs %+v", a, b)
	}
}

func TestApplyRules_NoMatchExcluded(t *testing.T) {
	v := CriticalThinking().applyRules("please add a docstring to the exported function")
	if v.Relevant {
		t.Errorf("expected non-matching prompt to be irrelevant, got %+v", v)
	}
}

func TestAnalyze_FailureNeverEscapes(t *testing.T) {
	j := &scriptedJudge{errs: []error{errors.New("boom"), errors.New("boom")}}
	res := Analyze(context.Background(), CriticalThinking(), prompts(
		"why not use the existing pool instead of a new one?",
		"are you sure the index covers this query?",
	), j, config.DefaultCalibration(), discard)

	if res.Count != 2 {
		t.Errorf("expected rule fallback to include both prompts, got %d", res.Count)
	}
}
