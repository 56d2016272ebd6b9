// Package judge wraps the external text-judgment capability behind a small
// interface. Callers get a structured verdict or an error; error kinds
// distinguish transport failure from an unparseable reply so the caller's
// fallback accounting stays accurate.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Verdict is the structured judgment for a single prompt.
type Verdict struct {
	Relevant     bool    `json:"relevant"`
	Category     string  `json:"category"`
	QualityScore float64 `json:"quality_score"` // 0..10
	Evidence     string  `json:"evidence"`
	Reasoning    string  `json:"reasoning"`
}

var (
	// ErrUnavailable means the capability could not be reached or timed out.
	ErrUnavailable = errors.New("judgment capability unavailable")
	// ErrBadVerdict means the reply arrived but did not parse or validate.
	ErrBadVerdict = errors.New("judgment response invalid")
)

// Judge submits text for judgment under an analyzer-specific template.
type Judge interface {
	Judge(ctx context.Context, text, template string) (Verdict, error)
}

// Completer is the LLM surface the judge needs; satisfied by
// anthropic.Client and by test stubs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLMJudge calls a completion backend with a bounded per-call timeout and
// parses a strict JSON verdict from the reply.
type LLMJudge struct {
	llm     Completer
	timeout time.Duration
}

func NewLLMJudge(llm Completer, timeout time.Duration) *LLMJudge {
	return &LLMJudge{llm: llm, timeout: timeout}
}

const systemPrompt = `You judge a single developer prompt from an AI-assisted coding session.
Respond with exactly one JSON object, no prose:
{"relevant": bool, "category": string, "quality_score": number 0-10, "evidence": string, "reasoning": string}`

func (j *LLMJudge) Judge(ctx context.Context, text, template string) (Verdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	raw, err := j.llm.Complete(callCtx, systemPrompt, fmt.Sprintf(template, text))
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ParseVerdict(raw)
}

// Disabled is the judge used when no API key is configured. Every call
// reports the capability unavailable, which routes all judgments through
// the callers' rule-based fallback.
type Disabled struct{}

func (Disabled) Judge(ctx context.Context, text, template string) (Verdict, error) {
	return Verdict{}, ErrUnavailable
}

// ParseVerdict extracts and validates a verdict from raw model output.
// The reply may wrap the JSON in prose or a code fence; everything outside
// the outermost braces is ignored.
func ParseVerdict(raw string) (Verdict, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("%w: no JSON object in reply", ErrBadVerdict)
	}

	var v Verdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrBadVerdict, err)
	}
	if v.QualityScore < 0 || v.QualityScore > 10 {
		return Verdict{}, fmt.Errorf("%w: quality score %f out of range", ErrBadVerdict, v.QualityScore)
	}
	if v.Relevant && v.Category == "" {
		return Verdict{}, fmt.Errorf("%w: relevant verdict without category", ErrBadVerdict)
	}
	return v, nil
}
