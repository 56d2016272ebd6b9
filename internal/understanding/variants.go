package understanding

import (
	"regexp"

	"github.com/nad-devs/Logger/internal/judge"
)

// BonusKind selects the third scoring term.
type BonusKind int

const (
	// BonusDiversity rewards distinct judgment categories.
	BonusDiversity BonusKind = iota
	// BonusSeverity rewards high-severity catches instead.
	BonusSeverity
)

// Bands maps a 0-10 score onto an analyzer-specific verdict.
type Bands struct {
	Top    string // score >= 7
	Middle string // score >= 4
	Bottom string
}

func (b Bands) verdict(score float64) string {
	switch {
	case score >= 7:
		return b.Top
	case score >= 4:
		return b.Middle
	default:
		return b.Bottom
	}
}

// Rule is one fallback classification: first matching rule wins. Rule
// qualities stay in the middle of the scale; a pattern can spot a
// category but cannot grade nuance.
type Rule struct {
	Pattern  *regexp.Regexp
	Category string
	Quality  float64
}

// Variant is everything analyzer-specific.
type Variant struct {
	Name             string
	PromptTemplate   string
	Rules            []Rule
	BonusKind        BonusKind
	Bands            Bands
	CategorySeverity map[string]string
}

func (v Variant) applyRules(text string) judge.Verdict {
	for _, r := range v.Rules {
		if r.Pattern.MatchString(text) {
			return judge.Verdict{
				Relevant:     true,
				Category:     r.Category,
				QualityScore: r.Quality,
				Reasoning:    "rule-based fallback",
			}
		}
	}
	return judge.Verdict{Relevant: false}
}

func (v Variant) severityFor(category string) string {
	if sev, ok := v.CategorySeverity[category]; ok {
		return sev
	}
	return "low"
}

// Variants returns the three understanding analyzers in their fixed run
// order.
func Variants() []Variant {
	return []Variant{CriticalThinking(), DebuggingReasoning(), MistakeCatching()}
}

func CriticalThinking() Variant {
	return Variant{
		Name: "critical_thinking",
		PromptTemplate: `Does this developer prompt show critical thinking about the AI's output or approach
(questioning, weighing tradeoffs, checking assumptions, naming risks)?
Category must be one of: questioning_approach, tradeoff_analysis, assumption_check, risk_identification, alternative_solution.

Prompt: %s`,
		Rules: []Rule{
			{regexp.MustCompile(`(?i)\b(why (not|did|would)|is there a reason)\b`), "questioning_approach", 5},
			{regexp.MustCompile(`(?i)\b(trade-?off|versus|instead of|alternative|simpler way|better approach)\b`), "tradeoff_analysis", 6},
			{regexp.MustCompile(`(?i)\b(are you sure|assum\w+|verify|double.?check)\b`), "assumption_check", 5},
			{regexp.MustCompile(`(?i)\b(what if|edge case|risk|could break|concern)\b`), "risk_identification", 5},
		},
		BonusKind: BonusDiversity,
		Bands:     Bands{Top: "highly_critical", Middle: "moderately_critical", Bottom: "not_critical"},
	}
}

func DebuggingReasoning() Variant {
	return Variant{
		Name: "debugging_reasoning",
		PromptTemplate: `Does this developer prompt show debugging reasoning
(forming hypotheses, isolating causes, gathering evidence, identifying root causes)?
Category must be one of: hypothesis_formation, root_cause_analysis, systematic_isolation, evidence_gathering, trial_and_error.

Prompt: %s`,
		Rules: []Rule{
			{regexp.MustCompile(`(?i)\b(root cause|caused by|because the|the reason is)\b`), "root_cause_analysis", 6},
			{regexp.MustCompile(`(?i)\b(isolate|narrow (it )?down|bisect|reproduce|step through|minimal case)\b`), "systematic_isolation", 6},
			{regexp.MustCompile(`(?i)\b(maybe|perhaps|i (think|suspect)|could be|might be)\b`), "hypothesis_formation", 5},
			{regexp.MustCompile(`(?i)\b(stack trace|error message|logs? (say|show)|output (says|shows))\b`), "evidence_gathering", 4},
		},
		BonusKind: BonusDiversity,
		Bands:     Bands{Top: "systematic", Middle: "mixed_approach", Bottom: "helpless"},
	}
}

func MistakeCatching() Variant {
	return Variant{
		Name: "mistake_catching",
		PromptTemplate: `Does this developer prompt catch a mistake in AI-generated code
(logic errors, security issues, performance problems, missed edge cases, style issues)?
Category must be one of: logic_error_catch, security_catch, performance_catch, edge_case_catch, style_catch.

Prompt: %s`,
		Rules: []Rule{
			{regexp.MustCompile(`(?i)\b(security|inject\w*|vulnerab\w*|sanitiz\w*|escap\w* (the )?input)\b`), "security_catch", 7},
			{regexp.MustCompile(`(?i)\b(wrong|incorrect|that's a bug|mistake|shouldn't (be|have)|doesn't handle)\b`), "logic_error_catch", 5},
			{regexp.MustCompile(`(?i)\b(slow|performance|n\+1|memory leak|too many (queries|allocations))\b`), "performance_catch", 5},
			{regexp.MustCompile(`(?i)\b(edge case|empty (input|list|string)|nil|null|boundary|overflow|off.by.one)\b`), "edge_case_catch", 5},
		},
		BonusKind: BonusSeverity,
		Bands:     Bands{Top: "understands_code", Middle: "partial_understanding", Bottom: "copy_paste"},
		CategorySeverity: map[string]string{
			"security_catch":    "high",
			"logic_error_catch": "high",
			"performance_catch": "medium",
			"edge_case_catch":   "medium",
			"style_catch":       "low",
		},
	}
}
