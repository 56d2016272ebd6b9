// Package patterns turns correlations and iteration histories into the
// behavioral metrics the scoring engine consumes: coherence, iteration,
// reversal, productivity, focus, and categorical pattern detections.
package patterns

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/nad-devs/Logger/internal/correlation"
)

// Detection is one categorical anti-pattern or positive-pattern hit.
type Detection struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"` // high | medium | low
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// EditCoherence classifies each prompt's edit footprint by file spread.
type EditCoherence struct {
	SingleFile        int     `json:"single_file"`
	MultiFile         int     `json:"multi_file"`
	Scattered         int     `json:"scattered"`
	FocusedPrompts    int     `json:"focused_prompts"`
	ScatteredPrompts  int     `json:"scattered_prompts"`
	CoherentPrompts   int     `json:"coherent_prompts"`
	IncoherentPrompts int     `json:"incoherent_prompts"`
	CoherenceScore    float64 `json:"coherence_score"`
	Assessment        string  `json:"assessment"` // good | moderate | poor
}

// IterationAnalysis summarizes repeated editing across files.
type IterationAnalysis struct {
	HighIterationFiles     int     `json:"high_iteration_files"`
	ModerateIterationFiles int     `json:"moderate_iteration_files"`
	IterationScore         float64 `json:"iteration_score"`
	RedFlag                bool    `json:"red_flag"`
}

// ReversalAnalysis summarizes back-and-forth editing across files.
type ReversalAnalysis struct {
	FilesWithReversals int     `json:"files_with_reversals"`
	TotalIteratedFiles int     `json:"total_iterated_files"`
	ReversalRate       float64 `json:"reversal_rate"`
	ReversalScore      float64 `json:"reversal_score"`
	RedFlag            bool    `json:"red_flag"`
	Assessment         string  `json:"assessment"` // confident | some_uncertainty | high_confusion
}

// Productivity is a baseline-and-adjustment measure of edit throughput.
type Productivity struct {
	AvgEditsPerPrompt float64 `json:"avg_edits_per_prompt"`
	AvgFilesPerPrompt float64 `json:"avg_files_per_prompt"`
	Score             float64 `json:"score"`
}

// FileFocus measures how concentrated the editing was on a few files.
type FileFocus struct {
	TopFiles        []string `json:"top_files"`
	FocusPercentage float64  `json:"focus_percentage"`
	FocusScore      float64  `json:"focus_score"`
}

// PromptSignals are prompt-text observations shared with the scoring engine.
type PromptSignals struct {
	TotalPrompts         int     `json:"total_prompts"`
	AvgPromptLength      float64 `json:"avg_prompt_length"`
	TechnicalRatio       float64 `json:"technical_ratio"`
	VaguePromptCount     int     `json:"vague_prompt_count"`
	UnansweredQuestions  int     `json:"unanswered_questions"`
	ImprovingSpecificity bool    `json:"improving_specificity"`
}

// Metrics is the full Pattern Analyzer output.
type Metrics struct {
	Coherence        EditCoherence     `json:"edit_coherence"`
	Iteration        IterationAnalysis `json:"iteration"`
	Reversals        ReversalAnalysis  `json:"reversals"`
	Productivity     Productivity      `json:"productivity"`
	Focus            FileFocus         `json:"file_focus"`
	Signals          PromptSignals     `json:"prompt_signals"`
	AntiPatterns     []Detection       `json:"anti_patterns"`
	PositivePatterns []Detection       `json:"positive_patterns"`
}

var (
	vagueRe        = regexp.MustCompile(`(?i)^(fix|do|make|change|update|help)( (it|this|that))?\.?$`)
	architectureRe = regexp.MustCompile(`(?i)\b(architect|design|structure|pattern|interface|module|abstraction|decouple|layer)\b`)
	testingRe      = regexp.MustCompile(`(?i)\b(test|tests|testing|coverage|assert|mock|regression|unit test)\b`)
	technicalRe    = regexp.MustCompile(`(?i)\b(function|method|struct|class|variable|goroutine|channel|pointer|interface|query|index|endpoint|api|schema|migration|timeout|mutex|buffer|parse|serialize|refactor|nil|error|exception|stack|heap|thread|async|race)\b`)
)

// Analyze is a pure function of already-derived correlation data; it does
// no I/O and never fails. Empty input yields a zero-valued Metrics.
func Analyze(correlations []correlation.Correlation, iterations []correlation.IterationPattern) Metrics {
	m := Metrics{
		Coherence:    analyzeCoherence(correlations),
		Iteration:    analyzeIteration(iterations),
		Reversals:    analyzeReversals(iterations),
		Productivity: analyzeProductivity(correlations),
		Focus:        analyzeFocus(correlations),
		Signals:      analyzeSignals(correlations),
	}
	m.AntiPatterns = detectAntiPatterns(iterations, m.Signals)
	m.PositivePatterns = detectPositivePatterns(correlations, m.Signals)
	return m
}

func analyzeCoherence(correlations []correlation.Correlation) EditCoherence {
	var c EditCoherence
	for _, corr := range correlations {
		if corr.EditCount == 0 {
			continue
		}
		switch {
		case corr.FileCount == 1:
			c.SingleFile++
			c.CoherentPrompts++
		case corr.FileCount <= 3:
			c.MultiFile++
			c.CoherentPrompts++
		default:
			c.Scattered++
			c.IncoherentPrompts++
		}

		// Focused and scattered are independent counters: a prompt can
		// trip both rules.
		if corr.FileCount <= 2 && corr.EditCount <= 5 {
			c.FocusedPrompts++
		}
		if corr.FileCount >= 4 || corr.EditCount > 10 {
			c.ScatteredPrompts++
		}
	}

	classified := c.CoherentPrompts + c.IncoherentPrompts
	if classified > 0 {
		c.CoherenceScore = math.Round(float64(c.CoherentPrompts) / float64(classified) * 100)
	}
	switch {
	case c.CoherenceScore >= 70:
		c.Assessment = "good"
	case c.CoherenceScore >= 50:
		c.Assessment = "moderate"
	default:
		c.Assessment = "poor"
	}
	return c
}

func analyzeIteration(iterations []correlation.IterationPattern) IterationAnalysis {
	var a IterationAnalysis
	for _, p := range iterations {
		if p.EditCount >= 4 {
			a.HighIterationFiles++
		} else if p.EditCount >= 2 {
			a.ModerateIterationFiles++
		}
	}

	total := a.HighIterationFiles + a.ModerateIterationFiles
	if total == 0 {
		a.IterationScore = 100
	} else {
		a.IterationScore = math.Max(0, 100-float64(a.HighIterationFiles)/float64(total)*50)
	}
	a.RedFlag = a.HighIterationFiles >= 3
	return a
}

func analyzeReversals(iterations []correlation.IterationPattern) ReversalAnalysis {
	a := ReversalAnalysis{TotalIteratedFiles: len(iterations)}
	for _, p := range iterations {
		if p.HasReversal() {
			a.FilesWithReversals++
		}
	}

	if a.TotalIteratedFiles > 0 {
		a.ReversalRate = float64(a.FilesWithReversals) / float64(a.TotalIteratedFiles) * 100
	}
	a.ReversalScore = math.Max(0, 100-2*a.ReversalRate)
	a.RedFlag = a.FilesWithReversals >= 2

	switch {
	case a.FilesWithReversals >= 3:
		a.Assessment = "high_confusion"
	case a.FilesWithReversals >= 1:
		a.Assessment = "some_uncertainty"
	default:
		a.Assessment = "confident"
	}
	return a
}

func analyzeProductivity(correlations []correlation.Correlation) Productivity {
	eff := correlation.AnalyzeEffectiveness(correlations)
	p := Productivity{
		AvgEditsPerPrompt: eff.AvgEditsPerPrompt,
		AvgFilesPerPrompt: eff.AvgFilesPerPrompt,
		Score:             50,
	}

	if p.AvgEditsPerPrompt >= 2 && p.AvgEditsPerPrompt <= 4 {
		p.Score += 25
	} else if p.AvgEditsPerPrompt > 4 {
		p.Score -= 10
	}
	if p.AvgFilesPerPrompt >= 1 && p.AvgFilesPerPrompt <= 2 {
		p.Score += 25
	} else if p.AvgFilesPerPrompt > 3 {
		p.Score -= 10
	}

	p.Score = math.Min(100, math.Max(0, p.Score))
	return p
}

func analyzeFocus(correlations []correlation.Correlation) FileFocus {
	editsByFile := make(map[string]int)
	for _, c := range correlations {
		for _, e := range c.Edits {
			editsByFile[e.FilePath]++
		}
	}

	type fileCount struct {
		path  string
		count int
	}
	ranked := make([]fileCount, 0, len(editsByFile))
	totalEdits := 0
	for path, count := range editsByFile {
		ranked = append(ranked, fileCount{path, count})
		totalEdits += count
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].path < ranked[j].path
	})

	var f FileFocus
	topEdits := 0
	for i, fc := range ranked {
		if i >= 3 {
			break
		}
		f.TopFiles = append(f.TopFiles, fc.path)
		topEdits += fc.count
	}
	if totalEdits > 0 {
		f.FocusPercentage = float64(topEdits) / float64(totalEdits) * 100
	}

	switch {
	case f.FocusPercentage >= 70:
		f.FocusScore = 90
	case f.FocusPercentage >= 50:
		f.FocusScore = 70
	case f.FocusPercentage >= 30:
		f.FocusScore = 50
	default:
		f.FocusScore = 30
	}
	return f
}

func analyzeSignals(correlations []correlation.Correlation) PromptSignals {
	s := PromptSignals{TotalPrompts: len(correlations)}
	if s.TotalPrompts == 0 {
		return s
	}

	totalLen := 0
	technical := 0
	for _, c := range correlations {
		text := c.Prompt.Text
		totalLen += len(text)
		if technicalRe.MatchString(text) {
			technical++
		}
		if len(text) < 20 || vagueRe.MatchString(strings.TrimSpace(text)) {
			s.VaguePromptCount++
		}
		if strings.Contains(text, "?") && c.EditCount == 0 {
			s.UnansweredQuestions++
		}
	}
	s.AvgPromptLength = float64(totalLen) / float64(s.TotalPrompts)
	s.TechnicalRatio = float64(technical) / float64(s.TotalPrompts)

	// Improving specificity: mean prompt length in the second half of the
	// conversation exceeds the first half by more than 20%. Needs at least
	// five prompts to mean anything.
	if s.TotalPrompts >= 5 {
		mid := s.TotalPrompts / 2
		firstMean := meanLength(correlations[:mid])
		secondMean := meanLength(correlations[mid:])
		s.ImprovingSpecificity = firstMean > 0 && secondMean > firstMean*1.2
	}
	return s
}

func meanLength(correlations []correlation.Correlation) float64 {
	if len(correlations) == 0 {
		return 0
	}
	total := 0
	for _, c := range correlations {
		total += len(c.Prompt.Text)
	}
	return float64(total) / float64(len(correlations))
}

func detectAntiPatterns(iterations []correlation.IterationPattern, s PromptSignals) []Detection {
	var out []Detection

	if s.UnansweredQuestions >= 5 {
		out = append(out, Detection{
			Category:    "excessive_questions",
			Severity:    "medium",
			Description: "Many questions produced no code changes",
			Suggestion:  "Try reading the relevant code before asking; pair questions with a concrete goal",
		})
	}
	if s.VaguePromptCount >= 5 {
		out = append(out, Detection{
			Category:    "vague_prompts",
			Severity:    "medium",
			Description: "Frequent short or templated prompts",
			Suggestion:  "Describe the expected behavior, the file, and the constraint instead of one-word requests",
		})
	}

	reversalFiles := 0
	heavyFiles := 0
	for _, p := range iterations {
		if p.HasReversal() {
			reversalFiles++
		}
		if p.EditCount >= 5 {
			heavyFiles++
		}
	}
	if reversalFiles >= 3 {
		out = append(out, Detection{
			Category:    "frequent_reversals",
			Severity:    "high",
			Description: "Multiple files were changed back to earlier states",
			Suggestion:  "Decide on an approach before editing; reversals suggest guessing rather than understanding",
		})
	}
	if heavyFiles >= 2 {
		out = append(out, Detection{
			Category:    "excessive_iteration",
			Severity:    "medium",
			Description: "Several files needed five or more rounds of edits",
			Suggestion:  "Break the change into smaller, verifiable steps",
		})
	}

	return out
}

func detectPositivePatterns(correlations []correlation.Correlation, s PromptSignals) []Detection {
	var out []Detection

	arch := 0
	testing := 0
	for _, c := range correlations {
		if architectureRe.MatchString(c.Prompt.Text) {
			arch++
		}
		if testingRe.MatchString(c.Prompt.Text) {
			testing++
		}
	}

	if arch >= 2 {
		out = append(out, Detection{
			Category:    "architectural_thinking",
			Severity:    "low",
			Description: "Prompts engage with design and structure, not just symptoms",
		})
	}
	if testing >= 2 {
		out = append(out, Detection{
			Category:    "testing_awareness",
			Severity:    "low",
			Description: "Prompts show attention to tests and coverage",
		})
	}
	if s.TechnicalRatio >= 0.6 {
		out = append(out, Detection{
			Category:    "technical_specificity",
			Severity:    "low",
			Description: "Most prompts use precise technical language",
		})
	}
	if s.ImprovingSpecificity {
		out = append(out, Detection{
			Category:    "improving_specificity",
			Severity:    "low",
			Description: "Prompts became more detailed as the session progressed",
		})
	}

	return out
}
