// Package correlation reconstructs conversation structure from raw prompt
// and edit events: which edits belong to which prompt, how effective the
// prompts were, and which files were iterated on or reverted.
package correlation

import (
	"sort"
	"strings"
	"time"

	"github.com/nad-devs/Logger/internal/events"
	"github.com/nad-devs/Logger/internal/similarity"
)

// Correlation binds one prompt to the edits attributable to it by the
// time-window rule: every edit whose timestamp falls in
// [prompt.Timestamp, nextPrompt.Timestamp). The last prompt's window is
// unbounded on the right.
type Correlation struct {
	Prompt          events.Prompt
	Edits           []events.Edit
	EditCount       int
	FileCount       int
	TimeToFirstEdit time.Duration
	EditDuration    time.Duration
	LinesAdded      int
	LinesRemoved    int
}

// Effectiveness aggregates prompt-level outcomes across a conversation.
type Effectiveness struct {
	TotalPrompts       int     `json:"total_prompts"`
	PromptsWithEdits   int     `json:"prompts_with_edits"`
	AvgEditsPerPrompt  float64 `json:"avg_edits_per_prompt"`
	AvgFilesPerPrompt  float64 `json:"avg_files_per_prompt"`
	AvgTimeToFirstEdit float64 `json:"avg_time_to_first_edit_ms"`
	EffectivenessScore float64 `json:"effectiveness_score"` // percentage of prompts that produced edits
}

// Reversal marks an edit that returned a file to (near) its previous state.
type Reversal struct {
	Index      int     `json:"index"` // position in the file's edit history
	Similarity float64 `json:"similarity"`
}

// IterationPattern is the per-file edit history for a file touched at
// least twice in the conversation.
type IterationPattern struct {
	FilePath  string        `json:"file_path"`
	EditCount int           `json:"edit_count"`
	Edits     []events.Edit `json:"-"`
	Reversals []Reversal    `json:"reversals,omitempty"`
}

// HasReversal reports whether any edit in the history was a reversal.
func (p IterationPattern) HasReversal() bool {
	return len(p.Reversals) > 0
}

// Correlate partitions a conversation's edits across its prompts. Windows
// are closed on the left and open on the right, so an edit stamped exactly
// at a prompt's timestamp belongs to that prompt. Edits that precede the
// first prompt are orphaned and appear in no correlation.
func Correlate(prompts []events.Prompt, edits []events.Edit) []Correlation {
	correlations := make([]Correlation, 0, len(prompts))

	for i, prompt := range prompts {
		var windowEnd time.Time
		bounded := i+1 < len(prompts)
		if bounded {
			windowEnd = prompts[i+1].Timestamp
		}

		var owned []events.Edit
		for _, edit := range edits {
			if edit.Timestamp.Before(prompt.Timestamp) {
				continue
			}
			if bounded && !edit.Timestamp.Before(windowEnd) {
				continue
			}
			owned = append(owned, edit)
		}

		correlations = append(correlations, buildCorrelation(prompt, owned))
	}

	return correlations
}

func buildCorrelation(prompt events.Prompt, owned []events.Edit) Correlation {
	c := Correlation{
		Prompt:    prompt,
		Edits:     owned,
		EditCount: len(owned),
	}

	files := make(map[string]struct{})
	for _, edit := range owned {
		files[edit.FilePath] = struct{}{}
		added, removed := lineDelta(edit.OldContent, edit.NewContent)
		c.LinesAdded += added
		c.LinesRemoved += removed
	}
	c.FileCount = len(files)

	if len(owned) > 0 {
		c.TimeToFirstEdit = owned[0].Timestamp.Sub(prompt.Timestamp)
		c.EditDuration = owned[len(owned)-1].Timestamp.Sub(prompt.Timestamp)
	}

	return c
}

// lineDelta is a coarse size estimate, not a diff: the line-count change
// between old and new content, attributed entirely to added or removed.
func lineDelta(oldContent, newContent string) (added, removed int) {
	oldLines := countLines(oldContent)
	newLines := countLines(newContent)
	if newLines > oldLines {
		return newLines - oldLines, 0
	}
	return 0, oldLines - newLines
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// AnalyzeEffectiveness computes conversation-level prompt effectiveness.
// All ratios guard their denominators; zero prompts yields a zero-valued
// result rather than an error.
func AnalyzeEffectiveness(correlations []Correlation) Effectiveness {
	eff := Effectiveness{TotalPrompts: len(correlations)}
	if eff.TotalPrompts == 0 {
		return eff
	}

	var totalEdits, totalFiles int
	var totalFirstEdit time.Duration
	for _, c := range correlations {
		if c.EditCount == 0 {
			continue
		}
		eff.PromptsWithEdits++
		totalEdits += c.EditCount
		totalFiles += c.FileCount
		totalFirstEdit += c.TimeToFirstEdit
	}

	if eff.PromptsWithEdits > 0 {
		n := float64(eff.PromptsWithEdits)
		eff.AvgEditsPerPrompt = float64(totalEdits) / n
		eff.AvgFilesPerPrompt = float64(totalFiles) / n
		eff.AvgTimeToFirstEdit = float64(totalFirstEdit.Milliseconds()) / n
	}
	eff.EffectivenessScore = float64(eff.PromptsWithEdits) / float64(eff.TotalPrompts) * 100

	return eff
}

// DetectIterationPatterns builds per-file edit histories across the whole
// conversation, in original chronological order. A file qualifies once it
// has two edits; a pattern is retained only if the file has at least three
// edits or at least one reversal. Results are sorted by edit count
// descending, ties keeping first-touch order.
func DetectIterationPatterns(correlations []Correlation, similarityThreshold float64) []IterationPattern {
	histories := make(map[string][]events.Edit)
	var order []string

	for _, c := range correlations {
		for _, edit := range c.Edits {
			if _, seen := histories[edit.FilePath]; !seen {
				order = append(order, edit.FilePath)
			}
			histories[edit.FilePath] = append(histories[edit.FilePath], edit)
		}
	}

	var patterns []IterationPattern
	for _, path := range order {
		history := histories[path]
		if len(history) < 2 {
			continue
		}
		reversals := DetectReversals(history, similarityThreshold)
		if len(history) < 3 && len(reversals) == 0 {
			continue
		}
		patterns = append(patterns, IterationPattern{
			FilePath:  path,
			EditCount: len(history),
			Edits:     history,
			Reversals: reversals,
		})
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].EditCount > patterns[j].EditCount
	})

	return patterns
}

// DetectReversals scans adjacent edit pairs in a single file's history.
// Edit i is a reversal when its new content is similar to edit i-1's old
// content, meaning the file was changed back toward its earlier state.
// Only the immediately preceding edit is consulted, so a reversal across
// a longer gap is not detected; reversal_score is calibrated against this
// single-step comparison.
func DetectReversals(history []events.Edit, similarityThreshold float64) []Reversal {
	var reversals []Reversal
	for i := 1; i < len(history); i++ {
		prev := history[i-1]
		curr := history[i]
		if similarity.IsSimilarCode(curr.NewContent, prev.OldContent, similarityThreshold) {
			reversals = append(reversals, Reversal{
				Index:      i,
				Similarity: similarity.Calculate(curr.NewContent, prev.OldContent),
			})
		}
	}
	return reversals
}
