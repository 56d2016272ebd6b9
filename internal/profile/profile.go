// Package profile synthesizes scores, flags, and correlations into the
// narrative developer profile that closes out an analysis run. Everything
// here is presentation over already-computed data.
package profile

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/nad-devs/Logger/internal/config"
	"github.com/nad-devs/Logger/internal/correlation"
	"github.com/nad-devs/Logger/internal/events"
	"github.com/nad-devs/Logger/internal/patterns"
	"github.com/nad-devs/Logger/internal/scoring"
)

// Metadata describes the session itself.
type Metadata struct {
	ConversationID string    `json:"conversation_id"`
	StartedAt      time.Time `json:"started_at"`
	SessionSpan    string    `json:"session_span"`
	SessionLength  string    `json:"session_length"` // short | medium | long
	FileCount      int       `json:"file_count"`
	Sources        []string  `json:"sources"`
}

// WorkStyle classifies how the developer moved through the session.
type WorkStyle struct {
	Pace           string  `json:"pace"` // rapid_iteration | steady | deliberate
	PromptsPerHour float64 `json:"prompts_per_hour"`
	Focus          string  `json:"focus"`
	Iteration      string  `json:"iteration"`
	Productivity   string  `json:"productivity"`
}

// Recommendation is one prioritized suggestion.
type Recommendation struct {
	Priority string `json:"priority"` // critical | important | positive
	Text     string `json:"text"`
}

// Profile is the final narrative output of the pipeline.
type Profile struct {
	Metadata        Metadata           `json:"metadata"`
	Scores          scoring.Scores     `json:"scores"`
	Assessment      scoring.Assessment `json:"assessment"`
	Strengths       []string           `json:"strengths"`
	Weaknesses      []string           `json:"weaknesses"`
	WorkStyle       WorkStyle          `json:"work_style"`
	PromptEvolution string             `json:"prompt_evolution"` // increasing_detail | decreasing_detail | stable
	TechnicalTopics []string           `json:"technical_topics"`
	Recommendations []Recommendation   `json:"recommendations"`
	RedFlags        []scoring.Flag     `json:"red_flags"`
	GreenFlags      []scoring.Flag     `json:"green_flags"`
}

var topicVocabulary = map[string]*regexp.Regexp{
	"testing":     regexp.MustCompile(`(?i)\b(test|coverage|mock|assert)\b`),
	"database":    regexp.MustCompile(`(?i)\b(sql|query|schema|migration|index|transaction)\b`),
	"concurrency": regexp.MustCompile(`(?i)\b(goroutine|channel|mutex|race|deadlock|concurrent)\b`),
	"api":         regexp.MustCompile(`(?i)\b(endpoint|api|handler|route|request|response)\b`),
	"performance": regexp.MustCompile(`(?i)\b(performance|slow|cache|latency|memory|alloc)\b`),
	"errors":      regexp.MustCompile(`(?i)\b(error|panic|exception|crash|retry|timeout)\b`),
}

// Generate builds the profile. It never fails: sparse input produces a
// sparse profile.
func Generate(
	data events.ConversationData,
	correlations []correlation.Correlation,
	metrics patterns.Metrics,
	scores scoring.Scores,
	red, green []scoring.Flag,
	cal config.Calibration,
) Profile {
	p := Profile{
		Metadata:        buildMetadata(data),
		Scores:          scores,
		Assessment:      scoring.AssessmentFor(scores.Overall, cal),
		WorkStyle:       buildWorkStyle(data, metrics),
		PromptEvolution: promptEvolution(data.Prompts),
		TechnicalTopics: technicalTopics(data.Prompts),
		RedFlags:        red,
		GreenFlags:      green,
	}
	p.Strengths = strengths(scores, green)
	p.Weaknesses = weaknesses(scores, red)
	p.Recommendations = recommendations(scores, red, green)
	return p
}

func buildMetadata(data events.ConversationData) Metadata {
	m := Metadata{ConversationID: data.ConversationID}
	if len(data.Prompts) > 0 {
		m.StartedAt = data.Prompts[0].Timestamp
	}

	span := data.Span()
	m.SessionSpan = span.Round(time.Second).String()
	switch {
	case span < 30*time.Minute:
		m.SessionLength = "short"
	case span < 120*time.Minute:
		m.SessionLength = "medium"
	default:
		m.SessionLength = "long"
	}

	files := make(map[string]struct{})
	for _, e := range data.Edits {
		files[e.FilePath] = struct{}{}
	}
	m.FileCount = len(files)

	sources := make(map[string]struct{})
	for _, p := range data.Prompts {
		if p.Source != "" {
			sources[p.Source] = struct{}{}
		}
	}
	for src := range sources {
		m.Sources = append(m.Sources, src)
	}
	sort.Strings(m.Sources)
	return m
}

func buildWorkStyle(data events.ConversationData, metrics patterns.Metrics) WorkStyle {
	ws := WorkStyle{
		Focus:        focusLabel(metrics.Focus.FocusScore),
		Iteration:    iterationLabel(metrics.Iteration),
		Productivity: productivityLabel(metrics.Productivity.Score),
	}

	span := data.Span()
	if span > 0 {
		ws.PromptsPerHour = float64(len(data.Prompts)) / span.Hours()
	}
	switch {
	case ws.PromptsPerHour > 10:
		ws.Pace = "rapid_iteration"
	case ws.PromptsPerHour >= 3:
		ws.Pace = "steady"
	default:
		ws.Pace = "deliberate"
	}
	return ws
}

func focusLabel(score float64) string {
	if score >= 70 {
		return "concentrated"
	}
	if score >= 50 {
		return "mostly_focused"
	}
	return "dispersed"
}

func iterationLabel(a patterns.IterationAnalysis) string {
	if a.RedFlag {
		return "heavy_rework"
	}
	if a.HighIterationFiles > 0 {
		return "some_rework"
	}
	return "forward_progress"
}

func productivityLabel(score float64) string {
	if score >= 70 {
		return "productive"
	}
	if score >= 40 {
		return "average"
	}
	return "low_output"
}

// promptEvolution compares mean prompt length across thirds of the
// conversation with a ±10% band for "stable".
func promptEvolution(prompts []events.Prompt) string {
	if len(prompts) < 3 {
		return "stable"
	}
	third := len(prompts) / 3
	first := meanLen(prompts[:third])
	last := meanLen(prompts[len(prompts)-third:])
	if first == 0 {
		return "stable"
	}
	switch {
	case last > first*1.1:
		return "increasing_detail"
	case last < first*0.9:
		return "decreasing_detail"
	default:
		return "stable"
	}
}

func meanLen(prompts []events.Prompt) float64 {
	if len(prompts) == 0 {
		return 0
	}
	total := 0
	for _, p := range prompts {
		total += len(p.Text)
	}
	return float64(total) / float64(len(prompts))
}

func technicalTopics(prompts []events.Prompt) []string {
	counts := make(map[string]int)
	for _, p := range prompts {
		for topic, re := range topicVocabulary {
			if re.MatchString(p.Text) {
				counts[topic]++
			}
		}
	}

	var topics []string
	for topic, n := range counts {
		if n >= 2 {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)
	return topics
}

func strengths(scores scoring.Scores, green []scoring.Flag) []string {
	var out []string
	for name, v := range subScores(scores) {
		if v >= 70 {
			out = append(out, fmt.Sprintf("%s (%.0f)", name, v))
		}
	}
	sort.Strings(out)
	for _, f := range green {
		out = append(out, f.Description)
	}
	return out
}

func weaknesses(scores scoring.Scores, red []scoring.Flag) []string {
	var out []string
	for name, v := range subScores(scores) {
		if v < 40 {
			out = append(out, fmt.Sprintf("%s (%.0f)", name, v))
		}
	}
	sort.Strings(out)
	for _, f := range red {
		if f.Severity == "high" {
			out = append(out, f.Description)
		}
	}
	return out
}

func subScores(s scoring.Scores) map[string]float64 {
	return map[string]float64{
		"prompt quality":   s.PromptQuality,
		"self sufficiency": s.SelfSufficiency,
		"technical depth":  s.TechnicalDepth,
		"code coherence":   s.CodeCoherence,
		"understanding":    s.Understanding,
	}
}

func recommendations(scores scoring.Scores, red, green []scoring.Flag) []Recommendation {
	var out []Recommendation

	for _, f := range red {
		if f.Severity == "high" && f.Suggestion != "" {
			out = append(out, Recommendation{Priority: "critical", Text: f.Suggestion})
		}
	}
	for _, f := range red {
		if f.Severity == "medium" && f.Suggestion != "" {
			out = append(out, Recommendation{Priority: "important", Text: f.Suggestion})
		}
	}
	for name, v := range subScores(scores) {
		if v < 55 {
			out = append(out, Recommendation{
				Priority: "important",
				Text:     fmt.Sprintf("Focus on improving %s; it is currently the weak point of the session", name),
			})
		}
	}
	for _, f := range green {
		out = append(out, Recommendation{Priority: "positive", Text: "Keep it up: " + f.Description})
	}

	// Deterministic order: critical, important, positive; stable within.
	rank := map[string]int{"critical": 0, "important": 1, "positive": 2}
	sort.SliceStable(out, func(i, j int) bool {
		if rank[out[i].Priority] != rank[out[j].Priority] {
			return rank[out[i].Priority] < rank[out[j].Priority]
		}
		return out[i].Text < out[j].Text
	})
	return out
}
