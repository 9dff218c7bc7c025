// Package intent holds the authoritative PT-BR intent rule set and evaluates
// inbound messages against it.
//
// Rules live in a declarative table (patterns_ptbr.go) so new intents are
// added as data, never as new engine branches. The library is initialized
// once and is immutable afterwards, making it safe to share across
// concurrent message handlers.
package intent

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Confidence model constants. These are intentional design values tuned
// together with the routing thresholds; changing them shifts every band
// downstream.
const (
	// baseConfidence reflects that a literal regex hit is already fairly
	// strong evidence on its own.
	baseConfidence = 0.60
	// maxConfidence caps pattern confidence below certainty; regexes are
	// never proof of intent.
	maxConfidence = 0.95
	// priorityBonusStep converts rule priority into a small additive edge
	// for more specific rules: (5 - priority) * step.
	priorityBonusStep = 0.02
	// DefaultMinConfidence is the extraction floor when callers pass zero.
	DefaultMinConfidence = 0.10
)

// Pattern is one compiled intent-detection rule.
type Pattern struct {
	Intent          string
	Pattern         *regexp.Regexp
	ConfidenceBoost float64
	Priority        int
	Description     string
	Examples        []string
}

// Category returns the top-level namespace of the intent ("scheduling" for
// "scheduling.book").
func (p Pattern) Category() string {
	if i := strings.IndexByte(p.Intent, '.'); i >= 0 {
		return p.Intent[:i]
	}
	return p.Intent
}

// DetectedIntent is one scored match produced for a single message. It lives
// only within one classification call and is never persisted.
type DetectedIntent struct {
	Intent        string   `json:"intent"`
	Confidence    float64  `json:"confidence"`
	PatternSource string   `json:"pattern_source"`
	Matches       []string `json:"matches"`
	Description   string   `json:"description"`
}

// patternSource tags every detection produced by this library.
const patternSource = "ptbr_regex"

// Library evaluates messages against the compiled rule set. Immutable after
// NewLibrary returns.
type Library struct {
	categories []string
	byCategory map[string][]Pattern
	byIntent   map[string]Pattern
}

// NewLibrary compiles the default PT-BR rule table into a library. Rules
// within each category are sorted ascending by priority (ties by intent
// name) at compile time; that order is the deterministic encounter order
// used for equal-confidence results.
func NewLibrary() *Library {
	lib := &Library{
		byCategory: make(map[string][]Pattern),
		byIntent:   make(map[string]Pattern),
	}
	for _, spec := range defaultPatternsPTBR {
		p := Pattern{
			Intent:          spec.intent,
			Pattern:         regexp.MustCompile(spec.pattern),
			ConfidenceBoost: spec.boost,
			Priority:        spec.priority,
			Description:     spec.description,
			Examples:        spec.examples,
		}
		cat := p.Category()
		if _, seen := lib.byCategory[cat]; !seen {
			lib.categories = append(lib.categories, cat)
		}
		lib.byCategory[cat] = append(lib.byCategory[cat], p)
		lib.byIntent[p.Intent] = p
	}
	for _, cat := range lib.categories {
		group := lib.byCategory[cat]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Priority != group[j].Priority {
				return group[i].Priority < group[j].Priority
			}
			return group[i].Intent < group[j].Intent
		})
	}
	slog.Debug("intent.NewLibrary: compiled rule set",
		"categories", len(lib.categories), "patterns", len(lib.byIntent))
	return lib
}

// ExtractIntents evaluates the message against every rule and returns the
// detections at or above minConfidence, sorted descending by confidence
// (stable, so ties keep category/rule encounter order).
//
// Confidence per matching rule:
//
//	min(0.95, 0.6 + confidence_boost + match_count/word_count + (5-priority)*0.02)
func (l *Library) ExtractIntents(message string, minConfidence float64) []DetectedIntent {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	normalized := strings.ToLower(message)
	wordCount := len(strings.Fields(normalized))

	var detected []DetectedIntent
	for _, cat := range l.categories {
		for _, p := range l.byCategory[cat] {
			matches := p.Pattern.FindAllString(normalized, -1)
			if len(matches) == 0 {
				continue
			}
			density := float64(len(matches)) / float64(wordCount)
			bonus := float64(5-p.Priority) * priorityBonusStep
			confidence := baseConfidence + p.ConfidenceBoost + density + bonus
			if confidence > maxConfidence {
				confidence = maxConfidence
			}
			if confidence < minConfidence {
				continue
			}
			detected = append(detected, DetectedIntent{
				Intent:        p.Intent,
				Confidence:    confidence,
				PatternSource: patternSource,
				Matches:       matches,
				Description:   p.Description,
			})
		}
	}

	sort.SliceStable(detected, func(i, j int) bool {
		return detected[i].Confidence > detected[j].Confidence
	})
	return detected
}

// GetPatternsByCategory returns every rule whose intent lives under the
// given top-level category.
func (l *Library) GetPatternsByCategory(category string) []Pattern {
	group := l.byCategory[category]
	out := make([]Pattern, len(group))
	copy(out, group)
	return out
}

// GetHighPriorityPatterns returns every rule with priority <= maxPriority.
func (l *Library) GetHighPriorityPatterns(maxPriority int) []Pattern {
	var out []Pattern
	for _, cat := range l.categories {
		for _, p := range l.byCategory[cat] {
			if p.Priority <= maxPriority {
				out = append(out, p)
			}
		}
	}
	return out
}

// Categories returns the category names in encounter order.
func (l *Library) Categories() []string {
	out := make([]string, len(l.categories))
	copy(out, l.categories)
	return out
}

// TestReport summarizes how a single rule performed against a labeled
// message set. Used for rule validation and tuning, not at serving time.
type TestReport struct {
	Intent   string
	Total    int
	Matched  int
	Missed   []string
	Accuracy float64
}

// TestPattern runs one rule against a set of messages expected to match it.
// An unknown intent name is reported as an error, not a panic.
func (l *Library) TestPattern(intentName string, messages []string) (TestReport, error) {
	p, ok := l.byIntent[intentName]
	if !ok {
		return TestReport{}, fmt.Errorf("intent: unknown intent %q", intentName)
	}
	report := TestReport{Intent: intentName, Total: len(messages)}
	for _, msg := range messages {
		if p.Pattern.MatchString(strings.ToLower(msg)) {
			report.Matched++
		} else {
			report.Missed = append(report.Missed, msg)
		}
	}
	if report.Total > 0 {
		report.Accuracy = float64(report.Matched) / float64(report.Total)
	}
	return report, nil
}

// TopCategories extracts the distinct top-level categories of a detection
// list, preserving first-seen order.
func TopCategories(detected []DetectedIntent) []string {
	var cats []string
	seen := make(map[string]bool)
	for _, d := range detected {
		cat := d.Intent
		if i := strings.IndexByte(cat, '.'); i >= 0 {
			cat = cat[:i]
		}
		if !seen[cat] {
			seen[cat] = true
			cats = append(cats, cat)
		}
	}
	return cats
}
