// Package heuristics supplies additive confidence corrections that the
// regex layer alone misses: temporal expressions, staff references, domain
// vocabulary, multi-intent composition, message coherence, and urgency.
//
// Each analyzer is independent and side-effect free. Contributions are
// summed with diminishing returns and a hard ceiling, so no combination of
// signals can dominate the pattern confidence they adjust.
package heuristics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/EduFluxo/AtendeFlow/internal/intent"
)

// Aggregation constants. The knee and ceiling are tuned together with the
// routing thresholds downstream.
const (
	// diminishKnee is the total boost above which further signal is halved.
	diminishKnee = 0.10
	// diminishFactor applies to the excess above the knee.
	diminishFactor = 0.5
	// maxTotalBoost is the hard ceiling on the aggregated boost.
	maxTotalBoost = 0.25
)

// Result is the outcome of one analyzer for one message.
type Result struct {
	Detected        bool
	ConfidenceBoost float64
	Entities        []string
	Reasoning       string
}

// Booster runs the heuristic analyzers. Immutable after construction; safe
// for concurrent use.
type Booster struct {
	professionals []string
}

// Opts holds configuration options for the Booster.
type Opts struct {
	Establishment string
	Professionals []string
}

// Option defines a configuration option for the Booster.
type Option func(*Opts)

// WithEstablishment selects the per-establishment staff allow-list. Unknown
// establishments fall back to the generic default set.
func WithEstablishment(id string) Option {
	return func(o *Opts) {
		o.Establishment = id
	}
}

// WithProfessionals overrides the staff allow-list directly.
func WithProfessionals(names []string) Option {
	return func(o *Opts) {
		o.Professionals = names
	}
}

// NewBooster creates a Booster, resolving the staff allow-list from the
// options: an explicit list wins, then the establishment registry, then the
// generic default set.
func NewBooster(opts ...Option) *Booster {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	professionals := cfg.Professionals
	if professionals == nil {
		if byEstablishment, ok := professionalsByEstablishment[cfg.Establishment]; ok {
			professionals = byEstablishment
		} else {
			professionals = defaultProfessionals
		}
	}
	lowered := make([]string, len(professionals))
	for i, name := range professionals {
		lowered[i] = strings.ToLower(name)
	}
	return &Booster{professionals: lowered}
}

// Temporal expression families. Each family contributes its own weight once
// regardless of how many times it matches; the detector total caps at 0.12.
var (
	specificTimeRegex = regexp.MustCompile(`\b\d{1,2}([:h]\d{2}|\s*(h|hs|horas?))\b`)
	weekdayRegex      = regexp.MustCompile(`\b(segunda|ter[cç]a|quarta|quinta|sexta|s[aá]bado|domingo)(-feira)?\b`)
	relativeDateRegex = regexp.MustCompile(`\b(hoje|amanh[aã]|depois de amanh[aã]|semana que vem|pr[oó]xim[ao] (semana|m[eê]s))\b`)
	numericDateRegex  = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(/\d{2,4})?\b`)
	monthNameRegex    = regexp.MustCompile(`\b(janeiro|fevereiro|mar[cç]o|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\b`)
)

const temporalCap = 0.12

// AnalyzeTemporal detects explicit time-of-day, weekday, relative-date,
// numeric-date and month-name expressions. Weights: specific time +0.08,
// weekday +0.06, relative date +0.05, other families +0.03 each; capped at
// +0.12.
func (b *Booster) AnalyzeTemporal(message string) Result {
	lower := strings.ToLower(message)
	boost := 0.0
	var entities []string
	var reasons []string

	families := []struct {
		re     *regexp.Regexp
		weight float64
		label  string
	}{
		{specificTimeRegex, 0.08, "specific_time"},
		{weekdayRegex, 0.06, "weekday"},
		{relativeDateRegex, 0.05, "relative_date"},
		{numericDateRegex, 0.03, "numeric_date"},
		{monthNameRegex, 0.03, "month_name"},
	}
	for _, f := range families {
		if hits := f.re.FindAllString(lower, -1); len(hits) > 0 {
			boost += f.weight
			entities = append(entities, hits...)
			reasons = append(reasons, f.label)
		}
	}
	if boost > temporalCap {
		boost = temporalCap
	}
	return Result{
		Detected:        boost > 0,
		ConfidenceBoost: boost,
		Entities:        entities,
		Reasoning:       reasonOrNone("temporal families: ", reasons),
	}
}

const (
	professionalPerMatch = 0.05
	professionalCap      = 0.10
)

// AnalyzeProfessionalReferences looks for staff nicknames and roles from the
// establishment allow-list as case-insensitive substrings. Boost is
// min(0.05 * matches, 0.10).
func (b *Booster) AnalyzeProfessionalReferences(message string) Result {
	lower := strings.ToLower(message)
	var entities []string
	for _, name := range b.professionals {
		if strings.Contains(lower, name) {
			entities = append(entities, name)
		}
	}
	boost := professionalPerMatch * float64(len(entities))
	if boost > professionalCap {
		boost = professionalCap
	}
	return Result{
		Detected:        len(entities) > 0,
		ConfidenceBoost: boost,
		Entities:        entities,
		Reasoning:       reasonOrNone("staff references: ", entities),
	}
}

const (
	vocabularyPerTerm  = 0.02
	vocabularyCapEach  = 0.06
	vocabularyCapTotal = 0.10
)

// AnalyzeServiceVocabulary scans the four fixed subject vocabularies. Each
// vocabulary contributes min(0.02 * term matches, 0.06); the sum across
// vocabularies caps at 0.10.
func (b *Booster) AnalyzeServiceVocabulary(message string) Result {
	lower := strings.ToLower(message)
	boost := 0.0
	var entities []string
	var reasons []string

	for _, vocab := range serviceVocabularies {
		matches := 0
		for _, term := range vocab.terms {
			if strings.Contains(lower, term) {
				matches++
				entities = append(entities, term)
			}
		}
		if matches == 0 {
			continue
		}
		contribution := vocabularyPerTerm * float64(matches)
		if contribution > vocabularyCapEach {
			contribution = vocabularyCapEach
		}
		boost += contribution
		reasons = append(reasons, fmt.Sprintf("%s(%d)", vocab.name, matches))
	}
	if boost > vocabularyCapTotal {
		boost = vocabularyCapTotal
	}
	return Result{
		Detected:        boost > 0,
		ConfidenceBoost: boost,
		Entities:        entities,
		Reasoning:       reasonOrNone("vocabularies: ", reasons),
	}
}

const multiIntentCap = 0.15

// AnalyzeMultiIntent rewards meaningful intent co-occurrence. It needs at
// least two detections to activate. Fixed bonuses: scheduling+temporal
// +0.08, scheduling+service +0.06, information+service +0.04, three or more
// distinct categories +0.03; capped at 0.15.
func (b *Booster) AnalyzeMultiIntent(detected []intent.DetectedIntent) Result {
	if len(detected) < 2 {
		return Result{Reasoning: "fewer than two intents"}
	}
	categories := intent.TopCategories(detected)
	has := make(map[string]bool, len(categories))
	for _, c := range categories {
		has[c] = true
	}

	boost := 0.0
	var reasons []string
	if has["scheduling"] && has["temporal"] {
		boost += 0.08
		reasons = append(reasons, "scheduling+temporal")
	}
	if has["scheduling"] && has["service"] {
		boost += 0.06
		reasons = append(reasons, "scheduling+service")
	}
	if has["information"] && has["service"] {
		boost += 0.04
		reasons = append(reasons, "information+service")
	}
	if len(categories) >= 3 {
		boost += 0.03
		reasons = append(reasons, "three_or_more_categories")
	}
	if boost > multiIntentCap {
		boost = multiIntentCap
	}
	return Result{
		Detected:        boost > 0,
		ConfidenceBoost: boost,
		Entities:        categories,
		Reasoning:       reasonOrNone("compositions: ", reasons),
	}
}

// Coherence vocabulary and bounds.
var (
	questionMarkers = []string{"?", "como", "quando", "onde", "qual", "quanto", "quem"}
	politeWords     = []string{"por favor", "obrigad", "bom dia", "boa tarde", "boa noite", "gostaria"}

	familyWordsRegex = regexp.MustCompile(`\b(filh[ao]s?|crian[cç]as?|alun[ao]s?|escola|estud)\w*`)
)

const (
	coherenceMinWords = 3
	coherenceMaxWords = 30
)

// AnalyzeCoherence rewards well-formed messages: reasonable length (3-30
// words) +0.02, question markers +0.03, polite register +0.02, family or
// educational context +0.02. The natural sum tops out at 0.09.
func (b *Booster) AnalyzeCoherence(message string) Result {
	lower := strings.ToLower(message)
	words := len(strings.Fields(lower))
	boost := 0.0
	var reasons []string

	if words >= coherenceMinWords && words <= coherenceMaxWords {
		boost += 0.02
		reasons = append(reasons, "reasonable_length")
	}
	question := false
	for _, marker := range questionMarkers {
		if strings.Contains(lower, marker) {
			question = true
			break
		}
	}
	if question {
		boost += 0.03
		reasons = append(reasons, "question")
	}
	for _, w := range politeWords {
		if strings.Contains(lower, w) {
			boost += 0.02
			reasons = append(reasons, "polite_register")
			break
		}
	}
	if familyWordsRegex.MatchString(lower) {
		boost += 0.02
		reasons = append(reasons, "family_context")
	}
	return Result{
		Detected:        boost > 0,
		ConfidenceBoost: boost,
		Reasoning:       reasonOrNone("coherence: ", reasons),
	}
}

// Urgency tiers. The low tier is a penalty: "sem pressa" actively signals
// the opposite of urgency.
var (
	highUrgencyRegex = regexp.MustCompile(`\b(urgente|urg[eê]ncia|imediatamente|agora|hoje mesmo)\b`)
	medUrgencyRegex  = regexp.MustCompile(`\b(o quanto antes|assim que poss[ií]vel|r[aá]pido|logo)\b`)
	lowUrgencyRegex  = regexp.MustCompile(`\b(sem pressa|qualquer dia|quando der|sem urg[eê]ncia)\b`)
)

// AnalyzeUrgency sums the urgency tier weights: high +0.05, medium +0.03,
// low/no-rush -0.02. The result can be negative.
func (b *Booster) AnalyzeUrgency(message string) Result {
	lower := strings.ToLower(message)
	boost := 0.0
	var reasons []string
	var entities []string

	tiers := []struct {
		re     *regexp.Regexp
		weight float64
		label  string
	}{
		{highUrgencyRegex, 0.05, "high"},
		{medUrgencyRegex, 0.03, "medium"},
		{lowUrgencyRegex, -0.02, "low"},
	}
	for _, tier := range tiers {
		if hits := tier.re.FindAllString(lower, -1); len(hits) > 0 {
			boost += tier.weight
			reasons = append(reasons, tier.label)
			entities = append(entities, hits...)
		}
	}
	return Result{
		Detected:        boost != 0,
		ConfidenceBoost: boost,
		Entities:        entities,
		Reasoning:       reasonOrNone("urgency tiers: ", reasons),
	}
}

// AnalyzeAll runs the six analyzers for one message and its already-detected
// intent list.
func (b *Booster) AnalyzeAll(message string, detected []intent.DetectedIntent) []Result {
	return []Result{
		b.AnalyzeTemporal(message),
		b.AnalyzeProfessionalReferences(message),
		b.AnalyzeServiceVocabulary(message),
		b.AnalyzeMultiIntent(detected),
		b.AnalyzeCoherence(message),
		b.AnalyzeUrgency(message),
	}
}

// TotalBoost aggregates analyzer results: plain sum, then diminishing
// returns above 0.10 (excess halved), then the 0.25 hard ceiling. The value
// is an additive input to the final confidence, never multiplicative.
func TotalBoost(results []Result) float64 {
	total := 0.0
	for _, r := range results {
		total += r.ConfidenceBoost
	}
	if total > diminishKnee {
		total = diminishKnee + (total-diminishKnee)*diminishFactor
	}
	if total > maxTotalBoost {
		total = maxTotalBoost
	}
	return total
}

func reasonOrNone(prefix string, parts []string) string {
	if len(parts) == 0 {
		return "no signal"
	}
	return prefix + strings.Join(parts, ", ")
}
