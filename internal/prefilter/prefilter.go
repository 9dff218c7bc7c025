// Package prefilter narrows the candidate intent-rule set before regex
// evaluation.
//
// It builds a multi-pattern substring matcher over the literal anchors of the
// configured rules, so that a single scan of an inbound message excludes most
// rules without ever touching their regexes. Literals must be chosen as
// necessary substrings of the governing regex: a literal miss guarantees the
// regex cannot match, while a literal hit only nominates the rule for full
// evaluation.
package prefilter

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// MinLiteralLength is the minimum normalized literal length accepted at
// build time. Shorter literals match almost everything and defeat the filter.
const MinLiteralLength = 3

// Configuration errors surfaced at build time. A broken rule set would
// silently degrade classification quality, so these are startup-fatal.
var (
	ErrLiteralTooShort = errors.New("prefilter: literal shorter than minimum after normalization")
	ErrInvalidRuleID   = errors.New("prefilter: rule id must match [a-z0-9_.-]+")
	ErrDuplicateRule   = errors.New("prefilter: duplicate rule id")
)

// State errors. These indicate integration bugs, not bad input.
var (
	ErrAlreadyBuilt = errors.New("prefilter: index already built")
	ErrNotBuilt     = errors.New("prefilter: index queried before build")
)

var ruleIDPattern = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// Rule associates a literal anchor with the intent rule it nominates.
type Rule struct {
	RuleID   string `yaml:"rule_id" json:"rule_id"`
	Literal  string `yaml:"literal" json:"literal"`
	Priority int    `yaml:"priority" json:"priority"`
	Language string `yaml:"language" json:"language"`
}

// Validate checks the rule shape against the build-time invariants.
// The literal is checked after normalization so accented configuration
// entries are measured the same way they will be matched.
func (r Rule) Validate() error {
	if !ruleIDPattern.MatchString(r.RuleID) {
		return fmt.Errorf("%w: %q", ErrInvalidRuleID, r.RuleID)
	}
	if len([]rune(Normalize(r.Literal))) < MinLiteralLength {
		return fmt.Errorf("%w: rule %q literal %q", ErrLiteralTooShort, r.RuleID, r.Literal)
	}
	return nil
}

// BuildMetrics reports what the index construction produced.
type BuildMetrics struct {
	RuleCount        int
	UniqueLiterals   int
	AvgLiteralLength float64
	BuildTime        time.Duration
}

// QueryMetrics reports per-query timing and narrowing efficiency.
type QueryMetrics struct {
	TextLength     int
	LiteralHits    int
	CandidateCount int
	Elapsed        time.Duration
}
