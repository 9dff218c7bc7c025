package prefilter

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Index is a build-once, query-many multi-pattern matcher over rule
// literals. After Build returns, the index is immutable and safe for
// concurrent queries without locking; rebuilding requires a fresh instance.
type Index struct {
	built  bool
	nodes  []acNode
	groups []literalGroup
}

// literalGroup collects every rule sharing one normalized literal. Rules are
// ordered by descending priority, then lexical rule id, for determinism.
type literalGroup struct {
	literal string
	rules   []Rule
}

// acNode is one state of the Aho-Corasick automaton.
type acNode struct {
	next map[rune]int
	fail int
	out  []int // indices into Index.groups terminating at this state
}

// NewIndex creates an empty, unbuilt index.
func NewIndex() *Index {
	return &Index{}
}

// Build constructs the matcher from the given rules. It validates every rule
// (id format, literal length, duplicate ids) and fails on the first
// violation. Build may be called exactly once per instance.
func (ix *Index) Build(rules []Rule) (BuildMetrics, error) {
	if ix.built {
		return BuildMetrics{}, ErrAlreadyBuilt
	}
	start := time.Now()

	seen := make(map[string]bool, len(rules))
	byLiteral := make(map[string][]Rule)
	totalLiteralLen := 0
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return BuildMetrics{}, err
		}
		if seen[r.RuleID] {
			return BuildMetrics{}, fmt.Errorf("%w: %q", ErrDuplicateRule, r.RuleID)
		}
		seen[r.RuleID] = true

		lit := Normalize(r.Literal)
		totalLiteralLen += len([]rune(lit))
		byLiteral[lit] = append(byLiteral[lit], r)
	}

	// Deterministic group layout: literals sorted lexically, rules within a
	// group by descending priority then lexical rule id.
	literals := make([]string, 0, len(byLiteral))
	for lit := range byLiteral {
		literals = append(literals, lit)
	}
	sort.Strings(literals)
	ix.groups = make([]literalGroup, 0, len(literals))
	for _, lit := range literals {
		group := byLiteral[lit]
		sort.Slice(group, func(i, j int) bool {
			if group[i].Priority != group[j].Priority {
				return group[i].Priority > group[j].Priority
			}
			return group[i].RuleID < group[j].RuleID
		})
		ix.groups = append(ix.groups, literalGroup{literal: lit, rules: group})
	}

	ix.compile()
	ix.built = true

	metrics := BuildMetrics{
		RuleCount:      len(rules),
		UniqueLiterals: len(ix.groups),
		BuildTime:      time.Since(start),
	}
	if len(rules) > 0 {
		metrics.AvgLiteralLength = float64(totalLiteralLen) / float64(len(rules))
	}
	slog.Debug("prefilter.Build: index constructed",
		"rules", metrics.RuleCount,
		"unique_literals", metrics.UniqueLiterals,
		"build_time", metrics.BuildTime)
	return metrics, nil
}

// compile builds the automaton: a trie over all group literals, then
// breadth-first failure links with output merging, so a single pass over the
// query text visits every literal occurrence.
func (ix *Index) compile() {
	ix.nodes = []acNode{{next: make(map[rune]int)}}

	for gi, g := range ix.groups {
		cur := 0
		for _, r := range g.literal {
			nxt, ok := ix.nodes[cur].next[r]
			if !ok {
				ix.nodes = append(ix.nodes, acNode{next: make(map[rune]int)})
				nxt = len(ix.nodes) - 1
				ix.nodes[cur].next[r] = nxt
			}
			cur = nxt
		}
		ix.nodes[cur].out = append(ix.nodes[cur].out, gi)
	}

	// BFS for failure links.
	queue := make([]int, 0, len(ix.nodes))
	for _, child := range ix.nodes[0].next {
		ix.nodes[child].fail = 0
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for r, child := range ix.nodes[cur].next {
			queue = append(queue, child)
			f := ix.nodes[cur].fail
			for f != 0 {
				if _, ok := ix.nodes[f].next[r]; ok {
					break
				}
				f = ix.nodes[f].fail
			}
			if target, ok := ix.nodes[f].next[r]; ok && target != child {
				ix.nodes[child].fail = target
			} else {
				ix.nodes[child].fail = 0
			}
			ix.nodes[child].out = append(ix.nodes[child].out, ix.nodes[ix.nodes[child].fail].out...)
		}
	}
}

// Query normalizes text exactly as Build normalized literals, scans it once,
// and returns the ids of every rule whose literal occurs as a substring,
// optionally filtered by language tag. Calling Query before Build is a
// programmer error and returns ErrNotBuilt.
func (ix *Index) Query(text string, languageFilter string) (map[string]bool, QueryMetrics, error) {
	if !ix.built {
		return nil, QueryMetrics{}, ErrNotBuilt
	}
	start := time.Now()
	normalized := Normalize(text)

	hitGroups := make(map[int]bool)
	state := 0
	for _, r := range normalized {
		for state != 0 {
			if _, ok := ix.nodes[state].next[r]; ok {
				break
			}
			state = ix.nodes[state].fail
		}
		if nxt, ok := ix.nodes[state].next[r]; ok {
			state = nxt
		}
		for _, gi := range ix.nodes[state].out {
			hitGroups[gi] = true
		}
	}

	candidates := make(map[string]bool)
	for gi := range hitGroups {
		for _, rule := range ix.groups[gi].rules {
			if languageFilter != "" && rule.Language != languageFilter {
				continue
			}
			candidates[rule.RuleID] = true
		}
	}

	metrics := QueryMetrics{
		TextLength:     len([]rune(normalized)),
		LiteralHits:    len(hitGroups),
		CandidateCount: len(candidates),
		Elapsed:        time.Since(start),
	}
	return candidates, metrics, nil
}

// Built reports whether Build has completed.
func (ix *Index) Built() bool {
	return ix.built
}
