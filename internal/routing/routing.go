// Package routing converts the pipeline's confidence signals into exactly
// one routing decision per inbound message.
//
// The engine is the last-resort arbiter: it never returns an error and never
// panics for routing purposes. Malformed confidence inputs are clamped, not
// rejected, so every message always gets a decision.
package routing

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/EduFluxo/AtendeFlow/internal/models"
)

// Action is the routing action selected from the final confidence band.
type Action string

const (
	// ActionProceed advances to the candidate target stage directly.
	ActionProceed Action = "proceed"
	// ActionEnhanceWithLLM advances but asks the LLM to compose the reply.
	ActionEnhanceWithLLM Action = "enhance_with_llm"
	// ActionFallbackLevel1 stays on the current stage and re-prompts.
	ActionFallbackLevel1 Action = "fallback_level1"
	// ActionFallbackLevel2 drops to the stage's configured fallback.
	ActionFallbackLevel2 Action = "fallback_level2"
	// ActionEscalateHuman hands the conversation to a human attendant.
	ActionEscalateHuman Action = "escalate_human"
)

// HumanHandoffNode is the target node used when escalating to a human.
const HumanHandoffNode = "human_handoff"

// Blend weights for the two confidence sources. The external classifier
// carries more weight than the regex patterns; both values are part of the
// tuned contract with the threshold bands.
const (
	intentWeight  = 0.6
	patternWeight = 0.4
)

// Decision is the single authoritative output of the engine for one turn.
type Decision struct {
	TargetNode            string  `json:"target_node"`
	Action                Action  `json:"threshold_action"`
	FinalConfidence       float64 `json:"final_confidence"`
	RuleApplied           string  `json:"rule_applied"`
	Reasoning             string  `json:"reasoning"`
	IntentConfidence      float64 `json:"intent_confidence"`
	PatternConfidence     float64 `json:"pattern_confidence"`
	StageOverride         bool    `json:"stage_override"`
	MandatoryDataOverride bool    `json:"mandatory_data_override"`
}

// Input carries everything the engine needs for one turn. Callers construct
// it explicitly; the engine does not introspect arbitrary objects.
type Input struct {
	IntentConfidence  float64
	PatternConfidence float64
	CurrentStage      models.ConversationStage
	TargetStage       models.ConversationStage
	CollectedData     models.CollectedData
}

// Thresholds are the deployment-tunable confidence bands. Values are lower
// bounds: final >= Proceed proceeds, then each band in descending order;
// below Fallback2 escalates to a human.
type Thresholds struct {
	Proceed   float64
	Enhance   float64
	Fallback1 float64
	Fallback2 float64
}

// DefaultThresholds are starting values only; deployments tune them via
// configuration.
var DefaultThresholds = Thresholds{
	Proceed:   0.80,
	Enhance:   0.60,
	Fallback1: 0.40,
	Fallback2: 0.20,
}

// StagePrerequisite declares what must already be collected before a stage
// may be entered, and where to fall back when it is not.
type StagePrerequisite struct {
	RequiredFields []string
	FallbackStage  models.ConversationStage
	Priority       float64
}

// defaultPrerequisites is the static prerequisite table. The scheduling
// stage needs full qualification data; confirmation needs a chosen slot on
// top of that.
var defaultPrerequisites = map[models.ConversationStage]StagePrerequisite{
	models.StageScheduling: {
		RequiredFields: []string{"parent_name", "child_name", "student_age"},
		FallbackStage:  models.StageGreeting,
		Priority:       1.0,
	},
	models.StageConfirmation: {
		RequiredFields: []string{"parent_name", "child_name", "student_age", "selected_slot"},
		FallbackStage:  models.StageScheduling,
		Priority:       0.9,
	},
}

// stageMultipliers adjust the blended confidence for stage-specific priors:
// early stages forgive more, a completed conversation trusts almost nothing.
var stageMultipliers = map[models.ConversationStage]float64{
	models.StageGreeting:             1.2,
	models.StageQualification:        1.1,
	models.StageInformationGathering: 0.9,
	models.StageScheduling:           1.0,
	models.StageConfirmation:         1.0,
	models.StageCompleted:            0.5,
}

// Engine applies the threshold decision model. Immutable after construction
// and safe for concurrent use.
type Engine struct {
	thresholds    Thresholds
	prerequisites map[models.ConversationStage]StagePrerequisite
}

// Opts holds configuration options for the Engine.
type Opts struct {
	Thresholds    *Thresholds
	Prerequisites map[models.ConversationStage]StagePrerequisite
}

// Option defines a configuration option for the Engine.
type Option func(*Opts)

// WithThresholds overrides the default confidence bands.
func WithThresholds(t Thresholds) Option {
	return func(o *Opts) {
		o.Thresholds = &t
	}
}

// WithPrerequisites overrides the stage prerequisite table.
func WithPrerequisites(p map[models.ConversationStage]StagePrerequisite) Option {
	return func(o *Opts) {
		o.Prerequisites = p
	}
}

// NewEngine creates a threshold engine with the given options.
func NewEngine(opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{
		thresholds:    DefaultThresholds,
		prerequisites: defaultPrerequisites,
	}
	if cfg.Thresholds != nil {
		e.thresholds = *cfg.Thresholds
	}
	if cfg.Prerequisites != nil {
		e.prerequisites = cfg.Prerequisites
	}
	return e
}

// Decide produces the routing decision for one turn. It is a total
// function: out-of-range or non-finite confidences are clamped to [0,1] and
// unknown stages use a neutral multiplier.
func (e *Engine) Decide(in Input) Decision {
	intentConf := clamp01(in.IntentConfidence)
	patternConf := clamp01(in.PatternConfidence)

	// Step 1: mandatory data check. Unconditional, so no confidence score
	// can bypass required-field collection.
	if prereq, ok := e.prerequisites[in.TargetStage]; ok {
		missing := missingFields(prereq.RequiredFields, in.CollectedData)
		if len(missing) > 0 {
			decision := Decision{
				TargetNode:            string(prereq.FallbackStage),
				Action:                ActionFallbackLevel2,
				FinalConfidence:       patternConf,
				RuleApplied:           "mandatory_data_override",
				IntentConfidence:      intentConf,
				PatternConfidence:     patternConf,
				MandatoryDataOverride: true,
			}
			decision.Reasoning = fmt.Sprintf(
				"stage %q requires %v but %v missing; forcing fallback to %q",
				in.TargetStage, prereq.RequiredFields, missing, prereq.FallbackStage)
			slog.Debug("routing.Decide: mandatory data override",
				"target_stage", in.TargetStage, "missing", missing)
			return decision
		}
	}

	// Step 2: weighted blend with the current-stage multiplier.
	blended := intentWeight*intentConf + patternWeight*patternConf
	multiplier, known := stageMultipliers[in.CurrentStage]
	if !known {
		multiplier = 1.0
	}
	final := clamp01(blended * multiplier)

	// Step 3: band selection.
	action, target, rule := e.selectAction(final, in)

	decision := Decision{
		TargetNode:        target,
		Action:            action,
		FinalConfidence:   final,
		RuleApplied:       rule,
		IntentConfidence:  intentConf,
		PatternConfidence: patternConf,
		StageOverride:     multiplier != 1.0,
	}
	decision.Reasoning = fmt.Sprintf(
		"blend 0.6*%.3f + 0.4*%.3f = %.3f, stage %q multiplier %.2f -> final %.3f, action %s",
		intentConf, patternConf, blended, in.CurrentStage, multiplier, final, action)
	return decision
}

// selectAction maps the final confidence onto the configured bands and picks
// the target node for the chosen action.
func (e *Engine) selectAction(final float64, in Input) (Action, string, string) {
	switch {
	case final >= e.thresholds.Proceed:
		return ActionProceed, string(in.TargetStage), "threshold_band:proceed"
	case final >= e.thresholds.Enhance:
		return ActionEnhanceWithLLM, string(in.TargetStage), "threshold_band:enhance"
	case final >= e.thresholds.Fallback1:
		return ActionFallbackLevel1, string(in.CurrentStage), "threshold_band:fallback_level1"
	case final >= e.thresholds.Fallback2:
		return ActionFallbackLevel2, string(e.fallbackStage(in)), "threshold_band:fallback_level2"
	default:
		return ActionEscalateHuman, HumanHandoffNode, "threshold_band:escalate"
	}
}

// fallbackStage resolves where a level-2 fallback lands: the target stage's
// configured fallback when one exists, otherwise greeting.
func (e *Engine) fallbackStage(in Input) models.ConversationStage {
	if prereq, ok := e.prerequisites[in.TargetStage]; ok && prereq.FallbackStage != "" {
		return prereq.FallbackStage
	}
	return models.StageGreeting
}

// Prerequisite exposes the prerequisite entry for a stage, if any. The flow
// layer uses it to phrase re-collection prompts.
func (e *Engine) Prerequisite(stage models.ConversationStage) (StagePrerequisite, bool) {
	p, ok := e.prerequisites[stage]
	return p, ok
}

func missingFields(required []string, data models.CollectedData) []string {
	var missing []string
	for _, field := range required {
		if !data.Has(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// clamp01 forces a confidence into [0,1]; NaN and -Inf collapse to 0, +Inf
// to 1.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
