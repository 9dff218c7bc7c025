// Package flow implements the AtendeFlow receptionist: the per-message
// pipeline that turns one inbound WhatsApp text into a routing decision and
// a reply.
//
// The pipeline for each message is: prefilter candidate lookup → regex
// pattern scoring → heuristic confidence boost → external classifier →
// threshold routing decision → stage transition and reply selection. Every
// stage degrades instead of failing: a classifier outage scores zero
// confidence, a store outage re-anchors at the greeting stage, and the
// caller always receives a response map.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/EduFluxo/AtendeFlow/internal/config"
	"github.com/EduFluxo/AtendeFlow/internal/genai"
	"github.com/EduFluxo/AtendeFlow/internal/heuristics"
	"github.com/EduFluxo/AtendeFlow/internal/intent"
	"github.com/EduFluxo/AtendeFlow/internal/messaging"
	"github.com/EduFluxo/AtendeFlow/internal/models"
	"github.com/EduFluxo/AtendeFlow/internal/prefilter"
	"github.com/EduFluxo/AtendeFlow/internal/routing"
	"github.com/EduFluxo/AtendeFlow/internal/store"
)

// ErrNoStore is returned when a Receptionist is built without a conversation store.
var ErrNoStore = errors.New("conversation store is required")

// ruleLanguage is the language tag every built-in prefilter rule carries.
const ruleLanguage = "pt-BR"

// Classifier is the external intent classifier surface the flow depends on.
// The production implementation is genai.Client.
type Classifier interface {
	ClassifyIntent(ctx context.Context, message string) (genai.Classification, error)
	GenerateReply(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Opts holds configuration options for the Receptionist.
type Opts struct {
	Store         store.ConversationStore
	Classifier    Classifier
	Sender        messaging.Service
	Rules         []prefilter.Rule
	Thresholds    *routing.Thresholds
	Establishment string
}

// Option defines a configuration option for the Receptionist.
type Option func(*Opts)

// WithStore sets the conversation-state store. Required.
func WithStore(s store.ConversationStore) Option {
	return func(o *Opts) { o.Store = s }
}

// WithClassifier sets the external intent classifier. When absent the flow
// runs on pattern confidence alone.
func WithClassifier(c Classifier) Option {
	return func(o *Opts) { o.Classifier = c }
}

// WithSender sets the outbound messaging service. When absent replies are
// returned in the response map but not delivered.
func WithSender(s messaging.Service) Option {
	return func(o *Opts) { o.Sender = s }
}

// WithRules overrides the built-in prefilter rule set.
func WithRules(rules []prefilter.Rule) Option {
	return func(o *Opts) { o.Rules = rules }
}

// WithThresholds overrides the routing confidence bands.
func WithThresholds(t routing.Thresholds) Option {
	return func(o *Opts) { o.Thresholds = &t }
}

// WithEstablishment selects the per-establishment staff allow-list used by
// the heuristic booster.
func WithEstablishment(id string) Option {
	return func(o *Opts) { o.Establishment = id }
}

// Receptionist runs the classification pipeline for one establishment. Safe
// for concurrent use once constructed.
type Receptionist struct {
	index      *prefilter.Index
	library    *intent.Library
	booster    *heuristics.Booster
	engine     *routing.Engine
	store      store.ConversationStore
	classifier Classifier
	sender     messaging.Service
}

// NewReceptionist assembles the pipeline and builds the prefilter index; a
// rule set that fails validation is a construction error.
func NewReceptionist(opts ...Option) (*Receptionist, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Store == nil {
		return nil, ErrNoStore
	}

	rules := cfg.Rules
	if rules == nil {
		rules = config.DefaultRules()
	}
	index := prefilter.NewIndex()
	metrics, err := index.Build(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to build prefilter index: %w", err)
	}
	slog.Info("Prefilter index built", "rules", metrics.RuleCount, "unique_literals", metrics.UniqueLiterals)

	var engineOpts []routing.Option
	if cfg.Thresholds != nil {
		engineOpts = append(engineOpts, routing.WithThresholds(*cfg.Thresholds))
	}

	return &Receptionist{
		index:      index,
		library:    intent.NewLibrary(),
		booster:    heuristics.NewBooster(heuristics.WithEstablishment(cfg.Establishment)),
		engine:     routing.NewEngine(engineOpts...),
		store:      cfg.Store,
		classifier: cfg.Classifier,
		sender:     cfg.Sender,
	}, nil
}

var (
	greetingRegex  = regexp.MustCompile(`\b(oi|ola|olá|bom dia|boa tarde|boa noite)\b`)
	objectionRegex = regexp.MustCompile(`\b(muito car[oa]|car[oa] demais|t[aá] car[oa]|est[aá] car[oa]|achei car[oa]|n[aã]o tenho condi[cç][oõ]es)\b`)
)

// ProcessMessage runs the full pipeline for one inbound message and returns
// the raw response map the webhook normalizer coerces. It never returns an
// error: every failure mode degrades into the map itself.
func (r *Receptionist) ProcessMessage(ctx context.Context, from, body, establishment string) map[string]any {
	msg := models.IncomingMessage{From: from, Body: body, Establishment: establishment, ReceivedAt: time.Now()}
	if err := msg.Validate(); err != nil {
		slog.Warn("flow.ProcessMessage: invalid message", "error", err, "from_set", from != "")
		return map[string]any{
			"sent":          false,
			"confidence":    0.0,
			"entities":      map[string]any{},
			"intent":        string(models.WebhookIntentFallback),
			"response_text": "",
		}
	}

	stage, data, err := r.store.GetState(ctx, from)
	if err != nil {
		slog.Warn("flow.ProcessMessage: state lookup failed, re-anchoring at greeting", "error", err, "from", from)
		stage, data = models.StageGreeting, models.CollectedData{}
	}

	detected := r.extractIntents(body)
	patternConfidence := 0.0
	topIntent := ""
	if len(detected) > 0 {
		patternConfidence = detected[0].Confidence
		topIntent = detected[0].Intent
	}

	results, entities := r.analyze(body, establishment, detected)
	patternConfidence = clamp01(patternConfidence + heuristics.TotalBoost(results))

	intentConfidence := 0.0
	if r.classifier != nil {
		classification, err := r.classifier.ClassifyIntent(ctx, body)
		if err != nil {
			slog.Warn("flow.ProcessMessage: classifier unavailable, scoring zero", "error", err)
		} else {
			intentConfidence = classification.Confidence
		}
	}

	lower := strings.ToLower(body)
	isGreeting := topIntent == "" && greetingRegex.MatchString(lower)
	isObjection := objectionRegex.MatchString(lower)

	decision := r.engine.Decide(routing.Input{
		IntentConfidence:  intentConfidence,
		PatternConfidence: patternConfidence,
		CurrentStage:      stage,
		TargetStage:       r.targetStage(topIntent, stage, isGreeting),
		CollectedData:     data,
	})
	slog.Debug("flow.ProcessMessage: decision",
		"from", from, "target_node", decision.TargetNode, "action", decision.Action,
		"final_confidence", decision.FinalConfidence, "rule", decision.RuleApplied)

	r.applyTransition(ctx, from, stage, decision)

	replyText := r.composeReply(ctx, body, stage, decision)
	hint := routingHint(decision.Action, isObjection)

	sent := false
	if r.sender != nil && replyText != "" {
		if err := r.sender.SendMessage(ctx, from, replyText); err != nil {
			slog.Error("flow.ProcessMessage: reply delivery failed", "error", err, "from", from)
		} else {
			sent = true
		}
	}

	raw := map[string]any{
		"sent":          sent,
		"confidence":    decision.FinalConfidence,
		"entities":      entities,
		"intent":        string(webhookIntent(topIntent, isGreeting, isObjection, decision.Action)),
		"response_text": replyText,
	}
	if hint != "" {
		raw["routing_hint"] = hint
	}
	return raw
}

// extractIntents runs the prefilter gate and, only when at least one
// candidate literal is present, the full regex pass.
func (r *Receptionist) extractIntents(body string) []intent.DetectedIntent {
	candidates, metrics, err := r.index.Query(body, ruleLanguage)
	if err != nil {
		slog.Error("flow.extractIntents: prefilter query failed", "error", err)
		return nil
	}
	if len(candidates) == 0 {
		slog.Debug("flow.extractIntents: no candidate literals, skipping regex pass",
			"text_length", metrics.TextLength)
		return nil
	}
	return r.library.ExtractIntents(body, intent.DefaultMinConfidence)
}

// analyze runs every heuristic analyzer, returning the results for boost
// aggregation plus a labeled entity map for the webhook payload. A
// per-message establishment overrides the default staff allow-list.
func (r *Receptionist) analyze(body, establishment string, detected []intent.DetectedIntent) ([]heuristics.Result, map[string]any) {
	booster := r.booster
	if establishment != "" {
		booster = heuristics.NewBooster(heuristics.WithEstablishment(establishment))
	}

	temporal := booster.AnalyzeTemporal(body)
	professionals := booster.AnalyzeProfessionalReferences(body)
	services := booster.AnalyzeServiceVocabulary(body)
	multi := booster.AnalyzeMultiIntent(detected)
	coherence := booster.AnalyzeCoherence(body)
	urgency := booster.AnalyzeUrgency(body)

	entities := map[string]any{}
	if len(temporal.Entities) > 0 {
		entities["temporal"] = temporal.Entities
	}
	if len(professionals.Entities) > 0 {
		entities["professionals"] = professionals.Entities
	}
	if len(services.Entities) > 0 {
		entities["services"] = services.Entities
	}

	return []heuristics.Result{temporal, professionals, services, multi, coherence, urgency}, entities
}

// targetStage maps the winning intent onto the candidate next stage. A
// message with no recognized intent keeps the conversation where it is.
func (r *Receptionist) targetStage(topIntent string, current models.ConversationStage, isGreeting bool) models.ConversationStage {
	category := topIntent
	if i := strings.IndexByte(category, '.'); i >= 0 {
		category = category[:i]
	}
	switch category {
	case "scheduling":
		return models.StageScheduling
	case "information", "service", "payment":
		return models.StageInformationGathering
	}
	if isGreeting && current == models.StageGreeting {
		return models.StageQualification
	}
	return current
}

// applyTransition persists the stage the decision routed to. Only confident
// actions move the conversation; fallbacks re-anchor to the decision's
// fallback stage so the next turn restarts from solid ground.
func (r *Receptionist) applyTransition(ctx context.Context, from string, current models.ConversationStage, decision routing.Decision) {
	var next models.ConversationStage
	switch decision.Action {
	case routing.ActionProceed, routing.ActionEnhanceWithLLM:
		next = models.ConversationStage(decision.TargetNode)
	case routing.ActionFallbackLevel2:
		next = models.ConversationStage(decision.TargetNode)
	default:
		return
	}
	if !models.IsValidStage(next) || next == current {
		return
	}
	if err := r.store.SetStage(ctx, from, next); err != nil {
		slog.Error("flow.applyTransition: stage persistence failed", "error", err, "from", from, "stage", next)
	}
}

// CollectField records one qualification field gathered by the outer
// conversation workflow (e.g. the parent's name during qualification).
func (r *Receptionist) CollectField(ctx context.Context, participantID, field, value string) error {
	return r.store.SetCollectedField(ctx, participantID, field, value)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
