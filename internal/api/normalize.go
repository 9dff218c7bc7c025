// Package api provides the webhook HTTP server and the response
// normalization boundary for AtendeFlow.
//
// This file implements the final defensive layer between the classification
// pipeline and the wire: every field of the outbound payload is coerced
// independently, so upstream bugs degrade to typed defaults instead of
// breaking the webhook contract.
package api

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/EduFluxo/AtendeFlow/internal/models"
)

// Fixed PT-BR fallback texts. Part of the wire contract; reproduced
// byte-for-byte.
const (
	// FallbackApologyText replaces a missing or empty response body.
	FallbackApologyText = "Desculpe, não consegui processar sua mensagem. Pode repetir, por favor?"
	// FallbackErrorText replaces a response body of the wrong type.
	FallbackErrorText = "Ops, algo deu errado por aqui. Pode tentar novamente em alguns instantes?"
	// FallbackGreetingText replaces a response body that leaked English.
	FallbackGreetingText = "Olá! Que bom ter você por aqui. Como posso ajudar?"
)

// englishMarkers are space-delimited tokens used as a blunt language-leak
// guard. This is deliberately not a language detector: it false-positives on
// short PT messages containing these exact words and false-negatives on
// English without them, but it is the compatible behavior.
var englishMarkers = []string{"the", "is", "are", "you", "your", "please", "hello", "thanks"}

// intentSynonyms maps normalized (casefolded, separator-stripped) labels
// onto the closed webhook intent set.
var intentSynonyms = map[string]models.WebhookIntent{
	"greeting":           models.WebhookIntentGreeting,
	"greet":              models.WebhookIntentGreeting,
	"saudacao":           models.WebhookIntentGreeting,
	"ola":                models.WebhookIntentGreeting,
	"hello":              models.WebhookIntentGreeting,
	"informationrequest": models.WebhookIntentInformationRequest,
	"information":        models.WebhookIntentInformationRequest,
	"info":               models.WebhookIntentInformationRequest,
	"informacao":         models.WebhookIntentInformationRequest,
	"pricing":            models.WebhookIntentInformationRequest,
	"qualification":      models.WebhookIntentQualification,
	"qualificacao":       models.WebhookIntentQualification,
	"qualify":            models.WebhookIntentQualification,
	"scheduling":         models.WebhookIntentScheduling,
	"schedule":           models.WebhookIntentScheduling,
	"agendamento":        models.WebhookIntentScheduling,
	"booking":            models.WebhookIntentScheduling,
	"fallback":           models.WebhookIntentFallback,
	"unknown":            models.WebhookIntentFallback,
	"objection":          models.WebhookIntentObjection,
	"objecao":            models.WebhookIntentObjection,
	"priceobjection":     models.WebhookIntentObjection,
}

// safeErrorResponse is the fixed minimal payload returned when normalization
// itself fails. It must always be constructible without any upstream data.
func safeErrorResponse() models.WebhookResponse {
	return models.WebhookResponse{
		Sent:         "false",
		Confidence:   0.0,
		Entities:     map[string]any{},
		Intent:       models.WebhookIntentFallback,
		ResponseText: FallbackErrorText,
		Status:       "error",
	}
}

// NormalizeWebhookResponse coerces a raw orchestration result into the
// webhook contract. It never panics and never returns an invalid payload:
// any internal failure collapses to the fixed safe-error response.
func NormalizeWebhookResponse(raw map[string]any) (resp models.WebhookResponse) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("api.NormalizeWebhookResponse: recovered from panic", "panic", r)
			resp = safeErrorResponse()
		}
	}()

	resp = models.WebhookResponse{
		Sent:         coerceSent(raw["sent"]),
		Confidence:   coerceConfidence(raw["confidence"]),
		Entities:     coerceEntities(raw["entities"]),
		Intent:       coerceIntent(raw["intent"]),
		RoutingHint:  coerceRoutingHint(raw["routing_hint"]),
		ResponseText: coerceResponseText(raw["response_text"]),
		Status:       "success",
	}
	return resp
}

// coerceSent renders the sent flag as the strings "true"/"false" only.
// Unrecognized values default to "false".
func coerceSent(v any) string {
	switch s := v.(type) {
	case bool:
		if s {
			return "true"
		}
		return "false"
	case int:
		if s != 0 {
			return "true"
		}
		return "false"
	case float64:
		if s != 0 {
			return "true"
		}
		return "false"
	case string:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes":
			return "true"
		case "false", "0", "no":
			return "false"
		}
	}
	return "false"
}

// coerceConfidence parses any numeric-like value and clamps it to [0,1].
// Unparseable input, including nil, becomes 0.0. Note an out-of-range but
// parseable value is clamped, not treated as invalid.
func coerceConfidence(v any) float64 {
	var parsed float64
	switch c := v.(type) {
	case float64:
		parsed = c
	case float32:
		parsed = float64(c)
	case int:
		parsed = float64(c)
	case int64:
		parsed = float64(c)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0.0
		}
		parsed = f
	default:
		return 0.0
	}
	if parsed != parsed { // NaN
		return 0.0
	}
	if parsed < 0 {
		return 0.0
	}
	if parsed > 1 {
		return 1.0
	}
	return parsed
}

// coerceEntities keeps only map-shaped entities.
func coerceEntities(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// coerceIntent folds the raw label and resolves it through the synonym
// table; anything unmatched becomes fallback.
func coerceIntent(v any) models.WebhookIntent {
	s, ok := v.(string)
	if !ok {
		return models.WebhookIntentFallback
	}
	folded := strings.ToLower(strings.TrimSpace(s))
	for _, sep := range []string{"_", "-", " ", "."} {
		folded = strings.ReplaceAll(folded, sep, "")
	}
	if intent, ok := intentSynonyms[folded]; ok {
		return intent
	}
	return models.WebhookIntentFallback
}

// coerceRoutingHint passes through allow-listed hints and drops everything
// else (empty string, the literal "null", non-strings, unknown hints).
func coerceRoutingHint(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	if !models.AllowedRoutingHints[s] {
		return nil
	}
	return &s
}

// coerceResponseText guarantees a non-empty PT-BR body: missing/empty input
// gets the apology fallback, wrong-typed input the error fallback, and
// English-leaking input the greeting fallback.
func coerceResponseText(v any) string {
	if v == nil {
		return FallbackApologyText
	}
	s, ok := v.(string)
	if !ok {
		return FallbackErrorText
	}
	if strings.TrimSpace(s) == "" {
		return FallbackApologyText
	}
	if leaksEnglish(s) {
		return FallbackGreetingText
	}
	return s
}

// leaksEnglish reports whether the text contains any English marker token
// surrounded by spaces.
func leaksEnglish(text string) bool {
	padded := " " + strings.ToLower(text) + " "
	for _, marker := range englishMarkers {
		if strings.Contains(padded, " "+marker+" ") {
			return true
		}
	}
	return false
}
