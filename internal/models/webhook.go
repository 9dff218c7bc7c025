// Package models defines the core data structures for AtendeFlow.
//
// This file holds the webhook wire contract: the closed intent label set,
// allowed routing hints, and the normalized response shape returned to the
// WhatsApp webhook caller. Field names and enum casing are part of the wire
// contract and must not change.
package models

// WebhookIntent is one of the closed set of intent labels the webhook may
// report upstream.
type WebhookIntent string

const (
	WebhookIntentGreeting           WebhookIntent = "greeting"
	WebhookIntentInformationRequest WebhookIntent = "information_request"
	WebhookIntentQualification      WebhookIntent = "qualification"
	WebhookIntentScheduling         WebhookIntent = "scheduling"
	WebhookIntentFallback           WebhookIntent = "fallback"
	WebhookIntentObjection          WebhookIntent = "objection"
)

// AllowedWebhookIntents enumerates every label the webhook contract accepts.
var AllowedWebhookIntents = []WebhookIntent{
	WebhookIntentGreeting,
	WebhookIntentInformationRequest,
	WebhookIntentQualification,
	WebhookIntentScheduling,
	WebhookIntentFallback,
	WebhookIntentObjection,
}

// RoutingHint values the webhook contract allows. Anything else is dropped.
const (
	RoutingHintPriceObjection = "handle_price_objection"
	RoutingHintClarification  = "ask_clarification"
	RoutingHintHandoffHuman   = "handoff_human"
)

// AllowedRoutingHints is the closed allow-list for the routing_hint field.
var AllowedRoutingHints = map[string]bool{
	RoutingHintPriceObjection: true,
	RoutingHintClarification:  true,
	RoutingHintHandoffHuman:   true,
}

// WebhookResponse is the normalized payload returned as the webhook HTTP
// body. Note sent is deliberately a string ("true"/"false"), confidence is
// always a clamped float, and routing_hint is omitted when nil.
type WebhookResponse struct {
	Sent         string         `json:"sent"`
	Confidence   float64        `json:"confidence"`
	Entities     map[string]any `json:"entities"`
	Intent       WebhookIntent  `json:"intent"`
	RoutingHint  *string        `json:"routing_hint,omitempty"`
	ResponseText string         `json:"response_text"`
	Status       string         `json:"status"`
}
