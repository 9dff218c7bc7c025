// Package models defines the core data structures for AtendeFlow.
//
// It includes conversation stages, inbound/outbound message types, and the
// webhook response contract shared across modules.
package models

import (
	"errors"
	"time"
)

// ConversationStage identifies where a participant is in the reception flow.
type ConversationStage string

const (
	// StageGreeting is the initial contact stage.
	StageGreeting ConversationStage = "greeting"
	// StageQualification collects who the contact is (parent, student, age).
	StageQualification ConversationStage = "qualification"
	// StageInformationGathering answers method/pricing questions.
	StageInformationGathering ConversationStage = "information_gathering"
	// StageScheduling books the diagnostic assessment.
	StageScheduling ConversationStage = "scheduling"
	// StageConfirmation confirms a booked assessment.
	StageConfirmation ConversationStage = "confirmation"
	// StageCompleted marks a finished conversation.
	StageCompleted ConversationStage = "completed"
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient   = errors.New("recipient cannot be empty")
	ErrEmptyMessageBody = errors.New("message body cannot be empty")
)

// IsValidStage checks if the given conversation stage is supported.
func IsValidStage(s ConversationStage) bool {
	switch s {
	case StageGreeting, StageQualification, StageInformationGathering,
		StageScheduling, StageConfirmation, StageCompleted:
		return true
	default:
		return false
	}
}

// ParseStage converts a raw string into a ConversationStage, defaulting to
// StageGreeting for unknown values so a corrupt stored stage never wedges a
// conversation.
func ParseStage(raw string) ConversationStage {
	s := ConversationStage(raw)
	if !IsValidStage(s) {
		return StageGreeting
	}
	return s
}

// CollectedData holds the qualification fields gathered so far for a
// participant, keyed by field name (e.g. "parent_name", "child_name").
type CollectedData map[string]string

// Has reports whether a field has been collected with a non-empty value.
func (d CollectedData) Has(field string) bool {
	v, ok := d[field]
	return ok && v != ""
}

// IncomingMessage represents one inbound WhatsApp message as delivered by a
// messaging transport or the webhook endpoint.
type IncomingMessage struct {
	From          string    `json:"from"`
	Body          string    `json:"body"`
	Establishment string    `json:"establishment,omitempty"`
	ReceivedAt    time.Time `json:"received_at,omitempty"`
}

// Validate checks the minimal shape required to process a message.
func (m IncomingMessage) Validate() error {
	if m.From == "" {
		return ErrEmptyRecipient
	}
	if m.Body == "" {
		return ErrEmptyMessageBody
	}
	return nil
}

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records a delivery event for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message response from a participant.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}
