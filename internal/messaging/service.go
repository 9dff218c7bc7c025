// Package messaging provides pluggable message delivery transports for
// AtendeFlow.
//
// Two implementations exist: WhatsAppService on top of a direct whatsmeow
// session, and TwilioService on top of the Twilio WhatsApp Business API.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/EduFluxo/AtendeFlow/internal/models"
)

const (
	// DefaultChannelBufferSize is the buffer size for receipt and response channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel emits before dropping.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex strips everything that is not a digit from a recipient.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service is the message delivery abstraction the receptionist flow talks to.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates a recipient identifier and
	// returns its canonical form for this transport.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins background processing such as event polling.
	Start(ctx context.Context) error

	// Stop ends background processing and releases resources.
	Stop() error

	// Receipts returns delivery events for outbound messages.
	Receipts() <-chan models.Receipt

	// Responses returns incoming participant messages.
	Responses() <-chan models.Response
}

// canonicalizePhoneNumber reduces a recipient to bare digits and enforces a
// minimal plausible length. Shared by both transports.
func canonicalizePhoneNumber(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid phone number: no digits found in recipient")
	}
	if len(canonical) < 6 {
		return "", errors.New("invalid phone number: fewer than 6 digits")
	}
	return canonical, nil
}
