package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	inats "github.com/aiox-platform/quill/internal/nats"
)

var (
	ErrMissingUser      = errors.New("inbound message has no user")
	ErrUnknownTransport = errors.New("unknown transport")
	ErrDomainNotAllowed = errors.New("sender domain not allowed")
	ErrMalformed        = errors.New("malformed inbound message")
)

// Validator rejects inbound messages that must not reach the pipeline.
type Validator struct {
	allowedDomains []string
	validate       *validator.Validate
}

// NewValidator creates a Validator. An empty allowedDomains admits every
// XMPP domain.
func NewValidator(allowedDomains []string) *Validator {
	return &Validator{
		allowedDomains: allowedDomains,
		validate:       validator.New(),
	}
}

// Validate checks the envelope of an inbound message.
func (v *Validator) Validate(in inats.InboundMessage) error {
	if err := v.validate.Struct(in); err != nil {
		return envelopeError(err)
	}

	if in.Transport != inats.TransportXMPP || len(v.allowedDomains) == 0 {
		return nil
	}
	domain := extractDomain(in.UserID)
	if !domainAllowed(domain, v.allowedDomains) {
		return fmt.Errorf("%w: %q", ErrDomainNotAllowed, domain)
	}
	return nil
}

// envelopeError maps field failures onto the package errors. A missing
// sender wins over a bad transport, which wins over anything else.
func envelopeError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var transport, other validator.FieldError
	for _, fe := range verrs {
		switch fe.Field() {
		case "UserID", "ReplyTo":
			if fe.Tag() == "required" {
				return ErrMissingUser
			}
			other = fe
		case "Transport":
			transport = fe
		default:
			if other == nil {
				other = fe
			}
		}
	}
	if transport != nil {
		return fmt.Errorf("%w: %q", ErrUnknownTransport, transport.Value())
	}
	return fmt.Errorf("%w: %s failed %s", ErrMalformed, other.Field(), other.Tag())
}

func extractDomain(jid string) string {
	// Strip resource
	bare := jid
	if idx := strings.Index(jid, "/"); idx >= 0 {
		bare = jid[:idx]
	}
	// Get domain after @
	if idx := strings.Index(bare, "@"); idx >= 0 {
		return bare[idx+1:]
	}
	return bare
}

func domainAllowed(domain string, allowed []string) bool {
	for _, d := range allowed {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}
