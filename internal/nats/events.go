package nats

import (
	"time"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamMessages = "QUILL_MESSAGES"
	StreamEvents   = "QUILL_EVENTS"
)

// Subject constants.
const (
	SubjectInboundMessage        = "quill.messages.inbound"
	SubjectOutboundMessagePrefix = "quill.messages.outbound" // quill.messages.outbound.{transport}
	SubjectAuditEvent            = "quill.events.audit"
)

// Transports a chat message can arrive on or leave through.
const (
	TransportXMPP    = "xmpp"
	TransportDiscord = "discord"
)

// OutboundSubject returns the subject the relay for transport consumes.
func OutboundSubject(transport string) string {
	return SubjectOutboundMessagePrefix + "." + transport
}

// InboundMessage is published when a user message arrives on any transport.
type InboundMessage struct {
	ID        string `json:"id" validate:"required,max=256"`
	UserID    string `json:"user_id" validate:"required,max=3071"`
	Transport string `json:"transport" validate:"required,oneof=xmpp discord"`
	// ReplyTo is the transport address replies go to: a full JID for XMPP,
	// the user id for Discord.
	ReplyTo string `json:"reply_to" validate:"required,max=3071"`
	Body    string `json:"body"`
	// ForwardOrigin is set when the message was forwarded from a channel.
	ForwardOrigin string `json:"forward_origin,omitempty" validate:"max=64"`
	// LanguageHint is the client's language, used until the user picks one.
	LanguageHint string    `json:"language_hint,omitempty" validate:"max=35"`
	ReceivedAt   time.Time `json:"received_at"`
}

// OutboundMessage is published to send a reply back through a transport.
type OutboundMessage struct {
	ID        string `json:"id"`
	Transport string `json:"transport"`
	To        string `json:"to"`
	Body      string `json:"body"`
	InReplyTo string `json:"in_reply_to,omitempty"`
}

// AuditEvent is published for usage and publication auditing.
type AuditEvent struct {
	UserID     string         `json:"user_id"`
	EventType  string         `json:"event_type"`
	Severity   string         `json:"severity"` // info, warn, error
	Transport  string         `json:"transport"`
	ResourceID string         `json:"resource_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
