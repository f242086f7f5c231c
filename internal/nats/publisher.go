package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishInboundMessage hands a user message to the orchestrator. A message
// re-published with the same transport, user and ID inside the stream's
// duplicate window is stored once.
func (p *Publisher) PublishInboundMessage(ctx context.Context, msg InboundMessage) error {
	return p.publish(ctx, SubjectInboundMessage, InboundDedupeKey(msg), msg)
}

// InboundDedupeKey scopes a transport message id to its sender. XMPP stanza
// ids are only unique per client. An empty ID yields no key.
func InboundDedupeKey(msg InboundMessage) string {
	if msg.ID == "" {
		return ""
	}
	return msg.Transport + ":" + msg.UserID + ":" + msg.ID
}

// PublishOutboundMessage queues a reply for the relay of msg.Transport.
func (p *Publisher) PublishOutboundMessage(ctx context.Context, msg OutboundMessage) error {
	if msg.Transport == "" {
		return fmt.Errorf("outbound message %s has no transport", msg.ID)
	}
	return p.publish(ctx, OutboundSubject(msg.Transport), msg.ID, msg)
}

// PublishAuditEvent publishes an audit event.
func (p *Publisher) PublishAuditEvent(ctx context.Context, event AuditEvent) error {
	return p.publish(ctx, SubjectAuditEvent, "", event)
}

func (p *Publisher) publish(ctx context.Context, subject, msgID string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}
	_, err = p.js.Publish(ctx, subject, payload, opts...)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
