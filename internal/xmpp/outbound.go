package xmpp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
	"gosrc.io/xmpp/stanza"

	inats "github.com/aiox-platform/quill/internal/nats"
)

const relayConsumer = "outbound-relay-xmpp"

// stanzaSender is the part of xmpp.Sender the relay uses.
type stanzaSender interface {
	Send(packet stanza.Packet) error
}

// OutboundRelay consumes XMPP replies from NATS and sends them as chat stanzas.
type OutboundRelay struct {
	handler     *Handler
	sender      stanzaSender
	consumerMgr *inats.ConsumerManager
}

// NewOutboundRelay creates a new OutboundRelay.
func NewOutboundRelay(handler *Handler, sender stanzaSender, consumerMgr *inats.ConsumerManager) *OutboundRelay {
	return &OutboundRelay{
		handler:     handler,
		sender:      sender,
		consumerMgr: consumerMgr,
	}
}

// Start begins consuming outbound messages and sending them via XMPP.
func (r *OutboundRelay) Start(ctx context.Context) error {
	consumer, err := r.consumerMgr.EnsureConsumer(ctx, inats.StreamMessages, relayConsumer, inats.OutboundSubject(inats.TransportXMPP))
	if err != nil {
		return err
	}

	slog.Info("outbound relay started", "consumer", relayConsumer)

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("fetching outbound messages", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			var outbound inats.OutboundMessage
			if err := json.Unmarshal(msg.Data(), &outbound); err != nil {
				slog.Error("unmarshaling outbound message", "error", err)
				_ = msg.Term()
				continue
			}

			if err := r.deliver(outbound); err != nil {
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *OutboundRelay) deliver(outbound inats.OutboundMessage) error {
	if err := r.sender.Send(r.handler.buildMessage(outbound)); err != nil {
		slog.Error("sending outbound XMPP message", "error", err, "to", outbound.To)
		return err
	}
	slog.Debug("sent outbound XMPP message", "to", outbound.To, "id", outbound.ID)
	return nil
}
