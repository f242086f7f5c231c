package xmpp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	inats "github.com/aiox-platform/quill/internal/nats"
	"github.com/aiox-platform/quill/internal/render"
)

// InboundPublisher hands chat messages to the orchestrator.
type InboundPublisher interface {
	PublishInboundMessage(ctx context.Context, msg inats.InboundMessage) error
}

// Handler processes incoming XMPP stanzas and bridges them to NATS.
type Handler struct {
	publisher InboundPublisher
	// jid is the address replies are sent from.
	jid string
}

// NewHandler creates a new XMPP stanza handler. Replies are sent from the
// component's domain.
func NewHandler(publisher InboundPublisher, componentName string) *Handler {
	return &Handler{publisher: publisher, jid: componentName}
}

// HandleMessage publishes chat messages to NATS. The bare JID of the sender
// identifies the user; replies go to the full JID.
func (h *Handler) HandleMessage(s xmpp.Sender, p stanza.Packet) {
	msg, ok := p.(stanza.Message)
	if !ok {
		return
	}

	if msg.Body == "" || !acceptedType(msg.Type) {
		return
	}

	slog.Debug("XMPP message received",
		"from", msg.From,
		"to", msg.To,
		"type", string(msg.Type),
	)

	inbound := inats.InboundMessage{
		ID:           messageID(msg),
		UserID:       bareJID(msg.From),
		Transport:    inats.TransportXMPP,
		ReplyTo:      msg.From,
		Body:         msg.Body,
		LanguageHint: msg.Lang,
		ReceivedAt:   time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.publisher.PublishInboundMessage(ctx, inbound); err != nil {
		slog.Error("publishing inbound message", "error", err, "from", msg.From)
		h.sendError(s, msg.From, msg.To, "Internal error processing your message")
		return
	}
}

// messageID returns the stanza id, or a fresh one for clients that omit it.
// Such messages cannot be deduplicated.
func messageID(msg stanza.Message) string {
	if msg.Id != "" {
		return msg.Id
	}
	return uuid.New().String()
}

// HandlePresence processes incoming <presence> stanzas, auto-approving subscribe requests.
func (h *Handler) HandlePresence(s xmpp.Sender, p stanza.Packet) {
	pres, ok := p.(stanza.Presence)
	if !ok {
		return
	}

	slog.Debug("XMPP presence received",
		"from", pres.From,
		"to", pres.To,
		"type", string(pres.Type),
	)

	if pres.Type == stanza.PresenceTypeSubscribe {
		reply := stanza.Presence{
			Attrs: stanza.Attrs{
				From: pres.To,
				To:   pres.From,
				Type: stanza.PresenceTypeSubscribed,
			},
		}
		if err := s.Send(reply); err != nil {
			slog.Error("sending presence subscribed reply", "error", err)
		}
	}
}

// HandleIQ logs incoming <iq> stanzas. Disco is answered by the component itself.
func (h *Handler) HandleIQ(_ xmpp.Sender, p stanza.Packet) {
	iq, ok := p.(*stanza.IQ)
	if !ok {
		return
	}
	slog.Debug("XMPP IQ received", "from", iq.From, "to", iq.To, "type", string(iq.Type))
}

// buildMessage turns an outbound reply into a chat stanza. The Markdown body
// is kept as plain text and also rendered as XHTML-IM for capable clients.
func (h *Handler) buildMessage(outbound inats.OutboundMessage) stanza.Message {
	msg := stanza.Message{
		Attrs: stanza.Attrs{
			From: h.jid,
			To:   outbound.To,
			Type: stanza.MessageTypeChat,
			Id:   outbound.ID,
		},
		Body: outbound.Body,
	}

	xhtml, err := render.XHTML(outbound.Body)
	if err != nil {
		slog.Warn("rendering XHTML-IM body, sending plain text", "error", err, "id", outbound.ID)
		return msg
	}
	msg.Extensions = append(msg.Extensions, stanza.HTML{Body: stanza.HTMLBody{InnerXML: xhtml}})
	return msg
}

func (h *Handler) sendError(s xmpp.Sender, to, from, body string) {
	msg := stanza.Message{
		Attrs: stanza.Attrs{
			From: from,
			To:   to,
			Type: stanza.MessageTypeChat,
		},
		Body: body,
	}
	if err := s.Send(msg); err != nil {
		slog.Error("sending error message", "error", err)
	}
}

func acceptedType(t stanza.StanzaType) bool {
	return t == "" || t == stanza.MessageTypeChat || t == stanza.MessageTypeNormal
}

// bareJID strips the resource from a JID and lowercases it.
func bareJID(jid string) string {
	if idx := strings.Index(jid, "/"); idx >= 0 {
		jid = jid[:idx]
	}
	return strings.ToLower(jid)
}
