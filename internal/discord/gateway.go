// Package discord bridges Discord direct messages to NATS and delivers the
// orchestrator's replies back as DMs.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	inats "github.com/aiox-platform/quill/internal/nats"
)

// InboundPublisher hands chat messages to the orchestrator.
type InboundPublisher interface {
	PublishInboundMessage(ctx context.Context, msg inats.InboundMessage) error
}

// Gateway listens for direct messages on the Discord gateway.
type Gateway struct {
	session   *discordgo.Session
	publisher InboundPublisher
	botID     string
}

// NewGateway registers the message handler on session. The session is
// opened by Start.
func NewGateway(session *discordgo.Session, publisher InboundPublisher) *Gateway {
	g := &Gateway{session: session, publisher: publisher}
	session.AddHandler(g.handleMessage)
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	return g
}

// Start connects to the gateway and blocks until ctx is done.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("opening Discord gateway: %w", err)
	}
	g.botID = g.session.State.User.ID
	slog.Info("Discord gateway connected", "user", g.session.State.User.Username)

	<-ctx.Done()
	if err := g.session.Close(); err != nil {
		slog.Warn("closing Discord gateway", "error", err)
	}
	return nil
}

func (g *Gateway) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	inbound, ok := inboundFrom(m.Message, g.botID)
	if !ok {
		return
	}

	slog.Debug("Discord DM received", "user_id", inbound.UserID, "forwarded", inbound.ForwardOrigin != "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.publisher.PublishInboundMessage(ctx, inbound); err != nil {
		slog.Error("publishing inbound message", "error", err, "user_id", inbound.UserID)
	}
}

// inboundFrom converts a direct message. Guild messages, bot messages and
// empty messages are skipped. A forwarded message carries the id of the
// channel it came from, and its text comes from the snapshot.
func inboundFrom(m *discordgo.Message, botID string) (inats.InboundMessage, bool) {
	if m == nil || m.Author == nil || m.GuildID != "" {
		return inats.InboundMessage{}, false
	}
	if m.Author.Bot || m.Author.ID == botID {
		return inats.InboundMessage{}, false
	}

	in := inats.InboundMessage{
		ID:         m.ID,
		UserID:     m.Author.ID,
		Transport:  inats.TransportDiscord,
		ReplyTo:    m.Author.ID,
		Body:       m.Content,
		ReceivedAt: time.Now().UTC(),
	}

	if ref := m.MessageReference; ref != nil && ref.Type == discordgo.MessageReferenceTypeForward {
		in.ForwardOrigin = ref.ChannelID
		if in.Body == "" {
			for _, snap := range m.MessageSnapshots {
				if snap.Message != nil && snap.Message.Content != "" {
					in.Body = snap.Message.Content
					break
				}
			}
		}
	}

	if in.Body == "" && in.ForwardOrigin == "" {
		return inats.InboundMessage{}, false
	}
	return in, true
}
