package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aiox-platform/quill/internal/broadcast"
	inats "github.com/aiox-platform/quill/internal/nats"
	"github.com/aiox-platform/quill/internal/render"
)

const relayConsumer = "outbound-relay-discord"

// dmAPI is the part of *discordgo.Session the relay uses.
type dmAPI interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// OutboundRelay consumes Discord replies from NATS and sends them as DMs.
type OutboundRelay struct {
	api         dmAPI
	consumerMgr *inats.ConsumerManager

	mu       sync.Mutex
	channels map[string]string // user id -> DM channel id
}

// NewOutboundRelay creates a new OutboundRelay.
func NewOutboundRelay(session *discordgo.Session, consumerMgr *inats.ConsumerManager) *OutboundRelay {
	return newOutboundRelay(session, consumerMgr)
}

func newOutboundRelay(api dmAPI, consumerMgr *inats.ConsumerManager) *OutboundRelay {
	return &OutboundRelay{api: api, consumerMgr: consumerMgr, channels: make(map[string]string)}
}

// Start begins consuming outbound messages and sending them as DMs.
func (r *OutboundRelay) Start(ctx context.Context) error {
	consumer, err := r.consumerMgr.EnsureConsumer(ctx, inats.StreamMessages, relayConsumer, inats.OutboundSubject(inats.TransportDiscord))
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

			err := r.deliver(ctx, outbound)
			switch {
			case err == nil:
				_ = msg.Ack()
			case isPermanent(err):
				slog.Warn("dropping undeliverable Discord message", "error", err, "to", outbound.To)
				_ = msg.Term()
			default:
				slog.Error("sending outbound Discord message", "error", err, "to", outbound.To)
				_ = msg.Nak()
			}
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *OutboundRelay) deliver(ctx context.Context, outbound inats.OutboundMessage) error {
	channelID, err := r.dmChannel(ctx, outbound.To)
	if err != nil {
		return err
	}
	for _, chunk := range render.Chunk(outbound.Body, broadcast.DiscordMessageLimit) {
		if _, err := r.api.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("sending DM to %s: %w", outbound.To, err)
		}
	}
	slog.Debug("sent outbound Discord message", "to", outbound.To, "id", outbound.ID)
	return nil
}

func (r *OutboundRelay) dmChannel(ctx context.Context, userID string) (string, error) {
	r.mu.Lock()
	id, ok := r.channels[userID]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	ch, err := r.api.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("opening DM channel with %s: %w", userID, err)
	}

	r.mu.Lock()
	r.channels[userID] = ch.ID
	r.mu.Unlock()
	return ch.ID, nil
}

// isPermanent reports client errors other than rate limiting. Retrying
// them cannot succeed.
func isPermanent(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}
	code := restErr.Response.StatusCode
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}
