package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/aiox-platform/quill/internal/render"
)

// DiscordMessageLimit is the longest message Discord accepts, in characters.
const DiscordMessageLimit = 2000

// Destination kinds reported for Discord channels.
const (
	KindText         = "text"
	KindAnnouncement = "announcement"
)

// discordAPI is the subset of *discordgo.Session the broadcaster uses.
type discordAPI interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	UserGuilds(limit int, beforeID, afterID string, withCounts bool, options ...discordgo.RequestOption) ([]*discordgo.UserGuild, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord publishes into Discord guild text and announcement channels.
type Discord struct {
	api discordAPI

	mu    sync.Mutex
	botID string
}

// NewDiscord creates a broadcaster over a bot session.
func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{api: s}
}

func (d *Discord) ValidateAccess(ctx context.Context, ref string) (Destination, error) {
	var (
		ch  *discordgo.Channel
		err error
	)
	if handle, ok := strings.CutPrefix(ref, "@"); ok {
		ch, err = d.resolveHandle(ctx, handle)
	} else {
		ch, err = d.api.Channel(ref, discordgo.WithContext(ctx))
		err = classify(err)
	}
	if err != nil {
		return Destination{}, err
	}

	dest := Destination{
		ID:          ch.ID,
		Title:       "#" + ch.Name,
		Handle:      ch.Name,
		Description: ch.Topic,
	}
	switch ch.Type {
	case discordgo.ChannelTypeGuildText:
		dest.Kind = KindText
	case discordgo.ChannelTypeGuildNews:
		dest.Kind = KindAnnouncement
	default:
		return Destination{}, &AccessError{Reason: ReasonNotText, Detail: fmt.Sprintf("channel type %d", ch.Type)}
	}

	botID, err := d.self(ctx)
	if err != nil {
		return Destination{}, err
	}
	perms, err := d.api.UserChannelPermissions(botID, ch.ID, discordgo.WithContext(ctx))
	if err != nil {
		return Destination{}, classify(err)
	}
	if err := checkPermissions(perms, dest.Kind); err != nil {
		return Destination{}, err
	}

	slog.Debug("broadcast: destination verified", "channel_id", ch.ID, "kind", dest.Kind)
	return dest, nil
}

// checkPermissions applies the posting rules: administrators may always
// post, members need view and send rights, and announcement channels also
// need manage-messages.
func checkPermissions(perms int64, kind string) error {
	if perms&discordgo.PermissionAdministrator != 0 {
		return nil
	}
	if perms&discordgo.PermissionViewChannel == 0 {
		return &AccessError{Reason: ReasonNoAccess}
	}
	if perms&discordgo.PermissionSendMessages == 0 {
		return &AccessError{Reason: ReasonCannotSend}
	}
	if kind == KindAnnouncement && perms&discordgo.PermissionManageMessages == 0 {
		return &AccessError{Reason: ReasonNeedManage}
	}
	return nil
}

func (d *Discord) Publish(ctx context.Context, id, text string) error {
	chunks := render.Chunk(text, DiscordMessageLimit)
	for i, chunk := range chunks {
		if _, err := d.api.ChannelMessageSend(id, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("sending part %d/%d to %s: %w", i+1, len(chunks), id, err)
		}
	}
	return nil
}

// resolveHandle finds a text channel by name across the guilds the bot is in.
func (d *Discord) resolveHandle(ctx context.Context, handle string) (*discordgo.Channel, error) {
	guilds, err := d.api.UserGuilds(200, "", "", false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing guilds: %w", err)
	}

	var matches []*discordgo.Channel
	for _, g := range guilds {
		channels, err := d.api.GuildChannels(g.ID, discordgo.WithContext(ctx))
		if err != nil {
			slog.Warn("broadcast: listing guild channels failed", "guild_id", g.ID, "error", err)
			continue
		}
		for _, ch := range channels {
			if strings.EqualFold(ch.Name, handle) &&
				(ch.Type == discordgo.ChannelTypeGuildText || ch.Type == discordgo.ChannelTypeGuildNews) {
				matches = append(matches, ch)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, &AccessError{Reason: ReasonNotFound, Detail: "@" + handle}
	case 1:
		return matches[0], nil
	default:
		return nil, &AccessError{Reason: ReasonAmbiguous, Detail: fmt.Sprintf("@%s matches %d channels", handle, len(matches))}
	}
}

func (d *Discord) self(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.botID != "" {
		return d.botID, nil
	}
	u, err := d.api.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("resolving bot user: %w", err)
	}
	d.botID = u.ID
	return d.botID, nil
}

// classify turns Discord 403/404 responses into access errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return &AccessError{Reason: ReasonNotFound, Detail: err.Error()}
		case http.StatusForbidden:
			return &AccessError{Reason: ReasonNoAccess, Detail: err.Error()}
		}
	}
	return err
}
