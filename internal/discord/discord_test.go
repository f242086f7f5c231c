package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inats "github.com/aiox-platform/quill/internal/nats"
)

func dm(authorID, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m1",
		ChannelID: "dm-" + authorID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "alice"},
	}
}

func TestInboundFrom(t *testing.T) {
	t.Run("direct message", func(t *testing.T) {
		in, ok := inboundFrom(dm("42", "/improve"), "bot")
		require.True(t, ok)
		assert.Equal(t, "42", in.UserID)
		assert.Equal(t, "42", in.ReplyTo)
		assert.Equal(t, inats.TransportDiscord, in.Transport)
		assert.Equal(t, "/improve", in.Body)
		assert.Empty(t, in.ForwardOrigin)
	})

	t.Run("redelivered message keeps its id", func(t *testing.T) {
		m := dm("42", "/improve")
		m.ID = "1288001234567890123"
		first, ok := inboundFrom(m, "bot")
		require.True(t, ok)
		second, ok := inboundFrom(m, "bot")
		require.True(t, ok)
		assert.Equal(t, "1288001234567890123", first.ID)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("guild message skipped", func(t *testing.T) {
		m := dm("42", "hi")
		m.GuildID = "g1"
		_, ok := inboundFrom(m, "bot")
		assert.False(t, ok)
	})

	t.Run("own message skipped", func(t *testing.T) {
		_, ok := inboundFrom(dm("bot", "hi"), "bot")
		assert.False(t, ok)
	})

	t.Run("other bots skipped", func(t *testing.T) {
		m := dm("7", "hi")
		m.Author.Bot = true
		_, ok := inboundFrom(m, "bot")
		assert.False(t, ok)
	})

	t.Run("empty skipped", func(t *testing.T) {
		_, ok := inboundFrom(dm("42", ""), "bot")
		assert.False(t, ok)
	})

	t.Run("forward carries origin channel and snapshot text", func(t *testing.T) {
		m := dm("42", "")
		m.MessageReference = &discordgo.MessageReference{
			Type:      discordgo.MessageReferenceTypeForward,
			MessageID: "900",
			ChannelID: "100",
			GuildID:   "g1",
		}
		m.MessageSnapshots = []discordgo.MessageSnapshot{{Message: &discordgo.Message{Content: "channel post"}}}

		in, ok := inboundFrom(m, "bot")
		require.True(t, ok)
		assert.Equal(t, "100", in.ForwardOrigin)
		assert.Equal(t, "channel post", in.Body)
	})

	t.Run("reply is not a forward", func(t *testing.T) {
		m := dm("42", "answer")
		m.MessageReference = &discordgo.MessageReference{MessageID: "900", ChannelID: "dm-42"}
		in, ok := inboundFrom(m, "bot")
		require.True(t, ok)
		assert.Empty(t, in.ForwardOrigin)
	})
}

type fakeDM struct {
	created int
	sent    []string
	sendErr error
}

func (f *fakeDM) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.created++
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeDM) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, fmt.Sprintf("%s:%d", channelID, len([]rune(content))))
	return &discordgo.Message{ID: "x"}, nil
}

func TestRelayDeliver(t *testing.T) {
	api := &fakeDM{}
	r := newOutboundRelay(api, nil)
	ctx := context.Background()

	require.NoError(t, r.deliver(ctx, inats.OutboundMessage{ID: "o1", To: "42", Body: "hello"}))
	require.NoError(t, r.deliver(ctx, inats.OutboundMessage{ID: "o2", To: "42", Body: strings.Repeat("a", 4100)}))

	assert.Equal(t, 1, api.created)
	assert.Equal(t, []string{"dm-42:5", "dm-42:2000", "dm-42:2000", "dm-42:100"}, api.sent)
}

func TestRelayDeliverError(t *testing.T) {
	api := &fakeDM{sendErr: &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}}
	r := newOutboundRelay(api, nil)

	err := r.deliver(context.Background(), inats.OutboundMessage{ID: "o1", To: "42", Body: "hello"})
	require.Error(t, err)
	assert.True(t, isPermanent(err))
}

func TestIsPermanent(t *testing.T) {
	rest := func(code int) error {
		return &discordgo.RESTError{Response: &http.Response{StatusCode: code}}
	}

	for _, code := range []int{400, 403, 404} {
		assert.True(t, isPermanent(rest(code)), code)
	}
	for _, code := range []int{429, 500, 502} {
		assert.False(t, isPermanent(rest(code)), code)
	}
	assert.False(t, isPermanent(errors.New("connection reset")))
}
