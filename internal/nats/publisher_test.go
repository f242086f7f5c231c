package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInboundDedupeKey(t *testing.T) {
	msg := InboundMessage{ID: "abc", UserID: "alice@example.org", Transport: TransportXMPP}
	assert.Equal(t, "xmpp:alice@example.org:abc", InboundDedupeKey(msg))

	other := msg
	other.UserID = "bob@example.org"
	assert.NotEqual(t, InboundDedupeKey(msg), InboundDedupeKey(other), "same stanza id from another sender")

	msg.ID = ""
	assert.Empty(t, InboundDedupeKey(msg))
}
