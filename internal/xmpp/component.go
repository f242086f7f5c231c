package xmpp

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"gosrc.io/xmpp"

	"github.com/aiox-platform/quill/internal/config"
)

// Component is the bot's XEP-0114 external component. Users chat with any
// JID under the component's domain.
type Component struct {
	sm        *xmpp.StreamManager
	comp      *xmpp.Component
	connected atomic.Bool
}

// NewComponent routes message, presence and iq stanzas to handler.
func NewComponent(cfg config.XMPPConfig, handler *Handler) (*Component, error) {
	router := xmpp.NewRouter()
	router.HandleFunc("message", handler.HandleMessage)
	router.HandleFunc("presence", handler.HandlePresence)
	router.HandleFunc("iq", handler.HandleIQ)

	c := &Component{}

	opts := xmpp.ComponentOptions{
		TransportConfiguration: xmpp.TransportConfiguration{
			Address: cfg.ComponentAddr(),
			Domain:  cfg.ComponentName,
		},
		Domain:   cfg.ComponentName,
		Secret:   cfg.ComponentSecret,
		Name:     "Quill post editor",
		Category: "automation",
		Type:     "command-list",
	}

	comp, err := xmpp.NewComponent(opts, router, func(err error) {
		c.connected.Store(false)
		slog.Error("XMPP component error", "error", err)
	})
	if err != nil {
		return nil, err
	}
	c.comp = comp

	c.sm = xmpp.NewStreamManager(comp, func(s xmpp.Sender) {
		c.connected.Store(true)
		slog.Info("XMPP component connected", "domain", cfg.ComponentName)
	})

	return c, nil
}

// Start runs the stream manager until ctx is done or the stream fails for good.
func (c *Component) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.sm.Run()
	}()

	select {
	case <-ctx.Done():
		c.sm.Stop()
		c.connected.Store(false)
		return nil
	case err := <-errCh:
		c.connected.Store(false)
		return err
	}
}

// Sender returns the component for the outbound relay.
func (c *Component) Sender() xmpp.Sender {
	return c.comp
}

// Check reports whether the component stream is up, for readiness probes.
func (c *Component) Check(context.Context) error {
	if !c.connected.Load() {
		return errors.New("xmpp component not connected")
	}
	return nil
}
