// Package publish walks a finished post through destination selection,
// confirmation and delivery.
package publish

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aiox-platform/quill/internal/broadcast"
	"github.com/aiox-platform/quill/internal/metrics"
	"github.com/aiox-platform/quill/internal/outcome"
	"github.com/aiox-platform/quill/internal/session"
)

var (
	handlePattern  = regexp.MustCompile(`^@[\p{L}\p{N}_-]{1,100}$`)
	numericPattern = regexp.MustCompile(`^-?[0-9]{1,20}$`)
)

// Input is what the user sent while a destination was expected.
type Input struct {
	Text string
	// ForwardOrigin is the id of the destination a forwarded message came
	// from, if the transport reported one.
	ForwardOrigin string
}

// ParseDestination turns user input into a reference ValidateAccess
// understands. A forward origin wins over the text.
func ParseDestination(in Input) (string, bool) {
	if origin := strings.TrimSpace(in.ForwardOrigin); origin != "" {
		return origin, true
	}
	text := strings.TrimSpace(in.Text)
	if handlePattern.MatchString(text) || numericPattern.MatchString(text) {
		return text, true
	}
	return "", false
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	sessions    *session.Manager
	broadcaster broadcast.Broadcaster
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(sessions *session.Manager, b broadcast.Broadcaster) *Coordinator {
	return &Coordinator{sessions: sessions, broadcaster: b}
}

// BeginPublish asks the user for a destination.
func (c *Coordinator) BeginPublish(ctx context.Context, userID string) outcome.Result {
	_, err := c.sessions.Update(ctx, userID, func(s *session.Session) error {
		return s.BeginPublish()
	})
	switch {
	case err == nil:
		return outcome.Of(outcome.DestinationRequested)
	case errors.Is(err, session.ErrNothingToPublish):
		return outcome.Of(outcome.NothingToPublish)
	default:
		return c.fail(userID, "begin publish", err)
	}
}

// SubmitDestination verifies the destination and shows a preview. A
// rejected destination leaves the session waiting for another one.
func (c *Coordinator) SubmitDestination(ctx context.Context, userID string, in Input) outcome.Result {
	ref, ok := ParseDestination(in)
	if !ok {
		return outcome.Of(outcome.InvalidDestinationFormat)
	}

	sess, err := c.sessions.Get(ctx, userID)
	if err != nil {
		return c.fail(userID, "load session", err)
	}
	if sess.State != session.StateAwaitingPublishDestination {
		return outcome.Of(outcome.NotAvailable)
	}

	dest, err := c.broadcaster.ValidateAccess(ctx, ref)
	if err != nil {
		res := outcome.Of(outcome.DestinationAccessError)
		var accessErr *broadcast.AccessError
		if errors.As(err, &accessErr) {
			res.AccessReason = accessErr.Reason
			res.Detail = accessErr.Detail
		} else {
			res.AccessReason = broadcast.ReasonNoAccess
			res.Detail = err.Error()
		}
		slog.Info("publish: destination rejected", "user_id", userID, "destination", ref, "error", err)
		return res
	}

	var text string
	_, err = c.sessions.Update(ctx, userID, func(s *session.Session) error {
		text = s.ProcessedText
		return s.AcceptDestination(dest.ID, session.Destination{
			Title:       dest.Title,
			Handle:      dest.Handle,
			Kind:        dest.Kind,
			Description: dest.Description,
		})
	})
	if err != nil {
		return c.fail(userID, "accept destination", err)
	}

	return outcome.Result{Kind: outcome.PublishPreview, Text: text, Destination: &dest}
}

// ConfirmPublish delivers the post once. Success and failure both reset
// the session.
func (c *Coordinator) ConfirmPublish(ctx context.Context, userID string) outcome.Result {
	var (
		token uint64
		text  string
		dest  broadcast.Destination
	)
	_, err := c.sessions.Update(ctx, userID, func(s *session.Session) error {
		if s.DestinationID == "" || s.Destination == nil || s.ProcessedText == "" {
			return errMissingData
		}
		var err error
		token, err = s.StartPublishing()
		text = s.ProcessedText
		dest = broadcast.Destination{
			ID:          s.DestinationID,
			Title:       s.Destination.Title,
			Handle:      s.Destination.Handle,
			Kind:        s.Destination.Kind,
			Description: s.Destination.Description,
		}
		return err
	})
	if errors.Is(err, errMissingData) {
		return outcome.Of(outcome.PublishDataMissing)
	}
	if err != nil {
		return c.fail(userID, "confirm publish", err)
	}

	pubErr := c.broadcaster.Publish(ctx, dest.ID, text)

	_, err = c.sessions.Update(ctx, userID, func(s *session.Session) error {
		return s.FinishPublishing(token)
	})
	if err != nil && !errors.Is(err, session.ErrStale) {
		slog.Error("publish: resetting session failed", "user_id", userID, "error", err)
	}

	if pubErr != nil {
		metrics.PublishTotal.WithLabelValues("failed").Inc()
		slog.Warn("publish: delivery failed", "user_id", userID, "destination", dest.ID, "error", pubErr)
		return outcome.Result{Kind: outcome.PublishFailed, Destination: &dest}
	}

	metrics.PublishTotal.WithLabelValues("ok").Inc()
	slog.Info("publish: delivered", "user_id", userID, "destination", dest.ID)
	return outcome.Result{Kind: outcome.PublishSucceeded, Text: text, Destination: &dest}
}

// CancelPublish abandons the publish flow and the result with it.
func (c *Coordinator) CancelPublish(ctx context.Context, userID string) outcome.Result {
	if _, err := c.sessions.Reset(ctx, userID); err != nil {
		return c.fail(userID, "cancel publish", err)
	}
	return outcome.Of(outcome.PublishCancelled)
}

var errMissingData = errors.New("publish: destination or text missing")

func (c *Coordinator) fail(userID, op string, err error) outcome.Result {
	if errors.Is(err, session.ErrIllegalTransition) {
		return outcome.Of(outcome.NotAvailable)
	}
	slog.Error("publish: session storage failed", "user_id", userID, "op", op, "error", err)
	return outcome.Of(outcome.StorageError)
}
