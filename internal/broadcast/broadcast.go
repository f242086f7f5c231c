// Package broadcast verifies and publishes to the destinations users pick
// for their finished posts.
package broadcast

import (
	"context"
	"errors"
	"fmt"
)

// ErrAccessDenied matches every *AccessError.
var ErrAccessDenied = errors.New("broadcast: access denied")

// Reason classifies why a destination was rejected.
type Reason string

const (
	ReasonNotFound   Reason = "not_found"
	ReasonAmbiguous  Reason = "ambiguous"
	ReasonNotText    Reason = "not_text"
	ReasonNoAccess   Reason = "no_access"
	ReasonCannotSend Reason = "cannot_send"
	ReasonNeedManage Reason = "need_manage"
)

// AccessError explains a rejected destination. Detail is free text for logs.
type AccessError struct {
	Reason Reason
	Detail string
}

func (e *AccessError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("broadcast: access denied (%s)", e.Reason)
	}
	return fmt.Sprintf("broadcast: access denied (%s): %s", e.Reason, e.Detail)
}

func (e *AccessError) Is(target error) bool {
	return target == ErrAccessDenied
}

// Destination is the metadata of a verified destination.
type Destination struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Handle      string `json:"handle,omitempty"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

// Broadcaster checks and publishes to destinations.
type Broadcaster interface {
	// ValidateAccess resolves ref (an id or an @handle) and checks that the
	// bot may post there.
	ValidateAccess(ctx context.Context, ref string) (Destination, error)
	// Publish sends text to a destination id returned by ValidateAccess.
	Publish(ctx context.Context, id, text string) error
}

// Unavailable rejects every destination. It stands in when no broadcast
// backend is configured.
type Unavailable struct{}

func (Unavailable) ValidateAccess(_ context.Context, ref string) (Destination, error) {
	return Destination{}, &AccessError{Reason: ReasonNoAccess, Detail: "publishing is not configured: " + ref}
}

func (Unavailable) Publish(context.Context, string, string) error {
	return errors.New("broadcast: publishing is not configured")
}
