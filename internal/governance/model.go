package governance

import (
	"time"

	"github.com/aiox-platform/quill/internal/session"
)

// SessionView is the admin projection of a user's session. Texts are
// reported by length only.
type SessionView struct {
	UserID              string               `json:"user_id"`
	State               session.State        `json:"state"`
	TaskKind            session.TaskKind     `json:"task_kind,omitempty"`
	OriginalTextLength  int                  `json:"original_text_length"`
	ProcessedTextLength int                  `json:"processed_text_length"`
	HasResult           bool                 `json:"has_result"`
	DestinationID       string               `json:"destination_id,omitempty"`
	Destination         *session.Destination `json:"destination,omitempty"`
	Generation          uint64               `json:"generation"`
	UpdatedAt           *time.Time           `json:"updated_at,omitempty"`
}

// NewSessionView projects s. A nil session reads as idle.
func NewSessionView(userID string, s *session.Session) SessionView {
	if s == nil {
		s = session.New(userID)
	}
	v := SessionView{
		UserID:              userID,
		State:               s.State,
		TaskKind:            s.TaskKind,
		OriginalTextLength:  len([]rune(s.OriginalText)),
		ProcessedTextLength: len([]rune(s.ProcessedText)),
		HasResult:           s.HasResult(),
		DestinationID:       s.DestinationID,
		Destination:         s.Destination,
		Generation:          s.Generation,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}

// LanguageRequest sets a user's reply language.
type LanguageRequest struct {
	LanguageCode string `json:"language_code" validate:"required,min=2,max=10"`
}
