package session

import "time"

// State is the step of the edit/publish pipeline a user is in.
type State string

const (
	StateIdle                       State = "idle"
	StateAwaitingTopic              State = "awaiting_topic"
	StateAwaitingBody               State = "awaiting_body"
	StateProcessing                 State = "processing"
	StateResultReady                State = "result_ready"
	StateAwaitingManualEdit         State = "awaiting_manual_edit"
	StateAwaitingPublishDestination State = "awaiting_publish_destination"
	StateConfirmingPublish          State = "confirming_publish"
	StatePublishing                 State = "publishing"
)

// TaskKind selects what the generator does with the submitted text.
type TaskKind string

const (
	TaskCreate       TaskKind = "create"
	TaskImprove      TaskKind = "improve"
	TaskFixErrors    TaskKind = "fix_errors"
	TaskMakeEngaging TaskKind = "make_engaging"
	TaskShorten      TaskKind = "shorten"
	TaskExpand       TaskKind = "expand"
	TaskAnalyze      TaskKind = "analyze"
)

// TaskKinds lists every kind in menu order.
var TaskKinds = []TaskKind{
	TaskCreate, TaskImprove, TaskFixErrors, TaskMakeEngaging, TaskShorten, TaskExpand, TaskAnalyze,
}

// Valid reports whether k is one of the known kinds.
func (k TaskKind) Valid() bool {
	for _, known := range TaskKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Destination describes a verified broadcast target.
type Destination struct {
	Title       string `json:"title"`
	Handle      string `json:"handle,omitempty"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

// Session is the per-user conversation record.
type Session struct {
	UserID        string       `json:"user_id"`
	State         State        `json:"state"`
	TaskKind      TaskKind     `json:"task_kind,omitempty"`
	OriginalText  string       `json:"original_text,omitempty"`
	ProcessedText string       `json:"processed_text,omitempty"`
	DestinationID string       `json:"destination_id,omitempty"`
	Destination   *Destination `json:"destination,omitempty"`

	// Generation is bumped on every reset and every entry into processing
	// or publishing. Completions carry the value they started with.
	Generation uint64 `json:"generation"`

	// ResumeState is where a quota-rejected submission returns to.
	ResumeState State `json:"resume_state,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an idle session for userID.
func New(userID string) *Session {
	return &Session{UserID: userID, State: StateIdle}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.Destination != nil {
		d := *s.Destination
		c.Destination = &d
	}
	return &c
}

// HasResult reports whether there is processed text to edit or publish.
func (s *Session) HasResult() bool {
	return s.ProcessedText != ""
}
