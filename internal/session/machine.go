package session

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalTransition is returned for an event that is not valid in the current state.
	ErrIllegalTransition = errors.New("session: illegal transition")
	// ErrStale is returned when a completion belongs to an older generation.
	ErrStale = errors.New("session: stale completion")
	// ErrNothingToPublish is returned by BeginPublish without processed text.
	ErrNothingToPublish = errors.New("session: nothing to publish")
)

// Event names an input to the state machine.
type Event string

const (
	EventChooseTask          Event = "choose_task"
	EventChooseCreate        Event = "choose_create"
	EventSubmitText          Event = "submit_text"
	EventQuotaDenied         Event = "quota_denied"
	EventGenerationSucceeded Event = "generation_succeeded"
	EventAnalysisSucceeded   Event = "analysis_succeeded"
	EventGenerationFailed    Event = "generation_failed"
	EventProcessAgain        Event = "process_again"
	EventEditResult          Event = "edit_result"
	EventSubmitEdit          Event = "submit_edit"
	EventBeginPublish        Event = "begin_publish"
	EventDestinationAccepted Event = "destination_accepted"
	EventConfirmPublish      Event = "confirm_publish"
	EventPublishFinished     Event = "publish_finished"
	EventCancel              Event = "cancel"
)

// transitions is the single source of truth for legal moves. EventCancel is
// legal everywhere and handled by Reset. EventQuotaDenied returns to the
// session's ResumeState, so its listed target is only a placeholder.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventChooseTask:   StateAwaitingBody,
		EventChooseCreate: StateAwaitingTopic,
	},
	StateAwaitingTopic: {
		EventSubmitText: StateProcessing,
	},
	StateAwaitingBody: {
		EventSubmitText: StateProcessing,
	},
	StateProcessing: {
		EventQuotaDenied:         StateIdle,
		EventGenerationSucceeded: StateResultReady,
		EventAnalysisSucceeded:   StateIdle,
		EventGenerationFailed:    StateIdle,
	},
	StateResultReady: {
		EventChooseTask:   StateAwaitingBody,
		EventChooseCreate: StateAwaitingTopic,
		EventProcessAgain: StateProcessing,
		EventEditResult:   StateAwaitingManualEdit,
		EventBeginPublish: StateAwaitingPublishDestination,
	},
	StateAwaitingManualEdit: {
		EventSubmitEdit: StateResultReady,
	},
	StateAwaitingPublishDestination: {
		EventDestinationAccepted: StateConfirmingPublish,
	},
	StateConfirmingPublish: {
		EventConfirmPublish: StatePublishing,
	},
	StatePublishing: {
		EventPublishFinished: StateIdle,
	},
}

// Can reports whether ev is legal in the session's current state.
func (s *Session) Can(ev Event) bool {
	if ev == EventCancel {
		return true
	}
	_, ok := transitions[s.State][ev]
	return ok
}

func (s *Session) transition(ev Event) (State, error) {
	next, ok := transitions[s.State][ev]
	if !ok {
		return s.State, fmt.Errorf("%w: %s in %s", ErrIllegalTransition, ev, s.State)
	}
	return next, nil
}

// Reset returns to idle and clears every working field.
func (s *Session) Reset() {
	gen := s.Generation + 1
	*s = Session{UserID: s.UserID, State: StateIdle, Generation: gen}
}

// ChooseTask starts a new task, discarding any previous result.
func (s *Session) ChooseTask(kind TaskKind) error {
	if !kind.Valid() {
		return fmt.Errorf("session: unknown task kind %q", kind)
	}
	ev := EventChooseTask
	if kind == TaskCreate {
		ev = EventChooseCreate
	}
	next, err := s.transition(ev)
	if err != nil {
		return err
	}
	s.Reset()
	s.TaskKind = kind
	s.State = next
	return nil
}

// SubmitText stores the user's input and enters processing. The returned
// token identifies this run for CompleteGeneration and FailGeneration.
func (s *Session) SubmitText(text string) (uint64, error) {
	next, err := s.transition(EventSubmitText)
	if err != nil {
		return 0, err
	}
	s.ResumeState = s.State
	s.OriginalText = text
	s.State = next
	s.Generation++
	return s.Generation, nil
}

// ProcessAgain re-runs generation on the stored input.
func (s *Session) ProcessAgain() (uint64, error) {
	next, err := s.transition(EventProcessAgain)
	if err != nil {
		return 0, err
	}
	s.ResumeState = s.State
	s.State = next
	s.Generation++
	return s.Generation, nil
}

// QuotaDenied leaves processing without consuming anything and goes back
// to where the submission came from.
func (s *Session) QuotaDenied(token uint64) error {
	if err := s.checkToken(token, StateProcessing); err != nil {
		return err
	}
	if _, err := s.transition(EventQuotaDenied); err != nil {
		return err
	}
	s.State = s.ResumeState
	if s.State == "" {
		s.State = StateIdle
	}
	s.ResumeState = ""
	return nil
}

// CompleteGeneration records a successful result. Analysis results are
// only displayed, so the session resets instead of keeping them.
func (s *Session) CompleteGeneration(token uint64, text string) error {
	if err := s.checkToken(token, StateProcessing); err != nil {
		return err
	}
	if s.TaskKind == TaskAnalyze {
		if _, err := s.transition(EventAnalysisSucceeded); err != nil {
			return err
		}
		s.Reset()
		return nil
	}
	next, err := s.transition(EventGenerationSucceeded)
	if err != nil {
		return err
	}
	s.ProcessedText = text
	s.ResumeState = ""
	s.State = next
	return nil
}

// FailGeneration abandons the run and resets the session.
func (s *Session) FailGeneration(token uint64) error {
	if err := s.checkToken(token, StateProcessing); err != nil {
		return err
	}
	if _, err := s.transition(EventGenerationFailed); err != nil {
		return err
	}
	s.Reset()
	return nil
}

// BeginEdit waits for a manual replacement of the result.
func (s *Session) BeginEdit() error {
	next, err := s.transition(EventEditResult)
	if err != nil {
		return err
	}
	s.State = next
	return nil
}

// SubmitEdit overwrites the processed text.
func (s *Session) SubmitEdit(text string) error {
	next, err := s.transition(EventSubmitEdit)
	if err != nil {
		return err
	}
	s.ProcessedText = text
	s.State = next
	return nil
}

// BeginPublish asks for a destination. It needs processed text.
func (s *Session) BeginPublish() error {
	if !s.HasResult() {
		return ErrNothingToPublish
	}
	next, err := s.transition(EventBeginPublish)
	if err != nil {
		return err
	}
	s.State = next
	return nil
}

// AcceptDestination caches a verified destination and waits for confirmation.
func (s *Session) AcceptDestination(id string, dest Destination) error {
	next, err := s.transition(EventDestinationAccepted)
	if err != nil {
		return err
	}
	s.DestinationID = id
	s.Destination = &dest
	s.State = next
	return nil
}

// StartPublishing enters publishing and returns the run token.
func (s *Session) StartPublishing() (uint64, error) {
	next, err := s.transition(EventConfirmPublish)
	if err != nil {
		return 0, err
	}
	s.State = next
	s.Generation++
	return s.Generation, nil
}

// FinishPublishing resets the session whatever the publish outcome was.
func (s *Session) FinishPublishing(token uint64) error {
	if err := s.checkToken(token, StatePublishing); err != nil {
		return err
	}
	if _, err := s.transition(EventPublishFinished); err != nil {
		return err
	}
	s.Reset()
	return nil
}

func (s *Session) checkToken(token uint64, want State) error {
	if token != s.Generation || s.State != want {
		return fmt.Errorf("%w: token %d, session at %d in %s", ErrStale, token, s.Generation, s.State)
	}
	return nil
}
