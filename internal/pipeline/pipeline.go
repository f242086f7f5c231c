// Package pipeline runs the collect, generate, review cycle of a post:
// input validation, the daily quota, the generation call and manual edits.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/aiox-platform/quill/internal/generation"
	"github.com/aiox-platform/quill/internal/governance/quota"
	"github.com/aiox-platform/quill/internal/outcome"
	"github.com/aiox-platform/quill/internal/session"
)

// Limits bounds user input, in runes.
type Limits struct {
	MaxMessageLength int
	TopicMaxLength   int
}

// Pipeline is safe for concurrent use. Session changes go through the
// session manager, the generation call runs outside its lock.
type Pipeline struct {
	sessions *session.Manager
	guard    *quota.Guard
	gen      generation.Generator
	limits   Limits
}

// New creates a Pipeline.
func New(sessions *session.Manager, guard *quota.Guard, gen generation.Generator, limits Limits) *Pipeline {
	return &Pipeline{sessions: sessions, guard: guard, gen: gen, limits: limits}
}

type progressKey struct{}

// WithProgress returns a context under which the pipeline calls fn right
// before the generator, once input and quota checks have passed.
func WithProgress(ctx context.Context, fn func(kind session.TaskKind)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// rejected carries a result out of a session update that must not be saved.
type rejected struct {
	result outcome.Result
}

func (r rejected) Error() string { return string(r.result.Kind) }

// ChooseTask starts a task and reports the input limit for it.
func (p *Pipeline) ChooseTask(ctx context.Context, userID string, kind session.TaskKind) outcome.Result {
	if !kind.Valid() {
		return outcome.Of(outcome.NotAvailable)
	}
	_, err := p.sessions.Update(ctx, userID, func(s *session.Session) error {
		return s.ChooseTask(kind)
	})
	if err != nil {
		return p.fail(userID, "choose task", err)
	}
	return outcome.Result{Kind: outcome.TaskChosen, Task: kind, Limit: p.inputLimit(kind)}
}

// HandleUserText treats free text according to the session's state: a topic
// or body is submitted for generation, a manual edit replaces the result,
// anything else is pointed at the menu.
func (p *Pipeline) HandleUserText(ctx context.Context, userID, text, lang string) outcome.Result {
	sess, err := p.sessions.Get(ctx, userID)
	if err != nil {
		return p.fail(userID, "load session", err)
	}

	switch sess.State {
	case session.StateAwaitingTopic, session.StateAwaitingBody:
		return p.submit(ctx, userID, text, lang)
	case session.StateAwaitingManualEdit:
		return p.SubmitEdit(ctx, userID, text)
	case session.StateIdle, session.StateResultReady:
		return outcome.Of(outcome.UseMenu)
	default:
		return outcome.Of(outcome.NotAvailable)
	}
}

func (p *Pipeline) submit(ctx context.Context, userID, text, lang string) outcome.Result {
	var (
		token uint64
		kind  session.TaskKind
	)
	_, err := p.sessions.Update(ctx, userID, func(s *session.Session) error {
		limit := p.limits.MaxMessageLength
		if s.State == session.StateAwaitingTopic {
			limit = p.limits.TopicMaxLength
		}
		if res, ok := validate(text, limit); !ok {
			if s.State == session.StateAwaitingTopic {
				res.Task = session.TaskCreate
			}
			return rejected{res}
		}

		var err error
		token, err = s.SubmitText(text)
		kind = s.TaskKind
		return err
	})
	if err != nil {
		return p.fail(userID, "submit text", err)
	}

	return p.run(ctx, userID, token, text, kind, lang)
}

// ProcessAgain re-runs generation on the stored input and task.
func (p *Pipeline) ProcessAgain(ctx context.Context, userID, lang string) outcome.Result {
	var (
		token uint64
		text  string
		kind  session.TaskKind
		state session.State
	)
	_, err := p.sessions.Update(ctx, userID, func(s *session.Session) error {
		state = s.State
		var err error
		token, err = s.ProcessAgain()
		text, kind = s.OriginalText, s.TaskKind
		return err
	})
	if idleMisuse(state, err) {
		return outcome.Of(outcome.UseMenu)
	}
	if err != nil {
		return p.fail(userID, "process again", err)
	}

	return p.run(ctx, userID, token, text, kind, lang)
}

// run checks the quota, calls the generator and stores the result. It is
// entered with the session in processing under token.
func (p *Pipeline) run(ctx context.Context, userID string, token uint64, text string, kind session.TaskKind, lang string) outcome.Result {
	if !p.guard.CanProceed(ctx, userID) {
		_, err := p.sessions.Update(ctx, userID, func(s *session.Session) error {
			return s.QuotaDenied(token)
		})
		if err != nil {
			return p.fail(userID, "quota denied", err)
		}
		return outcome.Result{
			Kind:       outcome.QuotaExceeded,
			Task:       kind,
			NextReset:  p.guard.NextResetInstant(),
			Remaining:  0,
			DailyLimit: p.guard.DailyLimit(),
		}
	}

	if fn, ok := ctx.Value(progressKey{}).(func(session.TaskKind)); ok {
		fn(kind)
	}

	generated, genErr := p.gen.Generate(ctx, text, kind, lang)
	if genErr != nil {
		slog.Warn("pipeline: generation failed", "user_id", userID, "task", kind, "error", genErr)
		_, err := p.sessions.Update(ctx, userID, func(s *session.Session) error {
			return s.FailGeneration(token)
		})
		if err != nil {
			return p.fail(userID, "generation failed", err)
		}
		return outcome.Result{Kind: outcome.GenerationFailed, Task: kind}
	}

	_, err := p.sessions.Update(ctx, userID, func(s *session.Session) error {
		return s.CompleteGeneration(token, generated)
	})
	if err != nil {
		return p.fail(userID, "complete generation", err)
	}

	p.guard.RecordUsage(ctx, userID)

	res := outcome.Result{Kind: outcome.GenerationSucceeded, Task: kind, Text: generated}
	if kind == session.TaskAnalyze {
		res.Kind = outcome.AnalysisSucceeded
	}
	return res
}

// BeginEdit waits for the user's replacement text.
func (p *Pipeline) BeginEdit(ctx context.Context, userID string) outcome.Result {
	var state session.State
	_, err := p.sessions.Update(ctx, userID, func(s *session.Session) error {
		state = s.State
		return s.BeginEdit()
	})
	if idleMisuse(state, err) {
		return outcome.Of(outcome.UseMenu)
	}
	if err != nil {
		return p.fail(userID, "begin edit", err)
	}
	return outcome.Result{Kind: outcome.EditRequested, Limit: p.limits.MaxMessageLength}
}

// SubmitEdit replaces the processed text with the user's own.
func (p *Pipeline) SubmitEdit(ctx context.Context, userID, text string) outcome.Result {
	var kind session.TaskKind
	_, err := p.sessions.Update(ctx, userID, func(s *session.Session) error {
		if res, ok := validate(text, p.limits.MaxMessageLength); !ok {
			return rejected{res}
		}
		kind = s.TaskKind
		return s.SubmitEdit(text)
	})
	if err != nil {
		return p.fail(userID, "submit edit", err)
	}
	return outcome.Result{Kind: outcome.EditSaved, Task: kind, Text: text}
}

// Cancel abandons whatever the user was doing. A generation still in flight
// finishes as a stale completion and is dropped.
func (p *Pipeline) Cancel(ctx context.Context, userID string) outcome.Result {
	if _, err := p.sessions.Reset(ctx, userID); err != nil {
		return p.fail(userID, "cancel", err)
	}
	return outcome.Of(outcome.Cancelled)
}

func (p *Pipeline) inputLimit(kind session.TaskKind) int {
	if kind == session.TaskCreate {
		return p.limits.TopicMaxLength
	}
	return p.limits.MaxMessageLength
}

func validate(text string, limit int) (outcome.Result, bool) {
	if strings.TrimSpace(text) == "" {
		return outcome.Invalid(outcome.Empty, limit, 0), false
	}
	if n := utf8.RuneCountInString(text); limit > 0 && n > limit {
		return outcome.Invalid(outcome.TooLong, limit, n), false
	}
	return outcome.Result{}, true
}

// idleMisuse reports a result action sent with no task in progress.
func idleMisuse(state session.State, err error) bool {
	return state == session.StateIdle && errors.Is(err, session.ErrIllegalTransition)
}

// fail maps session errors onto results. Storage problems are logged and
// reported without detail.
func (p *Pipeline) fail(userID, op string, err error) outcome.Result {
	var rej rejected
	switch {
	case errors.As(err, &rej):
		return rej.result
	case errors.Is(err, session.ErrStale):
		slog.Info("pipeline: dropping stale completion", "user_id", userID, "op", op)
		return outcome.Of(outcome.Dropped)
	case errors.Is(err, session.ErrIllegalTransition):
		slog.Debug("pipeline: action not available", "user_id", userID, "op", op, "error", err)
		return outcome.Of(outcome.NotAvailable)
	default:
		slog.Error("pipeline: session storage failed", "user_id", userID, "op", op, "error", err)
		return outcome.Of(outcome.StorageError)
	}
}
