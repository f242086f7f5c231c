// Package orchestrator consumes inbound chat messages, routes them to the
// post pipeline or the publish coordinator and publishes the rendered replies.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aiox-platform/quill/internal/governance/quota"
	"github.com/aiox-platform/quill/internal/language"
	"github.com/aiox-platform/quill/internal/metrics"
	inats "github.com/aiox-platform/quill/internal/nats"
	"github.com/aiox-platform/quill/internal/outcome"
	"github.com/aiox-platform/quill/internal/pipeline"
	"github.com/aiox-platform/quill/internal/publish"
	"github.com/aiox-platform/quill/internal/render"
	"github.com/aiox-platform/quill/internal/session"
)

const consumerName = "orchestrator"

// Publisher is the part of the NATS publisher the orchestrator needs.
type Publisher interface {
	PublishOutboundMessage(ctx context.Context, msg inats.OutboundMessage) error
	PublishAuditEvent(ctx context.Context, event inats.AuditEvent) error
}

// Deps are the collaborators of an Orchestrator. Burst may be nil.
type Deps struct {
	Publisher   Publisher
	ConsumerMgr *inats.ConsumerManager
	Validator   *Validator
	Sessions    *session.Manager
	Pipeline    *pipeline.Pipeline
	Coordinator *publish.Coordinator
	Guard       *quota.Guard
	Burst       *quota.BurstLimiter
	Preferences *language.Preferences
	Catalog     *language.Catalog

	// MaxMessageLength splits long replies into several messages.
	MaxMessageLength int
}

// Orchestrator consumes inbound messages, serializes them per user, and
// publishes outbound replies and audit events.
type Orchestrator struct {
	Deps
	dispatcher *Dispatcher
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{Deps: deps, dispatcher: NewDispatcher()}
}

// Start begins the orchestrator event loop. It returns once ctx is done and
// every queued message has been handled.
func (o *Orchestrator) Start(ctx context.Context) error {
	consumer, err := o.ConsumerMgr.EnsureConsumer(ctx, inats.StreamMessages, consumerName, inats.SubjectInboundMessage)
	if err != nil {
		return err
	}

	slog.Info("orchestrator started", "consumer", consumerName)
	defer o.dispatcher.Wait()

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("fetching inbound messages", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			o.processMessage(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// processMessage acks on dispatch. A message lost in a crash is not replayed,
// so a generation is never run twice for one message.
func (o *Orchestrator) processMessage(ctx context.Context, msg jetstream.Msg) {
	var inbound inats.InboundMessage
	if err := json.Unmarshal(msg.Data(), &inbound); err != nil {
		slog.Error("unmarshaling inbound message", "error", err)
		_ = msg.Term()
		return
	}
	_ = msg.Ack()

	o.Dispatch(ctx, inbound)
}

// Dispatch validates and routes one inbound message. Cancel and menu
// commands run immediately, everything else joins the user's queue.
func (o *Orchestrator) Dispatch(ctx context.Context, in inats.InboundMessage) {
	metrics.InboundEventsTotal.WithLabelValues(in.Transport).Inc()

	if err := o.Validator.Validate(in); err != nil {
		slog.Warn("rejecting inbound message", "id", in.ID, "transport", in.Transport, "user_id", in.UserID, "error", err)
		return
	}

	route := ParseRoute(in.Body)
	if in.ForwardOrigin != "" {
		route = Route{Action: ActionText, Arg: in.Body}
	}

	slog.Debug("orchestrator processing message",
		"id", in.ID,
		"user_id", in.UserID,
		"transport", in.Transport,
		"action", route.Action,
	)

	if route.Bypass() {
		o.handle(ctx, in, route)
		return
	}
	o.dispatcher.Submit(ctx, in.UserID, func(ctx context.Context) {
		o.handle(ctx, in, route)
	})
}

func (o *Orchestrator) handle(ctx context.Context, in inats.InboundMessage, route Route) {
	lang := o.Preferences.Resolve(ctx, in.UserID, in.LanguageHint)
	r := renderer{catalog: o.Catalog, lang: lang}

	switch route.Action {
	case ActionStart:
		o.reset(ctx, in, r)
		o.send(ctx, in, r.text("welcome"), r.text("menu"))
		return
	case ActionMenu:
		o.reset(ctx, in, r)
		o.send(ctx, in, r.text("menu"))
		return
	case ActionHelp:
		o.send(ctx, in, r.text("help", o.Guard.DailyLimit(), o.MaxMessageLength))
		return
	case ActionStats:
		s := o.Guard.UsageSnapshot(ctx, in.UserID)
		o.send(ctx, in, r.stats(s.RequestsToday, s.DailyLimit, s.Remaining, s.TotalRequests, s.NextReset))
		return
	case ActionLang:
		o.setLanguage(ctx, in, route.Arg, r)
		return
	case ActionCancel:
		o.deliver(ctx, in, r, o.cancel(ctx, in.UserID))
		return
	}

	if !o.allowBurst(ctx, in.UserID) {
		o.deliver(ctx, in, r, outcome.Of(outcome.RateLimited))
		return
	}

	progress := pipeline.WithProgress(ctx, func(kind session.TaskKind) {
		o.send(ctx, in, r.processingNotice(kind))
	})

	var res outcome.Result
	switch route.Action {
	case ActionChooseTask:
		res = o.Pipeline.ChooseTask(ctx, in.UserID, route.Task)
	case ActionAgain:
		res = o.Pipeline.ProcessAgain(progress, in.UserID, lang)
	case ActionEdit:
		res = o.Pipeline.BeginEdit(ctx, in.UserID)
	case ActionPublish:
		res = o.Coordinator.BeginPublish(ctx, in.UserID)
	case ActionConfirm:
		res = o.Coordinator.ConfirmPublish(ctx, in.UserID)
	default:
		res = o.text(progress, in, lang)
	}
	o.deliver(ctx, in, r, res)
}

// text hands free text to whoever is waiting for it.
func (o *Orchestrator) text(ctx context.Context, in inats.InboundMessage, lang string) outcome.Result {
	sess, err := o.Sessions.Get(ctx, in.UserID)
	if err != nil {
		slog.Error("loading session", "user_id", in.UserID, "error", err)
		return outcome.Of(outcome.StorageError)
	}
	if sess.State == session.StateAwaitingPublishDestination {
		return o.Coordinator.SubmitDestination(ctx, in.UserID, publish.Input{Text: in.Body, ForwardOrigin: in.ForwardOrigin})
	}
	return o.Pipeline.HandleUserText(ctx, in.UserID, in.Body, lang)
}

func (o *Orchestrator) cancel(ctx context.Context, userID string) outcome.Result {
	sess, err := o.Sessions.Get(ctx, userID)
	if err != nil {
		slog.Error("loading session", "user_id", userID, "error", err)
		return outcome.Of(outcome.StorageError)
	}
	switch sess.State {
	case session.StateAwaitingPublishDestination, session.StateConfirmingPublish, session.StatePublishing:
		return o.Coordinator.CancelPublish(ctx, userID)
	}
	return o.Pipeline.Cancel(ctx, userID)
}

// reset drops the session silently, as part of /start and /menu.
func (o *Orchestrator) reset(ctx context.Context, in inats.InboundMessage, r renderer) {
	if res := o.Pipeline.Cancel(ctx, in.UserID); res.Kind == outcome.StorageError {
		o.deliver(ctx, in, r, res)
	}
}

func (o *Orchestrator) setLanguage(ctx context.Context, in inats.InboundMessage, code string, r renderer) {
	if !language.Supported(code) {
		o.send(ctx, in, r.text("lang.usage"))
		return
	}
	if err := o.Preferences.Set(ctx, in.UserID, code); err != nil {
		slog.Error("saving language preference", "user_id", in.UserID, "error", err)
		o.send(ctx, in, r.text("error.internal"))
		return
	}
	r.lang = language.Normalize(code)
	o.send(ctx, in, r.text("lang.changed"))
}

// allowBurst fails open when the limiter's store is unreachable.
func (o *Orchestrator) allowBurst(ctx context.Context, userID string) bool {
	ok, err := o.Burst.Allow(ctx, userID)
	if err != nil {
		slog.Warn("burst limiter unavailable, allowing message", "user_id", userID, "error", err)
		return true
	}
	return ok
}

func (o *Orchestrator) deliver(ctx context.Context, in inats.InboundMessage, r renderer, res outcome.Result) {
	if res.IsFailure() {
		slog.Info("request not completed", "user_id", in.UserID, "transport", in.Transport, "outcome", res.Kind)
	}
	o.send(ctx, in, r.render(res)...)
	o.audit(ctx, in, res)
}

// send publishes bodies in order, splitting any that exceed the message limit.
func (o *Orchestrator) send(ctx context.Context, in inats.InboundMessage, bodies ...string) {
	for _, body := range bodies {
		for _, chunk := range render.Chunk(body, o.MaxMessageLength) {
			outbound := inats.OutboundMessage{
				ID:        uuid.New().String(),
				Transport: in.Transport,
				To:        in.ReplyTo,
				Body:      chunk,
				InReplyTo: in.ID,
			}
			if err := o.Publisher.PublishOutboundMessage(ctx, outbound); err != nil {
				slog.Error("publishing outbound message", "error", err, "user_id", in.UserID)
			}
		}
	}
}

func (o *Orchestrator) audit(ctx context.Context, in inats.InboundMessage, res outcome.Result) {
	event, ok := auditEvent(res)
	if !ok {
		return
	}
	event.UserID = in.UserID
	event.Transport = in.Transport
	event.Timestamp = time.Now().UTC()
	if err := o.Publisher.PublishAuditEvent(ctx, event); err != nil {
		slog.Error("publishing audit event", "error", err)
	}
}

// auditEvent maps the results worth keeping a record of.
func auditEvent(res outcome.Result) (inats.AuditEvent, bool) {
	task := map[string]any{"task": string(res.Task)}
	switch res.Kind {
	case outcome.GenerationSucceeded, outcome.AnalysisSucceeded:
		return inats.AuditEvent{EventType: "generation_completed", Severity: "info", Details: task}, true
	case outcome.GenerationFailed:
		return inats.AuditEvent{EventType: "generation_failed", Severity: "warn", Details: task}, true
	case outcome.QuotaExceeded:
		return inats.AuditEvent{EventType: "quota_exceeded", Severity: "warn", Details: map[string]any{
			"task":        string(res.Task),
			"daily_limit": res.DailyLimit,
		}}, true
	case outcome.RateLimited:
		return inats.AuditEvent{EventType: "rate_limited", Severity: "warn"}, true
	case outcome.PublishSucceeded:
		return publishEvent("post_published", "info", res), true
	case outcome.PublishFailed:
		return publishEvent("publish_failed", "error", res), true
	}
	return inats.AuditEvent{}, false
}

func publishEvent(eventType, severity string, res outcome.Result) inats.AuditEvent {
	event := inats.AuditEvent{EventType: eventType, Severity: severity}
	if res.Destination != nil {
		event.ResourceID = res.Destination.ID
		event.Details = map[string]any{"title": res.Destination.Title}
	}
	return event
}
