package orchestrator

import (
	"strings"
	"time"

	"github.com/aiox-platform/quill/internal/broadcast"
	"github.com/aiox-platform/quill/internal/language"
	"github.com/aiox-platform/quill/internal/outcome"
	"github.com/aiox-platform/quill/internal/session"
)

const resetLayout = "2006-01-02 15:04 MST"

// renderer turns results into catalog text in one language.
type renderer struct {
	catalog *language.Catalog
	lang    string
}

func (r renderer) text(key string, args ...any) string {
	return strings.TrimSpace(r.catalog.Text(r.lang, key, args...))
}

// render returns the messages to send for res, in order. Dropped results
// render nothing.
func (r renderer) render(res outcome.Result) []string {
	switch res.Kind {
	case outcome.TaskChosen:
		return []string{r.text("task."+string(res.Task), res.Limit)}

	case outcome.GenerationSucceeded:
		header := "result.processing"
		if res.Task == session.TaskCreate {
			header = "result.created"
		}
		return []string{r.text(header) + "\n\n" + res.Text, r.text("result.next")}

	case outcome.AnalysisSucceeded:
		return []string{r.text("result.analysis") + "\n\n" + res.Text, r.text("result.another")}

	case outcome.ValidationError:
		if res.Reason == outcome.Empty {
			return []string{r.text("error.empty")}
		}
		key := "error.text_too_long"
		if res.Task == session.TaskCreate {
			key = "error.topic_too_long"
		}
		return []string{r.text(key, res.Limit, res.Actual)}

	case outcome.QuotaExceeded:
		return []string{r.text("quota.exceeded", res.DailyLimit, res.NextReset.Format(resetLayout), res.Remaining)}

	case outcome.RateLimited:
		return []string{r.text("quota.burst")}

	case outcome.GenerationFailed:
		if res.Task == session.TaskCreate {
			return []string{r.text("error.creating")}
		}
		return []string{r.text("error.processing")}

	case outcome.EditRequested:
		return []string{r.text("edit.prompt", res.Limit)}

	case outcome.EditSaved:
		return []string{r.text("edit.saved") + "\n\n" + res.Text, r.text("result.next")}

	case outcome.DestinationRequested:
		return []string{r.text("publish.start")}

	case outcome.NothingToPublish:
		return []string{r.text("publish.no_text")}

	case outcome.InvalidDestinationFormat:
		return []string{r.text("publish.invalid_format")}

	case outcome.DestinationAccessError:
		reason := r.accessReason(res.AccessReason)
		if res.Detail != "" {
			reason += "\n" + r.text("access.detail", res.Detail)
		}
		return []string{r.text("publish.access_error", reason)}

	case outcome.PublishPreview:
		d := res.Destination
		return []string{r.text("publish.preview", d.Title, r.kind(d.Kind), r.extra(d), res.Text)}

	case outcome.PublishDataMissing:
		return []string{r.text("publish.no_data")}

	case outcome.PublishSucceeded:
		handle := ""
		if res.Destination.Handle != "" {
			handle = "@" + res.Destination.Handle
		}
		return []string{r.text("publish.success", res.Destination.Title, handle)}

	case outcome.PublishFailed:
		return []string{r.text("publish.failed")}

	case outcome.PublishCancelled:
		return []string{r.text("publish.cancelled")}

	case outcome.Cancelled:
		return []string{r.text("cancelled")}

	case outcome.UseMenu:
		return []string{r.text("use_menu")}

	case outcome.NotAvailable:
		return []string{r.text("error.not_now")}

	case outcome.StorageError:
		return []string{r.text("error.internal")}

	case outcome.Dropped:
		return nil
	}
	return []string{r.text("error.internal")}
}

func (r renderer) accessReason(reason broadcast.Reason) string {
	key := "access." + string(reason)
	if text := r.text(key); text != key {
		return text
	}
	return r.text("access." + string(broadcast.ReasonNoAccess))
}

func (r renderer) kind(kind string) string {
	key := "kind." + kind
	if text := r.text(key); text != key {
		return text
	}
	return kind
}

func (r renderer) extra(d *broadcast.Destination) string {
	var lines []string
	if d.Handle != "" {
		lines = append(lines, "@"+d.Handle)
	}
	if d.Description != "" {
		lines = append(lines, d.Description)
	}
	return strings.Join(lines, "\n")
}

// processingNotice is sent right before a generation call.
func (r renderer) processingNotice(kind session.TaskKind) string {
	if kind == session.TaskCreate {
		return r.text("creating")
	}
	return r.text("processing")
}

func (r renderer) stats(requestsToday, limit, remaining, total int, nextReset time.Time) string {
	return r.text("stats", requestsToday, limit, remaining, total, nextReset.Format(resetLayout))
}
