// Package outcome defines the typed results the pipeline and the publish
// coordinator hand back to the orchestrator for rendering.
package outcome

import (
	"time"

	"github.com/aiox-platform/quill/internal/broadcast"
	"github.com/aiox-platform/quill/internal/session"
)

// Kind names what happened.
type Kind string

// Failures.
const (
	ValidationError          Kind = "validation_error"
	QuotaExceeded            Kind = "quota_exceeded"
	RateLimited              Kind = "rate_limited"
	GenerationFailed         Kind = "generation_failed"
	DestinationAccessError   Kind = "destination_access_error"
	InvalidDestinationFormat Kind = "invalid_destination_format"
	PublishFailed            Kind = "publish_failed"
	StorageError             Kind = "storage_error"
	NotAvailable             Kind = "not_available"
)

// Everything else.
const (
	TaskChosen           Kind = "task_chosen"
	GenerationSucceeded  Kind = "generation_succeeded"
	AnalysisSucceeded    Kind = "analysis_succeeded"
	EditRequested        Kind = "edit_requested"
	EditSaved            Kind = "edit_saved"
	DestinationRequested Kind = "destination_requested"
	NothingToPublish     Kind = "nothing_to_publish"
	PublishDataMissing   Kind = "publish_data_missing"
	PublishPreview       Kind = "publish_preview"
	PublishSucceeded     Kind = "publish_succeeded"
	PublishCancelled     Kind = "publish_cancelled"
	Cancelled            Kind = "cancelled"
	UseMenu              Kind = "use_menu"
	// Dropped marks a stale completion. Nothing is shown to the user.
	Dropped Kind = "dropped"
)

// ValidationReason refines ValidationError.
type ValidationReason string

const (
	Empty   ValidationReason = "empty"
	TooLong ValidationReason = "too_long"
)

// Result is one outcome with the data needed to render it.
type Result struct {
	Kind Kind
	Task session.TaskKind

	// Text is the generated, edited or published text.
	Text string

	Reason ValidationReason
	Limit  int
	Actual int

	NextReset  time.Time
	Remaining  int
	DailyLimit int

	Destination  *broadcast.Destination
	AccessReason broadcast.Reason
	// Detail is the error text reported by the destination service.
	Detail string
}

// IsFailure reports whether the result is one of the failure kinds.
func (r Result) IsFailure() bool {
	switch r.Kind {
	case ValidationError, QuotaExceeded, RateLimited, GenerationFailed, DestinationAccessError,
		InvalidDestinationFormat, PublishFailed, StorageError, NotAvailable:
		return true
	}
	return false
}

// Of returns a Result carrying only a kind.
func Of(k Kind) Result {
	return Result{Kind: k}
}

// Invalid reports an empty or oversized input.
func Invalid(reason ValidationReason, limit, actual int) Result {
	return Result{Kind: ValidationError, Reason: reason, Limit: limit, Actual: actual}
}
