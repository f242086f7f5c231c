package governance

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aiox-platform/quill/internal/api"
	"github.com/aiox-platform/quill/internal/governance/audit"
	"github.com/aiox-platform/quill/internal/governance/quota"
	"github.com/aiox-platform/quill/internal/language"
	"github.com/aiox-platform/quill/internal/session"
)

// AuditLister reads the persisted audit trail.
type AuditLister interface {
	ListByUser(ctx context.Context, userID string, params audit.ListParams) ([]audit.AuditLog, int64, error)
	ListByResource(ctx context.Context, userID, resourceID string, params audit.ListParams) ([]audit.AuditLog, int64, error)
}

// Handler provides the admin HTTP endpoints.
type Handler struct {
	guard    *quota.Guard
	sessions *session.Manager
	prefs    *language.Preferences
	audit    AuditLister
	validate *validator.Validate
}

// NewHandler creates a new governance Handler. auditLogs may be nil when
// no database is configured.
func NewHandler(guard *quota.Guard, sessions *session.Manager, prefs *language.Preferences, auditLogs AuditLister) *Handler {
	return &Handler{
		guard:    guard,
		sessions: sessions,
		prefs:    prefs,
		audit:    auditLogs,
		validate: validator.New(),
	}
}

// GetStats returns usage aggregated over every user.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.guard.GlobalStats(r.Context())
	if err != nil {
		slog.Error("reading global stats", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, stats)
}

// GetUsage returns one user's quota snapshot.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	api.JSON(w, http.StatusOK, h.guard.UsageSnapshot(r.Context(), userID))
}

// GetSession returns the user's conversation state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		slog.Error("loading session", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, NewSessionView(userID, s))
}

// ResetSession forces the user back to the main menu.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Reset(r.Context(), userID)
	if err != nil {
		slog.Error("resetting session", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	slog.Info("session reset by admin", "user_id", userID)
	api.JSON(w, http.StatusOK, NewSessionView(userID, s))
}

// SetLanguage stores the user's reply language.
func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}

	var req LanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}
	if !language.Supported(req.LanguageCode) {
		api.HandleError(w, api.NewValidationError("unsupported language"))
		return
	}

	if err := h.prefs.Set(r.Context(), userID, req.LanguageCode); err != nil {
		slog.Error("storing language", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, language.Preference{LanguageCode: language.Normalize(req.LanguageCode)})
}

// ListAuditLogs returns paginated audit logs for a user, optionally only
// those about one destination (?resource_id=).
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		api.HandleError(w, api.ErrAuditDisabled)
		return
	}
	userID, ok := userParam(w, r)
	if !ok {
		return
	}

	params := parseAuditParams(r)

	var (
		logs  []audit.AuditLog
		total int64
		err   error
	)
	if resourceID := r.URL.Query().Get("resource_id"); resourceID != "" {
		logs, total, err = h.audit.ListByResource(r.Context(), userID, resourceID, params)
	} else {
		logs, total, err = h.audit.ListByUser(r.Context(), userID, params)
	}
	if err != nil {
		slog.Error("listing audit logs", "user_id", userID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, logs, total, params.Page, params.PageSize)
}

func userParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		api.HandleError(w, api.NewBadRequestError("user id is required"))
		return "", false
	}
	return userID, true
}

func parseAuditParams(r *http.Request) audit.ListParams {
	params := audit.DefaultListParams()

	if et := r.URL.Query().Get("event_type"); et != "" {
		params.EventType = et
	}
	if sev := r.URL.Query().Get("severity"); sev != "" {
		params.Severity = sev
	}
	if p := r.URL.Query().Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			params.From = &t
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			params.To = &t
		}
	}

	return params
}
