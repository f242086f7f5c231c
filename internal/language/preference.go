package language

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aiox-platform/quill/internal/kv"
)

const prefKeyPrefix = "lang:"

// Preference is the durable record kept under "lang:<userID>".
type Preference struct {
	LanguageCode string `json:"language_code"`
}

// Preferences reads and writes users' language choices.
type Preferences struct {
	kv       kv.Store
	fallback string
}

// NewPreferences creates a preference store. fallback applies to users who
// never chose a language.
func NewPreferences(s kv.Store, fallback string) *Preferences {
	return &Preferences{kv: s, fallback: Normalize(fallback)}
}

// Get returns the user's language, or the fallback when none is stored or
// the store cannot be read.
func (p *Preferences) Get(ctx context.Context, userID string) string {
	return p.Resolve(ctx, userID, "")
}

// Resolve is Get with a client-reported language taking the fallback's
// place. The hint is never stored.
func (p *Preferences) Resolve(ctx context.Context, userID, hint string) string {
	fallback := p.fallback
	if hint != "" {
		fallback = Normalize(hint)
	}

	raw, err := p.kv.Get(ctx, prefKeyPrefix+userID)
	if errors.Is(err, kv.ErrNotFound) {
		return fallback
	}
	if err != nil {
		slog.Warn("language: reading preference failed", "user_id", userID, "error", err)
		return fallback
	}

	var pref Preference
	if err := json.Unmarshal(raw, &pref); err != nil || pref.LanguageCode == "" {
		return fallback
	}
	return Normalize(pref.LanguageCode)
}

// Set stores the user's language.
func (p *Preferences) Set(ctx context.Context, userID, code string) error {
	if !Supported(code) {
		return fmt.Errorf("unsupported language %q", code)
	}
	data, err := json.Marshal(Preference{LanguageCode: Normalize(code)})
	if err != nil {
		return fmt.Errorf("marshaling language preference: %w", err)
	}
	if err := p.kv.Put(ctx, prefKeyPrefix+userID, data); err != nil {
		return fmt.Errorf("saving language for %s: %w", userID, err)
	}
	return nil
}
