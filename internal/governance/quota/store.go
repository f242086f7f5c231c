package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aiox-platform/quill/internal/kv"
)

const usageKeyPrefix = "usage:"

func usageKey(userID string) string {
	return usageKeyPrefix + userID
}

// UsageStore reads and writes UserQuota records in a key-value store.
type UsageStore struct {
	kv kv.Store
}

// NewUsageStore creates a UsageStore over s.
func NewUsageStore(s kv.Store) *UsageStore {
	return &UsageStore{kv: s}
}

// Load returns the user's record together with the raw bytes it was decoded
// from, for use as the CompareAndSwap precondition. An absent record comes
// back zero-valued with nil raw bytes.
func (u *UsageStore) Load(ctx context.Context, userID string) (UserQuota, []byte, error) {
	raw, err := u.kv.Get(ctx, usageKey(userID))
	if errors.Is(err, kv.ErrNotFound) {
		return UserQuota{}, nil, nil
	}
	if err != nil {
		return UserQuota{}, nil, fmt.Errorf("loading usage for %s: %w", userID, err)
	}

	var q UserQuota
	if err := json.Unmarshal(raw, &q); err != nil {
		slog.Warn("quota: discarding corrupt usage record", "user_id", userID, "error", err)
		return UserQuota{}, raw, nil
	}
	return q, raw, nil
}

// Swap replaces the record if it still equals prev.
func (u *UsageStore) Swap(ctx context.Context, userID string, prev []byte, next UserQuota) (bool, error) {
	data, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("marshaling usage: %w", err)
	}
	ok, err := u.kv.CompareAndSwap(ctx, usageKey(userID), prev, data)
	if err != nil {
		return false, fmt.Errorf("saving usage for %s: %w", userID, err)
	}
	return ok, nil
}

// All returns every stored record keyed by user id.
func (u *UsageStore) All(ctx context.Context) (map[string]UserQuota, error) {
	keys, err := u.kv.Keys(ctx, usageKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing usage records: %w", err)
	}

	out := make(map[string]UserQuota, len(keys))
	for _, key := range keys {
		userID := strings.TrimPrefix(key, usageKeyPrefix)
		q, _, err := u.Load(ctx, userID)
		if err != nil {
			return nil, err
		}
		out[userID] = q
	}
	return out, nil
}
