package kv

import (
	"context"
	"time"

	"github.com/aiox-platform/quill/internal/metrics"
)

type instrumented struct {
	Store
	driver string
}

// Instrument wraps s so every data operation is observed in
// quill_store_operation_duration_seconds under the given driver label.
func Instrument(s Store, driver string) Store {
	return &instrumented{Store: s, driver: driver}
}

func (i *instrumented) observe(op string, start time.Time) {
	metrics.StoreOperationDuration.WithLabelValues(i.driver, op).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	defer i.observe("get", time.Now())
	return i.Store.Get(ctx, key)
}

func (i *instrumented) Put(ctx context.Context, key string, value []byte) error {
	defer i.observe("put", time.Now())
	return i.Store.Put(ctx, key, value)
}

func (i *instrumented) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	defer i.observe("cas", time.Now())
	return i.Store.CompareAndSwap(ctx, key, prev, next)
}

func (i *instrumented) Keys(ctx context.Context, prefix string) ([]string, error) {
	defer i.observe("keys", time.Now())
	return i.Store.Keys(ctx, prefix)
}
