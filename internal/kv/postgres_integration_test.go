//go:build integration

package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aiox-platform/quill/internal/database/dbtest"
)

func TestPostgresStore(t *testing.T) {
	pool := dbtest.NewPool(t)

	runStoreSuite(t, func(t *testing.T) Store {
		_, err := pool.Exec(context.Background(), `TRUNCATE kv_entries`)
		require.NoError(t, err)
		return NewPostgresStore(pool)
	})
}
