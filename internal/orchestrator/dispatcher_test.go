package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_PreservesOrderPerUser(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	var mu sync.Mutex
	got := map[string][]int{}

	for i := 0; i < 50; i++ {
		for _, user := range []string{"a", "b", "c"} {
			i, user := i, user
			d.Submit(ctx, user, func(context.Context) {
				mu.Lock()
				got[user] = append(got[user], i)
				mu.Unlock()
			})
		}
	}
	d.Wait()

	for _, user := range []string{"a", "b", "c"} {
		want := make([]int, 50)
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, got[user], user)
	}
	assert.Empty(t, d.queues)
}

func TestDispatcher_UsersRunConcurrently(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan string, 2)

	// a blocks until b has run, which only works if b is not queued behind a
	d.Submit(ctx, "a", func(context.Context) {
		started <- "a"
		<-release
	})
	d.Submit(ctx, "b", func(context.Context) {
		started <- "b"
		close(release)
	})
	d.Wait()

	assert.Len(t, started, 2)
}

func TestDispatcher_Pending(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	block := make(chan struct{})
	running := make(chan struct{})
	d.Submit(ctx, "a", func(context.Context) {
		close(running)
		<-block
	})
	<-running

	for i := 0; i < 3; i++ {
		d.Submit(ctx, "a", func(context.Context) {})
	}
	assert.Equal(t, 3, d.Pending("a"))
	assert.Zero(t, d.Pending("b"))

	close(block)
	d.Wait()
	assert.Zero(t, d.Pending("a"))
}
