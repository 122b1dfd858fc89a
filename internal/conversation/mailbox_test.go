package conversation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxKeepsOrderPerKey(t *testing.T) {
	t.Parallel()

	m := NewMailbox(0, nil)
	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 20; i++ {
		require.NoError(t, m.Post("a", func(context.Context) {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, m.Close(context.Background()))

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestMailboxRunsKeysInParallel(t *testing.T) {
	t.Parallel()

	m := NewMailbox(0, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, m.Post("slow", func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	done := make(chan struct{})
	require.NoError(t, m.Post("fast", func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("a blocked conversation stalled another one")
	}
	require.Eventually(t, func() bool { return m.Active() == 1 }, 2*time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, m.Close(context.Background()))
	assert.Zero(t, m.Active())
}

func TestMailboxRecoversFromPanics(t *testing.T) {
	t.Parallel()

	m := NewMailbox(0, nil)
	var ran atomic.Bool
	require.NoError(t, m.Post("k", func(context.Context) { panic("boom") }))
	require.NoError(t, m.Post("k", func(context.Context) { ran.Store(true) }))
	require.NoError(t, m.Close(context.Background()))
	assert.True(t, ran.Load())
}

func TestMailboxRejectsWhenFullOrClosed(t *testing.T) {
	t.Parallel()

	m := NewMailbox(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, m.Post("k", func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, m.Post("k", func(context.Context) {}))
	assert.ErrorIs(t, m.Post("k", func(context.Context) {}), ErrMailboxFull)

	close(release)
	require.NoError(t, m.Close(context.Background()))
	assert.ErrorIs(t, m.Post("k", func(context.Context) {}), ErrMailboxClosed)
	assert.ErrorIs(t, m.Close(context.Background()), ErrMailboxClosed)
}

func TestMailboxCloseCancelsOnTimeout(t *testing.T) {
	t.Parallel()

	m := NewMailbox(0, nil)
	var cancelled atomic.Bool
	started := make(chan struct{})
	require.NoError(t, m.Post("k", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Close(ctx), context.DeadlineExceeded)
	assert.True(t, cancelled.Load())
}
