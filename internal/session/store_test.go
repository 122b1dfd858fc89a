package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopodbor/intake-bot/internal/domain"
)

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	t.Parallel()

	s := NewStore()
	a := s.GetOrCreate("42")
	b := s.GetOrCreate("42")
	require.Same(t, a, b)
	assert.Equal(t, domain.StateIdle, a.State())
	assert.Equal(t, 1, s.Len())

	assert.Nil(t, s.Get("7"))
	s.Delete("42")
	assert.Zero(t, s.Len())
}

func TestSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.GetOrCreate("1").Brand = "Lada"
	assert.Empty(t, s.GetOrCreate("2").Brand)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var wg sync.WaitGroup
	got := make([]*domain.Session, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = s.GetOrCreate("same")
		}(i)
	}
	wg.Wait()
	for _, sess := range got {
		assert.Same(t, got[0], sess)
	}
}

func TestEvictIdle(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := NewStore()
	s.now = func() time.Time { return now }

	s.GetOrCreate("old")
	now = now.Add(2 * time.Hour)
	s.GetOrCreate("fresh")

	assert.Nil(t, s.EvictIdle(0), "zero ttl keeps sessions forever")

	evicted := s.EvictIdle(time.Hour)
	assert.Equal(t, []string{"old"}, evicted)
	assert.Nil(t, s.Get("old"))
	assert.NotNil(t, s.Get("fresh"))
}

type fakePurger struct {
	calls atomic.Int32
	age   atomic.Int64
}

func (f *fakePurger) PurgeDispatches(_ context.Context, olderThan time.Duration) (int64, error) {
	f.calls.Add(1)
	f.age.Store(int64(olderThan))
	return 3, nil
}

func TestHousekeepingSweeps(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := NewStore()
	s.now = func() time.Time { return now }
	s.GetOrCreate("idle")
	now = now.Add(time.Hour)

	purger := &fakePurger{}
	var evicted atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartHousekeeping(ctx, s, purger, HousekeepingConfig{
		Interval:  5 * time.Millisecond,
		IdleTTL:   time.Minute,
		Retention: 24 * time.Hour,
		OnEvict:   func(string) { evicted.Add(1) },
	})

	require.Eventually(t, func() bool {
		return purger.calls.Load() > 0 && evicted.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Len())
	assert.Equal(t, int64(24*time.Hour), purger.age.Load())
}

func TestSweepWithoutPurger(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.GetOrCreate("a")
	sweep(context.Background(), s, nil, HousekeepingConfig{})
	assert.Equal(t, 1, s.Len())
}
