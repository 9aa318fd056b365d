// FilePath: server/watchdog/internal/cleanup/cleanup_test.go
package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (f *fakePurger) DeleteOldData(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return f.deleted, f.err
}

func TestSweepUsesRetentionCutoff(t *testing.T) {
	purger := &fakePurger{deleted: 12}
	svc := New(purger, 30*24*time.Hour)

	deleted, err := svc.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
	require.Len(t, purger.cutoffs, 1)
	assert.Equal(t, now.Add(-30*24*time.Hour), purger.cutoffs[0])
}

func TestSweepWrapsErrors(t *testing.T) {
	backend := errors.New("connection reset")
	svc := New(&fakePurger{err: backend}, time.Hour)

	_, err := svc.Sweep(context.Background(), now)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend)
}

func TestOnCleanupReceivesDeletedCount(t *testing.T) {
	svc := New(&fakePurger{deleted: 5}, time.Hour)
	got := make(chan int64, 1)
	svc.OnCleanup(func(n int64) { got <- n })

	_, err := svc.Sweep(context.Background(), now)
	require.NoError(t, err)

	select {
	case n := <-got:
		assert.Equal(t, int64(5), n)
	case <-time.After(time.Second):
		t.Fatal("cleanup handler not called")
	}
}

func TestJobRunsSweep(t *testing.T) {
	purger := &fakePurger{}
	job := New(purger, time.Hour).Job(24 * time.Hour)

	assert.Equal(t, "retention", job.Name)
	assert.Equal(t, 24*time.Hour, job.Interval)
	require.NoError(t, job.Run(context.Background(), now))
	assert.Equal(t, []time.Time{now.Add(-time.Hour)}, purger.cutoffs)
}
