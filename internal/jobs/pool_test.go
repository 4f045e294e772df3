package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/folio/internal/store"
	"github.com/mesh-intelligence/folio/pkg/types"
)

const testPoll = 20 * time.Millisecond

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "folio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueue(t *testing.T, s *store.Store, jobType string) *types.Job {
	t.Helper()
	job, err := s.EnqueueJob(context.Background(), jobType, json.RawMessage(`{}`))
	require.NoError(t, err)
	return job
}

// waitStatus polls until the job reaches want.
func waitStatus(t *testing.T, s *store.Store, id string, want types.JobStatus) *types.Job {
	t.Helper()
	var got *types.Job
	require.Eventually(t, func() bool {
		j, err := s.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func startPool(t *testing.T, s *store.Store, r *Registry, workers int) *Pool {
	t.Helper()
	p := NewPool(s, r, Options{Workers: workers, PollInterval: testPoll, Name: "test"}, zerolog.Nop())
	p.Start(context.Background())
	return p
}

func TestClaimExclusivity(t *testing.T) {
	s := setupStore(t)
	var calls atomic.Int32
	r := NewRegistry()
	r.Register("count", func(context.Context, json.RawMessage) (any, error) {
		calls.Add(1)
		return "ok", nil
	})

	job := enqueue(t, s, "count")
	p := startPool(t, s, r, 2)
	got := waitStatus(t, s, job.JobID, types.JobCompleted)
	time.Sleep(5 * testPoll)
	p.Stop()
	require.NoError(t, p.Wait(context.Background()))

	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, got.Result)
	assert.Equal(t, "ok", *got.Result)
	require.NotNil(t, got.ClaimedBy)
	assert.Contains(t, *got.ClaimedBy, "test-")
}

func TestOutcomes(t *testing.T) {
	s := setupStore(t)
	r := NewRegistry()
	r.Register("text", func(context.Context, json.RawMessage) (any, error) { return "plain", nil })
	r.Register("struct", func(context.Context, json.RawMessage) (any, error) {
		return struct {
			Count int `json:"count"`
		}{3}, nil
	})
	r.Register("empty", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	r.Register("broken", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("model exploded")
	})

	tests := []struct {
		jobType    string
		wantStatus types.JobStatus
		wantResult *string
	}{
		{"text", types.JobCompleted, ptr("plain")},
		{"struct", types.JobCompleted, ptr(`{"count":3}`)},
		{"empty", types.JobCompleted, nil},
		{"broken", types.JobFailed, ptr("model exploded")},
		{"nobody", types.JobFailed, ptr(`no handler registered for job type "nobody"`)},
	}

	ids := make([]string, len(tests))
	for i, tt := range tests {
		ids[i] = enqueue(t, s, tt.jobType).JobID
	}
	p := startPool(t, s, r, 1)
	t.Cleanup(func() {
		p.Stop()
		_ = p.Wait(context.Background())
	})

	for i, tt := range tests {
		t.Run(tt.jobType, func(t *testing.T) {
			got := waitStatus(t, s, ids[i], tt.wantStatus)
			assert.Equal(t, tt.wantResult, got.Result)
		})
	}
}

func TestShutdownLetsHandlerFinish(t *testing.T) {
	s := setupStore(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerErr atomic.Value
	r := NewRegistry()
	r.Register("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			handlerErr.Store(ctx.Err())
		}
		return "done", nil
	})

	job := enqueue(t, s, "slow")
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(s, r, Options{PollInterval: testPoll}, zerolog.Nop())
	p.Start(ctx)
	<-started

	cancel()
	p.Stop()
	close(release)
	require.NoError(t, p.Wait(context.Background()))

	assert.Nil(t, handlerErr.Load(), "handler context survives shutdown")
	got, err := s.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, got.Status)
}

func TestShutdownSweep(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p := NewPool(s, NewRegistry(), Options{Workers: 1, PollInterval: testPoll, Name: "test"}, zerolog.Nop())

	// Claimed by this pool's worker ids before the pool starts, so no worker
	// of the running pool picks them up.
	own := enqueue(t, s, "orphan")
	_, err := s.ClaimJob(ctx, p.workerPrefix()+"9")
	require.NoError(t, err)
	foreign := enqueue(t, s, "orphan")
	_, err = s.ClaimJob(ctx, "elsewhere-1-1")
	require.NoError(t, err)

	p.Start(ctx)
	p.Stop()
	require.NoError(t, p.Wait(ctx))

	got, err := s.GetJob(ctx, own.JobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, types.ErrShutdownInterrupted.Error(), *got.Result)

	got, err = s.GetJob(ctx, foreign.JobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobRunning, got.Status, "another pool's job is not swept")
}

func TestRunStopsOnCancel(t *testing.T) {
	s := setupStore(t)
	p := NewPool(s, NewRegistry(), Options{Workers: 3, PollInterval: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(testPoll)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop while idle")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("x")
	assert.False(t, ok)

	r.Register("b", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	r.Register("a", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	_, ok = r.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.Types())
}

func ptr(s string) *string { return &s }
