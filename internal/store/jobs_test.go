package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/folio/pkg/types"
)

func TestClaimJobFIFO(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := s.EnqueueJob(ctx, "noop", json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
		require.NoError(t, err)
		assert.Equal(t, types.JobPending, job.Status)
		ids = append(ids, job.JobID)
	}

	for _, want := range ids {
		job, err := s.ClaimJob(ctx, "w0")
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, want, job.JobID)
		assert.Equal(t, types.JobRunning, job.Status)
		require.NotNil(t, job.ClaimedBy)
		assert.Equal(t, "w0", *job.ClaimedBy)
	}

	job, err := s.ClaimJob(ctx, "w0")
	require.NoError(t, err)
	assert.Nil(t, job, "empty queue")
}

func TestClaimJobIsExclusive(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	const jobs = 20
	for i := 0; i < jobs; i++ {
		_, err := s.EnqueueJob(ctx, "noop", json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = map[string]string{}
		wg      sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			for {
				job, err := s.ClaimJob(ctx, worker)
				if !assert.NoError(t, err) || job == nil {
					return
				}
				mu.Lock()
				_, dup := claimed[job.JobID]
				assert.False(t, dup, "job %s claimed twice", job.JobID)
				claimed[job.JobID] = worker
				mu.Unlock()
			}
		}(fmt.Sprintf("w%d", w))
	}
	wg.Wait()
	assert.Len(t, claimed, jobs)
}

func TestJobOutcomes(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	a, err := s.EnqueueJob(ctx, "noop", json.RawMessage(`{}`))
	require.NoError(t, err)
	b, err := s.EnqueueJob(ctx, "noop", json.RawMessage(`{}`))
	require.NoError(t, err)

	err = s.CompleteJob(ctx, a.JobID, nil)
	assert.True(t, errors.Is(err, types.ErrConflict), "pending jobs cannot complete")

	_, err = s.ClaimJob(ctx, "w")
	require.NoError(t, err)
	_, err = s.ClaimJob(ctx, "w")
	require.NoError(t, err)

	result := `{"ok":true}`
	require.NoError(t, s.CompleteJob(ctx, a.JobID, &result))
	require.NoError(t, s.FailJob(ctx, b.JobID, "boom"))

	got, err := s.GetJob(ctx, a.JobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, got.Status)
	assert.Equal(t, result, *got.Result)

	got, err = s.GetJob(ctx, b.JobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, got.Status)
	assert.Equal(t, "boom", *got.Result)

	err = s.FailJob(ctx, "missing", "x")
	assert.True(t, errors.Is(err, types.ErrNotFound))

	require.NoError(t, s.ResetJob(ctx, b.JobID))
	got, err = s.GetJob(ctx, b.JobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobPending, got.Status)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.ClaimedBy)

	err = s.ResetJob(ctx, a.JobID)
	assert.True(t, errors.Is(err, types.ErrConflict), "completed jobs stay completed")
}

func TestFailRunningJobs(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.EnqueueJob(ctx, "noop", json.RawMessage(`{}`))
		require.NoError(t, err)
	}
	_, err := s.ClaimJob(ctx, "w")
	require.NoError(t, err)
	_, err = s.ClaimJob(ctx, "w")
	require.NoError(t, err)

	n, err := s.FailRunningJobs(ctx, "", types.ErrShutdownInterrupted.Error())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	failed, err := s.ListJobs(ctx, types.JobFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "job interrupted by worker pool shutdown", *failed[0].Result)

	pending, err := s.ListJobs(ctx, types.JobPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := s.ListJobs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFailRunningJobsByClaimer(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	claimers := []string{"host_a-7-1", "host_a-7-2", "hostXa-7-1", "host_a-70-1", "other-7-1"}
	ids := map[string]string{}
	for _, c := range claimers {
		_, err := s.EnqueueJob(ctx, "noop", json.RawMessage(`{}`))
		require.NoError(t, err)
		job, err := s.ClaimJob(ctx, c)
		require.NoError(t, err)
		ids[c] = job.JobID
	}

	n, err := s.FailRunningJobs(ctx, "host_a-7-", "stopped")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "wildcards in the prefix match literally")

	for c, id := range ids {
		job, err := s.GetJob(ctx, id)
		require.NoError(t, err)
		want := types.JobRunning
		if c == "host_a-7-1" || c == "host_a-7-2" {
			want = types.JobFailed
		}
		assert.Equal(t, want, job.Status, c)
	}
}

func TestEnqueueJobValidation(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	_, err := s.EnqueueJob(ctx, "", json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, types.ErrValidation))
	_, err = s.EnqueueJob(ctx, "noop", json.RawMessage(`{`))
	assert.True(t, errors.Is(err, types.ErrValidation))
}
