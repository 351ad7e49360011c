package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgouveia/pantry-ledger/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.ExtractReceiptJob{JobID: "j1", SessionID: "s1", Status: jobs.JobStatusPending}
	require.NoError(t, store.SaveJob(ctx, job))

	got, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)

	// Stored copy is isolated from caller mutations.
	job.SessionID = "mutated"
	got, err = store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
}

func TestStore_SaveRequiresID(t *testing.T) {
	store := NewStore()
	err := store.SaveJob(context.Background(), &jobs.ExtractReceiptJob{})
	require.Error(t, err)
}

func TestStore_ListFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveJob(ctx, &jobs.ExtractReceiptJob{JobID: "j1", SessionID: "s1", Status: jobs.JobStatusPending}))
	require.NoError(t, store.SaveJob(ctx, &jobs.ExtractReceiptJob{JobID: "j2", SessionID: "s1", Status: jobs.JobStatusCompleted}))
	require.NoError(t, store.SaveJob(ctx, &jobs.ExtractReceiptJob{JobID: "j3", SessionID: "s2", Status: jobs.JobStatusPending}))

	bySession, err := store.ListJobs(ctx, jobs.JobFilter{SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, bySession, 2)

	byStatus, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)
}

func TestStore_UpdateStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveJob(ctx, &jobs.ExtractReceiptJob{JobID: "j1", Status: jobs.JobStatusRunning}))
	require.NoError(t, store.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "model unavailable"))

	got, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "model unavailable", got.Error)

	require.Error(t, store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""))
}
