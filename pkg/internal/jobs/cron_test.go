package jobs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/internal/jobs"
	"github.com/yeisme/chest/pkg/scheduler"
)

func TestEnsureAndRemove(t *testing.T) {
	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	noop := func(context.Context) {}
	specs := []jobs.Spec{
		{Name: jobs.JobCollect, Cron: "0 * * * *", Run: noop},
		{Name: jobs.JobCheckMissing, Cron: "30 * * * *", Run: noop},
		{Name: jobs.JobOrphanScan, Cron: "", Run: noop},
	}

	require.NoError(t, jobs.Ensure(context.Background(), sched, specs...))
	require.NoError(t, jobs.Ensure(context.Background(), sched, specs...))

	assert.True(t, sched.HasJob(jobs.JobCollect))
	assert.True(t, sched.HasJob(jobs.JobCheckMissing))
	assert.False(t, sched.HasJob(jobs.JobOrphanScan), "empty cron disables the job")

	require.NoError(t, jobs.Remove(sched, jobs.ReplicaJobs...))
	require.NoError(t, jobs.Remove(sched, jobs.ReplicaJobs...))
	assert.Empty(t, sched.GetJobInfos())
}

func TestEnsure_NilScheduler(t *testing.T) {
	require.ErrorIs(t, jobs.Ensure(context.Background(), nil), jobs.ErrNoScheduler)
	require.NoError(t, jobs.Remove(nil, jobs.JobCollect))
}

func TestEnsure_BadCron(t *testing.T) {
	sched, err := scheduler.NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	err = jobs.Ensure(context.Background(), sched, jobs.Spec{Name: "x", Cron: "every tuesday", Run: func(context.Context) {}})
	require.Error(t, err)
	assert.False(t, sched.HasJob("x"))
}
