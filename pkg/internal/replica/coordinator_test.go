package replica_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/chest/pkg/configs"
	"github.com/yeisme/chest/pkg/internal/backend"
	"github.com/yeisme/chest/pkg/internal/jobs"
	"github.com/yeisme/chest/pkg/internal/model"
	"github.com/yeisme/chest/pkg/internal/remote"
	"github.com/yeisme/chest/pkg/queue"
)

func TestCollect_RemovesUnwantedBytes(t *testing.T) {
	n := newNode(t, "a", newPubSub(t), nodeOptions{})
	ctx := context.Background()

	kept := n.supply(t, "kept", "kept.txt")
	unlinked := n.supply(t, "unlinked", "unlinked.txt")

	rec, err := n.store.GetObject(ctx, unlinked)
	require.NoError(t, err)
	rec.Link = model.LinkUnlinked
	require.NoError(t, n.store.SaveObject(ctx, rec))

	st, err := n.be.OpenStaging(ctx)
	require.NoError(t, err)
	_, err = st.ReadFrom(bytes.NewBufferString("no record"))
	require.NoError(t, err)
	_, err = n.be.Commit(ctx, st, backend.CommitOptions{})
	require.NoError(t, err)

	report, err := n.coord.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Removed)
	assert.Zero(t, report.Failed)

	assert.True(t, n.has(t, kept))
	assert.False(t, n.has(t, unlinked))
	assert.False(t, n.has(t, model.ObjectID(hashOf("no record"))))
}

func TestCheckForMissing_ReplicaBroadcasts(t *testing.T) {
	ps := newPubSub(t)
	n := newNode(t, "a", ps, nodeOptions{})
	ctx := context.Background()

	present := n.supply(t, "present", "present.txt")
	lost := n.supply(t, "lost", "lost.txt")
	n.forget(t, lost)

	msgs, err := ps.Subscribe(ctx, queue.TopicMissingFileNeeded)
	require.NoError(t, err)

	report, err := n.coord.CheckForMissing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 1, report.Requested)

	select {
	case msg := <-msgs:
		m, err := queue.ParseMissingFileNeeded(msg)
		msg.Ack()
		require.NoError(t, err)
		assert.Equal(t, lost, m.Payload.ObjectID)
		assert.NotEqual(t, present, m.Payload.ObjectID)
	case <-time.After(time.Second):
		t.Fatal("no missing-file event published")
	}
}

func TestCheckForMissing_ClientFetches(t *testing.T) {
	ps := newPubSub(t)
	server := newNode(t, "server", ps, nodeOptions{})
	id := server.supply(t, "shared", "shared.txt")

	client := newNode(t, "client", ps, nodeOptions{role: configs.RoleClient, remote: loopback{server: server.chest}})

	rec, err := server.chest.Record(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, client.store.SaveObject(context.Background(), rec))

	report, err := client.coord.CheckForMissing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 1, report.Fetched)
	assert.True(t, client.has(t, id))
}

func TestCheckForMissing_ClientAbortsWhenUnreachable(t *testing.T) {
	rec := &recorder{err: remote.ErrServerUnreachable}
	n := newNode(t, "client", newPubSub(t), nodeOptions{role: configs.RoleClient, remote: rec})

	first := n.supply(t, "one", "one.txt")
	second := n.supply(t, "two", "two.txt")
	n.forget(t, first)
	n.forget(t, second)

	report, err := n.coord.CheckForMissing(context.Background())
	require.ErrorIs(t, err, remote.ErrServerUnreachable)
	assert.Equal(t, 1, report.Missing, "sweep stops at the first unreachable error")
	assert.Zero(t, report.Fetched)
}

func TestCheckForMissing_ClientContinuesPastNotFound(t *testing.T) {
	n := newNode(t, "client", newPubSub(t), nodeOptions{role: configs.RoleClient, remote: &recorder{}})

	n.forget(t, n.supply(t, "one", "one.txt"))
	n.forget(t, n.supply(t, "two", "two.txt"))

	report, err := n.coord.CheckForMissing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Missing)
	assert.Equal(t, 2, report.Failed)
}

func TestHandleMissing(t *testing.T) {
	rec := &recorder{}
	n := newNode(t, "client", newPubSub(t), nodeOptions{role: configs.RoleClient, remote: rec})
	ctx := context.Background()

	id := n.supply(t, "answer", "answer.txt")

	assert.True(t, n.coord.HandleMissing(ctx, id))

	data, got := rec.get(id)
	assert.Equal(t, "answer", string(data))
	require.NotNil(t, got)
	assert.Equal(t, "answer.txt", got.Name)

	assert.False(t, n.coord.HandleMissing(ctx, model.ObjectID(hashOf("absent"))))
	assert.False(t, n.coord.HandleMissing(ctx, "not-an-id"))

	require.NoError(t, n.be.Close())
	assert.False(t, n.coord.HandleMissing(ctx, id), "ignored while the backend is not ready")
}

func TestNegotiation_ClientAnswersReplica(t *testing.T) {
	ps := newPubSub(t)
	server := newNode(t, "server", ps, nodeOptions{})
	ctx := context.Background()

	id := server.supply(t, "only the client kept this", "kept.txt")
	server.forget(t, id)

	client := newNode(t, "client", ps, nodeOptions{role: configs.RoleClient, remote: loopback{server: server.chest}})
	client.supply(t, "only the client kept this", "kept.txt")
	require.NoError(t, client.coord.SetRole(ctx, configs.RoleClient))

	res, err := server.chest.Retrieve(ctx, id, nil)
	require.NoError(t, err)
	defer res.Stream.Close()

	got, err := io.ReadAll(res.Stream)
	require.NoError(t, err)
	assert.Equal(t, "only the client kept this", string(got))
	assert.True(t, server.has(t, id))
}

func TestSetRole(t *testing.T) {
	n := newNode(t, "a", newPubSub(t), nodeOptions{tune: func(cfg *configs.ChestConfig) {
		cfg.FS.MaxSize = 1 << 20
		cfg.Schedule.ClientSync = "15 * * * *"
	}})
	ctx := context.Background()

	require.NoError(t, n.coord.SetRole(ctx, configs.RoleReplica))
	require.NoError(t, n.coord.SetRole(ctx, configs.RoleReplica))
	assert.Equal(t, configs.RoleReplica, n.coord.Role())
	assert.Zero(t, n.be.Stats().MaxSize)
	assert.True(t, n.sched.HasJob(jobs.JobCollect))
	assert.True(t, n.sched.HasJob(jobs.JobCheckMissing))
	assert.False(t, n.sched.HasJob(jobs.JobOrphanScan))
	assert.False(t, n.sched.HasJob(jobs.JobClientSync))

	require.NoError(t, n.coord.SetRole(ctx, configs.RoleClient))
	require.NoError(t, n.coord.SetRole(ctx, configs.RoleClient))
	assert.Equal(t, configs.RoleClient, n.chest.Role())
	assert.Equal(t, int64(1<<20), n.be.Stats().MaxSize)
	assert.False(t, n.sched.HasJob(jobs.JobCollect))
	assert.False(t, n.sched.HasJob(jobs.JobCheckMissing))
	assert.True(t, n.sched.HasJob(jobs.JobClientSync))

	require.NoError(t, n.coord.SetRole(ctx, configs.RoleReplica))
	assert.True(t, n.sched.HasJob(jobs.JobCollect))
	assert.False(t, n.sched.HasJob(jobs.JobClientSync))

	require.Error(t, n.coord.SetRole(ctx, "observer"))

	require.NoError(t, n.coord.Stop())
	assert.Empty(t, n.sched.GetJobInfos())
}

func TestStart_CollectsAndAppliesRole(t *testing.T) {
	n := newNode(t, "a", newPubSub(t), nodeOptions{role: configs.RoleClient})
	ctx := context.Background()

	st, err := n.be.OpenStaging(ctx)
	require.NoError(t, err)
	_, err = st.ReadFrom(bytes.NewBufferString("stray"))
	require.NoError(t, err)
	_, err = n.be.Commit(ctx, st, backend.CommitOptions{})
	require.NoError(t, err)

	require.NoError(t, n.coord.Start(ctx))
	assert.Equal(t, configs.RoleClient, n.coord.Role())
	assert.False(t, n.has(t, model.ObjectID(hashOf("stray"))))
}
