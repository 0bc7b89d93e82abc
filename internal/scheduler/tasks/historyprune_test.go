package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchgal/searchgal/internal/scheduler"
)

type fakePruner struct {
	cutoffs chan time.Time
}

func (p *fakePruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoffs <- cutoff
	return 0, nil
}

func TestRegisterHistoryPruneTask(t *testing.T) {
	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	defer sched.Stop()

	pruner := &fakePruner{cutoffs: make(chan time.Time, 1)}
	require.NoError(t, RegisterHistoryPruneTask(sched, pruner, 30*24*time.Hour, ""))

	info, err := sched.GetTask(HistoryPruneTaskID)
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * *", info.Cron)

	sched.Start()
	select {
	case cutoff := <-pruner.cutoffs:
		assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), cutoff, time.Minute)
	case <-time.After(2 * time.Second):
		t.Fatal("prune task did not run on start")
	}
}

func TestRegisterHistoryPruneTask_DisabledRetention(t *testing.T) {
	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	defer sched.Stop()

	require.NoError(t, RegisterHistoryPruneTask(sched, &fakePruner{}, 0, ""))
	assert.Empty(t, sched.ListTasks())
}
