// Package tasks wires domain services to scheduler tasks.
package tasks

import (
	"context"
	"time"

	"github.com/searchgal/searchgal/internal/scheduler"
)

const HistoryPruneTaskID = "history-prune"

// HistoryPruner deletes finished searches older than a cutoff.
type HistoryPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// RegisterHistoryPruneTask registers the history retention task. A
// non-positive retention keeps history forever and registers nothing.
func RegisterHistoryPruneTask(sched *scheduler.Scheduler, pruner HistoryPruner, retention time.Duration, cron string) error {
	if retention <= 0 {
		return nil
	}
	if cron == "" {
		cron = "0 3 * * *"
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryPruneTaskID,
		Name:        "History Prune",
		Description: "Deletes finished searches older than the retention period",
		Cron:        cron,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			_, err := pruner.Prune(ctx, time.Now().Add(-retention))
			return err
		},
	})
}
