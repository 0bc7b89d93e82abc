package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchgal/searchgal/internal/history"
	"github.com/searchgal/searchgal/internal/progress"
	"github.com/searchgal/searchgal/internal/search"
)

// execute runs one search and fans its callbacks out to the hub, history
// and progress tracker. Callbacks arrive on this goroutine in wire order.
func (s *Service) execute(ctx context.Context, r *run, req search.Request) {
	defer s.wg.Done()
	defer close(r.done)
	defer r.cancel()

	id := r.session.ID
	logger := s.logger.With().Str("id", id).Logger()
	store := context.WithoutCancel(ctx)

	cb := search.Callbacks{
		OnTotal: func(total int) {
			r.setState(search.StateStreaming)
			r.update(func(ss *Session) { ss.Total = total })
			s.broadcast(logger, EventTotal, map[string]any{"id": id, "total": total})
			s.recordProgress(store, logger, id, 0, total)
		},
		OnProgress: func(completed, total int) {
			r.setState(search.StateStreaming)
			r.update(func(ss *Session) {
				ss.Completed = completed
				ss.Total = total
			})
			s.broadcast(logger, EventProgress, map[string]any{"id": id, "completed": completed, "total": total})
			s.recordProgress(store, logger, id, completed, total)
		},
		OnPlatformResult: func(result search.PlatformResult) {
			r.update(func(ss *Session) { ss.Results = append(ss.Results, result) })
			s.broadcast(logger, EventResult, map[string]any{"id": id, "result": result})
			if s.history != nil {
				if err := s.history.AddPlatform(store, id, result); err != nil {
					logger.Warn().Err(err).Str("platform", result.Name).Msg("failed to record platform result")
				}
			}
		},
	}

	outcome := s.searcher.Search(ctx, req, cb)
	s.finish(store, logger, r, outcome)
}

func (s *Service) finish(ctx context.Context, logger zerolog.Logger, r *run, outcome search.Outcome) {
	id := r.session.ID
	now := time.Now().UTC()

	r.setState(outcome.State)
	r.update(func(ss *Session) {
		ss.FinishedAt = &now
		ss.EndedWithoutDone = outcome.EndedWithoutDone
		if outcome.Err != nil {
			ss.Error = outcome.Err.Error()
			ss.ErrorKind = outcome.Err.Kind
		}
	})
	snap := r.snapshot()

	var status history.Status
	switch outcome.State {
	case search.StateDone:
		status = history.StatusCompleted
		items := 0
		for _, res := range snap.Results {
			items += len(res.Items)
		}
		s.broadcast(logger, EventComplete, map[string]any{
			"id":               id,
			"platforms":        len(snap.Results),
			"items":            items,
			"endedWithoutDone": outcome.EndedWithoutDone,
		})
		if s.progress != nil {
			s.progress.CompleteActivity(id, fmt.Sprintf("%d platforms, %d items", len(snap.Results), items))
		}

	case search.StateAborted:
		status = history.StatusCancelled
		s.broadcast(logger, EventCancelled, map[string]any{"id": id})
		if s.progress != nil {
			s.progress.CancelActivity(id)
		}

	default:
		status = history.StatusFailed
		payload := map[string]any{"id": id, "error": snap.Error, "kind": snap.ErrorKind}
		if outcome.Err != nil && outcome.Err.Status != 0 {
			payload["status"] = outcome.Err.Status
		}
		s.broadcast(logger, EventError, payload)
		if s.progress != nil {
			s.progress.FailActivity(id, snap.Error)
		}
	}

	if s.history != nil {
		if err := s.history.Finish(ctx, id, status, snap.Error); err != nil {
			logger.Warn().Err(err).Msg("failed to finish search history")
		}
	}

	logger.Info().
		Str("state", outcome.State.String()).
		Int("platforms", len(snap.Results)).
		Msg("search session finished")
}

func (s *Service) recordProgress(ctx context.Context, logger zerolog.Logger, id string, completed, total int) {
	if s.progress != nil {
		s.progress.UpdateActivity(id, fmt.Sprintf("%d/%d platforms", completed, total), progress.Percent(completed, total))
	}
	if s.history != nil {
		if err := s.history.UpdateProgress(ctx, id, completed, total); err != nil {
			logger.Warn().Err(err).Msg("failed to record search progress")
		}
	}
}

func (s *Service) broadcast(logger zerolog.Logger, msgType string, payload any) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(msgType, payload); err != nil {
		logger.Warn().Err(err).Str("event", msgType).Msg("failed to broadcast search event")
	}
}
