package search

import (
	"github.com/rs/zerolog"
)

// Progress is the tracker's view of platform completion.
type Progress struct {
	Total     int // last declared total, from a total or progress event
	Completed int // completed count of the latest progress event
	Highest   int // highest completed count seen
}

// Dispatcher routes classified events to callbacks and tracks progress.
// It does not enforce monotonic progress; regressions are only logged.
type Dispatcher struct {
	callbacks Callbacks
	progress  Progress
	logger    zerolog.Logger
}

// NewDispatcher creates a dispatcher for one stream.
func NewDispatcher(callbacks Callbacks, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		callbacks: callbacks,
		logger:    logger,
	}
}

// Dispatch invokes the callbacks for ev. It returns true when ev is a done
// event and the stream must stop.
func (d *Dispatcher) Dispatch(ev Event) bool {
	switch e := ev.(type) {
	case TotalEvent:
		d.progress.Total = e.Total
		if d.callbacks.OnTotal != nil {
			d.callbacks.OnTotal(e.Total)
		}

	case ProgressEvent:
		d.track(e.Completed, e.Total)
		d.emitProgress(e.Completed, e.Total)

	case ResultEvent:
		d.track(e.Completed, e.Total)
		d.emitProgress(e.Completed, e.Total)
		if d.callbacks.OnPlatformResult != nil {
			d.callbacks.OnPlatformResult(e.Result)
		}

	case DoneEvent:
		return true

	case UnrecognizedEvent:
		d.logger.Debug().Str("reason", e.Reason).Msg("ignoring unrecognized stream event")
	}

	return false
}

// Progress returns the current progress snapshot.
func (d *Dispatcher) Progress() Progress {
	return d.progress
}

func (d *Dispatcher) emitProgress(completed, total int) {
	if d.callbacks.OnProgress != nil {
		d.callbacks.OnProgress(completed, total)
	}
}

func (d *Dispatcher) track(completed, total int) {
	if completed < d.progress.Highest {
		d.logger.Debug().
			Int("completed", completed).
			Int("highest", d.progress.Highest).
			Msg("progress went backwards")
	}
	d.progress.Completed = completed
	d.progress.Total = total
	if completed > d.progress.Highest {
		d.progress.Highest = completed
	}
}
