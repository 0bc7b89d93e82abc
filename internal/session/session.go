// Package session runs searches on behalf of relay clients. Each search
// runs in its own goroutine; its events are pushed to the WebSocket hub,
// recorded in history and mirrored as a progress activity.
package session

import (
	"sync"
	"time"

	"github.com/searchgal/searchgal/internal/search"
)

// Session is a snapshot of one search run by the relay.
type Session struct {
	ID               string                  `json:"id"`
	Game             string                  `json:"game"`
	Mode             search.Mode             `json:"mode"`
	State            string                  `json:"state"`
	Total            int                     `json:"total"`
	Completed        int                     `json:"completed"`
	Results          []search.PlatformResult `json:"results"`
	Error            string                  `json:"error,omitempty"`
	ErrorKind        search.ErrorKind        `json:"errorKind,omitempty"`
	EndedWithoutDone bool                    `json:"endedWithoutDone,omitempty"`
	StartedAt        time.Time               `json:"startedAt"`
	FinishedAt       *time.Time              `json:"finishedAt,omitempty"`
}

// run is the mutable state behind a Session.
type run struct {
	mu      sync.Mutex
	session Session
	state   search.State
	cancel  func()
	done    chan struct{}
}

func (r *run) snapshot() Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.session
	s.State = r.state.String()
	s.Results = append([]search.PlatformResult(nil), r.session.Results...)
	if s.Results == nil {
		s.Results = []search.PlatformResult{}
	}
	return s
}

func (r *run) update(fn func(s *Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.session)
}

func (r *run) setState(state search.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

func (r *run) terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Terminal()
}
