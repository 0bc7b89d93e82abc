package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/searchgal/searchgal/internal/history"
	"github.com/searchgal/searchgal/internal/progress"
	"github.com/searchgal/searchgal/internal/search"
)

const maxFinishedSessions = 50

var (
	ErrNotFound     = errors.New("search session not found")
	ErrNotRunning   = errors.New("search session is not running")
	ErrInvalidInput = errors.New("invalid search input")
	ErrClosed       = errors.New("session service is shut down")
)

// Hub event types.
const (
	EventTotal     = "search:total"
	EventProgress  = "search:progress"
	EventResult    = "search:result"
	EventComplete  = "search:complete"
	EventError     = "search:error"
	EventCancelled = "search:cancelled"
)

// Searcher runs one search to completion.
type Searcher interface {
	Search(ctx context.Context, req search.Request, cb search.Callbacks) search.Outcome
}

// Broadcaster pushes messages to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload any) error
}

// Defaults fill in request fields the client leaves out.
type Defaults struct {
	APIBaseURL string
	Mode       search.Mode
	Fields     map[string]string
}

// StartInput describes a search requested by a client.
type StartInput struct {
	Game   string            `json:"game"`
	Mode   string            `json:"mode"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Service owns all running and recently finished searches.
type Service struct {
	searcher Searcher
	history  *history.Service
	progress *progress.Manager
	hub      Broadcaster
	defaults Defaults
	logger   zerolog.Logger

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	runs   map[string]*run
	closed bool
}

// NewService creates a session service. history, progress and hub may be nil.
func NewService(searcher Searcher, hist *history.Service, prog *progress.Manager, hub Broadcaster, defaults Defaults, logger zerolog.Logger) *Service {
	ctx, stop := context.WithCancel(context.Background())
	return &Service{
		searcher: searcher,
		history:  hist,
		progress: prog,
		hub:      hub,
		defaults: defaults,
		logger:   logger.With().Str("component", "session").Logger(),
		ctx:      ctx,
		stop:     stop,
		runs:     make(map[string]*run),
	}
}

// Start validates input and launches the search in the background.
func (s *Service) Start(ctx context.Context, input StartInput) (Session, error) {
	req, err := s.buildRequest(input)
	if err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Session{}, ErrClosed
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	r := &run{
		session: Session{
			ID:        uuid.NewString(),
			Game:      req.GameName,
			Mode:      req.Mode,
			StartedAt: time.Now().UTC(),
		},
		state:  search.StateConnecting,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.runs[r.session.ID] = r
	s.evictLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	id := r.session.ID
	if s.history != nil {
		if _, err := s.history.Create(ctx, history.CreateInput{ID: id, Game: req.GameName, Mode: req.Mode}); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("failed to record search history")
		}
	}
	if s.progress != nil {
		s.progress.StartActivity(id, progress.ActivityTypeSearch, req.GameName)
		s.progress.UpdateActivityMetadata(id, "mode", string(req.Mode))
	}

	s.logger.Info().Str("id", id).Str("game", req.GameName).Str("mode", string(req.Mode)).Msg("search started")

	go s.execute(runCtx, r, req)

	return r.snapshot(), nil
}

// Cancel aborts a running search.
func (s *Service) Cancel(id string) error {
	r, err := s.lookup(id)
	if err != nil {
		return err
	}
	if r.terminal() {
		return ErrNotRunning
	}
	r.cancel()
	return nil
}

// Get returns a snapshot of a session.
func (s *Service) Get(id string) (Session, error) {
	r, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	return r.snapshot(), nil
}

// Wait blocks until the session finishes or ctx is done.
func (s *Service) Wait(ctx context.Context, id string) (Session, error) {
	r, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
}

// List returns all known sessions, newest first.
func (s *Service) List() []Session {
	s.mu.RLock()
	runs := make([]*run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.RUnlock()

	out := make([]Session, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Active returns the number of searches that have not finished.
func (s *Service) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.runs {
		if !r.terminal() {
			n++
		}
	}
	return n
}

// Close cancels every running search and waits for them to finish.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()
}

func (s *Service) lookup(id string) (*run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// evictLocked drops the oldest finished sessions beyond the retention cap.
func (s *Service) evictLocked() {
	var finished []*run
	for _, r := range s.runs {
		if r.terminal() {
			finished = append(finished, r)
		}
	}
	if len(finished) <= maxFinishedSessions {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].session.StartedAt.Before(finished[j].session.StartedAt)
	})
	for _, r := range finished[:len(finished)-maxFinishedSessions] {
		delete(s.runs, r.session.ID)
	}
}

func (s *Service) buildRequest(input StartInput) (search.Request, error) {
	mode := s.defaults.Mode
	if strings.TrimSpace(input.Mode) != "" {
		m, err := search.ParseMode(input.Mode)
		if err != nil {
			return search.Request{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		mode = m
	}
	if mode == "" {
		mode = search.ModeGame
	}

	fields := make(map[string]string, len(s.defaults.Fields)+len(input.Fields))
	for k, v := range s.defaults.Fields {
		fields[k] = v
	}
	for k, v := range input.Fields {
		fields[k] = v
	}

	req := search.Request{
		APIBaseURL: s.defaults.APIBaseURL,
		GameName:   strings.TrimSpace(input.Game),
		Mode:       mode,
		Fields:     fields,
	}
	if err := req.Validate(); err != nil {
		return search.Request{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return req, nil
}
