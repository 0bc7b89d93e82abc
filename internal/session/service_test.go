package session

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchgal/searchgal/internal/history"
	"github.com/searchgal/searchgal/internal/progress"
	"github.com/searchgal/searchgal/internal/search"
	"github.com/searchgal/searchgal/internal/search/mock"
	"github.com/searchgal/searchgal/internal/testutil"
)

type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) Broadcast(msgType string, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, msgType)
	return nil
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

type fixture struct {
	service *Service
	history *history.Service
	hub     *recordingHub
	prog    *progress.Manager
}

func newFixture(t *testing.T, opts mock.Options) *fixture {
	t.Helper()

	api := httptest.NewServer(mock.NewServer(opts, zerolog.Nop()))
	t.Cleanup(api.Close)

	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	hub := &recordingHub{}
	hist := history.NewService(tdb.Conn, tdb.Logger)
	prog := progress.NewManager(nil, tdb.Logger)
	prog.SetLinger(time.Minute)

	client := search.NewClient(search.Options{}, tdb.Logger)
	service := NewService(client, hist, prog, hub, Defaults{APIBaseURL: api.URL, Mode: search.ModeGame}, tdb.Logger)
	t.Cleanup(service.Close)

	return &fixture{service: service, history: hist, hub: hub, prog: prog}
}

func waitFor(t *testing.T, s *Service, id string) Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session, err := s.Wait(ctx, id)
	require.NoError(t, err)
	return session
}

func TestService_RunsSearchToCompletion(t *testing.T) {
	f := newFixture(t, mock.Options{ChunkSize: 11})
	ctx := context.Background()

	started, err := f.service.Start(ctx, StartInput{Game: "Clannad"})
	require.NoError(t, err)
	assert.Equal(t, "Clannad", started.Game)

	done := waitFor(t, f.service, started.ID)
	platforms := mock.PlatformsFor(mock.DefaultPlatforms, false)

	assert.Equal(t, "done", done.State)
	assert.Len(t, done.Results, len(platforms))
	assert.Equal(t, len(platforms), done.Completed)
	assert.NotNil(t, done.FinishedAt)

	events := f.hub.types()
	require.NotEmpty(t, events)
	assert.Equal(t, EventTotal, events[0])
	assert.Equal(t, EventComplete, events[len(events)-1])
	assert.NotContains(t, events, EventError)

	entry, err := f.history.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusCompleted, entry.Status)
	assert.Len(t, entry.Platforms, len(platforms))
	assert.Equal(t, len(platforms), entry.Completed)

	activity, ok := f.prog.GetActivity(started.ID)
	require.True(t, ok)
	assert.Equal(t, progress.StatusCompleted, activity.Status)
	assert.Equal(t, 0, f.service.Active())
}

func TestService_CancelMidStream(t *testing.T) {
	f := newFixture(t, mock.Options{Delay: 300 * time.Millisecond})

	started, err := f.service.Start(context.Background(), StartInput{Game: "Clannad", Mode: "patch"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, _ := f.service.Get(started.ID)
		return s.Total > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, f.service.Cancel(started.ID))
	done := waitFor(t, f.service, started.ID)

	assert.Equal(t, "aborted", done.State)
	assert.Equal(t, search.KindAborted, done.ErrorKind)

	events := f.hub.types()
	assert.Equal(t, EventCancelled, events[len(events)-1])
	assert.NotContains(t, events, EventError)

	entry, err := f.history.Get(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusCancelled, entry.Status)

	assert.ErrorIs(t, f.service.Cancel(started.ID), ErrNotRunning)
}

func TestService_UpstreamFailure(t *testing.T) {
	f := newFixture(t, mock.Options{FailStatus: 503, FailMessage: "maintenance"})

	started, err := f.service.Start(context.Background(), StartInput{Game: "Clannad"})
	require.NoError(t, err)
	done := waitFor(t, f.service, started.ID)

	assert.Equal(t, "failed", done.State)
	assert.Equal(t, search.KindHTTPStatus, done.ErrorKind)
	assert.Equal(t, "maintenance (HTTP 503)", done.Error)

	events := f.hub.types()
	assert.Equal(t, []string{EventError}, events)

	entry, err := f.history.Get(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, entry.Status)
	assert.Equal(t, "maintenance (HTTP 503)", entry.Error)
}

func TestService_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t, mock.Options{})

	_, err := f.service.Start(context.Background(), StartInput{Game: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.service.Start(context.Background(), StartInput{Game: "Clannad", Mode: "movie"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.service.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.service.Cancel("missing"), ErrNotFound)
}

func TestService_CloseAbortsRunningSearches(t *testing.T) {
	f := newFixture(t, mock.Options{Delay: time.Second})

	started, err := f.service.Start(context.Background(), StartInput{Game: "Clannad"})
	require.NoError(t, err)

	f.service.Close()

	s, err := f.service.Get(started.ID)
	require.NoError(t, err)
	assert.Equal(t, "aborted", s.State)

	_, err = f.service.Start(context.Background(), StartInput{Game: "Clannad"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBuildRequest_MergesFields(t *testing.T) {
	s := NewService(nil, nil, nil, nil, Defaults{
		APIBaseURL: "https://searchgal.homes",
		Mode:       search.ModePatch,
		Fields:     map[string]string{"zypassword": "default", "other": "x"},
	}, zerolog.Nop())

	req, err := s.buildRequest(StartInput{Game: " Clannad ", Fields: map[string]string{"zypassword": "override"}})
	require.NoError(t, err)
	assert.Equal(t, "Clannad", req.GameName)
	assert.Equal(t, search.ModePatch, req.Mode)
	assert.Equal(t, map[string]string{"zypassword": "override", "other": "x"}, req.Fields)
}
