package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/searchgal/searchgal/internal/database"
	"github.com/searchgal/searchgal/internal/history"
	"github.com/searchgal/searchgal/internal/search"
	"github.com/searchgal/searchgal/internal/search/mock"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// isolate runs the test in an empty directory so no config, .env or
// database from the developer's machine is picked up.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func mockAPI(t *testing.T, opts mock.Options) string {
	t.Helper()
	srv := httptest.NewServer(mock.NewServer(opts, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSearchCommand_Text(t *testing.T) {
	isolate(t)
	api := mockAPI(t, mock.Options{ChunkSize: 13})

	out, err := runCLI(t, "search", "Clannad", "--api", api)
	require.NoError(t, err)

	assert.Contains(t, out, `Searching 5 platforms for "Clannad"`)
	assert.Contains(t, out, "Sakura Archive https://sakura-archive.example")
	assert.Contains(t, out, "error: upstream returned 502")
	assert.Contains(t, out, "Done: 8 items from 5 platforms, 1 failed")
}

func TestSearchCommand_MultiWordGameAndYAML(t *testing.T) {
	isolate(t)
	api := mockAPI(t, mock.Options{})

	out, err := runCLI(t, "search", "Summer", "Pockets", "--api", api, "--mode", "patch", "-o", "yaml")
	require.NoError(t, err)

	var report searchReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, "Summer Pockets", report.Game)
	assert.Equal(t, search.ModePatch, report.Mode)
	assert.Equal(t, "done", report.State)
	assert.Equal(t, 2, report.Total)
	require.Len(t, report.Platforms, 2)
	assert.Equal(t, "Tsuki Patches", report.Platforms[0].Name)
}

func TestSearchCommand_HTTPFailure(t *testing.T) {
	isolate(t)
	api := mockAPI(t, mock.Options{FailStatus: http.StatusServiceUnavailable, FailMessage: "maintenance"})

	out, err := runCLI(t, "search", "Clannad", "--api", api)
	require.Error(t, err)

	var exit *exitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 1, exit.code)
	assert.True(t, errors.Is(err, search.ErrHTTPStatus))
	assert.Contains(t, out, "Search failed:")
	assert.Contains(t, out, "maintenance")
}

func TestSearchCommand_BadFlags(t *testing.T) {
	isolate(t)

	_, err := runCLI(t, "search", "Clannad", "-o", "json")
	assert.ErrorContains(t, err, "unknown output format")

	_, err = runCLI(t, "search", "Clannad", "--mode", "music")
	assert.ErrorContains(t, err, "unknown search mode")

	_, err = runCLI(t, "search", "Clannad", "--password", "secret")
	assert.ErrorContains(t, err, "--password-field")

	_, err = runCLI(t, "search")
	assert.Error(t, err)
}

func TestHistoryCommands(t *testing.T) {
	isolate(t)

	db, err := database.Open("data/searchgal.db")
	require.NoError(t, err)
	hist := history.NewService(db.Conn(), zerolog.Nop())
	ctx := context.Background()
	_, err = hist.Create(ctx, history.CreateInput{ID: "s1", Game: "Clannad", Mode: search.ModeGame})
	require.NoError(t, err)
	require.NoError(t, hist.AddPlatform(ctx, "s1", search.PlatformResult{
		Name:  "Sakura Archive",
		Color: search.ColorLime,
		URL:   "https://sakura-archive.example",
		Items: []search.Item{{Platform: "Sakura Archive", Title: "Clannad", URL: "https://sakura-archive.example/clannad"}},
	}))
	require.NoError(t, hist.Finish(ctx, "s1", history.StatusCompleted, ""))
	require.NoError(t, db.Close())

	out, err := runCLI(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Clannad")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "Page 1 of 1 (1 searches)")

	out, err = runCLI(t, "history", "show", "s1", "-o", "yaml")
	require.NoError(t, err)
	var entry history.Entry
	require.NoError(t, yaml.Unmarshal([]byte(out), &entry))
	assert.Equal(t, "Clannad", entry.Game)
	require.Len(t, entry.Platforms, 1)
	assert.Equal(t, 1, entry.Platforms[0].ItemCount)

	_, err = runCLI(t, "history", "list", "--status", "exploded")
	assert.ErrorContains(t, err, "unknown status")

	out, err = runCLI(t, "history", "delete", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted s1")

	_, err = runCLI(t, "history", "show", "s1")
	assert.ErrorIs(t, err, history.ErrNotFound)

	out, err = runCLI(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No searches recorded")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "searchgal dev")
}
