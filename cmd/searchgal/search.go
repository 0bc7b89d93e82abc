package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchgal/searchgal/internal/render"
	"github.com/searchgal/searchgal/internal/search"
)

type searchFlags struct {
	mode          string
	apiURL        string
	timeout       time.Duration
	password      string
	passwordField string
	flush         bool
	hideEmpty     bool
	output        string
}

// searchReport is the YAML form of one finished search.
type searchReport struct {
	Game             string                  `yaml:"game"`
	Mode             search.Mode             `yaml:"mode"`
	State            string                  `yaml:"state"`
	Total            int                     `yaml:"total"`
	Platforms        []search.PlatformResult `yaml:"platforms"`
	Error            string                  `yaml:"error,omitempty"`
	ErrorKind        search.ErrorKind        `yaml:"error_kind,omitempty"`
	EndedWithoutDone bool                    `yaml:"ended_without_done,omitempty"`
}

func newSearchCmd(a *app) *cobra.Command {
	f := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search <game>",
		Short: "Search all platforms for a game or its patches",
		Args:  cobra.MinimumNArgs(1),
		Example: `  searchgal search Clannad
  searchgal search "Summer Pockets" --mode patch
  searchgal search Clannad --api http://127.0.0.1:8788 -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(f.output); err != nil {
				return err
			}
			if err := a.setup(cmd, "warn"); err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.runSearch(ctx, cmd.OutOrStdout(), strings.Join(args, " "), f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", "", "search mode: game or patch (default from config)")
	fl.StringVar(&f.apiURL, "api", "", "search API base URL (default from config)")
	fl.DurationVar(&f.timeout, "timeout", 0, "connect timeout (default from config)")
	fl.StringVar(&f.password, "password", "", "access password sent with the search")
	fl.StringVar(&f.passwordField, "password-field", "", "form field name for --password")
	fl.BoolVar(&f.flush, "flush", false, "parse an unterminated final line instead of dropping it")
	fl.BoolVar(&f.hideEmpty, "hide-empty", false, "do not print platforms without results")
	fl.StringVarP(&f.output, "output", "o", "text", "output format: text or yaml")
	return cmd
}

func (a *app) runSearch(ctx context.Context, out io.Writer, game string, f *searchFlags) error {
	req, opts, err := a.searchRequest(game, f)
	if err != nil {
		return err
	}
	client := search.NewClient(opts, a.log.Logger)

	if f.output == "yaml" {
		return runSearchYAML(ctx, out, client, req)
	}

	printer := render.NewPrinter(out, req.GameName, render.Options{HideEmpty: f.hideEmpty})
	return outcomeError(client.Search(ctx, req, printer.Callbacks()))
}

func runSearchYAML(ctx context.Context, out io.Writer, client *search.Client, req search.Request) error {
	report := searchReport{Game: req.GameName, Mode: req.Mode, Platforms: []search.PlatformResult{}}
	cb := search.Callbacks{
		OnTotal:          func(total int) { report.Total = total },
		OnPlatformResult: func(r search.PlatformResult) { report.Platforms = append(report.Platforms, r) },
	}

	outcome := client.Search(ctx, req, cb)
	report.State = outcome.State.String()
	report.EndedWithoutDone = outcome.EndedWithoutDone
	if outcome.Err != nil {
		report.Error = outcome.Err.Error()
		report.ErrorKind = outcome.Err.Kind
	}

	if err := writeYAML(out, report); err != nil {
		return err
	}
	return outcomeError(outcome)
}

// searchRequest merges flags over configuration.
func (a *app) searchRequest(game string, f *searchFlags) (search.Request, search.Options, error) {
	api := a.cfg.API

	modeName := api.Mode
	if f.mode != "" {
		modeName = f.mode
	}
	mode, err := search.ParseMode(modeName)
	if err != nil {
		return search.Request{}, search.Options{}, err
	}

	baseURL := api.BaseURL
	if f.apiURL != "" {
		baseURL = f.apiURL
	}

	fields := api.Fields()
	if f.password != "" {
		name := f.passwordField
		if name == "" {
			name = api.PasswordField
		}
		if name == "" {
			return search.Request{}, search.Options{}, errors.New("--password needs --password-field or api.password_field")
		}
		if fields == nil {
			fields = map[string]string{}
		}
		fields[name] = f.password
	}

	timeout := api.ConnectTimeoutDuration()
	if f.timeout > 0 {
		timeout = f.timeout
	}

	req := search.Request{
		APIBaseURL: baseURL,
		GameName:   game,
		Mode:       mode,
		Fields:     fields,
	}
	opts := search.Options{
		ConnectTimeout:    timeout,
		UserAgent:         api.UserAgent,
		FlushTrailingLine: f.flush || api.FlushTrailingLine,
	}
	return req, opts, nil
}

// outcomeError turns a finished search into the command's result. The
// failure itself was already printed.
func outcomeError(outcome search.Outcome) error {
	switch outcome.State {
	case search.StateDone:
		return nil
	case search.StateAborted:
		return &exitError{code: 130, err: outcome.Err}
	default:
		return &exitError{code: 1, err: outcome.Err}
	}
}
