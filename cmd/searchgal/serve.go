package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchgal/searchgal/internal/api"
	"github.com/searchgal/searchgal/internal/config"
	"github.com/searchgal/searchgal/internal/database"
	"github.com/searchgal/searchgal/internal/history"
	"github.com/searchgal/searchgal/internal/progress"
	"github.com/searchgal/searchgal/internal/scheduler"
	"github.com/searchgal/searchgal/internal/scheduler/tasks"
	"github.com/searchgal/searchgal/internal/search"
	"github.com/searchgal/searchgal/internal/session"
	"github.com/searchgal/searchgal/internal/translate"
	"github.com/searchgal/searchgal/internal/vndb"
	"github.com/searchgal/searchgal/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Long: `Run an HTTP and WebSocket relay in front of the search API. Browser
clients start searches over REST and receive streamed results over /ws.
Searches are recorded in a SQLite history database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, ""); err != nil {
				return err
			}
			defer a.close()

			if host != "" {
				a.cfg.Server.Host = host
			}
			if port != 0 {
				a.cfg.Server.Port = port
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	cfg := a.cfg
	log := a.log

	log.Info().
		Str("version", config.Version).
		Str("api", cfg.API.BaseURL).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting searchgal relay")

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	hist := history.NewService(db.Conn(), log.Logger)
	if n, err := hist.MarkInterrupted(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to mark interrupted searches")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("marked searches interrupted by the last shutdown")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(log.Logger)
	go hub.Run(hubCtx)
	log.Recent().SetHub(hub)

	prog := progress.NewManager(hub, log.Logger)

	mode, err := search.ParseMode(cfg.API.Mode)
	if err != nil {
		return err
	}
	client := search.NewClient(search.Options{
		ConnectTimeout:    cfg.API.ConnectTimeoutDuration(),
		UserAgent:         cfg.API.UserAgent,
		FlushTrailingLine: cfg.API.FlushTrailingLine,
	}, log.Logger)
	sessions := session.NewService(client, hist, prog, hub, session.Defaults{
		APIBaseURL: cfg.API.BaseURL,
		Mode:       mode,
		Fields:     cfg.API.Fields(),
	}, log.Logger)

	vndbClient := vndb.NewClient(vndb.Config{
		BaseURL:   cfg.VNDB.BaseURL,
		Timeout:   cfg.VNDB.TimeoutDuration(),
		CacheTTL:  cfg.VNDB.CacheTTL(),
		UserAgent: cfg.API.UserAgent,
	}, log.Logger)

	translator := translate.NewClient(translate.Config{
		BaseURL:        cfg.Translate.BaseURL,
		APIKey:         cfg.Translate.APIKey,
		Model:          cfg.Translate.Model,
		Timeout:        cfg.Translate.TimeoutDuration(),
		TargetLanguage: cfg.Translate.TargetLanguage,
	}, log.Logger)
	if !translator.IsConfigured() {
		log.Info().Msg("translation endpoint not configured, translate route will report unavailable")
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		return err
	}
	if err := tasks.RegisterHistoryPruneTask(sched, hist, cfg.History.Retention(), cfg.History.PruneCron); err != nil {
		return fmt.Errorf("failed to register history prune task: %w", err)
	}
	sched.Start()

	server := api.NewServer(cfg, api.Services{
		Sessions:  sessions,
		History:   hist,
		Progress:  prog,
		VNDB:      vndbClient,
		Translate: translator,
		Scheduler: sched,
		Hub:       hub,
		Logs:      log,
	}, log.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Address())
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error().Err(serveErr).Msg("HTTP server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown failed")
	}
	sessions.Close()
	if err := sched.Stop(); err != nil {
		log.Warn().Err(err).Msg("scheduler shutdown failed")
	}
	log.Recent().SetHub(nil)
	stopHub()

	log.Info().Msg("searchgal relay stopped")
	return serveErr
}
