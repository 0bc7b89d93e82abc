package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchgal/searchgal/internal/search/mock"
)

func newMockCmd(a *app) *cobra.Command {
	var (
		addr  string
		opts  mock.Options
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a scripted search API for local testing",
		Long: `Run a fake SearchGal API with /gal and /patch endpoints that streams
scripted platform results. Point "search --api" or api.base_url at it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd, "info"); err != nil {
				return err
			}
			defer a.close()

			opts.Delay = delay
			server := mock.NewServer(opts, a.log.Logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.Info().Str("address", addr).Msg("mock search API listening")
				errCh <- server.Start(addr)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("mock server: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Echo().Shutdown(shutdownCtx)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&addr, "addr", "127.0.0.1:8788", "listen address")
	fl.DurationVar(&delay, "delay", 300*time.Millisecond, "delay before each platform result")
	fl.IntVar(&opts.ChunkSize, "chunk-size", 0, "split writes into chunks of this many bytes")
	fl.BoolVar(&opts.InjectMalformed, "malformed", false, "inject a malformed line after the total")
	fl.BoolVar(&opts.OmitDone, "omit-done", false, "end the stream without a done event")
	fl.IntVar(&opts.FailStatus, "fail-status", 0, "answer every search with this HTTP status")
	fl.StringVar(&opts.FailMessage, "fail-message", "", "error message sent with --fail-status")
	return cmd
}
