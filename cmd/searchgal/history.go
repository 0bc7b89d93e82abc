package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchgal/searchgal/internal/database"
	"github.com/searchgal/searchgal/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect searches recorded by the relay server",
	}
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text or yaml")

	// withHistory opens the history database for the duration of fn.
	withHistory := func(cmd *cobra.Command, fn func(svc *history.Service) error) error {
		if err := checkOutput(output); err != nil {
			return err
		}
		if err := a.setup(cmd, "warn"); err != nil {
			return err
		}
		defer a.close()

		db, err := database.Open(a.cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		return fn(history.NewService(db.Conn(), a.log.Logger))
	}

	var opts history.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded searches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(cmd, func(svc *history.Service) error {
				if opts.Status != "" && !history.Status(opts.Status).Valid() {
					return fmt.Errorf("unknown status %q", opts.Status)
				}
				resp, err := svc.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if output == "yaml" {
					return writeYAML(cmd.OutOrStdout(), resp)
				}
				printHistoryList(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	list.Flags().StringVar(&opts.Game, "game", "", "only searches whose game contains this text")
	list.Flags().StringVar(&opts.Status, "status", "", "only searches with this status")
	list.Flags().IntVar(&opts.Page, "page", 1, "page number")
	list.Flags().IntVar(&opts.PageSize, "page-size", 20, "entries per page")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one search with its platform results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(svc *history.Service) error {
				entry, err := svc.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if output == "yaml" {
					return writeYAML(cmd.OutOrStdout(), entry)
				}
				printHistoryEntry(cmd.OutOrStdout(), entry)
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one recorded search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(svc *history.Service) error {
				if err := svc.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	var olderThan time.Duration
	var all bool
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished searches older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(cmd, func(svc *history.Service) error {
				if all {
					if err := svc.DeleteAll(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Deleted all history")
					return nil
				}

				if olderThan <= 0 {
					olderThan = a.cfg.History.Retention()
				}
				if olderThan <= 0 {
					return errors.New("no retention configured, pass --older-than or --all")
				}
				n, err := svc.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d searches\n", n)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff (default from history.retention_days)")
	prune.Flags().BoolVar(&all, "all", false, "delete every recorded search")

	cmd.AddCommand(list, show, del, prune)
	return cmd
}

func printHistoryList(w io.Writer, resp *history.ListResponse) {
	if len(resp.Items) == 0 {
		fmt.Fprintln(w, "No searches recorded")
		return
	}

	rows := make([][]string, 0, len(resp.Items))
	for _, e := range resp.Items {
		rows = append(rows, []string{
			e.ID,
			e.StartedAt.Local().Format("2006-01-02 15:04"),
			e.Game,
			e.Mode,
			string(e.Status),
			strconv.Itoa(e.PlatformCount),
			strconv.Itoa(e.ItemCount),
		})
	}
	writeTable(w, []string{"ID", "Started", "Game", "Mode", "Status", "Platforms", "Items"}, rows)
	fmt.Fprintf(w, "Page %d of %d (%d searches)\n", resp.Page, resp.TotalPages, resp.TotalCount)
}

func printHistoryEntry(w io.Writer, e *history.Entry) {
	fmt.Fprintf(w, "%s  %s (%s)\n", e.ID, e.Game, e.Mode)
	fmt.Fprintf(w, "Status:  %s  %d/%d platforms, %d items\n", e.Status, e.Completed, e.Total, e.ItemCount)
	fmt.Fprintf(w, "Started: %s\n", e.StartedAt.Local().Format(time.RFC3339))
	if e.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", e.Error)
	}

	for _, p := range e.Platforms {
		fmt.Fprintf(w, "\n%s [%s] %s\n", p.Name, p.Color, p.URL)
		if p.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", p.Error)
			continue
		}
		for _, item := range p.Items {
			fmt.Fprintf(w, "  - %s  %s\n", item.Title, item.URL)
		}
	}
}
