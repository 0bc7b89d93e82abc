package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchgal/searchgal/internal/vndb"
)

func newVNDBCmd(a *app) *cobra.Command {
	var (
		output string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "vndb <name>",
		Short: "Look up visual novel metadata on VNDB",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if err := a.setup(cmd, "warn"); err != nil {
				return err
			}
			defer a.close()

			client := vndb.NewClient(vndb.Config{
				BaseURL:   a.cfg.VNDB.BaseURL,
				Timeout:   a.cfg.VNDB.TimeoutDuration(),
				UserAgent: a.cfg.API.UserAgent,
			}, a.log.Logger)

			results, err := client.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if output == "yaml" {
				return writeYAML(cmd.OutOrStdout(), results)
			}
			printVNDB(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of matches")
	return cmd
}

func printVNDB(w io.Writer, results []vndb.Metadata) {
	for i, m := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s\n", m.Title, m.URL())
		if m.AltTitle != "" {
			fmt.Fprintf(w, "  %s\n", m.AltTitle)
		}

		var facts []string
		if m.Released != "" {
			facts = append(facts, "released "+m.Released)
		}
		if m.Rating > 0 {
			facts = append(facts, fmt.Sprintf("rating %.1f (%d votes)", m.Rating, m.VoteCount))
		}
		if label := m.LengthLabel(); label != "" {
			facts = append(facts, label)
		}
		if len(m.Developers) > 0 {
			facts = append(facts, "by "+strings.Join(m.Developers, ", "))
		}
		if len(facts) > 0 {
			fmt.Fprintf(w, "  %s\n", strings.Join(facts, " | "))
		}
	}
}
