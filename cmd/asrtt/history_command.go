package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"asrtt/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently closed tracking sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("limit must be >= 0")
			}
			entries, err := ctx.client().History(cmd.Context(), limit)
			if err != nil {
				return ctx.wrapClientError(err)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No sessions recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(entries, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to show")
	return cmd
}

func renderHistoryTable(entries []api.HistoryEntry, now time.Time) string {
	headers := []string{"Stopped", "Worker", "Branch", "Issue", "Elapsed", "Logged", "Reason"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		issue := "-"
		if e.Issue > 0 {
			issue = "#" + strconv.Itoa(e.Issue)
		}
		rows = append(rows, []string{
			relativeTime(e.StoppedAt, now),
			e.Worker,
			dashIfEmpty(e.Branch),
			issue,
			e.Elapsed,
			yesNo(e.Logged),
			e.Reason,
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
	return renderTable(headers, rows, aligns, fmt.Sprintf("%d most recent sessions", len(entries)))
}
