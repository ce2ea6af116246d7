package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"asrtt/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status and tracked workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Server", statusError, "Not reachable", colorize))
				return ctx.wrapClientError(err)
			}
			for _, line := range renderStatusSummary(status, time.Now(), colorize) {
				fmt.Fprintln(out, line)
			}
			if len(status.Workers) == 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "No workers have signalled yet")
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderWorkerTable(status.Workers, time.Now()))
			return nil
		},
	}
}

func renderStatusSummary(status *api.StatusResponse, now time.Time, colorize bool) []string {
	lines := renderSectionHeader("asrtt", colorize)

	serverMsg := fmt.Sprintf("Running (pid %d)", status.PID)
	if started, ok := api.ParseTime(status.StartedAt); ok {
		serverMsg += ", up since " + humanize.RelTime(started, now, "ago", "from now")
	}
	lines = append(lines, renderStatusLine("Server", statusOK, serverMsg, colorize))

	kind, message := trackingState(status.Enabled, status.MaxIdleTime)
	lines = append(lines, renderStatusLine("Tracking", kind, message, colorize))

	if status.ControlEnabled {
		lines = append(lines, renderStatusLine("Threshold control", statusOK, "Password configured", colorize))
	} else {
		lines = append(lines, renderStatusLine("Threshold control", statusWarn, "No password set; threshold is fixed", colorize))
	}

	lines = append(lines, renderStatusLine("History", statusInfo, yesNo(status.HistoryEnabled), colorize))

	lines = append(lines, renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d known, %d working", len(status.Workers), countWorking(status.Workers)), colorize))
	return lines
}

func countWorking(workers []api.WorkerStatus) int {
	working := 0
	for _, w := range workers {
		if w.Working {
			working++
		}
	}
	return working
}

func renderWorkerTable(workers []api.WorkerStatus, now time.Time) string {
	headers := []string{"Worker", "State", "Branch", "Project", "Issue", "Since", "Idle stop", "Pending"}
	rows := make([][]string, 0, len(workers))
	for _, w := range workers {
		issue := ""
		if w.Issue > 0 {
			issue = "#" + strconv.Itoa(w.Issue)
		}
		rows = append(rows, []string{
			w.Worker,
			workerState(w.Working, w.TimerArmed),
			dashIfEmpty(w.Branch),
			dashIfEmpty(w.Project),
			dashIfEmpty(issue),
			relativeTime(w.Since, now),
			relativeTime(w.IdleDeadline, now),
			strconv.Itoa(w.PendingTasks),
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight}
	return renderTable(headers, rows, aligns, fmt.Sprintf("%d of %d working", countWorking(workers), len(workers)))
}

func relativeTime(value string, now time.Time) string {
	parsed, ok := api.ParseTime(value)
	if !ok {
		return "-"
	}
	return humanize.RelTime(parsed, now, "ago", "from now")
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
