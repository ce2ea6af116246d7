package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"asrtt/internal/apiclient"
)

func newThresholdCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threshold",
		Short: "Inspect or change the maximum idle time",
	}
	cmd.AddCommand(newThresholdGetCommand(ctx))
	cmd.AddCommand(newThresholdSetCommand(ctx))
	return cmd
}

func newThresholdGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the current maximum idle time",
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := ctx.client().ShouldTrack(cmd.Context())
			if err != nil {
				return ctx.wrapClientError(err)
			}
			out := cmd.OutOrStdout()
			if seconds == 0 {
				fmt.Fprintln(out, "Tracking disabled (max idle time 0)")
				return nil
			}
			fmt.Fprintf(out, "Max idle time: %ds\n", seconds)
			return nil
		},
	}
}

func newThresholdSetCommand(ctx *commandContext) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "set <seconds>",
		Short: "Set the maximum idle time (0 disables tracking)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || seconds < 0 {
				return fmt.Errorf("seconds must be a non-negative integer, got %q", args[0])
			}
			secret := strings.TrimSpace(password)
			if secret == "" {
				if cfg, err := ctx.ensureConfig(); err == nil {
					secret = cfg.Server.MaxIdleTimePassword
				}
			}
			if secret == "" {
				return errors.New("password required: pass --password or set MAX_IDLE_TIME_PASSWORD")
			}

			if err := ctx.client().SetMaxIdleTime(cmd.Context(), secret, seconds); err != nil {
				if errors.Is(err, apiclient.ErrForbidden) {
					return errors.New("server rejected the password")
				}
				return ctx.wrapClientError(err)
			}
			out := cmd.OutOrStdout()
			if seconds == 0 {
				fmt.Fprintln(out, "Tracking disabled; active sessions are being stopped")
				return nil
			}
			fmt.Fprintf(out, "Max idle time set to %ds\n", seconds)
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Control password (defaults to server.max_idle_time_password)")
	return cmd
}
