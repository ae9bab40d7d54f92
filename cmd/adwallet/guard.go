package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var guardOnce bool

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Run the budget guard loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if guardOnce {
			summary, err := a.guard.RunOnce(ctx)
			if err != nil {
				return err
			}
			a.log.Info().
				Str("run_id", summary.RunID).
				Int("checked", summary.Checked).
				Int("paused", summary.Paused).
				Int("notified", summary.Notified).
				Int("errors", summary.Errors).
				Msg("single budget guard run complete")
			return nil
		}
		return a.guard.Run(ctx)
	},
}

func init() {
	guardCmd.Flags().BoolVar(&guardOnce, "once", false, "run a single pass and exit")
}
