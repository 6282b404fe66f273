package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "events <analysis-id>",
		Short: "Print the step events of an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if follow {
				return ctx.orchestrator().Watch(cmd.Context(), args[0], interval, func(e domain.Event) {
					printEvent(out, e)
				})
			}
			events, err := ctx.client.Events(cmd.Context(), args[0], 0)
			if err != nil {
				return err
			}
			for _, e := range events {
				printEvent(out, e)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling until the analysis completes or fails")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval with --follow")
	return cmd
}

func printEvent(w io.Writer, e domain.Event) {
	line := fmt.Sprintf("%s  #%d  %-18s %s", e.CreatedAt.Local().Format("15:04:05"), e.Seq, e.Type, e.Step)
	if e.Message != "" {
		line += "  " + e.Message
	}
	fmt.Fprintln(w, line)
}
