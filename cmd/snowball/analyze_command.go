package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/orchestrator"
	"github.com/SnowballHQ/geo-optimizer-sub002/internal/reconcile"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var opts orchestrator.Options
	var expandAll bool

	cmd := &cobra.Command{
		Use:   "analyze <domain>",
		Short: "Run create, update, generate-prompts and complete for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := orchestrator.ValidateDomain(args[0]); err != nil {
				return err
			}

			o := ctx.orchestrator()
			timeout := o.Options.StepTimeout
			o.Options = opts
			o.Options.StepTimeout = timeout

			bar := progressbar.NewOptions(len(orchestrator.Steps),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("starting"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetElapsedTime(true),
				progressbar.OptionClearOnFinish(),
			)
			o.OnProgress = func(p orchestrator.Progress) {
				if p.Done {
					_ = bar.Set(p.Index)
					return
				}
				bar.Describe(fmt.Sprintf("%s (%d/%d)", p.Step, p.Index, p.Total))
			}

			res, err := o.Run(cmd.Context(), args[0])
			_ = bar.Finish()
			if err != nil {
				if stepErr, ok := asStepError(err); ok {
					return errors.New(stepErr.UserMessage())
				}
				return err
			}

			expand(res.View, expandAll, nil)
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderDashboard(res.View))
			fmt.Fprintf(out, "\nFinished in %s\n", res.Elapsed.Round(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.BrandName, "brand", "", "Brand name (detected when empty)")
	cmd.Flags().StringSliceVar(&opts.Categories, "category", nil, "Category to analyse (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Competitors, "competitor", nil, "Competitor to track (repeatable)")
	cmd.Flags().IntVar(&opts.PromptsPerCategory, "prompts", 0, "Prompts per category (server default when 0)")
	cmd.Flags().BoolVar(&expandAll, "expand-all", false, "Show every prompt and response")
	return cmd
}

// expand opens every category when all is set, otherwise the named ones.
func expand(v *reconcile.ViewModel, all bool, names []string) {
	if all {
		for _, c := range v.Categories {
			c.Expanded = true
		}
		return
	}
	for _, n := range names {
		v.Toggle(n)
	}
}
