package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/reconcile"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var expandNames []string
	var expandAll bool

	cmd := &cobra.Command{
		Use:   "show <analysis-id>",
		Short: "Render the dashboard of a finished analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			responses, err := ctx.client.Responses(cmd.Context(), args[0])
			if err != nil {
				zap.L().Warn("fetch responses", zap.String("analysis_id", args[0]), zap.Error(err))
			}
			view := reconcile.Reconcile(doc, responses)
			expand(view, expandAll, expandNames)
			fmt.Fprint(cmd.OutOrStdout(), renderDashboard(view))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&expandNames, "expand", nil, "Expand a category by name (repeatable)")
	cmd.Flags().BoolVar(&expandAll, "expand-all", false, "Expand every category")
	return cmd
}
