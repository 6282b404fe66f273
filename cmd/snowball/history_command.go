package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := ctx.client.History(cmd.Context(), page, pageSize)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(res.Data) == 0 {
				fmt.Fprintln(out, "No analyses yet")
				return nil
			}

			rows := make([][]string, 0, len(res.Data))
			for _, doc := range res.Data {
				created := "-"
				if t, ok := docTime(doc, "createdAt"); ok {
					created = humanize.Time(t)
				}
				share := "-"
				if v, ok := docFloat(doc, "analysisResults", "brandShare"); ok {
					share = formatPercent(v)
				}
				rows = append(rows, []string{
					docString(doc, "analysisId"),
					docString(doc, "domain"),
					docString(doc, "brandName"),
					docString(doc, "status"),
					share,
					created,
				})
			}
			fmt.Fprintln(out, renderTable("", []string{"ID", "Domain", "Brand", "Status", "Share", "Created"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
			fmt.Fprintf(out, "Page %d of %d (%s analyses)\n", res.Page, res.TotalPages, humanize.Comma(res.Total))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "Analyses per page")
	return cmd
}
