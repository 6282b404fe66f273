package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

func newDownloadCommand(ctx *commandContext, ext string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   ext + " <analysis-id>",
		Short: fmt.Sprintf("Download the %s report of a completed analysis", ext),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			path := output
			if path == "" {
				path = fmt.Sprintf("super-user-analysis-%s.%s", id, ext)
			}

			download := func(c context.Context, w io.Writer) (int64, error) {
				if ext == "pdf" {
					return ctx.client.DownloadPDF(c, id, w)
				}
				return ctx.client.DownloadXLSX(c, id, w)
			}

			// a partial file is worse than none
			tmp := path + ".part"
			f, err := os.Create(tmp)
			if err != nil {
				return eris.Wrapf(err, "create %s", tmp)
			}
			n, err := download(cmd.Context(), f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(tmp)
				return err
			}
			if err := os.Rename(tmp, path); err != nil {
				return eris.Wrapf(err, "rename %s", tmp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", path, humanize.Bytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	return cmd
}
