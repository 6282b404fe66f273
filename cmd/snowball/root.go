package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "snowball",
		Short:         "Run and inspect Super User brand visibility analyses",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("server", defaultServer, "Analysis gateway base URL")
	flags.String("api-key", "", "Super user API key")
	flags.Duration("timeout", 0, "Per-step request timeout (0 waits for the server)")
	flags.String("log-level", "warn", "Log level")
	flags.StringP("config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newEventsCommand(ctx))
	rootCmd.AddCommand(newDownloadCommand(ctx, "pdf"))
	rootCmd.AddCommand(newDownloadCommand(ctx, "xlsx"))
	rootCmd.AddCommand(newDeleteCommand(ctx))

	return rootCmd
}
