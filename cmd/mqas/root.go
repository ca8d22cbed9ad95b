package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "mqas",
		Short:         "Run and inspect jobs queued in a shared store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Configuration file path")
	pf.StringVar(&flags.consumerID, "consumer-id", "", "Consumer partition id")
	pf.StringVar(&flags.backend, "backend", "", "Store backend: sqlite, mongo, or postgres")
	pf.StringVarP(&flags.conn, "conn", "u", "", "Store connection string (sqlite path, mongo URI, or postgres DSN)")
	pf.StringVar(&flags.dbname, "dbname", "", "Mongo database name")
	pf.StringVar(&flags.colname, "colname", "", "Mongo collection name")

	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
