package main

import (
	"context"
	"creditrisk/cmd"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "creditrisk",
		Short:         "build PD datasets, train risk models and stress test them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), versionCmd())
	return root
}

func runCmd() *cobra.Command {
	args := cmd.RunArgs{}
	c := &cobra.Command{
		Use:   "run",
		Short: "run the full pipeline over csv inputs",
		RunE: func(c *cobra.Command, _ []string) error {
			dir, err := cmd.Run(context.Background(), args)
			if err != nil {
				log.Println(err)
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), dir)
			return nil
		},
	}

	flags := c.Flags()
	flags.StringVar(&args.ConfigPath, "config", "", "yaml config file, defaults apply when empty")
	flags.StringVar(&args.ApplicationsPath, "applications", "", "applications csv")
	flags.StringVar(&args.PerformancePath, "performance", "", "performance csv")
	flags.StringVar(&args.MacroPath, "macro", "", "optional macro csv")
	flags.StringVar(&args.OutDir, "out", "results", "output directory, one subdirectory per run")
	flags.StringVar(&args.MetricsFile, "metrics-file", "", "optional prometheus textfile")
	c.MarkFlagRequired("applications")
	c.MarkFlagRequired("performance")
	return c
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the build version",
		Run: func(c *cobra.Command, _ []string) {
			fmt.Fprintln(c.OutOrStdout(), version)
		},
	}
}
