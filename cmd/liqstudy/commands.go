package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/liqstudy/internal/models"
	"github.com/rewired-gh/liqstudy/internal/pipeline"
	"github.com/rewired-gh/liqstudy/internal/storage"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Retrieve raw inputs",
	Long:  `Retrieve chat messages and price bars for the configured window into the raw tables.`,
}

var fetchMessagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Collect liquidation messages from Telegram",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Telegram.Enabled {
			return errors.New("telegram collection is disabled (telegram.enabled=false)")
		}
		runner, done, err := newRunner(sources{messages: true})
		if err != nil {
			return err
		}
		defer done()
		return runner.FetchMessages(cmd.Context())
	},
}

var fetchPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Fetch price bars from Binance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, done, err := newRunner(sources{prices: true})
		if err != nil {
			return err
		}
		defer done()
		return runner.FetchPrices(cmd.Context())
	},
}

var fetchAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Collect messages and fetch prices concurrently",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, done, err := newRunner(sources{messages: true, prices: true})
		if err != nil {
			return err
		}
		defer done()
		return runner.FetchAll(cmd.Context())
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Parse messages and aggregate liquidations into buckets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, done, err := newRunner(sources{})
		if err != nil {
			return err
		}
		defer done()
		return runner.Aggregate(cmd.Context())
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Join buckets with price bars into the dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, done, err := newRunner(sources{})
		if err != nil {
			return err
		}
		defer done()
		return runner.Build(cmd.Context())
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the correlation and event-study analyses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, done, err := newRunner(sources{})
		if err != nil {
			return err
		}
		defer done()
		report, err := runner.Analyze(cmd.Context())
		if err != nil {
			return err
		}
		if notify {
			runner.Notify(report)
		}
		return pipeline.FormatSummary(cmd.OutOrStdout(), report)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage: fetch, aggregate, build, analyze",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, done, err := newRunner(sources{messages: true, prices: true})
		if err != nil {
			return err
		}
		defer done()
		report, err := runner.Run(cmd.Context())
		if err != nil {
			return err
		}
		return pipeline.FormatSummary(cmd.OutOrStdout(), report)
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent stage runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.New(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		runs, err := store.RecentRuns(runsLimit)
		if err != nil {
			return err
		}
		return printRuns(cmd, runs)
	},
}

var notify bool

func init() {
	fetchCmd.AddCommand(fetchMessagesCmd, fetchPricesCmd, fetchAllCmd)
	analyzeCmd.Flags().BoolVar(&notify, "notify", false, "Send the summary to Telegram when notifications are enabled")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show")
}

func printRuns(cmd *cobra.Command, runs []models.Run) error {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "started_at\tstage\tinterval\tstatus\trows\tduration\terror")
	for _, r := range runs {
		duration := "-"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			models.FormatTimestamp(r.StartedAt), r.Stage, r.Interval, r.Status, r.Rows, duration, r.Error)
	}
	return tw.Flush()
}
