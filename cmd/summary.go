package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	summaryModel        string
	summaryYear         int
	summaryPreviousYear int
	summaryToken        string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the dashboard summary and year-over-year deltas as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(cfg, "batch")
		if err != nil {
			return err
		}

		snap, err := env.Service.Build(ctx, summaryModel, summaryYear, summaryPreviousYear, credential(summaryToken))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return eris.Wrap(err, "encode summary")
		}
		return nil
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryModel, "model", "rf", "model id (rf, xgb, mlp)")
	summaryCmd.Flags().IntVar(&summaryYear, "year", 2023, "current year")
	summaryCmd.Flags().IntVar(&summaryPreviousYear, "previous-year", 0, "comparison year (default year-1)")
	summaryCmd.Flags().StringVar(&summaryToken, "token", "", "bearer token for the prediction service (default from config)")
	rootCmd.AddCommand(summaryCmd)
}
