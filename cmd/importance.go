package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	importanceModels []string
	importanceTopN   int
	importanceToken  string
)

var importanceCmd = &cobra.Command{
	Use:   "importance",
	Short: "Print the top-N features per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(cfg, "batch")
		if err != nil {
			return err
		}

		models := importanceModels
		if len(models) == 0 {
			models = cfg.Models
		}

		ranked, err := env.Service.TopFeatures(ctx, models, importanceTopN, credential(importanceToken))
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "MODEL\tRANK\tFEATURE\tSHARE")
		for _, m := range models {
			entries := ranked[m]
			if len(entries) == 0 {
				_, _ = fmt.Fprintf(tw, "%s\t-\t(no data)\t-\n", m)
				continue
			}
			for i, e := range entries {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%.1f%%\n", m, i+1, e.FeatureName, e.ImportancePercent)
			}
		}
		return tw.Flush()
	},
}

func init() {
	importanceCmd.Flags().StringSliceVar(&importanceModels, "models", nil, "models to rank (default all configured)")
	importanceCmd.Flags().IntVar(&importanceTopN, "top-n", 0, "features per model (default from config)")
	importanceCmd.Flags().StringVar(&importanceToken, "token", "", "bearer token for the prediction service (default from config)")
	rootCmd.AddCommand(importanceCmd)
}
