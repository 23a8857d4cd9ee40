package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/riskmap/internal/dashboard"
)

var (
	compareModels []string
	compareYear   int
	compareToken  string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Print each region's risk category across models for one year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(cfg, "batch")
		if err != nil {
			return err
		}

		cmp, err := env.Service.CompareModels(ctx, compareModels, compareYear, credential(compareToken))
		if err != nil {
			return err
		}
		return writeComparison(cmd.OutOrStdout(), cmp)
	},
}

// writeComparison prints one row per region and one column per model.
func writeComparison(w io.Writer, cmp *dashboard.ModelComparison) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "REGION\t%s\n", strings.ToUpper(strings.Join(cmp.Models, "\t")))
	for _, r := range cmp.Regions {
		cells := make([]string, len(cmp.Models))
		for i, m := range cmp.Models {
			s := r.Models[m]
			if s.Score == nil {
				cells[i] = s.RiskCategory
				continue
			}
			cells[i] = fmt.Sprintf("%s (%.3f)", s.RiskCategory, *s.Score)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.DisplayName, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func init() {
	compareCmd.Flags().StringSliceVar(&compareModels, "models", nil, "models to compare (default all configured)")
	compareCmd.Flags().IntVar(&compareYear, "year", 2023, "prediction year")
	compareCmd.Flags().StringVar(&compareToken, "token", "", "bearer token for the prediction service (default from config)")
	rootCmd.AddCommand(compareCmd)
}
