package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/riskmap/internal/enrich"
)

var (
	enrichModel string
	enrichYear  int
	enrichOut   string
	enrichToken string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Write the enriched GeoJSON for a model and year",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(cfg, "batch")
		if err != nil {
			return err
		}

		enriched, err := env.Service.Enrich(ctx, enrichModel, enrichYear, credential(enrichToken))
		if err != nil {
			return err
		}

		if enrichOut == "" {
			return enrich.WriteFeatureCollection(cmd.OutOrStdout(), enriched)
		}
		if err := writeEnrichedFile(enrichOut, enriched); err != nil {
			return err
		}
		zap.L().Info("wrote enriched regions",
			zap.String("path", enrichOut),
			zap.Int("regions", len(enriched)),
		)
		return nil
	},
}

// writeEnrichedFile writes the FeatureCollection to path. A failed close is
// reported, since it can leave the file truncated.
func writeEnrichedFile(path string, enriched []enrich.EnrichedRegion) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := enrich.WriteFeatureCollection(f, enriched); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	return nil
}

func init() {
	enrichCmd.Flags().StringVar(&enrichModel, "model", "rf", "model id (rf, xgb, mlp)")
	enrichCmd.Flags().IntVar(&enrichYear, "year", 2023, "prediction year")
	enrichCmd.Flags().StringVar(&enrichOut, "out", "", "output file (default stdout)")
	enrichCmd.Flags().StringVar(&enrichToken, "token", "", "bearer token for the prediction service (default from config)")
	rootCmd.AddCommand(enrichCmd)
}
