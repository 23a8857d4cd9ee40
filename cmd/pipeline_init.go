package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/riskmap/internal/config"
	"github.com/sells-group/riskmap/internal/dashboard"
	"github.com/sells-group/riskmap/internal/enrich"
	"github.com/sells-group/riskmap/internal/metrics"
	"github.com/sells-group/riskmap/internal/region"
	"github.com/sells-group/riskmap/internal/resilience"
	"github.com/sells-group/riskmap/pkg/prediction"
)

// pipelineEnv holds everything the serve and batch commands need.
type pipelineEnv struct {
	Canon    *region.Canonicalizer
	Regions  []region.Region
	Source   prediction.Source
	Enricher *enrich.Enricher
	Service  *dashboard.Service
	Metrics  *metrics.Recorder
}

// initCanonicalizer loads the synonym table when configured, else the
// built-in grouping.
func initCanonicalizer(c *config.Config) (*region.Canonicalizer, error) {
	if c.Regions.SynonymsPath == "" {
		return region.DefaultCanonicalizer(), nil
	}
	canon, err := region.LoadSynonyms(c.Regions.SynonymsPath)
	if err != nil {
		return nil, eris.Wrap(err, "init canonicalizer")
	}
	return canon, nil
}

// initPipeline validates config for mode, loads the region geometry, and
// wires the prediction client, enricher, and dashboard service.
func initPipeline(c *config.Config, mode string) (*pipelineEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	canon, err := initCanonicalizer(c)
	if err != nil {
		return nil, err
	}

	regions, err := region.Load(c.Regions.GeometryPath, c.Regions.NameProperty)
	if err != nil {
		return nil, eris.Wrap(err, "load regions")
	}
	zap.L().Info("loaded regions",
		zap.String("path", c.Regions.GeometryPath),
		zap.Int("count", len(regions)),
	)

	src := newSource(c)
	rec := metrics.New()
	enricher := enrich.New(src, canon, enrich.ConfigFrom(c), enrichOptions(c, rec)...)

	return &pipelineEnv{
		Canon:    canon,
		Regions:  regions,
		Source:   src,
		Enricher: enricher,
		Service:  dashboard.NewService(regions, enricher, src, dashboard.OptionsFrom(c), rec),
		Metrics:  rec,
	}, nil
}

// enrichOptions wires metrics and, when enabled, the per-model breakers.
func enrichOptions(c *config.Config, rec *metrics.Recorder) []enrich.Option {
	opts := []enrich.Option{enrich.WithMetrics(rec)}
	if c.Enrich.BreakerEnabled {
		opts = append(opts, enrich.WithBreakers(resilience.NewBreakers(resilience.BreakerFromConfig(c.Prediction))))
	}
	return opts
}

// newSource builds the prediction client from config.
func newSource(c *config.Config) prediction.Source {
	opts := []prediction.Option{prediction.WithRateLimit(c.Prediction.RateLimit)}
	if c.Prediction.TimeoutSecs > 0 {
		opts = append(opts, prediction.WithTimeout(time.Duration(c.Prediction.TimeoutSecs)*time.Second))
	}
	return prediction.NewClient(c.Prediction.BaseURL, opts...)
}

// credential resolves the upstream credential: the flag wins over config.
func credential(flag string) prediction.Credential {
	if flag != "" {
		return prediction.Credential(flag)
	}
	return prediction.Credential(cfg.Prediction.Token)
}
