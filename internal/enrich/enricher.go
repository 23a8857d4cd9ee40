package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/riskmap/internal/config"
	"github.com/sells-group/riskmap/internal/metrics"
	"github.com/sells-group/riskmap/internal/region"
	"github.com/sells-group/riskmap/internal/resilience"
	"github.com/sells-group/riskmap/pkg/prediction"
)

// Config controls the enrichment fan-out.
type Config struct {
	// MaxConcurrency caps in-flight region queries. Default: 8.
	MaxConcurrency int

	// RegionTimeout bounds each region query, retries included. Default: 10s.
	RegionTimeout time.Duration

	// RetryTransient retries 408/429/5xx and network timeouts before degrading.
	// Not-found is never retried.
	RetryTransient bool

	Retry resilience.RetryConfig
}

// DefaultConfig returns the default enrichment settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		RegionTimeout:  10 * time.Second,
		RetryTransient: true,
		Retry:          resilience.DefaultRetryConfig(),
	}
}

// ConfigFrom converts application config into an enrichment Config.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg.Enrich.MaxConcurrency > 0 {
		c.MaxConcurrency = cfg.Enrich.MaxConcurrency
	}
	if d := cfg.Enrich.RegionTimeout(); d > 0 {
		c.RegionTimeout = d
	}
	c.RetryTransient = cfg.Enrich.RetryTransient
	c.Retry = resilience.RetryFromConfig(cfg.Prediction)
	return c
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithMetrics records per-region outcomes on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Enricher) {
		e.metrics = m
	}
}

// WithBreakers guards queries with circuit breakers keyed by model. An open
// breaker degrades every region of that model without querying, so one bad
// model's failures spread across its whole batch. Without this option every
// region is always queried.
func WithBreakers(b *resilience.Breakers) Option {
	return func(e *Enricher) {
		e.breakers = b
	}
}

// Enricher queries a prediction source for every region concurrently.
type Enricher struct {
	source   prediction.Source
	canon    *region.Canonicalizer
	cfg      Config
	breakers *resilience.Breakers
	metrics  *metrics.Recorder
}

// New creates an Enricher. A nil canonicalizer uses region.DefaultCanonicalizer.
func New(source prediction.Source, canon *region.Canonicalizer, cfg Config, opts ...Option) *Enricher {
	def := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.RegionTimeout <= 0 {
		cfg.RegionTimeout = def.RegionTimeout
	}
	if canon == nil {
		canon = region.DefaultCanonicalizer()
	}

	e := &Enricher{
		source: source,
		canon:  canon,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Canonicalizer returns the canonicalizer used to derive region keys.
func (e *Enricher) Canonicalizer() *region.Canonicalizer {
	return e.canon
}

// Enrich returns one EnrichedRegion per input region, in input order. A
// region whose query fails, times out or finds no data becomes a no-data
// record; it never fails the batch. The only error is cancellation of ctx,
// in which case the partial results are discarded and the slice is nil.
func (e *Enricher) Enrich(ctx context.Context, regions []region.Region, model string, year int, cred prediction.Credential) ([]EnrichedRegion, error) {
	runID := uuid.NewString()
	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("model", model),
		zap.Int("year", year),
	)

	results := make([]EnrichedRegion, len(regions))

	var eg errgroup.Group
	eg.SetLimit(e.cfg.MaxConcurrency)

	for i, r := range regions {
		eg.Go(func() error {
			results[i] = e.enrichOne(ctx, log, r, model, year, cred)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		log.Info("enrichment cancelled", zap.Error(err))
		return nil, eris.Wrap(err, "enrich: cancelled")
	}

	var ok, notFound, failed int
	for _, r := range results {
		switch r.Outcome {
		case OutcomeOK:
			ok++
		case OutcomeNotFound:
			notFound++
		default:
			failed++
		}
	}
	e.metrics.ObserveBatch(model)
	log.Info("enrichment complete",
		zap.Int("regions", len(results)),
		zap.Int("ok", ok),
		zap.Int("not_found", notFound),
		zap.Int("failed", failed),
	)

	return results, nil
}

func (e *Enricher) enrichOne(ctx context.Context, log *zap.Logger, r region.Region, model string, year int, cred prediction.Credential) EnrichedRegion {
	key := e.canon.Canonicalize(r.Name)
	out := NoData(r, key)
	if ctx.Err() != nil {
		out.Outcome = OutcomeFailed
		return out
	}
	if key == "" {
		log.Debug("region has no name, skipping query")
		return out
	}

	start := time.Now()
	p, err := e.query(ctx, key, model, year, cred)
	if err == nil {
		err = p.Normalize()
	}
	switch {
	case err == nil:
		out = fromPrediction(r, key, p)
	case errors.Is(err, prediction.ErrNotFound):
		log.Debug("no prediction for region", zap.String("region", key))
	default:
		out.Outcome = OutcomeFailed
		if ctx.Err() == nil {
			log.Warn("region query failed, degrading to no data",
				zap.String("region", key),
				zap.Error(err),
			)
		}
	}

	e.metrics.ObserveRegion(model, string(out.Outcome), time.Since(start))
	return out
}

// query runs one region query under the region timeout and, when configured,
// the model's breaker. The returned prediction is a copy the caller may modify.
func (e *Enricher) query(ctx context.Context, key, model string, year int, cred prediction.Credential) (*prediction.Prediction, error) {
	if e.breakers != nil {
		if err := e.breakers.Allow(model); err != nil {
			return nil, err
		}
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.RegionTimeout)
	defer cancel()

	call := func(ctx context.Context) (*prediction.Prediction, error) {
		return e.source.Prediction(ctx, key, model, year, cred)
	}

	var p *prediction.Prediction
	var err error
	if e.cfg.RetryTransient {
		retry := e.cfg.Retry
		retry.OnRetry = resilience.RetryLogger(model, key)
		p, err = resilience.Do(rctx, retry, call)
	} else {
		p, err = call(rctx)
	}

	// A cancelled batch says nothing about upstream health.
	if e.breakers != nil && ctx.Err() == nil {
		e.breakers.Record(model, err)
	}
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, eris.New("enrich: empty prediction")
	}
	cp := *p
	return &cp, nil
}
