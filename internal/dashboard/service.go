// Package dashboard builds complete dashboard snapshots from the region
// pipeline and ranks feature importances per model.
package dashboard

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/riskmap/internal/analytics"
	"github.com/sells-group/riskmap/internal/config"
	"github.com/sells-group/riskmap/internal/enrich"
	"github.com/sells-group/riskmap/internal/metrics"
	"github.com/sells-group/riskmap/internal/region"
	"github.com/sells-group/riskmap/pkg/prediction"
)

// Validation errors.
var (
	ErrInvalidModel = eris.New("dashboard: invalid model")
	ErrInvalidYear  = eris.New("dashboard: invalid year")
)

// Options bounds the accepted requests and picks the comparison metric.
type Options struct {
	Models      []string
	MinYear     int
	MaxYear     int
	Metric      string
	Summary     analytics.SummaryOptions
	DefaultTopN int
}

// OptionsFrom converts application config into dashboard Options.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Models:      cfg.Models,
		MinYear:     cfg.Years.Min,
		MaxYear:     cfg.Years.Max,
		Metric:      cfg.Summary.Metric,
		Summary:     analytics.SummaryOptions{IncludeNoData: cfg.Summary.IncludeNoData},
		DefaultTopN: cfg.Importance.DefaultTopN,
	}
}

// Snapshot is one complete dashboard view: the enriched regions for a model
// and year, their deltas against the previous year, and the rollup.
type Snapshot struct {
	Model        string                     `json:"model"`
	Year         int                        `json:"year"`
	PreviousYear int                        `json:"previousYear"`
	Metric       string                     `json:"metric"`
	Regions      []enrich.EnrichedRegion    `json:"-"`
	Deltas       []analytics.TemporalDelta  `json:"deltas"`
	Summary      analytics.AggregateSummary `json:"summary"`
	RunID        string                     `json:"runId"`
	GeneratedAt  time.Time                  `json:"generatedAt"`
}

// Service assembles snapshots. It holds the most recent successful snapshot.
type Service struct {
	regions  []region.Region
	enricher *enrich.Enricher
	source   prediction.Source
	opts     Options
	metrics  *metrics.Recorder

	current atomic.Pointer[Snapshot]

	mu         sync.Mutex
	nextSeq    uint64
	appliedSeq uint64

	nowFunc func() time.Time
}

// NewService creates a Service over a fixed set of regions.
func NewService(regions []region.Region, enricher *enrich.Enricher, source prediction.Source, opts Options, m *metrics.Recorder) *Service {
	return &Service{
		regions:  regions,
		enricher: enricher,
		source:   source,
		opts:     opts,
		metrics:  m,
		nowFunc:  time.Now,
	}
}

// Regions returns the regions the service enriches.
func (s *Service) Regions() []region.Region {
	return s.regions
}

// Models returns the accepted model ids.
func (s *Service) Models() []string {
	return s.opts.Models
}

// DefaultTopN returns the configured top-N for importance rankings.
func (s *Service) DefaultTopN() int {
	return s.opts.DefaultTopN
}

// Validate checks model and year and resolves the previous year, which
// defaults to year-1 when zero and must precede year.
func (s *Service) Validate(model string, year, previousYear int) (int, error) {
	if !slices.Contains(s.opts.Models, model) {
		return 0, eris.Wrapf(ErrInvalidModel, "model %q not in %v", model, s.opts.Models)
	}
	if year < s.opts.MinYear || year > s.opts.MaxYear {
		return 0, eris.Wrapf(ErrInvalidYear, "year %d outside %d-%d", year, s.opts.MinYear, s.opts.MaxYear)
	}
	if previousYear == 0 {
		previousYear = year - 1
	}
	if previousYear >= year {
		return 0, eris.Wrapf(ErrInvalidYear, "previous year %d must be before %d", previousYear, year)
	}
	return previousYear, nil
}

// Enrich validates the request and runs a single enrichment pass.
func (s *Service) Enrich(ctx context.Context, model string, year int, cred prediction.Credential) ([]enrich.EnrichedRegion, error) {
	if _, err := s.Validate(model, year, 0); err != nil {
		return nil, err
	}
	return s.enricher.Enrich(ctx, s.regions, model, year, cred)
}

// Build enriches the current and previous year concurrently and assembles a
// snapshot. It returns either a complete snapshot or an error, never a
// partial one.
func (s *Service) Build(ctx context.Context, model string, year, previousYear int, cred prediction.Credential) (*Snapshot, error) {
	previousYear, err := s.Validate(model, year, previousYear)
	if err != nil {
		return nil, err
	}

	var current, previous []enrich.EnrichedRegion
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.enricher.Enrich(gctx, s.regions, model, year, cred)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.enricher.Enrich(gctx, s.regions, model, previousYear, cred)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "dashboard: build snapshot")
	}

	deltas := analytics.CompareAll(current, previous, analytics.FeatureMetric(s.opts.Metric))
	return &Snapshot{
		Model:        model,
		Year:         year,
		PreviousYear: previousYear,
		Metric:       s.opts.Metric,
		Regions:      current,
		Deltas:       deltas,
		Summary:      analytics.Summarize(current, deltas, s.opts.Summary),
		RunID:        uuid.NewString(),
		GeneratedAt:  s.nowFunc().UTC(),
	}, nil
}

// ModelScore is one model's result for one region.
type ModelScore struct {
	RiskCategory    string   `json:"riskCategory"`
	Score           *float64 `json:"score"`
	ExistsInDataset bool     `json:"existsInDataset"`
}

// RegionComparison holds every compared model's result for a region.
type RegionComparison struct {
	Key         string                `json:"key"`
	Name        string                `json:"name"`
	DisplayName string                `json:"displayName"`
	Models      map[string]ModelScore `json:"models"`
}

// ModelComparison shows one year's regions side by side across models.
type ModelComparison struct {
	Year           int                `json:"year"`
	Models         []string           `json:"models"`
	Regions        []RegionComparison `json:"regions"`
	HighRiskCounts map[string]int     `json:"highRiskCounts"`
}

// CompareModels enriches the regions once per model, concurrently, and joins
// the results by region. An empty model list compares every configured model;
// duplicates are dropped.
func (s *Service) CompareModels(ctx context.Context, models []string, year int, cred prediction.Credential) (*ModelComparison, error) {
	if len(models) == 0 {
		models = s.opts.Models
	}
	var uniq []string
	for _, m := range models {
		if !slices.Contains(uniq, m) {
			uniq = append(uniq, m)
		}
	}
	if len(uniq) == 0 {
		return nil, eris.Wrap(ErrInvalidModel, "no models to compare")
	}
	for _, m := range uniq {
		if _, err := s.Validate(m, year, 0); err != nil {
			return nil, err
		}
	}

	results := make([][]enrich.EnrichedRegion, len(uniq))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range uniq {
		g.Go(func() error {
			out, err := s.enricher.Enrich(gctx, s.regions, m, year, cred)
			results[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "dashboard: compare models")
	}

	cmp := &ModelComparison{
		Year:           year,
		Models:         uniq,
		Regions:        make([]RegionComparison, len(s.regions)),
		HighRiskCounts: make(map[string]int, len(uniq)),
	}
	for j := range s.regions {
		first := results[0][j]
		rc := RegionComparison{
			Key:         first.Key,
			Name:        first.Name,
			DisplayName: first.DisplayName(),
			Models:      make(map[string]ModelScore, len(uniq)),
		}
		for i, m := range uniq {
			e := results[i][j]
			rc.Models[m] = ModelScore{
				RiskCategory:    e.RiskCategory,
				Score:           e.Score,
				ExistsInDataset: e.ExistsInDataset,
			}
			if e.RiskCategory == prediction.RiskHigh {
				cmp.HighRiskCounts[m]++
			}
		}
		cmp.Regions[j] = rc
	}
	return cmp, nil
}

// Refresh builds a snapshot and makes it current. A failed or cancelled
// build leaves the held snapshot unchanged, and a refresh that finishes after
// a later-started one has been applied is discarded.
func (s *Service) Refresh(ctx context.Context, model string, year, previousYear int, cred prediction.Credential) (*Snapshot, error) {
	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.mu.Unlock()

	snap, err := s.Build(ctx, model, year, previousYear, cred)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.appliedSeq {
		s.appliedSeq = seq
		s.current.Store(snap)
	} else {
		zap.L().Debug("discarding superseded snapshot",
			zap.String("run_id", snap.RunID),
			zap.String("model", model),
			zap.Int("year", year),
		)
	}
	return snap, nil
}

// Current returns the held snapshot, or nil before the first successful refresh.
func (s *Service) Current() *Snapshot {
	return s.current.Load()
}

// TopFeatures fetches and ranks feature importances for each model
// concurrently. A model whose fetch fails gets an empty list. topN <= 0 uses
// the configured default.
func (s *Service) TopFeatures(ctx context.Context, models []string, topN int, cred prediction.Credential) (map[string][]analytics.ImportanceEntry, error) {
	for _, m := range models {
		if !slices.Contains(s.opts.Models, m) {
			return nil, eris.Wrapf(ErrInvalidModel, "model %q not in %v", m, s.opts.Models)
		}
	}
	if topN <= 0 {
		topN = s.opts.DefaultTopN
	}

	raw := make([][]analytics.RawImportance, len(models))
	var g errgroup.Group
	for i, m := range models {
		g.Go(func() error {
			imp, err := s.source.FeatureImportance(ctx, m, cred)
			if err != nil {
				s.metrics.ObserveImportance(m, "error")
				if ctx.Err() == nil {
					zap.L().Warn("feature importance query failed",
						zap.String("model", m),
						zap.Error(err),
					)
				}
				return nil
			}
			s.metrics.ObserveImportance(m, "ok")
			raw[i] = analytics.FromImportance(imp)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "dashboard: top features cancelled")
	}

	out := make(map[string][]analytics.ImportanceEntry, len(models))
	for i, m := range models {
		out[m] = analytics.Rank(m, raw[i], topN)
	}
	return out, nil
}
