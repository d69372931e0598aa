// Package ingest runs sweeps: it fans out over the marketplace adapters,
// risk-scores and stores what they return, and hands new listings to the
// notification dispatcher.
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/freelance-radar/radar/internal/model"
	"github.com/freelance-radar/radar/internal/scoring"
	"github.com/freelance-radar/radar/internal/source"
	"github.com/freelance-radar/radar/internal/store"
)

// ErrSweepInProgress is returned when Sweep is called while another sweep on
// the same Coordinator has not finished.
var ErrSweepInProgress = eris.New("ingest: sweep already in progress")

// SourceReport is the per-source outcome of one sweep.
type SourceReport struct {
	Source   model.Source `json:"source"`
	Attempts int          `json:"attempts"` // category fetches tried
	Failures int          `json:"failures"` // category fetches that errored
	Fetched  int          `json:"fetched"`
	New      int          `json:"new"`
}

// Dead reports whether the source produced nothing but errors this sweep.
func (r SourceReport) Dead() bool {
	return r.Attempts > 0 && r.Failures == r.Attempts
}

// SweepResult summarizes one sweep. Adapter failures are folded into the
// counts, never into an error.
type SweepResult struct {
	ID         string           `json:"id"`
	Categories []model.Category `json:"categories"`
	Fetched    int              `json:"fetched"`
	New        int              `json:"new"`
	Duplicates int              `json:"duplicates"`
	Failures   int              `json:"failures"`
	Sources    []SourceReport   `json:"sources"`
	Duration   time.Duration    `json:"duration"`
}

// Coordinator drives sweeps over a fixed adapter set. Adapters are reused
// across sweeps (their session clients reopen after Close), so a Coordinator
// must not run two sweeps at once; the guard enforces that.
type Coordinator struct {
	store      store.Store
	adapters   []source.Adapter
	dispatcher *Dispatcher
	rules      *scoring.RuleSet
	timeout    time.Duration

	sweeping atomic.Bool
}

// NewCoordinator creates a Coordinator. dispatcher and rules may be nil:
// without a dispatcher new listings are stored but nobody is alerted, and
// without rules the built-in risk table is used.
func NewCoordinator(st store.Store, adapters []source.Adapter, dispatcher *Dispatcher, rules *scoring.RuleSet, adapterTimeout time.Duration) *Coordinator {
	if adapterTimeout <= 0 {
		adapterTimeout = 20 * time.Second
	}
	return &Coordinator{
		store:      st,
		adapters:   adapters,
		dispatcher: dispatcher,
		rules:      rules,
		timeout:    adapterTimeout,
	}
}

// Sweep fetches the given categories from every adapter concurrently,
// categories sequentially within an adapter (one session resource each).
// Adapter errors are logged and counted, never returned; the only error a
// caller can see is ErrSweepInProgress.
func (c *Coordinator) Sweep(ctx context.Context, categories []model.Category) (*SweepResult, error) {
	if !c.sweeping.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer c.sweeping.Store(false)

	if len(categories) == 0 {
		categories = model.DefaultCategories
	}

	result := &SweepResult{
		ID:         uuid.New().String(),
		Categories: categories,
	}
	started := time.Now()

	zap.L().Info("ingest: sweep started",
		zap.String("sweep_id", result.ID),
		zap.Int("adapters", len(c.adapters)),
		zap.Int("categories", len(categories)),
	)

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)

	for _, a := range c.adapters {
		a := a
		g.Go(func() error {
			report := c.sweepAdapter(gCtx, a, categories, result.ID)
			mu.Lock()
			result.Sources = append(result.Sources, report)
			result.Fetched += report.Fetched
			result.New += report.New
			result.Duplicates += report.Fetched - report.New
			result.Failures += report.Failures
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Close each adapter exactly once, whatever happened above.
	for _, a := range c.adapters {
		if err := a.Close(); err != nil {
			zap.L().Warn("ingest: adapter close failed",
				zap.String("source", string(a.Name())),
				zap.Error(err),
			)
		}
	}

	result.Duration = time.Since(started)
	zap.L().Info("ingest: sweep finished",
		zap.String("sweep_id", result.ID),
		zap.Int("fetched", result.Fetched),
		zap.Int("new", result.New),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("failures", result.Failures),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// sweepAdapter runs all categories through one adapter sequentially.
func (c *Coordinator) sweepAdapter(ctx context.Context, a source.Adapter, categories []model.Category, sweepID string) SourceReport {
	report := SourceReport{Source: a.Name()}

	for _, category := range categories {
		report.Attempts++

		fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
		listings, err := a.Fetch(fetchCtx, category)
		cancel()
		if err != nil {
			report.Failures++
			zap.L().Warn("ingest: fetch failed",
				zap.String("sweep_id", sweepID),
				zap.String("source", string(a.Name())),
				zap.String("category", string(category)),
				zap.Error(err),
			)
			continue
		}

		for _, l := range listings {
			if l.Category == "" {
				l.Category = category
			}
			report.Fetched++
			if c.ingest(ctx, l) {
				report.New++
			}
		}
	}
	return report
}

// ingest risk-scores one candidate, stores it, and offers new listings to the
// dispatcher. Returns true when the listing was not a duplicate.
func (c *Coordinator) ingest(ctx context.Context, l model.Listing) bool {
	risk := c.assess(l)
	l.RiskScore = risk.RiskScore
	l.RiskFlags = risk.Warnings

	saved, err := c.store.SaveListing(ctx, l)
	if err != nil {
		zap.L().Warn("ingest: save failed",
			zap.String("listing", l.Key()),
			zap.Error(err),
		)
		return false
	}
	if saved == nil {
		return false // duplicate
	}

	if c.dispatcher != nil {
		c.dispatcher.Offer(ctx, *saved)
	}
	return true
}

func (c *Coordinator) assess(l model.Listing) model.ScoreResult {
	if c.rules != nil {
		return c.rules.Assess(l.Title, l.Description, l.BudgetText, l.BudgetValue)
	}
	return scoring.AssessRisk(l.Title, l.Description, l.BudgetText, l.BudgetValue)
}
