// Package monitoring tracks source health across sweeps and raises webhook
// alerts when a marketplace goes dark.
package monitoring

import (
	"sync"
	"time"

	"github.com/freelance-radar/radar/internal/ingest"
	"github.com/freelance-radar/radar/internal/model"
)

// SourceHealth is the rolling view of one marketplace adapter.
type SourceHealth struct {
	Source          model.Source `json:"source"`
	Sweeps          int          `json:"sweeps"`
	Fetched         int          `json:"fetched"`
	New             int          `json:"new"`
	FailedFetches   int          `json:"failed_fetches"`
	ConsecutiveDead int          `json:"consecutive_dead"` // sweeps in a row with only errors
	LastSweepAt     time.Time    `json:"last_sweep_at"`
}

// Collector accumulates per-source outcomes across sweeps. Safe for
// concurrent use; the watch loop records while the API may read.
type Collector struct {
	mu      sync.Mutex
	sources map[model.Source]*SourceHealth
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{sources: make(map[model.Source]*SourceHealth)}
}

// Record folds one sweep result into the rolling per-source view.
func (c *Collector) Record(result *ingest.SweepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	for _, report := range result.Sources {
		h := c.sources[report.Source]
		if h == nil {
			h = &SourceHealth{Source: report.Source}
			c.sources[report.Source] = h
		}
		h.Sweeps++
		h.Fetched += report.Fetched
		h.New += report.New
		h.FailedFetches += report.Failures
		h.LastSweepAt = now

		if report.Dead() {
			h.ConsecutiveDead++
		} else {
			h.ConsecutiveDead = 0
		}
	}
}

// Snapshot returns a copy of the current per-source health.
func (c *Collector) Snapshot() []SourceHealth {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SourceHealth, 0, len(c.sources))
	for _, h := range c.sources {
		out = append(out, *h)
	}
	return out
}
