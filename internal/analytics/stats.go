// Package analytics aggregates market statistics over stored listings.
package analytics

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/freelance-radar/radar/internal/model"
	"github.com/freelance-radar/radar/internal/store"
)

// MarketStats is a week-window snapshot of listing volume and budgets.
// Budget figures honor the category filter; the source and category
// breakdowns always cover the whole market.
type MarketStats struct {
	Category      model.Category        `json:"category,omitempty"`
	WeeklyCount   int                   `json:"weekly_count"`
	DailyAvg      int                   `json:"daily_avg"`
	AvgBudget     int                   `json:"avg_budget"`
	MaxBudget     int                   `json:"max_budget"`
	TopSources    []store.SourceCount   `json:"top_sources"`
	TopCategories []store.CategoryCount `json:"top_categories"`
	TrendPercent  int                   `json:"trend_percent"` // week over week
	CollectedAt   time.Time             `json:"collected_at"`
}

// Collect builds a MarketStats snapshot. category may be empty for the whole
// market.
func Collect(ctx context.Context, st store.Store, category model.Category) (*MarketStats, error) {
	now := time.Now().UTC()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	twoWeeksAgo := now.Add(-14 * 24 * time.Hour)

	stats := &MarketStats{Category: category, CollectedAt: now}

	weekly, err := st.CountListings(ctx, category, weekAgo, now)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: weekly count")
	}
	stats.WeeklyCount = weekly
	stats.DailyAvg = weekly / 7

	budget, err := st.BudgetStats(ctx, category, weekAgo)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: budget stats")
	}
	stats.AvgBudget = int(budget.Avg)
	stats.MaxBudget = budget.Max

	stats.TopSources, err = st.TopSources(ctx, "", weekAgo, 5)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: top sources")
	}
	stats.TopCategories, err = st.TopCategories(ctx, weekAgo, 5)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: top categories")
	}

	prevWeek, err := st.CountListings(ctx, category, twoWeeksAgo, weekAgo)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: previous week count")
	}
	// A dead previous week counts as one listing so a fresh deployment shows
	// growth instead of dividing by zero.
	if prevWeek == 0 {
		prevWeek = 1
	}
	stats.TrendPercent = (weekly - prevWeek) * 100 / prevWeek

	return stats, nil
}
