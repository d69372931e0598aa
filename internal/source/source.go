// Package source contains the marketplace adapters. Each adapter fetches raw
// listings from one external source and normalizes them into model.Listing.
// Source-specific parsing is fully encapsulated here: selector drift in one
// marketplace never ripples into the coordinator or the store.
package source

import (
	"context"

	"github.com/freelance-radar/radar/internal/config"
	"github.com/freelance-radar/radar/internal/model"
)

// Adapter is one marketplace scraper.
//
// Fetch returns whatever it successfully parsed; individual malformed items
// are skipped, and an empty result is a valid outcome (source down, no
// matches). A non-nil error means the whole fetch produced nothing; callers
// log it and move on — it never aborts a sweep.
//
// Close releases the adapter's network resources and must be safe to call
// regardless of fetch outcomes, and more than once.
type Adapter interface {
	Name() model.Source
	Fetch(ctx context.Context, category model.Category) ([]model.Listing, error)
	Close() error
}

// Enabled builds the adapter set for a sweep, honoring the disabled list.
// Each adapter gets its own session client; adapters are stateful about that
// resource and must not be shared across concurrent sweeps.
func Enabled(cfg config.SourcesConfig, maxPerFetch int) []Adapter {
	disabled := make(map[string]bool, len(cfg.Disabled))
	for _, d := range cfg.Disabled {
		disabled[d] = true
	}

	all := []Adapter{
		NewKwork(NewClient(cfg.UserAgent), maxPerFetch),
		NewFLRu(NewClient(cfg.UserAgent), maxPerFetch),
		NewFreelanceRu(NewClient(cfg.UserAgent), maxPerFetch),
		NewHH(NewClient(cfg.UserAgent), cfg.HHArea, maxPerFetch),
		NewHabr(),
	}

	adapters := make([]Adapter, 0, len(all))
	for _, a := range all {
		if !disabled[string(a.Name())] {
			adapters = append(adapters, a)
		}
	}
	return adapters
}
