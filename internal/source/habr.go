package source

import (
	"context"

	"go.uber.org/zap"

	"github.com/freelance-radar/radar/internal/model"
)

// Habr is a placeholder for freelance.habr.com, which shut down (the site
// answers 410 Gone). The adapter stays registered so the source enum and
// historical listings keep a live owner; it always returns an empty batch.
type Habr struct{}

// NewHabr creates the habr adapter stub.
func NewHabr() *Habr { return &Habr{} }

func (h *Habr) Name() model.Source { return model.SourceHabr }

func (h *Habr) Close() error { return nil }

func (h *Habr) Fetch(ctx context.Context, category model.Category) ([]model.Listing, error) {
	zap.L().Debug("habr: source is closed upstream, skipping")
	return nil, nil
}
