package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/freelance-radar/radar/internal/model"
	"github.com/freelance-radar/radar/internal/scoring"
	"github.com/freelance-radar/radar/internal/store"
)

// Deliverer sends one rendered alert to an opaque address. Implementations
// own the transport (bot API, webhook, whatever); the dispatcher only cares
// whether delivery succeeded.
type Deliverer interface {
	Deliver(ctx context.Context, address, payload string) error
}

// Dispatcher matches a new listing against subscribers and delivers alerts.
type Dispatcher struct {
	store     store.Store
	deliverer Deliverer
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(st store.Store, d Deliverer) *Dispatcher {
	return &Dispatcher{store: st, deliverer: d}
}

// Offer evaluates one listing for every active subscriber of its category and
// delivers alerts where the prioritizer says notify. A listing is delivered
// to a user at most once, ever: the sent ledger is checked before delivery
// and written only after the deliverer succeeds, so failed sends retry on a
// later offer. Returns the number of alerts delivered.
func (d *Dispatcher) Offer(ctx context.Context, l model.Listing) int {
	users, err := d.store.ActiveUsersForCategory(ctx, l.Category)
	if err != nil {
		zap.L().Warn("ingest: user lookup failed",
			zap.String("listing", l.Key()),
			zap.Error(err),
		)
		return 0
	}

	risk := model.ScoreResult{
		RiskScore: l.RiskScore,
		RiskLevel: scoring.LevelFor(l.RiskScore),
		Warnings:  l.RiskFlags,
	}
	now := time.Now().UTC()

	delivered := 0
	for _, u := range users {
		decision := scoring.Prioritize(l, u, risk, now)
		if !decision.Notify {
			continue
		}

		sent, err := d.store.IsDelivered(ctx, u.ID, l.ID)
		if err != nil {
			zap.L().Warn("ingest: delivery check failed",
				zap.Int64("user_id", u.ID),
				zap.String("listing", l.Key()),
				zap.Error(err),
			)
			continue
		}
		if sent {
			continue
		}

		payload := FormatAlert(l, decision)
		if err := d.deliverer.Deliver(ctx, u.Address, payload); err != nil {
			zap.L().Warn("ingest: delivery failed",
				zap.Int64("user_id", u.ID),
				zap.String("listing", l.Key()),
				zap.Error(err),
			)
			continue
		}

		if err := d.store.MarkDelivered(ctx, u.ID, l.ID); err != nil {
			zap.L().Warn("ingest: mark delivered failed",
				zap.Int64("user_id", u.ID),
				zap.String("listing", l.Key()),
				zap.Error(err),
			)
		}
		delivered++

		zap.L().Debug("ingest: alert delivered",
			zap.Int64("user_id", u.ID),
			zap.String("listing", l.Key()),
			zap.String("tier", string(decision.Tier)),
		)
	}
	return delivered
}
