package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/freelance-radar/radar/internal/ingest"
	"github.com/freelance-radar/radar/internal/model"
	"github.com/freelance-radar/radar/internal/scoring"
	"github.com/freelance-radar/radar/internal/source"
	"github.com/freelance-radar/radar/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "radar.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// sweepEnv holds the store and coordinator needed by the sweep/watch/serve
// commands.
type sweepEnv struct {
	Store       store.Store
	Coordinator *ingest.Coordinator
	Rules       *scoring.RuleSet // nil means the built-in risk table
}

// Close releases resources held by the sweep environment.
func (se *sweepEnv) Close() {
	if se.Store != nil {
		_ = se.Store.Close()
	}
}

// initSweep sets up the store, the scoring rules, the marketplace adapters,
// and the coordinator. Callers should defer env.Close().
func initSweep(ctx context.Context) (*sweepEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var rules *scoring.RuleSet
	if cfg.Scoring.RulesFile != "" {
		rules, err = scoring.LoadRules(cfg.Scoring.RulesFile)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load scoring rules")
		}
		zap.L().Info("scoring rules loaded", zap.String("file", cfg.Scoring.RulesFile))
	}

	var dispatcher *ingest.Dispatcher
	if cfg.Delivery.WebhookURL != "" {
		dispatcher = ingest.NewDispatcher(st, newWebhookDeliverer(cfg.Delivery.WebhookURL))
		zap.L().Info("alert delivery enabled", zap.String("webhook", cfg.Delivery.WebhookURL))
	} else {
		zap.L().Debug("RADAR_DELIVERY_WEBHOOK_URL not set, alerts disabled")
	}

	adapters := source.Enabled(cfg.Sources, cfg.Sweep.MaxPerFetch)
	timeout := time.Duration(cfg.Sweep.AdapterTimeoutSecs) * time.Second
	coordinator := ingest.NewCoordinator(st, adapters, dispatcher, rules, timeout)

	zap.L().Info("sweep environment ready",
		zap.Int("adapters", len(adapters)),
		zap.String("driver", cfg.Store.Driver),
	)

	return &sweepEnv{Store: st, Coordinator: coordinator, Rules: rules}, nil
}

// sweepCategories resolves the configured category list, dropping anything
// unknown. An empty result falls back to the coordinator's defaults.
func sweepCategories() []model.Category {
	out := make([]model.Category, 0, len(cfg.Sweep.Categories))
	for _, c := range cfg.Sweep.Categories {
		cat := model.Category(c)
		if !model.ValidCategory(cat) {
			zap.L().Warn("ignoring unknown category", zap.String("category", c))
			continue
		}
		out = append(out, cat)
	}
	return out
}
