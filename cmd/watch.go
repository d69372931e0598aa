package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/freelance-radar/radar/internal/monitoring"
)

var watchInterval int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sweep all marketplaces on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSweep(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		collector := monitoring.NewCollector()
		alerter := monitoring.NewAlerter(cfg.Monitoring)
		categories := sweepCategories()

		runSweep := func() {
			result, err := env.Coordinator.Sweep(ctx, categories)
			if err != nil {
				// Only overlap gets here; the previous sweep is still running.
				zap.L().Warn("scheduled sweep skipped", zap.Error(err))
				return
			}
			collector.Record(result)
			alerter.SendAlerts(ctx, alerter.Evaluate(collector.Snapshot()))
		}

		interval := watchInterval
		if interval == 0 {
			interval = cfg.Sweep.IntervalSecs
		}
		if interval <= 0 {
			interval = 60
		}

		c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
		if _, err := c.AddFunc(fmt.Sprintf("@every %ds", interval), runSweep); err != nil {
			return eris.Wrap(err, "schedule sweep")
		}

		// First sweep right away, then on the schedule.
		runSweep()
		c.Start()
		zap.L().Info("watch started", zap.Int("interval_secs", interval))

		<-ctx.Done()
		zap.L().Info("shutting down watch")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0, "seconds between sweeps (default from config)")
	rootCmd.AddCommand(watchCmd)
}
