package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/freelance-radar/radar/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSourceDead AlertType = "source_dead"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates collected source health against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client

	// alerted remembers sources already reported dead, so a long outage
	// produces one alert, not one per sweep.
	alerted map[string]bool
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	if cfg.DeadSourceSweeps <= 0 {
		cfg.DeadSourceSweeps = 3
	}
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		alerted: make(map[string]bool),
	}
}

// Evaluate checks source health and returns alerts for sources that failed
// every fetch in at least DeadSourceSweeps consecutive sweeps. A recovered
// source re-arms its alert.
func (a *Alerter) Evaluate(health []SourceHealth) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, h := range health {
		name := string(h.Source)
		if h.ConsecutiveDead < a.cfg.DeadSourceSweeps {
			a.alerted[name] = false
			continue
		}
		if a.alerted[name] {
			continue
		}
		a.alerted[name] = true
		alerts = append(alerts, Alert{
			Type:     AlertSourceDead,
			Severity: "high",
			Message: fmt.Sprintf(
				"source %s produced only errors in %d consecutive sweeps",
				name, h.ConsecutiveDead,
			),
			Details: map[string]any{
				"source":           name,
				"consecutive_dead": h.ConsecutiveDead,
				"failed_fetches":   h.FailedFetches,
			},
			Timestamp: now,
		})
	}
	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
