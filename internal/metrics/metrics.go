package metrics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks sweep statistics across invocations of this process.
type Metrics struct {
	SweepRuns      atomic.Int64
	SweepFailures  atomic.Int64
	Candidates     atomic.Int64
	SendsAttempted atomic.Int64
	EmailsSent     atomic.Int64
	SendErrors     atomic.Int64
	SkippedNoEmail atomic.Int64
	StoreErrors    atomic.Int64

	TotalSweepTimeMs atomic.Int64
	StartTime        time.Time
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// LogPeriodically logs metrics at regular intervals until ctx is done.
func LogPeriodically(ctx context.Context, m *Metrics, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Log final metrics before shutdown
			LogReport(m, log)
			return
		case <-ticker.C:
			LogReport(m, log)
		}
	}
}

// LogReport outputs current metrics to the log
func LogReport(m *Metrics, log *slog.Logger) {
	runs := m.SweepRuns.Load()

	avgSweepMs := float64(0)
	if runs > 0 {
		avgSweepMs = float64(m.TotalSweepTimeMs.Load()) / float64(runs)
	}

	log.Info("metrics report",
		"uptime", time.Since(m.StartTime).Round(time.Second).String(),
		"sweep_runs", runs,
		"sweep_failures", m.SweepFailures.Load(),
		"candidates", m.Candidates.Load(),
		"sends_attempted", m.SendsAttempted.Load(),
		"emails_sent", m.EmailsSent.Load(),
		"send_errors", m.SendErrors.Load(),
		"skipped_no_email", m.SkippedNoEmail.Load(),
		"store_errors", m.StoreErrors.Load(),
		"avg_sweep_ms", avgSweepMs,
	)
}
