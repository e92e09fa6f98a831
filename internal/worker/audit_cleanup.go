package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/hms-api/pkg/logger"
	"github.com/jwalitptl/hms-api/pkg/metrics"
)

// AuditPurger removes audit entries created before a cutoff.
type AuditPurger interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

type AuditCleanupWorker struct {
	purger          AuditPurger
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewAuditCleanupWorker(purger AuditPurger, retentionDays int, cleanupInterval time.Duration, l *logger.Logger, m *metrics.Metrics) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		purger:          purger,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          l.WithFields(map[string]interface{}{"worker": "audit_cleanup"}),
		metrics:         m,
		now:             time.Now,
	}
}

// Start runs one pass immediately and then one per interval until ctx ends.
func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	w.logger.Info("audit cleanup worker started", "retention_days", w.retentionDays, "interval", w.cleanupInterval.String())
	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error(err, "audit cleanup failed")
		}
		select {
		case <-ctx.Done():
			w.logger.Info("audit cleanup worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce deletes entries older than the retention window and returns how
// many were removed.
func (w *AuditCleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().UTC().AddDate(0, 0, -w.retentionDays)

	rows, err := w.purger.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	w.metrics.ObservePurge(rows)
	w.logger.Info("cleaned up audit logs", "rows", rows, "cutoff", cutoff.Format(time.RFC3339))
	return rows, nil
}
