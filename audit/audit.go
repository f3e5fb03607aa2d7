// Package audit provides a Lambda handler that runs the dangling-key scan
// on a schedule.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/tether/refs"
)

// Handler runs consistency scans against an integrity-aware database.
type Handler struct {
	db     *refs.Database
	opts   refs.ScanOptions
	logger *slog.Logger
}

// NewHandler creates a scan handler. A nil logger uses slog.Default.
func NewHandler(db *refs.Database, opts refs.ScanOptions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{db: db, opts: opts, logger: logger}
}

// HandleScheduledScan runs the dangling-key scan in response to a scheduled
// event. Findings are logged, not repaired; a store error fails the
// invocation so the schedule retries it. Designed to be used as an AWS
// Lambda handler.
func (h *Handler) HandleScheduledScan(ctx context.Context, event events.CloudWatchEvent) error {
	h.logger.Info("starting dangling-key scan",
		"source", event.Source,
		"time", event.Time,
	)

	findings := 0
	for finding, err := range h.db.DanglingKeys(ctx, h.opts) {
		if err != nil {
			return fmt.Errorf("dangling-key scan: %w", err)
		}
		findings++
		h.logger.Warn("dangling foreign key",
			"collection", finding.Collection,
			"path", finding.Path,
			"key", finding.Key,
			"target", finding.Target,
		)
	}

	h.logger.Info("dangling-key scan completed", "findings", findings)
	return nil
}
