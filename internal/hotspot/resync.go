package hotspot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type reloader interface {
	Reload(ctx context.Context) error
}

// Resync periodically reloads the Session so changes missed while the
// realtime feed was disconnected still reach the local list.
type Resync struct {
	cron    *cron.Cron
	target  reloader
	timeout time.Duration
	logger  *slog.Logger
}

// NewResync schedules target.Reload on spec, a standard cron expression or a
// descriptor such as "@every 5m". Overlapping runs are skipped.
func NewResync(spec string, target reloader, timeout time.Duration, logger *slog.Logger) (*Resync, error) {
	r := &Resync{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target:  target,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, fmt.Errorf("invalid RESYNC_SCHEDULE %q: %w", spec, err)
	}
	return r, nil
}

func (r *Resync) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	if err := r.target.Reload(ctx); err != nil {
		r.logger.Warn("scheduled resync failed", "error", err)
		return
	}
	r.logger.Debug("scheduled resync complete", "duration", time.Since(start))
}

// Start runs the schedule in the background.
func (r *Resync) Start() { r.cron.Start() }

// Stop halts the schedule and waits for a running reload to finish or ctx to
// expire.
func (r *Resync) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
