package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aretw0/sessiondb/pkg/domain"
)

// Compact rewrites the datafile, reclaiming the space left by deleted documents.
func (c *Collection) Compact(ctx context.Context) error {
	if c.db == nil {
		return domain.ErrNotLoaded
	}
	start := time.Now()
	if _, err := c.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("failed to compact datafile: %w", err)
	}
	c.logger.Debug("Compacted datafile", "filename", c.cfg.Filename, "duration", time.Since(start))
	return nil
}

// SetAutocompactionInterval (re)schedules background compaction.
// cron schedules run with one second granularity.
func (c *Collection) SetAutocompactionInterval(interval time.Duration) {
	c.StopAutocompaction()
	if interval <= 0 {
		return
	}

	c.cronMu.Lock()
	defer c.cronMu.Unlock()

	sched := cron.New()
	sched.Schedule(cron.Every(interval), cron.FuncJob(func() {
		if err := c.Compact(context.Background()); err != nil {
			c.logger.Warn("Auto-compaction failed", "filename", c.cfg.Filename, "err", err)
		}
	}))
	sched.Start()

	c.cron = sched
	c.interval = interval
}

// StopAutocompaction cancels background compaction and waits for a running one.
func (c *Collection) StopAutocompaction() {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()

	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
	c.cron = nil
	c.interval = 0
}

// AutocompactionInterval reports the active schedule, zero when none.
func (c *Collection) AutocompactionInterval() time.Duration {
	c.cronMu.Lock()
	defer c.cronMu.Unlock()
	return c.interval
}
