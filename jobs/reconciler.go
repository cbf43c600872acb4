// Package jobs provides scheduled background tasks for the engine. The only
// job today is the reconciliation sweep, a safety net for assignment events
// that were lost before reaching the bus.
package jobs

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/deliverytrack/engine/core/engine"
	"github.com/deliverytrack/engine/core/logger"
)

// Config controls the reconciliation sweep. Disabled by default: the sweep
// duplicates what the event-driven path already does and only matters when
// events can be lost upstream of the broker.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

// SetDefaults fills zero values with sane defaults.
func (c *Config) SetDefaults() {
	if c.Schedule == "" {
		c.Schedule = "@every 1m"
	}
}

// ReconcilerJob periodically matches the oldest pending delivery with an
// available courier through the same guarded path the assignment engine uses,
// so a sweep and a live event can never both win the same delivery.
type ReconcilerJob struct {
	assign *engine.AssignmentEngine
	cron   *cron.Cron
	log    logger.Logger
}

// NewReconcilerJob creates the sweep around the assignment engine.
func NewReconcilerJob(assign *engine.AssignmentEngine, log logger.Logger) *ReconcilerJob {
	return &ReconcilerJob{
		assign: assign,
		cron:   cron.New(),
		log:    log,
	}
}

// Start schedules the sweep. The schedule accepts cron expressions and the
// @every descriptors of robfig/cron.
func (j *ReconcilerJob) Start(schedule string) error {
	_, err := j.cron.AddFunc(schedule, j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	j.log.Infof("reconciliation sweep started (schedule %s)", schedule)
	return nil
}

// Stop stops the cron scheduler. Running sweeps finish on their own.
func (j *ReconcilerJob) Stop() {
	j.cron.Stop()
	j.log.Infof("reconciliation sweep stopped")
}

func (j *ReconcilerJob) sweep() {
	if err := j.assign.Sweep(context.Background()); err != nil {
		j.log.Errorf("sweep: %v", err)
	}
}
