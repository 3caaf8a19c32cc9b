// Package scheduler runs the periodic maintenance jobs that sit alongside
// spec.md §5's hand-rolled, event-driven core scheduler: a staleness
// sweep that re-probes any device whose ALDB hasn't been confirmed loaded,
// and periodic expiry of per-step sequence timeouts (spec.md §5,
// "expiring triggers/timeouts"). Grounded on the teacher's
// internal/scheduler/manager.go (a package-level *cron.Cron, with
// AddScheduleEvent/RemoveScheduleEvent keyed by job name), ported from the
// teacher's gopkg.in/robfig/cron.v2 to the pack's more widely used
// github.com/robfig/cron/v3.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/insteonplm/meshd/internal/common"
	"github.com/insteonplm/meshd/internal/fleet"
	"github.com/insteonplm/meshd/pkg/insteon/commands"
)

// Manager owns the cron runner and the two periodic jobs it schedules.
type Manager struct {
	cr *cron.Cron
	fl *fleet.Fleet

	interval time.Duration
}

// New builds a Manager bound to fl, using cfg's scheduler settings for
// the job interval.
func New(cfg *common.Config, fl *fleet.Fleet) *Manager {
	seconds := cfg.Scheduler.StalenessSweepSeconds
	if seconds <= 0 {
		seconds = 60
	}
	return &Manager{
		cr:       cron.New(),
		fl:       fl,
		interval: time.Duration(seconds) * time.Second,
	}
}

// Start schedules the staleness sweep and the trigger-timeout sweep, then
// starts the cron runner.
func (m *Manager) Start() error {
	spec := "@every " + m.interval.String()
	if _, err := m.cr.AddFunc(spec, m.sweepStaleness); err != nil {
		return err
	}
	if _, err := m.cr.AddFunc(spec, m.sweepTimeouts); err != nil {
		return err
	}
	m.cr.Start()
	common.Logger.Info("scheduler: started", "interval", m.interval)
	return nil
}

// Stop halts the cron runner, waiting for any in-flight job to finish.
func (m *Manager) Stop() {
	ctx := m.cr.Stop()
	<-ctx.Done()
	common.Logger.Info("scheduler: stopped")
}

// sweepStaleness re-issues a StatusRequest for every device whose ALDB
// mirror has never been confirmed loaded, the periodic counterpart to the
// event-driven delta check in the dispatcher's direct-ack path.
func (m *Manager) sweepStaleness() {
	for _, d := range m.fl.All() {
		if d.ALDB.Loaded() {
			continue
		}
		addr := d.Addr.String()
		commands.GetStatus(d, m.fl.Disp,
			func() {
				if err := m.fl.Persist(d); err != nil {
					common.Logger.Error("scheduler: persist after staleness sweep failed", "device", addr, "err", err)
				}
			},
			func(err error) {
				common.Logger.Warn("scheduler: staleness probe failed", "device", addr, "err", err)
			},
		)
	}
}

// sweepTimeouts advances the wall clock for every device's pending
// sequence-step triggers, firing any that have outlived their deadline.
func (m *Manager) sweepTimeouts() {
	m.fl.Disp.Triggers.ExpireBefore(time.Now())
}
