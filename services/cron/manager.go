package cron

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CronManager manages all scheduled background jobs
type CronManager struct {
	cron *cron.Cron
	db   *gorm.DB
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron: c,
		db:   db,
	}
}

// Start registers all jobs and starts the scheduler
func (m *CronManager) Start() error {
	log.Info().Msg("starting cron jobs")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Info().Msg("cron jobs started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (m *CronManager) Stop() {
	log.Info().Msg("stopping cron jobs")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("cron jobs stopped")
}

// registerJobs registers all jobs with their schedules
func (m *CronManager) registerJobs() error {
	// Every 5 minutes: finalize enrollments whose payment already settled
	_, err := m.cron.AddFunc("0 */5 * * * *", func() {
		log.Info().Str("job", "repair_pending_enrollments").Msg("cron job starting")
		m.RepairPendingEnrollments()
	})
	if err != nil {
		return err
	}

	// Every hour: expire payments that never settled
	_, err = m.cron.AddFunc("0 0 * * * *", func() {
		log.Info().Str("job", "expire_stale_payments").Msg("cron job starting")
		m.ExpireStalePayments()
	})
	if err != nil {
		return err
	}

	return nil
}
