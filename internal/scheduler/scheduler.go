// Package scheduler runs periodic maintenance with gocron v2.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// TokenCleaner deletes expired login codes and reports how many went.
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// HourlyCleanup fires at the top of every hour.
const HourlyCleanup = "0 * * * *"

type Manager struct {
	scheduler gocron.Scheduler
	log       *slog.Logger
	cleanup   gocron.JobDefinition
}

func New(loc *time.Location, log *slog.Logger) (*Manager, error) {
	if loc == nil {
		loc = time.Local
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	return &Manager{
		scheduler: s,
		log:       log.With("component", "scheduler"),
		cleanup:   gocron.CronJob(HourlyCleanup, false),
	}, nil
}

// RegisterTokenCleanup schedules the expired-token sweep. Runs never
// overlap; a run that is still busy pushes the next one back.
func (m *Manager) RegisterTokenCleanup(c TokenCleaner) error {
	_, err := m.scheduler.NewJob(
		m.cleanup,
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			m.runCleanup(ctx, c)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("auth", "tokens"),
		gocron.WithName("token-cleanup"),
	)
	if err != nil {
		return err
	}
	m.log.Info("registered token cleanup")
	return nil
}

func (m *Manager) runCleanup(ctx context.Context, c TokenCleaner) {
	start := time.Now()
	n, err := c.CleanupExpiredTokens(ctx)
	if err != nil {
		m.log.Error("token cleanup failed", "error", err, "duration", time.Since(start))
		return
	}
	m.log.Debug("token cleanup finished", "deleted", n, "duration", time.Since(start))
}

func (m *Manager) Start() { m.scheduler.Start() }

func (m *Manager) Shutdown() error { return m.scheduler.Shutdown() }

// Jobs returns the names of registered jobs.
func (m *Manager) Jobs() []string {
	var out []string
	for _, j := range m.scheduler.Jobs() {
		out = append(out, j.Name())
	}
	return out
}
