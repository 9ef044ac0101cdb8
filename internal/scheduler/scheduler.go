// Package scheduler triggers the daily report once per day at the
// configured time. A plain polling loop is used instead of cron because
// the report time is mutable at runtime through the bot settings menu.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/resto-radar/resto-radar/internal/settings"
	"github.com/resto-radar/resto-radar/jobs"
)

const pollInterval = time.Minute

// Enqueuer hands a daily report run to the task queue.
type Enqueuer interface {
	EnqueueDailyReport(ctx context.Context, payload jobs.DailyReportPayload) (*asynq.TaskInfo, error)
}

// Scheduler polls the clock and fires the daily report at most once per
// calendar day.
type Scheduler struct {
	enqueuer Enqueuer
	settings *settings.Store
	logger   *slog.Logger
	location *time.Location
	clock    func() time.Time

	lastSent string
}

// New constructs a Scheduler. Times are evaluated in loc; a nil loc
// falls back to the system zone.
func New(enqueuer Enqueuer, store *settings.Store, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		enqueuer: enqueuer,
		settings: store,
		logger:   logger.With(slog.String("component", "scheduler")),
		location: loc,
		clock:    func() time.Time { return time.Now() },
	}
}

// Run polls until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	s.logger.Info("report scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("report scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires the report when the configured time has passed and no
// report went out today. An enqueue failure leaves lastSent untouched
// so the next tick retries.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock().In(s.location)
	today := now.Format("2006-01-02")
	if s.lastSent == today {
		return
	}

	snap := s.settings.Snapshot()
	due, err := dueMinutes(snap.ReportTime)
	if err != nil {
		s.logger.Warn("unparseable report time", slog.String("report_time", snap.ReportTime))
		return
	}
	if now.Hour()*60+now.Minute() < due {
		return
	}

	if _, err := s.enqueuer.EnqueueDailyReport(ctx, jobs.DailyReportPayload{Date: today}); err != nil {
		s.logger.Error("daily report enqueue failed", slog.Any("error", err))
		return
	}
	s.lastSent = today
	s.logger.Info("daily report enqueued", slog.String("date", today), slog.String("report_time", snap.ReportTime))
}

func dueMinutes(reportTime string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(reportTime, "%d:%d", &hour, &minute); err != nil {
		return 0, err
	}
	return hour*60 + minute, nil
}
