package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/resto-radar/resto-radar/internal/settings"
	"github.com/resto-radar/resto-radar/jobs"
)

type stubEnqueuer struct {
	payloads []jobs.DailyReportPayload
	err      error
}

func (s *stubEnqueuer) EnqueueDailyReport(ctx context.Context, payload jobs.DailyReportPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.payloads = append(s.payloads, payload)
	return &asynq.TaskInfo{}, nil
}

func newTestScheduler(enq Enqueuer, store *settings.Store) *Scheduler {
	return New(enq, store, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTickFiresOncePerDay(t *testing.T) {
	enq := &stubEnqueuer{}
	s := newTestScheduler(enq, settings.NewStore(15, 7, "23:00"))

	now := time.Date(2026, 8, 20, 22, 59, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }
	s.tick(context.Background())
	if len(enq.payloads) != 0 {
		t.Fatal("must not fire before the report time")
	}

	now = time.Date(2026, 8, 20, 23, 0, 0, 0, time.UTC)
	s.tick(context.Background())
	if len(enq.payloads) != 1 {
		t.Fatalf("expected one report at the due minute, got %d", len(enq.payloads))
	}
	if enq.payloads[0].Date != "2026-08-20" {
		t.Fatalf("unexpected payload date %q", enq.payloads[0].Date)
	}

	for m := 1; m <= 59; m++ {
		now = time.Date(2026, 8, 20, 23, m, 0, 0, time.UTC)
		s.tick(context.Background())
	}
	if len(enq.payloads) != 1 {
		t.Fatalf("same day must not fire twice, got %d", len(enq.payloads))
	}

	now = time.Date(2026, 8, 21, 23, 0, 0, 0, time.UTC)
	s.tick(context.Background())
	if len(enq.payloads) != 2 {
		t.Fatalf("next day must fire again, got %d", len(enq.payloads))
	}
}

func TestTickRetriesAfterEnqueueFailure(t *testing.T) {
	enq := &stubEnqueuer{err: errors.New("redis down")}
	s := newTestScheduler(enq, settings.NewStore(15, 7, "23:00"))
	s.clock = func() time.Time { return time.Date(2026, 8, 20, 23, 5, 0, 0, time.UTC) }

	s.tick(context.Background())
	if s.lastSent != "" {
		t.Fatal("a failed enqueue must not mark the day as sent")
	}

	enq.err = nil
	s.tick(context.Background())
	if len(enq.payloads) != 1 {
		t.Fatalf("expected retry to succeed, got %d", len(enq.payloads))
	}
}

func TestTickHonorsShiftedReportTime(t *testing.T) {
	enq := &stubEnqueuer{}
	store := settings.NewStore(15, 7, "23:00")
	s := newTestScheduler(enq, store)
	s.clock = func() time.Time { return time.Date(2026, 8, 20, 22, 35, 0, 0, time.UTC) }

	s.tick(context.Background())
	if len(enq.payloads) != 0 {
		t.Fatal("22:35 is before 23:00")
	}

	store.ShiftReportTime(-30)
	s.tick(context.Background())
	if len(enq.payloads) != 1 {
		t.Fatalf("22:35 is past the shifted 22:30, got %d", len(enq.payloads))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestScheduler(&stubEnqueuer{}, settings.NewStore(15, 7, "23:00"))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
