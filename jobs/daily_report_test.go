package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/resto-radar/resto-radar/internal/analytics"
	jobmetrics "github.com/resto-radar/resto-radar/internal/jobs"
	"github.com/resto-radar/resto-radar/internal/settings"
)

type stubSource struct {
	metrics    analytics.PeriodMetrics
	metricsErr error
	rolling    float64
}

func (s *stubSource) PeriodMetrics(ctx context.Context, dateFrom, dateTo time.Time, orgIDs []string, useCache bool) (analytics.PeriodMetrics, error) {
	return s.metrics, s.metricsErr
}

func (s *stubSource) RollingAverage(ctx context.Context, days int) (float64, error) {
	return s.rolling, nil
}

type stubSender struct {
	chatID int64
	texts  []string
	err    error
}

func (s *stubSender) Send(ctx context.Context, chatID int64, text string) error {
	s.chatID = chatID
	s.texts = append(s.texts, text)
	return s.err
}

func newDailyReportJob(source *stubSource, sender *stubSender, store *settings.Store) *DailyReportJob {
	job := NewDailyReportJob(source, store, sender, 42,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		jobmetrics.NewMetrics(prometheus.NewRegistry()),
	)
	job.clock = func() time.Time { return time.Date(2026, 8, 20, 23, 0, 0, 0, time.UTC) }
	return job
}

func TestDailyReportAlertsOnRevenueDrop(t *testing.T) {
	source := &stubSource{
		metrics: analytics.PeriodMetrics{OrgName: "Кафе", Revenue: 50000, Orders: 100, AverageCheck: 500},
		rolling: 100000,
	}
	sender := &stubSender{}
	job := newDailyReportJob(source, sender, settings.NewStore(15, 7, "23:00"))

	task, err := NewDailyReportTask(DailyReportPayload{Date: "2026-08-20"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.chatID != 42 {
		t.Fatalf("report must go to the admin chat, got %d", sender.chatID)
	}
	if len(sender.texts) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.texts))
	}
	text := sender.texts[0]
	if !strings.HasPrefix(text, "⚠️ АЛЕРТ: Падение выручки на 50.0%") {
		t.Fatalf("expected alert prefix, got %q", text)
	}
	if !strings.Contains(text, "🔴 Ежедневный отчёт") {
		t.Fatalf("expected red status marker, got %q", text)
	}
	if !strings.Contains(text, "Дата: 2026-08-20") {
		t.Fatalf("expected report date, got %q", text)
	}
}

func TestDailyReportNoAlertWithinThreshold(t *testing.T) {
	source := &stubSource{
		metrics: analytics.PeriodMetrics{OrgName: "Кафе", Revenue: 95000, Orders: 100, AverageCheck: 950},
		rolling: 100000,
	}
	sender := &stubSender{}
	job := newDailyReportJob(source, sender, settings.NewStore(15, 7, "23:00"))

	task, _ := NewDailyReportTask(DailyReportPayload{Date: "2026-08-20"})
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := sender.texts[0]
	if strings.Contains(text, "АЛЕРТ") {
		t.Fatalf("-5%% is within a 15%% threshold, got %q", text)
	}
	if !strings.HasPrefix(text, "🟢 Ежедневный отчёт") {
		t.Fatalf("expected green status marker, got %q", text)
	}
	if !strings.Contains(text, "Изменение к среднему: -5.0%") {
		t.Fatalf("expected change line, got %q", text)
	}
}

func TestDailyReportWithoutBaselineSkipsComparison(t *testing.T) {
	source := &stubSource{
		metrics: analytics.PeriodMetrics{OrgName: "Кафе", Revenue: 1000, Orders: 2, AverageCheck: 500},
		rolling: 0,
	}
	sender := &stubSender{}
	job := newDailyReportJob(source, sender, settings.NewStore(15, 7, "23:00"))

	task, _ := NewDailyReportTask(DailyReportPayload{Date: "2026-08-20"})
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := sender.texts[0]
	if strings.Contains(text, "Изменение к среднему") {
		t.Fatalf("no baseline means no comparison block, got %q", text)
	}
}

func TestDailyReportFailureNotifiesChat(t *testing.T) {
	source := &stubSource{metricsErr: errors.New("api down")}
	sender := &stubSender{}
	job := newDailyReportJob(source, sender, settings.NewStore(15, 7, "23:00"))

	task, _ := NewDailyReportTask(DailyReportPayload{Date: "2026-08-20"})
	if err := job.Handle(context.Background(), task); err == nil {
		t.Fatal("expected the assembly error to surface for retry")
	}
	if len(sender.texts) != 1 || !strings.Contains(sender.texts[0], "Ошибка при формировании") {
		t.Fatalf("operator must be notified of the failure, got %v", sender.texts)
	}
}
