package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/resto-radar/resto-radar/internal/analytics"
	jobmetrics "github.com/resto-radar/resto-radar/internal/jobs"
	"github.com/resto-radar/resto-radar/internal/settings"
)

// ReportSource is the slice of the analytics service the report needs.
type ReportSource interface {
	PeriodMetrics(ctx context.Context, dateFrom, dateTo time.Time, orgIDs []string, useCache bool) (analytics.PeriodMetrics, error)
	RollingAverage(ctx context.Context, days int) (float64, error)
}

// Sender delivers a finished report to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// DailyReportJob builds and delivers the scheduled daily report.
type DailyReportJob struct {
	Source   ReportSource
	Settings *settings.Store
	Sender   Sender
	ChatID   int64
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewDailyReportJob initialises the daily report handler.
func NewDailyReportJob(source ReportSource, store *settings.Store, sender Sender, chatID int64, logger *slog.Logger, metrics *jobmetrics.Metrics) *DailyReportJob {
	return &DailyReportJob{
		Source:   source,
		Settings: store,
		Sender:   sender,
		ChatID:   chatID,
		Logger:   logger,
		Metrics:  metrics,
		clock:    func() time.Time { return time.Now() },
	}
}

// Handle executes a daily report run. A failure to assemble the report
// is itself reported to the chat so the operator notices the gap.
func (j *DailyReportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("daily report: handler not configured")
	}
	var payload DailyReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeDailyReport)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("date", payload.Date))
	logger.Info("starting daily report")

	text, alerted, err := j.compose(ctx)
	if err != nil {
		resultErr = err
		logger.Error("daily report failed", slog.Any("error", err))
		notice := fmt.Sprintf("❌ Ошибка при формировании ежедневного отчёта: %v", err)
		if sendErr := j.Sender.Send(ctx, j.ChatID, notice); sendErr != nil {
			logger.Error("failure notice undeliverable", slog.Any("error", sendErr))
		}
		return resultErr
	}
	if alerted {
		j.metrics().AddAlert("revenue_drop")
	}

	if err := j.Sender.Send(ctx, j.ChatID, text); err != nil {
		resultErr = err
		logger.Error("daily report undeliverable", slog.Any("error", err))
		return resultErr
	}
	logger.Info("daily report sent", slog.Bool("alert", alerted))
	return resultErr
}

// compose renders the report text. The second return reports whether
// the revenue-drop alert fired.
func (j *DailyReportJob) compose(ctx context.Context) (string, bool, error) {
	now := j.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	today, err := j.Source.PeriodMetrics(ctx, midnight, now, nil, true)
	if err != nil {
		return "", false, err
	}
	snap := j.Settings.Snapshot()
	rollingAvg, err := j.Source.RollingAverage(ctx, snap.RollingDays)
	if err != nil {
		return "", false, err
	}

	date := now.Format("2006-01-02")
	if rollingAvg <= 0 {
		text := fmt.Sprintf("🟢 Ежедневный отчёт\n\n%s\nДата: %s\n\n🟢 Выручка: %s ₽\n🟢 Заказов: %s\n🟢 Средний чек: %s ₽",
			today.OrgName, date,
			formatAmount(today.Revenue),
			formatAmount(float64(today.Orders)),
			formatAmount(today.AverageCheck),
		)
		return text, false, nil
	}

	changePct := (today.Revenue - rollingAvg) / rollingAvg * 100
	alerted := changePct <= -float64(snap.AlertThresholdPct)
	emoji := "🟢"
	if alerted {
		emoji = "🔴"
	}

	text := fmt.Sprintf("%s Ежедневный отчёт\n\n%s\nДата: %s\n\n🟢 Выручка: %s ₽\n🟢 Заказов: %s\n🟢 Средний чек: %s ₽\n\nСредняя выручка за последние %d дней: %s ₽\nИзменение к среднему: %+.1f%%",
		emoji, today.OrgName, date,
		formatAmount(today.Revenue),
		formatAmount(float64(today.Orders)),
		formatAmount(today.AverageCheck),
		snap.RollingDays,
		formatAmount(rollingAvg),
		changePct,
	)
	if alerted {
		text = fmt.Sprintf("⚠️ АЛЕРТ: Падение выручки на %.1f%%\n\n%s", math.Abs(changePct), text)
	}
	return text, alerted, nil
}

func (j *DailyReportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeDailyReport))
	}
	return slog.Default().With(slog.String("job", TaskTypeDailyReport))
}

func (j *DailyReportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *DailyReportJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}

var reportPrinter = message.NewPrinter(language.Russian)

// formatAmount renders a figure with locale-aware grouping and no
// fraction, matching how the operators read revenue numbers.
func formatAmount(v float64) string {
	return reportPrinter.Sprint(number.Decimal(v, number.MaxFractionDigits(0)))
}
