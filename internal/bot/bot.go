// Package bot implements the Telegram presentation layer: a long-poll
// update loop, inline-keyboard navigation and the report views.
package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/resto-radar/resto-radar/internal/analytics"
	"github.com/resto-radar/resto-radar/internal/pos"
	"github.com/resto-radar/resto-radar/internal/settings"
)

// Analytics is the slice of the analytics service the bot consumes.
type Analytics interface {
	Organizations(ctx context.Context) []pos.Row
	Terminals(ctx context.Context) []pos.Row
	PeriodMetrics(ctx context.Context, dateFrom, dateTo time.Time, orgIDs []string, useCache bool) (analytics.PeriodMetrics, error)
	DetailedFoodcost(ctx context.Context, dateFrom, dateTo time.Time, orgIDs []string, useCache bool) (analytics.Breakdown, error)
	ComparePeriods(ctx context.Context, curFrom, curTo, prevFrom, prevTo time.Time, orgIDs []string) (analytics.Comparison, error)
	CompareWithYesterday(ctx context.Context, today analytics.PeriodMetrics, orgIDs []string) (*float64, error)
	ClearCache(ctx context.Context) error
}

// telegramAPI is the subset of tgbotapi.BotAPI the bot calls, split out
// so handler tests can run against a recorder.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot wires the Telegram transport to the analytics service.
type Bot struct {
	api         telegramAPI
	service     Analytics
	settings    *settings.Store
	adminChatID int64
	logger      *slog.Logger
	location    *time.Location
	clock       func() time.Time
}

// New constructs the bot around an authorized API client.
func New(api *tgbotapi.BotAPI, service Analytics, store *settings.Store, adminChatID int64, loc *time.Location, logger *slog.Logger) *Bot {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:         api,
		service:     service,
		settings:    store,
		adminChatID: adminChatID,
		logger:      logger.With(slog.String("component", "bot")),
		location:    loc,
		clock:       func() time.Time { return time.Now() },
	}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("bot started", slog.Int64("admin_chat", b.adminChatID))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopped")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// Send delivers a plain text message; it also serves the daily report
// job as its delivery channel.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// authorized restricts the bot to the single admin chat. Anything else
// is logged and dropped.
func (b *Bot) authorized(chatID int64) bool {
	if chatID == b.adminChatID {
		return true
	}
	b.logger.Warn("update from unauthorized chat", slog.Int64("chat", chatID))
	return false
}

func (b *Bot) now() time.Time {
	return b.clock().In(b.location)
}
