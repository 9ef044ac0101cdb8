package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/resto-radar/resto-radar/internal/analytics"
)

const menuPrompt = "Выберите период для просмотра аналитики:"

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		if !b.authorized(update.Message.Chat.ID) {
			return
		}
		b.handleMessage(update.Message)
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message == nil || !b.authorized(update.CallbackQuery.Message.Chat.ID) {
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	text := menuPrompt
	if !msg.IsCommand() || msg.Command() != "start" {
		text = "Используйте кнопки для навигации:"
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyMarkup = mainMenu()
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error("send failed", slog.Any("error", err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	switch {
	case data == "refresh":
		b.handleRefresh(ctx, cb)
	case data == "back":
		b.answer(cb, "")
		b.edit(cb, menuPrompt, mainMenu())
	case data == "settings":
		b.answer(cb, "")
		b.edit(cb, settingsText(b.settings.Snapshot()), settingsMenu())
	case strings.HasPrefix(data, "setting:"):
		b.handleSettingMutation(cb)
	case strings.HasPrefix(data, "period:"):
		b.handlePeriod(ctx, cb)
	case strings.HasPrefix(data, "foodcost:"):
		b.handleFoodcost(ctx, cb)
	case strings.HasPrefix(data, "terminals:"):
		b.handleTerminals(ctx, cb)
	case strings.HasPrefix(data, "orgs:"):
		b.handleOrgs(ctx, cb)
	default:
		b.answer(cb, "")
	}
}

func (b *Bot) handleRefresh(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	b.answer(cb, "Обновление данных...")
	if err := b.service.ClearCache(ctx); err != nil {
		b.logger.Error("cache clear failed", slog.Any("error", err))
	} else {
		b.logger.Info("cache cleared for refresh")
	}
	b.edit(cb, menuPrompt, mainMenu())
}

func (b *Bot) handleSettingMutation(cb *tgbotapi.CallbackQuery) {
	parts := strings.Split(cb.Data, ":")
	if len(parts) != 3 {
		b.answer(cb, "")
		return
	}
	delta, err := strconv.Atoi(parts[2])
	if err != nil {
		b.answer(cb, "")
		return
	}
	switch parts[1] {
	case "threshold":
		b.answer(cb, fmt.Sprintf("Порог алерта: %d%%", b.settings.AdjustThreshold(delta)))
	case "rolling":
		b.answer(cb, fmt.Sprintf("Rolling days: %d", b.settings.AdjustRollingDays(delta)))
	case "time":
		b.answer(cb, fmt.Sprintf("Время отчёта: %s", b.settings.ShiftReportTime(delta)))
	default:
		b.answer(cb, "")
		return
	}
	b.edit(cb, settingsText(b.settings.Snapshot()), settingsMenu())
}

// periodRange resolves a period key against the current clock.
type periodRange struct {
	from, to time.Time
	label    string
}

func (b *Bot) resolvePeriod(key string) (periodRange, bool) {
	now := b.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch key {
	case "today":
		return periodRange{from: midnight, to: now, label: midnight.Format("2006-01-02")}, true
	case "yesterday":
		from := midnight.AddDate(0, 0, -1)
		to := from.Add(24*time.Hour - time.Second)
		return periodRange{from: from, to: to, label: from.Format("2006-01-02")}, true
	case "week":
		from := now.AddDate(0, 0, -7)
		return periodRange{from: from, to: now, label: rangeLabel(from, now)}, true
	case "month":
		from := now.AddDate(0, 0, -30)
		return periodRange{from: from, to: now, label: rangeLabel(from, now)}, true
	}
	return periodRange{}, false
}

func rangeLabel(from, to time.Time) string {
	return from.Format("2006-01-02") + " - " + to.Format("2006-01-02")
}

func (b *Bot) handlePeriod(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	key := strings.TrimPrefix(cb.Data, "period:")
	pr, ok := b.resolvePeriod(key)
	if !ok {
		b.alert(cb, "Неизвестный период")
		return
	}
	b.answer(cb, "Загрузка данных...")

	metrics, err := b.service.PeriodMetrics(ctx, pr.from, pr.to, nil, true)
	if err != nil {
		b.logger.Error("period metrics failed", slog.String("period", key), slog.Any("error", err))
		b.alert(cb, "Ошибка при получении данных")
		b.edit(cb, menuPrompt, mainMenu())
		return
	}

	comparison, label := b.periodComparison(ctx, key, pr, metrics)
	text := periodViewText(metrics, pr.label, comparison, label, b.settings.Snapshot().AlertThresholdPct)
	b.edit(cb, text, mainMenu())
}

// periodComparison picks the baseline matching the viewed period. A nil
// result means no baseline was available.
func (b *Bot) periodComparison(ctx context.Context, key string, pr periodRange, metrics analytics.PeriodMetrics) (*analytics.Comparison, string) {
	switch key {
	case "today":
		change, err := b.service.CompareWithYesterday(ctx, metrics, nil)
		if err != nil || change == nil {
			return nil, ""
		}
		return &analytics.Comparison{RevenueChange: change}, "к вчера"
	case "yesterday":
		cmp, err := b.service.ComparePeriods(ctx, pr.from, pr.to, pr.from.AddDate(0, 0, -1), pr.to.AddDate(0, 0, -1), nil)
		if err != nil {
			return nil, ""
		}
		return &cmp, "к позавчера"
	case "week":
		cmp, err := b.service.ComparePeriods(ctx, pr.from, pr.to, pr.from.AddDate(0, 0, -7), pr.to.AddDate(0, 0, -7), nil)
		if err != nil {
			return nil, ""
		}
		return &cmp, "к прошлой неделе"
	case "month":
		cmp, err := b.service.ComparePeriods(ctx, pr.from, pr.to, pr.from.AddDate(0, 0, -30), pr.to.AddDate(0, 0, -30), nil)
		if err != nil {
			return nil, ""
		}
		return &cmp, "к прошлому месяцу"
	}
	return nil, ""
}

func (b *Bot) handleFoodcost(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	parts := strings.Split(cb.Data, ":")
	if len(parts) < 2 || parts[1] != "view" {
		b.answer(cb, "")
		return
	}
	period, view := "today", "summary"
	page := 0
	if len(parts) > 2 {
		period = parts[2]
	}
	if len(parts) > 3 {
		view = parts[3]
	}
	if len(parts) > 4 {
		page, _ = strconv.Atoi(parts[4])
	}

	pr, ok := b.resolvePeriod(period)
	if !ok {
		pr, _ = b.resolvePeriod("today")
		period = "today"
	}
	b.answer(cb, "Загрузка данных о фудкосте...")

	breakdown, err := b.service.DetailedFoodcost(ctx, pr.from, pr.to, nil, true)
	if err != nil {
		b.logger.Error("foodcost failed", slog.String("period", period), slog.Any("error", err))
		b.alert(cb, "Ошибка при получении данных о фудкосте")
		return
	}

	var text string
	switch view {
	case "summary":
		change, changeLabel := b.foodcostChange(ctx, period, pr, breakdown)
		text = foodcostSummaryText(breakdown, pr.label, change, changeLabel)
	case "dishes", "dishes_top":
		text = topDishesText(breakdown, pr.label)
	case "dishes_worst":
		text = worstDishesText(breakdown, pr.label)
	case "categories":
		text = bucketPageText("📁 Фудкост по категориям", "категорий", breakdown.ByCategory, breakdown.UpdatedAt, pr.label, page)
	case "groups":
		text = bucketPageText("📦 Фудкост по группам", "групп", breakdown.ByGroup, breakdown.UpdatedAt, pr.label, page)
	default:
		text = "Неизвестный тип просмотра"
	}
	b.edit(cb, truncate(text), foodcostMenu(period, view, page))
}

// foodcostChange compares the average percentage against the preceding
// period of the same length. Zero baseline reads as "no change".
func (b *Bot) foodcostChange(ctx context.Context, period string, pr periodRange, current analytics.Breakdown) (float64, string) {
	var prevFrom, prevTo time.Time
	var label string
	switch period {
	case "today", "yesterday":
		prevFrom, prevTo = pr.from.AddDate(0, 0, -1), pr.to.AddDate(0, 0, -1)
		if period == "today" {
			prevTo = prevFrom.Add(24*time.Hour - time.Second)
			label = "к вчера"
		} else {
			label = "к позавчера"
		}
	case "week":
		prevFrom, prevTo = pr.from.AddDate(0, 0, -7), pr.to.AddDate(0, 0, -7)
		label = "к прошлой неделе"
	case "month":
		prevFrom, prevTo = pr.from.AddDate(0, 0, -30), pr.to.AddDate(0, 0, -30)
		label = "к прошлому месяцу"
	default:
		return 0, ""
	}
	previous, err := b.service.DetailedFoodcost(ctx, prevFrom, prevTo, nil, true)
	if err != nil || previous.AvgFoodcostPct <= 0 {
		return 0, label
	}
	return current.AvgFoodcostPct - previous.AvgFoodcostPct, label
}

func (b *Bot) handleTerminals(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if strings.TrimPrefix(cb.Data, "terminals:") != "list" {
		b.answer(cb, "")
		return
	}
	b.answer(cb, "Загрузка списка терминалов...")
	terminals := b.service.Terminals(ctx)
	if len(terminals) == 0 {
		b.edit(cb, "Не удалось загрузить список терминалов или терминалы не найдены", mainMenu())
		return
	}
	b.edit(cb, truncate(terminalsText(terminals)), mainMenu())
}

func (b *Bot) handleOrgs(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	parts := strings.Split(cb.Data, ":")
	page := 0
	if len(parts) > 2 && parts[1] == "page" {
		page, _ = strconv.Atoi(parts[2])
	}
	b.answer(cb, "")

	orgs := b.service.Organizations(ctx)
	if len(orgs) == 0 {
		b.edit(cb, "Не удалось загрузить список организаций", mainMenu())
		return
	}
	b.edit(cb, "Выберите организацию:", orgsMenu(orgs, page))
}

// answer acknowledges a callback, optionally with a toast text.
func (b *Bot) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.logger.Debug("callback answer failed", slog.Any("error", err))
	}
}

// alert acknowledges a callback with a blocking alert popup.
func (b *Bot) alert(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, text)); err != nil {
		b.logger.Debug("callback alert failed", slog.Any("error", err))
	}
}

// edit replaces the menu message in place. Telegram rejects edits that
// do not change anything; that rejection is expected and swallowed.
func (b *Bot) edit(cb *tgbotapi.CallbackQuery, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID, text, markup)
	if _, err := b.api.Send(msg); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "message is not modified") {
			b.answer(cb, "")
			return
		}
		b.logger.Error("message edit failed", slog.Any("error", err))
	}
}
