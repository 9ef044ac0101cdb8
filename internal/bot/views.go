package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/resto-radar/resto-radar/internal/analytics"
	"github.com/resto-radar/resto-radar/internal/pos"
	"github.com/resto-radar/resto-radar/internal/settings"
)

// Telegram caps messages at 4096 characters; truncate below that so the
// marker always fits.
const messageLimit = 4000

var viewPrinter = message.NewPrinter(language.Russian)

func money(v float64) string {
	return viewPrinter.Sprint(number.Decimal(v, number.MaxFractionDigits(0)))
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= messageLimit {
		return text
	}
	return string(runes[:messageLimit]) + "\n\n... (сообщение обрезано)"
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func settingsText(snap settings.Settings) string {
	return fmt.Sprintf("⚙️ Настройки\n\nПорог алерта: %d%%\nRolling days: %d\nВремя отчёта: %s",
		snap.AlertThresholdPct, snap.RollingDays, snap.ReportTime)
}

// periodViewText renders the main metrics card. Delta lines appear only
// for metrics that had a non-zero baseline.
func periodViewText(m analytics.PeriodMetrics, periodLabel string, cmp *analytics.Comparison, cmpLabel string, threshold int) string {
	revenueEmoji, ordersEmoji, avgCheckEmoji := "🟢", "🟢", "🟢"
	if cmp != nil {
		if cmp.RevenueChange != nil && *cmp.RevenueChange < -float64(threshold) {
			revenueEmoji = "🔴"
		}
		if cmp.OrdersChange != nil && *cmp.OrdersChange < -float64(threshold) {
			ordersEmoji = "🔴"
		}
		if cmp.AvgCheckChange != nil && *cmp.AvgCheckChange < 0 {
			avgCheckEmoji = "🔴"
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\nПериод: %s\n🕐 Обновлено: %s\n\n", m.OrgName, periodLabel, m.UpdatedAt.Format("15:04:05"))
	fmt.Fprintf(&sb, "%s Выручка: %s ₽\n", revenueEmoji, money(m.Revenue))
	fmt.Fprintf(&sb, "%s Заказов: %s\n", ordersEmoji, money(float64(m.Orders)))
	fmt.Fprintf(&sb, "%s Средний чек: %s ₽", avgCheckEmoji, money(m.AverageCheck))

	if m.FoodCost > 0 {
		emoji := "🔴"
		switch {
		case m.FoodCostPct <= 30:
			emoji = "🟢"
		case m.FoodCostPct <= 40:
			emoji = "🟡"
		}
		fmt.Fprintf(&sb, "\n%s Фудкост: %s ₽ (%.1f%%)", emoji, money(m.FoodCost), m.FoodCostPct)
	}

	if cmp != nil {
		var changes []string
		if cmp.RevenueChange != nil {
			changes = append(changes, deltaLine("Выручка", *cmp.RevenueChange, -float64(threshold)))
		}
		if cmp.OrdersChange != nil {
			changes = append(changes, deltaLine("Заказов", *cmp.OrdersChange, -float64(threshold)))
		}
		if cmp.AvgCheckChange != nil {
			changes = append(changes, deltaLine("Средний чек", *cmp.AvgCheckChange, 0))
		}
		if len(changes) > 0 {
			fmt.Fprintf(&sb, "\n\nΔ %s:\n%s", cmpLabel, strings.Join(changes, "\n"))
		}
	}
	return sb.String()
}

func deltaLine(name string, change, floor float64) string {
	emoji := "🟢"
	if change < floor {
		emoji = "🔴"
	}
	return fmt.Sprintf("%s %s: %+.1f%%", emoji, name, change)
}

func foodcostStatus(pct float64) string {
	switch {
	case pct <= 30:
		return "🟢 Отлично"
	case pct <= 35:
		return "🟡 Нормально"
	case pct <= 40:
		return "🟠 Выше нормы"
	default:
		return "🔴 Критично"
	}
}

func foodcostSummaryText(b analytics.Breakdown, periodLabel string, change float64, changeLabel string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Фудкост\n\nПериод: %s\nОбновлено: %s\nСтатус: %s\n\n",
		periodLabel, b.UpdatedAt.Format("15:04:05"), foodcostStatus(b.AvgFoodcostPct))
	fmt.Fprintf(&sb, "Выручка: %s ₽\nСебестоимость: %s ₽\nФудкост: %.1f%%",
		money(b.TotalRevenue), money(b.TotalCost), b.AvgFoodcostPct)
	if changeLabel != "" {
		emoji := "🟢"
		if change > 0 {
			emoji = "🔴"
		}
		fmt.Fprintf(&sb, "\n\n%s Изменение %s: %+.1f%%", emoji, changeLabel, change)
	}
	return sb.String()
}

func dishEmoji(pct float64) string {
	switch {
	case pct <= 30:
		return "🟢"
	case pct <= 40:
		return "🟡"
	default:
		return "🔴"
	}
}

func dishLines(entries []analytics.BreakdownEntry, startIndex int) string {
	var sb strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. %s %s\n", startIndex+i, dishEmoji(e.FoodcostPct), clip(e.Name, 40))
		fmt.Fprintf(&sb, "   Выручка: %s ₽ | Себестоимость: %s ₽\n", money(e.Revenue), money(e.Cost))
		fmt.Fprintf(&sb, "   Фудкост: %.1f%% | Заказов: %.0f\n", e.FoodcostPct, e.Orders)
	}
	return sb.String()
}

func topDishesText(b analytics.Breakdown, periodLabel string) string {
	top := b.ByDish
	if len(top) > 10 {
		top = top[:10]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🍽️ Топ 10 блюд (по выручке)\n\nПериод: %s\n🕐 Обновлено: %s\n\n",
		periodLabel, b.UpdatedAt.Format("15:04:05"))
	if len(top) == 0 {
		sb.WriteString("Нет данных о блюдах")
		return sb.String()
	}
	sb.WriteString("Топ блюд:\n")
	sb.WriteString(dishLines(top, 1))
	return sb.String()
}

// worstDishesText lists the red-zone dishes (food cost above 40%),
// highest first. Rows with implausible figures are excluded and counted:
// a cost more than tenfold the revenue, a percentage past 200, or heavy
// cost against negligible revenue means bad source data, not a bad dish.
func worstDishesText(b analytics.Breakdown, periodLabel string) string {
	var valid []analytics.BreakdownEntry
	excluded := 0
	for _, d := range b.ByDish {
		if d.Revenue > 0 {
			if d.Cost > d.Revenue*10 || d.FoodcostPct > 200 {
				excluded++
				continue
			}
			if d.Revenue < 1000 && d.Cost > 5000 {
				excluded++
				continue
			}
		}
		valid = append(valid, d)
	}

	var worst []analytics.BreakdownEntry
	for _, d := range valid {
		if d.FoodcostPct > 40 && d.FoodcostPct <= 200 {
			worst = append(worst, d)
		}
	}
	suffix := " (красная зона)"
	if len(worst) == 0 {
		for _, d := range valid {
			if d.FoodcostPct <= 200 {
				worst = append(worst, d)
			}
		}
		suffix = " (самый высокий фудкост)"
	}
	sort.SliceStable(worst, func(i, j int) bool {
		return worst[i].FoodcostPct > worst[j].FoodcostPct
	})
	if len(worst) > 10 {
		worst = worst[:10]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Топ 10 худших блюд%s\n\nПериод: %s\n🕐 Обновлено: %s\n",
		suffix, periodLabel, b.UpdatedAt.Format("15:04:05"))
	if excluded > 0 {
		fmt.Fprintf(&sb, "\n⚠️ Исключено %d блюд с некорректными данными (фудкост > 200%% или явные ошибки)\n", excluded)
	}
	sb.WriteString("\n")
	if len(worst) == 0 {
		sb.WriteString("Нет данных о блюдах")
		return sb.String()
	}
	sb.WriteString("Топ худших блюд:\n")
	sb.WriteString(dishLines(worst, 1))
	return sb.String()
}

const bucketsPerPage = 10

func bucketPageText(title, plural string, entries []analytics.BreakdownEntry, updatedAt time.Time, periodLabel string, page int) string {
	start := page * bucketsPerPage
	end := start + bucketsPerPage
	if start > len(entries) {
		start = len(entries)
	}
	if end > len(entries) {
		end = len(entries)
	}
	pageEntries := entries[start:end]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\nПериод: %s\n🕐 Обновлено: %s\n\n", title, periodLabel, updatedAt.Format("15:04:05"))
	if len(pageEntries) == 0 {
		fmt.Fprintf(&sb, "Нет данных о %s", plural)
		return sb.String()
	}
	sb.WriteString(dishLines(pageEntries, start+1))
	if len(entries) > end {
		fmt.Fprintf(&sb, "\n... и ещё %d %s", len(entries)-end, plural)
	}
	return sb.String()
}

const terminalsLimit = 50

func terminalsText(terminals []pos.Row) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Список терминалов (%d):\n", len(terminals))

	shown := terminals
	if len(shown) > terminalsLimit {
		shown = shown[:terminalsLimit]
	}
	for i, t := range shown {
		name := t.Str("name", "terminalName")
		if name == "" {
			name = "Без названия"
		}
		id := t.Str("id", "terminalId")
		if id == "" {
			id = "N/A"
		}
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, name)
		fmt.Fprintf(&sb, "   ID: %s\n", clip(id, 20))
		if address := t.Str("address", "addressStr"); address != "" {
			fmt.Fprintf(&sb, "   Адрес: %s\n", clip(address, 50))
		}
		if dept := t.Str("departmentId", "department"); dept != "" {
			fmt.Fprintf(&sb, "   Департамент: %s\n", clip(dept, 20))
		}
	}
	if len(terminals) > terminalsLimit {
		fmt.Fprintf(&sb, "\n... и ещё %d терминалов", len(terminals)-terminalsLimit)
	}
	return sb.String()
}
