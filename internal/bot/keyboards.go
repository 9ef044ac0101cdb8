package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/resto-radar/resto-radar/internal/pos"
)

func btn(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("Сегодня", "period:today"), btn("Вчера", "period:yesterday")),
		tgbotapi.NewInlineKeyboardRow(btn("Неделя", "period:week"), btn("Месяц", "period:month")),
		tgbotapi.NewInlineKeyboardRow(btn("Фудкост", "foodcost:view:today:summary:0")),
		tgbotapi.NewInlineKeyboardRow(btn("Организации", "orgs:info"), btn("Терминалы", "terminals:list")),
		tgbotapi.NewInlineKeyboardRow(btn("Настройки", "settings"), btn("Обновить", "refresh")),
	)
}

func settingsMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("Порог алерта: -5%", "setting:threshold:-5"), btn("Порог алерта: +5%", "setting:threshold:+5")),
		tgbotapi.NewInlineKeyboardRow(btn("Rolling days: -1", "setting:rolling:-1"), btn("Rolling days: +1", "setting:rolling:+1")),
		tgbotapi.NewInlineKeyboardRow(btn("Время: -30 мин", "setting:time:-30"), btn("Время: +30 мин", "setting:time:+30")),
		tgbotapi.NewInlineKeyboardRow(btn("Назад", "back")),
	)
}

// foodcostMenu keeps the period switcher on top and varies the lower
// rows by the active view.
func foodcostMenu(period, view string, page int) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{btn("Сегодня", fmt.Sprintf("foodcost:view:today:%s:%d", view, page)),
			btn("Вчера", fmt.Sprintf("foodcost:view:yesterday:%s:%d", view, page))},
		{btn("Неделя", fmt.Sprintf("foodcost:view:week:%s:%d", view, page)),
			btn("Месяц", fmt.Sprintf("foodcost:view:month:%s:%d", view, page))},
	}

	if view == "summary" {
		rows = append(rows,
			[]tgbotapi.InlineKeyboardButton{
				btn("Топ 10 блюд", fmt.Sprintf("foodcost:view:%s:dishes_top:0", period)),
				btn("Топ 10 худших", fmt.Sprintf("foodcost:view:%s:dishes_worst:0", period)),
			},
			[]tgbotapi.InlineKeyboardButton{
				btn("По категориям", fmt.Sprintf("foodcost:view:%s:categories:0", period)),
				btn("По группам", fmt.Sprintf("foodcost:view:%s:groups:0", period)),
			},
		)
	} else {
		if view == "categories" || view == "groups" {
			var nav []tgbotapi.InlineKeyboardButton
			if page > 0 {
				nav = append(nav, btn("◀ Назад", fmt.Sprintf("foodcost:view:%s:%s:%d", period, view, page-1)))
			}
			nav = append(nav, btn("Вперёд ▶", fmt.Sprintf("foodcost:view:%s:%s:%d", period, view, page+1)))
			rows = append(rows, nav)
		}

		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			btn("Сводка", fmt.Sprintf("foodcost:view:%s:summary:0", period)),
		})

		var switcher []tgbotapi.InlineKeyboardButton
		switch view {
		case "dishes_top":
			switcher = append(switcher, btn("Худшие", fmt.Sprintf("foodcost:view:%s:dishes_worst:0", period)))
		case "dishes_worst":
			switcher = append(switcher, btn("Топ 10", fmt.Sprintf("foodcost:view:%s:dishes_top:0", period)))
		default:
			switcher = append(switcher,
				btn("Топ 10", fmt.Sprintf("foodcost:view:%s:dishes_top:0", period)),
				btn("Худшие", fmt.Sprintf("foodcost:view:%s:dishes_worst:0", period)))
		}
		if view != "categories" {
			switcher = append(switcher, btn("Категории", fmt.Sprintf("foodcost:view:%s:categories:0", period)))
		}
		if view != "groups" {
			switcher = append(switcher, btn("Группы", fmt.Sprintf("foodcost:view:%s:groups:0", period)))
		}
		rows = append(rows, switcher)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{btn("Назад", "back")})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

const orgsPerPage = 10

// orgsMenu lists DEPARTMENT entries two per row with pager controls.
func orgsMenu(orgs []pos.Row, page int) tgbotapi.InlineKeyboardMarkup {
	var departments []pos.Row
	for _, org := range orgs {
		if org.Str("type") == "DEPARTMENT" {
			departments = append(departments, org)
		}
	}

	start := page * orgsPerPage
	end := start + orgsPerPage
	if start > len(departments) {
		start = len(departments)
	}
	if end > len(departments) {
		end = len(departments)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	pageOrgs := departments[start:end]
	for i := 0; i < len(pageOrgs); i += 2 {
		row := []tgbotapi.InlineKeyboardButton{orgButton(pageOrgs[i])}
		if i+1 < len(pageOrgs) {
			row = append(row, orgButton(pageOrgs[i+1]))
		}
		rows = append(rows, row)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, btn("◀ Назад", fmt.Sprintf("orgs:page:%d", page-1)))
	}
	if end < len(departments) {
		nav = append(nav, btn("Вперёд ▶", fmt.Sprintf("orgs:page:%d", page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{btn("Назад", "back")})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func orgButton(org pos.Row) tgbotapi.InlineKeyboardButton {
	name := org.Str("name")
	if name == "" {
		name = "Unknown"
	}
	if runes := []rune(name); len(runes) > 20 {
		name = string(runes[:20])
	}
	return btn(name, "orgs:info")
}
