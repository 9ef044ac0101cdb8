package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/resto-radar/resto-radar/internal/analytics"
	"github.com/resto-radar/resto-radar/internal/pos"
	"github.com/resto-radar/resto-radar/internal/settings"
)

func floatPtr(v float64) *float64 { return &v }

var testUpdatedAt = time.Date(2026, 8, 20, 12, 30, 45, 0, time.UTC)

func TestPeriodViewTextMarkers(t *testing.T) {
	m := analytics.PeriodMetrics{
		OrgName:      "Кафе",
		Revenue:      150000,
		Orders:       300,
		AverageCheck: 500,
		UpdatedAt:    testUpdatedAt,
	}
	cmp := &analytics.Comparison{
		RevenueChange:  floatPtr(-20),
		OrdersChange:   floatPtr(-5),
		AvgCheckChange: floatPtr(-1),
	}
	text := periodViewText(m, "2026-08-20", cmp, "к вчера", 15)

	if !strings.Contains(text, "🔴 Выручка: -20.0%") {
		t.Fatalf("a drop past the threshold must be red, got %q", text)
	}
	if !strings.Contains(text, "🟢 Заказов: -5.0%") {
		t.Fatalf("a drop within the threshold stays green, got %q", text)
	}
	if !strings.Contains(text, "🔴 Средний чек: -1.0%") {
		t.Fatalf("any average check drop is red, got %q", text)
	}
	if !strings.Contains(text, "Δ к вчера:") {
		t.Fatalf("expected delta block label, got %q", text)
	}
	if !strings.Contains(text, "🕐 Обновлено: 12:30:45") {
		t.Fatalf("expected update stamp, got %q", text)
	}
}

func TestPeriodViewTextHidesZeroFoodcost(t *testing.T) {
	m := analytics.PeriodMetrics{OrgName: "Кафе", UpdatedAt: testUpdatedAt}
	if text := periodViewText(m, "2026-08-20", nil, "", 15); strings.Contains(text, "Фудкост") {
		t.Fatalf("zero food cost must be omitted, got %q", text)
	}
	m.FoodCost = 500
	m.FoodCostPct = 35
	if text := periodViewText(m, "2026-08-20", nil, "", 15); !strings.Contains(text, "🟡 Фудкост") {
		t.Fatalf("35%% food cost is yellow, got %q", text)
	}
}

func TestFoodcostStatusBands(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{25, "🟢 Отлично"},
		{33, "🟡 Нормально"},
		{38, "🟠 Выше нормы"},
		{45, "🔴 Критично"},
	}
	for _, tc := range cases {
		if got := foodcostStatus(tc.pct); got != tc.want {
			t.Fatalf("pct %.0f: expected %q, got %q", tc.pct, tc.want, got)
		}
	}
}

func TestWorstDishesExcludesOutliers(t *testing.T) {
	b := analytics.Breakdown{
		UpdatedAt: testUpdatedAt,
		ByDish: []analytics.BreakdownEntry{
			{Name: "Подозрительное", Revenue: 100, Cost: 5000, FoodcostPct: 5000},
			{Name: "Мелкое дорогое", Revenue: 900, Cost: 6000, FoodcostPct: 667},
			{Name: "Плохое", Revenue: 1000, Cost: 600, FoodcostPct: 60},
			{Name: "Хуже", Revenue: 1000, Cost: 900, FoodcostPct: 90},
			{Name: "Хорошее", Revenue: 1000, Cost: 200, FoodcostPct: 20},
		},
	}
	text := worstDishesText(b, "2026-08-20")

	if !strings.Contains(text, "Исключено 2 блюд") {
		t.Fatalf("expected two exclusions, got %q", text)
	}
	if !strings.Contains(text, "(красная зона)") {
		t.Fatalf("expected red-zone title, got %q", text)
	}
	worse := strings.Index(text, "Хуже")
	bad := strings.Index(text, "Плохое")
	if worse == -1 || bad == -1 || worse > bad {
		t.Fatalf("red zone must be sorted by pct descending, got %q", text)
	}
	if strings.Contains(text, "Хорошее") {
		t.Fatalf("dishes under 40%% stay out of the red zone, got %q", text)
	}
}

func TestWorstDishesFallsBackWithoutRedZone(t *testing.T) {
	b := analytics.Breakdown{
		UpdatedAt: testUpdatedAt,
		ByDish: []analytics.BreakdownEntry{
			{Name: "A", Revenue: 1000, Cost: 200, FoodcostPct: 20},
			{Name: "B", Revenue: 1000, Cost: 300, FoodcostPct: 30},
		},
	}
	text := worstDishesText(b, "2026-08-20")
	if !strings.Contains(text, "(самый высокий фудкост)") {
		t.Fatalf("expected fallback title, got %q", text)
	}
	if strings.Index(text, "1. 🟢 B") > strings.Index(text, "2. 🟢 A") {
		t.Fatalf("fallback list sorted by pct descending, got %q", text)
	}
}

func TestBucketPageTextPagination(t *testing.T) {
	entries := make([]analytics.BreakdownEntry, 25)
	for i := range entries {
		entries[i] = analytics.BreakdownEntry{Name: "Категория", Revenue: 100}
	}
	text := bucketPageText("📁 Фудкост по категориям", "категорий", entries, testUpdatedAt, "2026-08-20", 1)
	if !strings.Contains(text, "11. ") {
		t.Fatalf("page 1 starts at entry 11, got %q", text)
	}
	if !strings.Contains(text, "... и ещё 5 категорий") {
		t.Fatalf("expected remainder note, got %q", text)
	}

	empty := bucketPageText("📁 Фудкост по категориям", "категорий", entries, testUpdatedAt, "2026-08-20", 9)
	if !strings.Contains(empty, "Нет данных о категорий") {
		t.Fatalf("out-of-range page shows the empty note, got %q", empty)
	}
}

func TestTerminalsTextCaps(t *testing.T) {
	terminals := make([]pos.Row, 60)
	for i := range terminals {
		terminals[i] = pos.Row{"name": "Касса", "id": "t-1", "address": "Москва"}
	}
	text := terminalsText(terminals)
	if !strings.Contains(text, "Список терминалов (60):") {
		t.Fatalf("expected total count, got %q", text)
	}
	if !strings.Contains(text, "... и ещё 10 терминалов") {
		t.Fatalf("expected overflow note, got %q", text)
	}
	if strings.Contains(text, "51. ") {
		t.Fatalf("only 50 entries may be listed, got %q", text)
	}
}

func TestTruncateCapsLongMessages(t *testing.T) {
	text := truncate(strings.Repeat("ы", 5000))
	if got := len([]rune(text)); got > messageLimit+30 {
		t.Fatalf("expected hard cap, got %d runes", got)
	}
	if !strings.HasSuffix(text, "... (сообщение обрезано)") {
		t.Fatalf("expected truncation marker, got tail %q", text[len(text)-60:])
	}
}

func TestSettingsText(t *testing.T) {
	text := settingsText(settings.Settings{AlertThresholdPct: 15, RollingDays: 7, ReportTime: "23:00"})
	for _, want := range []string{"Порог алерта: 15%", "Rolling days: 7", "Время отчёта: 23:00"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in %q", want, text)
		}
	}
}
