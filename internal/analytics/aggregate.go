// Package analytics reduces raw POS report rows into the figures the bot
// presents: period metrics, comparisons and food-cost breakdowns.
package analytics

import (
	"sort"
	"time"

	"github.com/resto-radar/resto-radar/internal/pos"
)

// PeriodMetrics is the aggregate for one date range and org filter.
type PeriodMetrics struct {
	OrgName      string    `json:"org_name"`
	DateFrom     string    `json:"date_from"`
	DateTo       string    `json:"date_to"`
	Revenue      float64   `json:"revenue"`
	Orders       int       `json:"orders"`
	AverageCheck float64   `json:"average_check"`
	FoodCost     float64   `json:"food_cost"`
	FoodCostPct  float64   `json:"food_cost_pct"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BreakdownEntry is one dish, category or group bucket.
type BreakdownEntry struct {
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Group       string  `json:"group,omitempty"`
	Revenue     float64 `json:"revenue"`
	Cost        float64 `json:"cost"`
	Orders      float64 `json:"orders"`
	FoodcostPct float64 `json:"foodcost_pct"`
}

// Breakdown is the detailed food-cost view, each slice sorted by revenue
// descending.
type Breakdown struct {
	DateFrom       string           `json:"date_from"`
	DateTo         string           `json:"date_to"`
	ByDish         []BreakdownEntry `json:"by_dishes"`
	ByCategory     []BreakdownEntry `json:"by_categories"`
	ByGroup        []BreakdownEntry `json:"by_groups"`
	TotalRevenue   float64          `json:"total_revenue"`
	TotalCost      float64          `json:"total_cost"`
	AvgFoodcostPct float64          `json:"avg_foodcost_pct"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Comparison holds period-over-period percentage changes. A nil field
// means the baseline metric was zero and no comparison is possible.
type Comparison struct {
	RevenueChange  *float64 `json:"revenue_change"`
	OrdersChange   *float64 `json:"orders_change"`
	AvgCheckChange *float64 `json:"avg_check_change"`
}

// rowRevenue prefers the discounted line total, falls back to the
// undiscounted one, and treats anything missing or malformed as 0.
func rowRevenue(row pos.Row) float64 {
	if v, ok := row.Float("DishDiscountSumInt"); ok {
		return v
	}
	if v, ok := row.Float("DishSumInt"); ok {
		return v
	}
	return 0
}

// ReduceSales turns raw report rows into period metrics. The API reports
// at line-item granularity, so orders are reconstructed by grouping rows
// on the (OpenTime, CloseTime) pair: rows sharing the pair belong to the
// same order.
func ReduceSales(report pos.SalesReport) PeriodMetrics {
	orderSums := make(map[[2]string]float64)
	for _, row := range report.Sales {
		key := [2]string{row.Str("OpenTime"), row.Str("CloseTime")}
		orderSums[key] += rowRevenue(row)
	}

	var revenue float64
	for _, sum := range orderSums {
		revenue += sum
	}
	orders := len(orderSums)

	var cost float64
	if field, ok := pos.CostField(report.Costs); ok {
		for _, row := range report.Costs {
			if v, ok := row.Float(field); ok {
				cost += v
			}
		}
	}

	m := PeriodMetrics{
		Revenue:  revenue,
		Orders:   orders,
		FoodCost: cost,
	}
	if orders > 0 {
		m.AverageCheck = revenue / float64(orders)
	}
	if revenue > 0 {
		m.FoodCostPct = cost / revenue * 100
	}
	return m
}

// ReduceFoodcost accumulates dish-level rows into three parallel
// breakdowns. Each bucket's percentage is recomputed from its totals
// after accumulation; averaging per-row percentages would skew toward
// low-revenue rows.
func ReduceFoodcost(rows []pos.Row) Breakdown {
	dishes := make(map[string]*BreakdownEntry)
	categories := make(map[string]*BreakdownEntry)
	groups := make(map[string]*BreakdownEntry)

	var totalRevenue, totalCost float64
	for _, row := range rows {
		dish := fallbackName(row.Str("DishName"), "Без названия")
		category := fallbackName(row.Str("DishCategory"), "Без категории")
		group := fallbackName(row.Str("DishGroup"), "Без группы")

		revenue := rowRevenue(row)
		var cost float64
		for _, field := range pos.CostFields {
			if v, ok := row.Float(field); ok {
				cost = v
				break
			}
		}
		orders, _ := row.Float("UniqOrderId.OrdersCount")

		d := ensureEntry(dishes, dish)
		d.Category = category
		d.Group = group
		d.Revenue += revenue
		d.Cost += cost
		d.Orders += orders

		c := ensureEntry(categories, category)
		c.Revenue += revenue
		c.Cost += cost
		c.Orders += orders

		g := ensureEntry(groups, group)
		g.Revenue += revenue
		g.Cost += cost
		g.Orders += orders

		totalRevenue += revenue
		totalCost += cost
	}

	b := Breakdown{
		ByDish:       collectSorted(dishes),
		ByCategory:   collectSorted(categories),
		ByGroup:      collectSorted(groups),
		TotalRevenue: totalRevenue,
		TotalCost:    totalCost,
	}
	if totalRevenue > 0 {
		b.AvgFoodcostPct = totalCost / totalRevenue * 100
	}
	return b
}

func ensureEntry(m map[string]*BreakdownEntry, name string) *BreakdownEntry {
	if e, ok := m[name]; ok {
		return e
	}
	e := &BreakdownEntry{Name: name}
	m[name] = e
	return e
}

func collectSorted(m map[string]*BreakdownEntry) []BreakdownEntry {
	entries := make([]BreakdownEntry, 0, len(m))
	for _, e := range m {
		if e.Revenue > 0 {
			e.FoodcostPct = e.Cost / e.Revenue * 100
		}
		entries = append(entries, *e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Revenue > entries[j].Revenue
	})
	return entries
}

func fallbackName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// changePercent returns (current-previous)/previous*100, or nil when the
// baseline is zero: "no baseline" must stay distinguishable from 0%.
func changePercent(previous, current float64) *float64 {
	if previous <= 0 {
		return nil
	}
	pct := (current - previous) / previous * 100
	return &pct
}
