package pos

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func readQuery(t *testing.T, r *http.Request) olapQuery {
	t.Helper()
	var q olapQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		t.Fatalf("decode olap query: %v", err)
	}
	return q
}

func groupKey(q olapQuery) string {
	return strings.Join(q.GroupByRowFields, "+")
}

func TestGetSalesReportHappyPath(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			_, _ = w.Write([]byte("tok"))
		case "/v2/reports/olap":
			q := readQuery(t, r)
			switch {
			case q.ReportType == "SALES" && groupKey(q) == "CloseTime+OpenTime":
				if _, ok := q.Filters["OpenDate.Typed"]; !ok {
					t.Fatal("SALES query must filter on OpenDate.Typed")
				}
				_, _ = w.Write([]byte(`{"data":[
					{"OpenTime":"A","CloseTime":"B","DishDiscountSumInt":100},
					{"OpenTime":"A","CloseTime":"B","DishDiscountSumInt":50},
					{"OpenTime":"C","CloseTime":"D","DishSumInt":200}
				]}`))
			case q.ReportType == "SALES":
				// Extended cost-bearing query succeeds on this install.
				_, _ = w.Write([]byte(`{"data":[
					{"DishName":"Soup","ProductCostBase.ProductCost":30},
					{"DishName":"Stew","ProductCostBase.ProductCost":20}
				]}`))
			default:
				t.Fatalf("unexpected report type %s", q.ReportType)
			}
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	report, err := client.GetSalesReport(context.Background(), "2026-08-01", "2026-08-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Sales) != 3 {
		t.Fatalf("expected 3 sales rows, got %d", len(report.Sales))
	}
	if len(report.Costs) != 2 {
		t.Fatalf("expected cost rows from extended sales query, got %d", len(report.Costs))
	}
}

func TestGetSalesReportAdvancesStockVariants(t *testing.T) {
	var stockGroupings []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			_, _ = w.Write([]byte("tok"))
		case "/reports/olap":
			// Legacy form not supported on this install.
			w.WriteHeader(http.StatusConflict)
		case "/v2/reports/olap":
			q := readQuery(t, r)
			switch {
			case q.ReportType == "SALES" && groupKey(q) == "CloseTime+OpenTime":
				_, _ = w.Write([]byte(`{"data":[{"OpenTime":"A","CloseTime":"B","DishSumInt":10}]}`))
			case q.ReportType == "SALES":
				// Extended query yields rows without any cost field.
				_, _ = w.Write([]byte(`{"data":[{"DishName":"Soup","DishSumInt":10}]}`))
			case q.ReportType == "STOCK":
				if _, ok := q.Filters["EventDate"]; !ok {
					t.Fatal("STOCK query must filter on EventDate")
				}
				stockGroupings = append(stockGroupings, groupKey(q))
				if groupKey(q) == "EventDate+ProductName" {
					_, _ = w.Write([]byte(`{"data":[{"ProductName":"Flour","ProductCostBase.ProductCost":"30"}]}`))
					return
				}
				// First variant: rows without a recognized cost field.
				_, _ = w.Write([]byte(`{"data":[{"ProductName":"Flour"}]}`))
			}
		}
	}))

	report, err := client.GetSalesReport(context.Background(), "2026-08-01", "2026-08-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stockGroupings) != 2 {
		t.Fatalf("expected two stock variants tried, got %v", stockGroupings)
	}
	if stockGroupings[0] != "ProductName" || stockGroupings[1] != "EventDate+ProductName" {
		t.Fatalf("unexpected variant order %v", stockGroupings)
	}
	if len(report.Costs) != 1 {
		t.Fatalf("expected cost rows from second variant, got %d", len(report.Costs))
	}
}

func TestGetSalesReportLegacyStockQueryShape(t *testing.T) {
	var legacyQueries []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			_, _ = w.Write([]byte("tok"))
		case "/reports/olap":
			legacyQueries = append(legacyQueries, r.URL.RawQuery)
			if r.URL.Query().Get("report") != "STOCK" {
				t.Fatalf("expected report=STOCK, got %q", r.URL.RawQuery)
			}
			if r.URL.Query().Get("from") != "01.08.2026" {
				t.Fatalf("legacy form wants DD.MM.YYYY dates, got %q", r.URL.Query().Get("from"))
			}
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(`<report><row><ProductName>Flour</ProductName><ProductCostBase.ProductCost>30</ProductCostBase.ProductCost></row></report>`))
		case "/v2/reports/olap":
			q := readQuery(t, r)
			if q.ReportType == "STOCK" {
				t.Fatal("v2 STOCK must not run once legacy form produced cost rows")
			}
			_, _ = w.Write([]byte(`{"data":[{"OpenTime":"A","CloseTime":"B","DishSumInt":10}]}`))
		}
	}))

	report, err := client.GetSalesReport(context.Background(), "2026-08-01", "2026-08-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(legacyQueries) != 1 {
		t.Fatalf("expected first legacy variant to satisfy the chain, got %v", legacyQueries)
	}
	if len(report.Costs) != 1 {
		t.Fatalf("expected XML cost row, got %d", len(report.Costs))
	}
}

func TestGetDetailedFoodcostRetriesWithoutCostFields(t *testing.T) {
	var aggregateSets [][]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth":
			_, _ = w.Write([]byte("tok"))
		case "/v2/reports/olap":
			q := readQuery(t, r)
			aggregateSets = append(aggregateSets, q.AggregateFields)
			for _, f := range q.AggregateFields {
				if f == "ProductCostBase.ProductCost" {
					w.WriteHeader(http.StatusBadRequest)
					_, _ = w.Write([]byte("Unknown OLAP field 'ProductCostBase.ProductCost'"))
					return
				}
			}
			_, _ = w.Write([]byte(`{"data":[{"DishName":"Soup","DishCategory":"Starters","DishGroup":"Kitchen","DishSumInt":100}]}`))
		}
	}))

	rows, err := client.GetDetailedFoodcost(context.Background(), "2026-08-01", "2026-08-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aggregateSets) != 2 {
		t.Fatalf("expected one retry without cost aggregates, got %d calls", len(aggregateSets))
	}
	if len(aggregateSets[1]) != len(baseAggregateFields) {
		t.Fatalf("retry must drop cost aggregates, got %v", aggregateSets[1])
	}
	if len(rows) != 1 || rows[0].Str("DishName") != "Soup" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestGetSalesReportSalesFailureSurfaces(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth" {
			_, _ = w.Write([]byte("tok"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.GetSalesReport(context.Background(), "2026-08-01", "2026-08-01")
	if err == nil {
		t.Fatal("expected error when the primary SALES query fails")
	}
}
