package pos

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	reportTypeSales = "SALES"
	reportTypeStock = "STOCK"

	olapEndpointV2 = "/v2/reports/olap"
	olapEndpointV1 = "/reports/olap"
)

var baseAggregateFields = []string{
	"UniqOrderId.OrdersCount",
	"DishDiscountSumInt",
	"DishSumInt",
}

var costAggregateFields = []string{
	"ProductCostBase.ProductCost",
	"ProductCostBase.OneItem",
}

// olapQuery is the generic tabular aggregation request the reporting API
// accepts on its v2 endpoint.
type olapQuery struct {
	ReportType       string                `json:"reportType"`
	GroupByRowFields []string              `json:"groupByRowFields"`
	GroupByColFields []string              `json:"groupByColFields"`
	AggregateFields  []string              `json:"aggregateFields"`
	Filters          map[string]olapFilter `json:"filters"`
}

type olapFilter struct {
	FilterType  string `json:"filterType"`
	From        string `json:"from"`
	To          string `json:"to"`
	IncludeLow  bool   `json:"includeLow"`
	IncludeHigh bool   `json:"includeHigh"`
}

func dateRange(from, to string) olapFilter {
	return olapFilter{
		FilterType:  "DateRange",
		From:        from,
		To:          to,
		IncludeLow:  true,
		IncludeHigh: true,
	}
}

// salesQuery builds the primary SALES query. The date filter field is
// OpenDate for SALES reports; STOCK reports filter on EventDate instead.
func salesQuery(groupBy, aggregates []string, from, to string) olapQuery {
	return olapQuery{
		ReportType:       reportTypeSales,
		GroupByRowFields: groupBy,
		GroupByColFields: []string{},
		AggregateFields:  aggregates,
		Filters:          map[string]olapFilter{"OpenDate.Typed": dateRange(from, to)},
	}
}

// stockQuery builds a STOCK query. The EventDate range filter is
// mandatory; the API rejects STOCK queries without it.
func stockQuery(groupBy []string, from, to string) olapQuery {
	return olapQuery{
		ReportType:       reportTypeStock,
		GroupByRowFields: groupBy,
		GroupByColFields: []string{},
		AggregateFields:  costAggregateFields,
		Filters:          map[string]olapFilter{"EventDate": dateRange(from, to)},
	}
}

// stockVariant is one grouping strategy for prying cost data out of the
// STOCK report. Variants are tried in order until one returns rows that
// bear a recognized cost field.
type stockVariant struct {
	name     string
	groupRow []string
}

var legacyStockVariants = []stockVariant{
	{name: "EventDate+ProductName", groupRow: []string{"EventDate", "ProductName"}},
	{name: "ProductName only", groupRow: []string{"ProductName"}},
	{name: "EventCookingDate+ProductName", groupRow: []string{"EventCookingDate", "ProductName"}},
}

var stockVariants = []stockVariant{
	{name: "ProductName only", groupRow: []string{"ProductName"}},
	{name: "EventDate+ProductName", groupRow: []string{"EventDate", "ProductName"}},
	{name: "ProductName+EventDate", groupRow: []string{"ProductName", "EventDate"}},
}

var reportRowTags = []string{"row", "item", "r"}
var reportEnvelopeKeys = []string{"data"}

// GetSalesReport retrieves raw sales rows for a period plus, when any of
// the fallback strategies succeeds, cost rows for food-cost calculation.
// Dates are YYYY-MM-DD, bounds inclusive. The sales volume and the
// cost-of-goods live in different reports on this API, so the cost side
// runs through an ordered chain of strategies:
//
//  1. an extended SALES query that sometimes carries cost aggregates,
//  2. the legacy v1 GET query form against the STOCK report,
//  3. the v2 STOCK report with several grouping variants.
//
// A strategy succeeds when its rows contain a recognized cost field.
// Total absence of cost data is not an error; the report ships without
// the Costs rows and food cost reads as zero downstream.
func (c *Client) GetSalesReport(ctx context.Context, dateFrom, dateTo string) (SalesReport, error) {
	query := salesQuery([]string{"CloseTime", "OpenTime"}, baseAggregateFields, dateFrom, dateTo)
	body, contentType, err := c.do(ctx, http.MethodPost, olapEndpointV2, nil, query)
	if err != nil {
		return SalesReport{}, err
	}
	report := SalesReport{Sales: decodeRows(contentType, body, reportRowTags, reportEnvelopeKeys)}

	report.Costs = c.costRowsWithFallback(ctx, dateFrom, dateTo)
	if report.Costs == nil {
		// The extended SALES response occasionally carries cost fields
		// directly; use it before giving up entirely.
		if _, ok := CostField(report.Sales); ok {
			report.Costs = report.Sales
		}
	}
	return report, nil
}

func (c *Client) costRowsWithFallback(ctx context.Context, dateFrom, dateTo string) []Row {
	if rows := c.costFromExtendedSales(ctx, dateFrom, dateTo); rows != nil {
		return rows
	}
	if rows := c.costFromLegacyStock(ctx, dateFrom, dateTo); rows != nil {
		return rows
	}
	if rows := c.costFromStock(ctx, dateFrom, dateTo); rows != nil {
		return rows
	}
	c.logger.Debug("no cost data available from any report strategy",
		slog.String("from", dateFrom),
		slog.String("to", dateTo),
	)
	return nil
}

// costFromExtendedSales asks the SALES report for cost aggregates grouped
// down to dish level. Most installations reject or ignore the cost
// fields here; the result counts only when the rows actually carry one.
func (c *Client) costFromExtendedSales(ctx context.Context, dateFrom, dateTo string) []Row {
	aggregates := append(append([]string{}, baseAggregateFields...), costAggregateFields...)
	query := salesQuery([]string{"DishName", "OpenTime", "CloseTime"}, aggregates, dateFrom, dateTo)
	body, contentType, err := c.do(ctx, http.MethodPost, olapEndpointV2, nil, query)
	if err != nil {
		if !IsUnknownField(err) {
			c.logger.Debug("extended sales query failed", slog.Any("error", err))
		}
		return nil
	}
	rows := decodeRows(contentType, body, reportRowTags, reportEnvelopeKeys)
	if _, ok := CostField(rows); !ok {
		return nil
	}
	return rows
}

// costFromLegacyStock drives the v1 GET query form, which wants dates as
// DD.MM.YYYY and repeats groupRow/agr parameters per field.
func (c *Client) costFromLegacyStock(ctx context.Context, dateFrom, dateTo string) []Row {
	fromLegacy, err1 := toLegacyDate(dateFrom)
	toLegacyStr, err2 := toLegacyDate(dateTo)
	if err1 != nil || err2 != nil {
		return nil
	}
	for _, variant := range legacyStockVariants {
		query := url.Values{
			"report":   {reportTypeStock},
			"from":     {fromLegacy},
			"to":       {toLegacyStr},
			"groupRow": variant.groupRow,
			"agr":      costAggregateFields,
		}
		body, contentType, err := c.do(ctx, http.MethodGet, olapEndpointV1, query, nil)
		if err != nil {
			c.logger.Debug("legacy stock variant failed",
				slog.String("variant", variant.name),
				slog.Any("error", err),
			)
			continue
		}
		rows := decodeRows(contentType, body, reportRowTags, reportEnvelopeKeys)
		if _, ok := CostField(rows); ok {
			return rows
		}
		c.logger.Debug("legacy stock variant returned no cost fields",
			slog.String("variant", variant.name),
			slog.Int("rows", len(rows)),
		)
	}
	return nil
}

// costFromStock tries the v2 STOCK report across grouping variants.
// Unknown-field rejections and 409s advance the chain instead of
// failing it.
func (c *Client) costFromStock(ctx context.Context, dateFrom, dateTo string) []Row {
	for _, variant := range stockVariants {
		query := stockQuery(variant.groupRow, dateFrom, dateTo)
		body, contentType, err := c.do(ctx, http.MethodPost, olapEndpointV2, nil, query)
		if err != nil {
			if IsUnknownField(err) {
				c.logger.Debug("stock variant has unknown fields", slog.String("variant", variant.name))
				continue
			}
			c.logger.Debug("stock variant failed",
				slog.String("variant", variant.name),
				slog.Any("error", err),
			)
			continue
		}
		rows := decodeRows(contentType, body, reportRowTags, reportEnvelopeKeys)
		if _, ok := CostField(rows); ok {
			return rows
		}
		c.logger.Debug("stock variant returned no cost fields",
			slog.String("variant", variant.name),
			slog.Int("rows", len(rows)),
		)
	}
	return nil
}

// GetDetailedFoodcost retrieves dish-level rows grouped by dish, category
// and group. When the installation rejects the cost aggregates it retries
// once without them; revenue-only breakdowns are still useful.
func (c *Client) GetDetailedFoodcost(ctx context.Context, dateFrom, dateTo string) ([]Row, error) {
	groupBy := []string{"DishName", "DishCategory", "DishGroup"}
	aggregates := append(append([]string{}, baseAggregateFields...), costAggregateFields...)

	query := salesQuery(groupBy, aggregates, dateFrom, dateTo)
	body, contentType, err := c.do(ctx, http.MethodPost, olapEndpointV2, nil, query)
	if err != nil {
		if !IsUnknownField(err) {
			return nil, err
		}
		c.logger.Warn("cost aggregates not supported, retrying without them")
		query = salesQuery(groupBy, baseAggregateFields, dateFrom, dateTo)
		body, contentType, err = c.do(ctx, http.MethodPost, olapEndpointV2, nil, query)
		if err != nil {
			return nil, err
		}
	}
	return decodeRows(contentType, body, reportRowTags, reportEnvelopeKeys), nil
}

func toLegacyDate(date string) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", err
	}
	return t.Format("02.01.2006"), nil
}
