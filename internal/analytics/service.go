package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/resto-radar/resto-radar/internal/pos"
)

const dateLayout = "2006-01-02"

// ReportClient is the slice of the POS client the service relies on.
type ReportClient interface {
	Organizations(ctx context.Context) []pos.Row
	Terminals(ctx context.Context) []pos.Row
	GetSalesReport(ctx context.Context, dateFrom, dateTo string) (pos.SalesReport, error)
	GetDetailedFoodcost(ctx context.Context, dateFrom, dateTo string) ([]pos.Row, error)
}

// Service coordinates report retrieval, aggregation and caching.
type Service struct {
	client ReportClient
	cache  *Cache
	logger *slog.Logger
	clock  func() time.Time

	// Concurrent misses on the same key would each hit the POS API;
	// recomputation is idempotent but slow, so collapse them.
	flight singleflight.Group
}

// NewService wires a ReportClient with a Cache helper.
func NewService(client ReportClient, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		cache:  cache,
		logger: logger.With(slog.String("component", "analytics")),
		clock:  func() time.Time { return time.Now() },
	}
}

// Organizations lists organizational units, empty on failure.
func (s *Service) Organizations(ctx context.Context) []pos.Row {
	return s.client.Organizations(ctx)
}

// Terminals lists POS terminals, empty on failure.
func (s *Service) Terminals(ctx context.Context) []pos.Row {
	return s.client.Terminals(ctx)
}

// OrgTitle builds the display name for an org filter. With no filter it
// summarizes the whole catalogue; with a single id it resolves the name.
func (s *Service) OrgTitle(ctx context.Context, orgIDs []string) string {
	orgs := s.Organizations(ctx)
	switch {
	case len(orgIDs) == 1:
		for _, org := range orgs {
			if org.Str("id") == orgIDs[0] {
				if name := org.Str("name"); name != "" {
					return name
				}
			}
		}
		return "Организация"
	case len(orgIDs) > 1:
		return fmt.Sprintf("Выбранные организации (%d)", len(orgIDs))
	}
	if len(orgs) == 1 {
		if name := orgs[0].Str("name"); name != "" {
			return name
		}
	}
	if len(orgs) > 1 {
		departments := 0
		for _, org := range orgs {
			if org.Str("type") == "DEPARTMENT" {
				departments++
			}
		}
		if departments > 0 {
			return fmt.Sprintf("Все организации (%d)", departments)
		}
		return fmt.Sprintf("Все организации (%d)", len(orgs))
	}
	return "Все организации"
}

// PeriodMetrics returns aggregated metrics for [dateFrom, dateTo]. A
// cache hit within the TTL skips the POS round trip entirely. Report
// failures reduce to zeroed metrics: callers cannot distinguish "no
// data" from a genuine zero-revenue period without consulting the logs,
// which is a deliberate resilience trade-off against a flaky API.
func (s *Service) PeriodMetrics(ctx context.Context, dateFrom, dateTo time.Time, orgIDs []string, useCache bool) (PeriodMetrics, error) {
	from := dateFrom.Format(dateLayout)
	to := dateTo.Format(dateLayout)

	metrics, err := s.fetchMetrics(ctx, from, to, orgIDs, useCache)
	if err != nil {
		return PeriodMetrics{}, err
	}
	metrics.OrgName = s.OrgTitle(ctx, orgIDs)
	return metrics, nil
}

func (s *Service) fetchMetrics(ctx context.Context, from, to string, orgIDs []string, useCache bool) (PeriodMetrics, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		return s.loadMetrics(ctx, from, to, orgIDs), nil
	}
	if !useCache {
		return s.loadMetrics(ctx, from, to, orgIDs), nil
	}

	key, err := s.cache.BuildKey(ctx, keyMetrics(from, to, orgToken(orgIDs)))
	if err != nil {
		return PeriodMetrics{}, err
	}
	var metrics PeriodMetrics
	err = s.singleflightFetch(ctx, key, &metrics, loader)
	return metrics, err
}

func (s *Service) loadMetrics(ctx context.Context, from, to string, orgIDs []string) PeriodMetrics {
	report, err := s.client.GetSalesReport(ctx, from, to)
	if err != nil {
		s.logger.Error("sales report failed, returning zeroed metrics",
			slog.String("from", from),
			slog.String("to", to),
			slog.Any("error", err),
		)
		report = pos.SalesReport{}
	}
	metrics := ReduceSales(report)
	metrics.DateFrom = from
	metrics.DateTo = to
	metrics.UpdatedAt = s.clock()
	if len(orgIDs) > 0 {
		// The OLAP response carries no DepartmentId, so the filter
		// cannot be applied row-wise; it only scopes the display name.
		s.logger.Debug("org filter not applicable to report rows", slog.Int("orgs", len(orgIDs)))
	}
	return metrics
}

// DetailedFoodcost returns the dish/category/group breakdown for a
// period, cached under the same TTL policy as period metrics.
func (s *Service) DetailedFoodcost(ctx context.Context, dateFrom, dateTo time.Time, orgIDs []string, useCache bool) (Breakdown, error) {
	from := dateFrom.Format(dateLayout)
	to := dateTo.Format(dateLayout)

	loader := func(ctx context.Context) (interface{}, error) {
		return s.loadFoodcost(ctx, from, to), nil
	}
	if !useCache {
		return s.loadFoodcost(ctx, from, to), nil
	}

	key, err := s.cache.BuildKey(ctx, keyFoodcost(from, to, orgToken(orgIDs)))
	if err != nil {
		return Breakdown{}, err
	}
	var breakdown Breakdown
	err = s.singleflightFetch(ctx, key, &breakdown, loader)
	return breakdown, err
}

func (s *Service) loadFoodcost(ctx context.Context, from, to string) Breakdown {
	rows, err := s.client.GetDetailedFoodcost(ctx, from, to)
	if err != nil {
		s.logger.Error("detailed foodcost failed, returning empty breakdown",
			slog.String("from", from),
			slog.String("to", to),
			slog.Any("error", err),
		)
		rows = nil
	}
	breakdown := ReduceFoodcost(rows)
	breakdown.DateFrom = from
	breakdown.DateTo = to
	breakdown.UpdatedAt = s.clock()
	return breakdown
}

// ComparePeriods computes percentage changes between two periods. Each
// change is nil when the previous period's metric is zero.
func (s *Service) ComparePeriods(ctx context.Context, curFrom, curTo, prevFrom, prevTo time.Time, orgIDs []string) (Comparison, error) {
	current, err := s.PeriodMetrics(ctx, curFrom, curTo, orgIDs, true)
	if err != nil {
		return Comparison{}, err
	}
	previous, err := s.PeriodMetrics(ctx, prevFrom, prevTo, orgIDs, true)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		RevenueChange:  changePercent(previous.Revenue, current.Revenue),
		OrdersChange:   changePercent(float64(previous.Orders), float64(current.Orders)),
		AvgCheckChange: changePercent(previous.AverageCheck, current.AverageCheck),
	}, nil
}

// CompareWithYesterday returns today's revenue change against yesterday,
// or nil when yesterday had no revenue to compare against.
func (s *Service) CompareWithYesterday(ctx context.Context, today PeriodMetrics, orgIDs []string) (*float64, error) {
	now := s.clock()
	yesterday := now.AddDate(0, 0, -1)
	baseline, err := s.PeriodMetrics(ctx, yesterday, yesterday, orgIDs, true)
	if err != nil {
		return nil, err
	}
	return changePercent(baseline.Revenue, today.Revenue), nil
}

// RollingAverage returns mean daily revenue over the trailing window.
// The whole window is fetched as one range query and divided by the day
// count, which matches the alerting baseline the operators are used to.
func (s *Service) RollingAverage(ctx context.Context, days int) (float64, error) {
	if days <= 0 {
		return 0, nil
	}
	now := s.clock()
	from := now.AddDate(0, 0, -days)
	metrics, err := s.PeriodMetrics(ctx, from, now, nil, true)
	if err != nil {
		return 0, err
	}
	return metrics.Revenue / float64(days), nil
}

// ClearCache drops every cached aggregate; the next lookups recompute.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// singleflightFetch collapses concurrent cache rebuilds for one key into
// a single loader call; followers unmarshal the shared raw payload.
func (s *Service) singleflightFetch(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	result := s.flight.DoChan(key, func() (interface{}, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, loader); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return res.Err
		}
		raw, ok := res.Val.(json.RawMessage)
		if !ok {
			return errors.New("analytics: unexpected singleflight payload")
		}
		return json.Unmarshal(raw, dest)
	}
}
