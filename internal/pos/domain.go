package pos

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrAuthentication indicates the token exchange kept failing.
	ErrAuthentication = errors.New("pos: authentication failed")
	// ErrServer indicates the reporting API faulted after retries.
	ErrServer = errors.New("pos: server error")
)

// BadRequestError carries the API's rejection text for a malformed query.
// It is never retried; callers inspect the detail to pick a fallback.
type BadRequestError struct {
	Endpoint string
	Detail   string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("pos: bad request to %s: %s", e.Endpoint, e.Detail)
}

// IsUnknownField reports whether err is the API rejecting an OLAP field
// name, which signals the caller to retry with a different field set.
func IsUnknownField(err error) bool {
	var bad *BadRequestError
	if !errors.As(err, &bad) {
		return false
	}
	return strings.Contains(bad.Detail, "Unknown OLAP field")
}

// Row is a single report row or catalogue entry: field name to value.
// Values may be strings (XML responses), numbers (JSON) or nil.
type Row map[string]any

// Str returns the first non-empty string value among keys.
func (r Row) Str(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Float coerces the value under key to float64, treating missing or
// malformed values as 0 and reporting presence of a usable value.
func (r Row) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// CostFields is the ordered registry of field names the reporting API is
// known to return cost-of-goods under, most specific first.
var CostFields = []string{
	"ProductCostBase.ProductCost",
	"ProductCostBase.OneItem",
	"ProductCost",
	"Cost",
}

// CostField returns the first registry entry present in the row set.
func CostField(rows []Row) (string, bool) {
	if len(rows) == 0 {
		return "", false
	}
	for _, field := range CostFields {
		if _, ok := rows[0][field]; ok {
			return field, true
		}
	}
	return "", false
}

// SalesReport bundles the raw rows the aggregator reduces into metrics.
type SalesReport struct {
	// Sales rows are grouped by (CloseTime, OpenTime); one row per
	// line-item bucket, bearing order-count and sum aggregates.
	Sales []Row
	// Costs rows bear one of the CostFields; nil when no strategy in the
	// fallback chain produced cost data.
	Costs []Row
}
