// Package settings holds the runtime-mutable bot configuration. Values
// live in memory only and reset to their configured defaults on restart.
package settings

import (
	"fmt"
	"sync"
)

const minutesPerDay = 24 * 60

// Settings is a snapshot of the mutable record.
type Settings struct {
	AlertThresholdPct int    `json:"alert_threshold_pct"`
	RollingDays       int    `json:"rolling_days"`
	ReportTime        string `json:"report_time"`
}

// Store guards the record for concurrent access from bot handlers and
// the scheduler.
type Store struct {
	mu   sync.RWMutex
	data Settings
}

// NewStore seeds the record with defaults. rollingDays below 1 is
// raised to 1, mirroring the floor applied on mutation.
func NewStore(alertThresholdPct, rollingDays int, reportTime string) *Store {
	if rollingDays < 1 {
		rollingDays = 1
	}
	return &Store{data: Settings{
		AlertThresholdPct: alertThresholdPct,
		RollingDays:       rollingDays,
		ReportTime:        reportTime,
	}}
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// AdjustThreshold shifts the alert threshold by delta percent points
// and returns the new value. The threshold is intentionally unbounded;
// operators use negative values to silence alerts.
func (s *Store) AdjustThreshold(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.AlertThresholdPct += delta
	return s.data.AlertThresholdPct
}

// AdjustRollingDays shifts the rolling window, never below one day.
func (s *Store) AdjustRollingDays(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.RollingDays += delta
	if s.data.RollingDays < 1 {
		s.data.RollingDays = 1
	}
	return s.data.RollingDays
}

// ShiftReportTime moves the daily report time by delta minutes,
// wrapping around midnight in both directions.
func (s *Store) ShiftReportTime(delta int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour, minute := parseClock(s.data.ReportTime)
	total := (hour*60 + minute + delta) % minutesPerDay
	if total < 0 {
		total += minutesPerDay
	}
	s.data.ReportTime = fmt.Sprintf("%02d:%02d", total/60, total%60)
	return s.data.ReportTime
}

// parseClock reads "HH:MM", tolerating garbage as midnight. The value
// only ever comes from validated config or from ShiftReportTime itself.
func parseClock(v string) (hour, minute int) {
	if _, err := fmt.Sscanf(v, "%d:%d", &hour, &minute); err != nil {
		return 0, 0
	}
	return hour, minute
}
