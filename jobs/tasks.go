// Package jobs contains the Asynq task definitions and handlers for
// background work: today only the daily revenue report.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeDailyReport is the task type for the scheduled daily report.
	TaskTypeDailyReport = "report:daily"
)

// DailyReportPayload carries the trigger date of a daily report run.
type DailyReportPayload struct {
	Date string `json:"date"`
}

// NewDailyReportTask constructs an Asynq task for the daily report.
func NewDailyReportTask(payload DailyReportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDailyReport, data), nil
}
