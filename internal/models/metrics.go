package models

import "time"

// SystemMetrics aggregates in-process counters for the ops snapshot
// endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	GenerationsTotal         uint64    `json:"generations_total"`
	LastGenerationShifts     int       `json:"last_generation_shifts"`
	LastGenerationOpenSlots  int       `json:"last_generation_open_slots"`
	ReportsSucceeded         uint64    `json:"reports_succeeded"`
	ReportsFailed            uint64    `json:"reports_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
