package api

import (
	"encoding/json"
	"time"
)

// =============================================================================
// Response Types
// =============================================================================

// JobResponse is the response for job operations.
type JobResponse struct {
	ID            string     `json:"id"`
	Filename      string     `json:"filename"`
	Format        string     `json:"format"`
	Status        string     `json:"status"`
	PagesTotal    int        `json:"pages_total"`
	PagesDone     int        `json:"pages_done"`
	ShipmentCount int        `json:"shipment_count"`
	InvoiceCount  int        `json:"invoice_count"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`

	// Statistics is the extraction summary, present once completed.
	Statistics json.RawMessage `json:"statistics,omitempty"`
}

// ListJobsResponse is the response for listing jobs.
type ListJobsResponse struct {
	Jobs   []JobResponse `json:"jobs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
