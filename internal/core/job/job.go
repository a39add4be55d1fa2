// Package job defines the extraction job entity and its lifecycle.
package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Format selects the report output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a client-supplied format string. Empty input
// defaults to XLSX.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// Extension returns the file extension for the format, with dot.
func (f Format) Extension() string {
	if f == FormatCSV {
		return ".csv"
	}
	return ".xlsx"
}

// Job is one PDF extraction request and its progress.
type Job struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	StoredName    string    `json:"-"`
	Format        Format    `json:"format"`
	Status        Status    `json:"status"`
	PagesTotal    int       `json:"pages_total"`
	PagesDone     int       `json:"pages_done"`
	ShipmentCount int       `json:"shipment_count"`
	InvoiceCount  int       `json:"invoice_count"`
	OutputPath    string    `json:"-"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
}

// New creates a pending job for an uploaded file. The stored name is
// prefixed with the job ID so concurrent uploads of the same filename
// never collide on disk.
func New(filename string, format Format) *Job {
	id := "job_" + uuid.New().String()[:8]
	return &Job{
		ID:         id,
		Filename:   filename,
		StoredName: id + "_" + filename,
		Format:     format,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}
