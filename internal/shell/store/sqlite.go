package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/invoicemill/internal/core/job"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Job Operations
// =============================================================================

// jobRow represents a job row in the database.
type jobRow struct {
	ID            string  `db:"id"`
	Filename      string  `db:"filename"`
	StoredName    string  `db:"stored_name"`
	Format        string  `db:"format"`
	Status        string  `db:"status"`
	PagesTotal    int     `db:"pages_total"`
	PagesDone     int     `db:"pages_done"`
	ShipmentCount int     `db:"shipment_count"`
	InvoiceCount  int     `db:"invoice_count"`
	OutputPath    string  `db:"output_path"`
	ErrorMessage  string  `db:"error_message"`
	CreatedAt     string  `db:"created_at"`
	StartedAt     *string `db:"started_at"`
	FinishedAt    *string `db:"finished_at"`
}

func (s *SQLiteStore) CreateJob(ctx context.Context, j *job.Job) error {
	return createJob(ctx, s.db, j)
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*job.Job, error) {
	return getJob(ctx, s.db, id)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, opts ListOptions) ([]job.Job, error) {
	return listJobs(ctx, s.db, opts)
}

func (s *SQLiteStore) CountJobs(ctx context.Context) (int, error) {
	return countJobs(ctx, s.db)
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, id string) error {
	return deleteJob(ctx, s.db, id)
}

func (s *SQLiteStore) ClaimNextPending(ctx context.Context) (*job.Job, error) {
	var claimed *job.Job
	err := s.WithTx(ctx, func(tx Store) error {
		j, err := tx.ClaimNextPending(ctx)
		if err != nil {
			return err
		}
		claimed = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *SQLiteStore) UpdateProgress(ctx context.Context, id string, pagesDone, pagesTotal int) error {
	return updateProgress(ctx, s.db, id, pagesDone, pagesTotal)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, j *job.Job) error {
	return completeJob(ctx, s.db, j)
}

func (s *SQLiteStore) FailJob(ctx context.Context, id, message string) error {
	return failJob(ctx, s.db, id, message)
}

func (s *SQLiteStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, opts ListOptions) ([]job.Job, error) {
	return listFinishedBefore(ctx, s.db, cutoff, opts)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateJob(ctx context.Context, j *job.Job) error {
	return createJob(ctx, s.tx, j)
}

func (s *txSQLiteStore) GetJob(ctx context.Context, id string) (*job.Job, error) {
	return getJob(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListJobs(ctx context.Context, opts ListOptions) ([]job.Job, error) {
	return listJobs(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CountJobs(ctx context.Context) (int, error) {
	return countJobs(ctx, s.tx)
}

func (s *txSQLiteStore) DeleteJob(ctx context.Context, id string) error {
	return deleteJob(ctx, s.tx, id)
}

func (s *txSQLiteStore) ClaimNextPending(ctx context.Context) (*job.Job, error) {
	return claimNextPending(ctx, s.tx)
}

func (s *txSQLiteStore) UpdateProgress(ctx context.Context, id string, pagesDone, pagesTotal int) error {
	return updateProgress(ctx, s.tx, id, pagesDone, pagesTotal)
}

func (s *txSQLiteStore) CompleteJob(ctx context.Context, j *job.Job) error {
	return completeJob(ctx, s.tx, j)
}

func (s *txSQLiteStore) FailJob(ctx context.Context, id, message string) error {
	return failJob(ctx, s.tx, id, message)
}

func (s *txSQLiteStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, opts ListOptions) ([]job.Job, error) {
	return listFinishedBefore(ctx, s.tx, cutoff, opts)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createJob(ctx context.Context, exec executor, j *job.Job) error {
	query := `
		INSERT INTO jobs (
			id, filename, stored_name, format, status,
			pages_total, pages_done, shipment_count, invoice_count,
			output_path, error_message, created_at, started_at, finished_at
		) VALUES (
			:id, :filename, :stored_name, :format, :status,
			:pages_total, :pages_done, :shipment_count, :invoice_count,
			:output_path, :error_message, :created_at, :started_at, :finished_at
		)`

	row := map[string]any{
		"id":             j.ID,
		"filename":       j.Filename,
		"stored_name":    j.StoredName,
		"format":         string(j.Format),
		"status":         string(j.Status),
		"pages_total":    j.PagesTotal,
		"pages_done":     j.PagesDone,
		"shipment_count": j.ShipmentCount,
		"invoice_count":  j.InvoiceCount,
		"output_path":    j.OutputPath,
		"error_message":  j.Error,
		"created_at":     j.CreatedAt.Format(time.RFC3339),
		"started_at":     timePtr(j.StartedAt),
		"finished_at":    timePtr(j.FinishedAt),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: jobs.id") {
			return NewStoreError("CreateJob", "job", j.ID, "job with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateJob", "job", j.ID, err.Error(), err)
	}

	return nil
}

func getJob(ctx context.Context, exec executor, id string) (*job.Job, error) {
	query := `SELECT * FROM jobs WHERE id = ?`

	var row jobRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetJob", "job", id, "job not found", ErrNotFound)
		}
		return nil, NewStoreError("GetJob", "job", id, err.Error(), err)
	}

	return rowToJob(&row), nil
}

func listJobs(ctx context.Context, exec executor, opts ListOptions) ([]job.Job, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM jobs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	var rows []jobRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListJobs", "job", "", err.Error(), err)
	}

	jobs := make([]job.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, *rowToJob(&row))
	}

	return jobs, nil
}

func countJobs(ctx context.Context, exec executor) (int, error) {
	var count int
	err := exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM jobs`)
	if err != nil {
		return 0, NewStoreError("CountJobs", "job", "", err.Error(), err)
	}
	return count, nil
}

func deleteJob(ctx context.Context, exec executor, id string) error {
	query := `DELETE FROM jobs WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteJob", "job", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteJob", "job", id, "job not found", ErrNotFound)
	}

	return nil
}

func claimNextPending(ctx context.Context, exec executor) (*job.Job, error) {
	query := `SELECT * FROM jobs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`

	var row jobRow
	err := exec.GetContext(ctx, &row, query, string(job.StatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("ClaimNextPending", "job", "", "no pending job", ErrNotFound)
		}
		return nil, NewStoreError("ClaimNextPending", "job", "", err.Error(), err)
	}

	startedAt := time.Now().UTC().Format(time.RFC3339)
	update := `UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`
	result, err := exec.ExecContext(ctx, update, string(job.StatusProcessing), startedAt, row.ID, string(job.StatusPending))
	if err != nil {
		return nil, NewStoreError("ClaimNextPending", "job", row.ID, err.Error(), err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Another claimer got there first.
		return nil, NewStoreError("ClaimNextPending", "job", row.ID, "job already claimed", ErrNotFound)
	}

	row.Status = string(job.StatusProcessing)
	row.StartedAt = &startedAt
	return rowToJob(&row), nil
}

func updateProgress(ctx context.Context, exec executor, id string, pagesDone, pagesTotal int) error {
	query := `UPDATE jobs SET pages_done = ?, pages_total = ? WHERE id = ? AND status = ?`

	result, err := exec.ExecContext(ctx, query, pagesDone, pagesTotal, id, string(job.StatusProcessing))
	if err != nil {
		return NewStoreError("UpdateProgress", "job", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		if _, getErr := getJob(ctx, exec, id); getErr != nil {
			return getErr
		}
		return NewStoreError("UpdateProgress", "job", id, "job not processing", ErrInvalidTransition)
	}

	return nil
}

func completeJob(ctx context.Context, exec executor, j *job.Job) error {
	query := `
		UPDATE jobs SET
			status = ?,
			pages_total = ?,
			pages_done = ?,
			shipment_count = ?,
			invoice_count = ?,
			output_path = ?,
			finished_at = ?
		WHERE id = ? AND status = ?`

	finishedAt := time.Now().UTC()
	result, err := exec.ExecContext(ctx, query,
		string(job.StatusCompleted),
		j.PagesTotal, j.PagesDone, j.ShipmentCount, j.InvoiceCount,
		j.OutputPath, finishedAt.Format(time.RFC3339),
		j.ID, string(job.StatusProcessing))
	if err != nil {
		return NewStoreError("CompleteJob", "job", j.ID, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return transitionError(ctx, exec, "CompleteJob", j.ID, job.StatusCompleted)
	}

	j.Status = job.StatusCompleted
	j.FinishedAt = finishedAt
	return nil
}

func failJob(ctx context.Context, exec executor, id, message string) error {
	query := `UPDATE jobs SET status = ?, error_message = ?, finished_at = ? WHERE id = ? AND status IN (?, ?)`

	result, err := exec.ExecContext(ctx, query,
		string(job.StatusFailed), message, time.Now().UTC().Format(time.RFC3339),
		id, string(job.StatusPending), string(job.StatusProcessing))
	if err != nil {
		return NewStoreError("FailJob", "job", id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return transitionError(ctx, exec, "FailJob", id, job.StatusFailed)
	}

	return nil
}

// transitionError classifies a guarded status update that matched no row:
// the job is either gone or in a status the transition does not allow.
func transitionError(ctx context.Context, exec executor, op, id string, to job.Status) error {
	current, err := getJob(ctx, exec, id)
	if err != nil {
		return err
	}
	if !job.CanTransition(current.Status, to) {
		msg := fmt.Sprintf("cannot move %s job to %s", current.Status, to)
		return NewStoreError(op, "job", id, msg, ErrInvalidTransition)
	}
	return NewStoreError(op, "job", id, "job updated concurrently", ErrInvalidTransition)
}

func listFinishedBefore(ctx context.Context, exec executor, cutoff time.Time, opts ListOptions) ([]job.Job, error) {
	opts = opts.Normalize()
	query := `
		SELECT * FROM jobs
		WHERE status IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?
		ORDER BY finished_at ASC LIMIT ? OFFSET ?`

	var rows []jobRow
	err := exec.SelectContext(ctx, &rows, query,
		string(job.StatusCompleted), string(job.StatusFailed),
		cutoff.UTC().Format(time.RFC3339), opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListFinishedBefore", "job", "", err.Error(), err)
	}

	jobs := make([]job.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, *rowToJob(&row))
	}

	return jobs, nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

// rowToJob converts a database row to a job.Job.
func rowToJob(row *jobRow) *job.Job {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)

	j := &job.Job{
		ID:            row.ID,
		Filename:      row.Filename,
		StoredName:    row.StoredName,
		Format:        job.Format(row.Format),
		Status:        job.Status(row.Status),
		PagesTotal:    row.PagesTotal,
		PagesDone:     row.PagesDone,
		ShipmentCount: row.ShipmentCount,
		InvoiceCount:  row.InvoiceCount,
		OutputPath:    row.OutputPath,
		Error:         row.ErrorMessage,
		CreatedAt:     createdAt,
	}
	if row.StartedAt != nil && *row.StartedAt != "" {
		j.StartedAt, _ = time.Parse(time.RFC3339, *row.StartedAt)
	}
	if row.FinishedAt != nil && *row.FinishedAt != "" {
		j.FinishedAt, _ = time.Parse(time.RFC3339, *row.FinishedAt)
	}
	return j
}

// timePtr formats a time as RFC3339, nil when zero.
func timePtr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
