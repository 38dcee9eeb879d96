/**
 * PostgreSQL Client for the page-code scan worker
 *
 * Handles database operations for scan job persistence and per-page
 * result storage.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a scan job status update
type JobUpdate struct {
	JobID            string
	Status           string
	FileName         string
	PageCount        int
	PagesComplete    int
	CodesFound       int
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// StoredPageResult is one persisted page outcome
type StoredPageResult struct {
	ID         string
	JobID      string
	FileName   string
	PageNumber int
	Complete   bool
	Codes      []scan.CodeHit
	Attempts   []scan.ScaleAttempt
	CreatedAt  time.Time
}

// completionRatio clamps and rounds pages_complete/page_count to 4
// decimal places; NUMERIC(5,4) columns reject excess float precision
func completionRatio(complete, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	ratio := float64(complete) / float64(total)
	if ratio < 0.0 {
		return 0.0
	}
	if ratio > 1.0 {
		return 1.0
	}
	return float64(int(ratio*10000+0.5)) / 10000
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus upserts job status in the database. The worker may see
// a job before the API created its record, so the first status update
// creates the row.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	ratio := completionRatio(update.PagesComplete, update.PageCount)

	query := `
		INSERT INTO pagescan.scan_jobs (
			id, file_name, status, page_count, pages_complete,
			codes_found, completion_ratio, processing_time_ms,
			error_code, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($2, ''), 'unknown.pdf'), $3,
			NULLIF($4, 0), NULLIF($5, 0), NULLIF($6, 0),
			NULLIF($7::NUMERIC(5,4), 0), NULLIF($8, 0),
			NULLIF($9, ''), NULLIF($10, ''),
			COALESCE($11::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			page_count = COALESCE(NULLIF(EXCLUDED.page_count, 0), pagescan.scan_jobs.page_count),
			pages_complete = COALESCE(NULLIF(EXCLUDED.pages_complete, 0), pagescan.scan_jobs.pages_complete),
			codes_found = COALESCE(NULLIF(EXCLUDED.codes_found, 0), pagescan.scan_jobs.codes_found),
			completion_ratio = COALESCE(NULLIF(EXCLUDED.completion_ratio::NUMERIC(5,4), 0), pagescan.scan_jobs.completion_ratio),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), pagescan.scan_jobs.processing_time_ms),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			metadata = COALESCE(EXCLUDED.metadata, pagescan.scan_jobs.metadata),
			file_name = COALESCE(EXCLUDED.file_name, pagescan.scan_jobs.file_name),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1
		update.FileName,         // $2
		update.Status,           // $3
		update.PageCount,        // $4
		update.PagesComplete,    // $5
		update.CodesFound,       // $6
		ratio,                   // $7
		update.ProcessingTimeMs, // $8
		update.ErrorCode,        // $9
		update.ErrorMessage,     // $10
		metadataJSON,            // $11
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// StorePageResult persists one finished page outcome
func (p *PostgresClient) StorePageResult(ctx context.Context, jobID, fileName string, result *scan.PageResult) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("job ID is required")
	}
	if result == nil {
		return "", fmt.Errorf("page result is required")
	}

	codesJSON, err := json.Marshal(result.Codes)
	if err != nil {
		return "", fmt.Errorf("failed to marshal codes: %w", err)
	}
	attemptsJSON, err := json.Marshal(result.Attempts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attempts: %w", err)
	}

	query := `
		INSERT INTO pagescan.page_results (
			id, job_id, file_name, page_number, complete,
			codes, attempts, duration_ms, created_at
		) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6::jsonb, $7::jsonb, $8, NOW())
		ON CONFLICT (job_id, page_number) DO UPDATE SET
			complete = EXCLUDED.complete,
			codes = EXCLUDED.codes,
			attempts = EXCLUDED.attempts,
			duration_ms = EXCLUDED.duration_ms
		RETURNING id
	`

	var resultID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		uuid.New().String(),
		jobID,
		fileName,
		result.PageNumber,
		result.Complete,
		codesJSON,
		attemptsJSON,
		result.Duration.Milliseconds(),
	).Scan(&resultID)

	if err != nil {
		return "", fmt.Errorf("failed to store page result (job=%s, page=%d): %w", jobID, result.PageNumber, err)
	}

	return resultID, nil
}

// GetPageResults retrieves all stored page results for a job, ordered by
// page number
func (p *PostgresClient) GetPageResults(ctx context.Context, jobID string) ([]StoredPageResult, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT id, job_id, file_name, page_number, complete, codes, attempts, created_at
		FROM pagescan.page_results
		WHERE job_id = $1::uuid
		ORDER BY page_number
	`

	rows, err := p.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page results: %w", err)
	}
	defer rows.Close()

	results := make([]StoredPageResult, 0)
	for rows.Next() {
		var r StoredPageResult
		var codesJSON, attemptsJSON []byte

		if err := rows.Scan(&r.ID, &r.JobID, &r.FileName, &r.PageNumber, &r.Complete, &codesJSON, &attemptsJSON, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page result row: %w", err)
		}
		if err := json.Unmarshal(codesJSON, &r.Codes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal codes: %w", err)
		}
		if err := json.Unmarshal(attemptsJSON, &r.Attempts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attempts: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate page results: %w", err)
	}

	return results, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
