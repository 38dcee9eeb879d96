/**
 * Storage Manager for the page-code scan worker
 *
 * Coordinates result persistence across PostgreSQL (queryable job and
 * page records) and the on-disk batch CSV. PostgreSQL is authoritative;
 * a CSV write failure never fails the page.
 */

package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
)

// StorageManager coordinates PostgreSQL and CSV output
type StorageManager struct {
	postgres *PostgresClient
	csv      *CSVExporter
}

// NewStorageManager creates a new storage manager. The CSV exporter is
// optional: pass an empty csvDir to disable on-disk logging.
func NewStorageManager(postgresURL string, csvDir string, batchName string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	var csvExporter *CSVExporter
	if csvDir != "" {
		csvExporter, err = NewCSVExporter(csvDir, batchName)
		if err != nil {
			postgres.Close() // Cleanup on failure
			return nil, fmt.Errorf("failed to initialize CSV exporter: %w", err)
		}
	}

	return &StorageManager{
		postgres: postgres,
		csv:      csvExporter,
	}, nil
}

// StorePageResult persists one finished page to PostgreSQL and appends
// it to the batch CSV
func (sm *StorageManager) StorePageResult(ctx context.Context, jobID, fileName string, result *scan.PageResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("page result is required")
	}

	resultID, err := sm.postgres.StorePageResult(ctx, jobID, fileName, result)
	if err != nil {
		return "", err
	}

	if sm.csv != nil {
		if err := sm.csv.AppendPage(fileName, result); err != nil {
			// Non-fatal: the database row is the source of truth.
			log.Printf("[Job %s] WARNING: failed to append page %d to CSV: %v", jobID, result.PageNumber, err)
		}
	}

	return resultID, nil
}

// UpdateJobStatus updates the scan job record
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetPageResults retrieves the stored page results for a job
func (sm *StorageManager) GetPageResults(ctx context.Context, jobID string) ([]StoredPageResult, error) {
	return sm.postgres.GetPageResults(ctx, jobID)
}

// Ping checks connectivity of the authoritative store
func (sm *StorageManager) Ping(ctx context.Context) error {
	return sm.postgres.Ping(ctx)
}

// Close releases both backends
func (sm *StorageManager) Close() error {
	var firstErr error
	if sm.csv != nil {
		if err := sm.csv.Close(); err != nil {
			firstErr = err
		}
	}
	if err := sm.postgres.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
