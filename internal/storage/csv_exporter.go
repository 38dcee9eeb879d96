/**
 * CSV Exporter - On-disk batch log of per-page scan results
 *
 * Appends one row per finished page to a batch CSV so operators can
 * review a run without database access.
 */

package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
)

var csvHeader = []string{"timestamp", "file_name", "page", "complete", "codes", "attempts"}

// CSVExporter appends page results to a per-batch CSV file
type CSVExporter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVExporter creates (or truncates) the batch CSV in outputDir and
// writes the header row
func NewCSVExporter(outputDir, batchName string) (*CSVExporter, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(outputDir, fmt.Sprintf("%s.csv", batchName))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	writer.Flush()

	return &CSVExporter{path: path, file: file, writer: writer}, nil
}

// Path returns the CSV file location
func (e *CSVExporter) Path() string { return e.path }

// AppendPage writes one row for a finished page. Safe for concurrent use
// across page tasks.
func (e *CSVExporter) AppendPage(fileName string, result *scan.PageResult) error {
	if result == nil {
		return fmt.Errorf("page result is required")
	}

	codes := make([]string, 0, len(result.Codes))
	for _, c := range result.Codes {
		codes = append(codes, fmt.Sprintf("%s:%s", c.Type, c.Value))
	}

	row := []string{
		time.Now().UTC().Format(time.RFC3339),
		fileName,
		strconv.Itoa(result.PageNumber),
		strconv.FormatBool(result.Complete),
		strings.Join(codes, ";"),
		strconv.Itoa(len(result.Attempts)),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	e.writer.Flush()
	return e.writer.Error()
}

// Close flushes and closes the CSV file
func (e *CSVExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		e.file.Close()
		return err
	}
	return e.file.Close()
}
