/**
 * Scan Processor for the page-code scan worker
 *
 * Drives one uploaded document through the full pipeline:
 * - Load the file (buffer or URL download with retry)
 * - Open it with MuPDF and resolve per-page code expectations
 * - Fan pages out over a bounded worker pool, one scanner run per page
 * - Persist every page result, stream progress, and queue incomplete
 *   pages for manual review (with OCR-recovered digit candidates)
 *
 * Files are processed one at a time; concurrency lives at the page level.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/divyamanand/campx-qr-client-sub001/internal/clients"
	"github.com/divyamanand/campx-qr-client-sub001/internal/decode"
	"github.com/divyamanand/campx-qr-client-sub001/internal/errors"
	"github.com/divyamanand/campx-qr-client-sub001/internal/progress"
	"github.com/divyamanand/campx-qr-client-sub001/internal/render"
	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
	"github.com/divyamanand/campx-qr-client-sub001/internal/storage"
	"github.com/divyamanand/campx-qr-client-sub001/internal/structure"
)

// ScanProcessorInterface defines the interface for document scanning
type ScanProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	StorageManager *storage.StorageManager
	Publisher      *progress.Publisher   // optional: live progress events
	ReviewClient   *clients.ReviewClient // optional: manual review hand-off
	Structure      *structure.Structure  // default expectations when a job carries none
	LadderConfig   scan.LadderConfig
	PageWorkers    int
	MaxFileSize    int64
	OCRRecovery    bool
}

// ProcessRequest represents a document scan request
type ProcessRequest struct {
	JobID         string
	FileName      string
	MimeType      string
	FileSize      int64
	FileURL       string
	FileBuffer    []byte
	StructureJSON []byte // per-job expected-codes document, overrides the configured one
	Metadata      map[string]interface{}
}

// ProcessResult represents the scan outcome for one document
type ProcessResult struct {
	PageCount        int
	PagesComplete    int
	CodesFound       int
	PagesForReview   int
	ProcessingTimeMs int64
}

// ScanProcessor handles document scanning
type ScanProcessor struct {
	config       *ProcessorConfig
	storage      *storage.StorageManager
	publisher    *progress.Publisher
	reviewClient *clients.ReviewClient
	decoder      *decode.ZXingDecoder
	recovery     *OCRRecovery
	pool         *ants.PoolWithFunc
}

// pageScanParam carries one page through the worker pool
type pageScanParam struct {
	ctx      context.Context
	proc     *ScanProcessor
	doc      *render.Document
	req      *ProcessRequest
	page     int
	expected scan.PageExpectation
	results  []*scan.PageResult
	errs     []error
	wg       *sync.WaitGroup
}

// NewScanProcessor creates a new scan processor
func NewScanProcessor(cfg *ProcessorConfig) (*ScanProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.StorageManager == nil {
		return nil, fmt.Errorf("storage manager is required")
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = 4
	}

	p := &ScanProcessor{
		config:       cfg,
		storage:      cfg.StorageManager,
		publisher:    cfg.Publisher,
		reviewClient: cfg.ReviewClient,
		decoder:      decode.NewZXingDecoder(),
		recovery:     NewOCRRecovery(cfg.OCRRecovery),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PageWorkers, func(args interface{}) {
		param, ok := args.(*pageScanParam)
		if !ok {
			panic("page scan pool args type error")
		}
		defer param.wg.Done()
		result, err := param.proc.scanOnePage(param.ctx, param.doc, param.req, param.page, param.expected)
		param.results[param.page-1] = result
		param.errs[param.page-1] = err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create page scan pool: %w", err)
	}
	p.pool = pool

	if cfg.ReviewClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cfg.ReviewClient.HealthCheck(ctx); err != nil {
			log.Printf("WARNING: Review service health check failed: %v. Incomplete pages will only be flagged in the database.", err)
		}
	}

	return p, nil
}

// Close releases the page worker pool
func (p *ScanProcessor) Close() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// ProcessDocument scans a document through the complete pipeline
func (p *ScanProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	startTime := time.Now()
	log.Printf("[Job %s] Starting scan pipeline for %s", req.JobID, req.FileName)

	if p.publisher != nil {
		p.publisher.PublishJobStatus(ctx, req.JobID, "processing", req.FileName, 0, 0, nil)
	}

	// Step 1: Load file
	log.Printf("[Job %s] Step 1: Loading file (%d bytes)", req.JobID, req.FileSize)
	fileData, err := p.loadFile(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	// Step 1.5: Verify the format from magic bytes. Upload front-ends
	// frequently send application/octet-stream.
	detectedMime := detectMimeTypeFromMagicBytes(fileData)
	if detectedMime != "" && detectedMime != req.MimeType {
		log.Printf("[Job %s] Corrected MIME type from '%s' to '%s' (magic byte detection)",
			req.JobID, req.MimeType, detectedMime)
		req.MimeType = detectedMime
	}
	if !supportedMimeType(req.MimeType) {
		return nil, errors.NewUnsupportedFormatError(req.JobID, req.FileName)
	}

	// Step 2: Open the document
	log.Printf("[Job %s] Step 2: Opening document (mime: %s)", req.JobID, req.MimeType)
	doc, err := render.OpenBytes(fileData)
	if err != nil {
		return nil, errors.NewRenderFailedError(req.JobID, 0, 0, err)
	}
	defer doc.Close()

	pageCount := doc.PageCount()
	log.Printf("[Job %s] Document opened: %d page(s)", req.JobID, pageCount)

	// Step 3: Resolve the expected-codes structure
	st, err := p.resolveStructure(req)
	if err != nil {
		return nil, fmt.Errorf("invalid structure document: %w", err)
	}
	for _, page := range st.PageNumbers() {
		if page > pageCount {
			log.Printf("[Job %s] WARNING: structure references page %d but document has %d page(s)",
				req.JobID, page, pageCount)
		}
	}

	// Step 4: Scan pages over the worker pool
	log.Printf("[Job %s] Step 4: Scanning %d page(s) (workers=%d)", req.JobID, pageCount, p.config.PageWorkers)
	results := make([]*scan.PageResult, pageCount)
	errs := make([]error, pageCount)
	var wg sync.WaitGroup

	for page := 1; page <= pageCount; page++ {
		wg.Add(1)
		param := &pageScanParam{
			ctx:      ctx,
			proc:     p,
			doc:      doc,
			req:      req,
			page:     page,
			expected: st.Resolve(page),
			results:  results,
			errs:     errs,
			wg:       &wg,
		}
		if err := p.pool.Invoke(param); err != nil {
			wg.Done()
			errs[page-1] = fmt.Errorf("failed to submit page %d: %w", page, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 5: Aggregate document totals
	result := &ProcessResult{PageCount: pageCount}
	var firstErr error
	for i, pageResult := range results {
		if errs[i] != nil && pageResult == nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		if pageResult == nil {
			continue
		}
		result.CodesFound += len(pageResult.Codes)
		if pageResult.Complete {
			result.PagesComplete++
		} else {
			result.PagesForReview++
		}
	}
	if firstErr != nil && result.PagesComplete == 0 && result.CodesFound == 0 {
		return nil, firstErr
	}

	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	if p.publisher != nil {
		status := "completed"
		if result.PagesForReview > 0 {
			status = "needs_review"
		}
		p.publisher.PublishJobStatus(ctx, req.JobID, status, req.FileName, result.PageCount, result.CodesFound, nil)
	}

	log.Printf("[Job %s] Scan pipeline complete: pages=%d, complete=%d, codes=%d, review=%d, duration=%dms",
		req.JobID, result.PageCount, result.PagesComplete, result.CodesFound,
		result.PagesForReview, result.ProcessingTimeMs)

	return result, nil
}

// scanOnePage runs the scanner for a single page and handles its
// persistence, progress event, OCR recovery and review hand-off
func (p *ScanProcessor) scanOnePage(ctx context.Context, doc *render.Document, req *ProcessRequest, page int, expected scan.PageExpectation) (*scan.PageResult, error) {
	scanner, err := scan.NewScanner(doc, p.decoder, p.config.LadderConfig)
	if err != nil {
		return nil, err
	}

	result, scanErr := scanner.ScanPage(ctx, page, expected)
	if result == nil {
		return nil, scanErr
	}
	if scanErr != nil && scanErr != scan.ErrNoCodesFound {
		return result, scanErr
	}

	var recovered []string
	if !result.Complete {
		incompleteErr := errors.NewIncompleteResultError(req.JobID, page, len(result.Codes), result.Expectation.TotalRequired())
		log.Printf("[Job %s] %v", req.JobID, incompleteErr)
		recovered = p.recoverDigits(ctx, doc, page, result)
	}

	if _, err := p.storage.StorePageResult(ctx, req.JobID, req.FileName, result); err != nil {
		log.Printf("[Job %s] ERROR: failed to store page %d result: %v", req.JobID, page, err)
		return result, errors.NewStorageFailedError(req.JobID, err)
	}

	if p.publisher != nil {
		p.publisher.PublishPage(ctx, req.JobID, req.FileName, result)
	}

	if !result.Complete && p.reviewClient != nil {
		p.submitForReview(ctx, req, result, recovered)
	}

	return result, nil
}

// recoverDigits re-renders an incomplete page once and runs the OCR
// recovery tier over it. Failures degrade to an empty candidate list.
func (p *ScanProcessor) recoverDigits(ctx context.Context, doc *render.Document, page int, result *scan.PageResult) []string {
	if p.recovery == nil || !p.config.OCRRecovery {
		return nil
	}

	img, err := doc.RenderPage(ctx, page, p.config.LadderConfig.InitialScale, false)
	if err != nil {
		log.Printf("[Page %d] WARNING: OCR recovery render failed: %v", page, err)
		return nil
	}

	candidates, err := p.recovery.RecoverDigits(ctx, img, result)
	if err != nil {
		log.Printf("[Page %d] WARNING: OCR recovery failed: %v", page, err)
		return nil
	}
	return candidates
}

// submitForReview queues an incomplete page for manual review. Non-fatal.
func (p *ScanProcessor) submitForReview(ctx context.Context, req *ProcessRequest, result *scan.PageResult, recovered []string) {
	codes := make([]clients.ReviewCode, 0, len(result.Codes)+len(recovered))
	for _, c := range result.Codes {
		codes = append(codes, clients.ReviewCode{
			Type:  string(c.Type),
			Value: c.Value,
		})
	}
	for _, value := range recovered {
		codes = append(codes, clients.ReviewCode{
			Type:    string(scan.CodeTypeBarcode),
			Value:   value,
			Partial: true,
		})
	}

	submission := &clients.ReviewSubmission{
		JobID:         req.JobID,
		FileName:      req.FileName,
		PageNumber:    result.PageNumber,
		CodesFound:    codes,
		TotalRequired: result.Expectation.TotalRequired(),
		Attempts:      len(result.Attempts),
	}
	if len(recovered) > 0 {
		submission.Notes = fmt.Sprintf("%d candidate value(s) read from printed digit lines", len(recovered))
	}

	if _, err := p.reviewClient.SubmitPage(ctx, submission); err != nil {
		log.Printf("[Job %s] WARNING: failed to submit page %d for review: %v", req.JobID, result.PageNumber, err)
	}
}

// resolveStructure picks the expected-codes document for this job:
// the job's own structure when present, otherwise the configured default,
// otherwise empty expectations (every page trivially complete).
func (p *ScanProcessor) resolveStructure(req *ProcessRequest) (*structure.Structure, error) {
	if len(req.StructureJSON) > 0 {
		return structure.Parse(req.StructureJSON)
	}
	if p.config.Structure != nil {
		return p.config.Structure, nil
	}
	log.Printf("[Job %s] WARNING: no structure configured, pages will not be checked for completeness", req.JobID)
	return structure.Parse([]byte(`{"pages":[]}`))
}

// UpdateJobStatus updates job status in the database
func (p *ScanProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error {
	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	if metadata != nil {
		if fileName, ok := metadata["fileName"].(string); ok {
			update.FileName = fileName
		}
		if pageCount, ok := metadata["pageCount"].(int); ok {
			update.PageCount = pageCount
		}
		if pagesComplete, ok := metadata["pagesComplete"].(int); ok {
			update.PagesComplete = pagesComplete
		}
		if codesFound, ok := metadata["codesFound"].(int); ok {
			update.CodesFound = codesFound
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			update.ErrorCode = "PROCESSING_ERROR"
			update.ErrorMessage = errorMsg
		}
	}

	return p.storage.UpdateJobStatus(ctx, update)
}

// loadFile loads file from URL or buffer
func (p *ScanProcessor) loadFile(ctx context.Context, req *ProcessRequest) ([]byte, error) {
	if len(req.FileBuffer) > 0 {
		log.Printf("[Job %s] Using file buffer (%d bytes)", req.JobID, len(req.FileBuffer))
		return req.FileBuffer, nil
	}

	if req.FileURL != "" {
		log.Printf("[Job %s] Downloading file from URL: %s (fileSize=%d)", req.JobID, req.FileURL, req.FileSize)
		fileData, err := p.downloadFileFromURL(ctx, req.JobID, req.FileURL, req.FileSize)
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		log.Printf("[Job %s] File downloaded successfully (%d bytes)", req.JobID, len(fileData))
		return fileData, nil
	}

	return nil, fmt.Errorf("no file source provided (buffer or URL)")
}

// downloadFileFromURL downloads a file from a URL with exponential backoff
func (p *ScanProcessor) downloadFileFromURL(ctx context.Context, jobID string, fileURL string, expectedSize int64) ([]byte, error) {
	const (
		maxRetries       = 5
		initialBackoffMs = 1000
		maxBackoffMs     = 32000
	)

	client := &http.Client{
		Timeout: 10 * time.Minute,
	}

	backoff := func(attempt int) error {
		backoffMs := initialBackoffMs * int(math.Pow(2, float64(attempt-1)))
		if backoffMs > maxBackoffMs {
			backoffMs = maxBackoffMs
		}
		log.Printf("[Job %s] Retrying in %dms...", jobID, backoffMs)
		select {
		case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry backoff")
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("[Job %s] Download attempt %d/%d from: %s", jobID, attempt, maxRetries, fileURL)

		httpReq, err := http.NewRequestWithContext(ctx, "GET", fileURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create download request: %w", err)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			lastErr = err
			log.Printf("[Job %s] Download attempt %d failed: %v", jobID, attempt, err)
			if attempt < maxRetries {
				if berr := backoff(attempt); berr != nil {
					return nil, berr
				}
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			log.Printf("[Job %s] Download attempt %d failed: %v", jobID, attempt, lastErr)
			if attempt < maxRetries {
				if berr := backoff(attempt); berr != nil {
					return nil, berr
				}
			}
			continue
		}

		contentLength := resp.ContentLength
		if contentLength > 0 && expectedSize > 0 && contentLength != expectedSize {
			log.Printf("[Job %s] WARNING: Content-Length mismatch. Expected=%d, Got=%d",
				jobID, expectedSize, contentLength)
		}

		if p.config.MaxFileSize > 0 && contentLength > p.config.MaxFileSize {
			resp.Body.Close()
			return nil, fmt.Errorf("file size exceeds maximum: %d > %d bytes",
				contentLength, p.config.MaxFileSize)
		}

		maxReadBytes := p.config.MaxFileSize
		if maxReadBytes == 0 {
			maxReadBytes = 1 * 1024 * 1024 * 1024 // 1GB safety limit
		}

		fileData, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			log.Printf("[Job %s] Failed to read response body: %v", jobID, err)
			if attempt < maxRetries {
				if berr := backoff(attempt); berr != nil {
					return nil, berr
				}
			}
			continue
		}

		log.Printf("[Job %s] Download successful on attempt %d: %d bytes", jobID, attempt, len(fileData))
		return fileData, nil
	}

	return nil, fmt.Errorf("failed to download file after %d attempts: %w", maxRetries, lastErr)
}

// supportedMimeType reports whether MuPDF can open the format
func supportedMimeType(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "image/png", "image/jpeg", "image/tiff", "image/bmp":
		return true
	}
	return strings.HasPrefix(mimeType, "image/")
}

// detectMimeTypeFromMagicBytes detects the actual MIME type from file
// content magic bytes. Essential when upload sources send generic
// "application/octet-stream".
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// TIFF: 'I' 'I' 0x2A 0x00 (little-endian) or 'M' 'M' 0x00 0x2A (big-endian)
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	return ""
}
