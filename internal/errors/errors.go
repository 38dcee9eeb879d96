package errors

import (
	"fmt"
	"time"
)

/**
 * Custom error types for the page-code scan worker
 *
 * Render and decode failures are per-attempt and recovered locally; an
 * incomplete result is a terminal, reportable-but-non-fatal page outcome.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Per-attempt errors, always recovered locally
	ErrorRenderFailed ErrorCode = "RENDER_FAILED"
	ErrorDecodeFailed ErrorCode = "DECODE_FAILED"

	// Terminal page outcome: ladder exhausted without completeness
	ErrorIncompleteResult ErrorCode = "INCOMPLETE_RESULT"

	// Processing errors
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ScanError represents a structured scan error
type ScanError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewRenderFailedError(jobID string, pageNumber int, scale float64, cause error) *ScanError {
	return &ScanError{
		Code:      ErrorRenderFailed,
		Message:   fmt.Sprintf("Failed to rasterize page %d at scale %.2f", pageNumber, scale),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page":  pageNumber,
			"scale": scale,
		},
		Cause: cause,
	}
}

func NewDecodeFailedError(jobID string, pageNumber int, cause error) *ScanError {
	return &ScanError{
		Code:      ErrorDecodeFailed,
		Message:   fmt.Sprintf("Decode rejected image for page %d", pageNumber),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page": pageNumber,
		},
		Cause: cause,
	}
}

func NewIncompleteResultError(jobID string, pageNumber int, found int, required int) *ScanError {
	return &ScanError{
		Code:      ErrorIncompleteResult,
		Message:   fmt.Sprintf("Page %d exhausted all attempts with %d of %d expected codes", pageNumber, found, required),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page":     pageNumber,
			"found":    found,
			"required": required,
		},
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ScanError {
	return &ScanError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewUnsupportedFormatError(jobID string, fileName string) *ScanError {
	return &ScanError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", fileName),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"file_name": fileName,
		},
	}
}

func NewStorageFailedError(jobID string, cause error) *ScanError {
	return &ScanError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store scan results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ScanError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
