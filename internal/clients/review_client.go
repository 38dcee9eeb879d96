/**
 * Review Client for the page-code scan worker
 *
 * Submits pages that finished the scan ladder without reaching their
 * expected code count to the manual review service. Reviewers see the
 * page reference, what was found, and what is still missing, and key
 * the remaining codes in by hand.
 *
 * Submission is non-fatal by contract: the page result is already
 * persisted before a review submission is attempted.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/divyamanand/campx-qr-client-sub001/internal/logging"
)

// ReviewClient handles communication with the manual review service
type ReviewClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// ReviewCode is one decoded code included in a review submission
type ReviewCode struct {
	Type    string  `json:"type"`
	Value   string  `json:"value"`
	Scale   float64 `json:"scale,omitempty"`
	Phase   string  `json:"phase,omitempty"`
	Partial bool    `json:"partial,omitempty"`
}

// ReviewSubmission represents an incomplete page sent for manual review
type ReviewSubmission struct {
	JobID         string       `json:"jobId"`
	FileName      string       `json:"fileName"`
	PageNumber    int          `json:"pageNumber"`
	CodesFound    []ReviewCode `json:"codesFound"`
	TotalRequired int          `json:"totalRequired"`
	Attempts      int          `json:"attempts"`
	Notes         string       `json:"notes,omitempty"`
}

// ReviewResponse is the review service's acknowledgement
type ReviewResponse struct {
	Success  bool   `json:"success"`
	ReviewID string `json:"reviewId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewReviewClient creates a new review client
func NewReviewClient(baseURL string) *ReviewClient {
	return &ReviewClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.NewLogger("ReviewClient"),
	}
}

// HealthCheck verifies the review service is available
func (c *ReviewClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("review service health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("review service health check returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// SubmitPage sends one incomplete page to the review queue.
// Returns the review ID assigned by the service.
func (c *ReviewClient) SubmitPage(ctx context.Context, submission *ReviewSubmission) (string, error) {
	if submission == nil {
		return "", fmt.Errorf("submission is required")
	}
	if submission.JobID == "" {
		return "", fmt.Errorf("jobId is required: identifies the scan job this page belongs to")
	}
	if submission.PageNumber < 1 {
		return "", fmt.Errorf("pageNumber must be >= 1, got %d", submission.PageNumber)
	}

	c.logger.Info("Submitting page for review",
		"file", submission.FileName,
		"page", submission.PageNumber,
		"found", len(submission.CodesFound),
		"required", submission.TotalRequired)

	payload, err := json.Marshal(submission)
	if err != nil {
		return "", fmt.Errorf("failed to marshal review submission: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/review/pages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request to review service failed after %v: %w", time.Since(startTime), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("review submission failed with HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result ReviewResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse review response: %w (raw response: %s)", err, string(respBody))
	}

	if !result.Success {
		return "", fmt.Errorf("review submission returned success=false: %s", result.Error)
	}

	c.logger.Info("Page queued for review",
		"reviewId", result.ReviewID,
		"duration", time.Since(startTime))

	return result.ReviewID, nil
}
