/**
 * Queue Consumer for the page-code scan worker
 *
 * Consumes scan jobs from the upload service's Redis queue and runs
 * them through the scan processor. Uses Asynq for queue management.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/divyamanand/campx-qr-client-sub001/internal/errors"
	"github.com/divyamanand/campx-qr-client-sub001/internal/processor"
)

// JobData represents the structure of a scan job from the upload service
type JobData struct {
	JobID         string                 `json:"jobId"`
	FileName      string                 `json:"fileName"`
	MimeType      string                 `json:"mimeType,omitempty"`
	FileSize      int64                  `json:"fileSize,omitempty"`
	FileURL       string                 `json:"fileUrl,omitempty"`
	FileBuffer    []byte                 `json:"fileBuffer,omitempty"`
	StructureJSON json.RawMessage        `json:"structure,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Consumer handles job consumption from the Redis queue
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.ScanProcessorInterface
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.ScanProcessorInterface
	ProcessingTimeout time.Duration // per-document timeout (default: 5 minutes)
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Client side is used for re-enqueueing and health probes
	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10, // Priority 10 for main queue
				"default":     1,  // Priority 1 for fallback
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, payload=%s, error=%v",
					task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		config:    cfg,
	}

	mux.HandleFunc("scan-document", consumer.handleScanDocument)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// handleScanDocument processes one scan job
func (c *Consumer) handleScanDocument(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var jobData JobData
	if err := json.Unmarshal(task.Payload(), &jobData); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	log.Printf("[Job %s] Scanning document: fileName=%s, size=%d bytes",
		jobData.JobID, jobData.FileName, jobData.FileSize)

	if err := c.processor.UpdateJobStatus(ctx, jobData.JobID, "processing", map[string]interface{}{
		"fileName": jobData.FileName,
	}); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to processing: %v", jobData.JobID, err)
	}

	// A stuck render or decode must never hold a worker slot forever
	timeout := 5 * time.Minute
	if c.config.ProcessingTimeout > 0 {
		timeout = c.config.ProcessingTimeout
	}

	log.Printf("[Job %s] Processing timeout set to: %v", jobData.JobID, timeout)

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.processor.ProcessDocument(processCtx, &processor.ProcessRequest{
		JobID:         jobData.JobID,
		FileName:      jobData.FileName,
		MimeType:      jobData.MimeType,
		FileSize:      jobData.FileSize,
		FileURL:       jobData.FileURL,
		FileBuffer:    jobData.FileBuffer,
		StructureJSON: jobData.StructureJSON,
		Metadata:      jobData.Metadata,
	})

	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			log.Printf("[Job %s] Scan timed out after %v (timeout: %v)", jobData.JobID, duration, timeout)

			timeoutErr := errors.NewProcessingTimeoutError(jobData.JobID, timeout, err)
			errorMap := timeoutErr.ToMap()

			if updateErr := c.processor.UpdateJobStatus(ctx, jobData.JobID, "failed", errorMap); updateErr != nil {
				log.Printf("[Job %s] Warning: Failed to update status to failed: %v", jobData.JobID, updateErr)
			}

			return fmt.Errorf("processing timeout: %w", timeoutErr)
		}

		log.Printf("[Job %s] Scan failed after %v: %v", jobData.JobID, duration, err)

		if updateErr := c.processor.UpdateJobStatus(ctx, jobData.JobID, "failed", map[string]interface{}{
			"error":          err.Error(),
			"processingTime": duration.Milliseconds(),
		}); updateErr != nil {
			log.Printf("[Job %s] Warning: Failed to update status to failed: %v", jobData.JobID, updateErr)
		}

		return fmt.Errorf("document scan failed: %w", err)
	}

	log.Printf("[Job %s] Scan completed in %v: pages=%d, complete=%d, codes=%d, review=%d",
		jobData.JobID, duration, result.PageCount, result.PagesComplete,
		result.CodesFound, result.PagesForReview)

	status := "completed"
	if result.PagesForReview > 0 {
		status = "needs_review"
	}

	if err := c.processor.UpdateJobStatus(ctx, jobData.JobID, status, map[string]interface{}{
		"fileName":       jobData.FileName,
		"pageCount":      result.PageCount,
		"pagesComplete":  result.PagesComplete,
		"codesFound":     result.CodesFound,
		"pagesForReview": result.PagesForReview,
		"processingTime": duration.Milliseconds(),
	}); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to %s: %v", jobData.JobID, status, err)
	}

	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"redisURL":    c.config.RedisURL,
	}
}
