/**
 * Progress Publisher for the page-code scan worker
 *
 * Publishes per-page scan progress events over Redis pub/sub so the
 * upload UI can stream live results. Publishing is fire-and-forget:
 * a dropped event never fails the page that produced it.
 */

package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
)

// PageEvent is the wire format for a single page progress update
type PageEvent struct {
	Event         string    `json:"event"`
	JobID         string    `json:"jobId"`
	FileName      string    `json:"fileName"`
	PageNumber    int       `json:"pageNumber"`
	CodesFound    int       `json:"codesFound"`
	TotalRequired int       `json:"totalRequired"`
	Complete      bool      `json:"complete"`
	Attempts      int       `json:"attempts"`
	Timestamp     time.Time `json:"timestamp"`
}

// JobEvent is the wire format for job-level status transitions
type JobEvent struct {
	Event      string    `json:"event"`
	JobID      string    `json:"jobId"`
	FileName   string    `json:"fileName,omitempty"`
	PageCount  int       `json:"pageCount,omitempty"`
	CodesFound int       `json:"codesFound,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher publishes scan progress to a Redis channel
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher creates a publisher connected to the given Redis URL
func NewPublisher(redisURL string, channel string) (*Publisher, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if channel == "" {
		channel = "pagescan:events"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Publisher{
		client:  client,
		channel: channel,
	}, nil
}

// PublishPage emits a page:scanned event for one finished page.
// Errors are logged, never returned to the caller.
func (p *Publisher) PublishPage(ctx context.Context, jobID, fileName string, result *scan.PageResult) {
	if result == nil {
		return
	}

	event := PageEvent{
		Event:         "page:scanned",
		JobID:         jobID,
		FileName:      fileName,
		PageNumber:    result.PageNumber,
		CodesFound:    len(result.Codes),
		TotalRequired: result.Expectation.TotalRequired(),
		Complete:      result.Complete,
		Attempts:      len(result.Attempts),
		Timestamp:     time.Now(),
	}

	p.publish(ctx, jobID, event)
}

// PublishJobStatus emits a job-level event (job:processing, job:completed, job:failed)
func (p *Publisher) PublishJobStatus(ctx context.Context, jobID, status, fileName string, pageCount, codesFound int, jobErr error) {
	event := JobEvent{
		Event:      fmt.Sprintf("job:%s", status),
		JobID:      jobID,
		FileName:   fileName,
		PageCount:  pageCount,
		CodesFound: codesFound,
		Timestamp:  time.Now(),
	}
	if jobErr != nil {
		event.Error = jobErr.Error()
	}

	p.publish(ctx, jobID, event)
}

func (p *Publisher) publish(ctx context.Context, jobID string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Job %s] WARNING: failed to marshal progress event: %v", jobID, err)
		return
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		log.Printf("[Job %s] WARNING: failed to publish progress event: %v", jobID, err)
	}
}

// Close releases the Redis connection
func (p *Publisher) Close() error {
	return p.client.Close()
}
