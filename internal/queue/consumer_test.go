package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobDataUnmarshal(t *testing.T) {
	payload := []byte(`{
		"jobId": "job-123",
		"fileName": "batch-07.pdf",
		"mimeType": "application/pdf",
		"fileSize": 204800,
		"fileUrl": "https://uploads.example.com/batch-07.pdf",
		"structure": {"pages":[{"page":1,"codes":{"QR":1,"BARCODE":2}}]},
		"metadata": {"batch": "2026-08-29"}
	}`)

	var job JobData
	require.NoError(t, json.Unmarshal(payload, &job))

	assert.Equal(t, "job-123", job.JobID)
	assert.Equal(t, "batch-07.pdf", job.FileName)
	assert.Equal(t, int64(204800), job.FileSize)

	// The structure document passes through verbatim for the processor to parse
	assert.JSONEq(t, `{"pages":[{"page":1,"codes":{"QR":1,"BARCODE":2}}]}`, string(job.StructureJSON))
}

func TestJobDataUnmarshalWithoutStructure(t *testing.T) {
	var job JobData
	require.NoError(t, json.Unmarshal([]byte(`{"jobId":"j","fileName":"f.pdf"}`), &job))
	assert.Empty(t, job.StructureJSON)
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer(&ConsumerConfig{})
	assert.ErrorContains(t, err, "RedisURL is required")

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379"})
	assert.ErrorContains(t, err, "QueueName is required")

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "pagescan:jobs"})
	assert.ErrorContains(t, err, "Processor is required")
}
