package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitPage(t *testing.T) {
	var received ReviewSubmission
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/review/pages", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(ReviewResponse{Success: true, ReviewID: "rev-42"})
	}))
	defer server.Close()

	client := NewReviewClient(server.URL)
	reviewID, err := client.SubmitPage(context.Background(), &ReviewSubmission{
		JobID:      "job-1",
		FileName:   "sheet.pdf",
		PageNumber: 2,
		CodesFound: []ReviewCode{
			{Type: "QR", Value: "STU-001"},
			{Type: "BARCODE", Value: "23104567890", Partial: true},
		},
		TotalRequired: 3,
		Attempts:      9,
	})

	require.NoError(t, err)
	assert.Equal(t, "rev-42", reviewID)
	assert.Equal(t, "job-1", received.JobID)
	assert.Equal(t, 2, received.PageNumber)
	assert.Len(t, received.CodesFound, 2)
	assert.True(t, received.CodesFound[1].Partial)
}

func TestSubmitPageServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewReviewClient(server.URL)
	_, err := client.SubmitPage(context.Background(), &ReviewSubmission{JobID: "job-1", PageNumber: 1})
	assert.ErrorContains(t, err, "HTTP 503")
}

func TestSubmitPageValidation(t *testing.T) {
	client := NewReviewClient("http://localhost:0")

	_, err := client.SubmitPage(context.Background(), nil)
	assert.Error(t, err)

	_, err = client.SubmitPage(context.Background(), &ReviewSubmission{PageNumber: 1})
	assert.ErrorContains(t, err, "jobId")

	_, err = client.SubmitPage(context.Background(), &ReviewSubmission{JobID: "j"})
	assert.ErrorContains(t, err, "pageNumber")
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.NoError(t, NewReviewClient(server.URL).HealthCheck(context.Background()))
}
