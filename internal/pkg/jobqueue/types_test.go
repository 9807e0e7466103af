package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTypeConstants(t *testing.T) {
	assert.Equal(t, "render_project", string(JobTypeRenderProject))
	assert.Equal(t, "publish_project", string(JobTypePublishProject))
}

func TestJobStatusTransitions(t *testing.T) {
	job := &Job{
		Status:     JobStatusPending,
		MaxRetries: DefaultMaxRetries,
	}

	beforeTime := time.Now()

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.NotNil(t, job.ProcessedAt)
	assert.False(t, job.UpdatedAt.Before(beforeTime))

	job.MarkAsFailed("render service unreachable")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "render service unreachable", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
}

func TestJobRetryBudget(t *testing.T) {
	job := &Job{Status: JobStatusFailed, RetryCount: 2, MaxRetries: 3}
	assert.True(t, job.IsRetryable())

	job.RetryCount = 3
	assert.False(t, job.IsRetryable())

	// Only failed jobs are retry candidates.
	job.RetryCount = 0
	job.Status = JobStatusCompleted
	assert.False(t, job.IsRetryable())
}

func TestRenderJobPayloadRoundTrip(t *testing.T) {
	payload := RenderJobPayload{
		ProjectID:      42,
		ProjectUUID:    "a2a2e1cb-3a4e-43f4-8c52-6cf7806ff628",
		Prompt:         "cut to the beat, add captions",
		SourceVideoRef: "uploads/raw/42.mp4",
	}

	restored, err := RenderJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}

func TestPublishJobPayloadRoundTrip(t *testing.T) {
	payload := PublishJobPayload{
		ProjectID:   42,
		ProjectUUID: "a2a2e1cb-3a4e-43f4-8c52-6cf7806ff628",
		ShareCode:   "Xy12abCD",
	}

	restored, err := PublishJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}
