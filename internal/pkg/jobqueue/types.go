package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeRenderProject  JobType = "render_project"
	JobTypePublishProject JobType = "publish_project"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// MarkAsProcessing transitions the job into the processing state
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted transitions the job into the completed state
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed records the error and bumps the retry counter
func (j *Job) MarkAsFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errMsg
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying flags the job for another attempt
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// IsRetryable reports whether the job has retry budget left
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// RenderJobPayload contains the payload for AI render jobs
type RenderJobPayload struct {
	ProjectID      uint   `json:"project_id"`
	ProjectUUID    string `json:"project_uuid"`
	Prompt         string `json:"prompt"`
	SourceVideoRef string `json:"source_video_ref"`
}

// ToMap converts the payload to a map for storage
func (p RenderJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"project_id":       p.ProjectID,
		"project_uuid":     p.ProjectUUID,
		"prompt":           p.Prompt,
		"source_video_ref": p.SourceVideoRef,
	}
}

// RenderJobPayloadFromMap creates a payload from a map
func RenderJobPayloadFromMap(data map[string]interface{}) (*RenderJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload RenderJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// PublishJobPayload contains the payload for social publish jobs
type PublishJobPayload struct {
	ProjectID   uint   `json:"project_id"`
	ProjectUUID string `json:"project_uuid"`
	ShareCode   string `json:"share_code"`
}

// ToMap converts the payload to a map for storage
func (p PublishJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"project_id":   p.ProjectID,
		"project_uuid": p.ProjectUUID,
		"share_code":   p.ShareCode,
	}
}

// PublishJobPayloadFromMap creates a payload from a map
func PublishJobPayloadFromMap(data map[string]interface{}) (*PublishJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload PublishJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
