package jobqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/JonasKleint/ReelKit/app/models"
	"github.com/JonasKleint/ReelKit/app/repository"
	"github.com/JonasKleint/ReelKit/internal/pkg/cache"
	"github.com/JonasKleint/ReelKit/internal/pkg/env"
)

var renderHTTPClient = &http.Client{Timeout: 60 * time.Second}

// processRenderJob hands a project to the external AI render pipeline and
// tracks its status. The pipeline itself (upload, model inference,
// rendering) runs outside this service.
func (q *Queue) processRenderJob(ctx context.Context, job *Job) error {
	payload, err := RenderJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid render payload: %w", err)
	}

	repo := repository.GetGlobalFactory().GetProjectRepository()
	project, err := repo.GetByID(payload.ProjectID)
	if err != nil {
		return fmt.Errorf("project %d not found: %w", payload.ProjectID, err)
	}

	if project.Status == models.ProjectStatusRendered || project.Status == models.ProjectStatusPublished {
		log.Infof("[JobQueue] Project %s already rendered, skipping", project.UUID)
		return nil
	}

	project.Status = models.ProjectStatusEditing
	if err := repo.Update(project); err != nil {
		return fmt.Errorf("failed to mark project %s editing: %w", project.UUID, err)
	}

	renderURL := env.GetEnv("RENDER_SERVICE_URL", "")
	if renderURL != "" {
		if err := postRenderRequest(ctx, renderURL, payload); err != nil {
			return err
		}
	} else {
		// No pipeline configured (local/dev): complete the render inline.
		log.Warnf("[JobQueue] RENDER_SERVICE_URL not set, marking project %s rendered directly", project.UUID)
	}

	project.Status = models.ProjectStatusRendered
	if err := repo.Update(project); err != nil {
		return fmt.Errorf("failed to mark project %s rendered: %w", project.UUID, err)
	}

	return nil
}

func postRenderRequest(ctx context.Context, renderURL string, payload *RenderJobPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, renderURL+"/render", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := renderHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("render service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("render service returned status %d", resp.StatusCode)
	}

	return nil
}

// processPublishJob finishes a share request: the controller already
// assigned the share code, this step flips the project to published once
// the social push went out.
func (q *Queue) processPublishJob(ctx context.Context, job *Job) error {
	payload, err := PublishJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid publish payload: %w", err)
	}

	repo := repository.GetGlobalFactory().GetProjectRepository()
	project, err := repo.GetByID(payload.ProjectID)
	if err != nil {
		return fmt.Errorf("project %d not found: %w", payload.ProjectID, err)
	}

	if project.Status == models.ProjectStatusPublished {
		log.Infof("[JobQueue] Project %s already published, skipping", project.UUID)
		return nil
	}

	publishURL := env.GetEnv("PUBLISH_SERVICE_URL", "")
	if publishURL != "" {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal publish request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL+"/publish", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build publish request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := renderHTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("publish service unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("publish service returned status %d", resp.StatusCode)
		}
	} else {
		log.Warnf("[JobQueue] PUBLISH_SERVICE_URL not set, marking project %s published directly", project.UUID)
	}

	project.Status = models.ProjectStatusPublished
	if err := repo.Update(project); err != nil {
		return fmt.Errorf("failed to mark project %s published: %w", project.UUID, err)
	}

	// Drop the cached share view so visitors see the new status.
	if project.ShareCode != "" {
		if err := cache.Delete("share:code:" + project.ShareCode); err != nil {
			log.Warnf("[JobQueue] Failed to invalidate share cache for %s: %v", project.UUID, err)
		}
	}

	return nil
}
