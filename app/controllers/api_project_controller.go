package controllers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/JonasKleint/ReelKit/app/models"
	"github.com/JonasKleint/ReelKit/app/repository"
	"github.com/JonasKleint/ReelKit/internal/pkg/cache"
	"github.com/JonasKleint/ReelKit/internal/pkg/database"
	"github.com/JonasKleint/ReelKit/internal/pkg/env"
	"github.com/JonasKleint/ReelKit/internal/pkg/jobqueue"
	"github.com/JonasKleint/ReelKit/internal/pkg/ledger"
	counter "github.com/JonasKleint/ReelKit/internal/pkg/metrics/counter"
	"github.com/JonasKleint/ReelKit/internal/pkg/shortener"
	"github.com/JonasKleint/ReelKit/internal/pkg/usercontext"
)

type createProjectRequest struct {
	Title          string `json:"title"`
	Prompt         string `json:"prompt"`
	SourceVideoRef string `json:"source_video_ref"`
}

// HandleCreateProject creates an editing project and charges one credit for
// it unless the user has an active subscription. When the balance is empty
// the project is rolled back and the client gets a payment-required
// response so it can show the upsell.
func HandleCreateProject(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	var req createProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "title is required")
	}

	project := &models.Project{
		UserID:         userID,
		Title:          strings.TrimSpace(req.Title),
		Prompt:         req.Prompt,
		SourceVideoRef: req.SourceVideoRef,
		Status:         models.ProjectStatusDraft,
	}

	projectRepo := repository.GetGlobalFactory().GetProjectRepository()
	if err := projectRepo.Create(project); err != nil {
		fiberlog.Errorf("project: create failed for user %d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create project")
	}

	svc := ledger.NewServiceFromDB(database.GetDB())
	result, err := svc.TryDebit(c.UserContext(), userID, project.UUID)
	if err != nil {
		// The project must not exist without a paid-for (or entitled) edit.
		if delErr := projectRepo.Delete(project.ID); delErr != nil {
			fiberlog.Errorf("project: rollback of %s failed: %v", project.UUID, delErr)
		}
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			return jsonError(c, fiber.StatusPaymentRequired, "insufficient_credits", "no credits left, subscribe for unlimited edits")
		}
		fiberlog.Errorf("project: debit failed for user %d project %s: %v", userID, project.UUID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not charge credit")
	}

	if _, err := jobqueue.EnqueueRenderJob(project); err != nil {
		fiberlog.Errorf("project: failed to enqueue render for %s: %v", project.UUID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"project":           project,
		"charged":           result.Charged,
		"remaining_credits": result.RemainingCredits,
	})
}

// HandleListProjects returns the authenticated user's projects.
func HandleListProjects(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	const projectsPerPage = 25
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	projectRepo := repository.GetGlobalFactory().GetProjectRepository()
	projects, err := projectRepo.GetByUserID(userID, (page-1)*projectsPerPage, projectsPerPage)
	if err != nil {
		fiberlog.Errorf("project: list failed for user %d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load projects")
	}

	total, err := projectRepo.CountByUserID(userID)
	if err != nil {
		fiberlog.Errorf("project: count failed for user %d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load projects")
	}

	return c.JSON(fiber.Map{
		"projects": projects,
		"page":     page,
		"total":    total,
	})
}

// HandleGetProject returns a single project by UUID, scoped to the owner.
func HandleGetProject(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	project, err := loadOwnedProject(c.Params("uuid"), userID)
	if err != nil {
		return projectLookupError(c, err)
	}

	return c.JSON(project)
}

// HandleDebitProject charges one credit against an existing project, for
// re-running the AI edit on the same project. Entitled subscribers pass
// through without a charge.
func HandleDebitProject(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	project, err := loadOwnedProject(c.Params("uuid"), userID)
	if err != nil {
		return projectLookupError(c, err)
	}

	svc := ledger.NewServiceFromDB(database.GetDB())
	result, err := svc.TryDebit(c.UserContext(), userID, project.UUID)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			return jsonError(c, fiber.StatusPaymentRequired, "insufficient_credits", "no credits left, subscribe for unlimited edits")
		}
		if errors.Is(err, ledger.ErrNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "ledger not found")
		}
		fiberlog.Errorf("project: debit failed for user %d project %s: %v", userID, project.UUID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not charge credit")
	}

	if _, err := jobqueue.EnqueueRenderJob(project); err != nil {
		fiberlog.Errorf("project: failed to enqueue render for %s: %v", project.UUID, err)
	}

	return c.JSON(fiber.Map{
		"charged":           result.Charged,
		"remaining_credits": result.RemainingCredits,
	})
}

// HandlePublishProject assigns a public share code to a rendered project
// and queues the social publish step.
func HandlePublishProject(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	project, err := loadOwnedProject(c.Params("uuid"), userID)
	if err != nil {
		return projectLookupError(c, err)
	}

	if project.Status != models.ProjectStatusRendered && project.Status != models.ProjectStatusPublished {
		return jsonError(c, fiber.StatusConflict, "conflict", "project is not rendered yet")
	}

	if project.ShareCode == "" {
		code, err := shortener.GenerateSecureSlug(8)
		if err != nil {
			fiberlog.Errorf("project: share code generation failed for %s: %v", project.UUID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not publish project")
		}
		now := time.Now()
		project.ShareCode = code
		project.PublishedAt = &now
		if err := repository.GetGlobalFactory().GetProjectRepository().Update(project); err != nil {
			fiberlog.Errorf("project: publish update failed for %s: %v", project.UUID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not publish project")
		}
	}

	if _, err := jobqueue.EnqueuePublishJob(project, project.ShareCode); err != nil {
		fiberlog.Errorf("project: failed to enqueue publish for %s: %v", project.UUID, err)
	}

	return c.JSON(fiber.Map{
		"share_code": project.ShareCode,
		"share_url":  env.GetEnv("PUBLIC_DOMAIN", "http://localhost:4000") + "/s/" + project.ShareCode,
	})
}

type shareLinkView struct {
	ProjectID   uint       `json:"project_id"`
	UUID        string     `json:"uuid"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	ViewCount   int64      `json:"view_count"`
	PublishedAt *time.Time `json:"published_at"`
}

const shareLinkCacheTTL = 5 * time.Minute

func shareLinkCacheKey(code string) string {
	return "share:code:" + code
}

// HandleShareLink resolves a public share code. No session required; the
// resolved view is cached in Redis for a few minutes and view counts are
// batched through Redis and flushed to the database later.
func HandleShareLink(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("sharecode"))
	if code == "" {
		return jsonError(c, fiber.StatusNotFound, "not_found", "share link not found")
	}

	var view shareLinkView
	if cached, err := cache.Get(shareLinkCacheKey(code)); err == nil && cached != "" {
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			if err := counter.AddProjectView(view.ProjectID); err != nil {
				fiberlog.Warnf("share: view counter for project %d failed: %v", view.ProjectID, err)
			}
			return renderShareLink(c, view)
		}
	}

	project, err := repository.GetGlobalFactory().GetProjectRepository().GetByShareCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "share link not found")
		}
		fiberlog.Errorf("share: lookup failed for %s: %v", code, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load share link")
	}

	view = shareLinkView{
		ProjectID:   project.ID,
		UUID:        project.UUID,
		Title:       project.Title,
		Status:      project.Status,
		ViewCount:   project.ViewCount,
		PublishedAt: project.PublishedAt,
	}
	if body, err := json.Marshal(view); err == nil {
		if err := cache.Set(shareLinkCacheKey(code), string(body), shareLinkCacheTTL); err != nil {
			fiberlog.Warnf("share: caching %s failed: %v", code, err)
		}
	}

	if err := counter.AddProjectView(project.ID); err != nil {
		fiberlog.Warnf("share: view counter for project %d failed: %v", project.ID, err)
	}

	return renderShareLink(c, view)
}

func renderShareLink(c *fiber.Ctx, view shareLinkView) error {
	return c.JSON(fiber.Map{
		"uuid":         view.UUID,
		"title":        view.Title,
		"status":       view.Status,
		"view_count":   view.ViewCount,
		"published_at": view.PublishedAt,
	})
}

func loadOwnedProject(uuid string, userID uint) (*models.Project, error) {
	if strings.TrimSpace(uuid) == "" {
		return nil, gorm.ErrRecordNotFound
	}

	projectRepo := repository.GetGlobalFactory().GetProjectRepository()
	project, err := projectRepo.GetByUUID(uuid)
	if err != nil {
		return nil, err
	}
	// Ownership is checked like a missing record so project UUIDs are not
	// probeable across accounts.
	if project.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return project, nil
}

func projectLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusNotFound, "not_found", "project not found")
	}
	fiberlog.Errorf("project: lookup failed: %v", err)
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load project")
}
