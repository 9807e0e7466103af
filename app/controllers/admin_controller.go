package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/JonasKleint/ReelKit/app/repository"
	"github.com/JonasKleint/ReelKit/internal/pkg/database"
	"github.com/JonasKleint/ReelKit/internal/pkg/jobqueue"
	"github.com/JonasKleint/ReelKit/internal/pkg/ledger"
	"github.com/JonasKleint/ReelKit/internal/pkg/usercontext"
	"gorm.io/gorm"
)

// HandleAdminGrant gives a user an effectively unlimited account: a huge
// credit balance plus a yearly subscription with a far-future end date.
// Used for internal test accounts and support compensation.
func HandleAdminGrant(c *fiber.Ctx) error {
	adminCtx := usercontext.GetUserContext(c)

	targetID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || targetID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid user id")
	}

	// Grants go against real accounts only.
	if _, err := repository.GetGlobalFactory().GetUserRepository().GetByID(uint(targetID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "user not found")
		}
		fiberlog.Errorf("admin grant: user lookup failed for %d: %v", targetID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load user")
	}

	svc := ledger.NewServiceFromDB(database.GetDB())
	snapshot, err := svc.AdminGrant(c.UserContext(), uint(targetID), "admin grant by "+adminCtx.Username)
	if err != nil {
		fiberlog.Errorf("admin grant: failed for user %d: %v", targetID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not apply grant")
	}

	fiberlog.Infof("admin grant: user %d granted unlimited access by %s", targetID, adminCtx.Username)

	return c.JSON(snapshot)
}

// HandleAdminJobQueue reports background queue depth and per-status job
// counts for the render/publish pipeline.
func HandleAdminJobQueue(c *fiber.Ctx) error {
	queue := jobqueue.GetManager().GetQueue()
	ctx := c.UserContext()

	stats, err := queue.GetJobStats(ctx)
	if err != nil {
		fiberlog.Errorf("admin jobs: stats lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load queue stats")
	}
	pending, err := queue.GetQueueSize(ctx)
	if err != nil {
		fiberlog.Errorf("admin jobs: queue size lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load queue stats")
	}
	processing, err := queue.GetProcessingSize(ctx)
	if err != nil {
		fiberlog.Errorf("admin jobs: processing size lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load queue stats")
	}

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}

// HandleAdminJob returns a single queued job by id.
func HandleAdminJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	job, err := jobqueue.GetManager().GetQueue().GetJob(c.UserContext(), jobID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "job not found")
	}
	return c.JSON(job)
}
