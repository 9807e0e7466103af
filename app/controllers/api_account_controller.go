package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/JonasKleint/ReelKit/internal/pkg/database"
	"github.com/JonasKleint/ReelKit/internal/pkg/ledger"
	"github.com/JonasKleint/ReelKit/internal/pkg/usercontext"
)

// HandleGetAccount returns the ledger snapshot for the authenticated user:
// credit balance, subscription status, end date and the computed
// entitlement flag.
func HandleGetAccount(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	svc := ledger.NewServiceFromDB(database.GetDB())
	snapshot, err := svc.Snapshot(c.UserContext(), userID)
	if err != nil {
		fiberlog.Errorf("account: snapshot failed for user %d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load account")
	}

	return c.JSON(snapshot)
}

// HandleGetTransactions returns the credit transaction log for the
// authenticated user, newest first.
func HandleGetTransactions(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	svc := ledger.NewServiceFromDB(database.GetDB())
	transactions, err := svc.Transactions(c.UserContext(), userID, limit)
	if err != nil {
		fiberlog.Errorf("account: transaction list failed for user %d: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not load transactions")
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
