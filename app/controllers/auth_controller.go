package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/JonasKleint/ReelKit/app/models"
	"github.com/JonasKleint/ReelKit/app/repository"
	"github.com/JonasKleint/ReelKit/internal/pkg/database"
	"github.com/JonasKleint/ReelKit/internal/pkg/mail"
	"github.com/JonasKleint/ReelKit/internal/pkg/session"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAuthRegister creates a new user account together with its starter
// ledger (free plan, starter credits).
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}

	user, err := models.CreateUser(strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	if existing, err := userRepo.GetByEmail(user.Email); err == nil && existing != nil {
		return jsonError(c, fiber.StatusConflict, "conflict", "email already registered")
	}

	if err := userRepo.CreateWithLedger(user); err != nil {
		fiberlog.Errorf("register: failed to create user %s: %v", user.Email, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not create account")
	}

	// Best-effort: a failed mail must not lose the account, the admin
	// panel can resend the activation link.
	if err := mail.SendActivationEmail(user); err != nil {
		fiberlog.Warnf("register: activation mail for %s failed: %v", user.Email, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

// HandleAuthActivate confirms the email address behind an activation token
// and unlocks the account.
func HandleAuthActivate(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "activation token missing")
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByActivationToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "invalid activation token")
		}
		fiberlog.Errorf("activate: token lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not activate account")
	}

	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	if err := userRepo.Update(user); err != nil {
		fiberlog.Errorf("activate: update failed for user %d: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not activate account")
	}

	return c.JSON(fiber.Map{"message": "account activated"})
}

// HandleAuthLogin verifies credentials and stores the user in the session.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid request body")
	}

	// notice: in production you should not inform the user
	// with detailed messages about login failures
	var user models.User
	result := database.GetDB().Where("email = ?", strings.TrimSpace(req.Email)).First(&user)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			fiberlog.Errorf("login: lookup failed: %v", result.Error)
		}
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "invalid credentials")
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "invalid credentials")
	}

	if !user.IsActive() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "account is not active")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "session unavailable")
	}

	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	sess.Set(USER_IS_ADMIN, user.IsAdmin())

	if err := sess.Save(); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "session unavailable")
	}

	database.GetDB().Model(&user).Update("last_login_at", time.Now())

	return c.JSON(fiber.Map{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"admin": user.IsAdmin(),
	})
}

// HandleAuthLogout destroys the current session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			fiberlog.Warnf("logout: failed to destroy session: %v", err)
		}
	}

	c.Locals(FROM_PROTECTED, false)

	return c.JSON(fiber.Map{"message": "logged out"})
}
