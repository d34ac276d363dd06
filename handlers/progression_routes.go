package handlers

import (
	"strconv"

	"habit-gamification-system/middleware"
	"habit-gamification-system/models"
	"habit-gamification-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupProgressionRoutes exposes the XP ledger and badge views.
// The gateway forwards paths like /api/v1/habits/s/user/xp -> /user/xp.
func SetupProgressionRoutes(app *fiber.App, ledger *services.LedgerService, badges *services.BadgeService) {
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Get("/user/xp", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		breakdown, err := ledger.GetBreakdown(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(breakdown)
	})

	securedGroup.Get("/user/xp/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		offset, _ := strconv.Atoi(c.Query("offset", "0"))

		history, err := ledger.GetHistory(userID, limit, offset)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(history)
	})

	securedGroup.Get("/user/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		list, err := badges.GetBadges(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	securedGroup.Get("/user/badges/:code", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		detail, err := badges.GetBadgeDetail(userID, c.Params("code"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(detail)
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/xp/reverse", func(c *fiber.Ctx) error {
		type Req struct {
			TransactionID string `json:"transaction_id" validate:"required,uuid"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		var reversal *models.XPTransaction
		err := ledger.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			reversal, err = ledger.Reverse(tx, req.TransactionID)
			return err
		})
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(fiber.Map{
			"message":     "transaction reversed",
			"reversal_id": reversal.ID,
			"amount":      reversal.Amount,
		})
	})
}
