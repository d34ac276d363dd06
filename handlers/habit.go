package handlers

import (
	"habit-gamification-system/middleware"
	"habit-gamification-system/models"
	"habit-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupHabitRoutes wires the completion/undo entry points. These are the only
// two operations that mutate gamification state; everything downstream
// (streaks, XP, badges, challenges) happens inside the service transaction.
func SetupHabitRoutes(app *fiber.App, gamification *services.GamificationService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/habits/:id/log", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		habitID := c.Params("id")

		date, err := parseDateBody(c, gamification)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
				"cause": err.Error(),
			})
		}

		result, err := gamification.LogHabit(userID, habitID, date)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})

	secured.Post("/habits/:id/undo", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		habitID := c.Params("id")

		date, err := parseDateBody(c, gamification)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
				"cause": err.Error(),
			})
		}

		result, err := gamification.UndoHabit(userID, habitID, date)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(result)
	})
}

// parseDateBody reads the optional {"date": "YYYY-MM-DD"} body, defaulting
// to today.
func parseDateBody(c *fiber.Ctx, gamification *services.GamificationService) (string, error) {
	type req struct {
		Date string `json:"date"`
	}
	var body req
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return "", err
		}
	}
	if body.Date == "" {
		return gamification.Clock.Now().UTC().Format(models.DateLayout), nil
	}
	return body.Date, nil
}
