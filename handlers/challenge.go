package handlers

import (
	"time"

	"habit-gamification-system/middleware"
	"habit-gamification-system/models"
	"habit-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupChallengeRoutes wires challenge browsing, join/leave, leaderboards and
// history. Leaderboards are public within the service; everything that
// mutates participation requires user context.
func SetupChallengeRoutes(app *fiber.App, challenges *services.ChallengeService) {
	// 🔓 Public route — leaderboards don't need user context
	app.Get("/challenges/:id/leaderboard", func(c *fiber.Ctx) error {
		entries, err := challenges.Leaderboard(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/challenges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		list, err := challenges.GetChallenges(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	secured.Post("/challenges/:id/join", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		participant, err := challenges.Join(userID, c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(participant)
	})

	secured.Post("/challenges/:id/leave", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := challenges.Leave(userID, c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "left challenge"})
	})

	secured.Get("/user/challenges/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		history, err := challenges.GetHistory(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(history)
	})

	// 🔒 Admin-only routes
	admin := secured.Group("/admin")

	admin.Post("/challenges", func(c *fiber.Ctx) error {
		type Req struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			TargetType  string `json:"target_type"`
			TargetValue int64  `json:"target_value"`
			Difficulty  string `json:"difficulty"`
			StartDate   string `json:"start_date"` // YYYY-MM-DD
			EndDate     string `json:"end_date"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		start, err := time.ParseInLocation(models.DateLayout, req.StartDate, time.UTC)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid start_date"})
		}
		end, err := time.ParseInLocation(models.DateLayout, req.EndDate, time.UTC)
		if err != nil || !end.After(start) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid end_date"})
		}

		ch := models.Challenge{
			Title:       req.Title,
			Description: req.Description,
			TargetType:  models.ChallengeTargetType(req.TargetType),
			TargetValue: req.TargetValue,
			Difficulty:  models.ChallengeDifficulty(req.Difficulty),
			StartDate:   start,
			EndDate:     end,
		}
		if err := challenges.CreateChallenge(&ch); err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ch)
	})
}
