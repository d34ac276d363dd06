package handlers

import (
	"habit-gamification-system/services"

	"github.com/gofiber/fiber/v2"
)

// statusForKind maps the engine's error taxonomy onto HTTP statuses so the
// UI can show an accurate message ("already completed today", etc).
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindAlreadyLogged, services.KindChallengeAlreadyJoined:
		return fiber.StatusConflict
	case services.KindNotLogged, services.KindChallengeNotJoined, services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindChallengeExpired:
		return fiber.StatusGone
	case services.KindConsistency:
		return fiber.StatusInternalServerError
	case services.KindStoreUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)
	return c.Status(statusForKind(kind)).JSON(fiber.Map{
		"error": string(kind),
		"cause": err.Error(),
	})
}
