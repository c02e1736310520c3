// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"capsules/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ToggleReaction handles POST /api/capsules/:id/reaction
func (s *Server) ToggleReaction(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	added, err := s.recorder.ToggleReaction(c.Context(), currentUserID(c), id)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"added": added})
}

// RecordRead handles POST /api/capsules/:id/read. Sessions below the dwell
// threshold are accepted and discarded, so the client cannot distinguish a
// counted read from a bounce.
func (s *Server) RecordRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Seconds < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Seconds must be non-negative"))
	}

	if err := s.recorder.RecordRead(c.Context(), currentUserID(c), id, req.Seconds); err != nil {
		return respondAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
