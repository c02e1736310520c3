// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"capsules/internal/middleware"
	"capsules/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateCapsule handles POST /api/capsules. The created capsule starts its
// incubation window and is returned only to its author.
func (s *Server) CreateCapsule(c *fiber.Ctx) error {
	var req struct {
		Content string   `json:"content"`
		Tags    []string `json:"tags"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	capsule, err := s.engine.Submit(c.Context(), currentUserID(c), req.Content, req.Tags)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(capsule)
}

// GetCapsule handles GET /api/capsules/:id
func (s *Server) GetCapsule(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	viewerID, _ := middleware.OptionalUserID(c)

	capsule, err := s.engine.GetCapsule(c.Context(), id, viewerID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(capsule)
}

// WithdrawCapsule handles DELETE /api/capsules/:id
func (s *Server) WithdrawCapsule(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.engine.Withdraw(c.Context(), id, currentUserID(c)); err != nil {
		return respondAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetResponses handles GET /api/capsules/:id/responses
func (s *Server) GetResponses(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	viewerID, _ := middleware.OptionalUserID(c)

	responses, err := s.engine.GetResponses(c.Context(), id, viewerID)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.JSON(responses)
}

// CreateResponse handles POST /api/capsules/:id/responses
func (s *Server) CreateResponse(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	response, err := s.engine.SubmitResponse(c.Context(), currentUserID(c), id, req.Content)
	if err != nil {
		return respondAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

// WithdrawResponse handles DELETE /api/responses/:id
func (s *Server) WithdrawResponse(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.engine.WithdrawResponse(c.Context(), id, currentUserID(c)); err != nil {
		return respondAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
