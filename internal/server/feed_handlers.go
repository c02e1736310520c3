// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"time"

	"capsules/internal/feed"
	"capsules/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feed and returns the composed multi-section bundle.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, feed.DefaultLimit)
	topic := c.Query("topic")
	if topic != "" && !models.IsValidTopic(topic) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown topic: "+topic))
	}

	bundle := s.composer.Compose(c.Context(), feed.Request{
		ViewerID: currentUserID(c),
		Topic:    topic,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	return c.JSON(bundle)
}

// GetForYouFeed handles GET /api/feed/for-you
func (s *Server) GetForYouFeed(c *fiber.Ctx) error {
	page := parsePagination(c, feed.DefaultLimit)
	topic := c.Query("topic")
	if topic != "" && !models.IsValidTopic(topic) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown topic: "+topic))
	}

	capsules, err := s.capsuleRepo.ListForYou(c.Context(), time.Now(), topic, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	for _, capsule := range capsules {
		capsule.Decorate()
	}
	return c.JSON(capsules)
}

// GetLatestFeed handles GET /api/feed/latest, the public reverse-chronological feed.
func (s *Server) GetLatestFeed(c *fiber.Ctx) error {
	page := parsePagination(c, feed.DefaultLimit)
	topic := c.Query("topic")
	if topic != "" && !models.IsValidTopic(topic) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown topic: "+topic))
	}

	capsules, err := s.capsuleRepo.ListLatest(c.Context(), time.Now(), topic, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	for _, capsule := range capsules {
		capsule.Decorate()
	}
	return c.JSON(capsules)
}

// GetIncubatingFeed handles GET /api/feed/incubating. It lists only the
// caller's own pending capsules, soonest to publish first.
func (s *Server) GetIncubatingFeed(c *fiber.Ctx) error {
	capsules, err := s.capsuleRepo.ListPendingByAuthor(c.Context(), currentUserID(c), time.Now())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	for _, capsule := range capsules {
		capsule.Decorate()
	}
	return c.JSON(capsules)
}
