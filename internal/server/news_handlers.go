// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"errors"

	"capsules/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetNews handles GET /api/news
func (s *Server) GetNews(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	items, err := s.newsRepo.ListRecent(c.Context(), page.Limit)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(items)
}

// GetNewsDiscussPrefill handles GET /api/news/:id/discuss. It hands back the
// compose-box prefill for the item; no link between the news item and any
// resulting capsule is ever stored.
func (s *Server) GetNewsDiscussPrefill(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var item models.NewsItem
	if err := s.db.WithContext(c.Context()).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondAppError(c, models.NewNotFoundError("News item"))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(fiber.Map{
		"prefill": item.DiscussPrefill(),
		"url":     item.URL,
	})
}
