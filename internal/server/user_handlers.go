// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"errors"
	"strings"
	"time"

	"capsules/internal/models"
	"capsules/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileRepo.GetByID(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(fiber.Map{
		"user":        profile,
		"depth_label": models.DepthLabel(profile.DepthScore),
	})
}

// UpdateMyProfile handles PUT /api/users/me. Only display fields are
// editable; the derived scoring aggregates are owned by the score worker.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		DisplayName *string   `json:"display_name"`
		Bio         *string   `json:"bio"`
		Interests   *[]string `json:"interests"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileRepo.GetByID(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Display name cannot be empty"))
		}
		profile.DisplayName = name
	}
	if req.Bio != nil {
		if err := validation.ValidateBio(*req.Bio); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError(err.Error()))
		}
		profile.Bio = *req.Bio
	}
	if req.Interests != nil {
		for _, interest := range *req.Interests {
			if !models.IsValidTopic(interest) {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Unknown topic: "+interest))
			}
		}
		profile.Interests = *req.Interests
	}

	if err := s.profileRepo.Update(c.Context(), profile); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(fiber.Map{
		"user":        profile,
		"depth_label": models.DepthLabel(profile.DepthScore),
	})
}

// GetPublicProfile handles GET /api/users/:id. The response carries only the
// public snapshot plus the profile's published capsules; incubating content
// never appears here, not even for the profile owner.
func (s *Server) GetPublicProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.profileRepo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondAppError(c, models.NewNotFoundError("Profile"))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	page := parsePagination(c, 20)
	capsules, err := s.capsuleRepo.ListPublishedByAuthor(c.Context(), id, time.Now(), page.Limit)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	for _, capsule := range capsules {
		capsule.Decorate()
	}

	snapshot := profile.Snapshot()
	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":           snapshot.ID,
			"username":     snapshot.Username,
			"display_name": snapshot.DisplayName,
			"avatar_color": snapshot.AvatarColor,
			"depth_score":  snapshot.DepthScore,
			"depth_label":  snapshot.DepthLabel,
			"bio":          profile.Bio,
			"interests":    profile.Interests,
		},
		"capsules": capsules,
	})
}
