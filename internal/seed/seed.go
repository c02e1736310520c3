// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"capsules/internal/lifecycle"
	"capsules/internal/models"
	"capsules/internal/scoring"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumCapsules int
	ShouldClean bool
}

// Seeder populates the database with demo accounts and content.
type Seeder struct {
	db   *gorm.DB
	rand *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:   db,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all seeded content. Order respects foreign keys.
func (s *Seeder) ClearAll() error {
	for _, model := range []any{
		&models.ReadEvent{}, &models.Reaction{}, &models.Response{},
		&models.Capsule{}, &models.NewsItem{}, &models.Profile{},
	} {
		if err := s.db.Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// Run seeds profiles, capsules, responses, reactions and read events. Most
// capsules land in the past so they are already published; a handful are
// still incubating to exercise the author-only views.
func (s *Seeder) Run(opts Options) error {
	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
	}

	profiles, err := s.seedProfiles(opts.NumUsers)
	if err != nil {
		return err
	}
	capsules, err := s.seedCapsules(profiles, opts.NumCapsules)
	if err != nil {
		return err
	}
	if err := s.seedEngagement(profiles, capsules); err != nil {
		return err
	}

	log.Printf("Seeded %d profiles and %d capsules", len(profiles), len(capsules))
	return nil
}

func (s *Seeder) seedProfiles(n int) ([]*models.Profile, error) {
	// One shared hash keeps seeding fast; every demo account logs in with it.
	hashed, err := bcrypt.GenerateFromPassword([]byte("Capsules-Demo-1!"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	profiles := make([]*models.Profile, 0, n)
	for i := 0; i < n; i++ {
		first := gofakeit.FirstName()
		last := gofakeit.LastName()
		username := fmt.Sprintf("%s_%s%d", strings.ToLower(first), strings.ToLower(last), i)

		interests := make([]string, 0, 3)
		for _, t := range s.rand.Perm(len(models.Topics))[:s.rand.Intn(3)+1] {
			interests = append(interests, models.Topics[t])
		}

		profile := &models.Profile{
			Username:    username,
			Email:       fmt.Sprintf("%s@example.com", username),
			Password:    string(hashed),
			DisplayName: first + " " + last,
			Bio:         gofakeit.Sentence(8),
			AvatarColor: gofakeit.HexColor(),
			Interests:   interests,
		}
		if err := s.db.Create(profile).Error; err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (s *Seeder) seedCapsules(profiles []*models.Profile, n int) ([]*models.Capsule, error) {
	if len(profiles) == 0 {
		return nil, nil
	}

	capsules := make([]*models.Capsule, 0, n)
	for i := 0; i < n; i++ {
		author := profiles[s.rand.Intn(len(profiles))]
		content := gofakeit.Paragraph(2, 4, 12, " ")

		createdAt := time.Now().Add(-time.Duration(s.rand.Intn(14*24)) * time.Hour)
		// Roughly one in ten stays in its incubation window.
		if s.rand.Intn(10) == 0 {
			createdAt = time.Now().Add(-time.Duration(s.rand.Intn(150)) * time.Minute)
		}
		publishesAt := createdAt.Add(lifecycle.IncubationPeriod)

		topic := models.Topics[s.rand.Intn(len(models.Topics))]
		capsule := &models.Capsule{
			AuthorID:    author.ID,
			Content:     content,
			Tags:        []string{topic},
			CreatedAt:   createdAt,
			PublishesAt: publishesAt,
			IsPublished: !publishesAt.After(time.Now()),
		}
		if err := s.db.Create(capsule).Error; err != nil {
			return nil, err
		}
		capsules = append(capsules, capsule)
	}
	return capsules, nil
}

func (s *Seeder) seedEngagement(profiles []*models.Profile, capsules []*models.Capsule) error {
	for _, capsule := range capsules {
		if !capsule.IsPublished {
			continue
		}

		reactions := 0
		responses := 0
		readCount := 0
		var totalReadSeconds int64

		for _, profile := range profiles {
			if profile.ID == capsule.AuthorID {
				continue
			}
			switch s.rand.Intn(6) {
			case 0:
				if err := s.db.Create(&models.Reaction{
					UserID:    profile.ID,
					CapsuleID: capsule.ID,
				}).Error; err != nil {
					return err
				}
				reactions++
			case 1:
				publishesAt := capsule.PublishesAt.Add(time.Duration(s.rand.Intn(60)) * time.Minute)
				if err := s.db.Create(&models.Response{
					CapsuleID:   capsule.ID,
					AuthorID:    profile.ID,
					Content:     gofakeit.Sentence(15),
					CreatedAt:   publishesAt.Add(-lifecycle.IncubationPeriod),
					PublishesAt: publishesAt,
					IsPublished: !publishesAt.After(time.Now()),
				}).Error; err != nil {
					return err
				}
				responses++
			case 2:
				seconds := 5 + s.rand.Intn(240)
				if err := s.db.Create(&models.ReadEvent{
					UserID:      profile.ID,
					CapsuleID:   capsule.ID,
					ReadSeconds: seconds,
					RecordedAt:  time.Now(),
				}).Error; err != nil {
					return err
				}
				readCount++
				totalReadSeconds += int64(seconds)
			}
		}

		score := scoring.CapsuleFeedScore(readCount, totalReadSeconds, responses, reactions)
		if err := s.db.Model(&models.Capsule{}).Where("id = ?", capsule.ID).Updates(map[string]any{
			"reaction_count":     reactions,
			"response_count":     responses,
			"read_count":         readCount,
			"total_read_seconds": totalReadSeconds,
			"depth_feed_score":   score,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}
