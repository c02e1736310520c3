// Package lifecycle implements the incubation state machine for capsules and
// responses: submission, withdrawal, publication and the visibility predicate
// every read path consults.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"capsules/internal/models"
	"capsules/internal/observability"
	"capsules/internal/repository"

	"gorm.io/gorm"
)

// IncubationPeriod is the fixed window between submission and publication.
// publishes_at is stamped once at creation and never recomputed.
const IncubationPeriod = 3 * time.Hour

// Content length bounds, in characters of the trimmed content. A response
// requires less than a full capsule; the asymmetry is intentional.
const (
	MinCapsuleLength  = 50
	MinResponseLength = 20
	MaxContentLength  = 2000
)

// Engine computes and enforces the lifecycle transitions. The clock is
// injected so the time-gated guards are testable; production passes time.Now.
type Engine struct {
	capsules  repository.CapsuleRepository
	responses repository.ResponseRepository
	now       func() time.Time
}

// NewEngine creates a lifecycle engine over the given repositories.
func NewEngine(capsules repository.CapsuleRepository, responses repository.ResponseRepository, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		capsules:  capsules,
		responses: responses,
		now:       now,
	}
}

// IsVisible is the single visibility predicate: published AND past the
// incubation window. A row can satisfy the time condition before the flag is
// flipped; it stays invisible until both hold.
func IsVisible(isPublished bool, publishesAt, now time.Time) bool {
	return isPublished && !publishesAt.After(now)
}

// CapsuleVisible applies the visibility predicate to a capsule.
func CapsuleVisible(c *models.Capsule, now time.Time) bool {
	return IsVisible(c.IsPublished, c.PublishesAt, now)
}

// ResponseVisible applies the visibility predicate to a response.
func ResponseVisible(r *models.Response, now time.Time) bool {
	return IsVisible(r.IsPublished, r.PublishesAt, now)
}

func validateContent(content string, minLen int) (string, error) {
	trimmed := strings.TrimSpace(content)
	length := utf8.RuneCountInString(trimmed)
	if length < minLen {
		return "", models.NewValidationError(
			fmt.Sprintf("Content must be at least %d characters (got %d)", minLen, length))
	}
	if length > MaxContentLength {
		return "", models.NewValidationError(
			fmt.Sprintf("Content must be at most %d characters (got %d)", MaxContentLength, length))
	}
	return trimmed, nil
}

func normalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !models.IsValidTopic(tag) {
			return nil, models.NewValidationError(fmt.Sprintf("Unknown topic %q", tag))
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}
	return normalized, nil
}

// Submit validates and persists a new capsule. The capsule starts incubating:
// publishes_at = now + IncubationPeriod, is_published = false, counters zero.
func (e *Engine) Submit(ctx context.Context, authorID uint, content string, tags []string) (*models.Capsule, error) {
	trimmed, err := validateContent(content, MinCapsuleLength)
	if err != nil {
		return nil, err
	}
	normalized, err := normalizeTags(tags)
	if err != nil {
		return nil, err
	}

	now := e.now()
	capsule := &models.Capsule{
		AuthorID:    authorID,
		Content:     trimmed,
		Tags:        normalized,
		CreatedAt:   now,
		PublishesAt: now.Add(IncubationPeriod),
		IsPublished: false,
	}
	if err := e.capsules.Create(ctx, capsule); err != nil {
		return nil, err
	}
	observability.CapsulesSubmitted.WithLabelValues("capsule").Inc()

	// Reload with the author joined for the immediate UI echo.
	created, err := e.capsules.GetByID(ctx, capsule.ID)
	if err != nil {
		return nil, err
	}
	created.Decorate()
	return created, nil
}

// SubmitResponse validates and persists a reply. The parent must be
// addressable by the author: visible to everyone, or the author's own
// incubating capsule. Anything else reads as not found.
func (e *Engine) SubmitResponse(ctx context.Context, authorID, capsuleID uint, content string) (*models.Response, error) {
	now := e.now()
	parent, err := e.capsules.GetByID(ctx, capsuleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Capsule")
		}
		return nil, err
	}
	if !CapsuleVisible(parent, now) && parent.AuthorID != authorID {
		return nil, models.NewNotFoundError("Capsule")
	}

	trimmed, err := validateContent(content, MinResponseLength)
	if err != nil {
		return nil, err
	}

	response := &models.Response{
		CapsuleID:   capsuleID,
		AuthorID:    authorID,
		Content:     trimmed,
		CreatedAt:   now,
		PublishesAt: now.Add(IncubationPeriod),
		IsPublished: false,
	}
	if err := e.responses.Create(ctx, response); err != nil {
		return nil, err
	}
	observability.CapsulesSubmitted.WithLabelValues("response").Inc()

	created, err := e.responses.GetByID(ctx, response.ID)
	if err != nil {
		return nil, err
	}
	created.Decorate()
	return created, nil
}

// Withdraw hard-deletes a capsule if and only if the actor is the author and
// the incubation window is still open at the storage layer's clock reading.
// The single conditional delete is the enforcement point; a zero-row result
// maps to one cause-blind denial.
func (e *Engine) Withdraw(ctx context.Context, capsuleID, authorID uint) error {
	affected, err := e.capsules.DeleteIfWithdrawable(ctx, capsuleID, authorID, e.now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.NewNotWithdrawableError()
	}
	observability.CapsulesWithdrawn.WithLabelValues("capsule").Inc()
	return nil
}

// WithdrawResponse applies the same withdrawal rule to a response.
func (e *Engine) WithdrawResponse(ctx context.Context, responseID, authorID uint) error {
	affected, err := e.responses.DeleteIfWithdrawable(ctx, responseID, authorID, e.now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.NewNotWithdrawableError()
	}
	observability.CapsulesWithdrawn.WithLabelValues("response").Inc()
	return nil
}

// Publish flips is_published on a single capsule whose window has elapsed.
// Idempotent: flipping an already published row is a no-op, never an error.
// Invoked opportunistically by read paths; the sweeper covers rows nobody reads.
func (e *Engine) Publish(ctx context.Context, capsuleID uint) error {
	return e.capsules.Publish(ctx, capsuleID, e.now())
}

// GetCapsule serves a single capsule through the enforcement boundary. The
// author may see their own incubating capsule; everyone else gets not-found
// until the predicate holds.
func (e *Engine) GetCapsule(ctx context.Context, capsuleID, viewerID uint) (*models.Capsule, error) {
	now := e.now()
	capsule, err := e.capsules.GetByID(ctx, capsuleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Capsule")
		}
		return nil, err
	}

	if !CapsuleVisible(capsule, now) {
		// Lazy publication: the window may have elapsed without a sweep yet.
		if !capsule.PublishesAt.After(now) {
			if err := e.Publish(ctx, capsuleID); err != nil {
				return nil, err
			}
			capsule.IsPublished = true
		} else if capsule.AuthorID != viewerID {
			return nil, models.NewNotFoundError("Capsule")
		}
	}

	capsule.Decorate()
	return capsule, nil
}

// GetResponses lists the published responses of an addressable capsule,
// oldest publication first.
func (e *Engine) GetResponses(ctx context.Context, capsuleID, viewerID uint) ([]*models.Response, error) {
	now := e.now()
	parent, err := e.capsules.GetByID(ctx, capsuleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Capsule")
		}
		return nil, err
	}
	if !CapsuleVisible(parent, now) {
		if !parent.PublishesAt.After(now) {
			// Window elapsed, flag not flipped yet: publish opportunistically.
			if err := e.Publish(ctx, capsuleID); err != nil {
				return nil, err
			}
		} else if parent.AuthorID != viewerID {
			return nil, models.NewNotFoundError("Capsule")
		}
	}

	responses, err := e.responses.ListPublishedByCapsule(ctx, capsuleID, now)
	if err != nil {
		return nil, err
	}
	for _, r := range responses {
		r.Decorate()
	}
	return responses, nil
}
