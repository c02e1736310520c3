// Package feed assembles the multi-section home feed.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"capsules/internal/cache"
	"capsules/internal/models"
	"capsules/internal/observability"
	"capsules/internal/repository"
)

// SectionTimeout bounds each section's query so one slow section cannot
// stall the whole feed.
const SectionTimeout = 3 * time.Second

// DefaultLimit is the page size used when the caller does not specify one.
const DefaultLimit = 20

// Bundle is one composed feed response. A failed section arrives empty with
// an entry in Errors; the remaining sections are unaffected.
type Bundle struct {
	ForYou     []*models.Capsule  `json:"for_you"`
	Latest     []*models.Capsule  `json:"latest"`
	Incubating []*models.Capsule  `json:"incubating,omitempty"`
	News       []*models.NewsItem `json:"news"`
	Errors     map[string]string  `json:"errors,omitempty"`
}

// Composer fans section queries out in parallel and assembles the bundle.
type Composer struct {
	capsules repository.CapsuleRepository
	news     repository.NewsRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewComposer creates a feed composer. A nil now defaults to time.Now.
func NewComposer(capsules repository.CapsuleRepository, news repository.NewsRepository, logger *slog.Logger, now func() time.Time) *Composer {
	if now == nil {
		now = time.Now
	}
	return &Composer{capsules: capsules, news: news, logger: logger, now: now}
}

// Request selects the sections and page for one composition.
type Request struct {
	// ViewerID is zero for anonymous readers; the incubating section is
	// composed only for a signed-in viewer, and only from their own drafts.
	ViewerID uint
	// Topic, when non-empty, filters the capsule sections to that tag.
	Topic  string
	Limit  int
	Offset int
}

// Compose builds the feed bundle. All sections are evaluated against a
// single instant so the visibility cutoff is consistent across the response.
func (c *Composer) Compose(ctx context.Context, req Request) *Bundle {
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	now := c.now()

	bundle := &Bundle{Errors: map[string]string{}}
	var mu sync.Mutex
	var wg sync.WaitGroup

	fail := func(section string, err error) {
		observability.FeedSectionFailures.WithLabelValues(section).Inc()
		c.logger.Warn("feed section failed",
			slog.String("section", section),
			slog.String("error", err.Error()),
		)
		mu.Lock()
		bundle.Errors[section] = "section unavailable"
		mu.Unlock()
	}

	section := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, SectionTimeout)
			defer cancel()
			if err := fn(sctx); err != nil {
				fail(name, err)
			}
		}()
	}

	section("for_you", func(ctx context.Context) error {
		capsules, err := c.capsules.ListForYou(ctx, now, req.Topic, req.Limit, req.Offset)
		if err != nil {
			return err
		}
		decorate(capsules)
		mu.Lock()
		bundle.ForYou = capsules
		mu.Unlock()
		return nil
	})

	section("latest", func(ctx context.Context) error {
		var capsules []*models.Capsule
		err := cache.Aside(ctx, cache.LatestFeedKey(req.Topic, req.Limit, req.Offset), &capsules, cache.LatestFeedTTL, func() error {
			rows, err := c.capsules.ListLatest(ctx, now, req.Topic, req.Limit, req.Offset)
			if err != nil {
				return err
			}
			decorate(rows)
			capsules = rows
			return nil
		})
		if err != nil {
			return err
		}
		mu.Lock()
		bundle.Latest = capsules
		mu.Unlock()
		return nil
	})

	if req.ViewerID != 0 {
		section("incubating", func(ctx context.Context) error {
			capsules, err := c.capsules.ListPendingByAuthor(ctx, req.ViewerID, now)
			if err != nil {
				return err
			}
			decorate(capsules)
			mu.Lock()
			bundle.Incubating = capsules
			mu.Unlock()
			return nil
		})
	}

	section("news", func(ctx context.Context) error {
		var items []*models.NewsItem
		err := cache.Aside(ctx, cache.NewsKey(req.Limit), &items, cache.NewsTTL, func() error {
			rows, err := c.news.ListRecent(ctx, req.Limit)
			if err != nil {
				return err
			}
			items = rows
			return nil
		})
		if err != nil {
			return err
		}
		mu.Lock()
		bundle.News = items
		mu.Unlock()
		return nil
	})

	wg.Wait()
	if len(bundle.Errors) == 0 {
		bundle.Errors = nil
	}
	return bundle
}

func decorate(capsules []*models.Capsule) {
	for _, capsule := range capsules {
		capsule.Decorate()
	}
}
