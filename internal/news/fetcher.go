// Package news aggregates external RSS/Atom headlines for the news rail.
package news

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"capsules/internal/models"
	"capsules/internal/repository"
)

const (
	fetchTimeout = 15 * time.Second
	maxBodySize  = 5 << 20
	maxSummary   = 500
)

// Fetcher pulls the configured feeds and upserts their items. Summaries are
// stripped to plain text before storage; feed HTML is never trusted.
type Fetcher struct {
	repo      repository.NewsRepository
	feedURLs  []string
	client    *http.Client
	parser    *gofeed.Parser
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
	now       func() time.Time
}

// NewFetcher creates a news fetcher for the given feed URLs.
func NewFetcher(repo repository.NewsRepository, feedURLs []string, logger *slog.Logger, now func() time.Time) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{
		repo:      repo,
		feedURLs:  feedURLs,
		client:    &http.Client{Timeout: fetchTimeout},
		parser:    gofeed.NewParser(),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
		now:       now,
	}
}

// Start fetches all feeds on a fixed interval until the context is
// cancelled. One cycle runs immediately on startup.
func (f *Fetcher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	f.logger.Info("news fetcher started",
		slog.Duration("interval", interval),
		slog.Int("feeds", len(f.feedURLs)),
	)

	f.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("news fetcher stopped")
			return
		case <-ticker.C:
			f.RunOnce(ctx)
		}
	}
}

// RunOnce fetches every configured feed. A failing feed is logged and
// skipped; the rest of the cycle continues.
func (f *Fetcher) RunOnce(ctx context.Context) {
	for _, url := range f.feedURLs {
		if err := f.FetchFeed(ctx, url); err != nil {
			f.logger.Warn("news feed fetch failed",
				slog.String("feed_url", url),
				slog.String("error", err.Error()),
			)
		}
	}
}

// FetchFeed downloads, parses and upserts a single feed.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Capsules/1.0 News Aggregator")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return err
	}

	parsed, err := f.parser.ParseString(string(body))
	if err != nil {
		return err
	}

	now := f.now()
	source := parsed.Title
	if source == "" {
		source = feedURL
	}

	upserted := 0
	for _, item := range parsed.Items {
		if item == nil || item.Link == "" || item.Title == "" {
			continue
		}

		publishedAt := now
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		news := &models.NewsItem{
			Title:       strings.TrimSpace(f.sanitizer.Sanitize(item.Title)),
			Summary:     f.summarize(item.Description),
			Source:      source,
			URL:         item.Link,
			PublishedAt: publishedAt,
			FetchedAt:   now,
		}
		if err := f.repo.UpsertByURL(ctx, news); err != nil {
			return err
		}
		upserted++
	}

	f.logger.Info("news feed fetched",
		slog.String("feed_url", feedURL),
		slog.Int("items", upserted),
	)
	return nil
}

// summarize strips markup and caps the summary at maxSummary runes. The cut
// falls on a rune boundary so a multi-byte character is never split.
func (f *Fetcher) summarize(description string) string {
	summary := strings.TrimSpace(f.sanitizer.Sanitize(description))
	if utf8.RuneCountInString(summary) <= maxSummary {
		return summary
	}
	return string([]rune(summary)[:maxSummary])
}
