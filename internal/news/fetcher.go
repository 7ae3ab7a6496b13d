// Package news pulls articles from RSS/Atom feeds into the reactions store.
package news

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"cthulhu-news/internal/reactions"
)

const maxSourceName = 30

var (
	channelPathRe  = regexp.MustCompile(`/channel/([^/\?]+)`)
	channelQueryRe = regexp.MustCompile(`channel_id=([^&]+)`)
	userQueryRe    = regexp.MustCompile(`user=([^&]+)`)
)

type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
	logger  *zap.Logger
}

func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: timeout,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	fp := gofeed.NewParser()
	fp.Client = &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	return &Fetcher{parser: fp, timeout: timeout, logger: logger}
}

// Fetch downloads and converts one feed.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]reactions.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	f.logger.Debug("fetching feed", zap.String("url", feedURL))
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	f.logger.Info("feed fetched", zap.String("url", feedURL), zap.String("title", feed.Title), zap.Int("items", len(feed.Items)))
	return ArticlesFromFeed(feed, feedURL), nil
}

// ArticlesFromFeed converts feed items; items without a link are dropped.
func ArticlesFromFeed(feed *gofeed.Feed, feedURL string) []reactions.Article {
	source := SourceName(feed.Title, feedURL)
	articles := make([]reactions.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		var published time.Time
		switch {
		case item.PublishedParsed != nil:
			published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			published = *item.UpdatedParsed
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		articles = append(articles, reactions.Article{
			Title:       strings.TrimSpace(item.Title),
			Link:        item.Link,
			Source:      source,
			Summary:     summary,
			PublishedAt: published.UTC(),
		})
	}
	return articles
}

// SourceName derives a short source label from the feed title, with a
// fallback for YouTube channel feeds whose titles are unhelpful.
func SourceName(title, feedURL string) string {
	name := title
	if name == "" || name == "YouTube" || strings.Contains(name, "uploads by") {
		if strings.Contains(feedURL, "youtube.com") || strings.Contains(feedURL, "youtu.be") {
			name = youtubeName(feedURL)
		}
	}
	if name == "" {
		name = feedURL
	}
	if len([]rune(name)) > maxSourceName {
		name = string([]rune(name)[:maxSourceName-3]) + "..."
	}
	return name
}

func youtubeName(feedURL string) string {
	if m := channelPathRe.FindStringSubmatch(feedURL); len(m) > 1 {
		return "YT " + truncate(m[1], 12)
	}
	if m := channelQueryRe.FindStringSubmatch(feedURL); len(m) > 1 {
		return "YT " + truncate(m[1], 12)
	}
	if m := userQueryRe.FindStringSubmatch(feedURL); len(m) > 1 {
		return "YouTube @" + m[1]
	}
	return "YouTube Channel"
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
