package news

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"cthulhu-news/internal/reactions"
)

// ArticleSink receives fetched articles.
type ArticleSink interface {
	UpsertArticles(ctx context.Context, articles []reactions.Article) (int, error)
}

type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) ([]reactions.Article, error)
}

// Ingestor fetches every configured feed in parallel and stores the newest
// articles.
type Ingestor struct {
	source      FeedSource
	sink        ArticleSink
	feeds       []string
	maxArticles int
	logger      *zap.Logger

	// OnChange runs after a pass that inserted at least one article.
	OnChange func()
}

func NewIngestor(source FeedSource, sink ArticleSink, feeds []string, maxArticles int, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{source: source, sink: sink, feeds: feeds, maxArticles: maxArticles, logger: logger}
}

// Once runs a single ingestion pass and returns the number of new articles.
// Feeds that fail are logged and skipped.
func (in *Ingestor) Once(ctx context.Context) (int, error) {
	start := time.Now()
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []reactions.Article
	)
	for _, feedURL := range in.feeds {
		wg.Add(1)
		go func(feedURL string) {
			defer wg.Done()
			articles, err := in.source.Fetch(ctx, feedURL)
			if err != nil {
				in.logger.Warn("feed skipped", zap.String("url", feedURL), zap.Error(err))
				return
			}
			mu.Lock()
			all = append(all, articles...)
			mu.Unlock()
		}(feedURL)
	}
	wg.Wait()

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].PublishedAt.Equal(all[j].PublishedAt) {
			return all[i].Title < all[j].Title
		}
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	if in.maxArticles > 0 && len(all) > in.maxArticles {
		all = all[:in.maxArticles]
	}

	n, err := in.sink.UpsertArticles(ctx, all)
	if err != nil {
		return n, err
	}
	in.logger.Info("ingestion pass finished",
		zap.Int("feeds", len(in.feeds)),
		zap.Int("fetched", len(all)),
		zap.Int("inserted", n),
		zap.Duration("elapsed", time.Since(start)))
	if n > 0 && in.OnChange != nil {
		in.OnChange()
	}
	return n, nil
}

// Run ingests immediately and then every interval until ctx is done.
func (in *Ingestor) Run(ctx context.Context, interval time.Duration) {
	if len(in.feeds) == 0 {
		in.logger.Info("no feeds configured, ingestion disabled")
		return
	}
	if _, err := in.Once(ctx); err != nil {
		in.logger.Error("ingestion pass failed", zap.Error(err))
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := in.Once(ctx); err != nil {
				in.logger.Error("ingestion pass failed", zap.Error(err))
			}
		}
	}
}
