package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cthulhu-news/internal/reactions"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Arkham Advertiser</title>
  <link>https://arkham.example</link>
  <item>
    <title> Strange lights over Innsmouth </title>
    <link>https://arkham.example/lights</link>
    <description>Fishermen report glowing reefs.</description>
    <pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>No link here</title>
  </item>
</channel>
</rss>`

func TestArticlesFromFeed(t *testing.T) {
	feed, err := gofeed.NewParser().ParseString(sampleRSS)
	require.NoError(t, err)

	articles := ArticlesFromFeed(feed, "https://arkham.example/rss")
	require.Len(t, articles, 1)
	a := articles[0]
	assert.Equal(t, "Strange lights over Innsmouth", a.Title)
	assert.Equal(t, "https://arkham.example/lights", a.Link)
	assert.Equal(t, "Arkham Advertiser", a.Source)
	assert.Equal(t, "Fishermen report glowing reefs.", a.Summary)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), a.PublishedAt)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	articles, err := NewFetcher(5*time.Second, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := NewFetcher(5*time.Second, nil).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestSourceName(t *testing.T) {
	tests := []struct {
		title, url, want string
	}{
		{"Arkham Advertiser", "https://a", "Arkham Advertiser"},
		{"", "https://www.youtube.com/feeds/videos.xml?channel_id=UCabcdefghijklmnop", "YT UCabcdefghij"},
		{"YouTube", "https://www.youtube.com/channel/UC123/videos", "YT UC123"},
		{"uploads by someone", "https://www.youtube.com/feeds/videos.xml?user=cthulhu", "YouTube @cthulhu"},
		{"", "https://youtu.be/feed", "YouTube Channel"},
		{"The Miskatonic University Quarterly Review", "https://m", "The Miskatonic University Q..."},
		{"", "https://plain", "https://plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SourceName(tt.title, tt.url), tt.url)
	}
}

func TestParseOPML(t *testing.T) {
	doc := `<?xml version="1.0"?>
<opml version="2.0">
  <head><title>subs</title></head>
  <body>
    <outline text="news" title="news">
      <outline type="rss" text="a" xmlUrl="https://a/rss"/>
      <outline type="rss" text="b" xmlUrl="https://b/rss"/>
    </outline>
    <outline type="rss" text="a again" xmlUrl="https://a/rss"/>
    <outline type="rss" text="c" xmlUrl="https://c/rss"/>
  </body>
</opml>`
	feeds, err := ParseOPML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/rss", "https://b/rss", "https://c/rss"}, feeds)

	_, err = ParseOPML(strings.NewReader("<opml"))
	assert.Error(t, err)
}

func TestFeedList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.opml")
	require.NoError(t, os.WriteFile(path, []byte(`<opml version="2.0"><body>
<outline type="rss" xmlUrl="https://b/rss"/>
<outline type="rss" xmlUrl="https://c/rss"/>
</body></opml>`), 0o644))

	feeds, err := FeedList([]string{"https://a/rss", "https://b/rss"}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/rss", "https://b/rss", "https://c/rss"}, feeds)

	feeds, err = FeedList([]string{"https://a/rss"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/rss"}, feeds)

	_, err = FeedList(nil, filepath.Join(t.TempDir(), "missing.opml"))
	assert.Error(t, err)
}

type fakeSource map[string][]reactions.Article

func (f fakeSource) Fetch(_ context.Context, feedURL string) ([]reactions.Article, error) {
	articles, ok := f[feedURL]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return articles, nil
}

type fakeSink struct {
	mu  sync.Mutex
	got []reactions.Article
}

func (s *fakeSink) UpsertArticles(_ context.Context, articles []reactions.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, articles...)
	return len(articles), nil
}

func TestIngestorOnce(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	source := fakeSource{
		"https://a": {
			{Title: "old", Link: "https://a/1", PublishedAt: base},
			{Title: "newest", Link: "https://a/2", PublishedAt: base.Add(3 * time.Hour)},
		},
		"https://b": {
			{Title: "middle", Link: "https://b/1", PublishedAt: base.Add(time.Hour)},
		},
	}
	sink := &fakeSink{}
	changed := 0
	in := NewIngestor(source, sink, []string{"https://a", "https://b", "https://down"}, 2, nil)
	in.OnChange = func() { changed++ }

	n, err := in.Once(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.got, 2)
	assert.Equal(t, "newest", sink.got[0].Title)
	assert.Equal(t, "middle", sink.got[1].Title)
	assert.Equal(t, 1, changed)
}

func TestIngestorRunWithoutFeedsReturns(t *testing.T) {
	in := NewIngestor(fakeSource{}, &fakeSink{}, nil, 0, nil)
	done := make(chan struct{})
	go func() {
		in.Run(context.Background(), time.Hour)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return without feeds")
	}
}
