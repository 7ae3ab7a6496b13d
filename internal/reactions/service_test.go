package reactions

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cthulhu-news/internal/config"
	"cthulhu-news/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s, err := NewService(context.Background(), db, config.DriverSQLite, func(v string) string { return "p:" + v }, nil)
	require.NoError(t, err)
	return s
}

func seedArticles(t *testing.T, s *Service, links ...string) []Article {
	t.Helper()
	ctx := context.Background()
	var in []Article
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, link := range links {
		in = append(in, Article{
			Title:       "Title " + link,
			Link:        link,
			Source:      "Arkham Advertiser",
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	n, err := s.UpsertArticles(ctx, in)
	require.NoError(t, err)
	require.Equal(t, len(links), n)
	out, err := s.Articles(ctx, 0)
	require.NoError(t, err)
	return out
}

func TestReactIncrementsCount(t *testing.T) {
	s := newTestService(t)
	articles := seedArticles(t, s, "https://a")
	id := articles[0].ID
	ctx := context.Background()

	n, err := s.React(ctx, id, VoteTruth, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.React(ctx, id, VoteTruth, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	votes, err := s.Votes(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Votes{VoteTruth: 2, VoteLie: 0}, votes)
}

func TestReactCountsVisitorOncePerArticle(t *testing.T) {
	s := newTestService(t)
	id := seedArticles(t, s, "https://a")[0].ID
	ctx := context.Background()

	n, err := s.React(ctx, id, VoteLie, "1700000000123")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.React(ctx, id, VoteLie, "1700000000123")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.React(ctx, id, VoteTruth, "1700000000123")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.React(ctx, id, VoteLie, "other")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReactRejectsUnknownVoteAndArticle(t *testing.T) {
	s := newTestService(t)
	id := seedArticles(t, s, "https://a")[0].ID
	ctx := context.Background()

	_, err := s.React(ctx, id, "maybe", "")
	assert.ErrorIs(t, err, ErrInvalidVote)

	_, err = s.React(ctx, id+100, VoteTruth, "")
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestUpsertArticlesIgnoresKnownLinks(t *testing.T) {
	s := newTestService(t)
	seedArticles(t, s, "https://a", "https://b")

	n, err := s.UpsertArticles(context.Background(), []Article{
		{Title: "again", Link: "https://a"},
		{Title: "new", Link: "https://c"},
		{Title: "no link"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	articles, err := s.Articles(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, articles, 3)
}

func TestArticlesNewestFirst(t *testing.T) {
	s := newTestService(t)
	articles := seedArticles(t, s, "https://old", "https://new")
	require.Len(t, articles, 2)
	assert.Equal(t, "https://new", articles[0].Link)
	assert.Equal(t, Votes{VoteTruth: 0, VoteLie: 0}, articles[0].Votes)
}

func TestArticleNotFound(t *testing.T) {
	s := newTestService(t)
	_, err := s.Article(context.Background(), 99)
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestSubmitComment(t *testing.T) {
	s := newTestService(t)
	id := seedArticles(t, s, "https://a")[0].ID
	ctx := context.Background()

	c, err := s.SubmitComment(ctx, id, "Randolph Carter", "It was not a dream.")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.NotEmpty(t, c.ID)

	skipped, err := s.SubmitComment(ctx, id, "", "anonymous")
	require.NoError(t, err)
	assert.Nil(t, skipped)

	_, err = s.SubmitComment(ctx, id+1, "x", "y")
	assert.ErrorIs(t, err, ErrArticleNotFound)

	comments, err := s.Comments(ctx, id)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Randolph Carter", comments[0].Author)
	assert.Equal(t, "It was not a dream.", comments[0].Body)
}

func TestMaskAuthor(t *testing.T) {
	assert.Equal(t, "████████ ██████", MaskAuthor("Randolph Carter"))
	assert.Equal(t, "", MaskAuthor(""))
}
