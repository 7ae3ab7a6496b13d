package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cthulhu-news/internal/auth"
	"cthulhu-news/internal/client"
	"cthulhu-news/internal/config"
	"cthulhu-news/internal/dedup"
	"cthulhu-news/internal/page"
	"cthulhu-news/internal/reactions"
	"cthulhu-news/internal/storage"
)

type fixture struct {
	router   *gin.Engine
	handler  *Handler
	auth     *auth.Service
	news     *reactions.Service
	articles []reactions.Article
}

func newFixture(t *testing.T, useGzip bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	authService := auth.NewService("test-secret", time.Hour)
	news, err := reactions.NewService(ctx, db, config.DriverSQLite, authService.Pseudonym, nil)
	require.NoError(t, err)
	profiles, err := storage.NewSQL(ctx, db, config.DriverSQLite, "default", false)
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err = news.UpsertArticles(ctx, []reactions.Article{
		{Title: "Strange lights over Innsmouth", Link: "https://news.test/1", Source: "Arkham Advertiser", PublishedAt: base},
		{Title: "Expedition returns from Antarctica", Link: "https://news.test/2", Source: "Miskatonic Gazette", PublishedAt: base.Add(time.Hour)},
	})
	require.NoError(t, err)
	articles, err := news.Articles(ctx, 0)
	require.NoError(t, err)

	router, handler, err := NewRouter(Services{
		Auth:      authService,
		Reactions: news,
		Profiles:  profiles,
		Registry:  prometheus.NewRegistry(),
		Server:    config.ServerConfig{Gzip: useGzip},
		Cache:     config.CacheConfig{TTL: time.Minute, Size: 10},
	})
	require.NoError(t, err)
	return &fixture{router: router, handler: handler, auth: authService, news: news, articles: articles}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func idOf(a reactions.Article) string { return strconv.FormatInt(a.ID, 10) }

func TestIndexListsArticlesWithControls(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	doc, err := page.ParseString(w.Body.String())
	require.NoError(t, err)
	controls := doc.Reactions().Controls()
	require.Len(t, controls, 4)
	assert.Equal(t, idOf(f.articles[0]), controls[0].Key())
	assert.Equal(t, 1, doc.Find("#votes-truth-"+idOf(f.articles[0])).Length())
	assert.Contains(t, w.Body.String(), "Expedition returns from Antarctica")
}

func TestArticlePage(t *testing.T) {
	f := newFixture(t, false)
	id := idOf(f.articles[0])

	w := f.do(httptest.NewRequest(http.MethodGet, "/article/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	doc, err := page.ParseString(w.Body.String())
	require.NoError(t, err)
	forms := doc.Comments().Controls()
	require.Len(t, forms, 1)
	assert.Equal(t, id, forms[0].Key())
	assert.Equal(t, "none", doc.Display("thanks-message-"+id))

	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodGet, "/article/999", nil)).Code)
	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodGet, "/article/abc", nil)).Code)
}

func TestReact(t *testing.T) {
	f := newFixture(t, false)
	id := idOf(f.articles[0])

	req := httptest.NewRequest(http.MethodPost, "/react/truth/"+id, strings.NewReader(`{"user_id":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<span id="votes-truth-`+id+`">1</span>`, w.Body.String())

	// the same visitor is not counted twice
	req = httptest.NewRequest(http.MethodPost, "/react/lie/"+id+"?user=u1", nil)
	w = f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `<span id="votes-lie-`+id+`">0</span>`, w.Body.String())

	assert.Equal(t, 2.0, testutil.ToFloat64(f.handler.reactions.WithLabelValues("truth"))+testutil.ToFloat64(f.handler.reactions.WithLabelValues("lie")))
}

func TestReactRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, http.StatusBadRequest, f.do(httptest.NewRequest(http.MethodPost, "/react/maybe/"+idOf(f.articles[0]), nil)).Code)
	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodPost, "/react/truth/999", nil)).Code)
}

func TestReactInvalidatesCachedPage(t *testing.T) {
	f := newFixture(t, false)
	id := idOf(f.articles[0])

	f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	_, cached := f.handler.pages.Get(indexCacheKey)
	require.True(t, cached)

	f.do(httptest.NewRequest(http.MethodPost, "/react/truth/"+id, nil))
	_, cached = f.handler.pages.Get(indexCacheKey)
	assert.False(t, cached)

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	doc, err := page.ParseString(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, "1", doc.Find("#votes-truth-"+id).Text())
}

func TestSubmitComment(t *testing.T) {
	f := newFixture(t, false)
	id := idOf(f.articles[0])

	form := url.Values{"author": {"Abdul Alhazred"}, "comment": {"That is not dead"}}
	req := httptest.NewRequest(http.MethodPost, "/submit_comment/"+id, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `id="comments-`+id+`"`)
	assert.Contains(t, w.Body.String(), "█████ ████████")
	assert.NotContains(t, w.Body.String(), "Abdul")
	assert.Contains(t, w.Body.String(), "That is not dead")

	req = httptest.NewRequest(http.MethodPost, "/submit_comment/"+id, strings.NewReader("author=&comment="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusNoContent, f.do(req).Code)
}

func TestVisitorAndProfile(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/visitor", strings.NewReader(`{"visitor_id":"1700000000123"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var visitor auth.VisitorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &visitor))
	assert.Equal(t, "1700000000123", visitor.VisitorID)

	get := func(token, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/profile/"+key, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return f.do(req)
	}

	assert.Equal(t, http.StatusUnauthorized, f.do(httptest.NewRequest(http.MethodGet, "/api/profile/articles", nil)).Code)
	assert.Equal(t, http.StatusNotFound, get(visitor.Token, "articles").Code)

	req := httptest.NewRequest(http.MethodPut, "/api/profile/articles", strings.NewReader(`{"value":"1,2"}`))
	req.Header.Set("Authorization", "Bearer "+visitor.Token)
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusNoContent, f.do(req).Code)

	w = get(visitor.Token, "articles")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"value":"1,2"}`, w.Body.String())

	// another visitor sees its own namespace
	other, err := f.auth.IssueVisitorToken("someone-else")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, get(other.Token, "articles").Code)
}

func TestIssueVisitorMintsID(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/visitor", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var visitor auth.VisitorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &visitor))
	_, err := strconv.ParseInt(visitor.VisitorID, 10, 64)
	assert.NoError(t, err)
}

func TestGzip(t *testing.T) {
	f := newFixture(t, true)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Cthulhu News")
}

func TestGzipLeavesEmptyResponsesAlone(t *testing.T) {
	f := newFixture(t, true)

	visitor, err := f.auth.IssueVisitorToken("1700000000123")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/profile/articles", strings.NewReader(`{"value":"7"}`))
	req.Header.Set("Authorization", "Bearer "+visitor.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	w := f.do(req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Zero(t, w.Body.Len())

	req = httptest.NewRequest(http.MethodGet, "/api/profile/articles", nil)
	req.Header.Set("Authorization", "Bearer "+visitor.Token)
	req.Header.Set("Accept-Encoding", "gzip")
	w = f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"7"}`, string(body))
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, true)

	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)

	f.do(httptest.NewRequest(http.MethodPost, "/react/truth/"+idOf(f.articles[0]), nil))
	w := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `cthulhu_news_reactions_total{vote="truth"} 1`)
}

func TestGuardedReactionAgainstServer(t *testing.T) {
	f := newFixture(t, true)
	srv := httptest.NewServer(f.router)
	defer srv.Close()
	ctx := context.Background()
	id := idOf(f.articles[0])

	c := client.New(srv.URL, 5*time.Second, nil)
	html, err := c.FetchPage(ctx, "/")
	require.NoError(t, err)
	doc, err := page.ParseString(html)
	require.NoError(t, err)

	var d *dedup.Deduplicator
	effect := func(ctx context.Context, action, key string) (string, error) {
		return c.ReactEffect(d.UserID())(ctx, action, key)
	}
	d = dedup.New(storage.NewMemory(), effect, doc.Reactions(), dedup.ReactionOptions(nil, nil))
	require.NoError(t, d.Initialize(ctx))

	payload := dedup.Payload{Action: "truth", ElementID: "votes-truth-" + id}
	outcome, err := d.PerformGuardedAction(ctx, id, payload)
	require.NoError(t, err)
	assert.Equal(t, dedup.OutcomePerformed, outcome)
	assert.Equal(t, "1", doc.Find("#votes-truth-"+id).Text())

	outcome, err = d.PerformGuardedAction(ctx, id, payload)
	require.NoError(t, err)
	assert.Equal(t, dedup.OutcomeSkipped, outcome)

	votes, err := f.news.Votes(ctx, f.articles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, votes["truth"])

	doc.Find("[data-like-btn=\"" + id + "\"]").Each(func(_ int, s *goquery.Selection) {
		_, disabled := s.Attr("disabled")
		assert.True(t, disabled)
	})
}
