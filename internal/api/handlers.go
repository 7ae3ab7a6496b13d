package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cthulhu-news/internal/auth"
	"cthulhu-news/internal/reactions"
)

const (
	indexCacheKey = "/"
	htmlType      = "text/html; charset=utf-8"
)

func articleCacheKey(id int64) string {
	return "/article/" + strconv.FormatInt(id, 10)
}

func articleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) index(c *gin.Context) {
	if body, ok := h.pages.Get(indexCacheKey); ok {
		c.Data(http.StatusOK, htmlType, body)
		return
	}
	articles, err := h.svc.Reactions.Articles(c.Request.Context(), h.svc.PageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	body, err := render(h.tmpl, "index", indexData{Articles: articles})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.pages.Add(indexCacheKey, body)
	c.Data(http.StatusOK, htmlType, body)
}

func (h *Handler) article(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		c.String(http.StatusNotFound, "article not found")
		return
	}
	key := articleCacheKey(id)
	if body, ok := h.pages.Get(key); ok {
		c.Data(http.StatusOK, htmlType, body)
		return
	}

	ctx := c.Request.Context()
	article, err := h.svc.Reactions.Article(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	comments, err := h.svc.Reactions.Comments(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	body, err := render(h.tmpl, "article", articleData{
		Article:  article,
		Comments: commentsData{ArticleID: id, Comments: comments},
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.pages.Add(key, body)
	c.Data(http.StatusOK, htmlType, body)
}

type reactRequest struct {
	UserID string `json:"user_id"`
}

// react counts a vote and answers with the replacement counter span. The
// visitor comes from the JSON body or, failing that, the user query param.
func (h *Handler) react(c *gin.Context) {
	vote := c.Param("vote")
	if !reactions.ValidVote(vote) {
		c.String(http.StatusBadRequest, "invalid vote")
		return
	}
	id, ok := articleID(c)
	if !ok {
		c.String(http.StatusNotFound, "article not found")
		return
	}

	var req reactRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.String(http.StatusBadRequest, "invalid body")
			return
		}
	}
	if req.UserID == "" {
		req.UserID = c.Query("user")
	}

	count, err := h.svc.Reactions.React(c.Request.Context(), id, vote, req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.reactions.WithLabelValues(vote).Inc()
	h.pages.Remove(indexCacheKey)
	h.pages.Remove(articleCacheKey(id))

	body, err := render(h.tmpl, "votes", voteData{ArticleID: id, Vote: vote, Count: count})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, htmlType, body)
}

func (h *Handler) submitComment(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		c.String(http.StatusNotFound, "article not found")
		return
	}
	ctx := c.Request.Context()

	comment, err := h.svc.Reactions.SubmitComment(ctx, id, c.PostForm("author"), c.PostForm("comment"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if comment == nil {
		// empty author or comment: nothing stored, nothing to swap in
		c.Status(http.StatusNoContent)
		return
	}
	h.comments.Inc()
	h.pages.Remove(articleCacheKey(id))

	comments, err := h.svc.Reactions.Comments(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	body, err := render(h.tmpl, "comments", commentsData{ArticleID: id, Comments: comments, JustSubmitted: true})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, htmlType, body)
}

type visitorRequest struct {
	VisitorID string `json:"visitor_id"`
}

// issueVisitor signs a token for the given visitor id, or for a fresh one.
func (h *Handler) issueVisitor(c *gin.Context) {
	var req visitorRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
	}
	if req.VisitorID == "" {
		req.VisitorID = h.svc.Auth.NewVisitorID()
	}
	resp, err := h.svc.Auth.IssueVisitorToken(req.VisitorID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("👤 visitor token issued", zap.String("visitor_id", resp.VisitorID))
	c.JSON(http.StatusOK, resp)
}

type profileValue struct {
	Value string `json:"value"`
}

func (h *Handler) getProfile(c *gin.Context) {
	store := h.svc.Profiles.WithNamespace(c.GetString(auth.VisitorContextKey))
	value, ok, err := store.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, profileValue{Value: value})
}

func (h *Handler) putProfile(c *gin.Context) {
	var req profileValue
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	store := h.svc.Profiles.WithNamespace(c.GetString(auth.VisitorContextKey))
	if err := store.Set(c.Request.Context(), c.Param("key"), req.Value); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// fail maps service errors to status codes.
func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, reactions.ErrArticleNotFound):
		c.String(http.StatusNotFound, "article not found")
	case errors.Is(err, reactions.ErrInvalidVote):
		c.String(http.StatusBadRequest, "invalid vote")
	default:
		h.logger.Error("❌ request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
	}
}
