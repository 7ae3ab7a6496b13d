// Package api serves the news pages and the endpoints the page scripts
// call: reactions, comments, visitor tokens and visitor profiles.
package api

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cthulhu-news/internal/auth"
	"cthulhu-news/internal/config"
	"cthulhu-news/internal/logging"
	"cthulhu-news/internal/reactions"
	"cthulhu-news/internal/storage"
)

// Services groups what the handlers depend on.
type Services struct {
	Auth      *auth.Service
	Reactions *reactions.Service
	// Profiles is the shared profile table; each visitor gets its own
	// namespace view.
	Profiles *storage.SQL
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Server   config.ServerConfig
	Cache    config.CacheConfig
	PageSize int
}

// Handler holds the state shared by the routes.
type Handler struct {
	svc       Services
	logger    *zap.Logger
	tmpl      *template.Template
	pages     *expirable.LRU[string, []byte]
	reactions *prometheus.CounterVec
	comments  prometheus.Counter
}

func NewHandler(svc Services) (*Handler, error) {
	if svc.Auth == nil || svc.Reactions == nil || svc.Profiles == nil {
		return nil, errors.New("api: auth, reactions and profiles are required")
	}
	if svc.Logger == nil {
		svc.Logger = zap.NewNop()
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	size := svc.Cache.Size
	if size <= 0 {
		size = 100
	}

	h := &Handler{
		svc:    svc,
		logger: svc.Logger,
		tmpl:   tmpl,
		pages:  expirable.NewLRU[string, []byte](size, nil, svc.Cache.TTL),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cthulhu_news",
			Name:      "reactions_total",
			Help:      "Reaction requests by vote kind.",
		}, []string{"vote"}),
		comments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cthulhu_news",
			Name:      "comments_total",
			Help:      "Comments accepted by the server.",
		}),
	}
	if svc.Registry != nil {
		if err := svc.Registry.Register(h.reactions); err != nil {
			return nil, fmt.Errorf("register reactions counter: %w", err)
		}
		if err := svc.Registry.Register(h.comments); err != nil {
			return nil, fmt.Errorf("register comments counter: %w", err)
		}
	}
	return h, nil
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(svc Services) (*gin.Engine, *Handler, error) {
	h, err := NewHandler(svc)
	if err != nil {
		return nil, nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(h.logger))
	router.Use(corsMiddleware(svc.Server))
	router.Use(securityMiddleware())
	if svc.Server.Gzip {
		router.Use(gzipMiddleware("/metrics"))
	}

	SetupRoutes(router, h)
	return router, h, nil
}

func SetupRoutes(router *gin.Engine, h *Handler) {
	router.GET("/", h.index)
	router.GET("/article/:id", h.article)
	router.POST("/react/:vote/:id", h.react)
	router.POST("/submit_comment/:id", h.submitComment)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	if h.svc.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.svc.Registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.POST("/visitor", h.issueVisitor)

		profile := api.Group("/profile")
		profile.Use(h.svc.Auth.VisitorMiddleware())
		{
			profile.GET("/:key", h.getProfile)
			profile.PUT("/:key", h.putProfile)
		}
	}
}

// InvalidatePages drops every cached page. The ingestor calls it after new
// articles land.
func (h *Handler) InvalidatePages() {
	h.pages.Purge()
}
