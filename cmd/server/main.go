// CTHULHU NEWS - noticias del fin del mundo, con reacciones
// =========================================================
//
// CARACTERÍSTICAS:
// - Ingesta RSS/Atom en paralelo (feeds + OPML)
// - Reacciones verdad/mentira con un voto por visitante
// - Comentarios con autores enmascarados
// - Tokens JWT de visitante y perfil remoto por visitante
// - SQLite por defecto, PostgreSQL para producción
// - Métricas Prometheus en /metrics
//
// CONFIGURACIÓN:
// - Archivo YAML en $CTHULHU_CONFIG (por defecto config.yaml)
// - Variables CTHULHU_* sobrescriben el archivo (CTHULHU_SERVER__ADDRESS)

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"cthulhu-news/internal/api"
	"cthulhu-news/internal/auth"
	"cthulhu-news/internal/config"
	"cthulhu-news/internal/logging"
	"cthulhu-news/internal/news"
	"cthulhu-news/internal/reactions"
	"cthulhu-news/internal/storage"
)

func main() {
	// Cargar configuración
	configPath := os.Getenv("CTHULHU_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("Error cargando configuración: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuración inválida: ", err)
	}

	// Configurar logger estructurado
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal("Error inicializando logger: ", err)
	}
	defer logger.Sync()

	logger.Info("🚀 Iniciando CTHULHU NEWS", zap.String("config", configPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Inicializar base de datos
	db, err := storage.InitDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("❌ Error inicializando base de datos", zap.Error(err))
	}
	defer db.Close()

	// Inicializar servicios
	authService := auth.NewService(cfg.JWT.Secret, cfg.JWT.Expiration)
	reactionService, err := reactions.NewService(ctx, db, cfg.Database.Driver, authService.Pseudonym, logger)
	if err != nil {
		logger.Fatal("❌ Error preparando esquema de reacciones", zap.Error(err))
	}
	profiles, err := storage.NewSQL(ctx, db, cfg.Database.Driver, "default", false)
	if err != nil {
		logger.Fatal("❌ Error preparando perfiles", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Configurar Gin
	gin.SetMode(gin.ReleaseMode)
	router, handler, err := api.NewRouter(api.Services{
		Auth:      authService,
		Reactions: reactionService,
		Profiles:  profiles,
		Logger:    logger,
		Registry:  registry,
		Server:    cfg.Server,
		Cache:     cfg.Cache,
		PageSize:  cfg.News.MaxArticles,
	})
	if err != nil {
		logger.Fatal("❌ Error configurando rutas", zap.Error(err))
	}

	// Ingesta de feeds en segundo plano
	feeds, err := news.FeedList(cfg.News.Feeds, cfg.News.OPML)
	if err != nil {
		logger.Fatal("❌ Error leyendo feeds", zap.Error(err))
	}
	ingestor := news.NewIngestor(news.NewFetcher(cfg.News.FetchTimeout, logger), reactionService, feeds, cfg.News.MaxArticles, logger)
	ingestor.OnChange = handler.InvalidatePages
	go ingestor.Run(ctx, cfg.News.RefreshInterval)

	// Crear servidor HTTP
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Iniciar servidor en goroutine
	go func() {
		logger.Info("🌐 Servidor iniciando en", zap.String("address", cfg.Server.Address), zap.Int("feeds", len(feeds)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("❌ Error iniciando servidor", zap.Error(err))
		}
	}()

	// Esperar señal de interrupción
	<-ctx.Done()
	stop()

	logger.Info("🛑 Cerrando servidor...")

	// Contexto con timeout para shutdown graceful
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("❌ Error cerrando servidor", zap.Error(err))
		return
	}

	logger.Info("✅ Servidor cerrado exitosamente")
}
