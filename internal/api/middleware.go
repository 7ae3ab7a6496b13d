package api

import (
	"compress/gzip"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cthulhu-news/internal/config"
)

func corsMiddleware(cfg config.ServerConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(c)
}

func securityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Headers de seguridad
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// Las páginas cambian con cada voto
		c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Header("Pragma", "no-cache")

		c.Next()
	}
}

// gzipMiddleware compresses responses for clients that accept gzip. The
// metrics endpoint negotiates its own encoding and is left alone. Responses
// without a body (204, 304, HEAD) go out untouched.
func gzipMiddleware(skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		for _, p := range skip {
			if c.Request.URL.Path == p {
				c.Next()
				return
			}
		}
		c.Header("Vary", "Accept-Encoding")
		w := &gzipResponseWriter{ResponseWriter: c.Writer}
		c.Writer = w
		defer w.close()
		c.Next()
	}
}

// gzipResponseWriter starts compressing on the first body write, so handlers
// that never write leave no encoding header or gzip trailer behind.
type gzipResponseWriter struct {
	gin.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.gz == nil {
		if w.Written() || !bodyAllowed(w.Status()) {
			return w.ResponseWriter.Write(b)
		}
		h := w.Header()
		h.Set("Content-Encoding", "gzip")
		h.Del("Content-Length")
		w.gz = gzip.NewWriter(w.ResponseWriter)
	}
	return w.gz.Write(b)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipResponseWriter) close() {
	if w.gz != nil {
		_ = w.gz.Close()
	}
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
