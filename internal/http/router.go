package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"memberbot/internal/service"
)

const requestIDHeader = "X-Request-ID"

// RouterOptions agrupa lo opcional del router.
type RouterOptions struct {
	// MediaDir se sirve en /media cuando las imagenes se guardan en disco.
	MediaDir string
	Metrics  http.Handler
	// ScannerJWT protege /api/members cuando no es nil.
	ScannerJWT *service.JWTService
	Health     func(ctx context.Context) error
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	webhookH *WebhookHandler,
	memberH *MemberHandler,
	opts RouterOptions,
) *gin.Engine {
	r := gin.New()

	r.Use(requestIDMiddleware(), zapLoggerMiddleware(logger), gin.Recovery())

	webhooks := r.Group("/webhook")
	webhooks.POST("/line", webhookH.LINE)
	webhooks.POST("/telegram", webhookH.Telegram)

	api := r.Group("/api", jsonContentTypeMiddleware())
	if opts.ScannerJWT != nil {
		api.Use(JWTAuthMiddleware(opts.ScannerJWT))
	}
	api.GET("/members/:id", memberH.GetMember)

	r.GET("/healthz", healthHandler(opts.Health))
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.MediaDir != "" {
		r.Static("/media", opts.MediaDir)
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDHeader)),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
