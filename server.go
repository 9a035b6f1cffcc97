package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/mdm_backend/config"
	"github.com/mmdatafocus/mdm_backend/middlewares"
	"github.com/mmdatafocus/mdm_backend/models"
	"github.com/mmdatafocus/mdm_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultPort = "8080"

var tracer = otel.Tracer("mdm-ledger")

// RateLimiter is a fixed-window request counter per school (or client IP).
// The client is looked up per request because Redis connects after the
// server starts listening.
type RateLimiter struct {
	client func() *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client func() *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// rateLimiterFromEnv returns nil unless RATE_LIMIT_ENABLED=true.
func rateLimiterFromEnv() *RateLimiter {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		return nil
	}
	return NewRateLimiter(config.GetRedisDB,
		positiveIntEnv("RATE_LIMIT_MAX_REQUESTS", 600),
		time.Duration(positiveIntEnv("RATE_LIMIT_WINDOW_SECONDS", 60))*time.Second)
}

func positiveIntEnv(key string, def int64) int64 {
	if n, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64); err == nil && n > 0 {
		return n
	}
	return def
}

func (rl *RateLimiter) key(c *gin.Context) string {
	if schoolId, ok := utils.GetSchoolIdFromContext(c.Request.Context()); ok {
		return "RateLimit:school:" + schoolId
	}
	return "RateLimit:ip:" + c.ClientIP()
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := rl.client()
		if client == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := rl.key(c)
		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(ctx, key, rl.window)
		}
		if count > rl.limit {
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// customErrorLogger logs the errors handlers attached with c.Error.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.WithFields(config.ScopeFields(c.Request.Context())).WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.FullPath(),
				"status": c.Writer.Status(),
			}).Error(c.Errors.String())
		}
	}
}

func requestSpan() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", middlewares.HeaderSchoolId, middlewares.HeaderUserId, middlewares.HeaderUserName, middlewares.HeaderCorrelationId)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.HeaderCorrelationId)
	return cors.New(corsConfig)
}

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/ledgers/:kind/:period", ledgerBalanceHandler())
	api.PUT("/ledgers/:kind/:period/inbound", inboundHandler())
	api.POST("/ledgers/:kind/:period/sync", syncLedgerHandler())
	api.POST("/ledgers/:kind/:period/lock", lockLedgerHandler(models.LedgerLockActionLock))
	api.POST("/ledgers/:kind/:period/unlock", lockLedgerHandler(models.LedgerLockActionUnlock))
	api.POST("/periods/:period/complete", completePeriodHandler())
	api.GET("/rates/:period", ratesHandler())

	api.POST("/reports/revalidate", revalidateHandler())
	api.GET("/reports/:kind/:period/preflight", preflightHandler())
	api.POST("/reports/:kind/:period", generateReportHandler())
	api.POST("/reports/:kind/:period/regenerate", regenerateReportHandler())
	api.GET("/reports/:kind/:period", getReportHandler())
	api.GET("/reports/:kind/:period/export", exportReportHandler())
	api.POST("/reports/:kind/:period/check", checkReportHandler())
	api.POST("/reports/:kind/:period/bills", addPurchaseBillHandler())

	api.POST("/attendance/changed", attendanceChangedHandler())

	r.POST("/pubsub/attendance", attendancePubSubHandler())
}

// dbReady answers /healthz immediately and holds every other route at 503
// until the database is connected.
func dbReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

func newRouter(logger *logrus.Logger, limiter *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(dbReady())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(corsMiddleware(), middlewares.SessionMiddleware(), requestSpan())
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.Use(customErrorLogger(logger), gin.Recovery())
	registerRoutes(r)
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(logger, rateLimiterFromEnv()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{"field": "http", "port": port}).Info("listening")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if sqlDB, err := config.GetDB().DB(); err == nil {
		defer sqlDB.Close()
	}

	if strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	} else {
		models.MigrateTable()
	}

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.ClosePubSub()
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
