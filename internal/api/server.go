// Package api provides the HTTP and websocket transport for player sessions.
// Session endpoints are public; operator endpoints require a bearer token.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/talgya/hexwatt/internal/config"
	"github.com/talgya/hexwatt/internal/economy"
	"github.com/talgya/hexwatt/internal/engine"
	"github.com/talgya/hexwatt/internal/persistence"
	"github.com/talgya/hexwatt/internal/session"
)

// Server serves player sessions over HTTP.
type Server struct {
	Store   *session.Store
	Eng     *engine.Engine
	DB      *persistence.DB  // Nil disables history and archives
	Catalog *economy.Catalog // Template shown on /catalog
	Hub     *Hub
	Config  config.ServerConfig

	schemas *Schemas
	limiter *RateLimiter
	started time.Time
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() (*gin.Engine, error) {
	if s.schemas == nil {
		schemas, err := LoadSchemas()
		if err != nil {
			return nil, err
		}
		s.schemas = schemas
	}
	if s.Hub == nil {
		s.Hub = NewHub()
	}
	if s.Catalog == nil {
		s.Catalog = economy.DefaultCatalog()
	}
	if s.limiter == nil {
		s.limiter = NewRateLimiter(s.Config.RateLimit.PerSecond, s.Config.RateLimit.Burst)
	}
	if s.started.IsZero() {
		s.started = time.Now()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), corsMiddleware(s.Config.CORSOrigins))

	if dir := s.Config.StaticDir; dir != "" {
		r.Static("/static", dir)
		r.StaticFile("/", filepath.Join(dir, "index.html"))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/catalog", s.handleCatalog)

	sessions := v1.Group("/sessions", RateLimitMiddleware(s.limiter))
	sessions.POST("", s.handleCreateSession)
	sessions.GET("/:id", s.handleGetSession)
	sessions.GET("/:id/tiles/:tile", s.handleTileQuote)
	sessions.GET("/:id/history", s.handleHistory)
	sessions.POST("/:id/buy-tile", s.handleBuyTile)
	sessions.POST("/:id/buy-building", s.handleBuyBuilding)
	sessions.POST("/:id/upgrade-building", s.handleUpgradeBuilding)
	v1.GET("/sessions/:id/stream", s.handleStream)

	admin := v1.Group("", s.adminOnly())
	admin.POST("/sweep", s.handleSweep)
	admin.POST("/speed", s.handleSpeed)
	admin.GET("/archives/:id", s.handleArchive)

	return r, nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Config.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.Config.AdminKey != "", "ledger", s.DB != nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// OnTick advances every session one tick and streams the new state to
// sessions that have subscribers. Wire it to the engine's OnTick.
func (s *Server) OnTick(tick uint64) {
	n := s.Store.TickAll(func(id string, sess *engine.Session, rep engine.TickReport) {
		if s.Hub.Subscribers(id) == 0 {
			return
		}
		s.Hub.Publish(id, Message{Type: "state", Tick: rep.Tick, Payload: sess.Snapshot()})
	})
	if tick%60 == 0 {
		slog.Info("tick", "tick", tick, "sessions", n)
	}
}

// Sweep evicts idle sessions and forgets idle rate-limit buckets.
func (s *Server) Sweep(idle time.Duration) []string {
	ids := s.Store.Sweep()
	if s.limiter != nil {
		s.limiter.Cleanup(idle)
	}
	return ids
}

// corsMiddleware adds CORS headers for allowed frontend origins.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestLogger logs each request through slog at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.Config.AdminKey
}

// adminOnly requires the admin bearer token.
func (s *Server) adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Config.AdminKey == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
				Error:   "admin_disabled",
				Message: "admin endpoints disabled (no HEXWATT_ADMIN_KEY set)",
			})
			return
		}
		if !s.checkBearerToken(c.Request) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "unauthorized"})
			return
		}
		c.Next()
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errBadRequest marks request bodies or parameters that failed validation.
var errBadRequest = errors.New("bad request")

// writeError maps engine and store failures onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, session.ErrNotFound):
		status, code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, session.ErrFull):
		status, code = http.StatusServiceUnavailable, "session_limit"
	case errors.Is(err, engine.ErrTileNotFound):
		status, code = http.StatusNotFound, "tile_not_found"
	case errors.Is(err, engine.ErrInvalidTileState):
		status, code = http.StatusConflict, "invalid_tile_state"
	case errors.Is(err, engine.ErrInsufficientFunds):
		status, code = http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, engine.ErrUnknownBuilding):
		status, code = http.StatusBadRequest, "unknown_building"
	case errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, persistence.ErrNoArchive):
		status, code = http.StatusNotFound, "archive_not_found"
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: code, Message: err.Error()})
}
