package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"
	"golang.org/x/time/rate"

	"github.com/HarshGadhecha/SpendWise/internal/common"
	"github.com/HarshGadhecha/SpendWise/internal/service"
)

const (
	identityKey = "identity"
	stopKey     = "stop"
)

// ServerConfig configures the document server.
type ServerConfig struct {
	// RatePerMinute is the sustained request rate allowed per user.
	RatePerMinute int
	// Burst is how many requests a user may make at once.
	Burst int
}

// Server exposes a DocumentStore over HTTP. Every request is authenticated
// and confined to the documents owned by the caller.
type Server struct {
	backend  service.DocumentStore
	auth     service.Authenticator
	ws       *melody.Melody
	limiters map[string]*rate.Limiter
	engine   *gin.Engine
	cfg      ServerConfig
	mu       sync.Mutex
}

// wsMessage is pushed to live query clients.
type wsMessage struct {
	Type      string             `json:"type"`
	Documents []service.Document `json:"documents"`
}

// NewServer builds the HTTP handler for backend.
func NewServer(backend service.DocumentStore, authenticator service.Authenticator, cfg ServerConfig) *Server {
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 120
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, cfg.RatePerMinute/4)
	}

	m := melody.New()
	m.Config.MaxMessageSize = 1024 * 1024
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	s := &Server{
		backend:  backend,
		auth:     authenticator,
		ws:       m,
		limiters: make(map[string]*rate.Limiter),
		cfg:      cfg,
	}

	m.HandleConnect(s.handleConnect)
	m.HandleDisconnect(func(sess *melody.Session) {
		if stop, ok := sess.Get(stopKey); ok {
			stop.(func())()
		}
	})
	m.HandleError(func(_ *melody.Session, err error) {
		slog.Debug("WebSocket error", "error", err)
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1", s.authenticate, s.rateLimit)
	v1.GET("/:collection", s.handleQuery)
	v1.GET("/:collection/live", s.handleLive)
	v1.GET("/:collection/:id", s.handleGet)
	v1.PUT("/:collection/:id", s.handleSet)
	v1.DELETE("/:collection/:id", s.handleDelete)

	s.engine = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Close disconnects every live query client.
func (s *Server) Close() error {
	return s.ws.Close()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "Request completed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start))
	}
}

func (s *Server) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	id, err := s.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

func (s *Server) rateLimit(c *gin.Context) {
	id := identity(c)
	s.mu.Lock()
	limiter, ok := s.limiters[id.UserID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(s.cfg.RatePerMinute)/60.0), s.cfg.Burst)
		s.limiters[id.UserID] = limiter
	}
	s.mu.Unlock()

	if !limiter.Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	c.Next()
}

func identity(c *gin.Context) service.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(service.Identity)
	return id
}

func (s *Server) handleQuery(c *gin.Context) {
	desc, _ := strconv.ParseBool(c.Query("desc"))
	q := service.Query{
		Collection: c.Param("collection"),
		OwnerID:    identity(c).UserID,
		OrderBy:    c.Query("orderBy"),
		Descending: desc,
	}
	docs, err := s.backend.Query(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	if docs == nil {
		docs = []service.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

func (s *Server) handleGet(c *gin.Context) {
	doc, err := s.backend.Get(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if ownerOf(c.Param("collection"), c.Param("id"), doc) != identity(c).UserID {
		// Other users' documents are indistinguishable from missing ones.
		writeError(c, common.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleSet(c *gin.Context) {
	collection, id := c.Param("collection"), c.Param("id")
	owner := identity(c).UserID

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	doc, err := decodeDocument(body)
	if err != nil || doc == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return
	}

	if collection == UsersCollection && id != owner {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot write another user's profile"})
		return
	}
	if claimed, ok := doc[service.OwnerField].(string); ok && claimed != "" && claimed != owner {
		c.JSON(http.StatusForbidden, gin.H{"error": "document belongs to another user"})
		return
	}
	if collection != UsersCollection {
		doc[service.OwnerField] = owner
	}

	if !s.ownsOrAbsent(c, collection, id, owner) {
		return
	}
	if err := s.backend.Set(c.Request.Context(), collection, id, doc); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDelete(c *gin.Context) {
	collection, id := c.Param("collection"), c.Param("id")
	if !s.ownsOrAbsent(c, collection, id, identity(c).UserID) {
		return
	}
	if err := s.backend.Delete(c.Request.Context(), collection, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ownsOrAbsent reports whether the caller may write collection/id, writing
// the error response when it may not.
func (s *Server) ownsOrAbsent(c *gin.Context, collection, id, owner string) bool {
	existing, err := s.backend.Get(c.Request.Context(), collection, id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return true
	case err != nil:
		writeError(c, err)
		return false
	case ownerOf(collection, id, existing) != owner:
		c.JSON(http.StatusForbidden, gin.H{"error": "document belongs to another user"})
		return false
	default:
		return true
	}
}

func (s *Server) handleLive(c *gin.Context) {
	desc, _ := strconv.ParseBool(c.Query("desc"))
	q := service.Query{
		Collection: c.Param("collection"),
		OwnerID:    identity(c).UserID,
		OrderBy:    c.Query("orderBy"),
		Descending: desc,
	}
	if err := s.ws.HandleRequestWithKeys(c.Writer, c.Request, map[string]any{"query": q}); err != nil {
		slog.Warn("Failed to upgrade websocket", "error", err)
	}
}

func (s *Server) handleConnect(sess *melody.Session) {
	v, _ := sess.Get("query")
	q, ok := v.(service.Query)
	if !ok {
		_ = sess.Close()
		return
	}

	stop, err := s.backend.Listen(context.Background(), q, func(docs []service.Document) {
		if docs == nil {
			docs = []service.Document{}
		}
		msg, err := json.Marshal(wsMessage{Type: "snapshot", Documents: docs})
		if err != nil {
			slog.Error("Failed to encode snapshot", "error", err)
			return
		}
		if err := sess.Write(msg); err != nil {
			slog.Debug("Dropping snapshot for closed session", "error", err)
		}
	})
	if err != nil {
		slog.Warn("Failed to start live query", "collection", q.Collection, "error", err)
		_ = sess.Close()
		return
	}
	sess.Set(stopKey, stop)
	if sess.IsClosed() {
		stop()
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, common.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		common.LogError(err, "Document request failed", common.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"user":   identity(c).UserID,
		})
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
