package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"murmur/internal/domain"
	"murmur/internal/ports"
)

// Server exposes the intent pipeline over HTTP so external tools
// (editor plugins, scripts) can reuse the same resolution and
// confirmation gating without going through the microphone.
type Server struct {
	resolver ports.IntentResolver
	gate     ports.ExecutionGate
	executor ports.ActionExecutor
	meta     ports.ClassifyContext
	apiKey   string
	log      *slog.Logger
}

func NewServer(
	resolver ports.IntentResolver,
	gate ports.ExecutionGate,
	executor ports.ActionExecutor,
	meta ports.ClassifyContext,
	apiKey string,
) *Server {
	return &Server{
		resolver: resolver,
		gate:     gate,
		executor: executor,
		meta:     meta,
		apiKey:   apiKey,
		log:      slog.Default().With("component", "httpapi"),
	}
}

// Router builds the gin engine with auth and logging middleware.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests())

	router.GET("/healthz", s.handleHealth)

	authed := router.Group("/", s.requireAPIKey())
	authed.POST("/intent/process", s.handleProcess)
	authed.POST("/intent/confirm", s.handleConfirm)
	authed.POST("/intent/cancel", s.handleCancel)

	return router
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "api key is not configured"})
			return
		}
		if c.GetHeader("X-API-Key") != s.apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type requestContext struct {
	ActiveApp string `json:"active_app"`
	OS        string `json:"os"`
	Mode      string `json:"mode"`
}

type processRequest struct {
	Text                string                     `json:"text" binding:"required"`
	Context             *requestContext            `json:"context"`
	ConversationHistory []domain.ConversationEntry `json:"conversation_history"`
	CustomCommands      []domain.CustomCommand     `json:"custom_commands"`
	DictationStyle      string                     `json:"dictation_style"`
	// Execute requests the desktop side effect; when false the caller
	// only gets the resolved envelope.
	Execute bool `json:"execute"`
}

// processResponse is the resolved envelope with its fields at the top
// level, plus execution metadata when the caller asked for it.
type processResponse struct {
	domain.ActionEnvelope
	Transcript string                  `json:"transcript"`
	Pending    *domain.PendingAction   `json:"pending,omitempty"`
	Execution  *domain.ExecutionResult `json:"execution,omitempty"`
}

// mergeMeta overlays the request's situational fields onto the
// server-side defaults. Absent fields keep the boot-time values.
func (s *Server) mergeMeta(req processRequest) ports.ClassifyContext {
	meta := s.meta
	if req.Context != nil {
		if req.Context.ActiveApp != "" {
			meta.ActiveApp = req.Context.ActiveApp
		}
		if req.Context.OS != "" {
			meta.OS = req.Context.OS
		}
		if req.Context.Mode != "" {
			meta.Mode = req.Context.Mode
		}
	}
	if req.DictationStyle != "" {
		meta.DictationStyle = req.DictationStyle
	}
	if len(req.ConversationHistory) > 0 {
		meta.History = req.ConversationHistory
	}
	if len(req.CustomCommands) > 0 {
		meta.CustomCommands = req.CustomCommands
	}
	return meta
}

func (s *Server) handleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	env := s.resolver.Resolve(c.Request.Context(), text, s.mergeMeta(req))
	response := processResponse{ActionEnvelope: env, Transcript: text}

	if !req.Execute || env.ActionType == domain.ActionNone {
		c.JSON(http.StatusOK, response)
		return
	}

	pending, err := s.gate.Submit(text, env)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if pending != nil {
		response.Pending = pending
		c.JSON(http.StatusAccepted, response)
		return
	}

	execution := s.executor.Execute(c.Request.Context(), env)
	s.gate.RecordOutcome(c.Request.Context(), text, env, execution.Executed)
	response.Execution = &execution
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleConfirm(c *gin.Context) {
	pending, err := s.gate.Confirm()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	execution := s.executor.Execute(c.Request.Context(), pending.Envelope)
	s.gate.RecordOutcome(c.Request.Context(), pending.Transcript, pending.Envelope, execution.Executed)
	c.JSON(http.StatusOK, processResponse{
		ActionEnvelope: pending.Envelope,
		Transcript:     pending.Transcript,
		Execution:      &execution,
	})
}

func (s *Server) handleCancel(c *gin.Context) {
	s.gate.Cancel()
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}
