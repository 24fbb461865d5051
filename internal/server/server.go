// Package server exposes a session store over a small REST API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/model"
	"github.com/rcliao/insight-sync/internal/store"
)

// Error codes returned in the "error" field.
const (
	CodeSessionNotFound  = "session_not_found"
	CodeValidationFailed = "validation_failed"
	CodeBadRequest       = "bad_request"
	CodeInternal         = "internal_error"
)

// Server serves the session API.
type Server struct {
	store  store.Store
	log    *slog.Logger
	engine *gin.Engine
}

// CommitRequest is the body of POST /sessions/:id/insights.
type CommitRequest struct {
	SourceType model.SourceType `json:"source_type"`
	Insights   []model.Insight  `json:"insights"`
}

// CommitResponse is returned by a successful commit.
type CommitResponse struct {
	Insights []model.Insight `json:"insights"`
}

// MessageRequest is the body of POST /sessions/:id/messages.
type MessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Reason  string          `json:"reason,omitempty"`
	Entries []model.Insight `json:"entries,omitempty"`
}

// New builds the router over st.
func New(st store.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{store: st, log: log, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	s.engine.POST("/sessions", s.createSession)
	s.engine.GET("/sessions", s.listSessions)
	s.engine.DELETE("/sessions/:id", s.deleteSession)
	s.engine.POST("/sessions/:id/insights", s.commitInsights)
	s.engine.GET("/sessions/:id/history", s.history)
	s.engine.POST("/sessions/:id/messages", s.addMessage)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) createSession(c *gin.Context) {
	id, err := s.store.CreateSession(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) listSessions(c *gin.Context) {
	p := store.ListSessionsParams{ID: c.Query("id")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: CodeBadRequest, Reason: "invalid limit " + strconv.Quote(v)})
			return
		}
		p.Limit = n
	}
	sessions, err := s.store.ListSessions(c.Request.Context(), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []model.SessionInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.store.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) commitInsights(c *gin.Context) {
	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: CodeBadRequest, Reason: err.Error()})
		return
	}
	committed, err := s.store.CommitInsights(c.Request.Context(), c.Param("id"), req.Insights, req.SourceType)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, CommitResponse{Insights: committed})
}

func (s *Server) history(c *gin.Context) {
	p, err := s.store.FetchHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) addMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: CodeBadRequest, Reason: err.Error()})
		return
	}
	msg, err := s.store.AddMessage(c.Request.Context(), store.MessageParams{
		SessionID: c.Param("id"),
		Role:      req.Role,
		Content:   req.Content,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) fail(c *gin.Context, err error) {
	var verr *gateway.ValidationError
	switch {
	case errors.Is(err, gateway.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: CodeSessionNotFound, Reason: err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: CodeValidationFailed, Reason: verr.Reason, Entries: verr.Entries})
	default:
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: CodeInternal})
	}
}
