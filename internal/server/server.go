// Package server provides the HTTP API for stratad.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veldtlabs/stratad/internal/hierarchy"
	"github.com/veldtlabs/stratad/internal/ingest"
	"github.com/veldtlabs/stratad/internal/planner"
	"github.com/veldtlabs/stratad/internal/registry"
)

// HeaderAPIKey is the authentication header checked on API routes.
const HeaderAPIKey = "X-API-Key"

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// APIKey guards the /api/v1 routes. When empty, authentication is
	// bypassed and a warning is logged at startup.
	APIKey string

	// KnowledgeRoot is where uploaded documents are persisted, under
	// their organization/subunit/individual directory.
	KnowledgeRoot string
}

// Server provides the HTTP endpoints for stratad.
type Server struct {
	echo    *echo.Echo
	planner *planner.Planner
	logger  *zap.Logger
	config  *Config
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(p *planner.Planner, logger *zap.Logger, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("planner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			status := c.Response().Status
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			observeRequest(c.Path(), c.Request().Method, status, duration)

			return err
		}
	})

	s := &Server{
		echo:    e,
		planner: p,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1", s.requireAPIKey())
	v1.POST("/chat", s.handleChat)
	v1.POST("/documents", s.handleUpload)
}

// requireAPIKey checks the X-API-Key header against the configured key.
// An unset key disables the check entirely.
func (s *Server) requireAPIKey() echo.MiddlewareFunc {
	if s.config.APIKey == "" {
		s.logger.Warn("api key not configured, authentication disabled")
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	key := []byte(s.config.APIKey)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := []byte(c.Request().Header.Get(HeaderAPIKey))
			if subtle.ConstantTimeCompare(got, key) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
			}
			return next(c)
		}
	}
}

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Question     string             `json:"question"`
	Organization string             `json:"organization"`
	Subunit      string             `json:"subunit,omitempty"`
	Individual   string             `json:"individual,omitempty"`
	History      []planner.Exchange `json:"history,omitempty"`
}

// ChatResponse is the response body for POST /api/v1/chat.
type ChatResponse struct {
	Answer  string             `json:"answer"`
	History []planner.Exchange `json:"history"`
}

// UploadResponse is the response body for POST /api/v1/documents.
type UploadResponse struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
	Message  string `json:"message"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat answers a question against an organization's knowledge base.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}
	if req.Organization == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "organization field is required")
	}

	result, err := s.planner.Answer(c.Request().Context(), planner.Request{
		Question:     req.Question,
		Organization: req.Organization,
		Subunit:      req.Subunit,
		Individual:   req.Individual,
		History:      req.History,
	})
	if err != nil {
		return s.mapError(c, err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Answer:  result.Answer,
		History: result.History,
	})
}

// handleUpload persists a multipart document under the knowledge base at
// its hierarchy directory and ingests it into the organization's store.
func (s *Server) handleUpload(c echo.Context) error {
	organization := c.FormValue("organization")
	if organization == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "organization field is required")
	}
	scope, err := hierarchy.New(organization, c.FormValue("subunit"), c.FormValue("individual"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "individual requires a subunit")
	}
	if err := registry.ValidateOrganization(organization); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid organization identifier")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	name := filepath.Base(fileHeader.Filename)
	if name == "." || name == string(filepath.Separator) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file name")
	}
	if !ingest.SupportedExtension(name) {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported document format")
	}

	rel := filepath.Join(scopeDir(scope), name)
	dst := filepath.Join(s.config.KnowledgeRoot, rel)
	if err := s.saveUpload(fileHeader, dst); err != nil {
		s.logger.Error("failed to persist upload",
			zap.String("path", dst),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store document")
	}

	chunks, err := s.planner.Ingest(c.Request().Context(), dst, rel, scope)
	if err != nil {
		return s.mapError(c, err)
	}

	s.logger.Info("document ingested",
		zap.String("organization", organization),
		zap.String("file", name),
		zap.Int("chunks", chunks),
	)
	observeIngest(organization, chunks)

	return c.JSON(http.StatusOK, UploadResponse{
		Filename: name,
		Chunks:   chunks,
		Message:  "document ingested successfully",
	})
}

// saveUpload copies a multipart file to dst, creating parent directories.
func (s *Server) saveUpload(fileHeader *multipart.FileHeader, dst string) error {
	src, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return out.Close()
}

// scopeDir is the knowledge-base subdirectory of a hierarchy scope.
func scopeDir(scope hierarchy.Path) string {
	dir := scope.Organization
	if scope.Subunit != "" {
		dir = filepath.Join(dir, scope.Subunit)
	}
	if scope.Individual != "" {
		dir = filepath.Join(dir, scope.Individual)
	}
	return dir
}

// mapError translates domain errors to HTTP status codes. Internal detail
// never reaches the response body.
func (s *Server) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, registry.ErrUnknownOrganization):
		return echo.NewHTTPError(http.StatusNotFound, "unknown organization")
	case errors.Is(err, registry.ErrInvalidOrganization),
		errors.Is(err, hierarchy.ErrBrokenHierarchy):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported document format")
	case errors.Is(err, ingest.ErrCorruptFile):
		return echo.NewHTTPError(http.StatusBadRequest, "document could not be parsed")
	default:
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Echo exposes the underlying router for route registration and tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
