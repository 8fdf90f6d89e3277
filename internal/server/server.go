package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"ctxrank/internal/domain"
	"ctxrank/internal/index"
)

var errInvalidK = errors.New("k must be an integer between 1 and 50")

// k bounds enforced at the HTTP boundary. The engine itself accepts any k.
const (
	minK = 1
	maxK = 50

	defaultTopK = 12

	// weightSumTolerance bounds how far the /search/hybrid weights may
	// drift from 1.0 before the request is rejected.
	weightSumTolerance = 0.01
)

// Server exposes the ranking engine over HTTP.
type Server struct {
	engine   *index.Index
	defaultK int
	logger   *slog.Logger
	echo     *echo.Echo
}

func New(engine *index.Index, defaultK int, logger *slog.Logger) *Server {
	if defaultK < minK || defaultK > maxK {
		defaultK = defaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:   engine,
		defaultK: defaultK,
		logger:   logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	e.GET("/ctx/search", s.handleSearch)
	e.GET("/search/hybrid", s.handleHybridSearch)
	e.GET("/index/stats", s.handleStats)
	e.POST("/index/rebuild", s.handleRebuild)
	e.GET("/health", s.handleHealth)

	s.echo = e
	return s
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type searchResponse struct {
	Query        string                `json:"query"`
	Results      []domain.SearchResult `json:"results"`
	TotalResults int                   `json:"total_results"`
	IndexStats   domain.IndexStats     `json:"index_stats"`
}

type rebuildResponse struct {
	Message       string `json:"message"`
	SectionsAdded int    `json:"sections_added"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSearch serves the main query endpoint. An optional weights
// parameter carries a JSON object overriding the configured blend.
func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("q")

	k, err := s.parseK(c.QueryParam("k"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	var weights domain.Weights
	if raw := c.QueryParam("weights"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &weights); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "weights must be a JSON object"})
		}
	}

	results, err := s.engine.SearchHybrid(c.Request().Context(), query, k, weights)
	if err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, searchResponse{
		Query:        query,
		Results:      results,
		TotalResults: len(results),
		IndexStats:   s.engine.Stats(),
	})
}

// handleHybridSearch serves the explainability endpoint with one query
// parameter per weight. Unlike the engine, this endpoint insists the four
// weights sum to 1.0.
func (s *Server) handleHybridSearch(c echo.Context) error {
	query := c.QueryParam("q")

	k, err := s.parseK(c.QueryParam("k"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	weights := domain.DefaultWeights()
	for _, p := range []struct {
		name string
		into *float64
	}{
		{"vector_weight", &weights.Vector},
		{"lexical_weight", &weights.Lexical},
		{"credibility_weight", &weights.Credibility},
		{"freshness_weight", &weights.Freshness},
	} {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: p.name + " must be a number"})
		}
		*p.into = v
	}

	if math.Abs(weights.Sum()-1.0) > weightSumTolerance {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "weights must sum to 1.0"})
	}

	results, err := s.engine.SearchHybrid(c.Request().Context(), query, k, weights)
	if err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, searchResponse{
		Query:        query,
		Results:      results,
		TotalResults: len(results),
		IndexStats:   s.engine.Stats(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Stats())
}

func (s *Server) handleRebuild(c echo.Context) error {
	n, err := s.engine.Rebuild(c.Request().Context(), nil)
	if err != nil {
		s.logger.Error("rebuild failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, rebuildResponse{
		Message:       "index rebuilt",
		SectionsAdded: n,
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) parseK(raw string) (int, error) {
	if raw == "" {
		return s.defaultK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errInvalidK
	}
	if k < minK || k > maxK {
		return 0, errInvalidK
	}
	return k, nil
}
