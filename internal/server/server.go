// Package server exposes haplogroup classification over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"

	"github.com/ppiankov/haplo/internal/genome"
	"github.com/ppiankov/haplo/internal/model"
	"github.com/ppiankov/haplo/internal/pipeline"
	"github.com/ppiankov/haplo/internal/worker"
)

const (
	serviceID   = "haplo"
	serviceName = "Haplo"
	bodyLimit   = "64M"
)

// Server is the HTTP front end of a pipeline
type Server struct {
	echo     *echo.Echo
	pipeline *pipeline.Pipeline
	config   *model.Config
	limiter  *worker.Limiter
	version  string
	logger   *slog.Logger
}

// New creates a server and registers its routes
func New(p *pipeline.Pipeline, cfg *model.Config, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:     echo.New(),
		pipeline: p,
		config:   cfg,
		limiter:  worker.NewLimiter(cfg.Server.RequestsPerSecond, cfg.Server.Burst),
		version:  version,
		logger:   logger,
	}
	s.echo.HideBanner = true

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit(bodyLimit))
	s.echo.Use(s.logRequests)

	s.echo.GET("/service-info", s.serviceInfo)
	s.echo.POST("/haplogroups/classify", s.classify, s.rateLimit)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured address until Shutdown
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.config.Server.Addr)
	err := s.echo.Start(s.config.Server.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Info("request",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"remote", c.RealIP(),
			"duration", time.Since(start))
		return nil
	}
}

// rateLimit refuses clients that exceed the configured request rate
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiter.Allow(c.RealIP()) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

func (s *Server) serviceInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":          serviceID,
		"name":        serviceName,
		"description": "Y-DNA and mtDNA haplogroup classification of consumer genotype data",
		"version":     s.version,
		"builds":      []model.Build{model.BuildHg19, model.BuildHg38},
		"trees": map[string]string{
			string(model.KindY):  s.config.Trees.Y.Source,
			string(model.KindMT): s.config.Trees.MT.Source,
		},
	})
}

// classifyRequest carries the genome either as a call map or as a WeGene payload
type classifyRequest struct {
	Subject string                 `json:"subject"`
	Build   string                 `json:"build"`
	Genome  map[string]interface{} `json:"genome"`
	Inputs  *genome.RawInputs      `json:"inputs"`
}

func (s *Server) classify(c echo.Context) error {
	var req classifyRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	buildText := req.Build
	if buildText == "" {
		buildText = s.config.Build
	}
	build, ok := model.ParseBuild(buildText)
	if !ok {
		return errorJSON(c, http.StatusBadRequest, model.NewValidationError("build", "expected hg19 or hg38, got %q", req.Build).Error())
	}

	var (
		calls []genome.Call
		err   error
	)
	switch {
	case req.Inputs != nil:
		calls, err = genome.DecodeRaw(*req.Inputs, s.config.Genome.IndexDir)
	case len(req.Genome) > 0:
		calls, err = genome.DecodeCallMap(req.Genome)
	default:
		return errorJSON(c, http.StatusBadRequest, "request has neither genome nor inputs")
	}
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	report := s.pipeline.RunBuild(c.Request().Context(), calls, build)
	report.Subject = req.Subject

	return c.JSON(statusFor(report), report)
}

// statusFor is 200 unless every run failed, in which case the failure decides
func statusFor(report *model.Report) int {
	runs := report.Runs()
	for _, run := range runs {
		if run.Err() == nil {
			return http.StatusOK
		}
	}
	if len(runs) == 0 {
		return http.StatusOK
	}

	err := report.Err()
	var vErr *model.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}
