// Package server exposes the parser over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"coretax/internal"
	"coretax/internal/config"
	"coretax/internal/pipeline"
)

const (
	apiName    = "Coretax Data Parser API"
	apiVersion = "1.0.0"
)

// Recorder persists results produced by a request.
type Recorder interface {
	Record(ctx context.Context, files []pipeline.File, batch internal.BatchResult, source internal.DocumentSource, emailID *int) ([]int64, error)
}

type Server struct {
	cfg      config.Config
	parser   *pipeline.Parser
	recorder Recorder
	logger   *slog.Logger
	engine   *gin.Engine
}

type Option func(*Server)

func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(cfg config.Config, parser *pipeline.Parser, opts ...Option) *Server {
	s := &Server{cfg: cfg, parser: parser, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.MaxMultipartMemory = s.maxUpload()
	r.Use(requestID(), accessLog(s.logger), gin.Recovery(), cors())

	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.GET("/api-info", s.apiInfo)
	r.POST("/parse", s.parse)
	r.POST("/parse-multiple", s.parseMultiple)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) maxUpload() int64 {
	mb := s.cfg.MaxUploadMB
	if mb <= 0 {
		mb = config.DefaultMaxUploadMB
	}
	return int64(mb) << 20
}

func (s *Server) serviceName() string {
	if s.cfg.ServiceName != "" {
		return s.cfg.ServiceName
	}
	return apiName
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": apiName,
		"version": apiVersion,
		"endpoints": gin.H{
			"POST /parse":          "Parse single PDF file",
			"POST /parse-multiple": "Parse multiple PDF files",
			"GET /health":          "Health check",
		},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": s.serviceName()})
}

func (s *Server) apiInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_name": apiName,
		"version":  apiVersion,
		"endpoints": []gin.H{
			{"method": "GET", "path": "/", "description": "Basic API information"},
			{"method": "GET", "path": "/health", "description": "Health check"},
			{
				"method":      "POST",
				"path":        "/parse",
				"description": "Parse single PDF file",
				"parameters":  gin.H{"file": "PDF file (form-data)"},
			},
			{
				"method":      "POST",
				"path":        "/parse-multiple",
				"description": "Parse multiple PDF files in one request",
				"parameters":  gin.H{"files": "Multiple PDF files (form-data)"},
			},
			{"method": "GET", "path": "/api-info", "description": "This endpoint"},
		},
		"tolerance": s.parser.Tolerance(),
	})
}

func (s *Server) parse(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, "missing form field \"file\"")
		return
	}
	file, err := s.readUpload(header)
	if err != nil {
		abortErr(c, err)
		return
	}

	res := s.parser.ParseOne(c.Request.Context(), file.Data, file.Name)
	s.record(c, []pipeline.File{file}, pipeline.Tally([]internal.ParseResult{res}))
	c.JSON(http.StatusOK, res)
}

func (s *Server) parseMultiple(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		abort(c, http.StatusBadRequest, "expected multipart form with field \"files\"")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		abort(c, http.StatusBadRequest, "at least one file is required")
		return
	}

	// Reject the whole request before parsing anything.
	for _, h := range headers {
		if !isPDFName(h.Filename) {
			abortErr(c, fmt.Errorf("%w: %q", pipeline.ErrNotPDF, h.Filename))
			return
		}
	}

	files := make([]pipeline.File, 0, len(headers))
	for _, h := range headers {
		f, err := s.readUpload(h)
		if err != nil {
			abortErr(c, err)
			return
		}
		files = append(files, f)
	}

	batch := s.parser.ParseMany(c.Request.Context(), files)
	s.record(c, files, batch)
	c.JSON(http.StatusOK, batch)
}

func (s *Server) readUpload(h *multipart.FileHeader) (pipeline.File, error) {
	if !isPDFName(h.Filename) {
		return pipeline.File{}, fmt.Errorf("%w: %q", pipeline.ErrNotPDF, h.Filename)
	}
	if h.Size > s.maxUpload() {
		return pipeline.File{}, fmt.Errorf("%w: %q is %d bytes", pipeline.ErrTooLarge, h.Filename, h.Size)
	}
	f, err := h.Open()
	if err != nil {
		return pipeline.File{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload()+1))
	if err != nil {
		return pipeline.File{}, err
	}
	return pipeline.File{Name: filepath.Base(h.Filename), Data: data}, nil
}

func (s *Server) record(c *gin.Context, files []pipeline.File, batch internal.BatchResult) {
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.Record(c.Request.Context(), files, batch, internal.SourceUpload, nil); err != nil {
		s.logger.Error("persist results failed", "request_id", c.GetString(requestIDKey), "error", err)
	}
}

func isPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

func abort(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func abortErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotPDF):
		abort(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrTooLarge):
		abort(c, http.StatusRequestEntityTooLarge, err.Error())
	default:
		abort(c, http.StatusInternalServerError, "error processing file: "+err.Error())
	}
}
