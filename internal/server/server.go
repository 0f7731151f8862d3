// Package server exposes evaluations and the memory log over JSON HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/evalia/internal/llm"
	"github.com/ppiankov/evalia/internal/metrics"
	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/pipeline"
	"github.com/ppiankov/evalia/internal/report"
	"github.com/ppiankov/evalia/internal/store"
)

// Evaluator runs one evaluation
type Evaluator interface {
	Evaluate(ctx context.Context, req pipeline.Request) (*pipeline.Evaluation, error)
}

// History reads the memory log
type History interface {
	Recent(n int) ([]model.MemoryEntry, error)
	Get(id string) (*model.MemoryEntry, error)
}

// Options configures a Server
type Options struct {
	Addr           string
	MaxUploadBytes int64
	LogoPath       string
	RequestTimeout time.Duration
}

// Server is the HTTP front end
type Server struct {
	eval    Evaluator
	history History
	opts    Options
	logger  *zap.Logger
	engine  *gin.Engine
}

// New creates a server and registers its routes
func New(eval Evaluator, history History, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}

	s := &Server{
		eval:    eval,
		history: history,
		opts:    opts,
		logger:  logger.Named("server"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.logRequests())
	engine.MaxMultipartMemory = opts.MaxUploadBytes

	engine.GET("/healthz", s.health)
	api := engine.Group("/api")
	api.POST("/evaluate", s.evaluate)
	api.GET("/history", s.listHistory)
	api.GET("/history/:id", s.getEntry)
	api.GET("/history/:id/report.pdf", s.entryPDF)
	api.GET("/history/:id/seal.png", s.entrySeal)

	s.engine = engine
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// evaluateRequest is the JSON body of POST /api/evaluate
type evaluateRequest struct {
	Claim   string `json:"claim" form:"claim"`
	URL     string `json:"url" form:"url"`
	Persona string `json:"persona" form:"persona"`
	Brutal  bool   `json:"brutal" form:"brutal"`
	NoSave  bool   `json:"no_save" form:"no_save"`
}

// evaluateResponse adds the display metrics to the stored entry
type evaluateResponse struct {
	Entry      *model.MemoryEntry `json:"entry"`
	URLText    string             `json:"url_text,omitempty"`
	Saved      bool               `json:"saved"`
	Average    string             `json:"average"`
	Confidence int                `json:"confidence"`
	TLDR       string             `json:"tldr"`
}

func (s *Server) evaluate(c *gin.Context) {
	var body evaluateRequest
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	persona, err := model.ParsePersona(strings.ToLower(strings.TrimSpace(body.Persona)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Brutal {
		persona = model.PersonaBrutal
	}

	image, err := s.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	eval, err := s.eval.Evaluate(ctx, pipeline.Request{
		Claim:   body.Claim,
		URL:     body.URL,
		Image:   image,
		Persona: persona,
		NoSave:  body.NoSave,
	})
	if errors.Is(err, pipeline.ErrEmptyRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("Evaluation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation failed"})
		return
	}

	c.JSON(http.StatusOK, evaluateResponse{
		Entry:      eval.Entry,
		URLText:    eval.URLText,
		Saved:      eval.Saved,
		Average:    metrics.FormatAverage(metrics.Average(eval.Entry.Scores)),
		Confidence: metrics.Confidence(eval.Entry.Scores),
		TLDR:       metrics.TLDR(eval.Result()),
	})
}

// readUpload returns the optional "image" file of a multipart request
func (s *Server) readUpload(c *gin.Context) (*llm.Image, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if header.Size > s.opts.MaxUploadBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", s.opts.MaxUploadBytes)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	img := llm.NewImage(data)
	return &img, nil
}

func (s *Server) listHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(limit)
	if err != nil {
		s.logger.Error("Reading memory log failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read memory log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// lookup resolves :id, writing the error response itself when it fails
func (s *Server) lookup(c *gin.Context) (*model.MemoryEntry, bool) {
	entry, err := s.history.Get(c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	case errors.Is(err, store.ErrAmbiguousID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	case err != nil:
		s.logger.Error("Reading memory log failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read memory log"})
		return nil, false
	}
	return entry, true
}

func (s *Server) getEntry(c *gin.Context) {
	entry, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) entryPDF(c *gin.Context) {
	entry, ok := s.lookup(c)
	if !ok {
		return
	}
	data, err := report.PDF(entry)
	if err != nil {
		s.logger.Error("Failed to generate PDF report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "PDF generation failed"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.PDFFilename(entry.Timestamp)))
	c.Data(http.StatusOK, "application/pdf", data)
}

func (s *Server) entrySeal(c *gin.Context) {
	entry, ok := s.lookup(c)
	if !ok {
		return
	}
	if entry.Analysis == nil || len(entry.Analysis.Scores) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry has no analysis"})
		return
	}
	png, err := report.Seal(metrics.TLDR(entry.Analysis), entry.BrutalityMode, s.opts.LogoPath)
	if err != nil {
		s.logger.Error("Failed to render seal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "seal rendering failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
