// Package api provides the REST API server for volcasyro
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/james-see/volcasyro/pkg/converter"
	"github.com/james-see/volcasyro/pkg/converter/devices"
	"github.com/james-see/volcasyro/pkg/observe"
	"github.com/james-see/volcasyro/pkg/syro"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title volcasyro API
// @version 1.0
// @description Build KORG volca sample transfer sessions and stream them as SYRO data
// @host localhost:8080
// @BasePath /api/v1

// SessionHeader carries the id of an encoding session on responses.
const SessionHeader = "X-Syro-Session"

// DefaultMaxUpload bounds a request body.
const DefaultMaxUpload = 64 << 20

// Server is the HTTP front end.
type Server struct {
	router      *gin.Engine
	logger      *slog.Logger
	metrics     *observe.Metrics
	promHandler http.Handler
	frameSize   int
	maxUpload   int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records every session on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithPrometheus serves the default Prometheus registry on /metrics.
func WithPrometheus() Option {
	return func(s *Server) { s.promHandler = promhttp.Handler() }
}

// WithFrameSize sets the encoder frame size used while streaming.
func WithFrameSize(n int) Option {
	return func(s *Server) { s.frameSize = n }
}

// WithMaxUpload bounds request bodies to n bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// NewServer builds the router.
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:    slog.Default(),
		frameSize: 32 << 10,
		maxUpload: DefaultMaxUpload,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())
	r.MaxMultipartMemory = s.maxUpload

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/formats", listFormats)
		v1.GET("/devices", listDevices)
		v1.GET("/devices/:id/limits", deviceLimits)
		v1.POST("/encode", s.handleEncode)
		v1.POST("/erase", s.handleErase)
		v1.POST("/inspect", s.handleInspect)
	}

	if s.promHandler != nil {
		r.GET("/metrics", gin.WrapH(s.promHandler))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Expose-Headers", SessionHeader+", Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "volcasyro",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the accepted input and output formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"inputs":      []converter.Format{converter.FormatWAV, converter.FormatMIDI, converter.FormatPattern, converter.FormatAllData, converter.FormatManifest},
		"outputs":     []converter.OutputFormat{converter.OutputRaw, converter.OutputWAV},
		"operations":  []string{syro.KindWriteSample.String(), syro.KindErase.String(), syro.KindWritePattern.String(), syro.KindRestoreAll.String()},
		"sample_rate": syro.SupportedSampleRates,
		"bit_depth":   syro.SupportedBitDepths,
		"channels":    syro.SupportedChannels,
	})
}

// deviceInfo is the JSON form of a device profile.
type deviceInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PreferredRate int    `json:"preferred_rate"`
}

// limitsInfo is the JSON form of syro.Limits.
type limitsInfo struct {
	MaxOperations int    `json:"max_operations"`
	MemoryBudget  int64  `json:"memory_budget"`
	SampleSlots   int    `json:"sample_slots"`
	PatternSlots  int    `json:"pattern_slots"`
	SlotPolicy    string `json:"slot_policy"`
}

// listDevices godoc
// @Summary List supported devices
// @Description Returns the device profiles a session can target
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]deviceInfo
// @Router /api/v1/devices [get]
func listDevices(c *gin.Context) {
	var out []deviceInfo
	for _, d := range devices.All() {
		out = append(out, deviceInfo{
			ID:            d.ID(),
			Name:          d.Name(),
			Description:   d.Description(),
			PreferredRate: d.PreferredRate(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}

// deviceLimits godoc
// @Summary Device limits
// @Description Returns the session limits of one device profile
// @Tags info
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} limitsInfo
// @Failure 404 {object} map[string]string
// @Router /api/v1/devices/{id}/limits [get]
func deviceLimits(c *gin.Context) {
	d, err := devices.Lookup(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	l := d.Limits()
	c.JSON(http.StatusOK, limitsInfo{
		MaxOperations: l.MaxOperations,
		MemoryBudget:  l.MemoryBudget,
		SampleSlots:   l.SampleSlots,
		PatternSlots:  l.PatternSlots,
		SlotPolicy:    l.SlotPolicy.String(),
	})
}

// handleEncode godoc
// @Summary Encode a session
// @Description Upload a YAML manifest plus the WAV/MIDI/pattern files it names and receive the SYRO stream
// @Tags encode
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param manifest formData file true "Session manifest (YAML)"
// @Param files formData file false "Files referenced by the manifest, matched by file name"
// @Param device query string false "Device profile (default: manifest device or volca-sample)"
// @Param format query string false "Output format: syro or wav (default: syro)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/encode [post]
func (s *Server) handleEncode(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected a multipart form: " + err.Error()})
		return
	}

	manifests := form.File["manifest"]
	if len(manifests) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Exactly one manifest file is required"})
		return
	}
	data, err := readUpload(manifests[0])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read manifest"})
		return
	}
	m, err := converter.LoadManifestFromReader(bytes.NewReader(data))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := devices.Lookup(c.DefaultQuery("device", m.Device))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := converter.ParseOutputFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv := converter.New(device)
	conv.SetLogger(s.logger)
	b, err := conv.BuildBatch(m, uploadReader(form.File["files"]))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	name := m.Name
	if name == "" {
		name = "session"
	}
	s.stream(c, b, name, out)
}

// eraseRequest is the body of POST /erase.
type eraseRequest struct {
	Slots  []int  `json:"slots" binding:"required"`
	Device string `json:"device"`
	Format string `json:"format"`
}

// handleErase godoc
// @Summary Erase sample slots
// @Description Returns a SYRO stream that clears the given sample slots
// @Tags encode
// @Accept json
// @Produce application/octet-stream
// @Param request body eraseRequest true "Slots to erase"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/erase [post]
func (s *Server) handleErase(c *gin.Context) {
	var req eraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	device, err := devices.Lookup(req.Device)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := converter.ParseOutputFormat(req.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := converter.New(device).Erase(req.Slots)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	s.stream(c, b, "erase", out)
}

// operationInfo is the JSON form of a sub-header.
type operationInfo struct {
	Kind          string `json:"kind"`
	Slot          int    `json:"slot"`
	PayloadLength uint32 `json:"payload_length"`
}

// handleInspect godoc
// @Summary Inspect a SYRO stream
// @Description Upload a raw SYRO stream and receive its header and operations
// @Tags inspect
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "SYRO stream"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/inspect [post]
func (s *Server) handleInspect(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	summary, err := syro.Inspect(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ops := make([]operationInfo, 0, len(summary.Operations))
	for _, op := range summary.Operations {
		ops = append(ops, operationInfo{Kind: op.Kind.String(), Slot: int(op.Slot), PayloadLength: op.PayloadLength})
	}
	c.JSON(http.StatusOK, gin.H{
		"version":            summary.Header.Version,
		"operation_count":    summary.Header.OperationCount,
		"total_payload_size": summary.Header.TotalPayloadSize,
		"total_bytes":        summary.TotalBytes,
		"operations":         ops,
	})
}

// stream writes the encoded batch as the response body. Headers announce
// the exact length, so a failure after the first byte can only be reported
// by cutting the response short.
func (s *Server) stream(c *gin.Context, b *syro.Batch, name string, out converter.OutputFormat) {
	session := uuid.NewString()
	logger := s.logger.With("session", session)

	e, err := syro.NewEncoder(b, nil, syro.WithFrameSize(s.frameSize), syro.WithLogger(logger))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error(), "session": session})
		return
	}

	c.Header(SessionHeader, session)
	c.Header("X-Syro-Operations", strconv.Itoa(b.Len()))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(name)+out.Ext()))
	c.Header("Content-Length", strconv.FormatInt(converter.StreamSize(e, out), 10))
	c.Header("Content-Type", out.ContentType())
	c.Status(http.StatusOK)

	start := time.Now()
	n, err := converter.WriteStream(c.Request.Context(), e, c.Writer, out)
	if s.metrics != nil {
		s.metrics.RecordSession(c.Request.Context(), b, string(out), n, time.Since(start), err)
	}
	if err != nil {
		logger.Error("stream aborted", "bytes", n, "err", err)
		c.Abort()
		return
	}
	logger.Info("session streamed", "operations", b.Len(), "bytes", n, "format", out)
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, syro.ErrCodec):
		return http.StatusInternalServerError
	case errors.Is(err, syro.ErrTooManyOperations),
		errors.Is(err, syro.ErrMemoryBudgetExceeded),
		errors.Is(err, syro.ErrSlotConflict):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// uploadReader resolves manifest file names against uploaded files by
// base name.
func uploadReader(files []*multipart.FileHeader) converter.ReadFunc {
	byName := make(map[string]*multipart.FileHeader, len(files))
	for _, fh := range files {
		byName[filepath.Base(fh.Filename)] = fh
	}
	return func(name string) ([]byte, error) {
		fh, ok := byName[filepath.Base(name)]
		if !ok {
			return nil, fmt.Errorf("file %q was not uploaded", name)
		}
		return readUpload(fh)
	}
}
