package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/audiolibrelab/audiocast/internal/audio"
	"github.com/audiolibrelab/audiocast/internal/config"
	"github.com/audiolibrelab/audiocast/internal/metrics"
	"github.com/audiolibrelab/audiocast/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Options configures the web server.
type Options struct {
	Port        string
	StaticDir   string
	CORSOrigins []string
	Stats       *metrics.Stats // nil disables /metrics
}

// Server represents the web server streaming captured audio
type Server struct {
	service service.Service
	opts    Options
	engine  *gin.Engine
}

// SystemAudioResponse is returned by POST /select-system-audio.
type SystemAudioResponse struct {
	Selected string `json:"selected"`
	Label    string `json:"label"`
}

// New creates a new web server instance
func New(svc service.Service, opts Options) *Server {
	s := &Server{service: svc, opts: opts}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(requestID())
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  s.opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"X-Request-ID", "Content-Type"},
			ExposeHeaders: []string{"X-Request-ID", "Content-Type"},
			MaxAge:        12 * time.Hour,
		}))
	}
	r.Use(accessLog())

	r.GET("/stream", s.handleStream)
	r.GET("/devices", s.handleDevices)
	r.POST("/set-device", s.handleSetDevice)
	r.POST("/set-ffmpeg", s.handleSetFFmpeg)
	r.POST("/select-system-audio", s.handleSelectSystemAudio)
	r.GET("/logs", s.handleLogs)
	r.GET("/ffmpeg-args", s.handleFFmpegArgs)
	r.POST("/reset-config", s.handleResetConfig)
	if s.opts.Stats != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Stats.Handler()))
	}

	r.NoRoute(s.handleStatic)
	return r
}

// Run serves until ctx is done, then shuts down. Live streams are
// interrupted through their request contexts before the server waits for
// handlers to return.
func (s *Server) Run(ctx context.Context) error {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:              ":" + s.opts.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	localIP := getLocalIP()
	slog.Info("Starting audiocast server",
		"port", s.opts.Port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.opts.Port),
		"stream_url", fmt.Sprintf("http://%s:%s/stream", localIP, s.opts.Port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.opts.Port))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	cancelBase()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// handleStream pipes a capture process into the response
func (s *Server) handleStream(c *gin.Context) {
	err := s.service.Stream(c.Request.Context(), c.Writer)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, audio.ErrNoDeviceSelected):
		s.sendErrorResponse(c, http.StatusBadRequest, "No capture device selected", "operation", "stream")
	case c.Writer.Written():
		// headers are already out, the response just ends
		slog.Error("Stream ended with error", "error", err)
	default:
		s.sendErrorResponse(c, http.StatusInternalServerError,
			fmt.Sprintf("Failed to start stream: %v", err), "operation", "stream")
	}
}

// handleDevices lists the capture devices and the current selection
func (s *Server) handleDevices(c *gin.Context) {
	list, err := s.service.ListDevices(c.Request.Context())
	if err != nil {
		s.sendErrorResponse(c, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list devices: %v", err), "operation", "devices")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleSetDevice(c *gin.Context) {
	device := strings.TrimSpace(c.PostForm("device"))
	if device == "" {
		s.sendErrorResponse(c, http.StatusBadRequest, "Device is required", "operation", "set_device")
		return
	}

	if _, err := s.service.SelectDevice(device); err != nil {
		s.sendErrorResponse(c, statusFor(err), fmt.Sprintf("Failed to set device: %v", err),
			"operation", "set_device", "device", device)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handleSetFFmpeg accepts either a preset name or raw encoding tokens
func (s *Server) handleSetFFmpeg(c *gin.Context) {
	if !s.service.CustomArgsAllowed() {
		s.sendErrorResponse(c, http.StatusGone, "Custom ffmpeg arguments are disabled", "operation", "set_ffmpeg")
		return
	}

	var err error
	if preset := strings.TrimSpace(c.PostForm("preset")); preset != "" {
		_, err = s.service.SetEncodingPreset(preset)
	} else {
		_, err = s.service.SetEncodingArgs(c.PostForm("args"))
	}
	if err != nil {
		s.sendErrorResponse(c, statusFor(err), fmt.Sprintf("Failed to set ffmpeg arguments: %v", err),
			"operation", "set_ffmpeg")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleSelectSystemAudio(c *gin.Context) {
	dev, err := s.service.SelectSystemAudio(c.Request.Context())
	if err != nil {
		s.sendErrorResponse(c, statusFor(err), err.Error(), "operation", "select_system_audio")
		return
	}
	c.JSON(http.StatusOK, SystemAudioResponse{Selected: dev.Value, Label: dev.Label})
}

func (s *Server) handleLogs(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(s.service.Logs()))
}

func (s *Server) handleFFmpegArgs(c *gin.Context) {
	args, err := s.service.EncodingArgs()
	if err != nil {
		s.sendErrorResponse(c, statusFor(err), fmt.Sprintf("Failed to read configuration: %v", err),
			"operation", "ffmpeg_args")
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(args))
}

func (s *Server) handleResetConfig(c *gin.Context) {
	if _, err := s.service.ResetConfiguration(); err != nil {
		s.sendErrorResponse(c, statusFor(err), fmt.Sprintf("Failed to reset configuration: %v", err),
			"operation", "reset_config")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, audio.ErrNoDeviceSelected),
		errors.Is(err, config.ErrInvalidEncoding),
		errors.Is(err, config.ErrInvalidDevice):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoLoopbackDevice):
		return http.StatusNotFound
	case errors.Is(err, service.ErrCustomArgsDisabled):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(c *gin.Context, statusCode int, errorMsg string, logContext ...any) {
	logFields := []any{"error_message", errorMsg, "status_code", statusCode, "request_id", getRequestID(c)}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	if statusCode >= http.StatusInternalServerError {
		slog.Error("Sending error response to client", logFields...)
	} else {
		slog.Warn("Sending error response to client", logFields...)
	}

	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
