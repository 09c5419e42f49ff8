package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vidpipe/internal/api"
	"vidpipe/internal/config"
	"vidpipe/internal/jobs"
	"vidpipe/internal/logging"
	"vidpipe/internal/services"
)

const requestIDHeader = "X-Request-ID"

var registerValidatorsOnce sync.Once

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	jobs   *jobs.Service
	auth   *authenticator

	router   *gin.Engine
	requests *prometheus.CounterVec

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	var regErr error
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			regErr = errors.New("gin binding engine is not validator/v10")
			return
		}
		regErr = api.RegisterValidators(v)
	})
	if regErr != nil {
		return nil, regErr
	}

	gin.SetMode(gin.ReleaseMode)
	s := &apiServer{
		bind:   strings.TrimSpace(cfg.API.Bind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		jobs:   d.jobs,
		auth:   newAuthenticator(cfg),
		router: gin.New(),
		requests: promauto.With(d.registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidpipe",
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code.",
		}, []string{"method", "route", "status"}),
	}
	s.router.MaxMultipartMemory = 32 << 20
	s.routes(d.registry)
	return s, nil
}

func (s *apiServer) routes(registry *prometheus.Registry) {
	s.router.Use(s.requestID(), s.accessLog(), gin.CustomRecovery(s.recover))
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	group := s.router.Group("/api", s.auth.middleware())
	group.POST("/videos/upload", s.handleUpload)
	group.POST("/videos/:id/trim", s.handleTrim)
	group.POST("/videos/:id/overlays", s.handleOverlay)
	group.POST("/videos/:id/export", s.handleExport)
	group.GET("/videos/:id", s.handleVideo)
	group.GET("/videos/:id/derivatives", s.handleDerivatives)
	group.GET("/jobs", s.handleJobs)
	group.GET("/jobs/:id", s.handleJob)
	group.GET("/jobs/:id/result", s.handleJobResult)
	group.GET("/video-versions/:id", s.handleVersion)
	group.GET("/video-versions/:id/download", s.handleVersionDownload)
	group.GET("/status", s.handleStatus)

	s.router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, errors.New("route not found"))
	})
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_server_failed"),
			)
		}
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestID propagates or assigns a correlation id and stores it on the
// request context for downstream logging.
func (s *apiServer) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *apiServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		logger := logging.WithContext(c.Request.Context(), s.logger)
		attrs := []logging.Attr{
			logging.String("method", c.Request.Method),
			logging.String("route", route),
			logging.Int("status", status),
			logging.Duration("latency", time.Since(started)),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("api request failed", logging.Args(attrs...)...)
			return
		}
		logger.Debug("api request", logging.Args(attrs...)...)
	}
}

func (s *apiServer) recover(c *gin.Context, recovered any) {
	logging.ErrorWithContext(logging.WithContext(c.Request.Context(), s.logger), "api handler panic", "api_panic",
		logging.String("panic", fmt.Sprint(recovered)),
	)
	abortWithError(c, http.StatusInternalServerError, errors.New("internal error"))
}
