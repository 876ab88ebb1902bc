package restserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/log"
	"github.com/chrissnell/snowline/internal/metrics"
	"github.com/chrissnell/snowline/internal/storage"
	"github.com/chrissnell/snowline/pkg/config"
)

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	Server       http.Server
	reader       storage.Reader
	health       *storage.HealthManager
	metrics      *metrics.Collector
	logger       *zap.SugaredLogger
	handlers     *Handlers
}

// NewController creates a new REST server controller. reader may be nil
// when no readable storage engine is configured; the snowline endpoints
// then answer 503.
func NewController(ctx context.Context, wg *sync.WaitGroup, sc config.ServerData, reader storage.Reader, health *storage.HealthManager, mc *metrics.Collector, logger *zap.SugaredLogger) (*Controller, error) {
	if mc == nil {
		return nil, fmt.Errorf("REST server needs a metrics collector")
	}
	ctrl := &Controller{
		ctx:     ctx,
		wg:      wg,
		reader:  reader,
		health:  health,
		metrics: mc,
		logger:  logger,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if sc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		sc.Port = 8080
	}
	ctrl.serverConfig = sc

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.serverConfig.Cert != "" && c.serverConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.serverConfig.Cert, c.serverConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))
	router.Use(c.metricsMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/aois", c.handlers.GetAOIs).Methods(http.MethodGet)
	api.HandleFunc("/aois/{aoi}/snowlines", c.handlers.GetSnowlines).Methods(http.MethodGet)
	api.HandleFunc("/aois/{aoi}/snowlines/latest", c.handlers.GetLatestSnowline).Methods(http.MethodGet)

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", c.metrics.Handler()).Methods(http.MethodGet)

	return router
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware counts requests per route template.
func (c *Controller) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		route := "unmatched"
		if r := mux.CurrentRoute(req); r != nil {
			if tmpl, err := r.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)

		c.metrics.APIRequestsTotal.WithLabelValues(route, req.Method, strconv.Itoa(sw.status)).Inc()
		c.metrics.APIRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
