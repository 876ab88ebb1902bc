// Package management serves the authenticated API used to edit AOIs and
// maintain the composite cache.
package management

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/snowline/internal/cache"
	"github.com/chrissnell/snowline/internal/log"
	"github.com/chrissnell/snowline/pkg/config"
)

const sessionCookie = "snowline_session"

// AOIStore is implemented by configuration providers that can edit AOIs.
type AOIStore interface {
	GetAOIs() ([]config.AOIData, error)
	AddAOI(aoi *config.AOIData) error
	DeleteAOI(name string) error
}

// tokenStore is implemented by providers that can persist a generated token.
type tokenStore interface {
	UpdateManagement(m *config.ManagementData) error
}

// Controller represents the management API controller
type Controller struct {
	ctx              context.Context
	wg               *sync.WaitGroup
	configProvider   config.ConfigProvider
	managementConfig config.ManagementData
	cache            *cache.Store
	Server           http.Server
	logger           *zap.SugaredLogger
	handlers         *Handlers
}

// NewController creates a new management API controller. store may be nil
// when no composite cache is configured.
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, mc config.ManagementData, store *cache.Store, logger *zap.SugaredLogger) (*Controller, error) {
	if configProvider == nil {
		return nil, fmt.Errorf("management API needs a config provider")
	}
	ctrl := &Controller{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		cache:          store,
		logger:         logger,
	}

	// Set default values
	if mc.Port == 0 {
		logger.Info("management API port not specified; defaulting to 8081")
		mc.Port = 8081
	}
	if mc.ListenAddr == "" {
		logger.Info("management API listen-addr not provided; defaulting to 127.0.0.1 (localhost only)")
		mc.ListenAddr = "127.0.0.1"
	}

	if mc.AuthToken == "" {
		mc.AuthToken = generateAuthToken()
		if ts, ok := configProvider.(tokenStore); ok && !configProvider.IsReadOnly() {
			if err := ts.UpdateManagement(&mc); err != nil {
				logger.Errorf("failed to save auth token to database: %v", err)
			}
		} else {
			logger.Warn("config provider cannot store the generated token; it will change on restart")
		}
		logger.Infow("generated management API access token", "token", mc.AuthToken)
	}
	ctrl.managementConfig = mc

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", mc.ListenAddr, mc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the management API server
func (c *Controller) StartController() error {
	c.logger.Infow("starting management API server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.managementConfig.Cert != "" && c.managementConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.managementConfig.Cert, c.managementConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			c.logger.Errorf("management API server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the management API server...")
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
	router.Use(corsMiddleware)

	// Authentication routes (no auth required)
	router.HandleFunc("/auth/login", c.handlers.Login).Methods(http.MethodPost)
	router.HandleFunc("/auth/status", c.handlers.GetAuthStatus).Methods(http.MethodGet)

	// API routes (with authentication)
	api := router.PathPrefix("/api").Subrouter()
	api.Use(c.authMiddleware)
	api.HandleFunc("/config", c.handlers.GetConfig).Methods(http.MethodGet)
	api.HandleFunc("/aois", c.handlers.GetAOIs).Methods(http.MethodGet)
	api.HandleFunc("/aois", c.handlers.PutAOI).Methods(http.MethodPost)
	api.HandleFunc("/aois/{name}", c.handlers.DeleteAOI).Methods(http.MethodDelete)
	api.HandleFunc("/cache/purge", c.handlers.PurgeCache).Methods(http.MethodPost)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticated reports whether r carries the token as a bearer token or a
// session cookie.
func (c *Controller) authenticated(r *http.Request) bool {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && c.validToken(token) {
		return true
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil && c.validToken(cookie.Value) {
		return true
	}
	return false
}

func (c *Controller) validToken(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.managementConfig.AuthToken)) == 1
}

// authMiddleware validates the bearer token or session cookie
func (c *Controller) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.authenticated(r) {
			c.logger.Debugf("auth failed for %s", r.URL.Path)
			c.handlers.formatter.WriteError(w, r, http.StatusUnauthorized, "authentication required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
