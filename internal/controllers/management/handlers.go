package management

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chrissnell/snowline/internal/pipeline"
	"github.com/chrissnell/snowline/pkg/config"
	"github.com/chrissnell/snowline/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the management API
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

type loginRequest struct {
	Token string `json:"token"`
}

type authStatus struct {
	Authenticated bool `json:"authenticated"`
}

type purgeReply struct {
	Purged bool `json:"purged"`
}

// Login checks a token and sets the session cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}
	if !h.controller.validToken(req.Token) {
		h.formatter.WriteError(w, r, http.StatusUnauthorized, "invalid token", "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    req.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400,
	})
	h.formatter.WriteResponse(w, r, authStatus{Authenticated: true}, nil)
}

// GetAuthStatus reports whether the request is authenticated.
func (h *Handlers) GetAuthStatus(w http.ResponseWriter, r *http.Request) {
	h.formatter.WriteResponse(w, r, authStatus{Authenticated: h.controller.authenticated(r)}, nil)
}

// GetConfig returns the loaded configuration with the access token removed.
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.controller.configProvider.LoadConfig()
	if err != nil {
		h.controller.logger.Errorf("error loading configuration: %v", err)
		h.formatter.WriteError(w, r, http.StatusInternalServerError, "error loading configuration", "")
		return
	}
	redacted := *cfg
	if cfg.Management != nil {
		m := *cfg.Management
		m.AuthToken = ""
		redacted.Management = &m
	}
	h.formatter.WriteResponse(w, r, redacted, nil)
}

// GetAOIs lists the configured AOIs.
func (h *Handlers) GetAOIs(w http.ResponseWriter, r *http.Request) {
	aois, err := h.controller.configProvider.GetAOIs()
	if err != nil {
		h.controller.logger.Errorf("error listing AOIs: %v", err)
		h.formatter.WriteError(w, r, http.StatusInternalServerError, "error listing AOIs", "")
		return
	}
	if aois == nil {
		aois = []config.AOIData{}
	}
	h.formatter.WriteResponse(w, r, aois, nil)
}

// PutAOI adds or replaces an AOI. The geometry must build a valid AOI.
func (h *Handlers) PutAOI(w http.ResponseWriter, r *http.Request) {
	store, ok := h.writableStore(w, r)
	if !ok {
		return
	}

	var aoi config.AOIData
	if err := json.NewDecoder(r.Body).Decode(&aoi); err != nil {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "invalid JSON", err.Error())
		return
	}
	if aoi.Name == "" {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "invalid AOI", "name is required")
		return
	}
	if _, err := pipeline.AOIsFromConfig([]config.AOIData{aoi}); err != nil {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "invalid AOI", err.Error())
		return
	}

	if err := store.AddAOI(&aoi); err != nil {
		h.controller.logger.Errorf("error saving AOI %s: %v", aoi.Name, err)
		h.formatter.WriteError(w, r, http.StatusInternalServerError, "error saving AOI", "")
		return
	}
	h.controller.logger.Infow("saved AOI", "aoi", aoi.Name)
	h.formatter.WriteResponseStatus(w, r, http.StatusCreated, aoi, nil)
}

// DeleteAOI removes an AOI.
func (h *Handlers) DeleteAOI(w http.ResponseWriter, r *http.Request) {
	store, ok := h.writableStore(w, r)
	if !ok {
		return
	}

	name := mux.Vars(r)["name"]
	if err := store.DeleteAOI(name); err != nil {
		if errors.Is(err, config.ErrAOINotFound) {
			h.formatter.WriteError(w, r, http.StatusNotFound, "aoi not found", name)
			return
		}
		h.controller.logger.Errorf("error deleting AOI %s: %v", name, err)
		h.formatter.WriteError(w, r, http.StatusInternalServerError, "error deleting AOI", "")
		return
	}
	h.controller.logger.Infow("deleted AOI", "aoi", name)
	w.WriteHeader(http.StatusNoContent)
}

// PurgeCache empties the composite cache.
func (h *Handlers) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if h.controller.cache == nil {
		h.formatter.WriteError(w, r, http.StatusServiceUnavailable, "composite cache not enabled", "")
		return
	}
	if err := h.controller.cache.Purge(); err != nil {
		h.controller.logger.Errorf("error purging cache: %v", err)
		h.formatter.WriteError(w, r, http.StatusInternalServerError, "error purging cache", "")
		return
	}
	h.controller.logger.Info("purged composite cache")
	h.formatter.WriteResponse(w, r, purgeReply{Purged: true}, nil)
}

func (h *Handlers) writableStore(w http.ResponseWriter, r *http.Request) (AOIStore, bool) {
	store, ok := h.controller.configProvider.(AOIStore)
	if !ok || h.controller.configProvider.IsReadOnly() {
		h.formatter.WriteError(w, r, http.StatusForbidden, "configuration is read-only", "use the sqlite config backend to edit AOIs")
		return nil, false
	}
	return store, true
}
