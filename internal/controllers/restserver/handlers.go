package restserver

import (
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/snowline/internal/storage"
	"github.com/chrissnell/snowline/pkg/responseformat"
)

// maxHealthAge is how old an engine's last check may be before it counts as
// unhealthy.
const maxHealthAge = 2 * time.Minute

// Handlers contains all HTTP handlers for the REST server
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

// GetAOIs lists the AOIs with stored results.
func (h *Handlers) GetAOIs(w http.ResponseWriter, req *http.Request) {
	reader := h.controller.reader
	if reader == nil {
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable, "storage not enabled", "")
		return
	}

	aois, err := reader.AOIs(req.Context())
	if err != nil {
		h.controller.logger.Errorf("error listing AOIs: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "error listing AOIs", "")
		return
	}
	if aois == nil {
		aois = []string{}
	}
	h.formatter.WriteResponse(w, req, AOIList{AOIs: aois}, map[string]string{"Cache-Control": "max-age=60"})
}

// GetSnowlines returns the stored snowline series of one AOI. The optional
// from and to query parameters (YYYY-MM-DD) bound the interval start dates,
// to being exclusive; status keeps only results with that status.
func (h *Handlers) GetSnowlines(w http.ResponseWriter, req *http.Request) {
	aoi, records, ok := h.fetch(w, req)
	if !ok {
		return
	}

	if status := req.URL.Query().Get("status"); status != "" {
		records = slices.DeleteFunc(records, func(r storage.Record) bool { return r.Status != status })
	}

	out := SnowlineList{AOI: aoi, Snowlines: make([]Snowline, 0, len(records))}
	for _, r := range records {
		out.Snowlines = append(out.Snowlines, transformRecord(r))
	}
	h.formatter.WriteResponse(w, req, out, map[string]string{"Cache-Control": "max-age=60"})
}

// GetLatestSnowline returns the most recent successful result of one AOI.
func (h *Handlers) GetLatestSnowline(w http.ResponseWriter, req *http.Request) {
	aoi, records, ok := h.fetch(w, req)
	if !ok {
		return
	}

	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Status == "ok" {
			h.formatter.WriteResponse(w, req, transformRecord(records[i]), map[string]string{"Cache-Control": "max-age=60"})
			return
		}
	}
	h.formatter.WriteError(w, req, http.StatusNotFound, "no snowline available", aoi)
}

// fetch validates the AOI and time range of a request and loads its
// records in time order. It writes the error reply itself.
func (h *Handlers) fetch(w http.ResponseWriter, req *http.Request) (string, []storage.Record, bool) {
	reader := h.controller.reader
	if reader == nil {
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable, "storage not enabled", "")
		return "", nil, false
	}

	aoi := mux.Vars(req)["aoi"]
	from, err := parseDate(req.URL.Query().Get("from"))
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid from date", err.Error())
		return "", nil, false
	}
	to, err := parseDate(req.URL.Query().Get("to"))
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid to date", err.Error())
		return "", nil, false
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "invalid range", "to must be after from")
		return "", nil, false
	}

	known, err := reader.AOIs(req.Context())
	if err != nil {
		h.controller.logger.Errorf("error listing AOIs: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "error listing AOIs", "")
		return "", nil, false
	}
	if !slices.Contains(known, aoi) {
		h.formatter.WriteError(w, req, http.StatusNotFound, "aoi not found", aoi)
		return "", nil, false
	}

	records, err := reader.Snowlines(req.Context(), aoi, from, to)
	if err != nil {
		h.controller.logger.Errorf("error fetching snowlines for %s: %v", aoi, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, "error fetching snowlines", "")
		return "", nil, false
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Time.Before(records[j].Time) })
	return aoi, records, true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

// GetHealth reports the storage engine health checks. Any unhealthy or
// stale engine turns the reply into a 503.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	reply := HealthReply{Status: storage.StatusHealthy, Engines: map[string]EngineHealth{}}
	code := http.StatusOK

	if hm := h.controller.health; hm != nil {
		for name, eh := range hm.GetAllHealth() {
			reply.Engines[name] = EngineHealth{
				Status:    eh.Status,
				Message:   eh.Message,
				Error:     eh.Error,
				LastCheck: eh.LastCheck.UTC().Format(time.RFC3339),
			}
			if !hm.IsHealthy(name, maxHealthAge) {
				reply.Status = storage.StatusUnhealthy
				code = http.StatusServiceUnavailable
			}
		}
	}

	h.formatter.WriteResponseStatus(w, req, code, reply, map[string]string{"Cache-Control": "no-cache"})
}
