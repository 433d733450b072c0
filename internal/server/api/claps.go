package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/tala/internal/app"
	"github.com/ayusman/tala/internal/store"
)

// DefaultClapLimit is the number of claps listed when no limit is given.
const DefaultClapLimit = 50

// StatsSource reports the live clap counters.
type StatsSource interface {
	Stats() app.Stats
}

// ClapHandler serves the recorded clap history and live stats.
type ClapHandler struct {
	store *store.Store
	stats StatsSource
}

// NewClapHandler creates a ClapHandler. Either argument may be nil.
func NewClapHandler(s *store.Store, stats StatsSource) *ClapHandler {
	return &ClapHandler{store: s, stats: stats}
}

type listClapsResponse struct {
	Claps []*store.Clap `json:"claps"`
	Total int           `json:"total"`
}

// List handles GET /api/claps?limit=N, newest first.
func (h *ClapHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultClapLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	resp := listClapsResponse{Claps: []*store.Clap{}}
	if h.store != nil {
		claps, err := h.store.Claps().List(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list claps")
			return
		}
		total, err := h.store.Claps().Count()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to count claps")
			return
		}
		if claps != nil {
			resp.Claps = claps
		}
		resp.Total = total
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/stats.
func (h *ClapHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.stats == nil {
		writeJSON(w, http.StatusOK, app.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Stats())
}
