package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"alibi/pkg/httputil"
)

func (h *handlers) listWatchlist(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	httputil.WriteJSON(w, http.StatusOK, h.d.Watchlist.List(activeOnly))
}

type createWatchlistRequest struct {
	Kind   string `json:"kind"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (h *handlers) createWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	var req createWatchlistRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := h.d.Watchlist.Add(req.Kind, req.Value, req.Reason, claims.Username)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	_ = h.d.Audit.Log(r.Context(), claims.Username, "watchlist_add", entry.ID, req.Value)
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (h *handlers) disableWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.d.Watchlist.SetActive(id, false); err != nil {
		httputil.WriteError(w, err)
		return
	}
	_ = h.d.Audit.Log(r.Context(), claims.Username, "watchlist_disable", id, "")
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}
