package httpapi

import (
	"net/http"

	"alibi/internal/platform/config"
	"alibi/pkg/httputil"
)

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.d.Settings.Get())
}

func (h *handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	var doc config.Document
	if err := httputil.DecodeJSON(r, &doc); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.d.Settings.Set(doc); err != nil {
		httputil.WriteError(w, err)
		return
	}
	_ = h.d.Audit.Log(r.Context(), claims.Username, "settings_update", "", "")
	httputil.WriteJSON(w, http.StatusOK, doc)
}
