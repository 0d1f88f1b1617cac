package httpapi

import (
	"io"
	"net/http"

	"alibi/pkg/apierrors"
	"alibi/pkg/httputil"
)

type simStartRequest struct {
	Scenario      string  `json:"scenario"`
	RatePerMinute float64 `json:"rate_per_minute"`
	Seed          int64   `json:"seed"`
}

func (h *handlers) simStart(w http.ResponseWriter, r *http.Request) {
	var req simStartRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := h.d.Simulator.Start(req.Scenario, req.RatePerMinute, req.Seed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *handlers) simStop(w http.ResponseWriter, r *http.Request) {
	status, err := h.d.Simulator.Stop()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *handlers) simStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.d.Simulator.Status())
}

func (h *handlers) simReplay(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, apierrors.New(apierrors.CodeBadInput, "could not read replay body"))
		return
	}
	status, err := h.d.Simulator.Replay(r.Context(), data)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}
